//go:build linux || darwin

package env

import (
	"os"

	"github.com/ls4154/golwal/db"
)

type PosixEnv struct{}

var globalEnv *PosixEnv

func init() {
	globalEnv = &PosixEnv{}
}

func DefaultEnv() *PosixEnv {
	return globalEnv
}

func (e *PosixEnv) NewSequentialFile(name string, opts db.EnvOptions) (db.SequentialFile, error) {
	f, err := newPosixSequentialFile(name, opts)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (e *PosixEnv) NewWritableFile(name string, opts db.EnvOptions) (db.WritableFile, error) {
	f, err := newPosixWritableFile(name, openTruncate, opts)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (e *PosixEnv) ReopenWritableFile(name string, opts db.EnvOptions) (db.WritableFile, error) {
	f, err := newPosixWritableFile(name, openAppend, opts)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReuseWritableFile renames oldName to newName and opens it for writing from
// offset zero without truncating, so the old blocks stay allocated.
func (e *PosixEnv) ReuseWritableFile(oldName, newName string, opts db.EnvOptions) (db.WritableFile, error) {
	if err := os.Rename(oldName, newName); err != nil {
		return nil, ioError("rename", oldName, err)
	}
	f, err := newPosixWritableFile(newName, openReuse, opts)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (e *PosixEnv) RemoveFile(name string) error {
	return os.Remove(name)
}

func (e *PosixEnv) RenameFile(src, target string) error {
	return os.Rename(src, target)
}

func (e *PosixEnv) TruncateFile(name string, size uint64) error {
	if err := os.Truncate(name, int64(size)); err != nil {
		return ioError("truncate", name, err)
	}
	return nil
}

func (e *PosixEnv) FileExists(name string) bool {
	_, err := os.Stat(name)
	if err != nil {
		return false
	}
	return true
}

func (e *PosixEnv) GetFileSize(name string) (uint64, error) {
	stat, err := os.Stat(name)
	if err != nil {
		return 0, err
	}
	return uint64(stat.Size()), nil
}

func (e *PosixEnv) GetChildren(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dents, err := f.ReadDir(0)
	if err != nil {
		return nil, err
	}

	children := make([]string, 0, len(dents))
	for _, e := range dents {
		children = append(children, e.Name())
	}
	return children, nil
}

func (e *PosixEnv) CreateDir(name string) error {
	return os.Mkdir(name, 0o755)
}

func (e *PosixEnv) RemoveDir(name string) error {
	return os.Remove(name)
}
