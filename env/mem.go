package env

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/util"
)

// MemEnv is an in-memory Env. Direct I/O is emulated by rejecting unaligned
// positioned writes.
type MemEnv struct {
	mu    sync.Mutex
	files map[string]*memFileData
	dirs  map[string]struct{}
}

type memFileData struct {
	mu   sync.Mutex
	data []byte
}

func NewMemEnv() *MemEnv {
	return &MemEnv{
		files: make(map[string]*memFileData),
		dirs:  make(map[string]struct{}),
	}
}

// Contents returns a copy of the named file.
func (e *MemEnv) Contents(name string) ([]byte, bool) {
	e.mu.Lock()
	f, ok := e.files[name]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.data...), true
}

// SetContents replaces the named file, creating it if needed.
func (e *MemEnv) SetContents(name string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = &memFileData{data: append([]byte(nil), data...)}
}

func (e *MemEnv) lookup(name string) (*memFileData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.files[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return f, nil
}

func (e *MemEnv) NewSequentialFile(name string, opts db.EnvOptions) (db.SequentialFile, error) {
	f, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	return &memSequentialFile{
		name:        name,
		file:        f,
		useDirectIO: opts.UseDirectReads,
		alignment:   logicalSectorSize(opts),
	}, nil
}

func (e *MemEnv) NewWritableFile(name string, opts db.EnvOptions) (db.WritableFile, error) {
	e.mu.Lock()
	f := &memFileData{}
	e.files[name] = f
	e.mu.Unlock()
	return newMemWritableFile(name, f, opts), nil
}

func (e *MemEnv) ReopenWritableFile(name string, opts db.EnvOptions) (db.WritableFile, error) {
	e.mu.Lock()
	f, ok := e.files[name]
	if !ok {
		f = &memFileData{}
		e.files[name] = f
	}
	e.mu.Unlock()
	w := newMemWritableFile(name, f, opts)
	w.filesize = uint64(len(f.data))
	return w, nil
}

func (e *MemEnv) ReuseWritableFile(oldName, newName string, opts db.EnvOptions) (db.WritableFile, error) {
	if err := e.RenameFile(oldName, newName); err != nil {
		return nil, err
	}
	f, err := e.lookup(newName)
	if err != nil {
		return nil, err
	}
	return newMemWritableFile(newName, f, opts), nil
}

func (e *MemEnv) RemoveFile(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.files[name]; !ok {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrNotExist}
	}
	delete(e.files, name)
	return nil
}

func (e *MemEnv) RenameFile(src, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.files[src]
	if !ok {
		return &os.PathError{Op: "rename", Path: src, Err: os.ErrNotExist}
	}
	delete(e.files, src)
	e.files[target] = f
	return nil
}

func (e *MemEnv) TruncateFile(name string, size uint64) error {
	f, err := e.lookup(name)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resize(size)
	return nil
}

func (e *MemEnv) FileExists(name string) bool {
	_, err := e.lookup(name)
	return err == nil
}

func (e *MemEnv) GetFileSize(name string) (uint64, error) {
	f, err := e.lookup(name)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.data)), nil
}

func (e *MemEnv) GetChildren(path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prefix := filepath.Clean(path) + string(filepath.Separator)
	var children []string
	for name := range e.files {
		if strings.HasPrefix(name, prefix) {
			rest := strings.TrimPrefix(name, prefix)
			if !strings.Contains(rest, string(filepath.Separator)) {
				children = append(children, rest)
			}
		}
	}
	sort.Strings(children)
	return children, nil
}

func (e *MemEnv) CreateDir(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirs[filepath.Clean(name)] = struct{}{}
	return nil
}

func (e *MemEnv) RemoveDir(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.dirs, filepath.Clean(name))
	return nil
}

func (f *memFileData) resize(size uint64) {
	if uint64(len(f.data)) >= size {
		f.data = f.data[:size]
		return
	}
	f.data = append(f.data, make([]byte, size-uint64(len(f.data)))...)
}

func (f *memFileData) writeAt(data []byte, offset uint64) {
	end := offset + uint64(len(data))
	if uint64(len(f.data)) < end {
		f.resize(end)
	}
	copy(f.data[offset:end], data)
}

type memWritableFile struct {
	name        string
	file        *memFileData
	closed      bool
	useDirectIO bool
	alignment   int
	filesize    uint64
}

func newMemWritableFile(name string, f *memFileData, opts db.EnvOptions) *memWritableFile {
	return &memWritableFile{
		name:        name,
		file:        f,
		useDirectIO: opts.UseDirectWrites,
		alignment:   logicalSectorSize(opts),
	}
}

func (w *memWritableFile) Write(p []byte) (int, error) {
	if err := w.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *memWritableFile) Append(data []byte) error {
	if w.closed {
		return fmt.Errorf("%w: append %s: file closed", db.ErrIO, w.name)
	}
	w.file.mu.Lock()
	defer w.file.mu.Unlock()
	w.file.writeAt(data, w.filesize)
	w.filesize += uint64(len(data))
	return nil
}

func (w *memWritableFile) PositionedAppend(data []byte, offset uint64) error {
	if w.closed {
		return fmt.Errorf("%w: pwrite %s: file closed", db.ErrIO, w.name)
	}
	if w.useDirectIO {
		if offset%uint64(w.alignment) != 0 || len(data)%w.alignment != 0 || !util.IsAligned(data, w.alignment) {
			return fmt.Errorf("%w: pwrite %s: unaligned direct write at offset %d length %d",
				db.ErrInvalidArgument, w.name, offset, len(data))
		}
	}
	w.file.mu.Lock()
	defer w.file.mu.Unlock()
	w.file.writeAt(data, offset)
	w.filesize = offset + uint64(len(data))
	return nil
}

func (w *memWritableFile) Flush() error                         { return nil }
func (w *memWritableFile) Sync() error                          { return nil }
func (w *memWritableFile) RangeSync(offset, nbytes int64) error { return nil }
func (w *memWritableFile) Allocate(offset, length int64) error  { return nil }
func (w *memWritableFile) PrepareWrite(offset, length uint64)   {}

func (w *memWritableFile) Truncate(size uint64) error {
	w.file.mu.Lock()
	defer w.file.mu.Unlock()
	w.file.resize(size)
	w.filesize = size
	return nil
}

func (w *memWritableFile) Close() error {
	if w.closed {
		return fmt.Errorf("%w: close %s: file already closed", db.ErrIO, w.name)
	}
	w.closed = true
	return nil
}

func (w *memWritableFile) IsOpen() bool                 { return !w.closed }
func (w *memWritableFile) UseDirectIO() bool            { return w.useDirectIO }
func (w *memWritableFile) RequiredBufferAlignment() int { return w.alignment }
func (w *memWritableFile) FileSize() uint64             { return w.filesize }

type memSequentialFile struct {
	name        string
	file        *memFileData
	pos         uint64
	closed      bool
	useDirectIO bool
	alignment   int
}

func (r *memSequentialFile) Read(n int, scratch []byte) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: read %s: file closed", db.ErrIO, r.name)
	}
	if cap(scratch) < n {
		scratch = make([]byte, n)
	}
	r.file.mu.Lock()
	defer r.file.mu.Unlock()
	if r.pos >= uint64(len(r.file.data)) {
		return scratch[:0], nil
	}
	c := copy(scratch[:n], r.file.data[r.pos:])
	r.pos += uint64(c)
	return scratch[:c], nil
}

func (r *memSequentialFile) Skip(n int64) error {
	r.pos += uint64(n)
	return nil
}

func (r *memSequentialFile) Close() error {
	if r.closed {
		return fmt.Errorf("%w: close %s: file already closed", db.ErrIO, r.name)
	}
	r.closed = true
	return nil
}

func (r *memSequentialFile) UseDirectIO() bool            { return r.useDirectIO }
func (r *memSequentialFile) RequiredBufferAlignment() int { return r.alignment }
