package db

import "io"

type Env interface {
	NewSequentialFile(name string, opts EnvOptions) (SequentialFile, error)
	NewWritableFile(name string, opts EnvOptions) (WritableFile, error)
	ReopenWritableFile(name string, opts EnvOptions) (WritableFile, error)
	// ReuseWritableFile renames oldName to newName and opens it for
	// overwriting from the start. Old contents past the write position stay.
	ReuseWritableFile(oldName, newName string, opts EnvOptions) (WritableFile, error)
	RemoveFile(name string) error
	RenameFile(src, target string) error
	TruncateFile(name string, size uint64) error
	FileExists(name string) bool
	GetFileSize(name string) (uint64, error)

	GetChildren(path string) ([]string, error)
	CreateDir(name string) error
	RemoveDir(name string) error
}

// SequentialFile is a forward-only read handle.
type SequentialFile interface {
	io.Closer
	// Read reads up to n bytes. The returned slice may alias scratch.
	// A result shorter than n without an error means end of file.
	Read(n int, scratch []byte) ([]byte, error)
	Skip(n int64) error
	UseDirectIO() bool
	RequiredBufferAlignment() int
}

type WritableFile interface {
	io.Writer
	io.Closer
	Append(data []byte) error
	// PositionedAppend writes data at offset. With direct I/O, offset, len(data)
	// and the address of data must be aligned to RequiredBufferAlignment.
	PositionedAppend(data []byte, offset uint64) error
	Flush() error
	Sync() error
	RangeSync(offset, nbytes int64) error
	Allocate(offset, length int64) error
	// PrepareWrite hints that length bytes are about to be written at offset.
	PrepareWrite(offset, length uint64)
	Truncate(size uint64) error
	UseDirectIO() bool
	RequiredBufferAlignment() int
	// IsOpen reports whether the underlying descriptor is still valid.
	IsOpen() bool
	FileSize() uint64
}
