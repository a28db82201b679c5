//go:build linux || darwin

package env

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/util"
)

type PosixWritableFile struct {
	filename               string
	fd                     int
	closed                 bool
	useDirectIO            bool
	preallocationBlockSize uint64
	lastPreallocatedBlock  uint64
	filesize               uint64
	logicalSectorSize      int
}

type writableOpenMode int

const (
	// start empty
	openTruncate writableOpenMode = iota
	// keep the contents and append after them
	openAppend
	// keep the contents and overwrite them from offset zero
	openReuse
)

func newPosixWritableFile(name string, mode writableOpenMode, opts db.EnvOptions) (*PosixWritableFile, error) {
	flags := unix.O_CREAT | unix.O_RDWR | unix.O_CLOEXEC
	switch mode {
	case openAppend:
		// pwrite ignores its offset on an O_APPEND descriptor, and direct
		// writes are all positioned.
		if !opts.UseDirectWrites {
			flags |= unix.O_APPEND
		}
	case openTruncate:
		flags |= unix.O_TRUNC
	}
	if opts.UseDirectWrites {
		flags |= directIOFlag
	}

	fd, err := openRetry(name, flags, 0o644)
	if err != nil {
		return nil, ioError("open", name, err)
	}
	if opts.UseDirectWrites {
		if err := setNoCache(fd); err != nil {
			unix.Close(fd)
			return nil, ioError("fcntl nocache", name, err)
		}
	}

	var size uint64
	if mode == openAppend {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			unix.Close(fd)
			return nil, ioError("fstat", name, err)
		}
		size = uint64(st.Size)
		if opts.UseDirectWrites && size%uint64(logicalSectorSize(opts)) != 0 {
			unix.Close(fd)
			return nil, fmt.Errorf("%w: reopen %s for direct writes: size %d is not sector aligned",
				db.ErrNotSupported, name, size)
		}
	}

	return &PosixWritableFile{
		filename:               name,
		fd:                     fd,
		useDirectIO:            opts.UseDirectWrites,
		preallocationBlockSize: opts.PreallocationBlockSize,
		filesize:               size,
		logicalSectorSize:      logicalSectorSize(opts),
	}, nil
}

func (f *PosixWritableFile) Write(p []byte) (int, error) {
	if err := f.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *PosixWritableFile) Append(data []byte) error {
	for len(data) > 0 {
		n, err := sysWrite(f.fd, data)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return ioError("append", f.filename, err)
		}
		if n <= 0 {
			return ioError("append", f.filename, unix.EIO)
		}
		data = data[n:]
		f.filesize += uint64(n)
	}
	return nil
}

func (f *PosixWritableFile) PositionedAppend(data []byte, offset uint64) error {
	if f.useDirectIO {
		util.Assert(offset%uint64(f.logicalSectorSize) == 0)
		util.Assert(len(data)%f.logicalSectorSize == 0)
		util.Assert(util.IsAligned(data, f.logicalSectorSize))
	}

	for len(data) > 0 {
		n, err := sysPwrite(f.fd, data, int64(offset))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return ioError(fmt.Sprintf("pwrite at offset %d", offset), f.filename, err)
		}
		if n <= 0 {
			return ioError(fmt.Sprintf("pwrite at offset %d", offset), f.filename, unix.EIO)
		}
		data = data[n:]
		offset += uint64(n)
	}
	f.filesize = offset
	return nil
}

func (f *PosixWritableFile) Flush() error {
	return nil
}

func (f *PosixWritableFile) Sync() error {
	if err := retryEINTR(func() error { return sysFdatasync(f.fd) }); err != nil {
		return ioError("sync", f.filename, err)
	}
	return nil
}

func (f *PosixWritableFile) RangeSync(offset, nbytes int64) error {
	if err := retryEINTR(func() error { return sysSyncFileRange(f.fd, offset, nbytes) }); err != nil {
		return ioError("sync_file_range", f.filename, err)
	}
	return nil
}

func (f *PosixWritableFile) Allocate(offset, length int64) error {
	if err := retryEINTR(func() error { return sysFallocate(f.fd, offset, length) }); err != nil {
		return ioError("fallocate", f.filename, err)
	}
	return nil
}

// PrepareWrite reserves whole preallocation blocks covering
// [offset, offset+length). Failures are ignored; the write itself will
// report a real space problem.
func (f *PosixWritableFile) PrepareWrite(offset, length uint64) {
	if f.preallocationBlockSize == 0 {
		return
	}
	blockSize := f.preallocationBlockSize
	newLastPreallocatedBlock := (offset + length + blockSize - 1) / blockSize
	if newLastPreallocatedBlock > f.lastPreallocatedBlock {
		numSpannedBlocks := newLastPreallocatedBlock - f.lastPreallocatedBlock
		_ = f.Allocate(int64(blockSize*f.lastPreallocatedBlock), int64(blockSize*numSpannedBlocks))
		f.lastPreallocatedBlock = newLastPreallocatedBlock
	}
}

func (f *PosixWritableFile) Truncate(size uint64) error {
	if err := retryEINTR(func() error { return sysFtruncate(f.fd, int64(size)) }); err != nil {
		return ioError("truncate", f.filename, err)
	}
	f.filesize = size
	return nil
}

func (f *PosixWritableFile) Close() error {
	if f.closed {
		return fmt.Errorf("%w: close %s: file already closed", db.ErrIO, f.filename)
	}
	f.closed = true
	if err := unix.Close(f.fd); err != nil {
		return ioError("close", f.filename, err)
	}
	return nil
}

func (f *PosixWritableFile) IsOpen() bool {
	if f.closed {
		return false
	}
	_, err := unix.FcntlInt(uintptr(f.fd), unix.F_GETFL, 0)
	return err == nil
}

func (f *PosixWritableFile) UseDirectIO() bool {
	return f.useDirectIO
}

func (f *PosixWritableFile) RequiredBufferAlignment() int {
	return f.logicalSectorSize
}

func (f *PosixWritableFile) FileSize() uint64 {
	return f.filesize
}

type PosixSequentialFile struct {
	filename          string
	fd                int
	closed            bool
	useDirectIO       bool
	logicalSectorSize int

	// direct I/O only
	offset int64
	bounce []byte
}

func newPosixSequentialFile(name string, opts db.EnvOptions) (*PosixSequentialFile, error) {
	flags := unix.O_RDONLY | unix.O_CLOEXEC
	if opts.UseDirectReads {
		flags |= directIOFlag
	}

	fd, err := openRetry(name, flags, 0o644)
	if err != nil {
		return nil, ioError("open for sequential read", name, err)
	}
	if opts.UseDirectReads {
		if err := setNoCache(fd); err != nil {
			unix.Close(fd)
			return nil, ioError("fcntl nocache", name, err)
		}
	}

	return &PosixSequentialFile{
		filename:          name,
		fd:                fd,
		useDirectIO:       opts.UseDirectReads,
		logicalSectorSize: logicalSectorSize(opts),
	}, nil
}

// Read reads up to n bytes into scratch. Reaching end of file is not an
// error and does not stick: a later Read sees data appended since.
func (f *PosixSequentialFile) Read(n int, scratch []byte) ([]byte, error) {
	if cap(scratch) < n {
		scratch = make([]byte, n)
	}
	scratch = scratch[:n]

	if f.useDirectIO {
		return f.readDirect(scratch)
	}

	total := 0
	for total < n {
		r, err := sysRead(f.fd, scratch[total:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return scratch[:total], ioError("read", f.filename, err)
		}
		if r == 0 {
			break
		}
		total += r
	}
	return scratch[:total], nil
}

// readDirect serves reads from aligned preads at aligned offsets. The
// partially consumed head page is read again on the next call.
func (f *PosixSequentialFile) readDirect(out []byte) ([]byte, error) {
	align := f.logicalSectorSize
	total := 0
	for total < len(out) {
		alignedStart := f.offset - f.offset%int64(align)
		head := int(f.offset - alignedStart)
		want := util.Roundup(head+len(out)-total, align)
		if len(f.bounce) < want {
			f.bounce = util.AlignedSlice(want, align)
		}

		r, err := sysPread(f.fd, f.bounce[:want], alignedStart)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return out[:total], ioError("pread", f.filename, err)
		}
		if r <= head {
			break
		}
		copied := copy(out[total:], f.bounce[head:r])
		total += copied
		f.offset += int64(copied)
		if r < want {
			break
		}
	}
	return out[:total], nil
}

func (f *PosixSequentialFile) Skip(n int64) error {
	if f.useDirectIO {
		f.offset += n
		return nil
	}
	err := retryEINTR(func() error {
		_, err := sysSeek(f.fd, n, unix.SEEK_CUR)
		return err
	})
	if err != nil {
		return ioError(fmt.Sprintf("seek to skip %d bytes", n), f.filename, err)
	}
	return nil
}

func (f *PosixSequentialFile) Close() error {
	if f.closed {
		return fmt.Errorf("%w: close %s: file already closed", db.ErrIO, f.filename)
	}
	f.closed = true
	if err := unix.Close(f.fd); err != nil {
		return ioError("close", f.filename, err)
	}
	return nil
}

func (f *PosixSequentialFile) UseDirectIO() bool {
	return f.useDirectIO
}

func (f *PosixSequentialFile) RequiredBufferAlignment() int {
	return f.logicalSectorSize
}
