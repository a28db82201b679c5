package fileio

import (
	"fmt"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/util"
)

const (
	initialBufferSize = 64 * 1024

	// Range syncs stay this far behind the end of the file: those pages are
	// likely to be written again and some kernels block writers on them.
	bytesNotSyncRange  = 1024 * 1024
	bytesAlignWhenSync = 4 * 1024
)

// WritableFileWriter buffers appends to a WritableFile. In direct I/O mode
// every write reaching the file is page aligned.
type WritableFileWriter struct {
	file          db.WritableFile
	buf           *util.AlignedBuffer
	maxBufferSize int
	filesize      uint64
	// next file offset for direct writes, always a multiple of the alignment
	nextWriteOffset uint64
	bytesPerSync    uint64
	lastSyncSize    uint64
	pendingSync     bool
	closed          bool
}

func NewWritableFileWriter(file db.WritableFile, opts db.EnvOptions) *WritableFileWriter {
	alignment := file.RequiredBufferAlignment()
	maxBufferSize := opts.WritableFileMaxBufferSize
	if maxBufferSize <= 0 {
		maxBufferSize = db.DefaultEnvOptions().WritableFileMaxBufferSize
	}
	maxBufferSize = util.Roundup(maxBufferSize, alignment)

	buf := util.NewAlignedBuffer(alignment)
	buf.AllocateNewBuffer(util.MinInt(initialBufferSize, maxBufferSize), false)

	w := &WritableFileWriter{
		file:          file,
		buf:           buf,
		maxBufferSize: maxBufferSize,
		filesize:      file.FileSize(),
		bytesPerSync:  opts.BytesPerSync,
	}
	if file.UseDirectIO() {
		// direct writers must start on a page boundary
		util.Assert(w.filesize%uint64(alignment) == 0)
		w.nextWriteOffset = w.filesize
	}
	return w
}

func (w *WritableFileWriter) Append(data []byte) error {
	if w.closed {
		return db.ErrClosed
	}
	left := len(data)
	w.pendingSync = true

	w.file.PrepareWrite(w.filesize, uint64(left))

	// Grow the buffer by doubling, never past maxBufferSize.
	if w.buf.Free() < left {
		for capacity := w.buf.Capacity(); capacity < w.maxBufferSize; capacity *= 2 {
			desired := util.MinInt(capacity*2, w.maxBufferSize)
			if desired-w.buf.Size() >= left ||
				(w.file.UseDirectIO() && desired == w.maxBufferSize) {
				w.buf.AllocateNewBuffer(desired, true)
				break
			}
		}
	}

	// Flush only when buffered I/O
	if !w.file.UseDirectIO() && w.buf.Free() < left {
		if w.buf.Size() > 0 {
			if err := w.Flush(); err != nil {
				return err
			}
		}
		util.Assert(w.buf.Size() == 0)
	}

	// Direct I/O never writes through: everything goes via the aligned
	// buffer. Buffered I/O copies when the data fits.
	if w.file.UseDirectIO() || w.buf.Capacity() >= left {
		src := data
		for len(src) > 0 {
			n := w.buf.Append(src)
			src = src[n:]
			if len(src) > 0 {
				if err := w.Flush(); err != nil {
					return err
				}
			}
		}
	} else {
		util.Assert(w.buf.Size() == 0)
		if err := w.writeBuffered(data); err != nil {
			return err
		}
	}

	w.filesize += uint64(len(data))
	return nil
}

// Flush pushes buffered bytes to the file and hands them to the OS. It does
// not make them durable, see Sync.
func (w *WritableFileWriter) Flush() error {
	if w.closed {
		return db.ErrClosed
	}
	if w.buf.Size() > 0 {
		var err error
		if w.file.UseDirectIO() {
			err = w.writeDirect()
		} else {
			err = w.writeBuffered(w.buf.Bytes())
			if err == nil {
				w.buf.SetSize(0)
			}
		}
		if err != nil {
			return err
		}
	}

	if err := w.file.Flush(); err != nil {
		return err
	}

	if !w.file.UseDirectIO() && w.bytesPerSync > 0 && w.filesize > bytesNotSyncRange {
		offsetSyncTo := w.filesize - bytesNotSyncRange
		offsetSyncTo -= offsetSyncTo % bytesAlignWhenSync
		util.Assert(offsetSyncTo >= w.lastSyncSize)
		if offsetSyncTo > 0 && offsetSyncTo-w.lastSyncSize >= w.bytesPerSync {
			err := w.file.RangeSync(int64(w.lastSyncSize), int64(offsetSyncTo-w.lastSyncSize))
			if err != nil {
				return err
			}
			w.lastSyncSize = offsetSyncTo
		}
	}
	return nil
}

// Sync flushes and then makes the file durable.
func (w *WritableFileWriter) Sync() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if !w.pendingSync {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.pendingSync = false
	return nil
}

// Close flushes the buffer and closes the file. Direct I/O files are
// truncated to the logical size to drop the alignment padding.
func (w *WritableFileWriter) Close() error {
	if w.closed {
		return db.ErrClosed
	}
	if !w.file.IsOpen() {
		w.closed = true
		return fmt.Errorf("%w: writable file already closed", db.ErrIO)
	}

	err := w.Flush()
	if w.file.UseDirectIO() {
		interim := w.file.Truncate(w.filesize)
		if interim == nil {
			interim = w.file.Sync()
		}
		if err == nil {
			err = interim
		}
	}
	w.closed = true
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (w *WritableFileWriter) writeBuffered(data []byte) error {
	util.Assert(!w.file.UseDirectIO())
	return w.file.Append(data)
}

// writeDirect writes the buffer as whole pages. The trailing partial page is
// zero padded on disk and kept in the buffer so the next flush rewrites it
// at the same offset.
func (w *WritableFileWriter) writeDirect() error {
	util.Assert(w.file.UseDirectIO())
	alignment := w.buf.Alignment()
	util.Assert(w.nextWriteOffset%uint64(alignment) == 0)

	size := w.buf.Size()
	fileAdvance := util.TruncateToPageBoundary(alignment, size)
	leftoverTail := size - fileAdvance

	w.buf.PadToAlignmentWith(0)

	if err := w.file.PositionedAppend(w.buf.Bytes(), w.nextWriteOffset); err != nil {
		w.buf.SetSize(size)
		return err
	}

	w.buf.RefitTail(fileAdvance, leftoverTail)
	w.nextWriteOffset += uint64(fileAdvance)
	return nil
}

func (w *WritableFileWriter) FileSize() uint64 {
	return w.filesize
}

func (w *WritableFileWriter) File() db.WritableFile {
	return w.file
}

func (w *WritableFileWriter) UseDirectIO() bool {
	return w.file.UseDirectIO()
}

func (w *WritableFileWriter) PendingSync() bool {
	return w.pendingSync
}

func (w *WritableFileWriter) LastSyncSize() uint64 {
	return w.lastSyncSize
}

// BufferCapacity returns the current capacity of the in-memory buffer.
func (w *WritableFileWriter) BufferCapacity() int {
	return w.buf.Capacity()
}
