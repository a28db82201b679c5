package log

import (
	"encoding/binary"
	"fmt"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/util"
)

// Dest receives the frames produced by a Writer.
// *fileio.WritableFileWriter implements it.
type Dest interface {
	Append(data []byte) error
	Flush() error
	Sync() error
	Close() error
}

type Writer struct {
	dest        Dest
	blockSize   int
	blockOffset int
	logNumber   uint64
	recycle     bool
	manualFlush bool
	compression db.CompressionType
	compressBuf []byte
}

type WriterOption func(*Writer)

// WithCompression compresses every record payload before framing. Readers
// must be opened with the same compression.
func WithCompression(c db.CompressionType) WriterOption {
	return func(w *Writer) {
		w.compression = c
	}
}

func withWriterBlockSize(n int) WriterOption {
	return func(w *Writer) {
		w.blockSize = n
	}
}

// NewWriter creates a writer appending to dest, which must be empty. With
// recycle set, frames use the recyclable format tagged with logNumber. With
// manualFlush set, dest is flushed after every frame.
func NewWriter(dest Dest, logNumber uint64, recycle, manualFlush bool, opts ...WriterOption) *Writer {
	w := &Writer{
		dest:        dest,
		blockSize:   logBlockSize,
		blockOffset: 0,
		logNumber:   logNumber,
		recycle:     recycle,
		manualFlush: manualFlush,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var zeroArray [logRecyclableHeaderSize]byte

// AddRecord appends data as one logical record. On error the record may be
// partially written; readers treat such a tail as corruption.
func (w *Writer) AddRecord(data []byte) error {
	if w.compression == db.SnappyCompression {
		data = w.compress(data)
	}

	headerSize := logHeaderSize
	if w.recycle {
		headerSize = logRecyclableHeaderSize
	}

	left := len(data)
	off := 0
	begin := true
	for begin || left > 0 {
		leftover := w.blockSize - w.blockOffset
		util.Assert(leftover >= 0)

		// fill zeroes and switch to a new block
		if leftover < headerSize {
			if leftover > 0 {
				if err := w.dest.Append(zeroArray[:leftover]); err != nil {
					return err
				}
			}
			w.blockOffset = 0
		}

		util.Assert(w.blockSize-w.blockOffset >= headerSize)
		avail := w.blockSize - w.blockOffset - headerSize
		fragmentLength := util.MinInt(left, avail)

		end := left == fragmentLength
		var pos fragmentPosition
		if begin && end {
			pos = positionFull
		} else if begin {
			pos = positionFirst
		} else if end {
			pos = positionLast
		} else {
			pos = positionMiddle
		}

		err := w.emitPhysicalRecord(recordTypeFor(pos, w.recycle), data[off:off+fragmentLength])
		if err != nil {
			return err
		}

		off += fragmentLength
		left -= fragmentLength
		begin = false
	}
	return nil
}

func (w *Writer) emitPhysicalRecord(t logRecordType, data []byte) error {
	length := len(data)
	headerSize := t.headerSize()
	util.Assert(length <= 0xffff)
	util.Assert(w.blockOffset+headerSize+length <= w.blockSize)

	var buf [logRecyclableHeaderSize]byte
	buf[4] = byte(length & 0xff)
	buf[5] = byte(length >> 8)
	buf[6] = byte(t)

	crc := typeCRC[t]
	if t.isRecyclable() {
		binary.LittleEndian.PutUint32(buf[7:], uint32(w.logNumber))
		crc = util.ExtendCRC32C(crc, buf[7:logRecyclableHeaderSize])
	}
	crc = util.ExtendCRC32C(crc, data)
	binary.LittleEndian.PutUint32(buf[0:], crc)

	// The block offset moves even on failure: the bytes may have reached
	// the file.
	w.blockOffset += headerSize + length

	if err := w.dest.Append(buf[:headerSize]); err != nil {
		return err
	}
	if err := w.dest.Append(data); err != nil {
		return err
	}
	if w.manualFlush {
		return w.dest.Flush()
	}
	return nil
}

func (w *Writer) compress(data []byte) []byte {
	n := 1 + util.SnappyMaxEncodedLen(len(data))
	if cap(w.compressBuf) < n {
		w.compressBuf = make([]byte, n)
	}
	buf := w.compressBuf[:n]
	buf[0] = compressionTagSnappy
	encoded := util.SnappyCompressTo(buf[1:], data)
	return buf[:1+len(encoded)]
}

func (w *Writer) Flush() error {
	return w.dest.Flush()
}

func (w *Writer) Sync() error {
	return w.dest.Sync()
}

// Close closes the destination. Unsynced data may be lost; call Sync first
// when durability matters.
func (w *Writer) Close() error {
	if err := w.dest.Close(); err != nil {
		return fmt.Errorf("close log %d: %w", w.logNumber, err)
	}
	return nil
}

func (w *Writer) LogNumber() uint64 {
	return w.logNumber
}

func (w *Writer) IsRecycled() bool {
	return w.recycle
}
