package log

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/util"
)

// Source supplies the raw bytes of a log file.
// *fileio.SequentialFileReader implements it.
type Source interface {
	// Read returns up to n bytes; fewer without an error means end of file.
	Read(n int, scratch []byte) ([]byte, error)
	Skip(n int64) error
}

// Reporter is notified of every run of bytes the reader drops.
type Reporter interface {
	Corruption(bytes int, err error)
}

// LoggingReporter reports dropped bytes to a db.Logger.
type LoggingReporter struct {
	Logger    db.Logger
	LogNumber uint64
}

func (r LoggingReporter) Corruption(bytes int, err error) {
	util.LoggerOrNop(r.Logger).Printf("log #%d: dropping %d bytes; %v", r.LogNumber, bytes, err)
}

type Reader struct {
	src          Source
	reporter     Reporter
	checksum     bool
	logNumber    uint64
	blockSize    int
	compression  db.CompressionType
	backingStore []byte // fixed read buffer, one block
	buf          []byte // unprocessed slice into backingStore
	scratch      []byte
	decompressed []byte
	eof          bool

	// bytes dropped by the last readPhysicalRecord
	dropSize int
	// total bytes dropped so far
	droppedBytes uint64

	// offset of the last record returned by ReadRecord
	lastRecordOffset uint64
	// offset just past the last record returned by ReadRecord
	lastRecordEnd uint64
	// offset of the first location past the end of buf
	endOfBufferOffset uint64
	initialOffset     uint64

	// true while skipping fragments of a record that began before
	// initialOffset
	resyncing bool
	// set once a recyclable frame has been read
	recycled bool
	// set when reading has stopped at a corruption
	stopped bool
	// set by any corruption that could not be a torn tail
	corrupted   bool
	returnedAny bool
	// first corruption seen in point-in-time mode before any record,
	// while looking for an intact record behind it
	searchErr error
}

type ReaderOption func(*Reader)

// WithDecompression undoes WithCompression on the writing side.
func WithDecompression(c db.CompressionType) ReaderOption {
	return func(r *Reader) {
		r.compression = c
	}
}

func withReaderBlockSize(n int) ReaderOption {
	return func(r *Reader) {
		r.blockSize = n
	}
}

// NewReader creates a reader over src. Recyclable frames are accepted only
// when they carry logNumber. Dropped bytes are reported to reporter, which
// may be nil. The first record returned is the first one that starts at or
// after initialOffset.
func NewReader(src Source, logNumber uint64, reporter Reporter, checksum bool, initialOffset uint64, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:           src,
		reporter:      reporter,
		checksum:      checksum,
		logNumber:     logNumber,
		blockSize:     logBlockSize,
		initialOffset: initialOffset,
		resyncing:     initialOffset > 0,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.backingStore = make([]byte, r.blockSize)
	return r
}

// action is what ReadRecord does after a corruption.
type action int

const (
	actionContinue action = iota
	actionStop
	actionFail
)

// ReadRecord reassembles the next logical record. It returns io.EOF at the
// end of the log, or when mode says reading ends at a corruption. A
// corruption that mode does not tolerate is returned as an error wrapping
// db.ErrCorruption.
//
// The result may alias scratch or the reader's internal buffer and is only
// valid until the next call. A nil scratch selects an internal one.
func (r *Reader) ReadRecord(scratch []byte, mode db.WALRecoveryMode) ([]byte, error) {
	if r.stopped {
		return nil, io.EOF
	}
	if r.lastRecordOffset < r.initialOffset && r.endOfBufferOffset == 0 {
		if err := r.skipToInitialBlock(); err != nil {
			return nil, err
		}
	}

	if scratch == nil {
		scratch = r.scratch
	}
	scratch = scratch[:0]
	defer func() {
		if cap(scratch) > cap(r.scratch) {
			r.scratch = scratch[:0]
		}
	}()

	inFragmentedRecord := false
	// a foreign frame showed up inside the current fragmented record
	interrupted := false
	var prospectiveRecordOffset uint64

	dropPartial := func() {
		scratch = scratch[:0]
		inFragmentedRecord = false
		interrupted = false
	}

	for {
		fragment, t, result, err := r.readPhysicalRecord()
		if err != nil {
			return nil, err
		}

		switch result {
		case resultFrame:
			// The read may have moved past a block trailer, so the frame
			// start is worked out from where it ended.
			physicalRecordOffset := r.endOfBufferOffset - uint64(len(r.buf)) - uint64(t.headerSize()+len(fragment))
			if !t.isKnown() {
				// Not ours: skipped, but it breaks a record in progress.
				if inFragmentedRecord {
					interrupted = true
				}
				continue
			}
			if t.isRecyclable() {
				r.recycled = true
			}

			pos := t.position()
			if r.resyncing {
				if pos == positionMiddle {
					continue
				}
				if pos == positionLast {
					r.resyncing = false
					continue
				}
				r.resyncing = false
			}

			switch pos {
			case positionFull, positionFirst:
				if inFragmentedRecord {
					act, err := r.corruption(mode, false, len(scratch), "partial record without end")
					if act != actionContinue {
						return r.stop(act, err)
					}
					dropPartial()
				}
				if pos == positionFirst {
					prospectiveRecordOffset = physicalRecordOffset
					scratch = append(scratch[:0], fragment...)
					inFragmentedRecord = true
					continue
				}
				record, act, err := r.complete(fragment, physicalRecordOffset, mode)
				if act != actionContinue {
					return r.stop(act, err)
				}
				if record != nil {
					return record, nil
				}

			case positionMiddle, positionLast:
				if !inFragmentedRecord {
					act, err := r.corruption(mode, false, len(fragment), "missing start of fragmented record")
					if act != actionContinue {
						return r.stop(act, err)
					}
					continue
				}
				if interrupted {
					act, err := r.corruption(mode, false, len(scratch)+len(fragment), "fragmented record interrupted by foreign frame")
					if act != actionContinue {
						return r.stop(act, err)
					}
					dropPartial()
					continue
				}
				scratch = append(scratch, fragment...)
				if pos == positionLast {
					inFragmentedRecord = false
					record, act, err := r.complete(scratch, prospectiveRecordOffset, mode)
					if act != actionContinue {
						return r.stop(act, err)
					}
					if record != nil {
						return record, nil
					}
					dropPartial()
				}
			}

		case resultZeroPadding, resultStaleRecord:
			if inFragmentedRecord {
				interrupted = true
			}

		case resultSkipped:

		case resultTruncatedHeader, resultTruncatedRecord:
			var reason string
			if result == resultTruncatedHeader {
				reason = "truncated header"
			} else {
				reason = "truncated record body"
			}
			act, err := r.corruption(mode, true, r.dropSize+len(scratch), reason)
			if act != actionContinue {
				return r.stop(act, err)
			}
			dropPartial()

		case resultEOF:
			if inFragmentedRecord {
				act, err := r.corruption(mode, true, len(scratch), "unterminated record at end of log")
				if act != actionContinue {
					return r.stop(act, err)
				}
			}
			if r.searchErr != nil {
				// no intact record anywhere in the log
				return nil, r.searchErr
			}
			return nil, io.EOF

		case resultBadRecordLen, resultBadChecksum:
			var reason string
			if result == resultBadRecordLen {
				reason = "bad record length"
			} else {
				reason = "checksum mismatch"
			}
			// A recycled file ends in garbage from its previous life.
			act, err := r.corruption(mode, r.recycled, r.dropSize+len(scratch), reason)
			if act != actionContinue {
				return r.stop(act, err)
			}
			dropPartial()
		}
	}
}

// complete finishes a record that started at offset. A nil record with
// actionContinue means the record was dropped and reading goes on.
func (r *Reader) complete(record []byte, offset uint64, mode db.WALRecoveryMode) ([]byte, action, error) {
	if r.compression != db.NoCompression {
		decoded, err := r.decompress(record)
		if err != nil {
			act, cerr := r.corruption(mode, false, len(record), err.Error())
			return nil, act, cerr
		}
		record = decoded
	}
	if r.searchErr != nil {
		// An intact record after the corruption. The log is cut before
		// the corruption, which leaves nothing.
		return nil, actionStop, nil
	}
	r.lastRecordOffset = offset
	r.lastRecordEnd = r.endOfBufferOffset - uint64(len(r.buf))
	r.returnedAny = true
	return record, actionContinue, nil
}

func (r *Reader) decompress(record []byte) ([]byte, error) {
	if len(record) == 0 {
		return nil, fmt.Errorf("missing compression tag")
	}
	switch record[0] {
	case compressionTagNone:
		return record[1:], nil
	case compressionTagSnappy:
		decoded, err := util.SnappyUncompressTo(r.decompressed, record[1:])
		if err != nil {
			return nil, fmt.Errorf("snappy: %v", err)
		}
		if cap(decoded) > cap(r.decompressed) {
			r.decompressed = decoded[:0]
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", record[0])
	}
}

// corruption applies mode to a corruption event. tail marks events that
// happen at the end of the log, where a crash can leave a torn record.
func (r *Reader) corruption(mode db.WALRecoveryMode, tail bool, dropped int, reason string) (action, error) {
	err := fmt.Errorf("%w: %s", db.ErrCorruption, reason)
	if !tail {
		r.corrupted = true
	}
	switch mode {
	case db.TolerateCorruptedTailRecords:
		if tail {
			return actionStop, nil
		}
		r.reportDrop(dropped, err)
		return actionFail, err
	case db.SkipAnyCorruptedRecords:
		r.reportDrop(dropped, err)
		return actionContinue, nil
	case db.PointInTimeRecovery:
		r.reportDrop(dropped, err)
		if r.searchErr != nil {
			return actionContinue, nil
		}
		if !tail && !r.returnedAny {
			// Nothing recovered yet. Scan on: the log fails only if no
			// intact record follows.
			r.searchErr = err
			return actionContinue, nil
		}
		return actionStop, nil
	default:
		r.reportDrop(dropped, err)
		return actionFail, err
	}
}

func (r *Reader) stop(act action, err error) ([]byte, error) {
	if act == actionFail {
		return nil, err
	}
	r.stopped = true
	return nil, io.EOF
}

func (r *Reader) reportDrop(bytes int, err error) {
	r.droppedBytes += uint64(bytes)
	if r.reporter != nil {
		r.reporter.Corruption(bytes, err)
	}
}

func (r *Reader) skipToInitialBlock() error {
	offsetInBlock := r.initialOffset % uint64(r.blockSize)
	blockStartLocation := r.initialOffset - offsetInBlock

	// Don't search a block if we'd be in the trailer
	if offsetInBlock > uint64(r.blockSize-logHeaderSize+1) {
		blockStartLocation += uint64(r.blockSize)
	}

	r.endOfBufferOffset = blockStartLocation

	if blockStartLocation > 0 {
		if err := r.src.Skip(int64(blockStartLocation)); err != nil {
			r.reportDrop(int(blockStartLocation), err)
			return fmt.Errorf("%w: skip to initial block: %w", db.ErrIO, err)
		}
	}
	return nil
}

// readMore reads the next block. It returns false once the end of the file
// has been reached.
func (r *Reader) readMore() (bool, error) {
	if r.eof {
		r.buf = nil
		return false, nil
	}
	data, err := r.src.Read(r.blockSize, r.backingStore)
	r.endOfBufferOffset += uint64(len(data))
	r.buf = data
	if err != nil {
		r.buf = nil
		r.eof = true
		return false, err
	}
	if len(data) < r.blockSize {
		r.eof = true
	}
	return true, nil
}

func (r *Reader) readPhysicalRecord() ([]byte, logRecordType, readResult, error) {
	for {
		if len(r.buf) < logHeaderSize {
			if !r.eof {
				// The rest of the block is padding.
				if _, err := r.readMore(); err != nil {
					return nil, 0, resultEOF, err
				}
				continue
			}
			if len(r.buf) > 0 {
				r.dropSize = len(r.buf)
				r.buf = nil
				return nil, 0, resultTruncatedHeader, nil
			}
			return nil, 0, resultEOF, nil
		}

		header := r.buf
		length := int(header[4]) | (int(header[5]) << 8)
		t := logRecordType(header[6])
		headerSize := t.headerSize()

		if len(r.buf) < headerSize {
			if !r.eof {
				r.buf = nil
				continue
			}
			r.dropSize = len(r.buf)
			r.buf = nil
			return nil, 0, resultTruncatedHeader, nil
		}

		if headerSize+length > len(r.buf) {
			r.dropSize = len(r.buf)
			r.buf = nil
			if !r.eof {
				return nil, 0, resultBadRecordLen, nil
			}
			// Assume the writer died in the middle of writing the record.
			return nil, 0, resultTruncatedRecord, nil
		}

		if t == logRecordZero && length == 0 {
			// Preallocated or zero-filled space, nothing more in this block.
			r.buf = nil
			return nil, 0, resultZeroPadding, nil
		}

		if r.checksum {
			expectedCRC := binary.LittleEndian.Uint32(header[0:])
			actualCRC := crcSeed(t)
			if t.isRecyclable() {
				actualCRC = util.ExtendCRC32C(actualCRC, header[7:logRecyclableHeaderSize])
			}
			actualCRC = util.ExtendCRC32C(actualCRC, header[headerSize:headerSize+length])
			if expectedCRC != actualCRC {
				// The length itself may be corrupt, so skipping just this
				// record could land on garbage that looks like a record.
				r.dropSize = len(r.buf)
				r.buf = nil
				return nil, 0, resultBadChecksum, nil
			}
		}

		result := header[headerSize : headerSize+length]
		r.buf = r.buf[headerSize+length:]

		if t.isRecyclable() {
			logNumber := binary.LittleEndian.Uint32(header[7:])
			if logNumber != uint32(r.logNumber) {
				return nil, t, resultStaleRecord, nil
			}
		}

		// Skip physical records that started before initialOffset.
		if r.endOfBufferOffset-uint64(len(r.buf))-uint64(headerSize+length) < r.initialOffset {
			return nil, t, resultSkipped, nil
		}

		return result, t, resultFrame, nil
	}
}

// LastRecordOffset returns the physical offset of the last record returned
// by ReadRecord.
func (r *Reader) LastRecordOffset() uint64 {
	return r.lastRecordOffset
}

// LastRecordEnd returns the offset just past the last record returned by
// ReadRecord. Truncating the file there drops everything after it.
func (r *Reader) LastRecordEnd() uint64 {
	return r.lastRecordEnd
}

// EndOfBufferOffset returns the offset of the first byte not yet read from
// the source.
func (r *Reader) EndOfBufferOffset() uint64 {
	return r.endOfBufferOffset
}

// DroppedBytes returns the number of bytes reported as dropped.
func (r *Reader) DroppedBytes() uint64 {
	return r.droppedBytes
}

// Stopped reports whether reading ended at a corruption rather than at the
// end of the file.
func (r *Reader) Stopped() bool {
	return r.stopped
}

// Corrupted reports whether a corruption was seen somewhere other than the
// end of the log.
func (r *Reader) Corrupted() bool {
	return r.corrupted
}

func (r *Reader) IsEOF() bool {
	return r.eof && len(r.buf) == 0
}
