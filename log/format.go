package log

import (
	"github.com/ls4154/golwal/util"
)

const (
	logBlockSize = 32 * 1024

	// Physical record header format:
	//   checksum(4B), length(2B), type(1B)
	logHeaderSize = 4 + 2 + 1

	// Recyclable header format:
	//   checksum(4B), length(2B), type(1B), log number(4B)
	logRecyclableHeaderSize = logHeaderSize + 4
)

type logRecordType byte

const (
	// Physical types persisted in WAL.

	// Zero is reserved for preallocated and zero-filled regions.
	logRecordZero   logRecordType = 0
	logRecordFull   logRecordType = 1
	logRecordFirst  logRecordType = 2
	logRecordMiddle logRecordType = 3
	logRecordLast   logRecordType = 4

	// Recyclable variants carry the log number so frames left over from a
	// previous use of the file can be told apart.
	logRecordRecyclableFull   logRecordType = 5
	logRecordRecyclableFirst  logRecordType = 6
	logRecordRecyclableMiddle logRecordType = 7
	logRecordRecyclableLast   logRecordType = 8

	logMaxRecordType = logRecordRecyclableLast
)

// Reader-only results of readPhysicalRecord, never persisted. They live
// outside the byte range so they cannot collide with types on disk.
type readResult int

const (
	resultFrame readResult = iota
	// end of file
	resultEOF
	// header cut off by the end of the file
	resultTruncatedHeader
	// payload cut off by the end of the file
	resultTruncatedRecord
	// length runs past the end of the block
	resultBadRecordLen
	resultBadChecksum
	// zero type with zero length: preallocated or zero-filled space
	resultZeroPadding
	// recyclable frame written under another log number
	resultStaleRecord
	// frame lying before the initial offset
	resultSkipped
)

// fragmentPosition is where a frame sits within its logical record.
type fragmentPosition uint8

const (
	positionFull fragmentPosition = iota
	positionFirst
	positionMiddle
	positionLast
)

var typeCRC [logMaxRecordType + 1]uint32

func init() {
	for t := range typeCRC {
		typeCRC[t] = util.ChecksumCRC32C([]byte{byte(t)})
	}
}

func (t logRecordType) isRecyclable() bool {
	return t >= logRecordRecyclableFull && t <= logRecordRecyclableLast
}

func (t logRecordType) isKnown() bool {
	return t >= logRecordFull && t <= logMaxRecordType
}

func (t logRecordType) headerSize() int {
	if t.isRecyclable() {
		return logRecyclableHeaderSize
	}
	return logHeaderSize
}

// position reports where a known frame type sits in its record.
func (t logRecordType) position() fragmentPosition {
	switch t {
	case logRecordFull, logRecordRecyclableFull:
		return positionFull
	case logRecordFirst, logRecordRecyclableFirst:
		return positionFirst
	case logRecordMiddle, logRecordRecyclableMiddle:
		return positionMiddle
	case logRecordLast, logRecordRecyclableLast:
		return positionLast
	default:
		panic("log: position of unknown record type")
	}
}

func recordTypeFor(pos fragmentPosition, recyclable bool) logRecordType {
	var t logRecordType
	switch pos {
	case positionFull:
		t = logRecordFull
	case positionFirst:
		t = logRecordFirst
	case positionMiddle:
		t = logRecordMiddle
	case positionLast:
		t = logRecordLast
	default:
		panic("log: unknown fragment position")
	}
	if recyclable {
		t += logRecordRecyclableFull - logRecordFull
	}
	return t
}

func crcSeed(t logRecordType) uint32 {
	if t <= logMaxRecordType {
		return typeCRC[t]
	}
	return util.ChecksumCRC32C([]byte{byte(t)})
}

// Payload compression markers, the first byte of a compressed record.
const (
	compressionTagNone   byte = 0
	compressionTagSnappy byte = 1
)
