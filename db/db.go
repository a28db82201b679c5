package db

import (
	"errors"
)

type Logger interface {
	Printf(format string, v ...any)
}

type CompressionType uint8

const (
	NoCompression CompressionType = iota
	SnappyCompression
)

// WALRecoveryMode controls how a log reader reacts to corrupted or
// truncated frames.
type WALRecoveryMode uint8

const (
	// Any corruption fails the read, including a torn record at the tail.
	AbsoluteConsistency WALRecoveryMode = iota
	// A torn or incomplete record at the end of the log is treated as a
	// normal end of stream. Corruption anywhere else fails the read.
	TolerateCorruptedTailRecords
	// Corrupted frames are dropped and reading resumes at the next record.
	SkipAnyCorruptedRecords
	// Reading stops at the first corruption as if the log ended there.
	PointInTimeRecovery
)

func (m WALRecoveryMode) String() string {
	switch m {
	case AbsoluteConsistency:
		return "absolute-consistency"
	case TolerateCorruptedTailRecords:
		return "tolerate-corrupted-tail-records"
	case SkipAnyCorruptedRecords:
		return "skip-any-corrupted-records"
	case PointInTimeRecovery:
		return "point-in-time-recovery"
	default:
		return "unknown"
	}
}

type EnvOptions struct {
	UseDirectReads  bool
	UseDirectWrites bool

	// LogicalSectorSize is the alignment required for direct I/O. Zero
	// selects the platform default.
	LogicalSectorSize int

	// WritableFileMaxBufferSize caps the in-memory buffer of a
	// WritableFileWriter.
	WritableFileMaxBufferSize int

	// BytesPerSync issues an incremental range sync every time this many
	// bytes have been flushed. Zero disables it.
	BytesPerSync uint64

	// PreallocationBlockSize makes writable files reserve space in chunks
	// of this size ahead of the write position. Zero disables it.
	PreallocationBlockSize uint64
}

func DefaultEnvOptions() EnvOptions {
	return EnvOptions{
		LogicalSectorSize:         4 * 1024,
		WritableFileMaxBufferSize: 1024 * 1024,
		BytesPerSync:              0,
		PreallocationBlockSize:    0,
	}
}

type Options struct {
	// Env defaults to the POSIX environment.
	Env    Env
	Logger Logger

	EnvOptions EnvOptions

	// RecycleLogFiles writes recyclable frames tagged with the log number,
	// which allows old log files to be reused without zeroing them.
	RecycleLogFiles bool
	// ManualFlush flushes the file writer after every physical frame.
	ManualFlush bool

	RecoveryMode WALRecoveryMode
	// ParanoidChecks verifies frame checksums when reading.
	ParanoidChecks bool
	Compression    CompressionType
}

func DefaultOptions() *Options {
	return &Options{
		EnvOptions:     DefaultEnvOptions(),
		RecoveryMode:   PointInTimeRecovery,
		ParanoidChecks: true,
		Compression:    NoCompression,
	}
}

var (
	ErrCorruption      = errors.New("corrupted")
	ErrNotSupported    = errors.New("not supported")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIO              = errors.New("io error")
	ErrClosed          = errors.New("closed")
)
