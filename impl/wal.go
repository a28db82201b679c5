package impl

import (
	"fmt"
	"io"
	"sync"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/fileio"
	"github.com/ls4154/golwal/log"
)

// Log is a log file open for appending. AddRecord may be called from many
// goroutines; concurrent records are written as a group.
type Log struct {
	number  uint64
	options *db.Options
	file    *fileio.WritableFileWriter
	writer  *log.Writer
	ws      *writeSerializer

	// held for reading by AddRecord and for writing by Close
	closeMu sync.RWMutex
	closed  bool

	mu sync.Mutex
	// first write error; the file contents are unknown after it
	err error
}

// CreateLog creates dir/NNNNNN.log, replacing any file with that name.
func CreateLog(dirname string, num uint64, options *db.Options) (*Log, error) {
	opt, err := validateOption(options)
	if err != nil {
		return nil, err
	}
	fname := LogFileName(dirname, num)
	f, err := opt.Env.NewWritableFile(fname, opt.EnvOptions)
	if err != nil {
		return nil, err
	}
	opt.Logger.Printf("Created log #%d", num)
	return newLog(num, f, opt), nil
}

// ReuseLog renames the log oldNum to newNum and overwrites it from the start.
// Bytes past the new end keep their old frames, which the reader tells apart
// by log number, so recycling must be enabled.
func ReuseLog(dirname string, oldNum, newNum uint64, options *db.Options) (*Log, error) {
	opt, err := validateOption(options)
	if err != nil {
		return nil, err
	}
	if !opt.RecycleLogFiles {
		return nil, fmt.Errorf("%w: reusing log #%d requires recycled log files", db.ErrInvalidArgument, oldNum)
	}
	if oldNum == newNum {
		return nil, fmt.Errorf("%w: reusing log #%d under the same number", db.ErrInvalidArgument, oldNum)
	}
	f, err := opt.Env.ReuseWritableFile(LogFileName(dirname, oldNum), LogFileName(dirname, newNum), opt.EnvOptions)
	if err != nil {
		return nil, err
	}
	opt.Logger.Printf("Reusing log #%d as #%d", oldNum, newNum)
	return newLog(newNum, f, opt), nil
}

func newLog(num uint64, f db.WritableFile, opt *db.Options) *Log {
	file := fileio.NewWritableFileWriter(f, opt.EnvOptions)
	var writerOpts []log.WriterOption
	if opt.Compression != db.NoCompression {
		writerOpts = append(writerOpts, log.WithCompression(opt.Compression))
	}
	l := &Log{
		number:  num,
		options: opt,
		file:    file,
		writer:  log.NewWriter(file, num, opt.RecycleLogFiles, opt.ManualFlush, writerOpts...),
	}
	l.ws = newWriteSerializer(l.applyGroup)
	l.ws.Run()
	return l
}

// AddRecord appends record. With sync set it returns once the record is
// durable.
func (l *Log) AddRecord(record []byte, sync bool) error {
	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if l.closed {
		return db.ErrClosed
	}
	return l.ws.Write(record, sync)
}

func (l *Log) applyGroup(records [][]byte, sync bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return l.err
	}
	for _, record := range records {
		if err := l.writer.AddRecord(record); err != nil {
			return l.setError(err)
		}
	}
	if !l.options.ManualFlush {
		if err := l.writer.Flush(); err != nil {
			return l.setError(err)
		}
	}
	if sync {
		if err := l.writer.Sync(); err != nil {
			return l.setError(err)
		}
	}
	return nil
}

func (l *Log) setError(err error) error {
	l.options.Logger.Printf("log #%d: write error: %v", l.number, err)
	l.err = fmt.Errorf("log #%d: %w", l.number, err)
	return l.err
}

// Sync makes every record added so far durable.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if err := l.writer.Sync(); err != nil {
		return l.setError(err)
	}
	return nil
}

// Close waits for pending records, syncs and closes the file.
func (l *Log) Close() error {
	l.closeMu.Lock()
	if l.closed {
		l.closeMu.Unlock()
		return db.ErrClosed
	}
	l.closed = true
	l.closeMu.Unlock()

	l.ws.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.err
	if err == nil {
		err = l.writer.Sync()
	}
	if cerr := l.writer.Close(); err == nil {
		err = cerr
	}
	return err
}

func (l *Log) Number() uint64 {
	return l.number
}

// Size returns the number of bytes appended so far.
func (l *Log) Size() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.FileSize()
}

// OpenLogReader opens dir/NNNNNN.log for reading. The returned closer
// releases the file.
func OpenLogReader(dirname string, num uint64, options *db.Options) (*log.Reader, io.Closer, error) {
	opt, err := validateOption(options)
	if err != nil {
		return nil, nil, err
	}
	return openLogReader(dirname, num, opt)
}

func openLogReader(dirname string, num uint64, opt *db.Options) (*log.Reader, io.Closer, error) {
	f, err := opt.Env.NewSequentialFile(LogFileName(dirname, num), opt.EnvOptions)
	if err != nil {
		return nil, nil, err
	}
	src := fileio.NewSequentialFileReader(f)
	reporter := log.LoggingReporter{Logger: opt.Logger, LogNumber: num}

	var readerOpts []log.ReaderOption
	if opt.Compression != db.NoCompression {
		readerOpts = append(readerOpts, log.WithDecompression(opt.Compression))
	}
	return log.NewReader(src, num, reporter, opt.ParanoidChecks, 0, readerOpts...), src, nil
}
