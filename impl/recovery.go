package impl

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ls4154/golwal/db"
)

type RecoveryResult struct {
	// log numbers that were replayed, in order
	Logs    []uint64
	Records uint64
	// bytes reported as dropped across all logs
	DroppedBytes uint64
	// log truncated at its last intact record, zero if none
	TruncatedLog  uint64
	TruncatedSize uint64
	// logs left unreplayed after a corruption in point-in-time mode
	SkippedLogs []uint64
}

// MaxLogNumber returns the largest log number seen, replayed or not.
func (r *RecoveryResult) MaxLogNumber() uint64 {
	var n uint64
	for _, num := range r.Logs {
		n = max(n, num)
	}
	for _, num := range r.SkippedLogs {
		n = max(n, num)
	}
	return n
}

// RecoverLogs replays every log in dirname in ascending number order, passing
// each record to fn. The record is only valid during the call.
//
// In PointInTimeRecovery mode a log that ended early is truncated after its
// last intact record. If it ended at a corruption rather than a torn tail, no
// later log is replayed, since the history after it has a hole.
func RecoverLogs(dirname string, options *db.Options, fn func(logNum uint64, record []byte) error) (RecoveryResult, error) {
	var result RecoveryResult

	opt, err := validateOption(options)
	if err != nil {
		return result, err
	}

	filenames, err := opt.Env.GetChildren(dirname)
	if err != nil {
		return result, err
	}

	logs := []uint64{}
	for _, fname := range filenames {
		if ftype, num, ok := ParseFileName(fname); ok && ftype == FileTypeLog {
			logs = append(logs, num)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i] < logs[j] })

	for i, logNum := range logs {
		stop, err := recoverLogFile(dirname, logNum, opt, fn, &result)
		if err != nil {
			return result, err
		}
		result.Logs = append(result.Logs, logNum)
		if stop {
			result.SkippedLogs = append(result.SkippedLogs, logs[i+1:]...)
			if len(result.SkippedLogs) > 0 {
				opt.Logger.Printf("Skipping %d logs after corruption in log #%d", len(result.SkippedLogs), logNum)
			}
			break
		}
	}

	return result, nil
}

func recoverLogFile(dirname string, logNum uint64, opt *db.Options, fn func(uint64, []byte) error, result *RecoveryResult) (bool, error) {
	reader, closer, err := openLogReader(dirname, logNum, opt)
	if err != nil {
		return false, err
	}
	defer closer.Close()

	opt.Logger.Printf("Recovering log #%d", logNum)

	var scratch []byte
	for {
		record, err := reader.ReadRecord(scratch, opt.RecoveryMode)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			result.DroppedBytes += reader.DroppedBytes()
			return false, fmt.Errorf("recover log #%d: %w", logNum, err)
		}

		if err := fn(logNum, record); err != nil {
			return false, err
		}
		result.Records++
	}
	result.DroppedBytes += reader.DroppedBytes()

	if opt.RecoveryMode != db.PointInTimeRecovery || !reader.Stopped() {
		return false, nil
	}

	size := reader.LastRecordEnd()
	opt.Logger.Printf("log #%d: truncating to %d bytes", logNum, size)
	if err := opt.Env.TruncateFile(LogFileName(dirname, logNum), size); err != nil {
		return false, err
	}
	result.TruncatedLog = logNum
	result.TruncatedSize = size

	return reader.Corrupted(), nil
}
