package golwal

import (
	"io"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/impl"
	"github.com/ls4154/golwal/log"
)

type Log = impl.Log

type RecoveryResult = impl.RecoveryResult

func CreateLog(dirname string, num uint64, options *db.Options) (*Log, error) {
	return impl.CreateLog(dirname, num, options)
}

func ReuseLog(dirname string, oldNum, newNum uint64, options *db.Options) (*Log, error) {
	return impl.ReuseLog(dirname, oldNum, newNum, options)
}

func OpenLogReader(dirname string, num uint64, options *db.Options) (*log.Reader, io.Closer, error) {
	return impl.OpenLogReader(dirname, num, options)
}

func RecoverLogs(dirname string, options *db.Options, fn func(logNum uint64, record []byte) error) (RecoveryResult, error) {
	return impl.RecoverLogs(dirname, options, fn)
}
