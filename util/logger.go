package util

import (
	"go.uber.org/zap"

	"github.com/ls4154/golwal/db"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// NopLogger discards everything.
var NopLogger db.Logger = nopLogger{}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger to db.Logger. Messages are emitted at
// info level.
func NewZapLogger(l *zap.Logger) db.Logger {
	if l == nil {
		return NopLogger
	}
	return &zapLogger{sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *zapLogger) Printf(format string, v ...any) {
	l.sugar.Infof(format, v...)
}

func LoggerOrNop(l db.Logger) db.Logger {
	if l == nil {
		return NopLogger
	}
	return l
}
