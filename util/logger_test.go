package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewZapLogger(zap.New(core))

	l.Printf("dropped %d bytes", 42)

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "dropped 42 bytes", entries[0].Message)
}

func TestLoggerOrNop(t *testing.T) {
	assert.Equal(t, NopLogger, LoggerOrNop(nil))
	assert.Equal(t, NopLogger, NewZapLogger(nil))
	NopLogger.Printf("ignored %d", 1)
}
