package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ls4154/golwal"
	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/util"
)

func writeLog(t *testing.T, dir string, records ...string) string {
	t.Helper()
	l, err := golwal.CreateLog(dir, 4, db.DefaultOptions())
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, l.AddRecord([]byte(r), false))
	}
	require.NoError(t, l.Close())
	return golwal.LogFileName(dir, 4)
}

func TestDump(t *testing.T) {
	name := writeLog(t, t.TempDir(), "alpha", "beta")

	var out bytes.Buffer
	cfg := config{file: name, logNumber: 4, mode: db.AbsoluteConsistency}
	require.NoError(t, run(cfg, util.NopLogger, &out))
	require.Equal(t,
		"offset=0 length=5\n"+
			"offset=12 length=4\n"+
			"000004.log: 2 records, 9 bytes, 0 bytes dropped, last record ends at 23\n",
		out.String())
}

func TestDumpHexAndVerify(t *testing.T) {
	name := writeLog(t, t.TempDir(), "alpha")

	var out bytes.Buffer
	cfg := config{file: name, logNumber: 4, hex: true}
	require.NoError(t, run(cfg, util.NopLogger, &out))
	require.Contains(t, out.String(), "61 6c 70 68 61")

	out.Reset()
	cfg.verify = true
	require.NoError(t, run(cfg, util.NopLogger, &out))
	require.Equal(t, "000004.log: 1 records, 5 bytes, 0 bytes dropped, last record ends at 12\n", out.String())
}

func TestDumpCorruptLog(t *testing.T) {
	name := writeLog(t, t.TempDir(), "alpha", "beta", "gamma")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	data[12+7] ^= 0xff
	require.NoError(t, os.WriteFile(name, data, 0o644))

	var out bytes.Buffer
	cfg := config{file: name, logNumber: 4, mode: db.AbsoluteConsistency, verify: true}
	err = run(cfg, util.NopLogger, &out)
	require.ErrorIs(t, err, db.ErrCorruption)

	core, logs := observer.New(zap.InfoLevel)
	cfg.mode = db.SkipAnyCorruptedRecords
	out.Reset()
	require.NoError(t, run(cfg, util.NewZapLogger(zap.New(core)), &out))
	require.Contains(t, out.String(), "1 records")
	require.Equal(t, 1, logs.Len())
	require.Contains(t, logs.All()[0].Message, "log #4: dropping")

	cfg.mode = db.PointInTimeRecovery
	out.Reset()
	require.NoError(t, run(cfg, util.NopLogger, &out))
	require.Contains(t, out.String(), "last record ends at 12, stopped early")
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]db.WALRecoveryMode{
		"absolute": db.AbsoluteConsistency,
		"tolerate": db.TolerateCorruptedTailRecords,
		"Skip":     db.SkipAnyCorruptedRecords,
		" pit ":    db.PointInTimeRecovery,
	} {
		got, err := parseMode(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := parseMode("strict")
	require.Error(t, err)

	c, err := parseCompression("snappy")
	require.NoError(t, err)
	require.Equal(t, db.SnappyCompression, c)
	_, err = parseCompression("zstd")
	require.Error(t, err)
}

func TestRunMissingFile(t *testing.T) {
	cfg := config{file: filepath.Join(t.TempDir(), "000001.log")}
	require.Error(t, run(cfg, util.NopLogger, &bytes.Buffer{}))
}
