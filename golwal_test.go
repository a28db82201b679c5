package golwal

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/env"
)

func TestLogLifecycle(t *testing.T) {
	dir := t.TempDir()
	opt := db.DefaultOptions()
	opt.RecycleLogFiles = true

	l, err := CreateLog(dir, 1, opt)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.AddRecord([]byte(fmt.Sprintf("old-%03d", i)), false))
	}
	require.NoError(t, l.Close())

	l, err = ReuseLog(dir, 1, 2, opt)
	require.NoError(t, err)
	require.NoError(t, l.AddRecord([]byte("fresh"), true))
	require.NoError(t, l.Close())

	r, closer, err := OpenLogReader(dir, 2, opt)
	require.NoError(t, err)
	record, err := r.ReadRecord(nil, db.TolerateCorruptedTailRecords)
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), record)
	_, err = r.ReadRecord(nil, db.TolerateCorruptedTailRecords)
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, closer.Close())

	var got []string
	result, err := RecoverLogs(dir, opt, func(logNum uint64, record []byte) error {
		require.Equal(t, uint64(2), logNum)
		got = append(got, string(record))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"fresh"}, got)
	require.Equal(t, []uint64{2}, result.Logs)
	require.Equal(t, uint64(2), result.MaxLogNumber())
}

func TestFileNames(t *testing.T) {
	name := LogFileName("dir", 42)
	require.Equal(t, filepath.Join("dir", "000042.log"), name)

	ftype, num, ok := ParseFileName(filepath.Base(name))
	require.True(t, ok)
	require.Equal(t, FileTypeLog, ftype)
	require.Equal(t, uint64(42), num)

	_, _, ok = ParseFileName("CURRENT")
	require.False(t, ok)
}

func TestRecoverLogsPropagatesErrors(t *testing.T) {
	opt := db.DefaultOptions()
	opt.Env = env.NewMemEnv()

	l, err := CreateLog("/db", 3, opt)
	require.NoError(t, err)
	require.NoError(t, l.AddRecord([]byte("x"), true))
	require.NoError(t, l.Close())

	errApply := errors.New("apply")
	_, err = RecoverLogs("/db", opt, func(uint64, []byte) error { return errApply })
	require.ErrorIs(t, err, errApply)
}
