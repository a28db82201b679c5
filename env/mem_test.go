package env

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/util"
)

func TestMemEnvReadWrite(t *testing.T) {
	e := NewMemEnv()
	opts := db.DefaultEnvOptions()
	name := filepath.Join("wal", "000003.log")

	w, err := e.NewWritableFile(name, opts)
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("hello")))
	require.NoError(t, w.Close())
	require.False(t, w.IsOpen())
	require.ErrorIs(t, w.Close(), db.ErrIO)

	w, err = e.ReopenWritableFile(name, opts)
	require.NoError(t, err)
	require.Equal(t, uint64(5), w.FileSize())
	require.NoError(t, w.Append([]byte(" world")))

	r, err := e.NewSequentialFile(name, opts)
	require.NoError(t, err)
	got, err := r.Read(5, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
	require.NoError(t, r.Skip(1))
	got, err = r.Read(100, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), got)

	children, err := e.GetChildren("wal")
	require.NoError(t, err)
	require.Equal(t, []string{"000003.log"}, children)

	require.NoError(t, e.TruncateFile(name, 3))
	size, err := e.GetFileSize(name)
	require.NoError(t, err)
	require.Equal(t, uint64(3), size)

	require.NoError(t, e.RenameFile(name, filepath.Join("wal", "000004.log")))
	require.False(t, e.FileExists(name))
	_, err = e.NewSequentialFile(name, opts)
	require.Error(t, err)
}

func TestMemEnvDirectWritesMustBeAligned(t *testing.T) {
	e := NewMemEnv()
	opts := db.DefaultEnvOptions()
	opts.UseDirectWrites = true
	opts.LogicalSectorSize = 512

	w, err := e.NewWritableFile("f", opts)
	require.NoError(t, err)

	err = w.PositionedAppend(make([]byte, 100), 0)
	require.ErrorIs(t, err, db.ErrInvalidArgument)

	page := util.AlignedSlice(512, 512)
	require.NoError(t, w.PositionedAppend(page, 512))
	require.Equal(t, uint64(1024), w.FileSize())
}

func TestMemEnvReuseWritableFile(t *testing.T) {
	e := NewMemEnv()
	opts := db.DefaultEnvOptions()
	e.SetContents("old.log", []byte("0123456789"))

	w, err := e.ReuseWritableFile("old.log", "new.log", opts)
	require.NoError(t, err)
	require.Equal(t, uint64(0), w.FileSize())
	require.NoError(t, w.Append([]byte("abc")))
	require.Equal(t, uint64(3), w.FileSize())

	require.False(t, e.FileExists("old.log"))
	data, ok := e.Contents("new.log")
	require.True(t, ok)
	require.Equal(t, []byte("abc3456789"), data)

	_, err = e.ReuseWritableFile("missing.log", "other.log", opts)
	require.Error(t, err)
}
