package fileio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/env"
)

type rangeSyncCall struct {
	offset, nbytes int64
	fileSize       uint64
}

// recordingFile wraps a WritableFile to observe range syncs and inject
// append failures.
type recordingFile struct {
	db.WritableFile
	rangeSyncs []rangeSyncCall
	syncs      int
	appendErr  error
}

func (f *recordingFile) RangeSync(offset, nbytes int64) error {
	f.rangeSyncs = append(f.rangeSyncs, rangeSyncCall{offset, nbytes, f.FileSize()})
	return f.WritableFile.RangeSync(offset, nbytes)
}

func (f *recordingFile) Sync() error {
	f.syncs++
	return f.WritableFile.Sync()
}

func (f *recordingFile) Append(data []byte) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.WritableFile.Append(data)
}

func newTestWriter(t *testing.T, opts db.EnvOptions) (*WritableFileWriter, *recordingFile, *env.MemEnv) {
	t.Helper()
	e := env.NewMemEnv()
	f, err := e.NewWritableFile("test", opts)
	require.NoError(t, err)
	rf := &recordingFile{WritableFile: f}
	return NewWritableFileWriter(rf, opts), rf, e
}

func contents(t *testing.T, e *env.MemEnv) []byte {
	t.Helper()
	data, ok := e.Contents("test")
	require.True(t, ok)
	return data
}

func TestWriterBuffersUntilFlush(t *testing.T) {
	w, _, e := newTestWriter(t, db.DefaultEnvOptions())

	require.NoError(t, w.Append([]byte("abc")))
	require.NoError(t, w.Append([]byte("def")))
	require.Empty(t, contents(t, e))
	require.Equal(t, uint64(6), w.FileSize())

	require.NoError(t, w.Flush())
	require.Equal(t, []byte("abcdef"), contents(t, e))
	require.NoError(t, w.Close())
}

func TestWriterGrowsBufferByDoubling(t *testing.T) {
	opts := db.DefaultEnvOptions()
	opts.WritableFileMaxBufferSize = 256 * 1024
	w, _, e := newTestWriter(t, opts)
	require.Equal(t, 64*1024, w.BufferCapacity())

	payload := bytes.Repeat([]byte{'a'}, 100*1024)
	require.NoError(t, w.Append(payload))
	require.Equal(t, 128*1024, w.BufferCapacity())
	require.Empty(t, contents(t, e))

	require.NoError(t, w.Append(payload))
	require.Equal(t, 256*1024, w.BufferCapacity())
	require.Empty(t, contents(t, e))

	require.NoError(t, w.Close())
	require.Equal(t, 200*1024, len(contents(t, e)))
}

func TestWriterWritesThroughLargeAppends(t *testing.T) {
	opts := db.DefaultEnvOptions()
	opts.WritableFileMaxBufferSize = 8 * 1024
	w, _, e := newTestWriter(t, opts)

	require.NoError(t, w.Append([]byte("head")))
	payload := bytes.Repeat([]byte{'z'}, 20000)
	require.NoError(t, w.Append(payload))

	// buffered head was flushed first, then the payload bypassed the buffer
	require.Equal(t, append([]byte("head"), payload...), contents(t, e))
	require.Equal(t, 8*1024, w.BufferCapacity())
	require.NoError(t, w.Close())
}

func TestWriterDirectIOWritesWholePages(t *testing.T) {
	opts := db.DefaultEnvOptions()
	opts.UseDirectWrites = true
	opts.LogicalSectorSize = 512
	w, _, e := newTestWriter(t, opts)
	require.True(t, w.UseDirectIO())

	first := bytes.Repeat([]byte{1}, 700)
	require.NoError(t, w.Append(first))
	require.NoError(t, w.Flush())

	data := contents(t, e)
	require.Len(t, data, 1024)
	require.Equal(t, first, data[:700])
	require.Equal(t, make([]byte, 324), data[700:])

	second := bytes.Repeat([]byte{2}, 400)
	require.NoError(t, w.Append(second))
	require.NoError(t, w.Flush())

	data = contents(t, e)
	require.Len(t, data, 1536)
	require.Equal(t, first, data[:700])
	require.Equal(t, second, data[700:1100])

	require.NoError(t, w.Close())
	data = contents(t, e)
	require.Equal(t, append(first, second...), data)
}

func TestWriterDirectIOLargeAppend(t *testing.T) {
	opts := db.DefaultEnvOptions()
	opts.UseDirectWrites = true
	opts.LogicalSectorSize = 512
	opts.WritableFileMaxBufferSize = 1024
	w, _, e := newTestWriter(t, opts)

	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i % 241)
	}
	require.NoError(t, w.Append([]byte("x")))
	require.NoError(t, w.Append(payload))
	require.NoError(t, w.Close())

	require.Equal(t, append([]byte("x"), payload...), contents(t, e))
}

func TestWriterRangeSyncSkipsRecentMegabyte(t *testing.T) {
	opts := db.DefaultEnvOptions()
	opts.BytesPerSync = 64 * 1024
	opts.WritableFileMaxBufferSize = 64 * 1024
	w, rf, _ := newTestWriter(t, opts)

	chunk := bytes.Repeat([]byte{'w'}, 10*1000)
	for i := 0; i < 300; i++ {
		require.NoError(t, w.Append(chunk))
		require.NoError(t, w.Flush())
	}

	require.NotEmpty(t, rf.rangeSyncs)
	var expectedOffset int64
	for _, c := range rf.rangeSyncs {
		require.Equal(t, expectedOffset, c.offset)
		require.GreaterOrEqual(t, c.nbytes, int64(opts.BytesPerSync))

		limit := (c.fileSize - 1024*1024) &^ (4*1024 - 1)
		require.LessOrEqual(t, uint64(c.offset+c.nbytes), limit)
		require.Zero(t, (c.offset+c.nbytes)%(4*1024))
		expectedOffset = c.offset + c.nbytes
	}
	require.Equal(t, uint64(expectedOffset), w.LastSyncSize())
	require.NoError(t, w.Close())
}

func TestWriterNoRangeSyncWhenDisabled(t *testing.T) {
	opts := db.DefaultEnvOptions()
	w, rf, _ := newTestWriter(t, opts)

	chunk := bytes.Repeat([]byte{'w'}, 512*1024)
	for i := 0; i < 6; i++ {
		require.NoError(t, w.Append(chunk))
		require.NoError(t, w.Flush())
	}
	require.Empty(t, rf.rangeSyncs)
	require.NoError(t, w.Close())
}

func TestWriterSync(t *testing.T) {
	w, rf, e := newTestWriter(t, db.DefaultEnvOptions())

	require.NoError(t, w.Sync())
	require.Equal(t, 0, rf.syncs)

	require.NoError(t, w.Append([]byte("durable")))
	require.True(t, w.PendingSync())
	require.NoError(t, w.Sync())
	require.False(t, w.PendingSync())
	require.Equal(t, 1, rf.syncs)
	require.Equal(t, []byte("durable"), contents(t, e))
	require.NoError(t, w.Close())
}

func TestWriterPropagatesWriteErrors(t *testing.T) {
	w, rf, _ := newTestWriter(t, db.DefaultEnvOptions())
	injected := errors.New("disk full")
	rf.appendErr = injected

	require.NoError(t, w.Append([]byte("abc")))
	require.ErrorIs(t, w.Flush(), injected)
	require.ErrorIs(t, w.Close(), injected)
}

func TestWriterCloseRefusesClosedFile(t *testing.T) {
	w, rf, _ := newTestWriter(t, db.DefaultEnvOptions())
	require.NoError(t, rf.Close())

	require.ErrorIs(t, w.Close(), db.ErrIO)
	require.ErrorIs(t, w.Close(), db.ErrClosed)
	require.ErrorIs(t, w.Append([]byte("x")), db.ErrClosed)
}
