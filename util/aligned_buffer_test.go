package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignedBufferAllocate(t *testing.T) {
	b := NewAlignedBuffer(4096)
	b.AllocateNewBuffer(5000, false)

	require.Equal(t, 8192, b.Capacity())
	require.Equal(t, 0, b.Size())
	require.True(t, IsAligned(b.buf, 4096))
}

func TestAlignedBufferAppendAndRead(t *testing.T) {
	b := NewAlignedBuffer(512)
	b.AllocateNewBuffer(512, false)

	n := b.Append([]byte("hello"))
	require.Equal(t, 5, n)
	require.Equal(t, []byte("hello"), b.Bytes())
	require.Equal(t, []byte("ell"), b.Read(1, 3))
	require.Equal(t, []byte("lo"), b.Read(3, 100))
	require.Nil(t, b.Read(5, 1))

	big := bytes.Repeat([]byte{'x'}, 1000)
	n = b.Append(big)
	require.Equal(t, 507, n)
	require.Equal(t, 0, b.Free())
}

func TestAlignedBufferGrowPreservesData(t *testing.T) {
	b := NewAlignedBuffer(512)
	b.AllocateNewBuffer(512, false)
	b.Append([]byte("abc"))

	b.AllocateNewBuffer(2048, true)
	require.Equal(t, 2048, b.Capacity())
	require.Equal(t, []byte("abc"), b.Bytes())
	require.True(t, IsAligned(b.buf, 512))

	b.AllocateNewBuffer(1024, false)
	require.Equal(t, 0, b.Size())
}

func TestAlignedBufferPadAndRefit(t *testing.T) {
	b := NewAlignedBuffer(16)
	b.AllocateNewBuffer(64, false)
	b.Append([]byte("0123456789abcdefXYZ"))

	b.PadToAlignmentWith(0)
	require.Equal(t, 32, b.Size())
	require.Equal(t, make([]byte, 13), b.Bytes()[19:])

	advance := TruncateToPageBoundary(16, 19)
	require.Equal(t, 16, advance)
	b.RefitTail(advance, 19-advance)
	require.Equal(t, []byte("XYZ"), b.Bytes())
}

func TestRoundup(t *testing.T) {
	require.Equal(t, 0, Roundup(0, 4096))
	require.Equal(t, 4096, Roundup(1, 4096))
	require.Equal(t, 4096, Roundup(4096, 4096))
	require.Equal(t, 8192, Roundup(4097, 4096))
	require.Equal(t, 4096, TruncateToPageBoundary(4096, 8191))
}

func TestAlignedSlice(t *testing.T) {
	p := AlignedSlice(100, 4096)
	require.Len(t, p, 100)
	require.True(t, IsAligned(p, 4096))
}
