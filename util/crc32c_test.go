package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC32CStandardResults(t *testing.T) {
	// From rfc3720 section B.4.
	buf := make([]byte, 32)
	require.Equal(t, uint32(0x8a9136aa), ChecksumCRC32C(buf))

	for i := range buf {
		buf[i] = 0xff
	}
	require.Equal(t, uint32(0x62a8ab43), ChecksumCRC32C(buf))

	for i := range buf {
		buf[i] = byte(i)
	}
	require.Equal(t, uint32(0x46dd794e), ChecksumCRC32C(buf))
}

func TestCRC32CExtend(t *testing.T) {
	whole := ChecksumCRC32C([]byte("hello world"))
	extended := ExtendCRC32C(ChecksumCRC32C([]byte("hello ")), []byte("world"))
	require.Equal(t, whole, extended)

	require.Equal(t, ChecksumCRC32C([]byte("a")), ExtendCRC32C(0, []byte("a")))
}
