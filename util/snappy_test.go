package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnappyCompression(t *testing.T) {
	input := make([]byte, 10000)
	for i := 0; i < 10000; i++ {
		input[i] = byte(i)
	}

	dst := make([]byte, SnappyMaxEncodedLen(len(input)))
	compressed := SnappyCompressTo(dst, input)
	require.Less(t, len(compressed), len(input))

	uncompressed, err := SnappyUncompressTo(make([]byte, 0, 16), compressed)
	require.NoError(t, err)
	require.Equal(t, input, uncompressed)

	_, err = SnappyUncompressTo(nil, []byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
