package util

import (
	"github.com/golang/snappy"
)

// SnappyCompressTo encodes into dst when it has at least
// SnappyMaxEncodedLen(len(input)) bytes.
func SnappyCompressTo(dst, input []byte) []byte {
	return snappy.Encode(dst, input)
}

func SnappyMaxEncodedLen(n int) int {
	return snappy.MaxEncodedLen(n)
}

// SnappyUncompressTo decodes into dst when it is large enough.
func SnappyUncompressTo(dst, input []byte) ([]byte, error) {
	return snappy.Decode(dst[:cap(dst)], input)
}
