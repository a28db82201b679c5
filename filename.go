package golwal

import (
	"github.com/ls4154/golwal/impl"
)

type FileType = impl.FileType

const (
	FileTypeLog     = impl.FileTypeLog
	FileTypeTemp    = impl.FileTypeTemp
	FileTypeInfoLog = impl.FileTypeInfoLog
)

func LogFileName(dirname string, num uint64) string {
	return impl.LogFileName(dirname, num)
}

func ParseFileName(filename string) (FileType, uint64, bool) {
	return impl.ParseFileName(filename)
}
