package impl

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

type FileType uint8

const (
	FileTypeLog FileType = iota
	FileTypeTemp
	FileTypeInfoLog
)

func (t FileType) String() string {
	switch t {
	case FileTypeLog:
		return "log"
	case FileTypeTemp:
		return "temp"
	case FileTypeInfoLog:
		return "info-log"
	default:
		return "unknown"
	}
}

func LogFileName(dirname string, num uint64) string {
	return filepath.Join(dirname, fmt.Sprintf("%06d.log", num))
}

func TempFileName(dirname string, num uint64) string {
	return filepath.Join(dirname, fmt.Sprintf("%06d.dbtmp", num))
}

func InfoLogFileName(dirname string) string {
	return filepath.Join(dirname, "LOG")
}

// ParseFileName classifies a base name found in a log directory.
func ParseFileName(filename string) (FileType, uint64, bool) {
	if filename == "LOG" || filename == "LOG.old" {
		return FileTypeInfoLog, 0, true
	}

	var fileType FileType
	if strings.HasSuffix(filename, ".log") {
		filename = strings.TrimSuffix(filename, ".log")
		fileType = FileTypeLog
	} else if strings.HasSuffix(filename, ".dbtmp") {
		filename = strings.TrimSuffix(filename, ".dbtmp")
		fileType = FileTypeTemp
	} else {
		return 0, 0, false
	}

	// strconv accepts a leading sign, file numbers never have one
	if filename == "" || filename[0] < '0' || filename[0] > '9' {
		return 0, 0, false
	}
	num, err := strconv.ParseUint(filename, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return fileType, num, true
}
