//go:build linux

package env

import (
	"golang.org/x/sys/unix"
)

const directIOFlag = unix.O_DIRECT

func setNoCache(fd int) error {
	return nil
}

func fallocate(fd int, offset, length int64) error {
	return unix.Fallocate(fd, unix.FALLOC_FL_KEEP_SIZE, offset, length)
}

func syncFileRange(fd int, offset, nbytes int64) error {
	return unix.SyncFileRange(fd, offset, nbytes, unix.SYNC_FILE_RANGE_WRITE)
}

func fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}
