//go:build darwin

package env

import (
	"golang.org/x/sys/unix"
)

// There is no O_DIRECT on darwin. F_NOCACHE is applied after open instead.
const directIOFlag = 0

func setNoCache(fd int) error {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_NOCACHE, 1)
	return err
}

func fallocate(fd int, offset, length int64) error {
	return nil
}

func syncFileRange(fd int, offset, nbytes int64) error {
	return unix.Fsync(fd)
}

func fdatasync(fd int) error {
	return unix.Fsync(fd)
}
