//go:build linux || darwin

package env

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ls4154/golwal/db"
)

// Syscall entry points. Tests replace them to inject EINTR and short
// transfers.
var (
	sysOpen          = unix.Open
	sysRead          = unix.Read
	sysWrite         = unix.Write
	sysPread         = unix.Pread
	sysPwrite        = unix.Pwrite
	sysSeek          = unix.Seek
	sysFtruncate     = unix.Ftruncate
	sysFdatasync     = fdatasync
	sysSyncFileRange = syncFileRange
	sysFallocate     = fallocate
)

func ioError(op, name string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", db.ErrIO, op, name, err)
}

// openRetry opens name, retrying while the call is interrupted.
func openRetry(name string, flags int, mode uint32) (int, error) {
	for {
		fd, err := sysOpen(name, flags, mode)
		if err == unix.EINTR {
			continue
		}
		return fd, err
	}
}

// retryEINTR calls fn until it is not interrupted.
func retryEINTR(fn func() error) error {
	for {
		if err := fn(); err != unix.EINTR {
			return err
		}
	}
}
