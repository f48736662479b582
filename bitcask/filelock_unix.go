//go:build darwin || dragonfly || freebsd || illumos || linux || netbsd || openbsd

package bitcask

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var ErrLocked = errors.New("file is already locked")

func LockFileNonBlocking(file *os.File) error {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if err == unix.EWOULDBLOCK {
			return ErrLocked
		}
		return errors.Wrap(err, "flock")
	}
	return nil
}
