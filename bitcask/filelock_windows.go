//go:build windows

package bitcask

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

var ErrLocked = errors.New("file is already locked")

func LockFileNonBlocking(file *os.File) error {
	flags := windows.LOCKFILE_FAIL_IMMEDIATELY | windows.LOCKFILE_EXCLUSIVE_LOCK

	err := windows.LockFileEx(windows.Handle(file.Fd()), uint32(flags), 0, 1, 0, &windows.Overlapped{})
	if err != nil {
		return ErrLocked
	}
	return nil
}
