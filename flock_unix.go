//go:build linux || darwin || freebsd || netbsd || openbsd

package gdbm

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	gdbmerrors "github.com/jmallard/gdbm/errors"
)

// lockFile takes a non-blocking exclusive advisory lock on the whole file.
// A second writer gets ErrLocked immediately instead of queueing.
func lockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) {
		return gdbmerrors.ErrLocked
	}
	return &gdbmerrors.IOError{Op: "flock", Err: err}
}

func unlockFile(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// fsBlockSize returns the filesystem's preferred I/O block size, used as the
// default block size for new databases.
func fsBlockSize(f *os.File) uint32 {
	var st unix.Statfs_t
	if err := unix.Fstatfs(int(f.Fd()), &st); err != nil || st.Bsize < minBlockSize {
		return 4096
	}
	return uint32(st.Bsize)
}
