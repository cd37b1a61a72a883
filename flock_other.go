//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package gdbm

import "os"

// lockFile is a no-op on platforms without flock. Callers own the
// single-writer guarantee there.
func lockFile(f *os.File) error {
	return nil
}

func unlockFile(f *os.File) {
	// No-op
}

// fsBlockSize falls back to a common page-sized default.
func fsBlockSize(f *os.File) uint32 {
	return 4096
}
