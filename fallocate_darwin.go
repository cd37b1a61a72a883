//go:build darwin

package gdbm

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves disk blocks up to size so later writes inside the
// allocation frontier cannot fail on a short disk. On macOS this uses fcntl
// F_PREALLOCATE.
func fallocateFile(file *os.File, size int64) error {
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Offset:  0,
		Length:  size,
	}

	err := unix.FcntlFstore(file.Fd(), unix.F_PREALLOCATE, &fst)
	if err != nil {
		// Fallback to ftruncate if F_PREALLOCATE fails
		return unix.Ftruncate(int(file.Fd()), size)
	}

	// F_PREALLOCATE only reserves space, it doesn't set the file size
	return unix.Ftruncate(int(file.Fd()), size)
}
