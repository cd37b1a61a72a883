//go:build linux

package gdbm

import "golang.org/x/sys/unix"

// fadviseRandom hints that access will jump between buckets and records.
// Applied on read-write opens. Best-effort: errors are silently ignored.
func fadviseRandom(fd int) {
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_RANDOM)
}

// fadviseSequential hints that the file will be read front to back, which
// suits full-database iteration. Best-effort: errors are silently ignored.
func fadviseSequential(fd int) {
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_SEQUENTIAL)
}
