//go:build linux

package gdbm

import "golang.org/x/sys/unix"

// MADV_POPULATE_READ was added in Linux 5.14.
// On older kernels, madvise returns EINVAL which we ignore.
const madvPopulateRead = 22

// prefaultRegion asks the kernel to fault in the read-only mapping up front
// so the first lookups do not stall on page faults.
func prefaultRegion(data []byte) {
	if len(data) == 0 {
		return
	}
	// Best-effort: ignore all errors (EINVAL on old kernels, or other failures)
	_ = unix.Madvise(data, madvPopulateRead)
}
