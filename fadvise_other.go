//go:build !linux

package gdbm

// fadviseRandom is a no-op on non-Linux platforms.
func fadviseRandom(fd int) {
	// No-op
}

// fadviseSequential is a no-op on non-Linux platforms.
// FADV_SEQUENTIAL is Linux-specific.
func fadviseSequential(fd int) {
	// No-op
}
