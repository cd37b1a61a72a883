//go:build !linux && !darwin

package gdbm

import "os"

// fallocateFile extends the file to size. Without a native fallocate the
// size is set but disk blocks may not actually be reserved.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}
