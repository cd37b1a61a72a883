// Package errors defines all exported error values for the gdbm library.
//
// This is the single source of truth for error values. Both the top-level
// gdbm package and its internal packages import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Format errors: the file cannot be opened as a database. Always fatal to Open.
var (
	ErrBadMagic      = errors.New("gdbm: unrecognized magic number")
	ErrCorruptHeader = errors.New("gdbm: inconsistent header geometry")
)

// Structural errors: a validated on-disk invariant does not hold.
// Fatal to the operation; the engine performs no automatic repair.
var (
	ErrBadBucket    = errors.New("gdbm: invalid bucket")
	ErrBadDirectory = errors.New("gdbm: directory entry out of range")
	ErrCorrupted    = errors.New("gdbm: structural invariant violation")
)

// State errors
var (
	ErrNotOpen   = errors.New("gdbm: database is not open")
	ErrReadOnly  = errors.New("gdbm: database is open read-only")
	ErrKeyExists = errors.New("gdbm: key already exists")
	ErrLocked    = errors.New("gdbm: database is locked by another process")
)

// IOError reports a failed read or write of a specific byte range.
// It wraps the underlying filesystem error.
type IOError struct {
	Op     string // "read", "write", or "sync"
	Offset uint64
	Length int
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("gdbm: %s of %d bytes at offset %d: %v", e.Op, e.Length, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
