package gdbm

import (
	"os"

	"github.com/edsrzf/mmap-go"

	gdbmerrors "github.com/jmallard/gdbm/errors"
)

// blockFile is the engine's only route to the disk: positional reads and
// writes of exact byte ranges. Read-only databases are memory mapped and
// served straight from the mapping; writable databases use pread/pwrite on
// the underlying descriptor.
type blockFile struct {
	f        *os.File
	mapping  mmap.MMap // nil unless read-only
	size     uint64    // physical size at open, maintained across writes
	readOnly bool
}

func openBlockFile(f *os.File, readOnly bool) (*blockFile, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, &gdbmerrors.IOError{Op: "stat", Err: err}
	}
	bf := &blockFile{f: f, size: uint64(st.Size()), readOnly: readOnly}

	if readOnly && bf.size > 0 {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			return nil, &gdbmerrors.IOError{Op: "mmap", Length: int(bf.size), Err: err}
		}
		bf.mapping = m
		prefaultRegion(m)
	}
	return bf, nil
}

// readAt returns exactly length bytes starting at ofs. On the mapped path the
// returned slice aliases the mapping and must not be retained across close.
func (bf *blockFile) readAt(ofs uint64, length int) ([]byte, error) {
	if ofs+uint64(length) > bf.size {
		return nil, &gdbmerrors.IOError{Op: "read", Offset: ofs, Length: length, Err: os.ErrInvalid}
	}
	if bf.mapping != nil {
		return bf.mapping[ofs : ofs+uint64(length)], nil
	}
	buf := make([]byte, length)
	if _, err := bf.f.ReadAt(buf, int64(ofs)); err != nil {
		return nil, &gdbmerrors.IOError{Op: "read", Offset: ofs, Length: length, Err: err}
	}
	return buf, nil
}

// writeAt writes buf at ofs, growing the tracked size when the write extends
// the file.
func (bf *blockFile) writeAt(ofs uint64, buf []byte) error {
	if bf.readOnly {
		return gdbmerrors.ErrReadOnly
	}
	if _, err := bf.f.WriteAt(buf, int64(ofs)); err != nil {
		return &gdbmerrors.IOError{Op: "write", Offset: ofs, Length: len(buf), Err: err}
	}
	if end := ofs + uint64(len(buf)); end > bf.size {
		bf.size = end
	}
	return nil
}

// sync flushes written data and metadata to stable storage.
func (bf *blockFile) sync() error {
	if bf.readOnly {
		return nil
	}
	if err := bf.f.Sync(); err != nil {
		return &gdbmerrors.IOError{Op: "sync", Err: err}
	}
	return nil
}

func (bf *blockFile) close() error {
	var firstErr error
	if bf.mapping != nil {
		if err := bf.mapping.Unmap(); err != nil && firstErr == nil {
			firstErr = &gdbmerrors.IOError{Op: "munmap", Err: err}
		}
		bf.mapping = nil
	}
	if err := bf.f.Close(); err != nil && firstErr == nil {
		firstErr = &gdbmerrors.IOError{Op: "close", Err: err}
	}
	return firstErr
}
