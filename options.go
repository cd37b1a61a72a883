package gdbm

import "encoding/binary"

// Option is a functional option for Open and Create.
type Option func(*config)

type config struct {
	blockSize uint32
	order     binary.ByteOrder
	width     int
	numsync   bool
	noLock    bool
	fadvise   bool
}

func defaultConfig() *config {
	return &config{
		blockSize: 0, // 0 = take the filesystem's preferred block size
		order:     binary.LittleEndian,
		width:     8,
		numsync:   true,
	}
}

func (c *config) magic() Magic {
	return magicFor(c.width, c.order, c.numsync)
}

// WithBlockSize sets the block size used when creating a new database. It is
// ignored when opening an existing file, whose header is authoritative. Values
// below the minimum viable block size are rejected by Create.
func WithBlockSize(size uint32) Option {
	return func(c *config) {
		c.blockSize = size
	}
}

// WithByteOrder sets the byte order of every on-disk integer in a newly
// created database. Ignored when opening an existing file.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(c *config) {
		c.order = order
	}
}

// WithOffsetWidth sets the on-disk file offset width, 4 or 8 bytes, for a
// newly created database. Four-byte offsets cap the file at 4 GiB. Ignored
// when opening an existing file.
func WithOffsetWidth(width int) Option {
	return func(c *config) {
		c.width = width
	}
}

// WithNumsync selects whether a newly created database carries the numsync
// magic variant, on by default. The flag changes only the magic number; the
// engine carries it through unmodified so files remain interchangeable with
// tools that expect it.
func WithNumsync(enabled bool) Option {
	return func(c *config) {
		c.numsync = enabled
	}
}

// WithoutLock disables the advisory file lock taken on open. The caller then
// owns the exclusion guarantee: concurrent writers corrupt the database.
func WithoutLock() Option {
	return func(c *config) {
		c.noLock = true
	}
}

// WithSequentialHint advises the kernel that the file will be read
// sequentially, which suits full-database iteration. No-op on platforms
// without fadvise.
func WithSequentialHint() Option {
	return func(c *config) {
		c.fadvise = true
	}
}
