package gdbm

import (
	gdbmerrors "github.com/jmallard/gdbm/errors"
)

// header is the superblock: the first bytes of every database file.
//
// Layout (w = offset width from the magic; all integers in the file's order):
//
//	Offset  Size  Field
//	0       4     magic
//	4       4     block_size
//	8       w     directory_offset
//	8+w     4     directory_size_bytes
//	12+w    4     directory_bits
//	16+w    4     bucket_size_bytes
//	20+w    4     bucket_element_capacity
//	24+w    w     next_free_block_offset
//	24+2w   w     avail_list_head (0 = empty chain)
//
// It is written once at creation and updated in place whenever the
// directory moves or the allocation frontier advances.
type header struct {
	magic       Magic
	blockSize   uint32
	dirOfs      uint64
	dirSize     uint32
	dirBits     uint32
	bucketSize  uint32
	bucketElems uint32
	nextBlock   uint64 // allocation frontier: first byte past the file body
	availHead   uint64 // offset of the first avail block, 0 when none

	dirty bool // not stored
}

// newHeader lays out a fresh database: header region, directory, and one
// empty bucket shared by every directory slot.
func newHeader(m Magic, blockSize uint32) *header {
	lay := m.layout()
	dirSize, dirBits := buildDirSize(lay.width, blockSize)

	h := &header{
		magic:       m,
		blockSize:   blockSize,
		dirOfs:      uint64(blockSize),
		dirSize:     dirSize,
		dirBits:     dirBits,
		bucketSize:  blockSize,
		bucketElems: lay.bucketElemCapacity(blockSize),
		dirty:       true,
	}
	h.nextBlock = h.dirOfs + uint64(dirSize) + uint64(h.bucketSize)
	return h
}

// firstBucketOfs is the offset of the initial bucket created by newHeader.
func (h *header) firstBucketOfs() uint64 {
	return h.dirOfs + uint64(h.dirSize)
}

func decodeHeader(m Magic, buf []byte, fileSize uint64) (*header, error) {
	lay := m.layout()
	if len(buf) < lay.headerSize() {
		return nil, gdbmerrors.ErrCorruptHeader
	}
	r := &wireReader{lay: lay, buf: buf}

	h := &header{magic: m}
	if r.uint32() != m.value() {
		return nil, gdbmerrors.ErrBadMagic
	}
	h.blockSize = r.uint32()
	h.dirOfs = r.offset()
	h.dirSize = r.uint32()
	h.dirBits = r.uint32()
	h.bucketSize = r.uint32()
	h.bucketElems = r.uint32()
	h.nextBlock = r.offset()
	h.availHead = r.offset()

	if err := h.validate(lay, fileSize); err != nil {
		return nil, err
	}
	return h, nil
}

// validate checks the geometry invariants the rest of the engine relies on.
// Any failure is fatal to open: the engine performs no repair.
func (h *header) validate(lay layout, fileSize uint64) error {
	if h.blockSize <= uint32(lay.headerSize()) {
		return gdbmerrors.ErrCorruptHeader
	}
	if h.dirBits < 3 || h.dirBits > hashBits {
		return gdbmerrors.ErrCorruptHeader
	}
	// The directory always holds exactly 2^dir_bits offset-width entries.
	if uint64(h.dirSize) != uint64(lay.width)<<h.dirBits {
		return gdbmerrors.ErrCorruptHeader
	}
	if h.dirOfs == 0 || h.dirOfs+uint64(h.dirSize) > fileSize {
		return gdbmerrors.ErrCorruptHeader
	}
	if h.bucketSize <= uint32(lay.bucketFixedSize()+lay.bucketElemSize()) {
		return gdbmerrors.ErrCorruptHeader
	}
	if h.bucketElems != lay.bucketElemCapacity(h.bucketSize) || h.bucketElems == 0 {
		return gdbmerrors.ErrCorruptHeader
	}
	// The frontier may exceed the physical size (extension is virtual until
	// written) but must never fall inside the existing file.
	if h.nextBlock < fileSize {
		return gdbmerrors.ErrCorruptHeader
	}
	if h.availHead != 0 && (h.availHead < uint64(h.blockSize) || h.availHead >= h.nextBlock) {
		return gdbmerrors.ErrCorruptHeader
	}
	return nil
}

func (h *header) encode(lay layout) []byte {
	buf := make([]byte, lay.headerSize())
	w := &wireWriter{lay: lay, buf: buf}
	w.uint32(h.magic.value())
	w.uint32(h.blockSize)
	w.offset(h.dirOfs)
	w.uint32(h.dirSize)
	w.uint32(h.dirBits)
	w.uint32(h.bucketSize)
	w.uint32(h.bucketElems)
	w.offset(h.nextBlock)
	w.offset(h.availHead)
	return buf
}
