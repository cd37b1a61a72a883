package gdbm

import (
	gdbmerrors "github.com/jmallard/gdbm/errors"
)

const (
	// bucketAvailMax is the fixed capacity of a bucket's local free-range
	// array.
	bucketAvailMax = 6

	// ignoreSmall is the largest free range the allocator simply forgets:
	// tracking ranges this small costs more than it recovers.
	ignoreSmall = 4
)

// availElem is one reusable byte range. Every live entry's range is
// unreferenced by any record, bucket, or metadata region.
//
// Wire format: size(4) | offset(width).
type availElem struct {
	size uint32
	ofs  uint64
}

func decodeAvailElem(r *wireReader) availElem {
	return availElem{size: r.uint32(), ofs: r.offset()}
}

func (e availElem) encode(w *wireWriter) {
	w.uint32(e.size)
	w.offset(e.ofs)
}

// insertAvail inserts an entry keeping the list ordered by (size, offset),
// so a first-fit scan doubles as best fit.
func insertAvail(elems []availElem, e availElem) []availElem {
	i := 0
	for i < len(elems) && (elems[i].size < e.size ||
		(elems[i].size == e.size && elems[i].ofs < e.ofs)) {
		i++
	}
	elems = append(elems, availElem{})
	copy(elems[i+1:], elems[i:])
	elems[i] = e
	return elems
}

// removeAvailFit removes and returns the first entry with size >= want.
func removeAvailFit(elems []availElem, want uint32) ([]availElem, availElem, bool) {
	for i, e := range elems {
		if e.size >= want {
			return append(elems[:i], elems[i+1:]...), e, true
		}
	}
	return elems, availElem{}, false
}

// availBlock is one link of the database-wide free list rooted at the
// header's avail_list_head.
//
// Wire format: capacity(4) | used_count(4) | next_block(width) |
// entries[capacity] of availElem. Unused trailing entry slots are written
// as zeros.
type availBlock struct {
	capacity uint32
	next     uint64
	elems    []availElem
}

// availBlockSize is the full on-disk size of a block with the given
// entry capacity.
func availBlockSize(lay layout, capacity uint32) int {
	return lay.availBlockFixedSize() + int(capacity)*lay.availElemSize()
}

// availBlockCapacity sizes a new chain block to occupy one filesystem block.
func availBlockCapacity(lay layout, blockSize uint32) uint32 {
	return (blockSize - uint32(lay.availBlockFixedSize())) / uint32(lay.availElemSize())
}

func decodeAvailBlock(lay layout, buf []byte) (*availBlock, error) {
	if len(buf) < lay.availBlockFixedSize() {
		return nil, gdbmerrors.ErrCorrupted
	}
	r := &wireReader{lay: lay, buf: buf}
	b := &availBlock{capacity: r.uint32()}
	count := r.uint32()
	b.next = r.offset()

	if b.capacity == 0 || count > b.capacity ||
		len(buf) < availBlockSize(lay, b.capacity) {
		return nil, gdbmerrors.ErrCorrupted
	}

	b.elems = make([]availElem, 0, count)
	for i := uint32(0); i < count; i++ {
		b.elems = append(b.elems, decodeAvailElem(r))
	}
	return b, nil
}

func (b *availBlock) encode(lay layout) []byte {
	buf := make([]byte, availBlockSize(lay, b.capacity))
	w := &wireWriter{lay: lay, buf: buf}
	w.uint32(b.capacity)
	w.uint32(uint32(len(b.elems)))
	w.offset(b.next)
	for _, e := range b.elems {
		e.encode(w)
	}
	return buf
}

func (b *availBlock) full() bool {
	return uint32(len(b.elems)) >= b.capacity
}
