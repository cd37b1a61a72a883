package gdbm

import (
	gdbmerrors "github.com/jmallard/gdbm/errors"
)

// bucketElement is the index record for one key/value pair. The full key and
// the value are stored contiguously on disk at dataOfs; the element itself
// never owns those bytes.
//
// Wire format: hash(4) | key_prefix(keyPrefixLen) | data_ofs(width) |
// key_size(4) | data_size(4).
type bucketElement struct {
	hash     uint32
	prefix   [keyPrefixLen]byte
	dataOfs  uint64
	keySize  uint32
	dataSize uint32
}

func (e *bucketElement) occupied() bool { return e.hash != emptyHash }

// recordSize is the on-disk extent of the element's key+value record.
func (e *bucketElement) recordSize() uint32 { return e.keySize + e.dataSize }

func decodeBucketElement(r *wireReader) bucketElement {
	var e bucketElement
	e.hash = r.uint32()
	copy(e.prefix[:], r.bytes(keyPrefixLen))
	e.dataOfs = r.offset()
	e.keySize = r.uint32()
	e.dataSize = r.uint32()
	return e
}

func (e *bucketElement) encode(w *wireWriter) {
	w.uint32(e.hash)
	w.bytes(e.prefix[:])
	w.offset(e.dataOfs)
	w.uint32(e.keySize)
	w.uint32(e.dataSize)
}

// bucket is the second-level hash table: a fixed-capacity open-addressed
// element array plus a small local free-range list.
//
// Wire format: local_avail_count(4) | local_avail[bucketAvailMax] |
// depth(4) | element_count(4) | elements[capacity]. The region is padded
// with zeros to the header's bucket_size_bytes.
type bucket struct {
	avail []availElem // at most bucketAvailMax entries, sorted by size
	depth uint32      // hash bits consumed to reach this bucket
	count uint32      // occupied elements
	elems []bucketElement
}

// newBucket returns an empty bucket of the given depth and element capacity.
// Every slot carries the empty-hash sentinel.
func newBucket(depth uint32, capacity uint32) *bucket {
	b := &bucket{
		depth: depth,
		elems: make([]bucketElement, capacity),
	}
	for i := range b.elems {
		b.elems[i].hash = emptyHash
	}
	return b
}

func decodeBucket(lay layout, buf []byte, capacity uint32) (*bucket, error) {
	if len(buf) < lay.bucketFixedSize()+int(capacity)*lay.bucketElemSize() {
		return nil, gdbmerrors.ErrBadBucket
	}
	r := &wireReader{lay: lay, buf: buf}

	availCount := r.uint32()
	if availCount > bucketAvailMax {
		return nil, gdbmerrors.ErrBadBucket
	}
	b := &bucket{avail: make([]availElem, 0, availCount)}
	for i := 0; i < bucketAvailMax; i++ {
		e := decodeAvailElem(r)
		if uint32(i) < availCount {
			b.avail = append(b.avail, e)
		}
	}

	b.depth = r.uint32()
	b.count = r.uint32()

	b.elems = make([]bucketElement, capacity)
	for i := range b.elems {
		b.elems[i] = decodeBucketElement(r)
	}
	return b, nil
}

// encode serializes the bucket into a zero-padded region of bucketSize bytes.
func (b *bucket) encode(lay layout, bucketSize uint32) []byte {
	buf := make([]byte, bucketSize)
	w := &wireWriter{lay: lay, buf: buf}

	w.uint32(uint32(len(b.avail)))
	for i := 0; i < bucketAvailMax; i++ {
		var e availElem
		if i < len(b.avail) {
			e = b.avail[i]
		}
		e.encode(w)
	}

	w.uint32(b.depth)
	w.uint32(b.count)
	for i := range b.elems {
		b.elems[i].encode(w)
	}
	return buf
}

// findSlot probes for an element matching hash and the key's inline prefix.
// It returns the index of every candidate whose hash, key size, and prefix
// all match; full-key confirmation requires reading the record and is the
// caller's job. The probe starts at hash % capacity and stops at the first
// empty slot.
func (b *bucket) findSlot(hash uint32, key []byte) []int {
	capacity := len(b.elems)
	prefix := keyPrefix(key)
	var candidates []int
	start := probeStart(hash, uint32(capacity))
	for i := 0; i < capacity; i++ {
		idx := (start + i) % capacity
		el := &b.elems[idx]
		if !el.occupied() {
			break
		}
		if el.hash == hash && el.keySize == uint32(len(key)) && el.prefix == prefix {
			candidates = append(candidates, idx)
		}
	}
	return candidates
}

// insert places an element at its probe position. The caller must ensure
// the bucket is not full.
func (b *bucket) insert(el bucketElement) {
	capacity := len(b.elems)
	idx := probeStart(el.hash, uint32(capacity))
	for b.elems[idx].occupied() {
		idx = (idx + 1) % capacity
	}
	b.elems[idx] = el
	b.count++
}

// remove clears the slot at idx and re-inserts the trailing probe run so
// that every remaining element stays reachable from its probe start without
// crossing an empty slot.
func (b *bucket) remove(idx int) bucketElement {
	capacity := len(b.elems)
	removed := b.elems[idx]
	b.elems[idx].hash = emptyHash
	b.count--

	// Lift out the run following the hole, then re-place each element.
	var run []bucketElement
	for i := (idx + 1) % capacity; b.elems[i].occupied(); i = (i + 1) % capacity {
		run = append(run, b.elems[i])
		b.elems[i].hash = emptyHash
		b.count--
	}
	for _, el := range run {
		b.insert(el)
	}
	return removed
}

// full reports whether every element slot is occupied.
func (b *bucket) full() bool { return int(b.count) == len(b.elems) }

// splitSeparates reports whether splitting would move at least one element
// out of the half the given hash routes to. When it would not, that half
// stays full after the split and splitting again can never help: every
// element shares the next hash bit with the insertion hash.
func (b *bucket) splitSeparates(hash uint32) bool {
	newDepth := b.depth + 1
	if newDepth > hashBits {
		return false
	}
	bit := (hash >> (hashBits - newDepth)) & 1
	for i := range b.elems {
		el := &b.elems[i]
		if el.occupied() && (el.hash>>(hashBits-newDepth))&1 != bit {
			return true
		}
	}
	return false
}

// split redistributes the bucket's elements over one more hash bit. The
// receiver becomes the bucket for bit 0 of the new depth; the returned
// bucket holds bit 1. Local avail entries stay with the receiver: free
// ranges are database-wide, so their list placement is arbitrary.
func (b *bucket) split() *bucket {
	capacity := uint32(len(b.elems))
	newDepth := b.depth + 1

	moved := newBucket(newDepth, capacity)
	kept := newBucket(newDepth, capacity)
	kept.avail = b.avail

	for i := range b.elems {
		el := b.elems[i]
		if !el.occupied() {
			continue
		}
		if (el.hash>>(hashBits-newDepth))&1 == 1 {
			moved.insert(el)
		} else {
			kept.insert(el)
		}
	}

	*b = *kept
	return moved
}
