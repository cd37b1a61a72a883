package gdbm

import "encoding/binary"

// layout is the encoding strategy selected once per open file from the magic
// number. Every multi-byte integer on disk — offsets, sizes, counts — is
// encoded with this width and order; no component assumes a native encoding.
type layout struct {
	width int              // offset width in bytes: 4 or 8
	order binary.ByteOrder // byte order of every on-disk integer
}

// offset reads a width-sized file offset.
func (l layout) offset(b []byte) uint64 {
	if l.width == 8 {
		return l.order.Uint64(b)
	}
	return uint64(l.order.Uint32(b))
}

// putOffset writes a width-sized file offset.
func (l layout) putOffset(b []byte, v uint64) {
	if l.width == 8 {
		l.order.PutUint64(b, v)
		return
	}
	l.order.PutUint32(b, uint32(v))
}

// Derived on-disk record sizes. All are functions of the offset width only.

// headerSize is the size of the superblock:
// magic(4) block_size(4) dir_ofs(w) dir_size(4) dir_bits(4) bucket_size(4)
// bucket_elems(4) next_block(w) avail_head(w).
func (l layout) headerSize() int { return 24 + 3*l.width }

// availElemSize is the size of one free-range entry: size(4) offset(w).
func (l layout) availElemSize() int { return 4 + l.width }

// availBlockFixedSize is the fixed prefix of an avail block:
// capacity(4) used_count(4) next_block(w).
func (l layout) availBlockFixedSize() int { return 8 + l.width }

// bucketElemSize is the size of one bucket element:
// hash(4) key_prefix(keyPrefixLen) data_ofs(w) key_size(4) data_size(4).
func (l layout) bucketElemSize() int { return 12 + keyPrefixLen + l.width }

// bucketFixedSize is the fixed prefix of a bucket:
// avail_count(4) avail[bucketAvailMax] depth(4) element_count(4).
func (l layout) bucketFixedSize() int { return 12 + bucketAvailMax*l.availElemSize() }

// bucketElemCapacity is the number of elements a bucket of the given byte
// size holds.
func (l layout) bucketElemCapacity(bucketSize uint32) uint32 {
	return (bucketSize - uint32(l.bucketFixedSize())) / uint32(l.bucketElemSize())
}

// wireReader decodes a sequence of layout-encoded fields from a buffer.
// Callers are responsible for ensuring the buffer is large enough; the
// engine only constructs readers over exact-sized regions.
type wireReader struct {
	lay layout
	buf []byte
	pos int
}

func (r *wireReader) uint32() uint32 {
	v := r.lay.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *wireReader) offset() uint64 {
	v := r.lay.offset(r.buf[r.pos:])
	r.pos += r.lay.width
	return v
}

func (r *wireReader) bytes(n int) []byte {
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// wireWriter encodes a sequence of layout-encoded fields into a buffer.
type wireWriter struct {
	lay layout
	buf []byte
	pos int
}

func (w *wireWriter) uint32(v uint32) {
	w.lay.order.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

func (w *wireWriter) offset(v uint64) {
	w.lay.putOffset(w.buf[w.pos:], v)
	w.pos += w.lay.width
}

func (w *wireWriter) bytes(b []byte) {
	copy(w.buf[w.pos:], b)
	w.pos += len(b)
}
