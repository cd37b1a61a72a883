package gdbm

// directory is the first-level hash table: 2^dirBits file offsets, each
// naming a bucket. Contiguous slots share one bucket whenever that bucket's
// depth is smaller than the directory's bits; slots hold plain offsets,
// never live handles, so buckets are re-read by offset on every access.
type directory struct {
	ofs   []uint64
	dirty bool
}

// buildDirSize chooses the initial directory geometry for a new database:
// start at eight entries and double until the directory fills a block.
func buildDirSize(width int, blockSize uint32) (size uint32, bits uint32) {
	size = 8 * uint32(width)
	bits = 3
	for size < blockSize && bits < hashBits-3 {
		size <<= 1
		bits++
	}
	return size, bits
}

// dirByteSize is the serialized size of a directory of n entries.
func dirByteSize(lay layout, n int) uint32 {
	return uint32(n * lay.width)
}

func decodeDirectory(lay layout, buf []byte, entries int) *directory {
	d := &directory{ofs: make([]uint64, entries)}
	r := &wireReader{lay: lay, buf: buf}
	for i := range d.ofs {
		d.ofs[i] = r.offset()
	}
	return d
}

func (d *directory) encode(lay layout) []byte {
	buf := make([]byte, dirByteSize(lay, len(d.ofs)))
	w := &wireWriter{lay: lay, buf: buf}
	for _, o := range d.ofs {
		w.offset(o)
	}
	return buf
}

// validate checks that every bucket offset lies inside the file body.
func (d *directory) validate(lowest, nextBlock uint64) bool {
	for _, o := range d.ofs {
		if o < lowest || o >= nextBlock {
			return false
		}
	}
	return true
}

// grow returns a doubled directory: each entry's pointer is duplicated into
// the two slots it expands to, so every bucket keeps exactly twice as many
// referencing slots.
func (d *directory) grow() *directory {
	doubled := make([]uint64, 2*len(d.ofs))
	for i, o := range d.ofs {
		doubled[2*i] = o
		doubled[2*i+1] = o
	}
	return &directory{ofs: doubled, dirty: true}
}

// updateSplit repoints the upper half of the slot run that referenced a
// just-split bucket. The run covering a bucket of the pre-split depth spans
// 2^(dirBits-depth) aligned slots; after the split its second half must
// reference the new (bit 1) bucket.
func (d *directory) updateSplit(dirBits, preSplitDepth uint32, hash uint32, movedOfs uint64) {
	runLen := 1 << (dirBits - preSplitDepth)
	runStart := dirIndex(dirBits, hash) &^ (runLen - 1)
	for i := runStart + runLen/2; i < runStart+runLen; i++ {
		d.ofs[i] = movedOfs
	}
	d.dirty = true
}

// nextDistinct returns the index of the first slot after i whose offset
// differs from slot i's, or len(ofs) when none remains. Shared-bucket runs
// are contiguous, so this steps from one physical bucket to the next.
func (d *directory) nextDistinct(i int) int {
	if i >= len(d.ofs) {
		return len(d.ofs)
	}
	cur := d.ofs[i]
	for i < len(d.ofs) && d.ofs[i] == cur {
		i++
	}
	return i
}
