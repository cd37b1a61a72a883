package gdbm

import (
	gdbmerrors "github.com/jmallard/gdbm/errors"
)

// Space management. Free ranges live on two tiers: a small per-bucket list
// for sub-block ranges, and a database-wide chain of avail blocks rooted at
// the header. Allocation prefers reuse over extension; a range's unused
// remainder goes back to the list it was taken from.

// allocate returns the offset of a free range of exactly size bytes. b is the
// bucket whose local list may serve the request; pass nil for allocations
// with no owning bucket (directory, avail blocks).
func (db *DB) allocate(b *bucket, size uint32) (uint64, error) {
	if b != nil && size < db.hdr.blockSize {
		if elems, e, ok := removeAvailFit(b.avail, size); ok {
			b.avail = elems
			if rem := e.size - size; rem > ignoreSmall {
				b.avail = insertAvail(b.avail, availElem{size: rem, ofs: e.ofs + uint64(size)})
			}
			return e.ofs, nil
		}
	}

	ofs := db.hdr.availHead
	for ofs != 0 {
		blk, err := db.readAvailBlock(ofs)
		if err != nil {
			return 0, err
		}
		if elems, e, ok := removeAvailFit(blk.elems, size); ok {
			blk.elems = elems
			if rem := e.size - size; rem > ignoreSmall {
				blk.elems = insertAvail(blk.elems, availElem{size: rem, ofs: e.ofs + uint64(size)})
			}
			if err := db.writeAvailBlock(ofs, blk); err != nil {
				return 0, err
			}
			return e.ofs, nil
		}
		ofs = blk.next
	}

	return db.extend(size)
}

// free returns a range to the free space pool. Ranges small enough to be
// tracking overhead are dropped; sub-block ranges go to the bucket's local
// list when it has room, everything else to the global chain.
func (db *DB) free(b *bucket, e availElem) error {
	if e.size <= ignoreSmall {
		return nil
	}
	if b != nil && e.size < db.hdr.blockSize && len(b.avail) < bucketAvailMax {
		b.avail = insertAvail(b.avail, e)
		return nil
	}
	return db.pushGlobal(e)
}

// pushGlobal inserts a range into the head avail block, prepending a fresh
// block to the chain first when the head is full or absent. New chain blocks
// come from direct file extension, never from the allocator, so pushing can
// never recurse into freeing.
func (db *DB) pushGlobal(e availElem) error {
	head := db.hdr.availHead
	if head != 0 {
		blk, err := db.readAvailBlock(head)
		if err != nil {
			return err
		}
		if !blk.full() {
			blk.elems = insertAvail(blk.elems, e)
			return db.writeAvailBlock(head, blk)
		}
	}

	capacity := availBlockCapacity(db.lay, db.hdr.blockSize)
	ofs, err := db.extend(uint32(availBlockSize(db.lay, capacity)))
	if err != nil {
		return err
	}
	blk := &availBlock{
		capacity: capacity,
		next:     db.hdr.availHead,
		elems:    []availElem{e},
	}
	if err := db.writeAvailBlock(ofs, blk); err != nil {
		return err
	}
	db.hdr.availHead = ofs
	db.hdr.dirty = true
	return nil
}

// extend advances the allocation frontier by exactly size bytes and returns
// the range's offset. Disk blocks are reserved eagerly where the platform
// supports it.
func (db *DB) extend(size uint32) (uint64, error) {
	ofs := db.hdr.nextBlock
	db.hdr.nextBlock += uint64(size)
	db.hdr.dirty = true
	if err := fallocateFile(db.bf.f, int64(db.hdr.nextBlock)); err != nil {
		return 0, &gdbmerrors.IOError{Op: "fallocate", Offset: ofs, Length: int(size), Err: err}
	}
	db.bf.size = db.hdr.nextBlock
	return ofs, nil
}

func (db *DB) readAvailBlock(ofs uint64) (*availBlock, error) {
	fixed, err := db.bf.readAt(ofs, db.lay.availBlockFixedSize())
	if err != nil {
		return nil, err
	}
	r := &wireReader{lay: db.lay, buf: fixed}
	capacity := r.uint32()
	if capacity == 0 || availBlockSize(db.lay, capacity) > int(db.hdr.blockSize) {
		return nil, gdbmerrors.ErrCorrupted
	}
	buf, err := db.bf.readAt(ofs, availBlockSize(db.lay, capacity))
	if err != nil {
		return nil, err
	}
	return decodeAvailBlock(db.lay, buf)
}

func (db *DB) writeAvailBlock(ofs uint64, blk *availBlock) error {
	return db.bf.writeAt(ofs, blk.encode(db.lay))
}
