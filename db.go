package gdbm

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	gdbmerrors "github.com/jmallard/gdbm/errors"
)

// minBlockSize is the smallest accepted block size. Smaller blocks cannot
// hold the superblock plus a one-element bucket at 64-bit offsets.
const minBlockSize = 512

// Mode selects how Open treats the file at path.
type Mode int

const (
	// ReadOnly opens an existing database for reads. The file is memory
	// mapped and never written; no lock is taken.
	ReadOnly Mode = iota

	// ReadWrite opens an existing database for reads and writes under an
	// exclusive advisory lock.
	ReadWrite

	// CreateNew creates a fresh database, truncating any existing file, with
	// the variant chosen by the Open options.
	CreateNew
)

// DB is an open database handle. A handle is not safe for concurrent use;
// the advisory lock enforces single-writer access across processes, not
// within one.
type DB struct {
	bf    *blockFile
	magic Magic
	lay   layout
	hdr   *header
	dir   *directory

	mode   Mode
	locked bool
	closed atomic.Bool
}

// Open opens or creates the database at path.
func Open(path string, mode Mode, opts ...Option) (*DB, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var flags int
	switch mode {
	case ReadOnly:
		flags = os.O_RDONLY
	case ReadWrite:
		flags = os.O_RDWR
	case CreateNew:
		// Truncation waits until after the lock is held, so a losing
		// CreateNew race cannot wipe a database another writer owns.
		flags = os.O_RDWR | os.O_CREATE
	default:
		return nil, fmt.Errorf("gdbm: unknown open mode %d", mode)
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, &gdbmerrors.IOError{Op: "open", Err: err}
	}

	db, err := open(f, mode, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	return db, nil
}

func open(f *os.File, mode Mode, cfg *config) (*DB, error) {
	db := &DB{mode: mode}

	if mode != ReadOnly && !cfg.noLock {
		if err := lockFile(f); err != nil {
			return nil, err
		}
		db.locked = true
	}

	if mode == CreateNew {
		if err := db.create(f, cfg); err != nil {
			db.unlock(f)
			return nil, err
		}
	} else if err := db.load(f, mode == ReadOnly); err != nil {
		db.unlock(f)
		return nil, err
	}

	if mode != ReadOnly {
		fadviseRandom(int(f.Fd()))
	}
	if cfg.fadvise {
		fadviseSequential(int(f.Fd()))
	}
	return db, nil
}

func (db *DB) unlock(f *os.File) {
	if db.locked {
		unlockFile(f)
		db.locked = false
	}
}

// create lays out a new database: a block-sized header region, the initial
// directory, and one empty depth-0 bucket shared by every directory slot.
func (db *DB) create(f *os.File, cfg *config) error {
	blockSize := cfg.blockSize
	if blockSize == 0 {
		blockSize = fsBlockSize(f)
	}
	if blockSize < minBlockSize {
		return fmt.Errorf("gdbm: block size %d below minimum %d", blockSize, minBlockSize)
	}
	if cfg.width != 4 && cfg.width != 8 {
		return fmt.Errorf("gdbm: offset width must be 4 or 8, got %d", cfg.width)
	}

	if err := f.Truncate(0); err != nil {
		return &gdbmerrors.IOError{Op: "truncate", Err: err}
	}
	bf, err := openBlockFile(f, false)
	if err != nil {
		return err
	}

	db.bf = bf
	db.magic = cfg.magic()
	db.lay = db.magic.layout()
	db.hdr = newHeader(db.magic, blockSize)

	bucketOfs := db.hdr.firstBucketOfs()
	db.dir = &directory{ofs: make([]uint64, 1<<db.hdr.dirBits), dirty: true}
	for i := range db.dir.ofs {
		db.dir.ofs[i] = bucketOfs
	}

	// The header region occupies a full block; the directory starts at the
	// next block boundary.
	region := make([]byte, blockSize)
	copy(region, db.hdr.encode(db.lay))
	if err := bf.writeAt(0, region); err != nil {
		return err
	}
	if err := bf.writeAt(db.hdr.dirOfs, db.dir.encode(db.lay)); err != nil {
		return err
	}
	b := newBucket(0, db.hdr.bucketElems)
	if err := bf.writeAt(bucketOfs, b.encode(db.lay, db.hdr.bucketSize)); err != nil {
		return err
	}
	db.hdr.dirty = false
	db.dir.dirty = false
	return nil
}

func (db *DB) load(f *os.File, readOnly bool) error {
	bf, err := openBlockFile(f, readOnly)
	if err != nil {
		return err
	}
	db.bf = bf

	// A prologue shorter than the magic is an unrecognizable file, not an
	// I/O failure; detectMagic rejects short input.
	magicLen := 4
	if bf.size < 4 {
		magicLen = int(bf.size)
	}
	magicBuf, err := bf.readAt(0, magicLen)
	if err != nil {
		return err
	}
	db.magic, err = detectMagic(magicBuf)
	if err != nil {
		return err
	}
	db.lay = db.magic.layout()

	hdrBuf, err := bf.readAt(0, db.lay.headerSize())
	if err != nil {
		return err
	}
	db.hdr, err = decodeHeader(db.magic, hdrBuf, bf.size)
	if err != nil {
		return err
	}

	dirBuf, err := bf.readAt(db.hdr.dirOfs, int(db.hdr.dirSize))
	if err != nil {
		return err
	}
	db.dir = decodeDirectory(db.lay, dirBuf, 1<<db.hdr.dirBits)
	if !db.dir.validate(uint64(db.hdr.blockSize), db.hdr.nextBlock) {
		return gdbmerrors.ErrBadDirectory
	}
	return nil
}

// Close flushes pending metadata, syncs, releases the advisory lock, and
// invalidates the handle.
func (db *DB) Close() error {
	if db.closed.Swap(true) {
		return gdbmerrors.ErrNotOpen
	}
	var firstErr error
	if db.writable() {
		if err := db.flushMeta(); err != nil {
			firstErr = err
		}
		if err := db.bf.sync(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	db.unlock(db.bf.f)
	if err := db.bf.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Magic returns the file's format variant.
func (db *DB) Magic() Magic { return db.magic }

func (db *DB) writable() bool { return db.mode != ReadOnly }

func (db *DB) check(write bool) error {
	if db.closed.Load() {
		return gdbmerrors.ErrNotOpen
	}
	if write && !db.writable() {
		return gdbmerrors.ErrReadOnly
	}
	return nil
}

// flushMeta writes the directory and header if either changed since the last
// flush. The header goes last so its directory pointer never precedes the
// directory bytes it names.
func (db *DB) flushMeta() error {
	if db.dir.dirty {
		if err := db.bf.writeAt(db.hdr.dirOfs, db.dir.encode(db.lay)); err != nil {
			return err
		}
		db.dir.dirty = false
	}
	if db.hdr.dirty {
		if err := db.bf.writeAt(0, db.hdr.encode(db.lay)); err != nil {
			return err
		}
		db.hdr.dirty = false
	}
	return nil
}

func (db *DB) readBucket(ofs uint64) (*bucket, error) {
	buf, err := db.bf.readAt(ofs, int(db.hdr.bucketSize))
	if err != nil {
		return nil, err
	}
	b, err := decodeBucket(db.lay, buf, db.hdr.bucketElems)
	if err != nil {
		return nil, err
	}
	if b.depth > db.hdr.dirBits || b.count > db.hdr.bucketElems {
		return nil, gdbmerrors.ErrBadBucket
	}
	return b, nil
}

func (db *DB) writeBucket(ofs uint64, b *bucket) error {
	return db.bf.writeAt(ofs, b.encode(db.lay, db.hdr.bucketSize))
}

// bucketFor routes a hash through the directory to its bucket.
func (db *DB) bucketFor(hash uint32) (uint64, *bucket, error) {
	ofs := db.dir.ofs[dirIndex(db.hdr.dirBits, hash)]
	b, err := db.readBucket(ofs)
	return ofs, b, err
}

// lookup finds the element holding key in bucket b, confirming candidate
// slots against the full key bytes on disk.
func (db *DB) lookup(b *bucket, hash uint32, key []byte) (int, bool, error) {
	for _, idx := range b.findSlot(hash, key) {
		el := &b.elems[idx]
		stored, err := db.bf.readAt(el.dataOfs, int(el.keySize))
		if err != nil {
			return 0, false, err
		}
		if string(stored) == string(key) {
			return idx, true, nil
		}
	}
	return 0, false, nil
}

// Fetch returns the value stored under key, or ok=false if the key is
// absent. The returned slice is the caller's to keep.
func (db *DB) Fetch(key []byte) ([]byte, bool, error) {
	if err := db.check(false); err != nil {
		return nil, false, err
	}
	hash := hashKey(key)
	_, b, err := db.bucketFor(hash)
	if err != nil {
		return nil, false, err
	}
	idx, found, err := db.lookup(b, hash, key)
	if err != nil || !found {
		return nil, false, err
	}
	el := &b.elems[idx]
	value, err := db.bf.readAt(el.dataOfs+uint64(el.keySize), int(el.dataSize))
	if err != nil {
		return nil, false, err
	}
	return append([]byte(nil), value...), true, nil
}

// Exists reports whether key is present without reading its value.
func (db *DB) Exists(key []byte) (bool, error) {
	if err := db.check(false); err != nil {
		return false, err
	}
	hash := hashKey(key)
	_, b, err := db.bucketFor(hash)
	if err != nil {
		return false, err
	}
	_, found, err := db.lookup(b, hash, key)
	return found, err
}

// Store inserts key/value. If the key already exists, replace selects
// between overwriting the value and failing with ErrKeyExists.
func (db *DB) Store(key, value []byte, replace bool) error {
	if err := db.check(true); err != nil {
		return err
	}
	hash := hashKey(key)
	bucketOfs, b, err := db.bucketFor(hash)
	if err != nil {
		return err
	}

	idx, found, err := db.lookup(b, hash, key)
	if err != nil {
		return err
	}
	if found {
		if !replace {
			return gdbmerrors.ErrKeyExists
		}
		if err := db.replaceValue(b, idx, key, value); err != nil {
			return err
		}
		if err := db.writeBucket(bucketOfs, b); err != nil {
			return err
		}
		return db.flushMeta()
	}

	bucketOfs, b, err = db.makeRoom(bucketOfs, b, hash)
	if err != nil {
		return err
	}

	total := uint32(len(key)) + uint32(len(value))
	dataOfs, err := db.allocate(b, total)
	if err != nil {
		return err
	}
	if err := db.writeRecord(dataOfs, key, value); err != nil {
		return err
	}
	b.insert(bucketElement{
		hash:     hash,
		prefix:   keyPrefix(key),
		dataOfs:  dataOfs,
		keySize:  uint32(len(key)),
		dataSize: uint32(len(value)),
	})
	if err := db.writeBucket(bucketOfs, b); err != nil {
		return err
	}
	return db.flushMeta()
}

// replaceValue overwrites the record for the element at idx. When the new
// record fits the old extent the value is rewritten in place and any tail is
// freed; otherwise the old extent is released and a fresh one allocated.
func (db *DB) replaceValue(b *bucket, idx int, key, value []byte) error {
	el := &b.elems[idx]
	oldExtent := el.recordSize()
	newTotal := el.keySize + uint32(len(value))

	if newTotal <= oldExtent {
		if err := db.bf.writeAt(el.dataOfs+uint64(el.keySize), value); err != nil {
			return err
		}
		if tail := oldExtent - newTotal; tail > 0 {
			if err := db.free(b, availElem{size: tail, ofs: el.dataOfs + uint64(newTotal)}); err != nil {
				return err
			}
		}
		el.dataSize = uint32(len(value))
		return nil
	}

	if err := db.free(b, availElem{size: oldExtent, ofs: el.dataOfs}); err != nil {
		return err
	}
	dataOfs, err := db.allocate(b, newTotal)
	if err != nil {
		return err
	}
	if err := db.writeRecord(dataOfs, key, value); err != nil {
		return err
	}
	el.dataOfs = dataOfs
	el.dataSize = uint32(len(value))
	return nil
}

func (db *DB) writeRecord(ofs uint64, key, value []byte) error {
	record := make([]byte, 0, len(key)+len(value))
	record = append(record, key...)
	record = append(record, value...)
	return db.bf.writeAt(ofs, record)
}

// makeRoom splits the bucket (growing the directory when its depth is
// exhausted) until the bucket routing hash has a free slot. A redistribution
// pass that would leave the routed half still full cannot be helped by
// further splitting and fails before the directory grows.
func (db *DB) makeRoom(bucketOfs uint64, b *bucket, hash uint32) (uint64, *bucket, error) {
	for b.full() {
		if !b.splitSeparates(hash) {
			return 0, nil, gdbmerrors.ErrCorrupted
		}
		if b.depth == db.hdr.dirBits {
			if err := db.growDirectory(); err != nil {
				return 0, nil, err
			}
		}

		movedOfs, err := db.allocate(nil, db.hdr.bucketSize)
		if err != nil {
			return 0, nil, err
		}
		preDepth := b.depth
		moved := b.split()

		if err := db.writeBucket(movedOfs, moved); err != nil {
			return 0, nil, err
		}
		if err := db.writeBucket(bucketOfs, b); err != nil {
			return 0, nil, err
		}
		db.dir.updateSplit(db.hdr.dirBits, preDepth, hash, movedOfs)

		if (hash>>(hashBits-(preDepth+1)))&1 == 1 {
			bucketOfs, b = movedOfs, moved
		}
	}
	return bucketOfs, b, nil
}

// growDirectory doubles the directory, relocating it to freshly allocated
// space and releasing the old region.
func (db *DB) growDirectory() error {
	if db.hdr.dirBits == hashBits {
		return gdbmerrors.ErrCorrupted
	}
	grown := db.dir.grow()
	newSize := dirByteSize(db.lay, len(grown.ofs))
	newOfs, err := db.allocate(nil, newSize)
	if err != nil {
		return err
	}
	if err := db.bf.writeAt(newOfs, grown.encode(db.lay)); err != nil {
		return err
	}

	oldOfs, oldSize := db.hdr.dirOfs, db.hdr.dirSize
	db.dir = grown
	db.dir.dirty = false
	db.hdr.dirOfs = newOfs
	db.hdr.dirSize = newSize
	db.hdr.dirBits++
	db.hdr.dirty = true

	return db.free(nil, availElem{size: oldSize, ofs: oldOfs})
}

// Delete removes key, reporting whether it was present. Deleting an absent
// key changes nothing.
func (db *DB) Delete(key []byte) (bool, error) {
	if err := db.check(true); err != nil {
		return false, err
	}
	hash := hashKey(key)
	bucketOfs, b, err := db.bucketFor(hash)
	if err != nil {
		return false, err
	}
	idx, found, err := db.lookup(b, hash, key)
	if err != nil || !found {
		return false, err
	}

	removed := b.remove(idx)
	if err := db.free(b, availElem{size: removed.recordSize(), ofs: removed.dataOfs}); err != nil {
		return false, err
	}
	if err := db.writeBucket(bucketOfs, b); err != nil {
		return false, err
	}
	return true, db.flushMeta()
}

// Count returns the number of live keys, visiting each physical bucket once.
func (db *DB) Count() (uint64, error) {
	if err := db.check(false); err != nil {
		return 0, err
	}
	var total uint64
	for i := 0; i < len(db.dir.ofs); i = db.dir.nextDistinct(i) {
		b, err := db.readBucket(db.dir.ofs[i])
		if err != nil {
			return 0, err
		}
		total += uint64(b.count)
	}
	return total, nil
}

// Sync flushes pending metadata and forces written data to stable storage.
func (db *DB) Sync() error {
	if err := db.check(true); err != nil {
		return err
	}
	if err := db.flushMeta(); err != nil {
		return err
	}
	return db.bf.sync()
}

// Stats summarizes an open database.
type Stats struct {
	Keys      uint64 // live key count
	Buckets   uint64 // distinct physical buckets
	DirBits   uint32 // directory depth in hash bits
	BlockSize uint32
	FileSize  uint64
}

// Stats walks the directory and returns current figures.
func (db *DB) Stats() (Stats, error) {
	if err := db.check(false); err != nil {
		return Stats{}, err
	}
	st := Stats{
		DirBits:   db.hdr.dirBits,
		BlockSize: db.hdr.blockSize,
		FileSize:  db.bf.size,
	}
	for i := 0; i < len(db.dir.ofs); i = db.dir.nextDistinct(i) {
		b, err := db.readBucket(db.dir.ofs[i])
		if err != nil {
			return Stats{}, err
		}
		st.Buckets++
		st.Keys += uint64(b.count)
	}
	return st, nil
}

// ContentDigest returns a signature over the database's live key/value
// pairs. Per-record digests are combined by addition, so the result is
// independent of bucket layout and iteration order: two databases with the
// same logical content produce the same digest regardless of format variant.
func (db *DB) ContentDigest() (uint64, error) {
	if err := db.check(false); err != nil {
		return 0, err
	}
	var frame [8]byte
	var total uint64
	d := xxhash.New()
	for i := 0; i < len(db.dir.ofs); i = db.dir.nextDistinct(i) {
		b, err := db.readBucket(db.dir.ofs[i])
		if err != nil {
			return 0, err
		}
		for j := range b.elems {
			el := &b.elems[j]
			if !el.occupied() {
				continue
			}
			record, err := db.bf.readAt(el.dataOfs, int(el.recordSize()))
			if err != nil {
				return 0, err
			}
			d.Reset()
			binary.LittleEndian.PutUint64(frame[:], uint64(el.keySize))
			d.Write(frame[:])
			d.Write(record)
			total += d.Sum64()
		}
	}
	return total, nil
}
