package gdbm

// Key iteration visits live keys in on-disk order: directory slot order
// across physical buckets, element-array order within a bucket. The order is
// neither sorted nor insertion order, but a walk from FirstKey through
// repeated NextKey calls visits every live key exactly once as long as the
// database is not mutated in between.

// FirstKey returns the first key in iteration order, or ok=false when the
// database is empty.
func (db *DB) FirstKey() ([]byte, bool, error) {
	if err := db.check(false); err != nil {
		return nil, false, err
	}
	return db.scanFrom(0, 0)
}

// NextKey returns the key following prior in iteration order. It returns
// ok=false when prior was the last key or is no longer present; restarting
// from FirstKey is the only recovery after mutation invalidates a position.
func (db *DB) NextKey(prior []byte) ([]byte, bool, error) {
	if err := db.check(false); err != nil {
		return nil, false, err
	}
	hash := hashKey(prior)
	slot := dirIndex(db.hdr.dirBits, hash)
	b, err := db.readBucket(db.dir.ofs[slot])
	if err != nil {
		return nil, false, err
	}
	idx, found, err := db.lookup(b, hash, prior)
	if err != nil || !found {
		return nil, false, err
	}

	if key, ok, err := db.scanBucket(b, idx+1); err != nil || ok {
		return key, ok, err
	}
	return db.scanFrom(db.dir.nextDistinct(slot), 0)
}

// scanFrom returns the first key at or after (directory slot, element index),
// advancing bucket by bucket.
func (db *DB) scanFrom(slot, elem int) ([]byte, bool, error) {
	for slot < len(db.dir.ofs) {
		b, err := db.readBucket(db.dir.ofs[slot])
		if err != nil {
			return nil, false, err
		}
		if key, ok, err := db.scanBucket(b, elem); err != nil || ok {
			return key, ok, err
		}
		slot = db.dir.nextDistinct(slot)
		elem = 0
	}
	return nil, false, nil
}

func (db *DB) scanBucket(b *bucket, from int) ([]byte, bool, error) {
	for i := from; i < len(b.elems); i++ {
		el := &b.elems[i]
		if !el.occupied() {
			continue
		}
		key, err := db.bf.readAt(el.dataOfs, int(el.keySize))
		if err != nil {
			return nil, false, err
		}
		return append([]byte(nil), key...), true, nil
	}
	return nil, false, nil
}
