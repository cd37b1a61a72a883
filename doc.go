// Package gdbm implements an on-disk key/value store backed by an
// extendible-hash file format with 32-bit and 64-bit offset variants in
// either byte order.
//
// A database file is a directory of bucket offsets indexed by the leading
// bits of a 31-bit key hash. Buckets are fixed-size open-addressed tables
// that split, one hash bit at a time, as they fill; the directory doubles
// when a bucket's depth catches up with it. Freed record space is recycled
// through a two-tier free list before the file is ever extended.
//
// # Basic Usage
//
// Creating and filling a database:
//
//	db, err := gdbm.Open("data.db", gdbm.CreateNew)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Store([]byte("alpha"), []byte("1"), true); err != nil {
//	    log.Fatal(err)
//	}
//	if err := db.Sync(); err != nil {
//	    log.Fatal(err)
//	}
//
// Reading it back:
//
//	db, err := gdbm.Open("data.db", gdbm.ReadOnly)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	value, ok, err := db.Fetch([]byte("alpha"))
//
// Read-only handles serve all reads from a shared memory mapping and take
// no lock; writable handles hold an exclusive advisory lock for their whole
// lifetime.
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: db.go (Open, Fetch, Store, Delete, Stats), iterate.go (FirstKey, NextKey)
//   - Configuration: options.go (Option, With* functions)
//   - Format: magic.go (variant detection), layout.go (field encoding), header.go, dir.go, bucket.go, avail.go
//   - Hashing: hash.go (the format-defined 31-bit key hash)
//   - Space management: alloc.go (allocate, free, avail chain)
//   - I/O: blockio.go (pread/pwrite and read-only mmap)
//   - Platform: flock_*.go, fallocate_*.go, fadvise_*.go, prefault_*.go
package gdbm
