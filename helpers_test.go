package gdbm

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

const (
	testSeed1 = 0x9E3779B97F4A7C15
	testSeed2 = 0xC2B2AE3D27D4EB4F
)

// newTestRNG returns a deterministic RNG seeded from the test name, so each
// test gets stable but distinct data.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewSource(int64((testSeed1 ^ s1) ^ (testSeed2 ^ s2))))
}

// testLayouts covers both offset widths in both byte orders.
var testLayouts = []struct {
	name string
	lay  layout
}{
	{"le32", layout{width: 4, order: binary.LittleEndian}},
	{"le64", layout{width: 8, order: binary.LittleEndian}},
	{"be32", layout{width: 4, order: binary.BigEndian}},
	{"be64", layout{width: 8, order: binary.BigEndian}},
}

// variantOptions returns the creation options reproducing a magic variant.
func variantOptions(m Magic) []Option {
	return []Option{
		WithOffsetWidth(m.Width()),
		WithByteOrder(m.ByteOrder()),
		WithNumsync(m.Numsync()),
	}
}

// createTestDB creates a fresh database in the test's temp dir and closes it
// at cleanup unless the test already did.
func createTestDB(t testing.TB, opts ...Option) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, CreateNew, opts...)
	if err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() {
		if !db.closed.Load() {
			db.Close()
		}
	})
	return db, path
}

// storeSequential stores n "key i" -> "value i" pairs.
func storeSequential(t testing.TB, db *DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key %d", i))
		value := []byte(fmt.Sprintf("value %d", i))
		if err := db.Store(key, value, false); err != nil {
			t.Fatalf("store %q: %v", key, err)
		}
	}
}

// verifySequential fetches the n sequential pairs back.
func verifySequential(t testing.TB, db *DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key %d", i))
		want := fmt.Sprintf("value %d", i)
		got, ok, err := db.Fetch(key)
		if err != nil {
			t.Fatalf("fetch %q: %v", key, err)
		}
		if !ok {
			t.Fatalf("fetch %q: missing", key)
		}
		if string(got) != want {
			t.Fatalf("fetch %q = %q, want %q", key, got, want)
		}
	}
}

// corruptFirstBytes overwrites the start of the file at path.
func corruptFirstBytes(t testing.TB, path string, junk []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteAt(junk, 0); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}
}

// randomPairs generates n distinct random key/value pairs.
func randomPairs(rng *rand.Rand, n int) map[string]string {
	pairs := make(map[string]string, n)
	for len(pairs) < n {
		key := make([]byte, 1+rng.Intn(24))
		for i := range key {
			key[i] = byte(rng.Uint32())
		}
		value := make([]byte, rng.Intn(64))
		for i := range value {
			value[i] = byte(rng.Uint32())
		}
		pairs[string(key)] = string(value)
	}
	return pairs
}
