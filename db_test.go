package gdbm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	gdbmerrors "github.com/jmallard/gdbm/errors"
)

func TestStoreFetchRoundTrip(t *testing.T) {
	db, _ := createTestDB(t)
	rng := newTestRNG(t)
	pairs := randomPairs(rng, 500)

	for k, v := range pairs {
		if err := db.Store([]byte(k), []byte(v), true); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	for k, v := range pairs {
		got, ok, err := db.Fetch([]byte(k))
		if err != nil || !ok {
			t.Fatalf("fetch %x: ok=%v err=%v", k, ok, err)
		}
		if string(got) != v {
			t.Fatalf("fetch %x = %x, want %x", k, got, v)
		}
	}

	count, err := db.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != uint64(len(pairs)) {
		t.Fatalf("count = %d, want %d", count, len(pairs))
	}
}

func TestDefaultVariant(t *testing.T) {
	db, _ := createTestDB(t)
	// New databases default to little-endian 64-bit offsets with numsync.
	if db.Magic() != MagicLE64NS {
		t.Fatalf("default variant = %s, want %s", db.Magic(), MagicLE64NS)
	}
}

func TestStoreDuplicateKey(t *testing.T) {
	db, _ := createTestDB(t)
	key, value := []byte("dup"), []byte("one")
	if err := db.Store(key, value, false); err != nil {
		t.Fatalf("first store: %v", err)
	}
	if err := db.Store(key, []byte("two"), false); !errors.Is(err, gdbmerrors.ErrKeyExists) {
		t.Fatalf("second store = %v, want ErrKeyExists", err)
	}
	got, _, err := db.Fetch(key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(got) != "one" {
		t.Fatalf("failed store mutated the value: %q", got)
	}
}

func TestStoreReplace(t *testing.T) {
	db, _ := createTestDB(t)
	key := []byte("replace-me")

	// Shrinking replacement reuses the record extent in place.
	if err := db.Store(key, []byte("a long initial value"), true); err != nil {
		t.Fatal(err)
	}
	if err := db.Store(key, []byte("short"), true); err != nil {
		t.Fatal(err)
	}
	got, ok, err := db.Fetch(key)
	if err != nil || !ok || string(got) != "short" {
		t.Fatalf("after shrink: %q ok=%v err=%v", got, ok, err)
	}

	// Growing replacement relocates the record.
	long := make([]byte, 300)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	if err := db.Store(key, long, true); err != nil {
		t.Fatal(err)
	}
	got, ok, err = db.Fetch(key)
	if err != nil || !ok || string(got) != string(long) {
		t.Fatalf("after grow: len=%d ok=%v err=%v", len(got), ok, err)
	}

	count, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d after replacements, want 1", count)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	db, _ := createTestDB(t)
	storeSequential(t, db, 20)

	removed, err := db.Delete([]byte("key 7"))
	if err != nil || !removed {
		t.Fatalf("delete present key: removed=%v err=%v", removed, err)
	}
	if ok, _ := db.Exists([]byte("key 7")); ok {
		t.Fatal("deleted key still exists")
	}

	removed, err = db.Delete([]byte("key 7"))
	if err != nil || removed {
		t.Fatalf("delete absent key: removed=%v err=%v", removed, err)
	}
	count, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 19 {
		t.Fatalf("count = %d, want 19", count)
	}
}

func TestDeletedSpaceIsReused(t *testing.T) {
	db, _ := createTestDB(t)
	key, value := []byte("victim"), make([]byte, 200)
	if err := db.Store(key, value, false); err != nil {
		t.Fatal(err)
	}
	if err := db.Sync(); err != nil {
		t.Fatal(err)
	}
	sizeBefore := db.bf.size

	if _, err := db.Delete(key); err != nil {
		t.Fatal(err)
	}
	// A record no larger than the freed extent must not extend the file.
	if err := db.Store([]byte("succes"), make([]byte, 190), false); err != nil {
		t.Fatal(err)
	}
	if db.bf.size != sizeBefore {
		t.Fatalf("file grew from %d to %d despite free space", sizeBefore, db.bf.size)
	}
}

func TestEmptyDatabase(t *testing.T) {
	db, _ := createTestDB(t)

	count, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
	if _, ok, err := db.FirstKey(); err != nil || ok {
		t.Fatalf("FirstKey on empty db: ok=%v err=%v", ok, err)
	}
	if _, ok, err := db.Fetch([]byte("anything")); err != nil || ok {
		t.Fatalf("Fetch on empty db: ok=%v err=%v", ok, err)
	}
}

func TestEmptyKeyAndValue(t *testing.T) {
	db, _ := createTestDB(t)
	if err := db.Store([]byte{}, []byte{}, false); err != nil {
		t.Fatalf("store empty/empty: %v", err)
	}
	got, ok, err := db.Fetch([]byte{})
	if err != nil || !ok {
		t.Fatalf("fetch empty key: ok=%v err=%v", ok, err)
	}
	if len(got) != 0 {
		t.Fatalf("value = %x, want empty", got)
	}
}

func TestClosedHandleRejectsOperations(t *testing.T) {
	db, _ := createTestDB(t)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, _, err := db.Fetch([]byte("k")); !errors.Is(err, gdbmerrors.ErrNotOpen) {
		t.Errorf("Fetch after close = %v", err)
	}
	if err := db.Store([]byte("k"), []byte("v"), true); !errors.Is(err, gdbmerrors.ErrNotOpen) {
		t.Errorf("Store after close = %v", err)
	}
	if err := db.Close(); !errors.Is(err, gdbmerrors.ErrNotOpen) {
		t.Errorf("second Close = %v", err)
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	db, path := createTestDB(t)
	storeSequential(t, db, 10)
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	ro, err := Open(path, ReadOnly)
	if err != nil {
		t.Fatalf("read-only open: %v", err)
	}
	defer ro.Close()

	if err := ro.Store([]byte("new"), []byte("v"), true); !errors.Is(err, gdbmerrors.ErrReadOnly) {
		t.Errorf("Store on read-only handle = %v", err)
	}
	if _, err := ro.Delete([]byte("key 1")); !errors.Is(err, gdbmerrors.ErrReadOnly) {
		t.Errorf("Delete on read-only handle = %v", err)
	}
	if err := ro.Sync(); !errors.Is(err, gdbmerrors.ErrReadOnly) {
		t.Errorf("Sync on read-only handle = %v", err)
	}
	verifySequential(t, ro, 10)
}

func TestSecondWriterIsLockedOut(t *testing.T) {
	db, path := createTestDB(t)
	_ = db

	if _, err := Open(path, ReadWrite); !errors.Is(err, gdbmerrors.ErrLocked) {
		t.Fatalf("second writer open = %v, want ErrLocked", err)
	}
}

func TestCreateNewDoesNotTruncateLockedDatabase(t *testing.T) {
	db, path := createTestDB(t)
	storeSequential(t, db, 10)
	if err := db.Sync(); err != nil {
		t.Fatal(err)
	}

	// A losing CreateNew race must bounce off the lock with the file intact.
	if _, err := Open(path, CreateNew); !errors.Is(err, gdbmerrors.ErrLocked) {
		t.Fatalf("CreateNew on locked database = %v, want ErrLocked", err)
	}
	verifySequential(t, db, 10)

	count, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 10 {
		t.Fatalf("count = %d after failed CreateNew, want 10", count)
	}
}

func TestOpenRejectsTruncatedPrologue(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.db")
	if err := os.WriteFile(short, []byte{0x13, 0x57}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(short, ReadWrite); !errors.Is(err, gdbmerrors.ErrBadMagic) {
		t.Errorf("open 2-byte file = %v, want ErrBadMagic", err)
	}

	empty := filepath.Join(dir, "empty.db")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(empty, ReadOnly); !errors.Is(err, gdbmerrors.ErrBadMagic) {
		t.Errorf("open empty file = %v, want ErrBadMagic", err)
	}
}

func TestOpenRejectsGarbageFile(t *testing.T) {
	db, path := createTestDB(t)
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	corruptFirstBytes(t, path, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	if _, err := Open(path, ReadWrite); !errors.Is(err, gdbmerrors.ErrBadMagic) {
		t.Fatalf("open corrupted file = %v, want ErrBadMagic", err)
	}
}

func TestStats(t *testing.T) {
	db, _ := createTestDB(t)
	storeSequential(t, db, 100)

	st, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Keys != 100 {
		t.Errorf("Keys = %d", st.Keys)
	}
	if st.Buckets == 0 {
		t.Error("Buckets = 0")
	}
	if st.DirBits != db.hdr.dirBits {
		t.Errorf("DirBits = %d", st.DirBits)
	}
	if st.FileSize == 0 || st.BlockSize == 0 {
		t.Errorf("sizes = %+v", st)
	}
}

func TestReopenAfterClose(t *testing.T) {
	db, path := createTestDB(t)
	storeSequential(t, db, 50)
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db2, err := Open(path, ReadWrite)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	verifySequential(t, db2, 50)

	count, err := db2.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 50 {
		t.Fatalf("count after reopen = %d", count)
	}
}
