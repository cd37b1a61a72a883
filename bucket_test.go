package gdbm

import (
	"errors"
	"fmt"
	"testing"

	gdbmerrors "github.com/jmallard/gdbm/errors"
)

func TestBucketRoundTrip(t *testing.T) {
	for _, tl := range testLayouts {
		t.Run(tl.name, func(t *testing.T) {
			const bucketSize = 512
			capacity := tl.lay.bucketElemCapacity(bucketSize)

			b := newBucket(2, capacity)
			b.avail = insertAvail(b.avail, availElem{size: 100, ofs: 7000})
			b.avail = insertAvail(b.avail, availElem{size: 40, ofs: 9000})
			for i := 0; i < 5; i++ {
				key := []byte(fmt.Sprintf("key %d", i))
				b.insert(bucketElement{
					hash:     hashKey(key),
					prefix:   keyPrefix(key),
					dataOfs:  uint64(1000 + i*50),
					keySize:  uint32(len(key)),
					dataSize: 10,
				})
			}

			decoded, err := decodeBucket(tl.lay, b.encode(tl.lay, bucketSize), capacity)
			if err != nil {
				t.Fatalf("decodeBucket: %v", err)
			}
			if decoded.depth != 2 || decoded.count != 5 {
				t.Fatalf("depth/count = %d/%d", decoded.depth, decoded.count)
			}
			if len(decoded.avail) != 2 || decoded.avail[0].size != 40 {
				t.Fatalf("avail = %+v", decoded.avail)
			}
			for i := range b.elems {
				if b.elems[i] != decoded.elems[i] {
					t.Fatalf("elem %d: %+v != %+v", i, b.elems[i], decoded.elems[i])
				}
			}
		})
	}
}

func TestDecodeBucketRejectsAvailOverflow(t *testing.T) {
	lay := MagicLE64.layout()
	const bucketSize = 512
	capacity := lay.bucketElemCapacity(bucketSize)
	buf := newBucket(0, capacity).encode(lay, bucketSize)
	lay.order.PutUint32(buf, bucketAvailMax+1)
	if _, err := decodeBucket(lay, buf, capacity); !errors.Is(err, gdbmerrors.ErrBadBucket) {
		t.Errorf("decodeBucket = %v, want ErrBadBucket", err)
	}
}

func TestBucketFindSlotConfirmsPrefixAndSize(t *testing.T) {
	b := newBucket(0, 16)
	key := []byte("alpha")
	el := bucketElement{
		hash:    hashKey(key),
		prefix:  keyPrefix(key),
		dataOfs: 100,
		keySize: uint32(len(key)),
	}
	b.insert(el)

	if got := b.findSlot(hashKey(key), key); len(got) != 1 {
		t.Fatalf("findSlot(alpha) = %v", got)
	}
	// Same hash, different length: filtered without touching the record.
	if got := b.findSlot(hashKey(key), []byte("alphaalpha")); len(got) != 0 {
		t.Fatalf("findSlot(longer key) = %v", got)
	}
	if got := b.findSlot(hashKey([]byte("beta")), []byte("beta")); len(got) != 0 {
		t.Fatalf("findSlot(absent) = %v", got)
	}
}

func TestBucketRemoveKeepsProbeRunsReachable(t *testing.T) {
	rng := newTestRNG(t)
	const capacity = 8
	b := newBucket(0, capacity)

	keys := make([][]byte, 0, capacity)
	for i := 0; i < capacity; i++ {
		key := []byte(fmt.Sprintf("k%d-%d", i, rng.Uint32()))
		keys = append(keys, key)
		b.insert(bucketElement{
			hash:    hashKey(key),
			prefix:  keyPrefix(key),
			keySize: uint32(len(key)),
		})
	}

	// Remove every other key; the rest must stay findable even when probe
	// runs crossed the removed slots.
	for i := 0; i < capacity; i += 2 {
		slots := b.findSlot(hashKey(keys[i]), keys[i])
		if len(slots) == 0 {
			t.Fatalf("key %d vanished before removal", i)
		}
		b.remove(slots[0])
	}
	for i := 1; i < capacity; i += 2 {
		if slots := b.findSlot(hashKey(keys[i]), keys[i]); len(slots) == 0 {
			t.Fatalf("key %d unreachable after neighbor removal", i)
		}
	}
	if b.count != capacity/2 {
		t.Fatalf("count = %d, want %d", b.count, capacity/2)
	}
}

func TestBucketSplitPartitionsByNextBit(t *testing.T) {
	rng := newTestRNG(t)
	const capacity = 32
	b := newBucket(0, capacity)
	b.avail = insertAvail(b.avail, availElem{size: 64, ofs: 5000})

	for i := 0; i < capacity; i++ {
		key := []byte(fmt.Sprintf("split-%d-%d", i, rng.Uint32()))
		b.insert(bucketElement{
			hash:    hashKey(key),
			prefix:  keyPrefix(key),
			keySize: uint32(len(key)),
		})
	}

	moved := b.split()
	if b.depth != 1 || moved.depth != 1 {
		t.Fatalf("depths = %d/%d, want 1/1", b.depth, moved.depth)
	}
	if b.count+moved.count != capacity {
		t.Fatalf("element loss: %d + %d != %d", b.count, moved.count, capacity)
	}
	if len(b.avail) != 1 || len(moved.avail) != 0 {
		t.Fatalf("avail entries must stay with the kept bucket")
	}
	for i := range b.elems {
		if el := &b.elems[i]; el.occupied() && (el.hash>>(hashBits-1))&1 != 0 {
			t.Fatalf("kept bucket holds a bit-1 element")
		}
	}
	for i := range moved.elems {
		if el := &moved.elems[i]; el.occupied() && (el.hash>>(hashBits-1))&1 != 1 {
			t.Fatalf("moved bucket holds a bit-0 element")
		}
	}
}
