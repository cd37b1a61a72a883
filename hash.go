package gdbm

const (
	// hashBits is the digest width. Bucket routing consumes leading bits of
	// the 31-bit value; 0xFFFFFFFF can therefore never be a real hash and
	// marks an empty bucket slot.
	hashBits = 31

	// emptyHash marks an unoccupied bucket element.
	emptyHash = uint32(0xFFFFFFFF)

	// keyPrefixLen is the number of leading key bytes stored inline in a
	// bucket element for cheap pre-comparison.
	keyPrefixLen = 4
)

// hashKey computes the format-defined 31-bit digest over the raw key bytes.
//
// This function is a frozen wire contract: bucket placement is a direct
// function of the digest, so it must be reproduced bit for bit across all
// width/endianness variants. It operates on logical bytes and is independent
// of the file's own byte order. Reference vectors: "hello" -> 1730502474,
// "hello\x00" -> 72084335, "" -> 12345.
func hashKey(key []byte) uint32 {
	value := uint32(len(key)) * 0x238F13AF
	for i, c := range key {
		value = (value + uint32(c)<<(uint(i)*5%24)) & 0x7FFFFFFF
	}
	return (value*1103515243 + 12345) & 0x7FFFFFFF
}

// dirIndex routes a hash to a directory slot using its top dirBits bits.
func dirIndex(dirBits uint32, hash uint32) int {
	return int(hash >> (hashBits - dirBits))
}

// probeStart is the element index at which the probe sequence for a hash
// begins within a bucket.
func probeStart(hash uint32, bucketElems uint32) int {
	return int(hash % bucketElems)
}

// keyPrefix extracts the inline prefix stored in a bucket element,
// zero-padded for keys shorter than keyPrefixLen.
func keyPrefix(key []byte) [keyPrefixLen]byte {
	var p [keyPrefixLen]byte
	copy(p[:], key)
	return p
}
