package gdbm

import (
	"encoding/binary"

	gdbmerrors "github.com/jmallard/gdbm/errors"
)

// On-disk magic values, interpreted in the file's own byte order. The value
// identifies the offset width and whether the numsync extension flag is set;
// which byte order decodes it identifies the file's endianness.
const (
	magic32   = uint32(0x13579ACD) // 32-bit offsets
	magic64   = uint32(0x13579ACF) // 64-bit offsets
	magic32NS = uint32(0x13579AD0) // 32-bit offsets, numsync
	magic64NS = uint32(0x13579AD1) // 64-bit offsets, numsync
)

// Magic identifies one of the eight recognized database file variants:
// {32-bit, 64-bit} offsets x {little, big} endian, each with and without
// the numsync flag.
type Magic uint8

const (
	MagicLE32 Magic = iota
	MagicLE64
	MagicBE32
	MagicBE64
	MagicLE32NS
	MagicLE64NS
	MagicBE32NS
	MagicBE64NS
)

// Magics lists all recognized variants.
var Magics = []Magic{
	MagicLE32, MagicLE64, MagicBE32, MagicBE64,
	MagicLE32NS, MagicLE64NS, MagicBE32NS, MagicBE64NS,
}

// magicFor returns the variant for a width/order/numsync combination.
func magicFor(width int, order binary.ByteOrder, numsync bool) Magic {
	le := order == binary.ByteOrder(binary.LittleEndian)
	switch {
	case le && width == 4 && !numsync:
		return MagicLE32
	case le && width == 8 && !numsync:
		return MagicLE64
	case le && width == 4:
		return MagicLE32NS
	case le && width == 8:
		return MagicLE64NS
	case width == 4 && !numsync:
		return MagicBE32
	case width == 8 && !numsync:
		return MagicBE64
	case width == 4:
		return MagicBE32NS
	default:
		return MagicBE64NS
	}
}

// detectMagic inspects the first four bytes of a file and selects the
// variant. Returns ErrBadMagic if the bytes match no recognized variant.
func detectMagic(buf []byte) (Magic, error) {
	if len(buf) < 4 {
		return 0, gdbmerrors.ErrBadMagic
	}
	switch binary.LittleEndian.Uint32(buf) {
	case magic32:
		return MagicLE32, nil
	case magic64:
		return MagicLE64, nil
	case magic32NS:
		return MagicLE32NS, nil
	case magic64NS:
		return MagicLE64NS, nil
	}
	switch binary.BigEndian.Uint32(buf) {
	case magic32:
		return MagicBE32, nil
	case magic64:
		return MagicBE64, nil
	case magic32NS:
		return MagicBE32NS, nil
	case magic64NS:
		return MagicBE64NS, nil
	}
	return 0, gdbmerrors.ErrBadMagic
}

// value returns the numeric magic, to be encoded in the file's byte order.
func (m Magic) value() uint32 {
	switch m {
	case MagicLE32, MagicBE32:
		return magic32
	case MagicLE64, MagicBE64:
		return magic64
	case MagicLE32NS, MagicBE32NS:
		return magic32NS
	default:
		return magic64NS
	}
}

// Width returns the offset width in bytes (4 or 8).
func (m Magic) Width() int {
	switch m {
	case MagicLE64, MagicBE64, MagicLE64NS, MagicBE64NS:
		return 8
	default:
		return 4
	}
}

// ByteOrder returns the byte order every multi-byte integer in the file
// is encoded with.
func (m Magic) ByteOrder() binary.ByteOrder {
	switch m {
	case MagicBE32, MagicBE64, MagicBE32NS, MagicBE64NS:
		return binary.BigEndian
	default:
		return binary.LittleEndian
	}
}

// Numsync reports whether the numsync extension flag is set. The flag is
// recognized and preserved but carries no further semantics in this engine.
func (m Magic) Numsync() bool {
	switch m {
	case MagicLE32NS, MagicLE64NS, MagicBE32NS, MagicBE64NS:
		return true
	default:
		return false
	}
}

func (m Magic) String() string {
	switch m {
	case MagicLE32:
		return "LE32"
	case MagicLE64:
		return "LE64"
	case MagicBE32:
		return "BE32"
	case MagicBE64:
		return "BE64"
	case MagicLE32NS:
		return "LE32NS"
	case MagicLE64NS:
		return "LE64NS"
	case MagicBE32NS:
		return "BE32NS"
	case MagicBE64NS:
		return "BE64NS"
	default:
		return "invalid"
	}
}

// layout returns the encoding descriptor derived from the magic.
func (m Magic) layout() layout {
	return layout{width: m.Width(), order: m.ByteOrder()}
}
