package storage

import "encoding/binary"

// Byte codec: little-endian integer packing, UTF-8 text, bit flags. Kept
// as free functions over a byte slice rather than a stateful encoder —
// there is nothing to construct, so a module-level singleton would only
// add ceremony.

func getU16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

func putU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:off+2], v)
}

func getU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

func putU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// getU48/putU48 pack the 6-byte pk and pk-counter fields. There is no
// native 48-bit integer type, so the value travels as a uint64 and only
// the low 6 bytes are read/written, little-endian.
func getU48(b []byte, off int) uint64 {
	var v uint64
	for i := 5; i >= 0; i-- {
		v = v<<8 | uint64(b[off+i])
	}
	return v
}

func putU48(b []byte, off int, v uint64) {
	for i := 0; i < 6; i++ {
		b[off+i] = byte(v >> (8 * uint(i)))
	}
}

// EncodeUTF8 and DecodeUTF8 are the canonical string<->byte conversion
// for row bodies; callers outside this package go through these rather
// than converting inline so the conversion has one place to change.
func EncodeUTF8(s string) []byte {
	return []byte(s)
}

func DecodeUTF8(b []byte) string {
	return string(b)
}

// setBit/getBit address a single bit within one flag byte, bit 0 = LSB.
// Used for the row header's flag byte (deleted/overflow bits).
func getBit(flag byte, bit uint) bool {
	return flag&(1<<bit) != 0
}

func setBit(flag byte, bit uint, v bool) byte {
	if v {
		return flag | (1 << bit)
	}
	return flag &^ (1 << bit)
}
