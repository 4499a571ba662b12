package modbus

import (
	"encoding/binary"
)

// The wire format of the protocol is big-endian per 16-bit word. The
// helpers in this file convert between that layout and a host
// representation. The host byte order is always an explicit argument so
// the conversion is deterministic on any machine running the code,
// never the result of probing the machine itself.

func swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

func swap32(v uint32) uint32 {
	return v<<24 | v>>24 | v<<8&0x00FF0000 | v>>8&0x0000FF00
}

func swap64(v uint64) uint64 {
	v = v<<32 | v>>32
	v = v<<16&0xFFFF0000FFFF0000 | v>>16&0x0000FFFF0000FFFF
	return v<<8&0xFF00FF00FF00FF00 | v>>8&0x00FF00FF00FF00FF
}

// swapBuffer reverses the bytes of every element in place. The buffer
// length must be a whole number of elements and the element width one
// of 1, 2, 4 or 8 bytes.
func swapBuffer(elemSize int, b []byte) error {
	switch elemSize {
	case 1:
		return nil
	case 2, 4, 8:
	default:
		return validationErrorf("element size '%v' must be 1, 2, 4 or 8 bytes", elemSize)
	}
	if len(b)%elemSize != 0 {
		return validationErrorf("buffer length '%v' is not a multiple of element size '%v'", len(b), elemSize)
	}
	for off := 0; off < len(b); off += elemSize {
		for i, j := off, off+elemSize-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
	}
	return nil
}

// normalizeBuffer converts a buffer of fixed width elements between the
// big-endian wire layout and the given host representation, in place.
// On a big-endian host the two layouts agree and the buffer is left
// untouched; on a little-endian host every element is byte swapped.
// The conversion is its own inverse.
func normalizeBuffer(host binary.ByteOrder, elemSize int, b []byte) error {
	if host == binary.ByteOrder(binary.BigEndian) {
		return nil
	}
	if host != binary.ByteOrder(binary.LittleEndian) {
		return validationErrorf("unsupported host byte order %v", host)
	}
	return swapBuffer(elemSize, b)
}

// swapWordPairs converts 4-byte values between the big-endian layout
// A,B,C,D and the mid-little-endian ("word swapped", CDAB) layout
// C,D,A,B used by some devices: the two 2-byte halves exchange places
// while the byte order inside each half is preserved. Applying it twice
// restores the original layout. Only 4-byte elements have a word pair
// to swap; any other width is a configuration mistake and is rejected.
func swapWordPairs(elemSize int, b []byte) error {
	if elemSize != 4 {
		return validationErrorf("word swap requires 4-byte elements, got '%v'", elemSize)
	}
	if len(b)%4 != 0 {
		return validationErrorf("buffer length '%v' is not a multiple of element size '%v'", len(b), 4)
	}
	for off := 0; off < len(b); off += 4 {
		b[off], b[off+2] = b[off+2], b[off]
		b[off+1], b[off+3] = b[off+3], b[off+1]
	}
	return nil
}
