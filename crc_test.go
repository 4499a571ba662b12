// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"testing"

	"pgregory.net/rapid"
)

func TestCRC(t *testing.T) {
	var crc crc
	crc.reset().pushBytes([]byte{0x02, 0x07})

	if crc.value() != 0x1241 {
		t.Fatalf("crc expected %v, actual %v", 0x1241, crc.value())
	}
}

func TestCRCZeroByte(t *testing.T) {
	var crc crc
	crc.reset().pushByte(0x00)

	if crc.value() != 0x40BF {
		t.Fatalf("crc expected %#04x, actual %#04x", 0x40BF, crc.value())
	}
	// Transmitted low byte first
	if lo, hi := byte(crc.value()), byte(crc.value()>>8); lo != 0xBF || hi != 0x40 {
		t.Fatalf("crc bytes expected bf 40, actual %02x %02x", lo, hi)
	}
}

// Appending the checksum (low byte first) to any buffer must yield a
// buffer whose recomputed checksum over all but the trailing two bytes
// matches the trailing pair, and a single flipped bit must break that.
func TestCRCSelfConsistency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 1, 252).Draw(t, "payload")

		var c crc
		c.reset().pushBytes(payload)
		checksum := c.value()

		framed := append(append([]byte{}, payload...), byte(checksum), byte(checksum>>8))

		verify := func(b []byte) bool {
			var c crc
			c.reset().pushBytes(b[:len(b)-2])
			received := uint16(b[len(b)-1])<<8 | uint16(b[len(b)-2])
			return received == c.value()
		}

		if !verify(framed) {
			t.Fatalf("frame with appended checksum did not verify: % x", framed)
		}

		bit := rapid.IntRange(0, len(framed)*8-1).Draw(t, "bit")
		framed[bit/8] ^= 1 << (bit % 8)
		if verify(framed) {
			t.Fatalf("frame with flipped bit %d still verified: % x", bit, framed)
		}
	})
}
