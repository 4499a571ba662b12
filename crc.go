// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

// crc accumulates the 16-bit cyclic redundancy check used by the serial
// framing: polynomial 0xA001, initial value 0xFFFF, input bits pushed
// least significant first. The zero value is not ready for use, call
// reset first.
type crc struct {
	crc uint16
}

func (c *crc) reset() *crc {
	c.crc = 0xFFFF
	return c
}

func (c *crc) pushByte(v byte) *crc {
	c.crc ^= uint16(v)
	for i := 0; i < 8; i++ {
		if c.crc&1 != 0 {
			c.crc = c.crc>>1 ^ 0xA001
		} else {
			c.crc >>= 1
		}
	}
	return c
}

func (c *crc) pushBytes(vs []byte) *crc {
	for _, v := range vs {
		c.pushByte(v)
	}
	return c
}

func (c *crc) value() uint16 {
	return c.crc
}
