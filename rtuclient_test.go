// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

func TestRTUEncoding(t *testing.T) {
	packager := &rtuPackager{SlaveID: 0x01}

	adu, err := packager.Encode(&ProtocolDataUnit{
		FunctionCode: FuncCodeWriteSingleRegister,
		Data:         []byte{0x00, 0x01, 0x00, 0x03},
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []byte{0x01, 0x06, 0x00, 0x01, 0x00, 0x03, 0x98, 0x0B}
	if diff := cmp.Diff(expected, adu); diff != "" {
		t.Errorf("unexpected adu (-want +got):\n%s", diff)
	}
}

func TestRTUDecoding(t *testing.T) {
	packager := &rtuPackager{SlaveID: 0x11}

	pdu, err := packager.Decode([]byte{0x11, 0x03, 0x04, 0x00, 0x0A, 0x01, 0x02, 0x4B, 0xA1})
	if err != nil {
		t.Fatal(err)
	}
	if pdu.FunctionCode != 3 {
		t.Fatalf("function code: expected %v, actual %v", 3, pdu.FunctionCode)
	}
	expected := []byte{0x04, 0x00, 0x0A, 0x01, 0x02}
	if diff := cmp.Diff(expected, pdu.Data); diff != "" {
		t.Errorf("unexpected data (-want +got):\n%s", diff)
	}
}

func TestRTUDecodingBadCRC(t *testing.T) {
	packager := &rtuPackager{SlaveID: 0x11}

	_, err := packager.Decode([]byte{0x11, 0x03, 0x04, 0x00, 0x0A, 0x01, 0x02, 0x4B, 0xA2})
	if err == nil {
		t.Fatal("expected crc error")
	}
	if _, ok := err.(*FramingError); !ok {
		t.Fatalf("expected FramingError, actual %T", err)
	}
}

func TestRTUEncodeDecode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		packager := &rtuPackager{
			SlaveID: rapid.Byte().Draw(t, "SlaveID"),
		}

		pdu := &ProtocolDataUnit{
			FunctionCode: rapid.Byte().Draw(t, "FunctionCode"),
			Data:         rapid.SliceOfN(rapid.Byte(), 1, 252).Draw(t, "Data"),
		}

		raw, err := packager.Encode(pdu)
		if err != nil {
			t.Fatalf("error while encoding: %+v", err)
		}

		dpdu, err := packager.Decode(raw)
		if err != nil {
			t.Fatalf("error while decoding: %+v", err)
		}

		if !cmp.Equal(pdu, dpdu) {
			t.Errorf("invalid pdu: %s", cmp.Diff(pdu, dpdu))
		}
	})
}

func TestIsValidFrame(t *testing.T) {
	response := []byte{0x01, 0x03, 0x02, 0x00, 0x0A, 0x38, 0x43}
	exception := []byte{0x01, 0x83, 0x02, 0xC0, 0xF1}
	writeEcho := []byte{0x01, 0x10, 0x00, 0x01, 0x00, 0x02, 0x10, 0x08}

	for _, tt := range []struct {
		name    string
		slaveID byte
		adu     []byte
		want    bool
	}{
		{"read response", 0x01, response, true},
		{"exception response", 0x01, exception, true},
		{"write echo", 0x01, writeEcho, true},
		{"wildcard slave id", SlaveIDAny, response, true},
		{"wrong slave id", 0x02, response, false},
		{"below minimum length", 0x01, response[:4], false},
		{"truncated payload", 0x01, response[:6], false},
		{"trailing garbage", 0x01, append(append([]byte{}, response...), 0x00), false},
		{"empty", 0x01, nil, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidFrame(tt.slaveID, tt.adu); got != tt.want {
				t.Fatalf("expected %v, actual %v", tt.want, got)
			}
		})
	}
}

// Any single flipped bit must invalidate an otherwise valid frame.
func TestIsValidFrameBitFlip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frame := []byte{0x01, 0x03, 0x02, 0x00, 0x0A, 0x38, 0x43}
		adu := append([]byte{}, frame...)

		bit := rapid.IntRange(0, len(adu)*8-1).Draw(t, "bit")
		adu[bit/8] ^= 1 << (bit % 8)

		if isValidFrame(0x01, adu) {
			t.Fatalf("frame with flipped bit %d still valid: % x", bit, adu)
		}
	})
}

func TestExpectedFrameLength(t *testing.T) {
	for _, tt := range []struct {
		name string
		adu  []byte
		want int
	}{
		{"read holding registers", []byte{0x01, 0x03, 0x06}, 11},
		{"read coils", []byte{0x01, 0x01, 0x01}, 6},
		{"write single register echo", []byte{0x01, 0x06, 0x00}, 8},
		{"write multiple registers echo", []byte{0x01, 0x10, 0x00}, 8},
		{"mask write echo", []byte{0x01, 0x16, 0x00}, 10},
		{"fifo queue undetermined", []byte{0x01, 0x18, 0x00}, 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := expectedFrameLength(tt.adu); got != tt.want {
				t.Fatalf("expected %v, actual %v", tt.want, got)
			}
		})
	}
}
