package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewire/modbus"
)

func TestParseCoil(t *testing.T) {
	for in, want := range map[string]uint16{
		"on":    0xFF00,
		"1":     0xFF00,
		"true":  0xFF00,
		"off":   0x0000,
		"0":     0x0000,
		"false": 0x0000,
	} {
		got, err := parseCoil(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseCoil("maybe")
	assert.Error(t, err)
}

func TestNewCodec(t *testing.T) {
	codec, err := newCodec("high-first")
	require.NoError(t, err)
	assert.Equal(t, modbus.HighWordFirst, codec.Order)

	codec, err = newCodec("low-first")
	require.NoError(t, err)
	assert.Equal(t, modbus.LowWordFirst, codec.Order)

	_, err = newCodec("sideways")
	assert.Error(t, err)
}

func TestParseNumbers(t *testing.T) {
	i16, err := parseSigned[int16](16)("-42")
	require.NoError(t, err)
	assert.Equal(t, int16(-42), i16)

	u16, err := parseUnsigned[uint16](16)("0xABCD")
	require.NoError(t, err)
	assert.Equal(t, uint16(0xABCD), u16)

	_, err = parseUnsigned[uint8](8)("300")
	assert.Error(t, err)

	_, err = parseSigned[int8](8)("abc")
	assert.Error(t, err)
}
