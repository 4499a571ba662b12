package modbus

import (
	"context"
	"encoding/binary"
	"math"
)

// WordOrder selects how values spanning two registers are laid out on
// the wire.
type WordOrder int

const (
	// HighWordFirst is the regular layout: big-endian across the whole
	// value (ABCD).
	HighWordFirst WordOrder = iota
	// LowWordFirst is the word swapped, mid-little-endian layout (CDAB)
	// spoken by some vendors. It applies to 4-byte values only.
	LowWordFirst
)

// Value is the closed set of fixed width numeric types that can be
// mapped onto 2-byte registers.
type Value interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// RegisterCodec converts between typed values and the register oriented
// wire bytes. The zero value marshals from a little-endian host
// representation in the regular word order.
type RegisterCodec struct {
	// Host is the byte order of the in-memory representation values
	// are marshalled from and unmarshalled to. Nil means little-endian.
	Host binary.ByteOrder
	// Order selects the register layout for 4-byte values.
	Order WordOrder
}

func (rc RegisterCodec) host() binary.ByteOrder {
	if rc.Host == nil {
		return binary.LittleEndian
	}
	return rc.Host
}

// RegisterQuantity returns the number of registers needed to carry
// count values of type T. The total byte size must fill whole
// registers, so an odd number of 1-byte values is rejected.
func RegisterQuantity[T Value](count int) (uint16, error) {
	if count < 1 {
		return 0, validationErrorf("value count '%v' must be at least 1", count)
	}
	total := count * sizeOf[T]()
	if total%2 != 0 {
		return 0, validationErrorf("total size '%v' bytes does not fill whole registers", total)
	}
	quantity := total / 2
	if quantity > math.MaxUint16 {
		return 0, validationErrorf("quantity '%v' exceeds the 16-bit quantity field", quantity)
	}
	return uint16(quantity), nil
}

// MarshalValues converts values into register wire bytes: each element
// is laid down in the host representation, normalized to the big-endian
// wire order and, in LowWordFirst mode, word swapped.
func MarshalValues[T Value](codec RegisterCodec, values []T) ([]byte, error) {
	if _, err := RegisterQuantity[T](len(values)); err != nil {
		return nil, err
	}
	size := sizeOf[T]()
	host := codec.host()
	data := make([]byte, len(values)*size)
	for i, v := range values {
		putBits(host, data[i*size:(i+1)*size], valueBits(v))
	}
	if err := normalizeBuffer(host, size, data); err != nil {
		return nil, err
	}
	if codec.Order == LowWordFirst {
		if err := swapWordPairs(size, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// UnmarshalValues mirrors MarshalValues: wire bytes become a slice of
// typed values in the host representation. The input is not modified.
func UnmarshalValues[T Value](codec RegisterCodec, data []byte) ([]T, error) {
	size := sizeOf[T]()
	if len(data) == 0 || len(data)%size != 0 {
		return nil, validationErrorf("data length '%v' is not a multiple of the value size '%v'", len(data), size)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	if codec.Order == LowWordFirst {
		if err := swapWordPairs(size, buf); err != nil {
			return nil, err
		}
	}
	host := codec.host()
	if err := normalizeBuffer(host, size, buf); err != nil {
		return nil, err
	}
	values := make([]T, len(buf)/size)
	for i := range values {
		values[i] = valueFromBits[T](getBits(host, buf[i*size:(i+1)*size]))
	}
	return values, nil
}

// ReadHoldingValues reads count values of type T from holding
// registers starting at address.
func ReadHoldingValues[T Value](ctx context.Context, c Client, codec RegisterCodec, address uint16, count int) ([]T, error) {
	return readValues[T](ctx, codec, address, count, FuncCodeReadHoldingRegisters, c.ReadHoldingRegisters)
}

// ReadInputValues reads count values of type T from input registers
// starting at address.
func ReadInputValues[T Value](ctx context.Context, c Client, codec RegisterCodec, address uint16, count int) ([]T, error) {
	return readValues[T](ctx, codec, address, count, FuncCodeReadInputRegisters, c.ReadInputRegisters)
}

func readValues[T Value](ctx context.Context, codec RegisterCodec, address uint16, count int, functionCode byte,
	read func(context.Context, uint16, uint16) ([]byte, error)) ([]T, error) {
	quantity, err := RegisterQuantity[T](count)
	if err != nil {
		return nil, err
	}
	data, err := read(ctx, address, quantity)
	if err != nil {
		return nil, err
	}
	size := sizeOf[T]()
	if len(data) < count*size {
		return nil, &ShortResponseError{FunctionCode: functionCode, Expected: count * size, Actual: len(data)}
	}
	return UnmarshalValues[T](codec, data[:count*size])
}

// WriteHoldingValues writes values of type T to holding registers
// starting at address. All argument validation happens before any
// transport I/O.
func WriteHoldingValues[T Value](ctx context.Context, c Client, codec RegisterCodec, address uint16, values []T) error {
	data, err := MarshalValues(codec, values)
	if err != nil {
		return err
	}
	_, err = c.WriteMultipleRegisters(ctx, address, uint16(len(data)/2), data)
	return err
}

func sizeOf[T Value]() int {
	var v T
	switch any(v).(type) {
	case int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32, float32:
		return 4
	default:
		return 8
	}
}

func valueBits[T Value](v T) uint64 {
	switch x := any(v).(type) {
	case int8:
		return uint64(uint8(x))
	case uint8:
		return uint64(x)
	case int16:
		return uint64(uint16(x))
	case uint16:
		return uint64(x)
	case int32:
		return uint64(uint32(x))
	case uint32:
		return uint64(x)
	case float32:
		return uint64(math.Float32bits(x))
	case int64:
		return uint64(x)
	case uint64:
		return x
	case float64:
		return math.Float64bits(x)
	}
	return 0
}

func valueFromBits[T Value](bits uint64) T {
	var v T
	switch p := any(&v).(type) {
	case *int8:
		*p = int8(bits)
	case *uint8:
		*p = uint8(bits)
	case *int16:
		*p = int16(bits)
	case *uint16:
		*p = uint16(bits)
	case *int32:
		*p = int32(bits)
	case *uint32:
		*p = uint32(bits)
	case *float32:
		*p = math.Float32frombits(uint32(bits))
	case *int64:
		*p = int64(bits)
	case *uint64:
		*p = bits
	case *float64:
		*p = math.Float64frombits(bits)
	}
	return v
}

func putBits(host binary.ByteOrder, b []byte, bits uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(bits)
	case 2:
		host.PutUint16(b, uint16(bits))
	case 4:
		host.PutUint32(b, uint32(bits))
	case 8:
		host.PutUint64(b, bits)
	}
}

func getBits(host binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(host.Uint16(b))
	case 4:
		return uint64(host.Uint32(b))
	default:
		return host.Uint64(b)
	}
}
