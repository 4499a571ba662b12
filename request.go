package modbus

import (
	"encoding/binary"
)

// A request describes one protocol operation and knows how to serialize
// itself into the function specific PDU layout. Each variant carries
// exactly the fields its wire format needs; the client builds a fresh
// value per call and never shares one between calls.
type request interface {
	encode() (*ProtocolDataUnit, error)
}

// readRequest covers the four read functions, which share the layout
// [start address][quantity].
type readRequest struct {
	functionCode byte
	address      uint16
	quantity     uint16
}

func (r *readRequest) encode() (*ProtocolDataUnit, error) {
	return &ProtocolDataUnit{
		FunctionCode: r.functionCode,
		Data:         dataBlock(r.address, r.quantity),
	}, nil
}

// writeSingleRequest covers WriteSingleCoil and WriteSingleRegister:
// [address][value]. A coil value is restricted to the two sentinel
// states the protocol defines.
type writeSingleRequest struct {
	functionCode byte
	address      uint16
	value        uint16
}

func (r *writeSingleRequest) encode() (*ProtocolDataUnit, error) {
	if r.functionCode == FuncCodeWriteSingleCoil && r.value != 0xFF00 && r.value != 0x0000 {
		return nil, validationErrorf("state '%v' must be either 0xFF00 (ON) or 0x0000 (OFF)", r.value)
	}
	return &ProtocolDataUnit{
		FunctionCode: r.functionCode,
		Data:         dataBlock(r.address, r.value),
	}, nil
}

// writeMultipleRequest covers WriteMultipleRegisters:
// [address][quantity][byte count][data], where the byte count is twice
// the register quantity and must equal the payload length.
type writeMultipleRequest struct {
	functionCode byte
	address      uint16
	quantity     uint16
	payload      []byte
}

func (r *writeMultipleRequest) encode() (*ProtocolDataUnit, error) {
	if err := checkRegisterPayload(r.quantity, r.payload); err != nil {
		return nil, err
	}
	return &ProtocolDataUnit{
		FunctionCode: r.functionCode,
		Data:         dataBlockSuffix(r.payload, r.address, r.quantity),
	}, nil
}

// readWriteRequest covers ReadWriteMultipleRegisters:
// [read address][read quantity][write address][write quantity]
// [byte count][data].
type readWriteRequest struct {
	readAddress   uint16
	readQuantity  uint16
	writeAddress  uint16
	writeQuantity uint16
	payload       []byte
}

func (r *readWriteRequest) encode() (*ProtocolDataUnit, error) {
	if err := checkRegisterPayload(r.writeQuantity, r.payload); err != nil {
		return nil, err
	}
	return &ProtocolDataUnit{
		FunctionCode: FuncCodeReadWriteMultipleRegisters,
		Data:         dataBlockSuffix(r.payload, r.readAddress, r.readQuantity, r.writeAddress, r.writeQuantity),
	}, nil
}

// checkRegisterPayload rejects register write data before any I/O:
// registers are 2 bytes each, so the payload must be even, non empty
// and agree with the declared quantity.
func checkRegisterPayload(quantity uint16, payload []byte) error {
	if len(payload) < 2 {
		return validationErrorf("write data length '%v' must be at least one register (2 bytes)", len(payload))
	}
	if len(payload)%2 != 0 {
		return validationErrorf("write data length '%v' must be a multiple of the register size", len(payload))
	}
	if len(payload) != 2*int(quantity) {
		return validationErrorf("write data length '%v' does not match quantity '%v'", len(payload), quantity)
	}
	return nil
}

// dataBlock creates a sequence of uint16 data in wire order.
func dataBlock(value ...uint16) []byte {
	data := make([]byte, 2*len(value))
	for i, v := range value {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	return data
}

// dataBlockSuffix creates a sequence of uint16 data and appends the
// suffix preceded by its byte count.
func dataBlockSuffix(suffix []byte, value ...uint16) []byte {
	length := 2 * len(value)
	data := make([]byte, length+1+len(suffix))
	for i, v := range value {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	data[length] = uint8(len(suffix))
	copy(data[length+1:], suffix)
	return data
}
