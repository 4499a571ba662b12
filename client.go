// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Logger is the interface to the required logging functions
type Logger interface {
	Printf(format string, v ...interface{})
}

// ClientHandler is the interface that groups the Packager and Transporter methods.
type ClientHandler interface {
	Packager
	Transporter
	Connector
}

type client struct {
	packager    Packager
	transporter Transporter
}

// NewClient creates a new modbus client with given backend handler.
func NewClient(handler ClientHandler) Client {
	return &client{packager: handler, transporter: handler}
}

// NewClient2 creates a new modbus client with given backend packager and transporter.
func NewClient2(packager Packager, transporter Transporter) Client {
	return &client{packager: packager, transporter: transporter}
}

// Request:
//
//	Function code         : 1 byte (0x01)
//	Starting address      : 2 bytes
//	Quantity of coils     : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x01)
//	Byte count            : 1 byte
//	Coil status           : N* bytes (=N or N+1)
func (mb *client) ReadCoils(ctx context.Context, address, quantity uint16) ([]byte, error) {
	return mb.readBits(ctx, FuncCodeReadCoils, address, quantity)
}

// Request:
//
//	Function code         : 1 byte (0x02)
//	Starting address      : 2 bytes
//	Quantity of inputs    : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x02)
//	Byte count            : 1 byte
//	Input status          : N* bytes (=N or N+1)
func (mb *client) ReadDiscreteInputs(ctx context.Context, address, quantity uint16) ([]byte, error) {
	return mb.readBits(ctx, FuncCodeReadDiscreteInputs, address, quantity)
}

func (mb *client) readBits(ctx context.Context, functionCode byte, address, quantity uint16) ([]byte, error) {
	if quantity < 1 || quantity > 2000 {
		return nil, validationErrorf("quantity '%v' must be between '%v' and '%v'", quantity, 1, 2000)
	}
	response, err := mb.send(ctx, &readRequest{
		functionCode: functionCode,
		address:      address,
		quantity:     quantity,
	})
	if err != nil {
		return nil, err
	}
	count := int(response.Data[0])
	length := len(response.Data) - 1
	if count != length {
		return nil, framingErrorf("response data size '%v' does not match count '%v'", length, count)
	}
	if expected := (int(quantity) + 7) / 8; length < expected {
		return nil, &ShortResponseError{FunctionCode: functionCode, Expected: expected, Actual: length}
	}
	return response.Data[1:], nil
}

// Request:
//
//	Function code         : 1 byte (0x03)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x03)
//	Byte count            : 1 byte
//	Register value        : Nx2 bytes
func (mb *client) ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]byte, error) {
	return mb.readRegisters(ctx, FuncCodeReadHoldingRegisters, address, quantity)
}

// Request:
//
//	Function code         : 1 byte (0x04)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x04)
//	Byte count            : 1 byte
//	Input registers       : Nx2 bytes
func (mb *client) ReadInputRegisters(ctx context.Context, address, quantity uint16) ([]byte, error) {
	return mb.readRegisters(ctx, FuncCodeReadInputRegisters, address, quantity)
}

func (mb *client) readRegisters(ctx context.Context, functionCode byte, address, quantity uint16) ([]byte, error) {
	if quantity < 1 || quantity > 125 {
		return nil, validationErrorf("quantity '%v' must be between '%v' and '%v'", quantity, 1, 125)
	}
	response, err := mb.send(ctx, &readRequest{
		functionCode: functionCode,
		address:      address,
		quantity:     quantity,
	})
	if err != nil {
		return nil, err
	}
	count := int(response.Data[0])
	length := len(response.Data) - 1
	if count != length {
		return nil, framingErrorf("response data size '%v' does not match count '%v'", length, count)
	}
	if expected := 2 * int(quantity); length < expected {
		return nil, &ShortResponseError{FunctionCode: functionCode, Expected: expected, Actual: length}
	}
	return response.Data[1:], nil
}

// Request:
//
//	Function code         : 1 byte (0x05)
//	Output address        : 2 bytes
//	Output value          : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x05)
//	Output address        : 2 bytes
//	Output value          : 2 bytes
func (mb *client) WriteSingleCoil(ctx context.Context, address, value uint16) ([]byte, error) {
	return mb.writeSingle(ctx, FuncCodeWriteSingleCoil, address, value)
}

// Request:
//
//	Function code         : 1 byte (0x06)
//	Register address      : 2 bytes
//	Register value        : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x06)
//	Register address      : 2 bytes
//	Register value        : 2 bytes
func (mb *client) WriteSingleRegister(ctx context.Context, address, value uint16) ([]byte, error) {
	return mb.writeSingle(ctx, FuncCodeWriteSingleRegister, address, value)
}

func (mb *client) writeSingle(ctx context.Context, functionCode byte, address, value uint16) ([]byte, error) {
	response, err := mb.send(ctx, &writeSingleRequest{
		functionCode: functionCode,
		address:      address,
		value:        value,
	})
	if err != nil {
		return nil, err
	}
	// Fixed response length
	if len(response.Data) < 4 {
		return nil, &ShortResponseError{FunctionCode: functionCode, Expected: 4, Actual: len(response.Data)}
	}
	respValue := binary.BigEndian.Uint16(response.Data)
	if address != respValue {
		return nil, fmt.Errorf("modbus: response address '%v' does not match request '%v'", respValue, address)
	}
	results := response.Data[2:4]
	respValue = binary.BigEndian.Uint16(results)
	if value != respValue {
		return nil, fmt.Errorf("modbus: response value '%v' does not match request '%v'", respValue, value)
	}
	return results, nil
}

// Request:
//
//	Function code         : 1 byte (0x10)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
//	Byte count            : 1 byte
//	Registers value       : N* bytes
//
// Response:
//
//	Function code         : 1 byte (0x10)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
func (mb *client) WriteMultipleRegisters(ctx context.Context, address, quantity uint16, value []byte) ([]byte, error) {
	if quantity < 1 || quantity > 123 {
		return nil, validationErrorf("quantity '%v' must be between '%v' and '%v'", quantity, 1, 123)
	}
	response, err := mb.send(ctx, &writeMultipleRequest{
		functionCode: FuncCodeWriteMultipleRegisters,
		address:      address,
		quantity:     quantity,
		payload:      value,
	})
	if err != nil {
		return nil, err
	}
	// Fixed response length
	if len(response.Data) < 4 {
		return nil, &ShortResponseError{FunctionCode: FuncCodeWriteMultipleRegisters, Expected: 4, Actual: len(response.Data)}
	}
	respValue := binary.BigEndian.Uint16(response.Data)
	if address != respValue {
		return nil, fmt.Errorf("modbus: response address '%v' does not match request '%v'", respValue, address)
	}
	results := response.Data[2:4]
	respValue = binary.BigEndian.Uint16(results)
	if quantity != respValue {
		return nil, fmt.Errorf("modbus: response quantity '%v' does not match request '%v'", respValue, quantity)
	}
	return results, nil
}

// Request:
//
//	Function code         : 1 byte (0x17)
//	Read starting address : 2 bytes
//	Quantity to read      : 2 bytes
//	Write starting address: 2 bytes
//	Quantity to write     : 2 bytes
//	Write byte count      : 1 byte
//	Write registers value : N* bytes
//
// Response:
//
//	Function code         : 1 byte (0x17)
//	Byte count            : 1 byte
//	Read registers value  : Nx2 bytes
func (mb *client) ReadWriteMultipleRegisters(ctx context.Context, readAddress, readQuantity, writeAddress, writeQuantity uint16, value []byte) ([]byte, error) {
	if readQuantity < 1 || readQuantity > 125 {
		return nil, validationErrorf("quantity to read '%v' must be between '%v' and '%v'", readQuantity, 1, 125)
	}
	if writeQuantity < 1 || writeQuantity > 121 {
		return nil, validationErrorf("quantity to write '%v' must be between '%v' and '%v'", writeQuantity, 1, 121)
	}
	response, err := mb.send(ctx, &readWriteRequest{
		readAddress:   readAddress,
		readQuantity:  readQuantity,
		writeAddress:  writeAddress,
		writeQuantity: writeQuantity,
		payload:       value,
	})
	if err != nil {
		return nil, err
	}
	count := int(response.Data[0])
	length := len(response.Data) - 1
	if count != length {
		return nil, framingErrorf("response data size '%v' does not match count '%v'", length, count)
	}
	if expected := 2 * int(readQuantity); length < expected {
		return nil, &ShortResponseError{FunctionCode: FuncCodeReadWriteMultipleRegisters, Expected: expected, Actual: length}
	}
	return response.Data[1:], nil
}

// WriteMultipleCoils is recognized but not spoken by this client.
func (mb *client) WriteMultipleCoils(ctx context.Context, address, quantity uint16, value []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: function '%v'", ErrNotImplemented, FuncCodeWriteMultipleCoils)
}

// MaskWriteRegister is recognized but not spoken by this client.
func (mb *client) MaskWriteRegister(ctx context.Context, address, andMask, orMask uint16) ([]byte, error) {
	return nil, fmt.Errorf("%w: function '%v'", ErrNotImplemented, FuncCodeMaskWriteRegister)
}

// ReadFIFOQueue is recognized but not spoken by this client.
func (mb *client) ReadFIFOQueue(ctx context.Context, address uint16) ([]byte, error) {
	return nil, fmt.Errorf("%w: function '%v'", ErrNotImplemented, FuncCodeReadFIFOQueue)
}

// ReadFileRecord is recognized but not spoken by this client.
func (mb *client) ReadFileRecord(ctx context.Context, requests []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: function '%v'", ErrNotImplemented, FuncCodeReadFileRecord)
}

// WriteFileRecord is recognized but not spoken by this client.
func (mb *client) WriteFileRecord(ctx context.Context, requests []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: function '%v'", ErrNotImplemented, FuncCodeWriteFileRecord)
}

// send runs one full transceive cycle: serialize the request, frame it,
// exchange it for a response and either decode the payload or surface
// the device exception. No state survives between calls.
func (mb *client) send(ctx context.Context, req request) (*ProtocolDataUnit, error) {
	pdu, err := req.encode()
	if err != nil {
		return nil, err
	}
	aduRequest, err := mb.packager.Encode(pdu)
	if err != nil {
		return nil, err
	}
	aduResponse, err := mb.transporter.Send(ctx, aduRequest)
	if err != nil {
		return nil, err
	}
	if err := mb.packager.Verify(aduRequest, aduResponse); err != nil {
		return nil, err
	}
	response, err := mb.packager.Decode(aduResponse)
	if err != nil {
		return nil, err
	}
	// A differing function code carries an exception frame
	if response.FunctionCode != pdu.FunctionCode {
		return nil, responseError(response)
	}
	if len(response.Data) == 0 {
		return nil, framingErrorf("response data is empty")
	}
	return response, nil
}

func responseError(response *ProtocolDataUnit) error {
	mbError := &Error{FunctionCode: response.FunctionCode}
	if len(response.Data) > 0 {
		mbError.ExceptionCode = response.Data[0]
	}
	return mbError
}
