// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

/*
Package modbus implements the MODBUS application protocol for TCP and
RTU serial connections.

The package splits a client into three collaborators: a Packager that
frames protocol data units for a given transport, a Transporter that
moves framed bytes to a remote device and back, and the client itself
which encodes requests, validates responses and translates device
exceptions into errors.
*/
package modbus

import (
	"context"
	"errors"
	"fmt"
)

const (
	// FuncCodeReadCoils for bit wise access
	FuncCodeReadCoils = 1
	// FuncCodeReadDiscreteInputs for bit wise access
	FuncCodeReadDiscreteInputs = 2
	// FuncCodeWriteSingleCoil for bit wise access
	FuncCodeWriteSingleCoil = 5
	// FuncCodeWriteMultipleCoils for bit wise access
	FuncCodeWriteMultipleCoils = 15

	// FuncCodeReadHoldingRegisters 16-bit wise access
	FuncCodeReadHoldingRegisters = 3
	// FuncCodeReadInputRegisters 16-bit wise access
	FuncCodeReadInputRegisters = 4
	// FuncCodeWriteSingleRegister 16-bit wise access
	FuncCodeWriteSingleRegister = 6
	// FuncCodeWriteMultipleRegisters 16-bit wise access
	FuncCodeWriteMultipleRegisters = 16
	// FuncCodeReadWriteMultipleRegisters 16-bit wise access
	FuncCodeReadWriteMultipleRegisters = 23
	// FuncCodeMaskWriteRegister 16-bit wise access
	FuncCodeMaskWriteRegister = 22
	// FuncCodeReadFIFOQueue 16-bit wise access
	FuncCodeReadFIFOQueue = 24

	// FuncCodeReadFileRecord for file record access
	FuncCodeReadFileRecord = 20
	// FuncCodeWriteFileRecord for file record access
	FuncCodeWriteFileRecord = 21
)

const (
	// ExceptionCodeIllegalFunction error code
	ExceptionCodeIllegalFunction = 1
	// ExceptionCodeIllegalDataAddress error code
	ExceptionCodeIllegalDataAddress = 2
	// ExceptionCodeIllegalDataValue error code
	ExceptionCodeIllegalDataValue = 3
	// ExceptionCodeServerDeviceFailure error code
	ExceptionCodeServerDeviceFailure = 4
	// ExceptionCodeAcknowledge error code
	ExceptionCodeAcknowledge = 5
	// ExceptionCodeServerDeviceBusy error code
	ExceptionCodeServerDeviceBusy = 6
	// ExceptionCodeMemoryParityError error code
	ExceptionCodeMemoryParityError = 8
	// ExceptionCodeGatewayPathUnavailable error code
	ExceptionCodeGatewayPathUnavailable = 10
	// ExceptionCodeGatewayTargetDeviceFailedToRespond error code
	ExceptionCodeGatewayTargetDeviceFailedToRespond = 11
)

// SlaveIDAny disables slave id matching during response validation.
// It is the "unit identifier not used" value of the TCP flavour of the
// protocol and never appears as a responding device address on a bus.
const SlaveIDAny byte = 0xFF

// ErrNotImplemented is returned for function codes the protocol defines
// but this client does not speak. Callers get the error before any
// bytes are exchanged with the device.
var ErrNotImplemented = errors.New("modbus: function code not implemented")

// Error implements error interface for a device reported exception.
type Error struct {
	FunctionCode  byte
	ExceptionCode byte
}

// Error converts a known modbus exception code to an error message. The
// message for illegal data value depends on the function code that
// provoked it, since the offended quantity limit differs per function.
func (e *Error) Error() string {
	var name string
	switch e.ExceptionCode {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = illegalDataValueName(e.FunctionCode)
	case ExceptionCodeServerDeviceFailure:
		name = "server device failure"
	case ExceptionCodeAcknowledge:
		name = "acknowledge"
	case ExceptionCodeServerDeviceBusy:
		name = "server device busy"
	case ExceptionCodeMemoryParityError:
		name = "memory parity error"
	case ExceptionCodeGatewayPathUnavailable:
		name = "gateway path unavailable"
	case ExceptionCodeGatewayTargetDeviceFailedToRespond:
		name = "gateway target device failed to respond"
	default:
		return fmt.Sprintf("modbus: unrecognized exception code '%v', function '%v'", e.ExceptionCode, e.FunctionCode&0x7F)
	}
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.ExceptionCode, name, e.FunctionCode&0x7F)
}

func illegalDataValueName(functionCode byte) string {
	switch functionCode & 0x7F {
	case FuncCodeWriteMultipleRegisters, FuncCodeReadWriteMultipleRegisters:
		return "illegal data value: quantity of registers to write out of range"
	case FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		return "illegal data value: quantity of registers to read out of range"
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		return "illegal data value: quantity of coils or inputs to read out of range"
	default:
		return "illegal data value"
	}
}

// ValidationError reports a caller supplied argument outside the
// protocol's range. It is always raised before any transport I/O.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "modbus: " + e.Reason
}

func validationErrorf(format string, v ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, v...)}
}

// FramingError reports a response that failed a length, slave id or
// checksum check. It can only occur after an I/O round trip completed.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "modbus: " + e.Reason
}

func framingErrorf(format string, v ...interface{}) error {
	return &FramingError{Reason: fmt.Sprintf(format, v...)}
}

// ShortResponseError reports a well formed, non exception response
// whose payload is smaller than the request implies. It is distinct
// from a device exception and from a framing failure.
type ShortResponseError struct {
	FunctionCode byte
	Expected     int
	Actual       int
}

func (e *ShortResponseError) Error() string {
	return fmt.Sprintf("modbus: response data size '%v' is less than expected '%v', function '%v'",
		e.Actual, e.Expected, e.FunctionCode)
}

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// Packager specifies the communication layer.
type Packager interface {
	SetSlave(slaveID byte)
	Encode(pdu *ProtocolDataUnit) (adu []byte, err error)
	Decode(adu []byte) (pdu *ProtocolDataUnit, err error)
	Verify(aduRequest []byte, aduResponse []byte) (err error)
}

// Transporter specifies the transport layer. Send performs exactly one
// request/response exchange; the response is matched to the request by
// ordering, so callers must serialize sends on one transporter.
type Transporter interface {
	Send(ctx context.Context, aduRequest []byte) (aduResponse []byte, err error)
}

// Connector exposes the underlying handler capability for open/connect and close the transport channel.
type Connector interface {
	Connect() error
	Close() error
}
