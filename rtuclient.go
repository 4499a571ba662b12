// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"context"
	"time"
)

const (
	rtuMinSize = 4
	rtuMaxSize = 256

	rtuExceptionSize = 5
)

// RTUClientHandler implements Packager and Transporter interface.
type RTUClientHandler struct {
	rtuPackager
	rtuSerialTransporter
}

// NewRTUClientHandler allocates and initializes a RTUClientHandler.
func NewRTUClientHandler(address string) *RTUClientHandler {
	handler := &RTUClientHandler{}
	handler.Address = address
	handler.Timeout = serialTimeout
	handler.IdleTimeout = serialIdleTimeout
	return handler
}

// RTUClient creates RTU client with default handler and given connect string.
func RTUClient(address string) Client {
	handler := NewRTUClientHandler(address)
	return NewClient(handler)
}

// rtuPackager implements Packager interface.
type rtuPackager struct {
	SlaveID byte
}

// SetSlave sets modbus slave id for the next client operations
func (mb *rtuPackager) SetSlave(slaveID byte) {
	mb.SlaveID = slaveID
}

// Encode encodes PDU in an RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 byte
func (mb *rtuPackager) Encode(pdu *ProtocolDataUnit) (adu []byte, err error) {
	length := len(pdu.Data) + 4
	if length > rtuMaxSize {
		err = validationErrorf("length of data '%v' must not be bigger than '%v'", length, rtuMaxSize)
		return
	}
	adu = make([]byte, length)

	adu[0] = mb.SlaveID
	adu[1] = pdu.FunctionCode
	copy(adu[2:], pdu.Data)

	// The CRC covers every byte before it, low byte transmitted first
	var crc crc
	crc.reset().pushBytes(adu[0 : length-2])
	checksum := crc.value()

	adu[length-2] = byte(checksum)
	adu[length-1] = byte(checksum >> 8)
	return
}

// Verify verifies response length and slave id.
func (mb *rtuPackager) Verify(aduRequest []byte, aduResponse []byte) (err error) {
	length := len(aduResponse)
	// Minimum size (including address, function and CRC)
	if length < rtuMinSize {
		err = framingErrorf("response length '%v' does not meet minimum '%v'", length, rtuMinSize)
		return
	}
	// Slave address must match unless the request went to the wildcard id
	if aduRequest[0] != SlaveIDAny && aduResponse[0] != aduRequest[0] {
		err = framingErrorf("response slave id '%v' does not match request '%v'", aduResponse[0], aduRequest[0])
		return
	}
	return
}

// Decode extracts PDU from RTU frame and verify CRC.
func (mb *rtuPackager) Decode(adu []byte) (pdu *ProtocolDataUnit, err error) {
	length := len(adu)
	if length < rtuMinSize {
		err = framingErrorf("response length '%v' does not meet minimum '%v'", length, rtuMinSize)
		return
	}
	// Calculate checksum
	var crc crc
	crc.reset().pushBytes(adu[0 : length-2])
	checksum := uint16(adu[length-1])<<8 | uint16(adu[length-2])
	if checksum != crc.value() {
		err = framingErrorf("response crc '%v' does not match expected '%v'", checksum, crc.value())
		return
	}
	// Function code & data
	pdu = &ProtocolDataUnit{}
	pdu.FunctionCode = adu[1]
	pdu.Data = adu[2 : length-2]
	return
}

// isValidFrame reports whether adu is one complete, correctly addressed
// and checksum-valid RTU frame. The serial line carries no length
// delimiter, so this predicate is the sole gate deciding where a
// response ends. Checks run in order and stop at the first failure:
// minimum length, slave id (skipped for SlaveIDAny), exact length
// implied by the function code, CRC.
func isValidFrame(slaveID byte, adu []byte) bool {
	if len(adu) < rtuExceptionSize {
		return false
	}
	if slaveID != SlaveIDAny && adu[0] != slaveID {
		return false
	}
	if adu[1]&0x80 == 0 {
		if expected := expectedFrameLength(adu); expected > 0 && len(adu) != expected {
			return false
		}
	} else if len(adu) != rtuExceptionSize {
		return false
	}
	var crc crc
	crc.reset().pushBytes(adu[:len(adu)-2])
	received := uint16(adu[len(adu)-1])<<8 | uint16(adu[len(adu)-2])
	return received == crc.value()
}

// expectedFrameLength returns the exact frame length a non exception
// response of the given function code must have, or 0 when the function
// code does not imply one. Responses carrying a byte count declare
// their own payload length; write echoes are fixed size.
func expectedFrameLength(adu []byte) int {
	switch adu[1] {
	case FuncCodeReadCoils,
		FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters,
		FuncCodeReadInputRegisters,
		FuncCodeReadWriteMultipleRegisters:
		// slave id + function + count byte + payload + crc
		return int(adu[2]) + 5
	case FuncCodeWriteSingleCoil,
		FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleCoils,
		FuncCodeWriteMultipleRegisters:
		return 8
	case FuncCodeMaskWriteRegister:
		return 10
	}
	return 0
}

// rtuSerialTransporter implements Transporter interface.
type rtuSerialTransporter struct {
	serialPort
}

// Send writes the request to the serial line and accumulates response
// bytes until they form a valid frame or the deadline passes. The
// context deadline, when earlier than the configured timeout, wins.
func (mb *rtuSerialTransporter) Send(ctx context.Context, aduRequest []byte) (aduResponse []byte, err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	// Make sure port is connected
	if err = mb.connect(); err != nil {
		return
	}
	// Start the timer to close when idle
	mb.lastActivity = time.Now()
	mb.startCloseTimer()

	deadline := mb.lastActivity.Add(mb.Config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	mb.logf("modbus: send % x\n", aduRequest)
	if _, err = mb.port.Write(aduRequest); err != nil {
		return
	}
	// Observe the inter-frame silence before expecting the reply
	time.Sleep(mb.calculateDelay(len(aduRequest)))

	var data [rtuMaxSize]byte
	var n int
	for {
		if err = ctx.Err(); err != nil {
			return
		}
		if time.Now().After(deadline) {
			err = framingErrorf("no complete response frame within deadline")
			return
		}
		var k int
		if k, err = mb.port.Read(data[n:]); err != nil {
			return
		}
		n += k
		if isValidFrame(aduRequest[0], data[:n]) {
			break
		}
		if n >= rtuMaxSize {
			err = framingErrorf("response exceeds maximum frame size '%v'", rtuMaxSize)
			return
		}
	}
	aduResponse = data[:n]
	mb.logf("modbus: recv % x\n", aduResponse)
	return
}

// frameDelay is the silent interval separating two frames on the wire,
// 3.5 character times, capped per the serial line specification for
// rates above 19200 baud.
func (mb *rtuSerialTransporter) frameDelay() time.Duration {
	if mb.BaudRate <= 0 || mb.BaudRate > 19200 {
		return 1750 * time.Microsecond
	}
	return time.Duration(35000000/mb.BaudRate) * time.Microsecond
}

// calculateDelay roughly calculates time needed for the next frame.
// See MODBUS over Serial Line - Specification and Implementation Guide (page 13).
func (mb *rtuSerialTransporter) calculateDelay(chars int) time.Duration {
	var characterDelay time.Duration // us

	if mb.BaudRate <= 0 || mb.BaudRate > 19200 {
		characterDelay = 750 * time.Microsecond
	} else {
		characterDelay = time.Duration(15000000/mb.BaudRate) * time.Microsecond
	}
	return characterDelay*time.Duration(chars) + mb.frameDelay()
}
