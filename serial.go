// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

const (
	// Default timeout
	serialTimeout     = 5 * time.Second
	serialIdleTimeout = 60 * time.Second
)

// serialPort has configuration and I/O controller.
type serialPort struct {
	// Serial port configuration.
	serial.Config

	Logger      Logger
	IdleTimeout time.Duration

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port         io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
}

// Connect opens the port.
func (mb *serialPort) Connect() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.connect()
}

// connect opens the serial port if it is not open. Caller must hold the mutex.
func (mb *serialPort) connect() error {
	if mb.port != nil {
		return nil
	}
	if err := mb.checkConfig(); err != nil {
		return err
	}
	port, err := serial.Open(&mb.Config)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", mb.Config.Address, err)
	}
	mb.logf("modbus: opened %s at %d baud\n", mb.Config.Address, mb.Config.BaudRate)
	mb.port = port
	return nil
}

// checkConfig rejects line settings the protocol cannot run over before
// the port driver gets a chance to misreport them. A zero BaudRate or
// DataBits is left for the driver to default.
func (mb *serialPort) checkConfig() error {
	if mb.Config.Address == "" {
		return validationErrorf("serial device address must not be empty")
	}
	if mb.Config.BaudRate < 0 {
		return validationErrorf("baud rate '%v' must be positive", mb.Config.BaudRate)
	}
	if db := mb.Config.DataBits; db != 0 && (db < 5 || db > 8) {
		return validationErrorf("data bits '%v' must be between 5 and 8", db)
	}
	switch mb.Config.Parity {
	case "", "N", "E", "O":
	default:
		return validationErrorf("parity '%v' must be N, E or O", mb.Config.Parity)
	}
	if sb := mb.Config.StopBits; sb != 0 && sb != 1 && sb != 2 {
		return validationErrorf("stop bits '%v' must be 1 or 2", sb)
	}
	return nil
}

// Close closes the port.
func (mb *serialPort) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.close()
}

// close closes the serial port if it is open. Caller must hold the mutex.
func (mb *serialPort) close() (err error) {
	if mb.port != nil {
		err = mb.port.Close()
		mb.port = nil
	}
	return
}

func (mb *serialPort) logf(format string, v ...interface{}) {
	if mb.Logger != nil {
		mb.Logger.Printf(format, v...)
	}
}

func (mb *serialPort) startCloseTimer() {
	if mb.IdleTimeout <= 0 {
		return
	}
	if mb.closeTimer == nil {
		mb.closeTimer = time.AfterFunc(mb.IdleTimeout, mb.closeIdle)
	} else {
		mb.closeTimer.Reset(mb.IdleTimeout)
	}
}

// closeIdle closes the connection if last activity is passed behind IdleTimeout.
func (mb *serialPort) closeIdle() {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.IdleTimeout <= 0 {
		return
	}

	if idle := time.Since(mb.lastActivity); idle >= mb.IdleTimeout {
		mb.logf("modbus: closing connection due to idle timeout: %v", idle)
		mb.close()
	}
}
