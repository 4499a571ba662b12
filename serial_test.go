// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct {
	io.ReadWriter

	closed bool
}

func (n *nopCloser) Close() error {
	n.closed = true
	return nil
}

func TestSerialCloseIdle(t *testing.T) {
	port := &nopCloser{ReadWriter: &bytes.Buffer{}}
	s := serialPort{
		IdleTimeout: 100 * time.Millisecond,
	}
	s.port = port
	s.lastActivity = time.Now()
	s.startCloseTimer()

	time.Sleep(150 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.True(t, port.closed, "serial port is not closed when inactive")
	assert.Nil(t, s.port)
}

// Bad line settings must surface before the port driver is asked to
// open anything.
func TestSerialCheckConfig(t *testing.T) {
	for _, tt := range []struct {
		name string
		set  func(s *serialPort)
	}{
		{name: "empty address", set: func(s *serialPort) { s.Address = "" }},
		{name: "negative baud rate", set: func(s *serialPort) { s.BaudRate = -9600 }},
		{name: "data bits too small", set: func(s *serialPort) { s.DataBits = 4 }},
		{name: "data bits too large", set: func(s *serialPort) { s.DataBits = 9 }},
		{name: "unknown parity", set: func(s *serialPort) { s.Parity = "Q" }},
		{name: "bad stop bits", set: func(s *serialPort) { s.StopBits = 3 }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := &serialPort{}
			s.Address = "/dev/ttyUSB0"
			tt.set(s)

			err := s.connect()
			require.Error(t, err)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Nil(t, s.port)
		})
	}

	s := &serialPort{}
	s.Address = "/dev/ttyUSB0"
	assert.NoError(t, s.checkConfig())
}
