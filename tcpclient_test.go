// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPEncoding(t *testing.T) {
	packager := tcpPackager{}
	pdu := ProtocolDataUnit{
		FunctionCode: 3,
		Data:         []byte{0, 4, 0, 3},
	}

	adu, err := packager.Encode(&pdu)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0, 0, 0, 6, 0, 3, 0, 4, 0, 3}, adu)
}

func TestTCPDecoding(t *testing.T) {
	packager := tcpPackager{transactionID: 1, SlaveID: 17}
	adu := []byte{0, 1, 0, 0, 0, 6, 17, 3, 0, 120, 0, 3}

	pdu, err := packager.Decode(adu)
	require.NoError(t, err)
	assert.Equal(t, byte(3), pdu.FunctionCode)
	assert.Equal(t, []byte{0, 120, 0, 3}, pdu.Data)
}

func TestTCPVerify(t *testing.T) {
	packager := tcpPackager{}
	request := []byte{0, 1, 0, 0, 0, 6, 17, 3, 0, 120, 0, 3}

	for _, tt := range []struct {
		name     string
		response []byte
		wantErr  bool
	}{
		{
			name:     "matching header",
			response: []byte{0, 1, 0, 0, 0, 5, 17, 3, 2, 0, 120},
		},
		{
			name:     "transaction id mismatch",
			response: []byte{0, 2, 0, 0, 0, 5, 17, 3, 2, 0, 120},
			wantErr:  true,
		},
		{
			name:     "protocol id mismatch",
			response: []byte{0, 1, 0, 1, 0, 5, 17, 3, 2, 0, 120},
			wantErr:  true,
		},
		{
			name:     "unit id mismatch",
			response: []byte{0, 1, 0, 0, 0, 5, 18, 3, 2, 0, 120},
			wantErr:  true,
		},
		{
			name:     "shorter than header",
			response: []byte{0, 1, 0},
			wantErr:  true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := packager.Verify(request, tt.response)
			if tt.wantErr {
				var ferr *FramingError
				require.Error(t, err)
				assert.ErrorAs(t, err, &ferr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// A wildcard unit id in the request accepts any responder.
func TestTCPVerifyWildcardUnitID(t *testing.T) {
	packager := tcpPackager{}
	request := []byte{0, 1, 0, 0, 0, 6, SlaveIDAny, 3, 0, 120, 0, 3}
	response := []byte{0, 1, 0, 0, 0, 5, 18, 3, 2, 0, 120}

	assert.NoError(t, packager.Verify(request, response))
}

func TestTCPTransporter(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		if _, err := io.Copy(conn, conn); err != nil {
			t.Error(err)
		}
	}()

	client := &tcpTransporter{
		Address:     ln.Addr().String(),
		Timeout:     1 * time.Second,
		IdleTimeout: 100 * time.Millisecond,
	}
	req := []byte{0, 1, 0, 2, 0, 2, 1, 2}
	rsp, err := client.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req, rsp)

	time.Sleep(150 * time.Millisecond)
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Nil(t, client.conn, "connection should be closed after the idle timeout")
}

func TestTCPTransporterContextDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accept but never answer so the read has to hit the deadline.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, tcpMaxLength)
		conn.Read(buf)
		time.Sleep(2 * time.Second)
	}()

	client := &tcpTransporter{
		Address: ln.Addr().String(),
		Timeout: 10 * time.Second,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Send(ctx, []byte{0, 1, 0, 0, 0, 6, 17, 3, 0, 120, 0, 3})
	require.Error(t, err)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestErrTCPHeaderLength_Error(t *testing.T) {
	// should not explode
	_ = ErrTCPHeaderLength(1000).Error()
}

func BenchmarkTCPEncoder(b *testing.B) {
	encoder := tcpPackager{
		SlaveID: 10,
	}
	pdu := ProtocolDataUnit{
		FunctionCode: 1,
		Data:         []byte{2, 3, 4, 5, 6, 7, 8, 9},
	}
	for i := 0; i < b.N; i++ {
		_, err := encoder.Encode(&pdu)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTCPDecoder(b *testing.B) {
	decoder := tcpPackager{
		SlaveID: 10,
	}
	adu := []byte{0, 1, 0, 0, 0, 6, 17, 3, 0, 120, 0, 3}
	for i := 0; i < b.N; i++ {
		_, err := decoder.Decode(adu)
		if err != nil {
			b.Fatal(err)
		}
	}
}
