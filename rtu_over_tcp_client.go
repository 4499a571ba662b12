package modbus

import (
	"context"
	"net"
	"sync"
	"time"
)

// RTUOverTCPClientHandler implements Packager and Transporter interface.
// It speaks the serial framing (slave id + CRC) across a TCP stream, as
// serial-to-ethernet converters expect.
type RTUOverTCPClientHandler struct {
	rtuPackager
	rtuTCPTransporter
}

// NewRTUOverTCPClientHandler allocates and initializes a RTUOverTCPClientHandler.
func NewRTUOverTCPClientHandler(address string) *RTUOverTCPClientHandler {
	handler := &RTUOverTCPClientHandler{}
	handler.Address = address
	handler.Timeout = tcpTimeout
	return handler
}

// RTUOverTCPClient creates RTU over TCP client with default handler and given connect string.
func RTUOverTCPClient(address string) Client {
	handler := NewRTUOverTCPClientHandler(address)
	return NewClient(handler)
}

// rtuTCPTransporter implements Transporter interface.
type rtuTCPTransporter struct {
	// Connect string
	Address string
	// Read timeout
	Timeout time.Duration
	// Transmission logger
	Logger Logger

	mu   sync.Mutex
	conn net.Conn
}

// Send sends the request over the stream and accumulates response bytes
// until they form a valid RTU frame. The stream itself carries no frame
// delimiter, so the frame validator decides where the response ends.
func (mb *rtuTCPTransporter) Send(ctx context.Context, aduRequest []byte) (aduResponse []byte, err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err = mb.connect(); err != nil {
		return
	}
	deadline := time.Now().Add(mb.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err = mb.conn.SetDeadline(deadline); err != nil {
		return
	}

	mb.logf("modbus: send % x\n", aduRequest)
	if _, err = mb.conn.Write(aduRequest); err != nil {
		mb.close()
		return
	}

	var data [rtuMaxSize]byte
	var n int
	for {
		if err = ctx.Err(); err != nil {
			return
		}
		var k int
		if k, err = mb.conn.Read(data[n:]); err != nil {
			mb.close()
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

func (mb *rtuTCPTransporter) logf(format string, v ...interface{}) {
	if mb.Logger != nil {
		mb.Logger.Printf(format, v...)
	}
}

// Connect establishes a new connection to the address in Address.
func (mb *rtuTCPTransporter) Connect() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.connect()
}

// connect establishes a new connection to the address in Address. Caller must hold the mutex before calling this method.
func (mb *rtuTCPTransporter) connect() error {
	if mb.conn == nil {
		dialer := net.Dialer{Timeout: mb.Timeout}
		conn, err := dialer.Dial("tcp", mb.Address)
		if err != nil {
			return err
		}
		mb.conn = conn
	}
	return nil
}

// Close closes current connection.
func (mb *rtuTCPTransporter) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.close()
}

// close closes current connection. Caller must hold the mutex before calling this method.
func (mb *rtuTCPTransporter) close() (err error) {
	if mb.conn != nil {
		err = mb.conn.Close()
		mb.conn = nil
	}
	return
}
