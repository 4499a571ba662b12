package main

import (
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/edgewire/modbus"
)

// newHandler builds the packager/transporter pair selected by the
// address scheme.
func (opt *options) newHandler() (modbus.ClientHandler, error) {
	u, err := url.Parse(opt.v.GetString("address"))
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}

	slaveID := byte(opt.v.GetInt("slave-id"))
	timeout := opt.v.GetDuration("timeout")

	switch u.Scheme {
	case "rtu":
		h := modbus.NewRTUClientHandler(u.Path)
		h.SlaveID = slaveID
		h.Timeout = timeout
		h.BaudRate = opt.v.GetInt("baud-rate")
		h.DataBits = opt.v.GetInt("data-bits")
		h.Parity = opt.v.GetString("parity")
		h.StopBits = opt.v.GetInt("stop-bits")
		h.Logger = opt.frameLogger()
		return h, nil
	case "tcp":
		h := modbus.NewTCPClientHandler(u.Host)
		h.SlaveID = slaveID
		h.Timeout = timeout
		h.Logger = opt.frameLogger()
		return h, nil
	case "rtutcp":
		h := modbus.NewRTUOverTCPClientHandler(u.Host)
		h.SlaveID = slaveID
		h.Timeout = timeout
		h.Logger = opt.frameLogger()
		return h, nil
	}
	return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
}

func (opt *options) frameLogger() modbus.Logger {
	if !opt.v.GetBool("log-frame") {
		return nil
	}
	return zapPrinter{opt.logger.Sugar()}
}

// zapPrinter adapts a zap logger to the Printf shape the transport
// layers log frames with.
type zapPrinter struct {
	s *zap.SugaredLogger
}

func (p zapPrinter) Printf(format string, v ...interface{}) {
	p.s.Debugf(format, v...)
}
