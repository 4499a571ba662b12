package modbus

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRequestEncoding(t *testing.T) {
	for _, tt := range []struct {
		name string
		req  request
		want *ProtocolDataUnit
	}{
		{
			name: "read holding registers",
			req:  &readRequest{functionCode: FuncCodeReadHoldingRegisters, address: 0x6B, quantity: 3},
			want: &ProtocolDataUnit{FunctionCode: 3, Data: []byte{0x00, 0x6B, 0x00, 0x03}},
		},
		{
			name: "read coils",
			req:  &readRequest{functionCode: FuncCodeReadCoils, address: 0x13, quantity: 0x25},
			want: &ProtocolDataUnit{FunctionCode: 1, Data: []byte{0x00, 0x13, 0x00, 0x25}},
		},
		{
			name: "write single coil on",
			req:  &writeSingleRequest{functionCode: FuncCodeWriteSingleCoil, address: 0xAC, value: 0xFF00},
			want: &ProtocolDataUnit{FunctionCode: 5, Data: []byte{0x00, 0xAC, 0xFF, 0x00}},
		},
		{
			name: "write single register",
			req:  &writeSingleRequest{functionCode: FuncCodeWriteSingleRegister, address: 0x01, value: 0x03},
			want: &ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x01, 0x00, 0x03}},
		},
		{
			name: "write multiple registers",
			req: &writeMultipleRequest{
				functionCode: FuncCodeWriteMultipleRegisters,
				address:      0x01, quantity: 2,
				payload: []byte{0x00, 0x0A, 0x01, 0x02},
			},
			want: &ProtocolDataUnit{
				FunctionCode: 16,
				Data:         []byte{0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x01, 0x02},
			},
		},
		{
			name: "read write multiple registers",
			req: &readWriteRequest{
				readAddress: 0x03, readQuantity: 6,
				writeAddress: 0x0E, writeQuantity: 3,
				payload: []byte{0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF},
			},
			want: &ProtocolDataUnit{
				FunctionCode: 23,
				Data: []byte{
					0x00, 0x03, 0x00, 0x06, 0x00, 0x0E, 0x00, 0x03,
					0x06, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF,
				},
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.encode()
			if err != nil {
				t.Fatalf("error while encoding: %+v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("unexpected pdu (-want +got):\n%s", diff)
			}
		})
	}
}

// The byte count field of a multi register write is always twice the
// register quantity.
func TestRequestEncodingByteCount(t *testing.T) {
	for n := 1; n <= 123; n++ {
		req := &writeMultipleRequest{
			functionCode: FuncCodeWriteMultipleRegisters,
			address:      0,
			quantity:     uint16(n),
			payload:      make([]byte, 2*n),
		}
		pdu, err := req.encode()
		if err != nil {
			t.Fatalf("n=%d: %+v", n, err)
		}
		if got := int(pdu.Data[4]); got != 2*n {
			t.Fatalf("n=%d: byte count expected %v, actual %v", n, 2*n, got)
		}
	}
}

func TestRequestEncodingRejects(t *testing.T) {
	for _, tt := range []struct {
		name string
		req  request
	}{
		{
			name: "coil value out of sentinel set",
			req:  &writeSingleRequest{functionCode: FuncCodeWriteSingleCoil, value: 0x0001},
		},
		{
			name: "single byte write payload",
			req:  &writeMultipleRequest{functionCode: FuncCodeWriteMultipleRegisters, quantity: 1, payload: []byte{0x01}},
		},
		{
			name: "odd write payload",
			req:  &writeMultipleRequest{functionCode: FuncCodeWriteMultipleRegisters, quantity: 2, payload: []byte{0x01, 0x02, 0x03}},
		},
		{
			name: "quantity payload mismatch",
			req:  &writeMultipleRequest{functionCode: FuncCodeWriteMultipleRegisters, quantity: 3, payload: []byte{0x01, 0x02, 0x03, 0x04}},
		},
		{
			name: "read write odd payload",
			req:  &readWriteRequest{writeQuantity: 2, payload: []byte{0x01, 0x02, 0x03}},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.req.encode()
			if err == nil {
				t.Fatal("expected encode to fail")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, actual %T: %v", err, err)
			}
		})
	}
}
