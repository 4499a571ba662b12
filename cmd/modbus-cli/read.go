package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgewire/modbus"
)

func newReadCommand(opt *options) *cobra.Command {
	var (
		function string
		register int
		count    int
		typeName string
		order    string
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read coils, discrete inputs or registers",
		Example: `  modbus-cli read --register 100 --count 2
  modbus-cli read --function input --register 30 --type float32
  modbus-cli read --register 40 --type uint32 --word-order low-first
  modbus-cli read --function coils --register 0 --count 16`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if register < 0 || register > 0xFFFF {
				return fmt.Errorf("register %d out of range", register)
			}
			codec, err := newCodec(order)
			if err != nil {
				return err
			}
			opt.logger.Debug("read",
				zap.String("function", function),
				zap.Int("register", register),
				zap.Int("count", count),
				zap.String("type", typeName),
			)

			handler, err := opt.newHandler()
			if err != nil {
				return err
			}
			if err := handler.Connect(); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer handler.Close()

			client := modbus.NewClient(handler)
			ctx, cancel := context.WithTimeout(cmd.Context(), opt.v.GetDuration("timeout"))
			defer cancel()

			addr := uint16(register)
			switch function {
			case "coils":
				results, err := client.ReadCoils(ctx, addr, uint16(count))
				if err != nil {
					return err
				}
				printBits(results, register, count)
				return nil
			case "discrete":
				results, err := client.ReadDiscreteInputs(ctx, addr, uint16(count))
				if err != nil {
					return err
				}
				printBits(results, register, count)
				return nil
			case "holding", "input":
				if typeName == "raw" {
					return readRaw(ctx, client, function, addr, count)
				}
				out, err := readTyped(ctx, client, codec, function, typeName, addr, count)
				if err != nil {
					return err
				}
				for _, line := range out {
					fmt.Println(line)
				}
				return nil
			}
			return fmt.Errorf("unknown function %q", function)
		},
	}

	cmd.Flags().StringVar(&function, "function", "holding", "holding, input, coils or discrete")
	cmd.Flags().IntVar(&register, "register", 0, "start register or bit address")
	cmd.Flags().IntVar(&count, "count", 1, "number of values, registers or bits to read")
	cmd.Flags().StringVar(&typeName, "type", "raw", "raw, int8, uint8, int16, uint16, int32, uint32, int64, uint64, float32 or float64")
	cmd.Flags().StringVar(&order, "word-order", "high-first", "register order of 4-byte values: high-first (ABCD) or low-first (CDAB)")
	return cmd
}

func readRaw(ctx context.Context, client modbus.Client, function string, addr uint16, count int) error {
	read := client.ReadHoldingRegisters
	if function == "input" {
		read = client.ReadInputRegisters
	}
	results, err := read(ctx, addr, uint16(count))
	if err != nil {
		return err
	}
	for i := 0; i+1 < len(results); i += 2 {
		fmt.Printf("%d\t0x%02X%02X\n", int(addr)+i/2, results[i], results[i+1])
	}
	return nil
}

// readTyped dispatches on the type name; generics cannot be
// instantiated from a runtime string.
func readTyped(ctx context.Context, client modbus.Client, codec modbus.RegisterCodec, function, typeName string, addr uint16, count int) ([]string, error) {
	switch typeName {
	case "int8":
		return formatValues(modbus.ReadHoldingValues[int8], modbus.ReadInputValues[int8])(ctx, client, codec, function, addr, count)
	case "uint8":
		return formatValues(modbus.ReadHoldingValues[uint8], modbus.ReadInputValues[uint8])(ctx, client, codec, function, addr, count)
	case "int16":
		return formatValues(modbus.ReadHoldingValues[int16], modbus.ReadInputValues[int16])(ctx, client, codec, function, addr, count)
	case "uint16":
		return formatValues(modbus.ReadHoldingValues[uint16], modbus.ReadInputValues[uint16])(ctx, client, codec, function, addr, count)
	case "int32":
		return formatValues(modbus.ReadHoldingValues[int32], modbus.ReadInputValues[int32])(ctx, client, codec, function, addr, count)
	case "uint32":
		return formatValues(modbus.ReadHoldingValues[uint32], modbus.ReadInputValues[uint32])(ctx, client, codec, function, addr, count)
	case "int64":
		return formatValues(modbus.ReadHoldingValues[int64], modbus.ReadInputValues[int64])(ctx, client, codec, function, addr, count)
	case "uint64":
		return formatValues(modbus.ReadHoldingValues[uint64], modbus.ReadInputValues[uint64])(ctx, client, codec, function, addr, count)
	case "float32":
		return formatValues(modbus.ReadHoldingValues[float32], modbus.ReadInputValues[float32])(ctx, client, codec, function, addr, count)
	case "float64":
		return formatValues(modbus.ReadHoldingValues[float64], modbus.ReadInputValues[float64])(ctx, client, codec, function, addr, count)
	}
	return nil, fmt.Errorf("unsupported type %q", typeName)
}

type readFunc[T modbus.Value] func(ctx context.Context, c modbus.Client, codec modbus.RegisterCodec, address uint16, count int) ([]T, error)

func formatValues[T modbus.Value](holding, input readFunc[T]) func(context.Context, modbus.Client, modbus.RegisterCodec, string, uint16, int) ([]string, error) {
	return func(ctx context.Context, client modbus.Client, codec modbus.RegisterCodec, function string, addr uint16, count int) ([]string, error) {
		read := holding
		if function == "input" {
			read = input
		}
		values, err := read(ctx, client, codec, addr, count)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(values))
		for i, v := range values {
			out[i] = fmt.Sprintf("%v", v)
		}
		return out, nil
	}
}

func printBits(results []byte, register, count int) {
	for i := 0; i < count; i++ {
		bit := results[i/8] >> (i % 8) & 1
		fmt.Printf("%d\t%d\n", register+i, bit)
	}
}

func newCodec(order string) (modbus.RegisterCodec, error) {
	switch order {
	case "", "high-first":
		return modbus.RegisterCodec{}, nil
	case "low-first":
		return modbus.RegisterCodec{Order: modbus.LowWordFirst}, nil
	}
	return modbus.RegisterCodec{}, fmt.Errorf("unknown word order %q", order)
}
