package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgewire/modbus"
)

func newWriteCommand(opt *options) *cobra.Command {
	var (
		function string
		register int
		typeName string
		order    string
	)

	cmd := &cobra.Command{
		Use:   "write value...",
		Short: "Write coils or holding registers",
		Example: `  modbus-cli write --register 100 --type uint16 1500
  modbus-cli write --register 40 --type float32 --word-order low-first 3.14
  modbus-cli write --function coil --register 0 on`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if register < 0 || register > 0xFFFF {
				return fmt.Errorf("register %d out of range", register)
			}
			codec, err := newCodec(order)
			if err != nil {
				return err
			}
			opt.logger.Debug("write",
				zap.String("function", function),
				zap.Int("register", register),
				zap.String("type", typeName),
				zap.Strings("values", args),
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
			case "coil":
				value, err := parseCoil(args[0])
				if err != nil {
					return err
				}
				_, err = client.WriteSingleCoil(ctx, addr, value)
				return err
			case "register":
				value, err := strconv.ParseUint(args[0], 0, 16)
				if err != nil {
					return fmt.Errorf("parse value %q: %w", args[0], err)
				}
				_, err = client.WriteSingleRegister(ctx, addr, uint16(value))
				return err
			case "registers":
				return writeTyped(ctx, client, codec, typeName, addr, args)
			}
			return fmt.Errorf("unknown function %q", function)
		},
	}

	cmd.Flags().StringVar(&function, "function", "registers", "coil, register or registers")
	cmd.Flags().IntVar(&register, "register", 0, "start register or bit address")
	cmd.Flags().StringVar(&typeName, "type", "uint16", "int8, uint8, int16, uint16, int32, uint32, int64, uint64, float32 or float64")
	cmd.Flags().StringVar(&order, "word-order", "high-first", "register order of 4-byte values: high-first (ABCD) or low-first (CDAB)")
	return cmd
}

func parseCoil(s string) (uint16, error) {
	switch s {
	case "on", "1", "true":
		return 0xFF00, nil
	case "off", "0", "false":
		return 0x0000, nil
	}
	return 0, fmt.Errorf("coil value %q must be on or off", s)
}

func writeTyped(ctx context.Context, client modbus.Client, codec modbus.RegisterCodec, typeName string, addr uint16, args []string) error {
	switch typeName {
	case "int8":
		return writeParsed(ctx, client, codec, addr, args, parseSigned[int8](8))
	case "uint8":
		return writeParsed(ctx, client, codec, addr, args, parseUnsigned[uint8](8))
	case "int16":
		return writeParsed(ctx, client, codec, addr, args, parseSigned[int16](16))
	case "uint16":
		return writeParsed(ctx, client, codec, addr, args, parseUnsigned[uint16](16))
	case "int32":
		return writeParsed(ctx, client, codec, addr, args, parseSigned[int32](32))
	case "uint32":
		return writeParsed(ctx, client, codec, addr, args, parseUnsigned[uint32](32))
	case "int64":
		return writeParsed(ctx, client, codec, addr, args, parseSigned[int64](64))
	case "uint64":
		return writeParsed(ctx, client, codec, addr, args, parseUnsigned[uint64](64))
	case "float32":
		return writeParsed(ctx, client, codec, addr, args, func(s string) (float32, error) {
			f, err := strconv.ParseFloat(s, 32)
			return float32(f), err
		})
	case "float64":
		return writeParsed(ctx, client, codec, addr, args, func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		})
	}
	return fmt.Errorf("unsupported type %q", typeName)
}

func writeParsed[T modbus.Value](ctx context.Context, client modbus.Client, codec modbus.RegisterCodec, addr uint16, args []string, parse func(string) (T, error)) error {
	values := make([]T, len(args))
	for i, arg := range args {
		v, err := parse(arg)
		if err != nil {
			return fmt.Errorf("parse value %q: %w", arg, err)
		}
		values[i] = v
	}
	return modbus.WriteHoldingValues(ctx, client, codec, addr, values)
}

func parseSigned[T int8 | int16 | int32 | int64](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseInt(s, 0, bits)
		return T(v), err
	}
}

func parseUnsigned[T uint8 | uint16 | uint32 | uint64](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseUint(s, 0, bits)
		return T(v), err
	}
}
