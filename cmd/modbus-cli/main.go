package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options carries the connection settings shared by all subcommands.
// Values come from flags, a config file or MODBUS_* environment
// variables, in that order of precedence.
type options struct {
	v       *viper.Viper
	cfgFile string

	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opt := &options{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "modbus-cli",
		Short: "Read and write Modbus registers over serial or TCP",
		Long: `modbus-cli talks to Modbus devices over RTU serial lines, Modbus TCP
or RTU framing carried on a TCP stream.

The transport is selected by the address scheme:

  tcp://127.0.0.1:502    Modbus TCP
  rtu:///dev/ttyUSB0     RTU on a serial line
  rtutcp://10.0.0.5:502  RTU frames on a TCP stream`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opt.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opt.logger != nil {
				_ = opt.logger.Sync()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opt.cfgFile, "config", "", "config file (default is $HOME/.modbus-cli.yaml)")
	pf.String("address", "tcp://127.0.0.1:502", "device address, e.g. tcp://127.0.0.1:502 or rtu:///dev/ttyUSB0")
	pf.Int("slave-id", 1, "slave id, 255 matches any responder")
	pf.Duration("timeout", 10*time.Second, "request timeout")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-frame", false, "log sent and received frames")
	// serial line settings, only used with rtu://
	pf.Int("baud-rate", 19200, "symbol rate, e.g. 2400, 9600, 19200, 38400")
	pf.Int("data-bits", 8, "5, 6, 7 or 8")
	pf.String("parity", "E", "N, E or O")
	pf.Int("stop-bits", 1, "1 or 2")

	cmd.AddCommand(newReadCommand(opt), newWriteCommand(opt))
	return cmd
}

// setup binds flags into viper, reads the config file if one is
// available and builds the logger.
func (opt *options) setup(cmd *cobra.Command) error {
	if err := opt.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	opt.v.SetEnvPrefix("modbus")
	opt.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	opt.v.AutomaticEnv()

	if opt.cfgFile != "" {
		opt.v.SetConfigFile(opt.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			opt.v.AddConfigPath(home)
		}
		opt.v.SetConfigName(".modbus-cli")
		opt.v.SetConfigType("yaml")
	}
	if err := opt.v.ReadInConfig(); err != nil {
		// only an explicitly named config file has to exist
		var notFound viper.ConfigFileNotFoundError
		if opt.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var err error
	opt.logger, err = newLogger(opt.v.GetString("log-level"))
	if err != nil {
		return err
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
