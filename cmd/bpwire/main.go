// go-buspirate
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-buspirate.
//
// go-buspirate is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-buspirate is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-buspirate; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Command bpwire opens a Bus Pirate, enters raw-wire or UART mode and runs a
// script of primitives given as arguments:
//
//	bpwire -p /dev/ttyUSB0 cs-low write:0x9F read read read cs-high
//	bpwire -p /dev/ttyUSB0 -m uart --speed 9600 text:hello read:5
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	buspirate "github.com/ZaparooProject/go-buspirate"
	"github.com/ZaparooProject/go-buspirate/transport/uart"
	"github.com/phsym/console-slog"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

var errHelp = errors.New("help requested")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errHelp) {
			return
		}
		_, _ = fmt.Fprintf(os.Stderr, "bpwire: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, words, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, cfg.Debug)
	buspirate.SetLogger(logger)
	buspirate.SetDebugEnabled(cfg.Debug)

	mode, err := buspirate.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	steps, err := parseScript(mode, words)
	if err != nil {
		return err
	}

	transport, err := uart.Open(cfg.Port, cfg.Baud)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", cfg.Port, err)
	}

	return execute(ctx, &cfg, transport, steps, stdout, logger)
}

// parseArgs resolves configuration from defaults, the optional config file
// and flags, and returns the remaining script words
func parseArgs(args []string, stderr io.Writer) (cliConfig, []string, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("bpwire", flag.ContinueOnError)
	fs.SetOutput(stderr)

	flags := defaultConfig()
	fs.StringVarP(&cfg.ConfigPath, "config", "c", "", "TOML config file")
	fs.StringVarP(&flags.Port, "port", "p", "", "Serial port (e.g. /dev/ttyUSB0 or COM3)")
	fs.IntVarP(&flags.Baud, "baud", "b", flags.Baud, "Serial line speed")
	fs.StringVarP(&flags.Mode, "mode", "m", flags.Mode, "Binary mode: raw-wire or uart")
	fs.IntVarP(&flags.Speed, "speed", "s", flags.Speed,
		"Bus speed: raw-wire index 0-3 (5k, 50k, 100k, 400kHz) or UART baud")
	fs.IntVar(&flags.MaxAttempts, "attempts", flags.MaxAttempts, "Mode entry attempts")
	fs.DurationVarP(&flags.CommandTimeout, "timeout", "t", flags.CommandTimeout, "Command response timeout")
	fs.DurationVar(&flags.EntryTimeout, "entry-timeout", flags.EntryTimeout, "Mode entry response timeout")
	fs.DurationVar(&flags.RetryDelay, "retry-delay", flags.RetryDelay, "Pause between mode entry attempts")
	fs.DurationVar(&flags.SettleDelay, "settle-delay", flags.SettleDelay, "Wait between a command and its response")
	fs.BoolVar(&flags.StrictAck, "strict-ack", false, "Require 0x01 acknowledgements")
	fs.BoolVar(&flags.ResetOnExit, "reset", flags.ResetOnExit, "Reset the device to its console when done")
	fs.BoolVar(&flags.Peripherals.Power, "power", false, "Switch on the power supplies")
	fs.BoolVar(&flags.Peripherals.PullUps, "pullups", false, "Switch on the pull-up resistors")
	fs.BoolVar(&flags.Wire.Output3V3, "3v3", false, "Drive outputs at 3.3V instead of open drain")
	fs.BoolVar(&flags.Wire.ThreeWire, "three-wire", false, "Raw-wire 3-wire mode")
	fs.BoolVar(&flags.Wire.LSBFirst, "lsb-first", false, "Raw-wire LSB first bit order")
	fs.BoolVarP(&flags.Debug, "debug", "d", false, "Enable protocol debug logging")

	var showHelp bool
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return cfg, nil, err
	}
	if showHelp {
		printUsage(stderr, fs)
		return cfg, nil, errHelp
	}

	if cfg.ConfigPath != "" {
		if err := loadConfigFile(cfg.ConfigPath, &cfg); err != nil {
			return cfg, nil, err
		}
	}
	applyFlags(fs, &flags, &cfg)

	if err := cfg.validate(); err != nil {
		return cfg, nil, err
	}
	if fs.NArg() == 0 {
		return cfg, nil, fmt.Errorf("%w: empty script", buspirate.ErrInvalidParameter)
	}
	return cfg, fs.Args(), nil
}

// applyFlags copies explicitly set flags over the file configuration
func applyFlags(fs *flag.FlagSet, flags, cfg *cliConfig) {
	set := map[string]func(){
		"port":          func() { cfg.Port = flags.Port },
		"baud":          func() { cfg.Baud = flags.Baud },
		"mode":          func() { cfg.Mode = flags.Mode },
		"speed":         func() { cfg.Speed = flags.Speed },
		"attempts":      func() { cfg.MaxAttempts = flags.MaxAttempts },
		"timeout":       func() { cfg.CommandTimeout = flags.CommandTimeout },
		"entry-timeout": func() { cfg.EntryTimeout = flags.EntryTimeout },
		"retry-delay":   func() { cfg.RetryDelay = flags.RetryDelay },
		"settle-delay":  func() { cfg.SettleDelay = flags.SettleDelay },
		"strict-ack":    func() { cfg.StrictAck = flags.StrictAck },
		"reset":         func() { cfg.ResetOnExit = flags.ResetOnExit },
		"power":         func() { cfg.Peripherals.Power = flags.Peripherals.Power },
		"pullups":       func() { cfg.Peripherals.PullUps = flags.Peripherals.PullUps },
		"3v3": func() {
			cfg.Wire.Output3V3 = flags.Wire.Output3V3
			cfg.UART.Output3V3 = flags.Wire.Output3V3
		},
		"three-wire": func() { cfg.Wire.ThreeWire = flags.Wire.ThreeWire },
		"lsb-first":  func() { cfg.Wire.LSBFirst = flags.Wire.LSBFirst },
		"debug":      func() { cfg.Debug = flags.Debug },
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(w, `Usage: bpwire [flags] STEP...

Raw-wire steps:
  start stop cs-low cs-high tick clock-low clock-high data-low data-high
  read read-bit peek write:BYTE bits:BYTE/N ticks:N version

UART steps:
  echo-on echo-off write:BYTE[,BYTE...] text:STRING read[:N] version

Flags:
%s`, fs.FlagUsages())
}

// newLogger writes human readable logs to a terminal and JSON otherwise
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.New(console.NewHandler(w, &console.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// execute drives one bpwire run on an open transport. The transport is
// closed on return.
func execute(
	ctx context.Context, cfg *cliConfig, transport buspirate.Transport,
	steps []step, out io.Writer, logger *slog.Logger,
) (err error) {
	opts := append(cfg.sessionOptions(), buspirate.WithLogger(logger))
	session, err := buspirate.New(transport, opts...)
	if err != nil {
		_ = transport.Close()
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	mode, err := buspirate.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	attempts, err := session.EnterContext(ctx, mode)
	if err != nil {
		var entryErr *buspirate.ModeEntryError
		if errors.As(err, &entryErr) && errors.Is(err, buspirate.ErrResponseTimeout) {
			return fmt.Errorf("no Bus Pirate answering on %s: %w", cfg.Port, err)
		}
		return err
	}
	logger.Info("entered mode", "mode", mode.String(), "attempts", attempts)

	if cfg.ResetOnExit {
		defer func() {
			if rerr := session.ResetContext(context.WithoutCancel(ctx)); rerr != nil && err == nil {
				err = rerr
			}
		}()
	}

	if err := setup(ctx, session, cfg); err != nil {
		return err
	}

	if err := runScript(ctx, session, steps, out); err != nil {
		return err
	}

	m := session.Metrics().Snapshot()
	logger.Debug("session metrics",
		"commands", m.CommandsSent, "bytes_written", m.BytesWritten,
		"timeouts", m.Timeouts, "mismatches", m.Mismatches)
	return nil
}

// setup applies peripheral, line and speed configuration for the mode
func setup(ctx context.Context, session *buspirate.Session, cfg *cliConfig) error {
	if session.Mode() == buspirate.ModeUART {
		u := session.UART()
		if err := u.ConfigurePeripheralsContext(ctx, cfg.Peripherals); err != nil {
			return err
		}
		if err := u.ConfigureContext(ctx, cfg.UART); err != nil {
			return err
		}
		if cfg.Speed >= 0 {
			baud, err := buspirate.UARTBaudForRate(cfg.Speed)
			if err != nil {
				return err
			}
			return u.SetSpeedContext(ctx, baud)
		}
		return nil
	}

	raw := session.RawWire()
	if err := raw.ConfigurePeripheralsContext(ctx, cfg.Peripherals); err != nil {
		return err
	}
	if err := raw.ConfigureWireContext(ctx, cfg.Wire); err != nil {
		return err
	}
	if cfg.Speed >= 0 {
		return raw.SetSpeedContext(ctx, buspirate.Speed(cfg.Speed))
	}
	return nil
}
