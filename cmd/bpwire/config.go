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

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	buspirate "github.com/ZaparooProject/go-buspirate"
)

// cliConfig is the resolved bpwire configuration: defaults, then the config
// file, then explicitly set flags
type cliConfig struct {
	Port           string
	Mode           string
	ConfigPath     string
	Speed          int
	Baud           int
	MaxAttempts    int
	CommandTimeout time.Duration
	EntryTimeout   time.Duration
	RetryDelay     time.Duration
	SettleDelay    time.Duration
	Wire           buspirate.WireConfig
	Peripherals    buspirate.PeripheralConfig
	UART           buspirate.UARTConfig
	Debug          bool
	StrictAck      bool
	ResetOnExit    bool
}

func defaultConfig() cliConfig {
	return cliConfig{
		Mode:           "raw-wire",
		Speed:          -1,
		Baud:           buspirate.DefaultBaudRate,
		MaxAttempts:    buspirate.DefaultMaxAttempts,
		CommandTimeout: buspirate.DefaultCommandTimeout,
		EntryTimeout:   buspirate.DefaultEntryTimeout,
		RetryDelay:     buspirate.DefaultRetryDelay,
		SettleDelay:    buspirate.DefaultSettleDelay,
		ResetOnExit:    true,
	}
}

// bpwire config.toml key mapping
type fileConfig struct {
	Port           string `toml:"port"`
	Mode           string `toml:"mode"`
	CommandTimeout string `toml:"command_timeout"`
	EntryTimeout   string `toml:"entry_timeout"`
	RetryDelay     string `toml:"retry_delay"`
	SettleDelay    string `toml:"settle_delay"`
	Wire           struct {
		Output3V3 bool `toml:"output_3v3"`
		ThreeWire bool `toml:"three_wire"`
		LSBFirst  bool `toml:"lsb_first"`
	} `toml:"wire"`
	Peripherals struct {
		Power   bool `toml:"power"`
		PullUps bool `toml:"pullups"`
		AUX     bool `toml:"aux"`
		CS      bool `toml:"cs"`
	} `toml:"peripherals"`
	UART struct {
		Framing     string `toml:"framing"`
		Output3V3   bool   `toml:"output_3v3"`
		TwoStopBits bool   `toml:"two_stop_bits"`
		RXIdleLow   bool   `toml:"rx_idle_low"`
	} `toml:"uart"`
	Speed       int  `toml:"speed"`
	Baud        int  `toml:"baud"`
	MaxAttempts int  `toml:"max_attempts"`
	Debug       bool `toml:"debug"`
	StrictAck   bool `toml:"strict_ack"`
	ResetOnExit bool `toml:"reset_on_exit"`
}

// loadConfigFile overlays the keys present in the TOML file at path onto cfg
func loadConfigFile(path string, cfg *cliConfig) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load bpwire config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load bpwire config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("mode") {
		cfg.Mode = strings.TrimSpace(raw.Mode)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("speed") {
		cfg.Speed = raw.Speed
	}
	if meta.IsDefined("max_attempts") {
		cfg.MaxAttempts = raw.MaxAttempts
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}
	if meta.IsDefined("strict_ack") {
		cfg.StrictAck = raw.StrictAck
	}
	if meta.IsDefined("reset_on_exit") {
		cfg.ResetOnExit = raw.ResetOnExit
	}

	durations := []struct {
		dst *time.Duration
		key string
		val string
	}{
		{key: "command_timeout", val: raw.CommandTimeout, dst: &cfg.CommandTimeout},
		{key: "entry_timeout", val: raw.EntryTimeout, dst: &cfg.EntryTimeout},
		{key: "retry_delay", val: raw.RetryDelay, dst: &cfg.RetryDelay},
		{key: "settle_delay", val: raw.SettleDelay, dst: &cfg.SettleDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return fmt.Errorf("load bpwire config: %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if meta.IsDefined("wire", "output_3v3") {
		cfg.Wire.Output3V3 = raw.Wire.Output3V3
	}
	if meta.IsDefined("wire", "three_wire") {
		cfg.Wire.ThreeWire = raw.Wire.ThreeWire
	}
	if meta.IsDefined("wire", "lsb_first") {
		cfg.Wire.LSBFirst = raw.Wire.LSBFirst
	}

	if meta.IsDefined("peripherals", "power") {
		cfg.Peripherals.Power = raw.Peripherals.Power
	}
	if meta.IsDefined("peripherals", "pullups") {
		cfg.Peripherals.PullUps = raw.Peripherals.PullUps
	}
	if meta.IsDefined("peripherals", "aux") {
		cfg.Peripherals.AUX = raw.Peripherals.AUX
	}
	if meta.IsDefined("peripherals", "cs") {
		cfg.Peripherals.CS = raw.Peripherals.CS
	}

	if meta.IsDefined("uart", "framing") {
		framing, err := parseFraming(raw.UART.Framing)
		if err != nil {
			return fmt.Errorf("load bpwire config: %w", err)
		}
		cfg.UART.Framing = framing
	}
	if meta.IsDefined("uart", "output_3v3") {
		cfg.UART.Output3V3 = raw.UART.Output3V3
	}
	if meta.IsDefined("uart", "two_stop_bits") {
		cfg.UART.TwoStopBits = raw.UART.TwoStopBits
	}
	if meta.IsDefined("uart", "rx_idle_low") {
		cfg.UART.RXIdleLow = raw.UART.RXIdleLow
	}

	return nil
}

func parseFraming(s string) (buspirate.UARTFraming, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "8N1", "8N":
		return buspirate.Framing8N, nil
	case "8E1", "8E":
		return buspirate.Framing8E, nil
	case "8O1", "8O":
		return buspirate.Framing8O, nil
	case "9N1", "9N":
		return buspirate.Framing9N, nil
	default:
		return 0, fmt.Errorf("unknown UART framing %q", s)
	}
}

// sessionOptions converts the configuration into session options
func (c *cliConfig) sessionOptions() []buspirate.Option {
	opts := []buspirate.Option{
		buspirate.WithBaudRate(c.Baud),
		buspirate.WithCommandTimeout(c.CommandTimeout),
		buspirate.WithSettleDelay(c.SettleDelay),
		buspirate.WithHandshake(buspirate.HandshakeConfig{
			MaxAttempts: c.MaxAttempts,
			RetryDelay:  c.RetryDelay,
		}),
	}
	if c.EntryTimeout > 0 {
		opts = append(opts, buspirate.WithEntryTimeout(c.EntryTimeout))
	}
	if c.StrictAck {
		opts = append(opts, buspirate.WithStrictAck(true))
	}
	return opts
}

func (c *cliConfig) validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: no serial port given", buspirate.ErrInvalidParameter)
	}
	mode, err := buspirate.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	if mode != buspirate.ModeRawWire && mode != buspirate.ModeUART {
		return fmt.Errorf("%w: mode %s has no script support", buspirate.ErrInvalidParameter, mode)
	}
	switch {
	case c.Baud <= 0:
		return fmt.Errorf("%w: baud rate must be positive, got %d", buspirate.ErrInvalidParameter, c.Baud)
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: need at least one entry attempt, got %d", buspirate.ErrInvalidParameter, c.MaxAttempts)
	case c.CommandTimeout <= 0:
		return fmt.Errorf("%w: command timeout must be positive, got %s", buspirate.ErrInvalidParameter, c.CommandTimeout)
	case c.EntryTimeout < 0:
		return fmt.Errorf("%w: entry timeout must not be negative", buspirate.ErrInvalidParameter)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay must not be negative", buspirate.ErrInvalidParameter)
	case c.SettleDelay < 0:
		return fmt.Errorf("%w: settle delay must not be negative", buspirate.ErrInvalidParameter)
	}
	if c.Speed >= 0 {
		switch mode {
		case buspirate.ModeRawWire:
			if !buspirate.Speed(c.Speed).Valid() {
				return fmt.Errorf("%w: raw-wire speed index %d", buspirate.ErrInvalidParameter, c.Speed)
			}
		case buspirate.ModeUART:
			if _, err := buspirate.UARTBaudForRate(c.Speed); err != nil {
				return err
			}
		}
	}
	return nil
}
