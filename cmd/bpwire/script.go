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
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	buspirate "github.com/ZaparooProject/go-buspirate"
)

// echoReadTimeout bounds a UART "read:N" step
const echoReadTimeout = 500 * time.Millisecond

var errUnknownStep = errors.New("unknown script step")

// step is one parsed script word, e.g. "cs-low" or "bits:0xA0/3"
type step struct {
	name string
	data []byte
	n    int
}

func (s step) String() string {
	switch {
	case len(s.data) > 0 && s.n > 0:
		return fmt.Sprintf("%s:% X/%d", s.name, s.data, s.n)
	case len(s.data) > 0:
		return fmt.Sprintf("%s:% X", s.name, s.data)
	case s.n > 0:
		return fmt.Sprintf("%s:%d", s.name, s.n)
	default:
		return s.name
	}
}

var rawWireSteps = map[string]bool{
	"start": true, "stop": true, "cs-low": true, "cs-high": true,
	"read": true, "read-bit": true, "peek": true,
	"tick": true, "clock-low": true, "clock-high": true,
	"data-low": true, "data-high": true,
	"write": true, "bits": true, "ticks": true, "version": true,
}

var uartSteps = map[string]bool{
	"echo-on": true, "echo-off": true,
	"write": true, "text": true, "read": true, "version": true,
}

// parseScript parses script words for mode; every argument is checked
// before anything is sent to the device
func parseScript(mode buspirate.Mode, words []string) ([]step, error) {
	allowed := rawWireSteps
	if mode == buspirate.ModeUART {
		allowed = uartSteps
	}

	steps := make([]step, 0, len(words))
	for i, word := range words {
		s, err := parseStep(mode, word)
		if err != nil {
			return nil, fmt.Errorf("step %d %q: %w", i+1, word, err)
		}
		if !allowed[s.name] {
			return nil, fmt.Errorf("step %d %q: %w in %s mode", i+1, word, errUnknownStep, mode)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func parseStep(mode buspirate.Mode, word string) (step, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(word), ":")
	s := step{name: strings.ToLower(name)}

	switch s.name {
	case "write":
		if !hasArg {
			return s, fmt.Errorf("%w: write needs a value", buspirate.ErrInvalidParameter)
		}
		data, err := parseBytes(arg)
		if err != nil {
			return s, err
		}
		if mode == buspirate.ModeRawWire && len(data) != 1 {
			return s, fmt.Errorf("%w: raw-wire write takes one byte", buspirate.ErrInvalidParameter)
		}
		if _, err := buspirate.EncodeBulkWrite(len(data)); err != nil && mode == buspirate.ModeUART {
			return s, err
		}
		s.data = data
	case "text":
		if arg == "" {
			return s, fmt.Errorf("%w: text needs a value", buspirate.ErrInvalidParameter)
		}
		if _, err := buspirate.EncodeBulkWrite(len(arg)); err != nil {
			return s, err
		}
		s.data = []byte(arg)
	case "bits":
		value, count, ok := strings.Cut(arg, "/")
		if !hasArg || !ok {
			return s, fmt.Errorf("%w: bits takes VALUE/COUNT", buspirate.ErrInvalidParameter)
		}
		b, err := parseByte(value)
		if err != nil {
			return s, err
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			return s, fmt.Errorf("%w: bit count %q", buspirate.ErrInvalidParameter, count)
		}
		if _, err := buspirate.EncodeBulkBits(b, n); err != nil {
			return s, err
		}
		s.data = []byte{b}
		s.n = n
	case "ticks":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return s, fmt.Errorf("%w: tick count %q", buspirate.ErrInvalidParameter, arg)
		}
		if _, err := buspirate.EncodeBulkClockTicks(n); err != nil {
			return s, err
		}
		s.n = n
	case "read":
		if mode == buspirate.ModeUART {
			s.n = 1
			if hasArg {
				n, err := strconv.Atoi(arg)
				if err != nil || n < 1 {
					return s, fmt.Errorf("%w: read count %q", buspirate.ErrInvalidParameter, arg)
				}
				s.n = n
			}
			break
		}
		if hasArg {
			return s, fmt.Errorf("%w: read takes no argument", buspirate.ErrInvalidParameter)
		}
	default:
		if hasArg {
			return s, fmt.Errorf("%w: %s takes no argument", buspirate.ErrInvalidParameter, s.name)
		}
	}
	return s, nil
}

// parseBytes parses a comma separated list of byte values
func parseBytes(s string) ([]byte, error) {
	parts := strings.Split(s, ",")
	out := make([]byte, 0, len(parts))
	for _, part := range parts {
		b, err := parseByte(part)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// parseByte accepts decimal, 0x hex and 0b binary
func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: byte value %q", buspirate.ErrInvalidParameter, s)
	}
	return byte(v), nil
}

// runScript executes steps in order and reports read results to out. It
// stops at the first failing step.
func runScript(ctx context.Context, session *buspirate.Session, steps []step, out io.Writer) error {
	for i, s := range steps {
		result, err := runStep(ctx, session, s)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s, err)
		}
		if result != "" {
			_, _ = fmt.Fprintf(out, "%s: %s\n", s, result)
		}
	}
	return nil
}

//nolint:gocyclo,cyclop // flat dispatch over script words
func runStep(ctx context.Context, session *buspirate.Session, s step) (string, error) {
	if s.name == "version" {
		return session.VersionContext(ctx)
	}

	if session.Mode() == buspirate.ModeUART {
		uart := session.UART()
		switch s.name {
		case "echo-on":
			return "", uart.StartEchoContext(ctx)
		case "echo-off":
			return "", uart.StopEchoContext(ctx)
		case "write", "text":
			return "", uart.BulkWriteContext(ctx, s.data)
		case "read":
			data, err := uart.ReadEchoContext(ctx, s.n, echoReadTimeout)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("% X", data), nil
		}
		return "", errUnknownStep
	}

	raw := session.RawWire()
	switch s.name {
	case "start":
		return "", raw.StartBitContext(ctx)
	case "stop":
		return "", raw.StopBitContext(ctx)
	case "cs-low":
		return "", raw.CSLowContext(ctx)
	case "cs-high":
		return "", raw.CSHighContext(ctx)
	case "tick":
		return "", raw.ClockTickContext(ctx)
	case "clock-low":
		return "", raw.ClockLowContext(ctx)
	case "clock-high":
		return "", raw.ClockHighContext(ctx)
	case "data-low":
		return "", raw.DataLowContext(ctx)
	case "data-high":
		return "", raw.DataHighContext(ctx)
	case "write":
		return "", raw.BulkBitsContext(ctx, s.data[0], 8)
	case "bits":
		return "", raw.BulkBitsContext(ctx, s.data[0], s.n)
	case "ticks":
		return "", raw.BulkClockTicksContext(ctx, s.n)
	case "read":
		b, err := raw.ReadByteContext(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("0x%02X", b), nil
	case "read-bit":
		level, err := raw.ReadBitContext(ctx)
		if err != nil {
			return "", err
		}
		return level.String(), nil
	case "peek":
		level, err := raw.PeekContext(ctx)
		if err != nil {
			return "", err
		}
		return level.String(), nil
	}
	return "", errUnknownStep
}
