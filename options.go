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

package buspirate

import (
	"fmt"
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Session
type Option func(*Session) error

// WithTimeout sets the response timeout for both mode entry and commands
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidParameter, timeout)
		}
		s.config.EntryTimeout = timeout
		s.config.CommandTimeout = timeout
		return nil
	}
}

// WithCommandTimeout sets the response timeout for command primitives only
func WithCommandTimeout(timeout time.Duration) Option {
	return func(s *Session) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: command timeout must be positive, got %s", ErrInvalidParameter, timeout)
		}
		s.config.CommandTimeout = timeout
		return nil
	}
}

// WithEntryTimeout sets the response timeout for handshake and mode entry reads
func WithEntryTimeout(timeout time.Duration) Option {
	return func(s *Session) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: entry timeout must be positive, got %s", ErrInvalidParameter, timeout)
		}
		s.config.EntryTimeout = timeout
		return nil
	}
}

// WithSettleDelay sets the wait between writing a command and reading its response
func WithSettleDelay(delay time.Duration) Option {
	return func(s *Session) error {
		if delay < 0 {
			return fmt.Errorf("%w: settle delay must not be negative", ErrInvalidParameter)
		}
		s.config.SettleDelay = delay
		return nil
	}
}

// WithMinDelay sets the device minimum delay; mode entry waits ten of them
// before reading the mode tag
func WithMinDelay(delay time.Duration) Option {
	return func(s *Session) error {
		if delay < 0 {
			return fmt.Errorf("%w: minimum delay must not be negative", ErrInvalidParameter)
		}
		s.config.MinDelay = delay
		return nil
	}
}

// WithHandshake sets the retry budget for mode entry
func WithHandshake(config HandshakeConfig) Option {
	return func(s *Session) error {
		if config.MaxAttempts < 1 {
			return fmt.Errorf("%w: handshake needs at least one attempt", ErrInvalidParameter)
		}
		s.config.Handshake = config
		return nil
	}
}

// WithMaxAttempts sets the maximum number of mode entry attempts
func WithMaxAttempts(maxAttempts int) Option {
	return func(s *Session) error {
		if maxAttempts < 1 {
			return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidParameter, maxAttempts)
		}
		s.config.Handshake.MaxAttempts = maxAttempts
		return nil
	}
}

// WithStrictAck makes command primitives require the 0x01 acknowledgement
func WithStrictAck(strict bool) Option {
	return func(s *Session) error {
		s.config.StrictAck = strict
		return nil
	}
}

// WithBaudRate records the line speed of the session
func WithBaudRate(baud int) Option {
	return func(s *Session) error {
		if baud <= 0 {
			return fmt.Errorf("%w: baud rate must be positive, got %d", ErrInvalidParameter, baud)
		}
		s.config.BaudRate = baud
		return nil
	}
}

// WithLogger sets the logger for protocol debug output
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		s.config.Logger = logger
		return nil
	}
}

// WithInitialMode tells the session which mode the device is already in,
// e.g. when reattaching to a device left in raw-wire mode
func WithInitialMode(mode Mode) Option {
	return func(s *Session) error {
		if !mode.Valid() {
			return fmt.Errorf("%w: unknown mode %d", ErrInvalidParameter, int(mode))
		}
		s.mode = mode
		return nil
	}
}
