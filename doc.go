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

/*
Package buspirate provides a pure Go library for driving a Bus Pirate through
its binary bit-bang protocol.

The Bus Pirate boots into a text console. Writing 0x00 repeatedly switches it
to the binary bridge ("BBIO1"), from which single byte opcodes enter the
binary sub-modes: SPI, I2C, UART, 1-Wire and raw 2/3-wire. Every sub-mode
answers its entry opcode with a four byte tag and every command with a one
byte response. This library owns that state machine and encodes each
primitive to the exact bytes the device expects.

Features:
  - Console to binary bridge handshake with bounded retries
  - Sub-mode entry with flush-and-retry on desynchronisation
  - Raw-wire primitives: clock, data and chip select lines, bit and byte reads,
    bulk bit and clock tick transfers, wire and speed configuration
  - UART bridge primitives: echo control, bulk writes, speed and line setup
  - Errors that tell an absent device apart from a desynchronised one
  - Structured debug logging through log/slog

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-buspirate"
	    "github.com/ZaparooProject/go-buspirate/transport/uart"
	)

	transport, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}

	session, err := buspirate.New(transport,
	    buspirate.WithTimeout(200*time.Millisecond),
	    buspirate.WithMaxAttempts(30),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer session.Close()

	if _, err := session.Enter(buspirate.ModeRawWire); err != nil {
	    log.Fatal(err)
	}
	defer session.Reset()

	raw := session.RawWire()
	_ = raw.CSLow()
	_ = raw.BulkBits(0x9F, 8)
	id, err := raw.ReadByte()
	_ = raw.CSHigh()

Transports:

The core only needs the Transport interface: write bytes, read up to n bytes
within a timeout, flush and close. A short read with a nil error means the
device stopped talking. transport/uart implements it over a serial port.

Modes:

Session.Mode is the only source of truth for the device state. Enter, Exit
and Reset are the only calls that change it. Command handles returned by
Session.RawWire and Session.UART check the mode before writing anything and
fail with ErrWrongMode otherwise.

Error Handling:

	_, err := session.Enter(buspirate.ModeRawWire)
	switch {
	case errors.Is(err, buspirate.ErrResponseTimeout):
	    // nothing answered: wrong port or device unplugged
	case errors.Is(err, buspirate.ErrProtocolMismatch):
	    // something answered with the wrong bytes: reset and try again
	}

Thread Safety:

Session operations are not thread-safe. If you need concurrent access,
implement appropriate synchronization in your application. Metrics may be
read from any goroutine.
*/
package buspirate
