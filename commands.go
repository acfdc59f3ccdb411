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

// Raw-wire command codes
const (
	cmdRawStartBit       = 0x02
	cmdRawStopBit        = 0x03
	cmdRawCSLow          = 0x04
	cmdRawCSHigh         = 0x05
	cmdRawReadByte       = 0x06
	cmdRawReadBit        = 0x07
	cmdRawPeek           = 0x08
	cmdRawClockTick      = 0x09
	cmdRawClockLow       = 0x0A
	cmdRawClockHigh      = 0x0B
	cmdRawDataLow        = 0x0C
	cmdRawDataHigh       = 0x0D
	cmdRawBulkClockTicks = 0x20 // 0010xxxx, xxxx = ticks-1
	cmdRawBulkBits       = 0x30 // 0011xxxx, xxxx = bits-1
)

// UART command codes
const (
	cmdUARTStartEcho = 0x02
	cmdUARTStopEcho  = 0x03
	cmdUARTBulkWrite = 0x10 // 0001xxxx, xxxx = bytes-1
)

// Command codes shared by the binary sub-modes
const (
	cmdPeripherals = 0x40 // 0100wxyz
	cmdSetSpeed    = 0x60 // 011000xx in raw-wire, 0110xxxx in UART
	cmdConfig      = 0x80 // 1000wxyz in raw-wire, 100wxxyz in UART
)

// Limits of the packed count fields
const (
	maxBulkBits       = 8
	maxBulkClockTicks = 16
	maxBulkWrite      = 16
)

// Command is a single opcode with its optional fixed-size parameter
type Command struct {
	Params []byte
	Opcode byte
}

// Bytes returns the wire encoding of the command
func (c Command) Bytes() []byte {
	out := make([]byte, 0, 1+len(c.Params))
	out = append(out, c.Opcode)
	return append(out, c.Params...)
}
