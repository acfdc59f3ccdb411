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

import "fmt"

// Mode is the protocol mode the device is in
type Mode int

const (
	// ModeConsole is the interactive text console the device boots into
	ModeConsole Mode = iota
	// ModeBinaryBridge is the binary bit-bang mode every sub-mode is entered from
	ModeBinaryBridge
	// ModeSPI is the binary SPI sub-mode
	ModeSPI
	// ModeI2C is the binary I2C sub-mode
	ModeI2C
	// ModeUART is the binary UART sub-mode
	ModeUART
	// ModeOneWire is the binary 1-Wire sub-mode
	ModeOneWire
	// ModeRawWire is the binary raw 2/3-wire sub-mode
	ModeRawWire
)

// Bridge handshake constants
const (
	bridgeEntryByte = 0x00
	bridgeTag       = "BBIO1"
)

type modeInfo struct {
	name  string
	tag   string
	entry byte
}

var modeTable = map[Mode]modeInfo{
	ModeConsole:      {name: "console"},
	ModeBinaryBridge: {name: "binary-bridge", tag: bridgeTag, entry: bridgeEntryByte},
	ModeSPI:          {name: "spi", tag: "SPI1", entry: 0x01},
	ModeI2C:          {name: "i2c", tag: "I2C1", entry: 0x02},
	ModeUART:         {name: "uart", tag: "ART1", entry: 0x03},
	ModeOneWire:      {name: "1-wire", tag: "1W01", entry: 0x04},
	ModeRawWire:      {name: "raw-wire", tag: "RAW1", entry: 0x05},
}

// String returns the mode name
func (m Mode) String() string {
	if info, ok := modeTable[m]; ok {
		return info.name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Tag returns the acknowledgement string the device sends on entering the mode.
// Console has no tag.
func (m Mode) Tag() string {
	return modeTable[m].tag
}

// EntryOpcode returns the byte that enters the mode from the binary bridge
func (m Mode) EntryOpcode() byte {
	return modeTable[m].entry
}

// IsSubMode returns true for modes entered from the binary bridge
func (m Mode) IsSubMode() bool {
	return m != ModeConsole && m != ModeBinaryBridge && m.Valid()
}

// Valid returns true if m is a known mode
func (m Mode) Valid() bool {
	_, ok := modeTable[m]
	return ok
}

// ParseMode returns the mode with the given name
func ParseMode(name string) (Mode, error) {
	for m, info := range modeTable {
		if info.name == name {
			return m, nil
		}
	}
	return ModeConsole, fmt.Errorf("%w: unknown mode %q", ErrInvalidParameter, name)
}
