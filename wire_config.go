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

	"periph.io/x/conn/v3/physic"
)

// Raw-wire configuration bits (1000wxyz)
const (
	WireReserved  byte = 0x01 // z: not used
	WireLSBFirst  byte = 0x02 // y: LSB first instead of MSB first
	WireThreeWire byte = 0x04 // x: 3-wire instead of 2-wire
	WireOutput3V3 byte = 0x08 // w: 3.3V push-pull outputs instead of HiZ
)

// WireConfig is the raw-wire bus configuration
type WireConfig struct {
	// Output3V3 drives pins at 3.3V; false leaves them open drain (HiZ)
	Output3V3 bool
	// ThreeWire selects 3-wire mode; false is 2-wire
	ThreeWire bool
	// LSBFirst shifts bytes out least significant bit first
	LSBFirst bool
}

// Byte returns the flag bits of the configuration
func (c WireConfig) Byte() byte {
	var b byte
	if c.Output3V3 {
		b |= WireOutput3V3
	}
	if c.ThreeWire {
		b |= WireThreeWire
	}
	if c.LSBFirst {
		b |= WireLSBFirst
	}
	return b
}

// DecodeWireConfig parses the flag bits of a raw-wire configuration command.
// The opcode bits and the reserved bit are ignored.
func DecodeWireConfig(b byte) WireConfig {
	return WireConfig{
		Output3V3: b&WireOutput3V3 != 0,
		ThreeWire: b&WireThreeWire != 0,
		LSBFirst:  b&WireLSBFirst != 0,
	}
}

// String implements fmt.Stringer
func (c WireConfig) String() string {
	out, wires, order := "HiZ", "2-wire", "MSB"
	if c.Output3V3 {
		out = "3.3V"
	}
	if c.ThreeWire {
		wires = "3-wire"
	}
	if c.LSBFirst {
		order = "LSB"
	}
	return fmt.Sprintf("%s %s %s-first", out, wires, order)
}

// Peripheral configuration bits (0100wxyz)
const (
	PeripheralCS      byte = 0x01 // z: chip select pin
	PeripheralAUX     byte = 0x02 // y: auxiliary pin
	PeripheralPullUps byte = 0x04 // x: pull-up resistors
	PeripheralPower   byte = 0x08 // w: power supplies
)

// PeripheralConfig switches the on-board peripherals
type PeripheralConfig struct {
	Power   bool
	PullUps bool
	AUX     bool
	CS      bool
}

// Byte returns the flag bits of the configuration
func (c PeripheralConfig) Byte() byte {
	var b byte
	if c.Power {
		b |= PeripheralPower
	}
	if c.PullUps {
		b |= PeripheralPullUps
	}
	if c.AUX {
		b |= PeripheralAUX
	}
	if c.CS {
		b |= PeripheralCS
	}
	return b
}

// DecodePeripheralConfig parses the flag bits of a peripheral command
func DecodePeripheralConfig(b byte) PeripheralConfig {
	return PeripheralConfig{
		Power:   b&PeripheralPower != 0,
		PullUps: b&PeripheralPullUps != 0,
		AUX:     b&PeripheralAUX != 0,
		CS:      b&PeripheralCS != 0,
	}
}

// Speed is the raw-wire bus speed index
type Speed byte

// Raw-wire speeds
const (
	Speed5kHz Speed = iota
	Speed50kHz
	Speed100kHz
	Speed400kHz
)

var speedFrequencies = [...]physic.Frequency{
	5 * physic.KiloHertz,
	50 * physic.KiloHertz,
	100 * physic.KiloHertz,
	400 * physic.KiloHertz,
}

// Valid returns true for speed indices 0 through 3
func (s Speed) Valid() bool {
	return int(s) < len(speedFrequencies)
}

// Frequency returns the approximate bus clock for the speed
func (s Speed) Frequency() physic.Frequency {
	if !s.Valid() {
		return 0
	}
	return speedFrequencies[s]
}

// String implements fmt.Stringer
func (s Speed) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Speed(%d)", byte(s))
	}
	return "~" + s.Frequency().String()
}

// SpeedForFrequency returns the fastest speed not above f
func SpeedForFrequency(f physic.Frequency) (Speed, error) {
	for i := len(speedFrequencies) - 1; i >= 0; i-- {
		if speedFrequencies[i] <= f {
			return Speed(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s is below the slowest raw-wire speed", ErrInvalidParameter, f)
}
