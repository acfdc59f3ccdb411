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

package testing

import (
	"sync"
	"time"

	buspirate "github.com/ZaparooProject/go-buspirate"
)

// VirtualState is the protocol state of a VirtualBusPirate
type VirtualState int

// Virtual device states
const (
	StateConsole VirtualState = iota
	StateBridge
	StateSPI
	StateI2C
	StateUART
	StateOneWire
	StateRawWire
)

var subModeTags = map[VirtualState]string{
	StateSPI:     "SPI1",
	StateI2C:     "I2C1",
	StateUART:    "ART1",
	StateOneWire: "1W01",
	StateRawWire: "RAW1",
}

// DefaultZerosToEnter is how many consecutive 0x00 bytes the console needs
// before it switches to the binary bridge
const DefaultZerosToEnter = 20

// VirtualBusPirate simulates a Bus Pirate at the byte level and implements
// buspirate.Transport. Reads never block; an empty buffer is a timeout.
type VirtualBusPirate struct {
	// Garbage is sent instead of the mode tag for the next GarbageEntries
	// sub-mode entry attempts
	Garbage []byte
	// ReadByteValues are returned by raw-wire read byte, then 0xFF
	ReadByteValues []byte
	rx             []byte
	commands       [][]byte
	// ZerosToEnter is the number of zeros the console swallows before answering
	ZerosToEnter int
	// GarbageEntries counts the sub-mode entries still answered with Garbage
	GarbageEntries int
	zeros          int
	pendingBits    bool
	pendingWrite   int
	resets         int
	flushes        int
	entryAttempts  int
	state          VirtualState
	mu             sync.Mutex
	// BitValue is returned by raw-wire read bit and peek
	BitValue bool
	// Silent drops every response
	Silent bool
	closed bool
}

// NewVirtualBusPirate creates a simulated device sitting at its console
func NewVirtualBusPirate() *VirtualBusPirate {
	return &VirtualBusPirate{
		ZerosToEnter: DefaultZerosToEnter,
		Garbage:      []byte("????"),
	}
}

// Write feeds bytes to the simulated device
func (v *VirtualBusPirate) Write(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return buspirate.ErrTransportClosed
	}

	v.commands = append(v.commands, append([]byte(nil), data...))
	for _, b := range data {
		v.handle(b)
	}
	return nil
}

func (v *VirtualBusPirate) reply(data ...byte) {
	if v.Silent {
		return
	}
	v.rx = append(v.rx, data...)
}

func (v *VirtualBusPirate) replyString(s string) {
	v.reply([]byte(s)...)
}

func (v *VirtualBusPirate) handle(b byte) {
	switch v.state {
	case StateConsole:
		v.handleConsole(b)
	case StateBridge:
		v.handleBridge(b)
	case StateRawWire:
		v.handleRawWire(b)
	case StateUART:
		v.handleUART(b)
	default:
		v.handleSubMode(b)
	}
}

func (v *VirtualBusPirate) handleConsole(b byte) {
	if b != 0x00 {
		v.zeros = 0
		if b == '#' {
			v.resets++
		}
		v.reply(b) // console echo
		return
	}

	v.zeros++
	if v.zeros >= v.ZerosToEnter {
		v.zeros = 0
		v.state = StateBridge
		v.replyString("BBIO1")
	}
}

func (v *VirtualBusPirate) handleBridge(b byte) {
	switch b {
	case 0x00:
		v.replyString("BBIO1")
	case 0x0F:
		v.reply(0x01)
		v.resets++
		v.state = StateConsole
	case 0x01, 0x02, 0x03, 0x04, 0x05:
		v.entryAttempts++
		if v.GarbageEntries > 0 {
			v.GarbageEntries--
			v.reply(v.Garbage...)
			return
		}
		next := StateSPI + VirtualState(b-0x01)
		v.state = next
		v.replyString(subModeTags[next])
	default:
		v.reply(0x00)
	}
}

// handleSubMode covers the codes every sub-mode shares
func (v *VirtualBusPirate) handleSubMode(b byte) {
	switch b {
	case 0x00:
		v.state = StateBridge
		v.replyString("BBIO1")
	case 0x01:
		v.replyString(subModeTags[v.state])
	default:
		v.reply(0x01)
	}
}

func (v *VirtualBusPirate) handleRawWire(b byte) {
	if v.pendingBits {
		v.pendingBits = false
		v.reply(0x01)
		return
	}

	switch {
	case b == 0x06:
		value := byte(0xFF)
		if len(v.ReadByteValues) > 0 {
			value = v.ReadByteValues[0]
			v.ReadByteValues = v.ReadByteValues[1:]
		}
		v.reply(value)
	case b == 0x07 || b == 0x08:
		if v.BitValue {
			v.reply(0x01)
		} else {
			v.reply(0x00)
		}
	case b&0xF0 == 0x30:
		v.pendingBits = true
	default:
		v.handleSubMode(b)
	}
}

func (v *VirtualBusPirate) handleUART(b byte) {
	if v.pendingWrite > 0 {
		v.pendingWrite--
		v.reply(0x01)
		return
	}

	if b&0xF0 == 0x10 {
		v.pendingWrite = int(b&0x0F) + 1
		v.reply(0x01)
		return
	}
	v.handleSubMode(b)
}

// Read returns up to n buffered bytes without waiting
func (v *VirtualBusPirate) Read(n int, _ time.Duration) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, buspirate.ErrTransportClosed
	}
	if n > len(v.rx) {
		n = len(v.rx)
	}
	out := append([]byte(nil), v.rx[:n]...)
	v.rx = v.rx[n:]
	return out, nil
}

// Flush discards buffered responses
func (v *VirtualBusPirate) Flush() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flushes++
	v.rx = nil
	return nil
}

// Close marks the device as unplugged
func (v *VirtualBusPirate) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// IsConnected returns true until Close is called
func (v *VirtualBusPirate) IsConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed
}

// Type returns TransportMock
func (*VirtualBusPirate) Type() buspirate.TransportType {
	return buspirate.TransportMock
}

// State returns the simulated protocol state
func (v *VirtualBusPirate) State() VirtualState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// SetState moves the simulated device to a state directly
func (v *VirtualBusPirate) SetState(state VirtualState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = state
}

// Commands returns every write in order
func (v *VirtualBusPirate) Commands() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.commands))
	for i, c := range v.commands {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// EntryAttempts returns the number of sub-mode entry opcodes seen in the bridge
func (v *VirtualBusPirate) EntryAttempts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.entryAttempts
}

// Resets returns the number of resets seen
func (v *VirtualBusPirate) Resets() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resets
}

// Flushes returns the number of Flush calls
func (v *VirtualBusPirate) Flushes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flushes
}

var _ buspirate.Transport = (*VirtualBusPirate)(nil)
