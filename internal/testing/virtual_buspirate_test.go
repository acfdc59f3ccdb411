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
	"bytes"
	"testing"
	"time"

	buspirate "github.com/ZaparooProject/go-buspirate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, v *VirtualBusPirate) []byte {
	t.Helper()
	out, err := v.Read(64, time.Millisecond)
	require.NoError(t, err)
	return out
}

func TestVirtualBusPirate_ConsoleNeedsTwentyZeros(t *testing.T) {
	t.Parallel()

	v := NewVirtualBusPirate()
	require.NoError(t, v.Write(make([]byte, DefaultZerosToEnter-1)))
	assert.Empty(t, readAll(t, v))
	assert.Equal(t, StateConsole, v.State())

	require.NoError(t, v.Write([]byte{0x00}))
	assert.Equal(t, []byte("BBIO1"), readAll(t, v))
	assert.Equal(t, StateBridge, v.State())
}

func TestVirtualBusPirate_ConsoleEcho(t *testing.T) {
	t.Parallel()

	v := NewVirtualBusPirate()
	require.NoError(t, v.Write([]byte("#\n")))
	assert.Equal(t, []byte("#\n"), readAll(t, v))
	assert.Equal(t, 1, v.Resets())
}

func TestVirtualBusPirate_SubModeEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag    string
		state  VirtualState
		opcode byte
	}{
		{opcode: 0x01, state: StateSPI, tag: "SPI1"},
		{opcode: 0x02, state: StateI2C, tag: "I2C1"},
		{opcode: 0x03, state: StateUART, tag: "ART1"},
		{opcode: 0x04, state: StateOneWire, tag: "1W01"},
		{opcode: 0x05, state: StateRawWire, tag: "RAW1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()
			v := NewVirtualBusPirate()
			v.SetState(StateBridge)

			require.NoError(t, v.Write([]byte{tt.opcode}))
			assert.Equal(t, []byte(tt.tag), readAll(t, v))
			assert.Equal(t, tt.state, v.State())

			// 0x01 repeats the tag, 0x00 returns to the bridge
			require.NoError(t, v.Write([]byte{0x01}))
			assert.Equal(t, []byte(tt.tag), readAll(t, v))
			require.NoError(t, v.Write([]byte{0x00}))
			assert.Equal(t, []byte("BBIO1"), readAll(t, v))
			assert.Equal(t, StateBridge, v.State())
		})
	}
}

func TestVirtualBusPirate_GarbageEntries(t *testing.T) {
	t.Parallel()

	v := NewVirtualBusPirate()
	v.SetState(StateBridge)
	v.GarbageEntries = 2

	for i := 0; i < 2; i++ {
		require.NoError(t, v.Write([]byte{0x05}))
		assert.Equal(t, []byte("????"), readAll(t, v))
		assert.Equal(t, StateBridge, v.State())
	}
	require.NoError(t, v.Write([]byte{0x05}))
	assert.Equal(t, []byte("RAW1"), readAll(t, v))
	assert.Equal(t, 3, v.EntryAttempts())
}

func TestVirtualBusPirate_RawWire(t *testing.T) {
	t.Parallel()

	v := NewVirtualBusPirate()
	v.SetState(StateRawWire)
	v.ReadByteValues = []byte{0x42}
	v.BitValue = true

	require.NoError(t, v.Write([]byte{0x06}))
	require.NoError(t, v.Write([]byte{0x06}))
	require.NoError(t, v.Write([]byte{0x07}))
	require.NoError(t, v.Write([]byte{0x32, 0x05}))
	require.NoError(t, v.Write([]byte{0x04}))
	assert.Equal(t, []byte{0x42, 0xFF, 0x01, 0x01, 0x01}, readAll(t, v))
}

func TestVirtualBusPirate_UARTBulkWrite(t *testing.T) {
	t.Parallel()

	v := NewVirtualBusPirate()
	v.SetState(StateUART)

	require.NoError(t, v.Write([]byte{0x11}))
	require.NoError(t, v.Write([]byte{'h'}))
	require.NoError(t, v.Write([]byte{'i'}))
	assert.Equal(t, []byte{0x01, 0x01, 0x01}, readAll(t, v))

	// The payload is acked, never treated as a command
	require.NoError(t, v.Write([]byte{0x00}))
	assert.Equal(t, []byte("BBIO1"), readAll(t, v))
}

func TestVirtualBusPirate_ResetFromBridge(t *testing.T) {
	t.Parallel()

	v := NewVirtualBusPirate()
	v.SetState(StateBridge)

	require.NoError(t, v.Write([]byte{0x0F}))
	assert.Equal(t, []byte{0x01}, readAll(t, v))
	assert.Equal(t, StateConsole, v.State())
	assert.Equal(t, 1, v.Resets())
}

func TestVirtualBusPirate_SilentAndClosed(t *testing.T) {
	t.Parallel()

	v := NewVirtualBusPirate()
	v.Silent = true
	require.NoError(t, v.Write(make([]byte, DefaultZerosToEnter)))
	assert.Empty(t, readAll(t, v))
	assert.Equal(t, StateBridge, v.State(), "silent devices still change state")

	v.Silent = false
	require.NoError(t, v.Write([]byte{0x00}))
	require.NoError(t, v.Flush())
	assert.Empty(t, readAll(t, v))
	assert.Equal(t, 1, v.Flushes())

	require.NoError(t, v.Close())
	assert.False(t, v.IsConnected())
	require.ErrorIs(t, v.Write([]byte{0x00}), buspirate.ErrTransportClosed)
	_, err := v.Read(1, time.Millisecond)
	require.ErrorIs(t, err, buspirate.ErrTransportClosed)

	assert.True(t, bytes.Equal(v.Commands()[0], make([]byte, DefaultZerosToEnter)))
}
