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

package buspirate_test

import (
	"testing"

	buspirate "github.com/ZaparooProject/go-buspirate"
	virt "github.com/ZaparooProject/go-buspirate/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

func newVirtualSession(t *testing.T, device *virt.VirtualBusPirate, opts ...buspirate.Option) *buspirate.Session {
	t.Helper()

	base := []buspirate.Option{
		buspirate.WithSettleDelay(0),
		buspirate.WithMinDelay(0),
		buspirate.WithHandshake(buspirate.HandshakeConfig{MaxAttempts: buspirate.DefaultMaxAttempts}),
	}
	session, err := buspirate.New(device, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestIntegration_ConsoleToRawWire(t *testing.T) {
	t.Parallel()

	device := virt.NewVirtualBusPirate()
	device.ReadByteValues = []byte{0xC2, 0x20}
	device.BitValue = true
	session := newVirtualSession(t, device)

	_, err := session.Enter(buspirate.ModeRawWire)
	require.NoError(t, err)
	assert.Equal(t, buspirate.ModeRawWire, session.Mode())
	assert.Equal(t, virt.StateRawWire, device.State())

	raw := session.RawWire()
	require.NoError(t, raw.ConfigurePeripherals(buspirate.PeripheralConfig{Power: true, PullUps: true}))
	require.NoError(t, raw.ConfigureWire(buspirate.WireConfig{Output3V3: true}))
	require.NoError(t, raw.SetSpeed(buspirate.Speed100kHz))

	require.NoError(t, raw.CSLow())
	require.NoError(t, raw.BulkBits(0x9F, 8))
	first, err := raw.ReadByte()
	require.NoError(t, err)
	second, err := raw.ReadByte()
	require.NoError(t, err)
	bit, err := raw.ReadBit()
	require.NoError(t, err)
	require.NoError(t, raw.BulkClockTicks(3))
	require.NoError(t, raw.CSHigh())

	assert.Equal(t, []byte{0xC2, 0x20}, []byte{first, second})
	assert.Equal(t, gpio.High, bit)

	version, err := session.Version()
	require.NoError(t, err)
	assert.Equal(t, "RAW1", version)

	require.NoError(t, session.Reset())
	assert.Equal(t, buspirate.ModeConsole, session.Mode())
	assert.Equal(t, virt.StateConsole, device.State())
}

func TestIntegration_GarbageDuringEntry(t *testing.T) {
	t.Parallel()

	device := virt.NewVirtualBusPirate()
	device.GarbageEntries = 3
	session := newVirtualSession(t, device)

	attempts, err := session.Enter(buspirate.ModeRawWire)
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 4, device.EntryAttempts())
	assert.Equal(t, buspirate.ModeRawWire, session.Mode())
}

func TestIntegration_DesyncedDeviceExhausts(t *testing.T) {
	t.Parallel()

	device := virt.NewVirtualBusPirate()
	device.GarbageEntries = 100
	session := newVirtualSession(t, device, buspirate.WithMaxAttempts(20))

	_, err := session.Enter(buspirate.ModeUART)
	require.ErrorIs(t, err, buspirate.ErrModeEntryFailed)
	require.ErrorIs(t, err, buspirate.ErrProtocolMismatch)
	assert.Equal(t, buspirate.ModeConsole, session.Mode(), "bridge is not committed when the sub-mode fails")
	assert.Equal(t, 20, device.EntryAttempts())
}

func TestIntegration_AbsentDevice(t *testing.T) {
	t.Parallel()

	device := virt.NewVirtualBusPirate()
	device.Silent = true
	session := newVirtualSession(t, device)

	attempts, err := session.Enter(buspirate.ModeRawWire)
	require.ErrorIs(t, err, buspirate.ErrModeEntryFailed)
	require.ErrorIs(t, err, buspirate.ErrResponseTimeout)
	assert.Equal(t, buspirate.DefaultMaxAttempts, attempts)
	assert.Equal(t, buspirate.ModeConsole, session.Mode())
}

func TestIntegration_UART(t *testing.T) {
	t.Parallel()

	device := virt.NewVirtualBusPirate()
	session := newVirtualSession(t, device, buspirate.WithStrictAck(true))

	_, err := session.Enter(buspirate.ModeUART)
	require.NoError(t, err)

	u := session.UART()
	require.NoError(t, u.SetSpeed(buspirate.UARTBaud9600))
	require.NoError(t, u.Configure(buspirate.UARTConfig{Output3V3: true}))
	require.NoError(t, u.BulkWrite([]byte("hello")))

	// Raw-wire commands are refused without touching the device
	before := len(device.Commands())
	require.ErrorIs(t, session.RawWire().ClockTick(), buspirate.ErrWrongMode)
	assert.Len(t, device.Commands(), before)
}

func TestIntegration_SwitchSubModes(t *testing.T) {
	t.Parallel()

	device := virt.NewVirtualBusPirate()
	session := newVirtualSession(t, device)

	_, err := session.Enter(buspirate.ModeRawWire)
	require.NoError(t, err)

	require.NoError(t, session.Exit())
	assert.Equal(t, buspirate.ModeBinaryBridge, session.Mode())
	assert.Equal(t, virt.StateBridge, device.State())

	attempts, err := session.Enter(buspirate.ModeUART)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, virt.StateUART, device.State())

	_, err = session.Enter(buspirate.ModeSPI)
	require.NoError(t, err)
	assert.Equal(t, virt.StateSPI, device.State())
	assert.Equal(t, buspirate.ModeSPI, session.Mode())
}

func TestIntegration_ReattachInBridge(t *testing.T) {
	t.Parallel()

	device := virt.NewVirtualBusPirate()
	device.SetState(virt.StateBridge)
	session := newVirtualSession(t, device, buspirate.WithInitialMode(buspirate.ModeBinaryBridge))

	attempts, err := session.Enter(buspirate.ModeOneWire)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, [][]byte{{0x04}}, device.Commands())
}
