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
	"context"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// RawWire is the raw 2/3-wire bit-banging command set. Every method writes
// its opcode, waits the settle delay and reads one response byte. Methods
// fail with ErrWrongMode, without writing, unless the session is in
// ModeRawWire.
type RawWire struct {
	session *Session
}

// Session returns the session the command set is bound to
func (r *RawWire) Session() *Session {
	return r.session
}

// ack sends a command whose response is a plain acknowledgement
func (r *RawWire) ack(ctx context.Context, op string, cmd Command) error {
	_, err := r.session.command(ctx, ModeRawWire, op, cmd.Bytes(), expectAck(r.session.config.StrictAck))
	return err
}

// value sends a command whose one byte response carries data
func (r *RawWire) value(ctx context.Context, op string, opcode byte) (byte, error) {
	resp, err := r.session.command(ctx, ModeRawWire, op, []byte{opcode}, expectByte())
	if err != nil {
		return 0, err
	}
	return resp[0], nil
}

// StartBit sends an I2C-style start condition.
// It is the legacy form of the start command.
func (r *RawWire) StartBit() error {
	return r.StartBitContext(context.Background())
}

// StartBitContext sends an I2C-style start condition
func (r *RawWire) StartBitContext(ctx context.Context) error {
	return r.ack(ctx, "StartBit", Command{Opcode: cmdRawStartBit})
}

// StopBit sends an I2C-style stop condition.
// It is the legacy form of the stop command.
func (r *RawWire) StopBit() error {
	return r.StopBitContext(context.Background())
}

// StopBitContext sends an I2C-style stop condition
func (r *RawWire) StopBitContext(ctx context.Context) error {
	return r.ack(ctx, "StopBit", Command{Opcode: cmdRawStopBit})
}

// CSLow drives chip select low
func (r *RawWire) CSLow() error {
	return r.CSLowContext(context.Background())
}

// CSLowContext drives chip select low
func (r *RawWire) CSLowContext(ctx context.Context) error {
	return r.ack(ctx, "CSLow", Command{Opcode: cmdRawCSLow})
}

// CSHigh drives chip select high
func (r *RawWire) CSHigh() error {
	return r.CSHighContext(context.Background())
}

// CSHighContext drives chip select high
func (r *RawWire) CSHighContext(ctx context.Context) error {
	return r.ack(ctx, "CSHigh", Command{Opcode: cmdRawCSHigh})
}

// ReadByte clocks in one byte and returns it
func (r *RawWire) ReadByte() (byte, error) {
	return r.ReadByteContext(context.Background())
}

// ReadByteContext clocks in one byte and returns it
func (r *RawWire) ReadByteContext(ctx context.Context) (byte, error) {
	return r.value(ctx, "ReadByte", cmdRawReadByte)
}

// ReadBit clocks in one bit
func (r *RawWire) ReadBit() (gpio.Level, error) {
	return r.ReadBitContext(context.Background())
}

// ReadBitContext clocks in one bit
func (r *RawWire) ReadBitContext(ctx context.Context) (gpio.Level, error) {
	b, err := r.value(ctx, "ReadBit", cmdRawReadBit)
	if err != nil {
		return gpio.Low, err
	}
	return b != 0, nil
}

// Peek reads the data input pin without clocking
func (r *RawWire) Peek() (gpio.Level, error) {
	return r.PeekContext(context.Background())
}

// PeekContext reads the data input pin without clocking
func (r *RawWire) PeekContext(ctx context.Context) (gpio.Level, error) {
	b, err := r.value(ctx, "Peek", cmdRawPeek)
	if err != nil {
		return gpio.Low, err
	}
	return b != 0, nil
}

// ClockTick pulses the clock once
func (r *RawWire) ClockTick() error {
	return r.ClockTickContext(context.Background())
}

// ClockTickContext pulses the clock once
func (r *RawWire) ClockTickContext(ctx context.Context) error {
	return r.ack(ctx, "ClockTick", Command{Opcode: cmdRawClockTick})
}

// ClockLow drives the clock line low
func (r *RawWire) ClockLow() error {
	return r.ClockLowContext(context.Background())
}

// ClockLowContext drives the clock line low
func (r *RawWire) ClockLowContext(ctx context.Context) error {
	return r.ack(ctx, "ClockLow", Command{Opcode: cmdRawClockLow})
}

// ClockHigh drives the clock line high
func (r *RawWire) ClockHigh() error {
	return r.ClockHighContext(context.Background())
}

// ClockHighContext drives the clock line high
func (r *RawWire) ClockHighContext(ctx context.Context) error {
	return r.ack(ctx, "ClockHigh", Command{Opcode: cmdRawClockHigh})
}

// DataLow drives the data line low
func (r *RawWire) DataLow() error {
	return r.DataLowContext(context.Background())
}

// DataLowContext drives the data line low
func (r *RawWire) DataLowContext(ctx context.Context) error {
	return r.ack(ctx, "DataLow", Command{Opcode: cmdRawDataLow})
}

// DataHigh drives the data line high
func (r *RawWire) DataHigh() error {
	return r.DataHighContext(context.Background())
}

// DataHighContext drives the data line high
func (r *RawWire) DataHighContext(ctx context.Context) error {
	return r.ack(ctx, "DataHigh", Command{Opcode: cmdRawDataHigh})
}

// BulkBits shifts out the top n bits of b, n in 1..8
func (r *RawWire) BulkBits(b byte, n int) error {
	return r.BulkBitsContext(context.Background(), b, n)
}

// BulkBitsContext shifts out the top n bits of b, n in 1..8
func (r *RawWire) BulkBitsContext(ctx context.Context, b byte, n int) error {
	cmd, err := EncodeBulkBits(b, n)
	if err != nil {
		return err
	}
	return r.ack(ctx, "BulkBits", cmd)
}

// EncodeBulkBits returns the bulk bits command for the top n bits of b.
// The data byte is b >> (8-n).
func EncodeBulkBits(b byte, n int) (Command, error) {
	if n < 1 || n > maxBulkBits {
		return Command{}, fmt.Errorf("%w: bulk bits count %d outside 1..%d", ErrInvalidParameter, n, maxBulkBits)
	}
	return Command{
		Opcode: cmdRawBulkBits | byte(n-1),
		Params: []byte{b >> (8 - n)},
	}, nil
}

// BulkClockTicks pulses the clock ticks times, ticks in 1..16
func (r *RawWire) BulkClockTicks(ticks int) error {
	return r.BulkClockTicksContext(context.Background(), ticks)
}

// BulkClockTicksContext pulses the clock ticks times, ticks in 1..16
func (r *RawWire) BulkClockTicksContext(ctx context.Context, ticks int) error {
	cmd, err := EncodeBulkClockTicks(ticks)
	if err != nil {
		return err
	}
	return r.ack(ctx, "BulkClockTicks", cmd)
}

// EncodeBulkClockTicks returns the bulk clock ticks command
func EncodeBulkClockTicks(ticks int) (Command, error) {
	if ticks < 1 || ticks > maxBulkClockTicks {
		return Command{}, fmt.Errorf("%w: clock ticks %d outside 1..%d",
			ErrInvalidParameter, ticks, maxBulkClockTicks)
	}
	return Command{Opcode: cmdRawBulkClockTicks | byte(ticks-1)}, nil
}

// ConfigureWire sets output type, wire count and bit order
func (r *RawWire) ConfigureWire(config WireConfig) error {
	return r.ConfigureWireContext(context.Background(), config)
}

// ConfigureWireContext sets output type, wire count and bit order
func (r *RawWire) ConfigureWireContext(ctx context.Context, config WireConfig) error {
	return r.ack(ctx, "ConfigureWire", Command{Opcode: cmdConfig | config.Byte()})
}

// ConfigurePeripherals switches power, pull-ups, AUX and CS
func (r *RawWire) ConfigurePeripherals(config PeripheralConfig) error {
	return r.ConfigurePeripheralsContext(context.Background(), config)
}

// ConfigurePeripheralsContext switches power, pull-ups, AUX and CS
func (r *RawWire) ConfigurePeripheralsContext(ctx context.Context, config PeripheralConfig) error {
	return r.ack(ctx, "ConfigurePeripherals", Command{Opcode: cmdPeripherals | config.Byte()})
}

// SetSpeed sets the bus clock speed
func (r *RawWire) SetSpeed(speed Speed) error {
	return r.SetSpeedContext(context.Background(), speed)
}

// SetSpeedContext sets the bus clock speed
func (r *RawWire) SetSpeedContext(ctx context.Context, speed Speed) error {
	if !speed.Valid() {
		return fmt.Errorf("%w: raw-wire speed index %d outside 0..3", ErrInvalidParameter, byte(speed))
	}
	return r.ack(ctx, "SetSpeed", Command{Opcode: cmdSetSpeed | byte(speed)})
}
