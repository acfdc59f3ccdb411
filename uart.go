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
	"time"
)

// UARTBaud is the index of a preset UART speed
type UARTBaud byte

// Preset UART speeds. Index 9 is not assigned by the firmware.
const (
	UARTBaud300    UARTBaud = 0x0
	UARTBaud1200   UARTBaud = 0x1
	UARTBaud2400   UARTBaud = 0x2
	UARTBaud4800   UARTBaud = 0x3
	UARTBaud9600   UARTBaud = 0x4
	UARTBaud19200  UARTBaud = 0x5
	UARTBaud31250  UARTBaud = 0x6
	UARTBaud38400  UARTBaud = 0x7
	UARTBaud57600  UARTBaud = 0x8
	UARTBaud115200 UARTBaud = 0xA
)

var uartBaudRates = map[UARTBaud]int{
	UARTBaud300:    300,
	UARTBaud1200:   1200,
	UARTBaud2400:   2400,
	UARTBaud4800:   4800,
	UARTBaud9600:   9600,
	UARTBaud19200:  19200,
	UARTBaud31250:  31250,
	UARTBaud38400:  38400,
	UARTBaud57600:  57600,
	UARTBaud115200: 115200,
}

// Rate returns the speed in bits per second, or 0 for an unassigned index
func (b UARTBaud) Rate() int {
	return uartBaudRates[b]
}

// UARTBaudForRate returns the preset index for a speed in bits per second
func UARTBaudForRate(rate int) (UARTBaud, error) {
	for b, r := range uartBaudRates {
		if r == rate {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: no preset UART speed %d", ErrInvalidParameter, rate)
}

// UARTFraming selects data bits and parity
type UARTFraming byte

// UART framings
const (
	Framing8N UARTFraming = iota
	Framing8E
	Framing8O
	Framing9N
)

// UARTConfig is the UART line configuration (100wxxyz)
type UARTConfig struct {
	Framing UARTFraming
	// Output3V3 drives TX at 3.3V; false leaves it open drain (HiZ)
	Output3V3 bool
	// TwoStopBits selects 2 stop bits instead of 1
	TwoStopBits bool
	// RXIdleLow inverts the receive polarity
	RXIdleLow bool
}

// Byte returns the flag bits of the configuration
func (c UARTConfig) Byte() byte {
	b := byte(c.Framing&0x03) << 2
	if c.Output3V3 {
		b |= 0x10
	}
	if c.TwoStopBits {
		b |= 0x02
	}
	if c.RXIdleLow {
		b |= 0x01
	}
	return b
}

// DecodeUARTConfig parses the flag bits of a UART configuration command
func DecodeUARTConfig(b byte) UARTConfig {
	return UARTConfig{
		Output3V3:   b&0x10 != 0,
		Framing:     UARTFraming((b >> 2) & 0x03),
		TwoStopBits: b&0x02 != 0,
		RXIdleLow:   b&0x01 != 0,
	}
}

// UART is the binary UART command set. Methods fail with ErrWrongMode,
// without writing, unless the session is in ModeUART.
type UART struct {
	session *Session
}

// Session returns the session the command set is bound to
func (u *UART) Session() *Session {
	return u.session
}

func (u *UART) ack(ctx context.Context, op string, cmd Command) error {
	_, err := u.session.command(ctx, ModeUART, op, cmd.Bytes(), expectAck(u.session.config.StrictAck))
	return err
}

// StartEcho starts forwarding received UART bytes to the host
func (u *UART) StartEcho() error {
	return u.StartEchoContext(context.Background())
}

// StartEchoContext starts forwarding received UART bytes to the host. While
// echo is on, received bytes interleave with command acknowledgements.
func (u *UART) StartEchoContext(ctx context.Context) error {
	return u.ack(ctx, "StartEcho", Command{Opcode: cmdUARTStartEcho})
}

// StopEcho stops forwarding received UART bytes
func (u *UART) StopEcho() error {
	return u.StopEchoContext(context.Background())
}

// StopEchoContext stops forwarding received UART bytes
func (u *UART) StopEchoContext(ctx context.Context) error {
	return u.ack(ctx, "StopEcho", Command{Opcode: cmdUARTStopEcho})
}

// ReadEcho returns up to n forwarded bytes received within timeout
func (u *UART) ReadEcho(n int, timeout time.Duration) ([]byte, error) {
	return u.ReadEchoContext(context.Background(), n, timeout)
}

// ReadEchoContext returns up to n forwarded bytes received within timeout.
// Nothing is written; an empty result is ErrResponseTimeout.
func (u *UART) ReadEchoContext(ctx context.Context, n int, timeout time.Duration) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: echo read size %d", ErrInvalidParameter, n)
	}
	if err := u.session.requireMode("ReadEcho", ModeUART); err != nil {
		return nil, err
	}
	return u.session.readExpected(ctx, "ReadEcho", timeout, ExpectedResponse{Length: n, Raw: true})
}

// BulkWrite transmits 1 to 16 bytes
func (u *UART) BulkWrite(data []byte) error {
	return u.BulkWriteContext(context.Background(), data)
}

// BulkWriteContext transmits 1 to 16 bytes. The device acknowledges the
// command and then every data byte.
func (u *UART) BulkWriteContext(ctx context.Context, data []byte) error {
	cmd, err := EncodeBulkWrite(len(data))
	if err != nil {
		return err
	}
	if err := u.ack(ctx, "BulkWrite", cmd); err != nil {
		return err
	}
	for i, b := range data {
		if err := u.ack(ctx, "BulkWrite", Command{Opcode: b}); err != nil {
			return fmt.Errorf("bulk write byte %d: %w", i, err)
		}
	}
	return nil
}

// EncodeBulkWrite returns the bulk write command header for n data bytes
func EncodeBulkWrite(n int) (Command, error) {
	if n < 1 || n > maxBulkWrite {
		return Command{}, fmt.Errorf("%w: bulk write length %d outside 1..%d", ErrInvalidParameter, n, maxBulkWrite)
	}
	return Command{Opcode: cmdUARTBulkWrite | byte(n-1)}, nil
}

// ConfigurePeripherals switches power, pull-ups, AUX and CS
func (u *UART) ConfigurePeripherals(config PeripheralConfig) error {
	return u.ConfigurePeripheralsContext(context.Background(), config)
}

// ConfigurePeripheralsContext switches power, pull-ups, AUX and CS
func (u *UART) ConfigurePeripheralsContext(ctx context.Context, config PeripheralConfig) error {
	return u.ack(ctx, "ConfigurePeripherals", Command{Opcode: cmdPeripherals | config.Byte()})
}

// SetSpeed selects a preset UART speed
func (u *UART) SetSpeed(baud UARTBaud) error {
	return u.SetSpeedContext(context.Background(), baud)
}

// SetSpeedContext selects a preset UART speed
func (u *UART) SetSpeedContext(ctx context.Context, baud UARTBaud) error {
	if baud.Rate() == 0 {
		return fmt.Errorf("%w: UART speed index %d is not assigned", ErrInvalidParameter, byte(baud))
	}
	return u.ack(ctx, "SetSpeed", Command{Opcode: cmdSetSpeed | byte(baud)})
}

// Configure sets output type, framing, stop bits and receive polarity
func (u *UART) Configure(config UARTConfig) error {
	return u.ConfigureContext(context.Background(), config)
}

// ConfigureContext sets output type, framing, stop bits and receive polarity
func (u *UART) ConfigureContext(ctx context.Context, config UARTConfig) error {
	if config.Framing > Framing9N {
		return fmt.Errorf("%w: unknown UART framing %d", ErrInvalidParameter, config.Framing)
	}
	return u.ack(ctx, "Configure", Command{Opcode: cmdConfig | config.Byte()})
}
