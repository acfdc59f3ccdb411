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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUART(t *testing.T, mock *MockTransport, opts ...Option) *UART {
	t.Helper()
	session := newTestSession(t, mock, append([]Option{WithInitialMode(ModeUART)}, opts...)...)
	return session.UART()
}

func TestUART_Echo(t *testing.T) {
	t.Parallel()

	mock := NewMockTransportWithResponses([]byte{0x01}, []byte{0x01})
	u := newUART(t, mock)

	require.NoError(t, u.StartEcho())
	require.NoError(t, u.StopEcho())
	assert.Equal(t, [][]byte{{0x02}, {0x03}}, mock.Writes())
}

func TestUART_ReadEcho(t *testing.T) {
	t.Parallel()

	mock := NewMockTransportWithResponses([]byte{0x01, 'h', 'i'})
	u := newUART(t, mock)

	require.NoError(t, u.StartEcho())

	data, err := u.ReadEcho(8, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
	assert.Equal(t, 1, mock.WriteCount(), "reading echo writes nothing")

	_, err = u.ReadEcho(1, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrResponseTimeout)

	_, err = u.ReadEcho(0, time.Millisecond)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestEncodeBulkWrite(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 16; n++ {
		cmd, err := EncodeBulkWrite(n)
		require.NoError(t, err)
		assert.Equal(t, byte(0x10)|byte(n-1), cmd.Opcode)
	}

	for _, n := range []int{-1, 0, 17} {
		_, err := EncodeBulkWrite(n)
		require.ErrorIs(t, err, ErrInvalidParameter, "length %d", n)
	}
}

func TestUART_BulkWrite(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponseFunc(func([]byte) []byte { return []byte{0x01} })
	u := newUART(t, mock)

	require.NoError(t, u.BulkWrite([]byte("abc")))
	assert.Equal(t, [][]byte{{0x12}, {'a'}, {'b'}, {'c'}}, mock.Writes())
	assert.Equal(t, int64(4), u.Session().Metrics().Snapshot().CommandsSent)
}

func TestUART_BulkWriteMissingAck(t *testing.T) {
	t.Parallel()

	mock := NewMockTransportWithResponses([]byte{0x01}, []byte{0x01}, nil)
	u := newUART(t, mock)

	err := u.BulkWrite([]byte("abc"))
	require.ErrorIs(t, err, ErrResponseTimeout)
	assert.Contains(t, err.Error(), "byte 1")
	assert.Equal(t, 3, mock.WriteCount(), "stops at the missing ack")
}

func TestUART_InvalidParametersWriteNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		call func(u *UART) error
		name string
	}{
		{name: "empty bulk write", call: func(u *UART) error { return u.BulkWrite(nil) }},
		{name: "bulk write too long", call: func(u *UART) error { return u.BulkWrite(make([]byte, 17)) }},
		{name: "unassigned speed", call: func(u *UART) error { return u.SetSpeed(UARTBaud(0x9)) }},
		{name: "speed out of range", call: func(u *UART) error { return u.SetSpeed(UARTBaud(0x10)) }},
		{name: "unknown framing", call: func(u *UART) error { return u.Configure(UARTConfig{Framing: 4}) }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := NewMockTransport()
			u := newUART(t, mock)

			require.ErrorIs(t, tt.call(u), ErrInvalidParameter)
			assert.Zero(t, mock.WriteCount())
		})
	}
}

func TestUART_Configuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		call func(u *UART) error
		name string
		want byte
	}{
		{name: "9600 baud", call: func(u *UART) error { return u.SetSpeed(UARTBaud9600) }, want: 0x64},
		{name: "115200 baud", call: func(u *UART) error { return u.SetSpeed(UARTBaud115200) }, want: 0x6A},
		{
			name: "8N1 open drain",
			call: func(u *UART) error { return u.Configure(UARTConfig{}) },
			want: 0x80,
		},
		{
			name: "3.3V 8E2 inverted",
			call: func(u *UART) error {
				return u.Configure(UARTConfig{Output3V3: true, Framing: Framing8E, TwoStopBits: true, RXIdleLow: true})
			},
			want: 0x97,
		},
		{
			name: "power on",
			call: func(u *UART) error { return u.ConfigurePeripherals(PeripheralConfig{Power: true}) },
			want: 0x48,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := NewMockTransportWithResponses([]byte{0x01})
			u := newUART(t, mock)

			require.NoError(t, tt.call(u))
			assert.Equal(t, []byte{tt.want}, mock.WrittenBytes())
		})
	}
}

func TestUARTConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	for b := 0; b < 32; b++ {
		config := DecodeUARTConfig(cmdConfig | byte(b))
		assert.Equal(t, byte(b), config.Byte(), "flags %05b", b)
	}
}

func TestUARTBaud(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 9600, UARTBaud9600.Rate())
	assert.Equal(t, 31250, UARTBaud31250.Rate())
	assert.Zero(t, UARTBaud(0x9).Rate())

	baud, err := UARTBaudForRate(57600)
	require.NoError(t, err)
	assert.Equal(t, UARTBaud57600, baud)

	_, err = UARTBaudForRate(14400)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestUART_WrongMode(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	session := newTestSession(t, mock, WithInitialMode(ModeRawWire))
	u := session.UART()

	require.ErrorIs(t, u.StartEcho(), ErrWrongMode)
	require.ErrorIs(t, u.BulkWrite([]byte("x")), ErrWrongMode)
	_, err := u.ReadEcho(1, time.Millisecond)
	require.ErrorIs(t, err, ErrWrongMode)
	assert.Zero(t, mock.WriteCount())
}
