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
	"time"
)

// Transport defines the byte channel to a Bus Pirate device.
// It is implemented by transport/uart for real serial ports and by mocks in tests.
type Transport interface {
	// Write sends all bytes to the device
	Write(data []byte) error

	// Read waits up to timeout for n bytes. A short result with a nil error
	// means the timeout expired; errors are reserved for I/O failures.
	Read(n int, timeout time.Duration) ([]byte, error)

	// Flush discards any bytes already received but not yet read
	Flush() error

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents a serial port transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// PortNamer is implemented by transports that know their port name.
// It is only used to annotate errors.
type PortNamer interface {
	PortName() string
}

// BaudRater is implemented by transports that know their line speed.
type BaudRater interface {
	BaudRate() int
}

func portName(t Transport) string {
	if pn, ok := t.(PortNamer); ok {
		return pn.PortName()
	}
	return string(t.Type())
}
