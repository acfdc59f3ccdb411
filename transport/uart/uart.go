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

// Package uart provides the serial port transport for Bus Pirate devices
package uart

import (
	"errors"
	"fmt"
	"sync"
	"time"

	buspirate "github.com/ZaparooProject/go-buspirate"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the Bus Pirate console speed
	DefaultBaudRate = 115200
	// drainTimeout is how long Flush waits for silence after clearing the buffer
	drainTimeout = 10 * time.Millisecond
	// maxDrainReads bounds Flush against a device that never stops talking
	maxDrainReads = 64
)

// port is the part of serial.Port the transport uses
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Transport implements the buspirate.Transport interface over a serial port
type Transport struct {
	port        port
	portName    string
	baudRate    int
	readTimeout time.Duration
	mu          sync.Mutex
}

// New opens a serial port at the default Bus Pirate speed
func New(portName string) (*Transport, error) {
	return Open(portName, DefaultBaudRate)
}

// Open opens a serial port at the given speed, 8N1
func Open(portName string, baudRate int) (*Transport, error) {
	if portName == "" {
		return nil, errors.New("serial port path is required")
	}
	if baudRate <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", baudRate)
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	sp, err := serial.Open(portName, mode)
	if err != nil {
		return nil, buspirate.NewTransportError("open", portName, err, buspirate.ErrorTypePermanent)
	}

	return &Transport{
		port:     sp,
		portName: portName,
		baudRate: baudRate,
	}, nil
}

// Write sends all bytes to the device
func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return buspirate.ErrTransportClosed
	}

	for len(data) > 0 {
		n, err := t.port.Write(data)
		if err != nil {
			return t.ioError("write", err)
		}
		if n == 0 {
			return t.ioError("write", errors.New("serial port accepted no bytes"))
		}
		data = data[n:]
	}
	return nil
}

// Read waits up to timeout for n bytes and returns what arrived
func (t *Transport) Read(n int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, buspirate.ErrTransportClosed
	}

	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(timeout)

	for got < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := t.setReadTimeout(remaining); err != nil {
			return buf[:got], err
		}

		k, err := t.port.Read(buf[got:])
		if err != nil {
			return buf[:got], t.ioError("read", err)
		}
		if k == 0 {
			// Timed out with nothing new
			break
		}
		got += k
	}

	return buf[:got], nil
}

// Flush discards pending input, then drains whatever the device is still
// sending until the line has been quiet for a moment
func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return buspirate.ErrTransportClosed
	}

	if err := t.port.ResetInputBuffer(); err != nil {
		return t.ioError("flush", err)
	}

	if err := t.setReadTimeout(drainTimeout); err != nil {
		return err
	}

	buf := make([]byte, 256)
	for i := 0; i < maxDrainReads; i++ {
		n, err := t.port.Read(buf)
		if err != nil {
			return t.ioError("flush", err)
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return t.ioError("close", err)
	}
	return nil
}

// IsConnected returns true if the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() buspirate.TransportType {
	return buspirate.TransportUART
}

// PortName returns the serial port path
func (t *Transport) PortName() string {
	return t.portName
}

// BaudRate returns the line speed
func (t *Transport) BaudRate() int {
	return t.baudRate
}

func (t *Transport) setReadTimeout(timeout time.Duration) error {
	if timeout == t.readTimeout {
		return nil
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return t.ioError("setReadTimeout", err)
	}
	t.readTimeout = timeout
	return nil
}

// ioError marks serial failures as permanent; a closed port maps to
// buspirate.ErrTransportClosed
func (t *Transport) ioError(op string, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		err = fmt.Errorf("%w: %w", buspirate.ErrTransportClosed, err)
	}
	return buspirate.NewTransportError(op, t.portName, err, buspirate.ErrorTypePermanent)
}

// Ensure Transport implements buspirate.Transport
var (
	_ buspirate.Transport = (*Transport)(nil)
	_ buspirate.PortNamer = (*Transport)(nil)
	_ buspirate.BaudRater = (*Transport)(nil)
)
