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
	"sync"
	"time"
)

// MockTransport is a scripted transport for testing. Every Write pops the
// next queued response into the receive buffer (a nil entry means silence),
// or calls ResponseFunc when no responses are queued. Reads never block: a
// short read stands in for a timeout.
type MockTransport struct {
	ResponseFunc func(written []byte) []byte
	writeErr     error
	readErr      error
	responses    [][]byte
	writes       [][]byte
	rx           []byte
	flushes      int
	mu           sync.Mutex
	closed       bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// NewMockTransportWithResponses creates a mock that answers writes in order
func NewMockTransportWithResponses(responses ...[]byte) *MockTransport {
	mock := NewMockTransport()
	mock.QueueResponses(responses...)
	return mock
}

// QueueResponses appends responses for subsequent writes
func (m *MockTransport) QueueResponses(responses ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

// SetResponseFunc configures a dynamic response used once the queue is empty
func (m *MockTransport) SetResponseFunc(fn func(written []byte) []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResponseFunc = fn
}

// SetWriteError makes every Write fail with err
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetReadError makes every Read fail with err
func (m *MockTransport) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// Write records data and queues the scripted response
func (m *MockTransport) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrTransportClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}

	m.writes = append(m.writes, append([]byte(nil), data...))

	switch {
	case len(m.responses) > 0:
		m.rx = append(m.rx, m.responses[0]...)
		m.responses = m.responses[1:]
	case m.ResponseFunc != nil:
		m.rx = append(m.rx, m.ResponseFunc(data)...)
	}
	return nil
}

// Read returns up to n buffered bytes without waiting
func (m *MockTransport) Read(n int, _ time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrTransportClosed
	}
	if m.readErr != nil {
		return nil, m.readErr
	}

	if n > len(m.rx) {
		n = len(m.rx)
	}
	out := append([]byte(nil), m.rx[:n]...)
	m.rx = m.rx[n:]
	return out, nil
}

// Flush discards the receive buffer
func (m *MockTransport) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	m.rx = nil
	return nil
}

// Close marks the transport as closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsConnected returns true until Close is called
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Writes returns a copy of every write in order
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// WrittenBytes returns every written byte concatenated
func (m *MockTransport) WrittenBytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []byte
	for _, w := range m.writes {
		out = append(out, w...)
	}
	return out
}

// WriteCount returns the number of Write calls
func (m *MockTransport) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// FlushCount returns the number of Flush calls
func (m *MockTransport) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Reset clears recorded writes, flushes and the receive buffer
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
	m.rx = nil
	m.flushes = 0
}
