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
	"github.com/puzpuzpuz/xsync/v3"
)

// Metrics counts protocol activity on a Session. The counters may be read
// from another goroutine while the session is in use.
type Metrics struct {
	// BytesWritten counts every byte handed to the transport
	BytesWritten *xsync.Counter
	// CommandsSent counts command primitives issued
	CommandsSent *xsync.Counter
	// EntryAttempts counts sub-mode entry opcodes written
	EntryAttempts *xsync.Counter
	// BridgeAttempts counts bridge handshake writes
	BridgeAttempts *xsync.Counter
	// Flushes counts transport input flushes
	Flushes *xsync.Counter
	// Timeouts counts responses that never arrived
	Timeouts *xsync.Counter
	// Mismatches counts responses that arrived with the wrong content
	Mismatches *xsync.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		BytesWritten:   xsync.NewCounter(),
		CommandsSent:   xsync.NewCounter(),
		EntryAttempts:  xsync.NewCounter(),
		BridgeAttempts: xsync.NewCounter(),
		Flushes:        xsync.NewCounter(),
		Timeouts:       xsync.NewCounter(),
		Mismatches:     xsync.NewCounter(),
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics
type MetricsSnapshot struct {
	BytesWritten   int64
	CommandsSent   int64
	EntryAttempts  int64
	BridgeAttempts int64
	Flushes        int64
	Timeouts       int64
	Mismatches     int64
}

// Snapshot returns the current counter values
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BytesWritten:   m.BytesWritten.Value(),
		CommandsSent:   m.CommandsSent.Value(),
		EntryAttempts:  m.EntryAttempts.Value(),
		BridgeAttempts: m.BridgeAttempts.Value(),
		Flushes:        m.Flushes.Value(),
		Timeouts:       m.Timeouts.Value(),
		Mismatches:     m.Mismatches.Value(),
	}
}
