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
	"bytes"
	"fmt"
)

// ackByte is the device's conventional "ok" response
const ackByte = 0x01

// ExpectedResponse describes what a command should get back from the device
type ExpectedResponse struct {
	// Tag, when set, must match the response exactly (case-sensitive)
	Tag []byte
	// Length is the number of bytes to read
	Length int
	// Raw returns whatever arrived without checking its content
	Raw bool
	// StrictAck requires a single-byte response to equal 0x01
	StrictAck bool
}

// expectTag builds the expectation for a mode tag
func expectTag(tag string) ExpectedResponse {
	return ExpectedResponse{Length: len(tag), Tag: []byte(tag)}
}

// expectAck builds the expectation for a one byte acknowledgement
func expectAck(strict bool) ExpectedResponse {
	return ExpectedResponse{Length: 1, StrictAck: strict}
}

// expectByte builds the expectation for a one byte value
func expectByte() ExpectedResponse {
	return ExpectedResponse{Length: 1, Raw: true}
}

// Validate checks a response against the expectation. An empty response is
// always ErrResponseTimeout; any other failure is ErrProtocolMismatch.
func (e ExpectedResponse) Validate(resp []byte) error {
	if len(resp) == 0 && e.Length > 0 {
		return ErrResponseTimeout
	}

	if e.Raw {
		return nil
	}

	if len(resp) != e.Length {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrProtocolMismatch, len(resp), e.Length)
	}

	if e.Tag != nil && !bytes.Equal(resp, e.Tag) {
		return fmt.Errorf("%w: got %q, want %q", ErrProtocolMismatch, resp, e.Tag)
	}

	if e.StrictAck && e.Length == 1 && resp[0] != ackByte {
		return fmt.Errorf("%w: got %#02x, want %#02x", ErrProtocolMismatch, resp[0], ackByte)
	}

	return nil
}
