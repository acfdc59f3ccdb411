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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	tests := getIsRetryableTestCases()

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsRetryable(tt.err)
			if got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func getIsRetryableTestCases() []struct {
	err  error
	name string
	want bool
} {
	return []struct {
		err  error
		name string
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "response timeout retryable",
			err:  ErrResponseTimeout,
			want: true,
		},
		{
			name: "protocol mismatch retryable",
			err:  ErrProtocolMismatch,
			want: true,
		},
		{
			name: "wrapped protocol mismatch retryable",
			err:  fmt.Errorf("version: %w", ErrProtocolMismatch),
			want: true,
		},
		{
			name: "invalid parameter not retryable",
			err:  ErrInvalidParameter,
			want: false,
		},
		{
			name: "wrong mode not retryable",
			err:  ErrWrongMode,
			want: false,
		},
		{
			name: "transport closed not retryable",
			err:  ErrTransportClosed,
			want: false,
		},
		{
			name: "mode entry failure not retryable",
			err:  &ModeEntryError{Mode: ModeRawWire, Attempts: 20, Cause: ErrResponseTimeout},
			want: false,
		},
		{
			name: "mode entry failure wrapping a timeout not retryable",
			err:  &ModeEntryError{Mode: ModeRawWire, Attempts: 20, Cause: NewTimeoutError("enter raw-wire", "")},
			want: false,
		},
		{
			name: "timeout transport error retryable",
			err:  NewTimeoutError("enter raw-wire", "/dev/ttyUSB0"),
			want: true,
		},
		{
			name: "permanent transport error not retryable",
			err:  NewTransportError("write", "/dev/ttyUSB0", errors.New("unplugged"), ErrorTypePermanent),
			want: false,
		},
		{
			name: "text that only looks like a timeout",
			err:  errors.New("outer: " + ErrResponseTimeout.Error()),
			want: false,
		},
	}
}

func TestGetErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want ErrorType
	}{
		{name: "nil", err: nil, want: ErrorTypePermanent},
		{name: "timeout sentinel", err: ErrResponseTimeout, want: ErrorTypeTimeout},
		{name: "mismatch sentinel", err: ErrProtocolMismatch, want: ErrorTypeTransient},
		{name: "wrong mode", err: ErrWrongMode, want: ErrorTypePermanent},
		{
			name: "mode entry error",
			err:  &ModeEntryError{Mode: ModeUART, Cause: ErrProtocolMismatch},
			want: ErrorTypePermanent,
		},
		{
			name: "mode entry error wrapping a mismatch",
			err: &ModeEntryError{
				Mode:  ModeRawWire,
				Cause: NewProtocolMismatchError("enter raw-wire", "", ErrProtocolMismatch),
			},
			want: ErrorTypePermanent,
		},
		{
			name: "transport error keeps its type",
			err:  fmt.Errorf("step: %w", NewProtocolMismatchError("version", "", expectTag("RAW1").Validate([]byte("?")))),
			want: ErrorTypeTransient,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "permanent", ErrorTypePermanent.String())
	assert.Equal(t, "transient", ErrorTypeTransient.String())
	assert.Equal(t, "timeout", ErrorTypeTimeout.String())
	assert.Equal(t, "ErrorType(9)", ErrorType(9).String())
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	baseErr := errors.New("input/output error")
	err := NewTransportError("write", "/dev/ttyUSB0", baseErr, ErrorTypePermanent)

	if err.Error() != "write on /dev/ttyUSB0: input/output error" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, baseErr) {
		t.Error("TransportError should unwrap to its cause")
	}
	assert.False(t, err.Retryable)

	noPort := NewTransportError("read", "", baseErr, ErrorTypeTransient)
	assert.Equal(t, "read: input/output error", noPort.Error())
	assert.True(t, noPort.Retryable)
}

func TestProtocolMismatchError(t *testing.T) {
	t.Parallel()

	err := NewProtocolMismatchError("enter raw-wire", "COM3", expectTag("RAW1").Validate([]byte("????")))
	require.ErrorIs(t, err, ErrProtocolMismatch)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrorTypeTransient, GetErrorType(err))
	assert.Contains(t, err.Error(), `"????"`)
	assert.Contains(t, err.Error(), `"RAW1"`)

	// Causes that do not carry the sentinel get it added
	plain := NewProtocolMismatchError("read", "", errors.New("short frame"))
	require.ErrorIs(t, plain, ErrProtocolMismatch)
	assert.Contains(t, plain.Error(), "short frame")
	require.ErrorIs(t, NewProtocolMismatchError("read", "", nil), ErrProtocolMismatch)
}

func TestModeEntryError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cause   error
		name    string
		message string
	}{
		{name: "absent device", cause: ErrResponseTimeout, message: "no response after 20 attempts"},
		{name: "desynced device", cause: ErrProtocolMismatch, message: "desynchronised after 20 attempts"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := &ModeEntryError{Mode: ModeRawWire, Attempts: 20, Cause: tt.cause}

			require.ErrorIs(t, err, ErrModeEntryFailed)
			require.ErrorIs(t, err, tt.cause)
			assert.True(t, strings.Contains(err.Error(), tt.message), err.Error())
			assert.Contains(t, err.Error(), "raw-wire")

			var target *ModeEntryError
			require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &target)
			assert.Equal(t, 20, target.Attempts)
		})
	}
}

func TestWrapIOError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, wrapIOError("write", "", nil))

	err := wrapIOError("write", "/dev/ttyUSB0", errors.New("broken pipe"))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrorTypePermanent, te.Type)
	assert.Equal(t, "write", te.Op)

	// Already classified errors pass through
	timeout := NewTimeoutError("read", "")
	assert.Same(t, timeout, wrapIOError("write", "", timeout))
}
