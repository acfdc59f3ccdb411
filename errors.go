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
)

// Protocol errors
var (
	// ErrResponseTimeout means no bytes arrived within the response window.
	ErrResponseTimeout = errors.New("response timeout")
	// ErrProtocolMismatch means bytes arrived but did not match what the command expects.
	ErrProtocolMismatch = errors.New("protocol mismatch")
	// ErrModeEntryFailed means the entry handshake exhausted its retry budget.
	ErrModeEntryFailed = errors.New("mode entry failed")
	// ErrInvalidParameter is returned for out-of-range arguments before any I/O.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrWrongMode is returned when a command is issued outside the mode it belongs to.
	ErrWrongMode = errors.New("command not valid in current mode")
	// ErrTransportClosed is returned when the transport has already been closed.
	ErrTransportClosed = errors.New("transport closed")
)

// ErrorType classifies errors for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent errors should not be retried
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed if the operation or mode entry is repeated
	ErrorTypeTransient
	// ErrorTypeTimeout errors are caused by a missing response
	ErrorTypeTimeout
)

// String returns the name of the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError wraps an error with the operation and port it happened on
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable error for a missing response
func NewTimeoutError(op, port string) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       ErrResponseTimeout,
		Type:      ErrorTypeTimeout,
		Retryable: true,
	}
}

// NewProtocolMismatchError creates a retryable error for an unexpected
// response. The cause always matches ErrProtocolMismatch.
func NewProtocolMismatchError(op, port string, cause error) *TransportError {
	switch {
	case cause == nil:
		cause = ErrProtocolMismatch
	case !errors.Is(cause, ErrProtocolMismatch):
		cause = fmt.Errorf("%w: %w", ErrProtocolMismatch, cause)
	}
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       cause,
		Type:      ErrorTypeTransient,
		Retryable: true,
	}
}

// ModeEntryError reports an exhausted mode entry handshake. Cause tells a
// silent device (ErrResponseTimeout) apart from one that answered with the
// wrong bytes (ErrProtocolMismatch).
type ModeEntryError struct {
	Cause    error
	Mode     Mode
	Attempts int
}

// Error implements the error interface
func (e *ModeEntryError) Error() string {
	if errors.Is(e.Cause, ErrResponseTimeout) {
		return fmt.Sprintf("%v: %s: no response after %d attempts", ErrModeEntryFailed, e.Mode, e.Attempts)
	}
	return fmt.Sprintf("%v: %s: device desynchronised after %d attempts: %v",
		ErrModeEntryFailed, e.Mode, e.Attempts, e.Cause)
}

// Unwrap lets errors.Is match both ErrModeEntryFailed and the cause
func (e *ModeEntryError) Unwrap() []error {
	return []error{ErrModeEntryFailed, e.Cause}
}

// IsRetryable reports whether repeating the operation may succeed
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// An exhausted entry wraps the last attempt's retryable error
	var me *ModeEntryError
	if errors.As(err, &me) {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrResponseTimeout),
		errors.Is(err, ErrProtocolMismatch):
		return true
	default:
		return false
	}
}

// GetErrorType returns the error classification
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var me *ModeEntryError
	if errors.As(err, &me) {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrResponseTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrProtocolMismatch):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// wrapIOError marks a transport failure as fatal; the core never retries it.
func wrapIOError(op, port string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return NewTransportError(op, port, err, ErrorTypePermanent)
}
