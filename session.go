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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZaparooProject/go-buspirate/internal/retry"
)

// Default protocol timings
const (
	DefaultBaudRate       = 115200
	DefaultMaxAttempts    = 20
	DefaultRetryDelay     = 10 * time.Millisecond
	DefaultEntryTimeout   = 100 * time.Millisecond
	DefaultCommandTimeout = 100 * time.Millisecond
	DefaultSettleDelay    = 100 * time.Millisecond
	DefaultMinDelay       = time.Second / DefaultBaudRate
	entrySettleMultiplier = 10
	hardwareResetOpcode   = 0x0F
	subModeVersionOpcode  = 0x01
	consoleResetCommand   = "#\n"
)

// HandshakeConfig bounds the mode entry handshake
type HandshakeConfig struct {
	// MaxAttempts is the total number of tries for the bridge handshake and,
	// separately, for the sub-mode entry
	MaxAttempts int
	// RetryDelay is the pause between attempts
	RetryDelay time.Duration
}

// DefaultHandshakeConfig returns the default handshake budget
func DefaultHandshakeConfig() HandshakeConfig {
	return HandshakeConfig{
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
	}
}

// SessionConfig contains configuration options for a Session
type SessionConfig struct {
	// Logger receives protocol debug output; nil uses the package logger
	Logger    *slog.Logger
	Handshake HandshakeConfig
	// MinDelay is the device minimum delay; mode entry settles for ten of them
	MinDelay time.Duration
	// EntryTimeout bounds each handshake read
	EntryTimeout time.Duration
	// SettleDelay is the wait between writing a command and reading its response
	SettleDelay time.Duration
	// CommandTimeout bounds each command response read
	CommandTimeout time.Duration
	BaudRate       int
	// StrictAck requires acknowledgements to be 0x01 rather than any byte
	StrictAck bool
}

// DefaultSessionConfig returns default session configuration
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		Handshake:      DefaultHandshakeConfig(),
		MinDelay:       DefaultMinDelay,
		EntryTimeout:   DefaultEntryTimeout,
		SettleDelay:    DefaultSettleDelay,
		CommandTimeout: DefaultCommandTimeout,
		BaudRate:       DefaultBaudRate,
	}
}

// Session is the live binding between a Bus Pirate and its transport. It
// owns the current Mode; only Enter, Exit and Reset change it.
//
// Thread Safety: Session is NOT thread-safe. All methods must be called from
// a single goroutine or protected with external synchronization, and no
// command may run while a mode transition is in progress.
type Session struct {
	transport Transport
	config    *SessionConfig
	metrics   *Metrics
	sleep     func(ctx context.Context, d time.Duration) error
	mode      Mode
	closed    bool
}

// New creates a session on an already open transport. The device is assumed
// to be at its console unless WithInitialMode says otherwise.
func New(transport Transport, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	session := &Session{
		transport: transport,
		config:    DefaultSessionConfig(),
		metrics:   newMetrics(),
		sleep:     retry.Sleep,
		mode:      ModeConsole,
	}

	if br, ok := transport.(BaudRater); ok && br.BaudRate() > 0 {
		session.config.BaudRate = br.BaudRate()
	}

	for _, opt := range opts {
		if err := opt(session); err != nil {
			return nil, err
		}
	}

	return session, nil
}

// Mode returns the current protocol mode
func (s *Session) Mode() Mode {
	return s.mode
}

// BaudRate returns the line speed of the session
func (s *Session) BaudRate() int {
	return s.config.BaudRate
}

// Timeout returns the command response timeout
func (s *Session) Timeout() time.Duration {
	return s.config.CommandTimeout
}

// Config returns a copy of the session configuration
func (s *Session) Config() SessionConfig {
	return *s.config
}

// Metrics returns the session counters
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Transport returns the underlying transport
func (s *Session) Transport() Transport {
	return s.transport
}

// RawWire returns the raw-wire command set bound to this session. Its
// commands fail with ErrWrongMode unless the session is in ModeRawWire.
func (s *Session) RawWire() *RawWire {
	return &RawWire{session: s}
}

// UART returns the UART command set bound to this session. Its commands
// fail with ErrWrongMode unless the session is in ModeUART.
func (s *Session) UART() *UART {
	return &UART{session: s}
}

// Enter brings the device into the target mode. See EnterContext.
func (s *Session) Enter(target Mode) (int, error) {
	return s.EnterContext(context.Background(), target)
}

// EnterContext brings the device into the target mode and returns the number
// of entry attempts it took. Entering the current mode writes nothing and
// returns zero attempts. On failure the session mode is left unchanged.
func (s *Session) EnterContext(ctx context.Context, target Mode) (int, error) {
	if !target.Valid() || target == ModeConsole {
		return 0, fmt.Errorf("%w: cannot enter mode %s", ErrInvalidParameter, target)
	}
	if s.closed {
		return 0, ErrTransportClosed
	}
	if s.mode == target {
		return 0, nil
	}

	if s.mode != ModeBinaryBridge {
		attempts, err := s.enterBridge(ctx)
		if err != nil {
			return attempts, err
		}
		if target == ModeBinaryBridge {
			s.setMode(ModeBinaryBridge)
			return attempts, nil
		}
	}

	return s.enterSubMode(ctx, target)
}

// enterBridge writes the bridge entry byte until the device answers with the
// bridge tag. The console swallows the first zeros, so timeouts are expected.
func (s *Session) enterBridge(ctx context.Context) (int, error) {
	if err := s.flush(ctx, "enterBridge"); err != nil {
		return 0, err
	}

	expect := expectTag(bridgeTag)
	var sawBytes bool
	var lastErr error
	var needFlush bool

	config := retry.Config{
		MaxAttempts: s.config.Handshake.MaxAttempts,
		RetryDelay:  s.config.Handshake.RetryDelay,
		Sleep:       s.sleep,
		OnRetry: func() error {
			if !needFlush {
				return nil
			}
			return s.flush(ctx, "enterBridge")
		},
	}

	_, attempts, err := retry.WithRetry(ctx, config, func(attempt int) (struct{}, bool, error) {
		s.metrics.BridgeAttempts.Inc()
		resp, err := s.exchange(ctx, "enterBridge", []byte{bridgeEntryByte}, 0, s.config.EntryTimeout, expect)
		if err == nil {
			return struct{}{}, false, nil
		}
		if !IsRetryable(err) {
			return struct{}{}, false, err
		}

		needFlush = len(resp) > 0
		if needFlush {
			sawBytes = true
		}
		lastErr = err
		s.logDebug("bridge handshake attempt failed",
			slog.Int("attempt", attempt), slog.String("response", fmt.Sprintf("%q", resp)))
		return struct{}{}, true, nil
	})
	if err != nil {
		return attempts, s.entryFailure(ModeBinaryBridge, attempts, err, sawBytes, lastErr)
	}

	// Extra zeros sent while the device was switching produce extra tags
	if err := s.flush(ctx, "enterBridge"); err != nil {
		return attempts, err
	}

	s.logDebug("entered binary bridge", slog.Int("attempts", attempts))
	return attempts, nil
}

// enterSubMode writes the entry opcode for target from the bridge and checks
// the mode tag, flushing and retrying on a mismatch
func (s *Session) enterSubMode(ctx context.Context, target Mode) (int, error) {
	op := "enter " + target.String()
	expect := expectTag(target.Tag())
	settle := s.config.MinDelay * entrySettleMultiplier
	var sawBytes bool
	var lastMismatch, lastErr error

	config := retry.Config{
		MaxAttempts: s.config.Handshake.MaxAttempts,
		RetryDelay:  s.config.Handshake.RetryDelay,
		Sleep:       s.sleep,
		OnRetry: func() error {
			return s.flush(ctx, op)
		},
	}

	_, attempts, err := retry.WithRetry(ctx, config, func(attempt int) (struct{}, bool, error) {
		s.metrics.EntryAttempts.Inc()
		resp, err := s.exchange(ctx, op, []byte{target.EntryOpcode()}, settle, s.config.EntryTimeout, expect)
		if err == nil {
			return struct{}{}, false, nil
		}
		if !IsRetryable(err) {
			return struct{}{}, false, err
		}

		if len(resp) > 0 {
			sawBytes = true
			lastMismatch = err
		}
		lastErr = err
		s.logDebug("mode entry attempt failed",
			slog.String("mode", target.String()),
			slog.Int("attempt", attempt),
			slog.String("response", fmt.Sprintf("%q", resp)))
		return struct{}{}, true, nil
	})
	if err != nil {
		if sawBytes {
			lastErr = lastMismatch
		}
		return attempts, s.entryFailure(target, attempts, err, sawBytes, lastErr)
	}

	s.setMode(target)
	s.logDebug("entered mode", slog.String("mode", target.String()), slog.Int("attempts", attempts))
	return attempts, nil
}

// entryFailure turns an exhausted retry loop into a ModeEntryError; other
// errors (transport failures, cancellation) pass through unchanged
func (*Session) entryFailure(mode Mode, attempts int, err error, sawBytes bool, lastErr error) error {
	if !errors.Is(err, retry.ErrRetriesExhausted) {
		return err
	}

	cause := lastErr
	if cause == nil {
		cause = ErrResponseTimeout
	}
	if sawBytes && !errors.Is(cause, ErrProtocolMismatch) {
		cause = ErrProtocolMismatch
	}

	return &ModeEntryError{Mode: mode, Attempts: attempts, Cause: cause}
}

// Exit leaves a sub-mode and returns to the binary bridge. See ExitContext.
func (s *Session) Exit() error {
	return s.ExitContext(context.Background())
}

// ExitContext leaves a sub-mode and returns to the binary bridge. It is a
// no-op in the bridge and fails with ErrWrongMode from the console.
func (s *Session) ExitContext(ctx context.Context) error {
	switch {
	case s.closed:
		return ErrTransportClosed
	case s.mode == ModeBinaryBridge:
		return nil
	case s.mode == ModeConsole:
		return fmt.Errorf("%w: cannot exit from %s", ErrWrongMode, s.mode)
	}

	_, err := s.exchange(ctx, "exit "+s.mode.String(), []byte{bridgeEntryByte},
		s.config.MinDelay*entrySettleMultiplier, s.config.EntryTimeout, expectTag(bridgeTag))
	if err != nil {
		return err
	}

	s.setMode(ModeBinaryBridge)
	return nil
}

// Reset returns the device to its console. See ResetContext.
func (s *Session) Reset() error {
	return s.ResetContext(context.Background())
}

// ResetContext issues a hardware reset and sets the mode to console whatever
// the outcome. The device is not re-verified afterwards; only transport
// failures are reported.
func (s *Session) ResetContext(ctx context.Context) error {
	if s.closed {
		return ErrTransportClosed
	}

	prior := s.mode
	defer s.setMode(ModeConsole)

	switch {
	case prior == ModeConsole:
		return s.write(ctx, "reset", []byte(consoleResetCommand))
	case prior.IsSubMode():
		// Sub-modes give 0x0F other meanings; step back to the bridge first
		if err := s.bestEffort(ctx, "reset", bridgeEntryByte, len(bridgeTag)); err != nil {
			return err
		}
	}

	if err := s.bestEffort(ctx, "reset", hardwareResetOpcode, 1); err != nil {
		return err
	}

	return s.flush(ctx, "reset")
}

// bestEffort writes one byte and reads up to n response bytes, ignoring
// anything but transport failures
func (s *Session) bestEffort(ctx context.Context, op string, b byte, n int) error {
	_, err := s.exchange(ctx, op, []byte{b}, s.config.MinDelay*entrySettleMultiplier,
		s.config.CommandTimeout, ExpectedResponse{Length: n, Raw: true})
	if err != nil && !IsRetryable(err) {
		return err
	}
	return nil
}

// Version asks the device for the tag of the current binary mode. See VersionContext.
func (s *Session) Version() (string, error) {
	return s.VersionContext(context.Background())
}

// VersionContext asks the device for the tag of the current binary mode,
// e.g. "BBIO1" in the bridge or "RAW1" in raw-wire mode.
func (s *Session) VersionContext(ctx context.Context) (string, error) {
	if s.closed {
		return "", ErrTransportClosed
	}

	var opcode byte
	switch {
	case s.mode == ModeBinaryBridge:
		opcode = bridgeEntryByte
	case s.mode.IsSubMode():
		opcode = subModeVersionOpcode
	default:
		return "", fmt.Errorf("%w: no version query in %s", ErrWrongMode, s.mode)
	}

	tag := s.mode.Tag()
	resp, err := s.exchange(ctx, "version", []byte{opcode}, s.config.SettleDelay, s.config.EntryTimeout, expectTag(tag))
	if err != nil {
		return "", err
	}
	return string(resp), nil
}

// Flush discards any bytes received but not yet read
func (s *Session) Flush() error {
	return s.flush(context.Background(), "flush")
}

// Close closes the underlying transport. The session is unusable afterwards.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// command issues a primitive that belongs to mode and validates its response
func (s *Session) command(
	ctx context.Context, mode Mode, op string, data []byte, expect ExpectedResponse,
) ([]byte, error) {
	if err := s.requireMode(op, mode); err != nil {
		return nil, err
	}
	s.metrics.CommandsSent.Inc()
	return s.exchange(ctx, op, data, s.config.SettleDelay, s.config.CommandTimeout, expect)
}

func (s *Session) requireMode(op string, mode Mode) error {
	if s.closed {
		return ErrTransportClosed
	}
	if s.mode != mode {
		return fmt.Errorf("%w: %s requires %s, session is in %s", ErrWrongMode, op, mode, s.mode)
	}
	return nil
}

// exchange writes data, waits settle, reads the expected number of bytes and
// validates them. The raw response is returned even when validation fails.
func (s *Session) exchange(
	ctx context.Context, op string, data []byte, settle, timeout time.Duration, expect ExpectedResponse,
) ([]byte, error) {
	if err := s.write(ctx, op, data); err != nil {
		return nil, err
	}

	if err := s.sleep(ctx, settle); err != nil {
		return nil, err
	}

	return s.readExpected(ctx, op, timeout, expect)
}

// readExpected reads and validates a response without writing anything first
func (s *Session) readExpected(
	ctx context.Context, op string, timeout time.Duration, expect ExpectedResponse,
) ([]byte, error) {
	resp, err := s.read(ctx, op, expect.Length, timeout)
	if err != nil {
		return nil, err
	}

	if err := expect.Validate(resp); err != nil {
		return resp, s.classify(op, resp, err)
	}

	s.logDebug("response", slog.String("op", op), slog.String("data", fmt.Sprintf("% X", resp)))
	return resp, nil
}

func (s *Session) classify(op string, resp []byte, err error) error {
	port := portName(s.transport)
	if errors.Is(err, ErrResponseTimeout) {
		s.metrics.Timeouts.Inc()
		return NewTimeoutError(op, port)
	}

	s.metrics.Mismatches.Inc()
	s.logDebug("unexpected response", slog.String("op", op), slog.String("data", fmt.Sprintf("% X", resp)))
	return NewProtocolMismatchError(op, port, err)
}

func (s *Session) write(ctx context.Context, op string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logDebug("write", slog.String("op", op), slog.String("data", fmt.Sprintf("% X", data)))
	if err := s.transport.Write(data); err != nil {
		return wrapIOError(op, portName(s.transport), err)
	}
	s.metrics.BytesWritten.Add(int64(len(data)))
	return nil
}

func (s *Session) read(ctx context.Context, op string, n int, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.transport.Read(n, timeout)
	if err != nil {
		return nil, wrapIOError(op, portName(s.transport), err)
	}
	return resp, nil
}

func (s *Session) flush(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.metrics.Flushes.Inc()
	if err := s.transport.Flush(); err != nil {
		return wrapIOError(op, portName(s.transport), err)
	}
	return nil
}

func (s *Session) setMode(mode Mode) {
	if s.mode != mode {
		s.logDebug("mode change", slog.String("from", s.mode.String()), slog.String("to", mode.String()))
	}
	s.mode = mode
}

func (s *Session) logDebug(msg string, attrs ...slog.Attr) {
	logger := s.config.Logger
	if logger == nil {
		if !debugEnabled.Load() {
			return
		}
		logger = Logger()
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}
