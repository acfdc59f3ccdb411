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

// Package retry provides the bounded retry loop used by the mode handshakes
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetriesExhausted is returned when every attempt asked to be retried
var ErrRetriesExhausted = errors.New("retries exhausted")

// Operation represents a function that can be retried
// Returns: data, shouldRetry, error
// - data: the result if successful
// - shouldRetry: true if the operation should be retried
// - error: any permanent error that should stop retries
type Operation[T any] func(attempt int) (T, bool, error)

// Config configures retry behavior
type Config struct {
	// OnRetry runs between a failed attempt and the next one
	OnRetry func() error
	// Sleep waits between attempts; defaults to a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	RetryDelay  time.Duration
}

// WithRetry executes an operation until it stops asking for a retry, returns
// an error, or MaxAttempts is reached. It returns the result and the number
// of attempts made.
func WithRetry[T any](ctx context.Context, config Config, operation Operation[T]) (T, int, error) {
	var zero T

	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}

		result, shouldRetry, err := operation(attempt)
		if err != nil {
			return zero, attempt, err
		}

		if !shouldRetry {
			return result, attempt, nil
		}

		// No callback or delay after the final attempt
		if attempt == maxAttempts {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(); err != nil {
				return zero, attempt, err
			}
		}

		if config.RetryDelay > 0 {
			if err := sleep(ctx, config, config.RetryDelay); err != nil {
				return zero, attempt, err
			}
		}
	}

	return zero, maxAttempts, ErrRetriesExhausted
}

func sleep(ctx context.Context, config Config, d time.Duration) error {
	if config.Sleep != nil {
		return config.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
