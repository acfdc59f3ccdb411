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
	"io"
	"log/slog"
	"sync/atomic"
)

var (
	debugEnabled atomic.Bool
	pkgLogger    atomic.Pointer[slog.Logger]
)

func init() {
	pkgLogger.Store(discardLogger())
}

// SetDebugEnabled turns debug logging of protocol traffic on or off for
// sessions that were not given their own logger
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// SetLogger sets the package logger used for debug output. A nil logger
// restores the default, which discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = discardLogger()
	}
	pkgLogger.Store(l)
}

// Logger returns the package logger
func Logger() *slog.Logger {
	return pkgLogger.Load()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
