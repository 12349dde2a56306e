// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package plog provides the minimal logging seam used throughout
// pocket-go: every package takes a Logger, never a concrete logging
// library, so callers can wire in whatever they already use.
package plog

import (
	"log"
	"os"
)

// Logger is the interface every pocket-go package accepts for
// diagnostics. It is deliberately the same shape as dcache.Logger in
// the package this module is descended from, so that the common case
// (wrap the stdlib logger) needs no adapter boilerplate.
type Logger interface {
	Printf(f string, args ...interface{})
}

// Std adapts *log.Logger to Logger. Its Logger field must be set; the
// zero value has a nil *log.Logger and cannot be used.
type Std struct {
	*log.Logger
}

// Standard returns a Logger writing to stderr with the standard
// flags, the same settings log.Default() uses.
func Standard() Logger {
	return Std{Logger: log.New(os.Stderr, "", log.LstdFlags)}
}

type discard struct{}

func (discard) Printf(string, ...interface{}) {}

// Discard is a Logger that drops every message. Tests that don't care
// about diagnostics should use this instead of passing nil, since a
// nil Logger forces every call site to guard with a nil check.
var Discard Logger = discard{}

// Event is a leveled helper: each method prefixes the message with its
// level (debug, info, warn, error) before passing it to the Logger.
type Event struct {
	l Logger
}

// For wraps l (or Discard if l is nil) for leveled use.
func For(l Logger) Event {
	if l == nil {
		l = Discard
	}
	return Event{l: l}
}

func (e Event) Debugf(f string, args ...interface{}) { e.l.Printf("debug: "+f, args...) }
func (e Event) Infof(f string, args ...interface{})  { e.l.Printf("info: "+f, args...) }
func (e Event) Warnf(f string, args ...interface{})  { e.l.Printf("warn: "+f, args...) }
func (e Event) Errorf(f string, args ...interface{}) { e.l.Printf("error: "+f, args...) }
