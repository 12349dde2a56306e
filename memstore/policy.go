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

package memstore

import "time"

// Policy decides, at insertion and lookup time only, which keys a
// Store should evict. Per spec.md §4.5 the memory store never evicts
// in a background goroutine, so there is no Policy method that runs
// on a timer; everything here is driven by the Store calling in on
// Put/Get/Remove.
//
// A Policy is only ever called with its Store's single policy mutex
// held, so implementations don't need their own synchronisation.
type Policy interface {
	// OnPut records that key was just written and returns the keys
	// that must now be evicted to respect the policy's bound (for
	// LRU/FIFO, zero or one key; for TTL, always none — TTL expiry is
	// lazy and happens in OnGet).
	OnPut(key string) []string
	// OnGet records an access to key and reports whether the entry
	// should be treated as already expired (and therefore removed and
	// reported as a miss). Only TTL ever returns true here.
	OnGet(key string) bool
	// OnRemove notifies the policy that key was removed outside of
	// eviction (explicit Delete).
	OnRemove(key string)
}

// Kind selects which Policy a Store uses.
type Kind int

const (
	LRU Kind = iota
	FIFO
	TTL
)

// Options configures a Store's eviction policy.
type Options struct {
	Kind      Kind
	Threshold int           // capacity, for LRU/FIFO
	TTL       time.Duration // max age, for TTL
}

// DefaultOptions mirrors the hard-coded defaults a fresh pocket-go
// process starts with before any configuration is read.
var DefaultOptions = Options{Kind: LRU, Threshold: 10_000}

func newPolicy(opt Options) Policy {
	switch opt.Kind {
	case FIFO:
		return newOrderedPolicy(opt.Threshold, false)
	case TTL:
		return newTTLPolicy(opt.TTL)
	default:
		return newOrderedPolicy(opt.Threshold, true)
	}
}
