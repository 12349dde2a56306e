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

// Package memstore is the volatile half of pocket-go's two-tier cache:
// a fingerprint-keyed map of already-decoded values, bounded by a
// pluggable Policy (LRU, FIFO, or TTL). Entries never survive process
// restart; that's diskstore's job.
//
// Values are split into shards the way tenant storage is split across
// worker nodes (splitter.go), hashing each key with siphash so reads
// and writes to unrelated keys never contend on the same mutex.
// Eviction order, though, is tracked by a single Policy shared across
// every shard and guarded by its own mutex: a per-shard policy would
// only ever see a fraction of the traffic for a given capacity, so a
// configured Threshold would bound each shard instead of the Store as
// a whole. Sharding therefore buys lock-contention relief on the
// common Get/Put path without weakening the aggregate bound.
package memstore

import (
	"sync"

	"github.com/dchest/siphash"
)

const numShards = 16

// fixed siphash keys: memstore only needs a stable, well-distributed
// hash for shard placement, not a secret one.
const shardK0, shardK1 = 0x706f636b65742d67, 0x6f2d6d656d73746f

type shard struct {
	mu     sync.Mutex
	values map[string]any
}

// Store is a sharded, bounded, in-memory map of fingerprint to
// decoded value.
type Store struct {
	shards [numShards]*shard

	policyMu sync.Mutex
	policy   Policy

	opt Options
}

// New builds a Store governed by opt. A zero Options is not valid;
// callers should start from DefaultOptions.
func New(opt Options) *Store {
	s := &Store{opt: opt, policy: newPolicy(opt)}
	for i := range s.shards {
		s.shards[i] = &shard{values: make(map[string]any)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := siphash.Hash(shardK0, shardK1, []byte(key))
	return s.shards[h%uint64(numShards)]
}

// Get returns the value stored under key, if present and not expired.
func (s *Store) Get(key string) (any, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	v, ok := sh.values[key]
	sh.mu.Unlock()
	if !ok {
		return nil, false
	}

	s.policyMu.Lock()
	expired := s.policy.OnGet(key)
	s.policyMu.Unlock()
	if expired {
		sh.mu.Lock()
		delete(sh.values, key)
		sh.mu.Unlock()
		return nil, false
	}
	return v, true
}

// Put stores value under key, evicting whatever the Policy decides no
// longer fits the configured Threshold across the whole Store.
func (s *Store) Put(key string, value any) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.values[key] = value
	sh.mu.Unlock()

	s.policyMu.Lock()
	evict := s.policy.OnPut(key)
	s.policyMu.Unlock()
	for _, e := range evict {
		esh := s.shardFor(e)
		esh.mu.Lock()
		delete(esh.values, e)
		esh.mu.Unlock()
	}
}

// Delete removes key, if present.
func (s *Store) Delete(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	_, ok := sh.values[key]
	if ok {
		delete(sh.values, key)
	}
	sh.mu.Unlock()
	if ok {
		s.policyMu.Lock()
		s.policy.OnRemove(key)
		s.policyMu.Unlock()
	}
}

// Clear replaces every shard's values and the shared Policy with a
// fresh one. Per spec.md, changing policy or capacity happens by
// building a new Store rather than mutating this one in place; Clear
// only empties the existing Store.
func (s *Store) Clear() {
	s.policyMu.Lock()
	s.policy = newPolicy(s.opt)
	s.policyMu.Unlock()

	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.values = make(map[string]any)
		sh.mu.Unlock()
	}
}

// Len reports the number of entries currently held, summed across
// shards. It's a point-in-time estimate under concurrent mutation.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.values)
		sh.mu.Unlock()
	}
	return total
}
