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

import (
	"fmt"
	"testing"
	"time"
)

func TestGetMissOnEmptyStore(t *testing.T) {
	s := New(DefaultOptions)
	if _, ok := s.Get("nope"); ok {
		t.Fatal("expected miss on empty store")
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	s := New(DefaultOptions)
	s.Put("k1", 42)
	v, ok := s.Get("k1")
	if !ok || v.(int) != 42 {
		t.Fatalf("got (%v, %v), want (42, true)", v, ok)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	s := New(DefaultOptions)
	s.Put("k1", "v")
	s.Delete("k1")
	if _, ok := s.Get("k1"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestClearEmptiesStore(t *testing.T) {
	s := New(DefaultOptions)
	for i := 0; i < 50; i++ {
		s.Put(fmt.Sprintf("k%d", i), i)
	}
	s.Clear()
	if n := s.Len(); n != 0 {
		t.Fatalf("expected empty store after Clear, got %d entries", n)
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	// eviction order is tracked by one shared Policy regardless of how
	// many shards the values are split across, so a Threshold smaller
	// than numShards must still bound the Store's aggregate size.
	const threshold = 2
	s := New(Options{Kind: LRU, Threshold: threshold})
	for i := 0; i < numShards*10; i++ {
		s.Put(fmt.Sprintf("k%d", i), i)
		if n := s.Len(); n > threshold {
			t.Fatalf("store exceeded its capacity bound after %d puts: %d entries, want <= %d", i+1, n, threshold)
		}
	}

	if _, ok := s.Get("k0"); ok {
		t.Fatal("expected k0 to have been evicted long ago")
	}
	last := fmt.Sprintf("k%d", numShards*10-1)
	if _, ok := s.Get(last); !ok {
		t.Fatalf("expected most recently put key %q to still be present", last)
	}
}

func TestLRUTouchOnGetProtectsHotKey(t *testing.T) {
	p := newOrderedPolicy(2, true)
	p.OnPut("a")
	p.OnPut("b")
	p.OnGet("a") // a is now more recently used than b
	evicted := p.OnPut("c")
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("expected b to be evicted, got %v", evicted)
	}
}

func TestFIFOIgnoresAccessOrder(t *testing.T) {
	p := newOrderedPolicy(2, false)
	p.OnPut("a")
	p.OnPut("b")
	p.OnGet("a") // FIFO: a's access doesn't protect it
	evicted := p.OnPut("c")
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("expected a to be evicted (insertion order), got %v", evicted)
	}
}

func TestTTLExpiresLazilyOnGet(t *testing.T) {
	p := newTTLPolicy(10 * time.Millisecond)
	fakeNow := time.Now()
	p.now = func() time.Time { return fakeNow }

	p.OnPut("k")
	if p.OnGet("k") {
		t.Fatal("entry should not be expired immediately")
	}
	fakeNow = fakeNow.Add(20 * time.Millisecond)
	if !p.OnGet("k") {
		t.Fatal("entry should be expired after ttl elapses")
	}
	// the entry's bookkeeping should be gone now, so a second lookup
	// reports "never written" rather than "expired".
	if p.OnGet("k") {
		t.Fatal("expired entry should not re-report as expired after removal")
	}
}

func TestTTLStoreReportsMissAfterExpiry(t *testing.T) {
	s := New(Options{Kind: TTL, TTL: time.Millisecond})
	s.Put("k", "v")
	time.Sleep(5 * time.Millisecond)
	if _, ok := s.Get("k"); ok {
		t.Fatal("expected miss on store after ttl elapses")
	}
}
