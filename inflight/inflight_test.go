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

package inflight

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoRunsComputeOnce(t *testing.T) {
	r := New()
	var calls int32
	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return 7, nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]int, n)
	shares := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err, shared := r.Do("key", compute)
			if err != nil {
				t.Error(err)
			}
			results[i] = v.(int)
			shares[i] = shared
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("compute ran %d times, want 1", got)
	}
	for i, v := range results {
		if v != 7 {
			t.Errorf("result[%d] = %d, want 7", i, v)
		}
	}
	sharedCount := 0
	for _, s := range shares {
		if s {
			sharedCount++
		}
	}
	if sharedCount != n-1 {
		t.Fatalf("expected %d waiters to report shared=true, got %d", n-1, sharedCount)
	}
}

func TestDoPropagatesError(t *testing.T) {
	r := New()
	wantErr := errors.New("boom")
	compute := func() (any, error) { return nil, wantErr }

	_, err, shared := r.Do("key", compute)
	if err != wantErr {
		t.Fatalf("got err %v, want %v", err, wantErr)
	}
	if shared {
		t.Fatal("first caller should not report shared")
	}
}

func TestDoClearsEntryAfterCompletion(t *testing.T) {
	r := New()
	r.Do("key", func() (any, error) { return 1, nil })
	if r.InFlight("key") {
		t.Fatal("expected no in-flight entry after Do returns")
	}
	if n := r.Len(); n != 0 {
		t.Fatalf("expected empty registry, got %d in-flight", n)
	}
}

func TestDistinctKeysRunConcurrently(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	var calls int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		key := string(rune('a' + i))
		go func(key string) {
			defer wg.Done()
			r.Do(key, func() (any, error) {
				atomic.AddInt32(&calls, 1)
				return key, nil
			})
		}(key)
	}
	wg.Wait()
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Fatalf("expected 5 independent computations, got %d", got)
	}
}
