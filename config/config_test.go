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

package config

import (
	"testing"
	"time"
)

func TestCurrentFallsBackToDefaultsResource(t *testing.T) {
	c := New()
	rec := c.Current()
	if rec.BaseCacheDir == "" {
		t.Fatal("expected non-empty default base cache dir")
	}
	if rec.Storage != StorageMemDisk {
		t.Fatalf("expected default storage mem+disk, got %s", rec.Storage)
	}
	if rec.FilenameLengthLimit != 120 {
		t.Fatalf("expected default filename length limit 120, got %d", rec.FilenameLengthLimit)
	}
}

func TestSetterOverridesDefault(t *testing.T) {
	c := New()
	dir := "/tmp/custom-cache"
	c.SetBaseCacheDir(&dir)
	if got := c.Current().BaseCacheDir; got != dir {
		t.Fatalf("got %q, want %q", got, dir)
	}
}

func TestSetterNilFallsThrough(t *testing.T) {
	c := New()
	dir := "/tmp/custom-cache"
	c.SetBaseCacheDir(&dir)
	c.SetBaseCacheDir(nil)
	if got := c.Current().BaseCacheDir; got != c.defaults.BaseCacheDir {
		t.Fatalf("got %q, want default %q", got, c.defaults.BaseCacheDir)
	}
}

func TestSetStorageRejectsInvalidMode(t *testing.T) {
	c := New()
	bogus := Storage("bogus")
	if err := c.SetStorage(&bogus); err == nil {
		t.Fatal("expected error for invalid storage mode")
	}
}

func TestSetMemCacheOptionsValidatesThreshold(t *testing.T) {
	c := New()
	opt := &MemCacheOptions{Policy: "lru", Threshold: 0}
	if err := c.SetMemCacheOptions(opt); err == nil {
		t.Fatal("expected error for non-positive threshold")
	}
	opt = &MemCacheOptions{Policy: "ttl", TTL: -1}
	if err := c.SetMemCacheOptions(opt); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestResetMemCacheOptionsFallsThrough(t *testing.T) {
	c := New()
	c.SetMemCacheOptions(&MemCacheOptions{Policy: "fifo", Threshold: 5})
	c.ResetMemCacheOptions()
	if got := c.Current().MemCacheOptions.Policy; got != c.defaults.MemCacheOptions.Policy {
		t.Fatalf("got %q, want default %q", got, c.defaults.MemCacheOptions.Policy)
	}
}

func TestEnvOverridesDefaultsButNotSetter(t *testing.T) {
	t.Setenv("POCKET_BASE_CACHE_DIR", "/env/cache")
	c := New()
	if got := c.Current().BaseCacheDir; got != "/env/cache" {
		t.Fatalf("got %q, want env value", got)
	}
	dir := "/setter/cache"
	c.SetBaseCacheDir(&dir)
	if got := c.Current().BaseCacheDir; got != dir {
		t.Fatalf("setter should win over env, got %q", got)
	}
}

func TestEnvMemTTLParsesDuration(t *testing.T) {
	t.Setenv("POCKET_MEM_TTL", "5m")
	c := New()
	if got := c.Current().MemCacheOptions.TTL; got != 5*time.Minute {
		t.Fatalf("got %s, want 5m", got)
	}
}

func TestDefaultContextIsProcessWide(t *testing.T) {
	dir := "/process-wide"
	Default().SetBaseCacheDir(&dir)
	defer Default().SetBaseCacheDir(nil)
	if got := Current().BaseCacheDir; got != dir {
		t.Fatalf("got %q, want %q", got, dir)
	}
}
