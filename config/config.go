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

// Package config holds the process-wide (or, for tests, isolated)
// configuration record described in spec.md §4.9: base cache
// directory, storage mode, memory-cache policy options, and the
// filename length limit. Resolution on every read walks a fixed
// precedence chain; nothing here caches a resolved Record, so a
// setter or an env var change is visible on the very next read.
package config

import (
	"time"

	"github.com/scicloj/pocket-go/internal/perr"
)

// Storage selects which tiers the engine consults. It mirrors
// engine.Mode but is spelled out as the user-facing string the spec's
// env var and setters use.
type Storage string

const (
	StorageMem     Storage = "mem"
	StorageDisk    Storage = "disk"
	StorageMemDisk Storage = "mem+disk"
	StorageNone    Storage = "none"
)

func (s Storage) valid() bool {
	switch s {
	case StorageMem, StorageDisk, StorageMemDisk, StorageNone:
		return true
	}
	return false
}

// MemCacheOptions configures the memory tier's eviction policy.
type MemCacheOptions struct {
	Policy    string // "lru", "fifo", or "ttl"
	Threshold int
	TTL       time.Duration
}

func (o MemCacheOptions) validate() error {
	switch o.Policy {
	case "lru", "fifo", "ttl":
	default:
		return &perr.ConfigError{Field: "mem-cache-options.policy", Reason: "must be one of lru, fifo, ttl"}
	}
	if o.Policy != "ttl" && o.Threshold <= 0 {
		return &perr.ConfigError{Field: "mem-cache-options.threshold", Reason: "must be positive"}
	}
	if o.Policy == "ttl" && o.TTL <= 0 {
		return &perr.ConfigError{Field: "mem-cache-options.ttl", Reason: "must be positive"}
	}
	return nil
}

// Record is a fully resolved configuration snapshot.
type Record struct {
	BaseCacheDir        string
	Storage             Storage
	MemCacheOptions     MemCacheOptions
	FilenameLengthLimit int
}

// overrides holds whatever has been explicitly set on a Context.
// Every field is a pointer so nil unambiguously means "fall through
// to the next precedence level", per spec.md's setter contract.
type overrides struct {
	baseCacheDir        *string
	storage             *Storage
	memCacheOptions     *MemCacheOptions
	filenameLengthLimit *int
}

// Context is an isolated configuration instance. Production code uses
// the package-level default Context via the package functions below;
// tests construct their own with New so they never observe or mutate
// global state.
type Context struct {
	state    atomicOverrides
	defaults Record
}

// New returns a Context seeded from the compiled-in defaults resource,
// with no setter overrides yet applied.
func New() *Context {
	c := &Context{defaults: loadDefaults()}
	c.state.store(&overrides{})
	return c
}

// Current resolves the full precedence chain: setter-mutated state >
// POCKET_* environment variables > defaults resource > hard-coded
// fallback (already folded into defaults by loadDefaults).
func (c *Context) Current() Record {
	ov := c.state.load()
	env := loadEnv()

	rec := c.defaults
	if env.BaseCacheDir != nil {
		rec.BaseCacheDir = *env.BaseCacheDir
	}
	if env.Storage != nil {
		rec.Storage = *env.Storage
	}
	if env.MemCacheOptions.Policy != nil {
		rec.MemCacheOptions.Policy = *env.MemCacheOptions.Policy
	}
	if env.MemCacheOptions.Threshold != nil {
		rec.MemCacheOptions.Threshold = *env.MemCacheOptions.Threshold
	}
	if env.MemCacheOptions.TTL != nil {
		rec.MemCacheOptions.TTL = *env.MemCacheOptions.TTL
	}
	if env.FilenameLengthLimit != nil {
		rec.FilenameLengthLimit = *env.FilenameLengthLimit
	}

	if ov.baseCacheDir != nil {
		rec.BaseCacheDir = *ov.baseCacheDir
	}
	if ov.storage != nil {
		rec.Storage = *ov.storage
	}
	if ov.memCacheOptions != nil {
		rec.MemCacheOptions = *ov.memCacheOptions
	}
	if ov.filenameLengthLimit != nil {
		rec.FilenameLengthLimit = *ov.filenameLengthLimit
	}
	return rec
}

// SetBaseCacheDir overrides the base cache directory. Passing nil
// clears the override, falling through to the environment variable
// or defaults resource. Per spec.md, this never invalidates existing
// handles; they pick up the new directory on their next force.
func (c *Context) SetBaseCacheDir(dir *string) {
	c.mutate(func(ov *overrides) { ov.baseCacheDir = dir })
}

// SetStorage overrides the storage mode.
func (c *Context) SetStorage(s *Storage) error {
	if s != nil && !s.valid() {
		return &perr.ConfigError{Field: "storage", Reason: "must be one of mem, disk, mem+disk, none"}
	}
	c.mutate(func(ov *overrides) { ov.storage = s })
	return nil
}

// SetMemCacheOptions overrides the memory-tier eviction policy.
func (c *Context) SetMemCacheOptions(opt *MemCacheOptions) error {
	if opt != nil {
		if err := opt.validate(); err != nil {
			return err
		}
	}
	c.mutate(func(ov *overrides) { ov.memCacheOptions = opt })
	return nil
}

// ResetMemCacheOptions clears any setter-level override, falling
// through to the environment variable or defaults resource.
func (c *Context) ResetMemCacheOptions() {
	c.mutate(func(ov *overrides) { ov.memCacheOptions = nil })
}

// SetFilenameLengthLimit overrides the path segment length cap.
func (c *Context) SetFilenameLengthLimit(n *int) error {
	if n != nil && *n <= 0 {
		return &perr.ConfigError{Field: "filename-length-limit", Reason: "must be positive"}
	}
	c.mutate(func(ov *overrides) { ov.filenameLengthLimit = n })
	return nil
}

// mutate applies fn to a copy of the current overrides and swaps it
// in atomically, so concurrent readers never observe a partially
// updated set of overrides.
func (c *Context) mutate(fn func(*overrides)) {
	cur := c.state.load()
	next := *cur
	fn(&next)
	c.state.store(&next)
}

var defaultContext = New()

// Default returns the process-wide Context used by the root pocket
// package unless a caller supplies its own.
func Default() *Context { return defaultContext }

// Current resolves the process-wide Context's configuration.
func Current() Record { return defaultContext.Current() }
