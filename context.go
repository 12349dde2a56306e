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

// Package pocket is a memoization layer for expensive, deterministic
// computations: wrap a named function and its arguments into a
// Cached handle, then Deref it to compute once and serve every later
// force — same process or a later one — from a content-addressed
// cache entry.
package pocket

import (
	"sync/atomic"

	"github.com/scicloj/pocket-go/codec"
	"github.com/scicloj/pocket-go/config"
	"github.com/scicloj/pocket-go/diskstore"
	"github.com/scicloj/pocket-go/engine"
	"github.com/scicloj/pocket-go/internal/plog"
	"github.com/scicloj/pocket-go/memstore"
)

// Context bundles a Config with the engine it drives. Most programs
// use the process-wide Default(); tests and multi-tenant callers can
// build their own with New so cache state never leaks between them.
//
// Stats mirror dcache.Cache's hit/miss/failure counters, tracked
// atomically since any number of goroutines may force handles
// concurrently.
type Context struct {
	Config *config.Context
	Engine *engine.Engine
	Logger plog.Logger

	memHits, diskHits, computes, failures int64

	memOpt memstore.Options
}

// New builds a Context backed by cfg (or config.New() if nil) and l
// (or plog.Discard if nil), with its memory tier sized from cfg's
// current mem-cache options.
func New(cfg *config.Context, l plog.Logger) *Context {
	if cfg == nil {
		cfg = config.New()
	}
	if l == nil {
		l = plog.Discard
	}
	c := &Context{Config: cfg, Logger: l}
	c.memOpt = memOptionsFrom(cfg.Current())
	c.Engine = engine.New(diskstore.New(l), memstore.New(c.memOpt), codec.Binary{}, l)
	return c
}

func memOptionsFrom(rec config.Record) memstore.Options {
	opt := memstore.Options{Threshold: rec.MemCacheOptions.Threshold, TTL: rec.MemCacheOptions.TTL}
	switch rec.MemCacheOptions.Policy {
	case "fifo":
		opt.Kind = memstore.FIFO
	case "ttl":
		opt.Kind = memstore.TTL
	default:
		opt.Kind = memstore.LRU
	}
	return opt
}

// RefreshMemStore rebuilds the memory tier from the Context's current
// configuration. Per spec.md, changing mem-cache-options doesn't
// promise existing memory entries survive (the memory tier is
// volatile by definition); disk entries are untouched.
func (c *Context) RefreshMemStore() {
	c.memOpt = memOptionsFrom(c.Config.Current())
	c.Engine.Mem = memstore.New(c.memOpt)
}

func modeFor(s config.Storage) engine.Mode {
	switch s {
	case config.StorageMem:
		return engine.ModeMem
	case config.StorageDisk:
		return engine.ModeDisk
	case config.StorageNone:
		return engine.ModeNone
	default:
		return engine.ModeMemDisk
	}
}

func (c *Context) recordOutcome(o engine.Outcome) {
	switch o {
	case engine.MemHit:
		atomic.AddInt64(&c.memHits, 1)
	case engine.DiskHit:
		atomic.AddInt64(&c.diskHits, 1)
	case engine.Computed:
		atomic.AddInt64(&c.computes, 1)
	case engine.Failed:
		atomic.AddInt64(&c.failures, 1)
	}
}

var defaultContext = New(config.Default(), plog.Discard)

// Default returns the process-wide Context used by the package-level
// convenience functions (Wrap, Deref, Invalidate, ...).
func Default() *Context { return defaultContext }
