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

package pocket

import (
	"fmt"
	"sync/atomic"

	"github.com/scicloj/pocket-go/diskstore"
	"github.com/scicloj/pocket-go/identity"
	"github.com/scicloj/pocket-go/keying"
)

// Invalidate removes both the memory and disk entries for the exact
// fingerprint fn(args...) would derive. It package-level-delegates to
// Default(); see Context.Invalidate for the scoped form.
func Invalidate(fn any, args ...any) error { return Default().Invalidate(fn, args...) }

// Invalidate is the Context-scoped form of the package-level
// Invalidate.
func (c *Context) Invalidate(fn any, args ...any) error {
	h, err := c.Wrap(fn, args...)
	if err != nil {
		return err
	}
	path := h.path
	path.Base = c.Config.Current().BaseCacheDir
	return c.Engine.Invalidate(path, h.fp)
}

// InvalidateAll removes every disk entry whose metadata function name
// equals fn's qualified name, and clears any mem-store entries for
// fingerprints that currently resolve under that function segment.
func InvalidateAll(fn any) error { return Default().InvalidateAll(fn) }

func (c *Context) InvalidateAll(fn any) error {
	fnID, err := identity.Of(fn)
	if err != nil {
		return err
	}
	fnName := fnID.(fmt.Stringer).String()
	base := c.Config.Current().BaseCacheDir

	metas, err := c.Engine.Disk.Enumerate(base, keying.Sanitize(fnName, c.Config.Current().FilenameLengthLimit))
	if err != nil {
		return err
	}
	for _, m := range metas {
		if m.FnName != fnName {
			continue
		}
		p := keying.Path{Base: base, FnSegment: keying.Sanitize(fnName, c.Config.Current().FilenameLengthLimit), Prefix: m.Fingerprint[:16]}
		if err := c.Engine.Disk.Delete(p); err != nil {
			return err
		}
		c.Engine.Mem.Delete(m.Fingerprint)
	}
	return nil
}

// ClearMemCache empties the memory store only.
func ClearMemCache() { Default().ClearMemCache() }

func (c *Context) ClearMemCache() { c.Engine.ClearMem() }

// Cleanup removes the entire cache directory and empties memory.
func Cleanup() error { return Default().Cleanup() }

func (c *Context) Cleanup() error {
	base := c.Config.Current().BaseCacheDir
	if err := diskstore.Nuke(base); err != nil {
		return err
	}
	c.Engine.ClearMem()
	return nil
}

// Entry is one row of CacheEntries: a disk entry's metadata plus its
// resolved path.
type Entry struct {
	FnName string
	ID     string
	Path   string
	Meta   diskstore.Meta
}

// CacheEntries lists every disk entry, optionally restricted to those
// whose sanitised function segment equals prefix (empty means every
// function).
func CacheEntries(prefix string) ([]Entry, error) { return Default().CacheEntries(prefix) }

func (c *Context) CacheEntries(prefix string) ([]Entry, error) {
	base := c.Config.Current().BaseCacheDir
	metas, err := c.Engine.Disk.Enumerate(base, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(metas))
	for i, m := range metas {
		out[i] = Entry{
			FnName: m.FnName,
			ID:     m.ID,
			Path:   keying.Path{Base: base, FnSegment: keying.Sanitize(m.FnName, c.Config.Current().FilenameLengthLimit), Prefix: m.Fingerprint[:16]}.Dir(),
			Meta:   m,
		}
	}
	return out, nil
}

// Stats is the cache_stats record: total entries on disk, a
// per-function breakdown, and total disk bytes used.
type Stats struct {
	TotalEntries int
	EntriesPerFn map[string]int
	DiskBytes    int64
	MemHits      int64
	DiskHits     int64
	Computes     int64
	Failures     int64
}

// CacheStats summarizes the disk cache's current contents plus this
// Context's lifetime hit/miss/compute counters.
func CacheStats() (Stats, error) { return Default().CacheStats() }

func (c *Context) CacheStats() (Stats, error) {
	base := c.Config.Current().BaseCacheDir
	metas, err := c.Engine.Disk.Enumerate(base, "")
	if err != nil {
		return Stats{}, err
	}
	perFn := make(map[string]int)
	for _, m := range metas {
		perFn[m.FnName]++
	}
	bytes, err := diskstore.Bytes(base)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalEntries: len(metas),
		EntriesPerFn: perFn,
		DiskBytes:    bytes,
		MemHits:      atomic.LoadInt64(&c.memHits),
		DiskHits:     atomic.LoadInt64(&c.diskHits),
		Computes:     atomic.LoadInt64(&c.computes),
		Failures:     atomic.LoadInt64(&c.failures),
	}, nil
}

// CompareExperiments extracts each handle's first argument (assumed
// to be the experiment's input map) plus its forced result into a
// row, dropping columns that are constant across every handle, per
// spec.md §4.10. Handles are forced if they aren't already.
func CompareExperiments(handles []*Cached) ([]map[string]any, error) {
	rows := make([]map[string]any, len(handles))
	for i, h := range handles {
		row := map[string]any{}
		if len(h.args) > 0 {
			if m, ok := h.args[0].(map[string]any); ok {
				for k, v := range m {
					row[k] = v
				}
			}
		}
		v, err := h.Deref()
		if err != nil {
			return nil, err
		}
		row["result"] = v
		rows[i] = row
	}
	return suppressConstantColumns(rows), nil
}

func suppressConstantColumns(rows []map[string]any) []map[string]any {
	if len(rows) < 2 {
		return rows
	}
	cols := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			cols[k] = true
		}
	}
	varying := map[string]bool{}
	for k := range cols {
		first, seen := rows[0][k], false
		constant := true
		for _, r := range rows {
			v, ok := r[k]
			if !seen {
				first, seen = v, true
				continue
			}
			if !ok || v != first {
				constant = false
				break
			}
		}
		if !constant {
			varying[k] = true
		}
	}
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		nr := map[string]any{}
		for k := range varying {
			if v, ok := r[k]; ok {
				nr[k] = v
			}
		}
		out[i] = nr
	}
	return out
}
