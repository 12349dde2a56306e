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

// Package engine composes codec, diskstore, memstore and inflight into
// the cache's single force-path, the way tenant/dcache's Cache type
// composes its mmap segment store with its lockID single-flight
// discipline — generalized here from "fetch a query segment" to
// "fetch-or-compute an arbitrary cached value".
package engine

import (
	"errors"
	"time"

	"github.com/scicloj/pocket-go/codec"
	"github.com/scicloj/pocket-go/diskstore"
	"github.com/scicloj/pocket-go/inflight"
	"github.com/scicloj/pocket-go/internal/perr"
	"github.com/scicloj/pocket-go/internal/plog"
	"github.com/scicloj/pocket-go/keying"
	"github.com/scicloj/pocket-go/memstore"
)

// Mode selects which tiers of the cache a Force call consults.
type Mode int

const (
	// ModeMemDisk consults both tiers; the default.
	ModeMemDisk Mode = iota
	ModeMem
	ModeDisk
	// ModeNone always computes, bypassing both tiers.
	ModeNone
)

func (m Mode) allowsMem() bool  { return m == ModeMemDisk || m == ModeMem }
func (m Mode) allowsDisk() bool { return m == ModeMemDisk || m == ModeDisk }

// Outcome classifies how a Force call was satisfied, for logging and
// for cache_stats-style counters.
type Outcome int

const (
	MemHit Outcome = iota
	DiskHit
	Computed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case MemHit:
		return "mem-hit"
	case DiskHit:
		return "disk-hit"
	case Computed:
		return "computed"
	default:
		return "failed"
	}
}

// Engine is the shared cache machinery behind every Cached handle.
type Engine struct {
	Disk     *diskstore.Store
	Mem      *memstore.Store
	Inflight *inflight.Registry
	Codec    codec.Codec
	Logger   plog.Logger
}

// New builds an Engine from its component tiers. Passing a nil Codec
// selects codec.Binary{}.
func New(disk *diskstore.Store, mem *memstore.Store, c codec.Codec, l plog.Logger) *Engine {
	if c == nil {
		c = codec.Binary{}
	}
	if l == nil {
		l = plog.Discard
	}
	return &Engine{
		Disk:     disk,
		Mem:      mem,
		Inflight: inflight.New(),
		Codec:    c,
		Logger:   l,
	}
}

func (e *Engine) log() plog.Event { return plog.For(e.Logger) }

// Thunk is the deferred computation a Cached handle supplies; it
// carries the function name and a per-argument textual summary only
// for logging/metadata, not identity (identity was already fixed when
// the handle was built).
type Thunk struct {
	FnName      string
	ID          string
	ArgsSummary []string
	Run         func() (any, error)
}

// Force runs the spec.md §4.7 force-path for path/fingerprint fp:
// memory, then disk, then (under single-flight) the thunk itself.
func (e *Engine) Force(p keying.Path, fp keying.Fingerprint, mode Mode, t Thunk) (any, Outcome, error) {
	key := fp.String()
	start := time.Now()

	if mode.allowsMem() {
		if v, ok := e.Mem.Get(key); ok {
			e.log().Infof("mem-hit fn=%s fp=%s dur=%s", t.FnName, fp.Prefix(16), time.Since(start))
			return unwrapSentinel(v), MemHit, nil
		}
	}

	v, err, _ := e.Inflight.Do(key, func() (any, error) {
		return e.fill(p, fp, mode, t)
	})
	if err != nil {
		e.log().Errorf("compute-error fn=%s fp=%s dur=%s err=%s", t.FnName, fp.Prefix(16), time.Since(start), err)
		return nil, Failed, err
	}
	return unwrapSentinel(v), outcomeOf(v), nil
}

// sentinel result wraps whatever fill produced together with the
// outcome it actually took, so two concurrent callers sharing one
// inflight.Do invocation both learn the true outcome rather than both
// reporting Computed.
type result struct {
	value   any
	outcome Outcome
}

func unwrapSentinel(v any) any {
	if r, ok := v.(result); ok {
		v = r.value
	}
	if _, ok := v.(codec.Sentinel); ok {
		return nil
	}
	return v
}

func outcomeOf(v any) Outcome {
	if r, ok := v.(result); ok {
		return r.outcome
	}
	return Computed
}

// fill runs once per fingerprint, inside the in-flight slot: disk
// lookup, then compute, then persist/memoize.
func (e *Engine) fill(p keying.Path, fp keying.Fingerprint, mode Mode, t Thunk) (any, error) {
	key := fp.String()

	if mode.allowsDisk() {
		meta, raw, err := e.Disk.Read(p)
		var metaErr *perr.DecodeError
		switch {
		case err == nil && meta.EncoderVersion != e.Codec.Version():
			e.log().Warnf("disk-decode-error fn=%s fp=%s encoder-version=%q want %q: treating as miss", t.FnName, fp.Prefix(16), meta.EncoderVersion, e.Codec.Version())
			e.Disk.Delete(p)
		case err == nil:
			v, decErr := e.Codec.Decode(raw)
			if decErr != nil {
				e.log().Warnf("disk-decode-error fn=%s fp=%s err=%s: treating as miss", t.FnName, fp.Prefix(16), decErr)
				e.Disk.Delete(p)
				break
			}
			if mode.allowsMem() {
				e.Mem.Put(key, v)
			}
			e.log().Infof("disk-hit fn=%s fp=%s", meta.FnName, fp.Prefix(16))
			return result{value: v, outcome: DiskHit}, nil
		case err == diskstore.ErrMiss:
			// fall through to compute
		case errors.As(err, &metaErr):
			e.log().Warnf("disk-decode-error fn=%s fp=%s err=%s: treating as miss", t.FnName, fp.Prefix(16), err)
			e.Disk.Delete(p)
		default:
			return nil, err
		}
	}

	v, err := t.Run()
	if err != nil {
		return nil, &perr.ComputeError{FnName: t.FnName, Cause: err}
	}

	toStore := v
	if toStore == nil {
		toStore = codec.Sentinel{}
	}

	if mode.allowsDisk() {
		encoded, encErr := e.Codec.Encode(toStore)
		if encErr != nil {
			// EncodeError: spec.md §7 — returned to the active forcer,
			// but the entry must not be persisted or poison later
			// retries, so we don't write and we don't memoize either.
			e.log().Warnf("encode-error fn=%s fp=%s err=%s", t.FnName, fp.Prefix(16), encErr)
			return nil, &perr.EncodeError{Cause: encErr}
		}
		meta := diskstore.Meta{
			FnName:         t.FnName,
			ID:             t.ID,
			Fingerprint:    fp.String(),
			EncoderVersion: e.Codec.Version(),
			CreatedAt:      time.Now(),
			ArgsSummary:    t.ArgsSummary,
		}
		if err := e.Disk.Write(p, meta, encoded); err != nil {
			return nil, err
		}
	}
	if mode.allowsMem() {
		e.Mem.Put(key, toStore)
	}
	e.log().Infof("computed fn=%s fp=%s", t.FnName, fp.Prefix(16))
	return result{value: toStore, outcome: Computed}, nil
}

// Invalidate removes the entry at p/fp from both tiers.
func (e *Engine) Invalidate(p keying.Path, fp keying.Fingerprint) error {
	e.Mem.Delete(fp.String())
	return e.Disk.Delete(p)
}

// ClearMem empties the memory tier only.
func (e *Engine) ClearMem() { e.Mem.Clear() }
