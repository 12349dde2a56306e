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
	"reflect"
	"sync"

	"github.com/scicloj/pocket-go/engine"
	"github.com/scicloj/pocket-go/identity"
	"github.com/scicloj/pocket-go/internal/perr"
	"github.com/scicloj/pocket-go/keying"
)

// State is where a Cached handle sits in its lifecycle.
type State int

const (
	Pending State = iota
	InFlight
	CachedState
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in-flight"
	case CachedState:
		return "cached"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// HandleOptions overrides context-wide configuration for one handle's
// forces. A nil Mode falls through to the Context's current storage
// mode, per spec.md's "per-handle overrides exist ... global
// configuration is the fallback".
type HandleOptions struct {
	Mode *engine.Mode
}

// Cached is a lazily-forced, memoized function call: the recipe-graph
// node described in spec.md §4.8. Building one never runs fn or
// forces its arguments; only Deref does.
type Cached struct {
	ctx  *Context
	opts HandleOptions

	fnName string
	fn     reflect.Value
	args   []any

	sig identity.Call
	fp  keying.Fingerprint
	// path carries only the parts that don't depend on the current
	// config (FnSegment, Prefix); Base is filled in from the current
	// config at force time, so a later SetBaseCacheDir is honored
	// without invalidating already-built handles.
	path keying.Path

	mu    sync.Mutex
	state State
	value any
}

// Wrap builds a Cached handle for f applied to args, using the
// process-wide default Context. f must be a named, non-closure
// top-level function (or a identity.Keyword standing in for one);
// anything else is a *perr.BadFunction, raised synchronously.
func Wrap(f any, args ...any) (*Cached, error) {
	return Default().Wrap(f, args...)
}

// WrapWithOptions is Wrap with per-handle overrides.
func WrapWithOptions(opts HandleOptions, f any, args ...any) (*Cached, error) {
	return Default().WrapWithOptions(opts, f, args...)
}

// WrapFn partially applies f (with opts) and returns a constructor
// that builds a new Cached handle per call, for call sites that wrap
// the same function repeatedly with different arguments.
func WrapFn(f any, opts HandleOptions) func(args ...any) (*Cached, error) {
	return Default().WrapFn(f, opts)
}

// Wrap is the Context-scoped form of the package-level Wrap.
func (c *Context) Wrap(f any, args ...any) (*Cached, error) {
	return c.WrapWithOptions(HandleOptions{}, f, args...)
}

// WrapWithOptions is the Context-scoped form of the package-level
// WrapWithOptions.
func (c *Context) WrapWithOptions(opts HandleOptions, f any, args ...any) (*Cached, error) {
	fv := reflect.ValueOf(f)
	_, isKeyword := f.(identity.Keyword)
	if !isKeyword && fv.Kind() != reflect.Func {
		return nil, &perr.BadFunction{Got: f}
	}
	fnID, err := identity.Of(f)
	if err != nil {
		return nil, err
	}
	fnName := fnID.(fmt.Stringer).String()

	argIDs := make([]identity.ID, len(args))
	for i, a := range args {
		id, err := identity.Of(a)
		if err != nil {
			return nil, err
		}
		argIDs[i] = id
	}
	sig := identity.Call{Fn: fnID, Args: argIDs}
	fp := keying.Of(sig)

	rec := c.Config.Current()
	base := keying.NewPath("", fnName, fp, rec.FilenameLengthLimit)

	return &Cached{
		ctx:    c,
		opts:   opts,
		fnName: fnName,
		fn:     fv,
		args:   args,
		sig:    sig,
		fp:     fp,
		path:   base,
		state:  Pending,
	}, nil
}

// WrapFn is the Context-scoped form of the package-level WrapFn.
func (c *Context) WrapFn(f any, opts HandleOptions) func(args ...any) (*Cached, error) {
	return func(args ...any) (*Cached, error) {
		return c.WrapWithOptions(opts, f, args...)
	}
}

// IdentityOf implements identity.Identifiable: a Cached handle's
// identifier is the identifier of the call that produced it, per
// spec.md rule 4, computed once at Wrap time.
func (c *Cached) IdentityOf() (identity.ID, error) { return c.sig, nil }

// Fingerprint returns the handle's content-address, independent of
// whether it has ever been forced.
func (c *Cached) Fingerprint() keying.Fingerprint { return c.fp }

// FnName returns the wrapped function's qualified name.
func (c *Cached) FnName() string { return c.fnName }

func (c *Cached) stateSnapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// String renders the handle's fingerprint prefix and current state
// without forcing it, per spec.md's handle-printing requirement.
func (c *Cached) String() string {
	return fmt.Sprintf("pocket.Cached{fn: %s, fp: %s, state: %s}", c.fnName, c.fp.Prefix(8), c.stateSnapshot())
}

// Deref forces c: arguments are forced left-to-right, then fn is
// applied to their values under the cache engine's force-path. A
// Cached that is already in the CachedState short-circuits straight
// to the stored value; a handle left in Failed from a prior attempt
// is retried in full, since FAILED must never be observable as a
// cached error (spec.md §4.8).
func (c *Cached) Deref() (any, error) {
	c.mu.Lock()
	if c.state == CachedState {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	c.state = InFlight
	c.mu.Unlock()

	forced := make([]reflect.Value, len(c.args))
	for i, a := range c.args {
		v, err := MaybeDeref(a)
		if err != nil {
			c.mu.Lock()
			c.state = Failed
			c.mu.Unlock()
			return nil, err
		}
		forced[i] = argValue(v, c.fn.Type(), i)
	}

	rec := c.ctx.Config.Current()
	mode := modeFor(rec.Storage)
	if c.opts.Mode != nil {
		mode = *c.opts.Mode
	}
	path := c.path
	path.Base = rec.BaseCacheDir

	argsSummary := make([]string, len(forced))
	for i, fv := range forced {
		argsSummary[i] = summarizeArg(fv)
	}

	thunk := engine.Thunk{
		FnName:      c.fnName,
		ID:          keying.Canonicalize(c.sig),
		ArgsSummary: argsSummary,
		Run: func() (any, error) {
			return callFn(c.fn, forced)
		},
	}

	v, outcome, err := c.ctx.Engine.Force(path, c.fp, mode, thunk)
	c.ctx.recordOutcome(outcome)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// FAILED is transient and never stores the error: the next
		// Deref must retry in full, not resurface this one.
		c.state = Failed
		return nil, err
	}
	c.state = CachedState
	c.value = v
	return v, nil
}

// MaybeDeref forces x if it is a Cached handle, otherwise returns it
// unchanged. It's the idempotent unwrap spec.md's external interface
// calls maybe_deref.
func MaybeDeref(x any) (any, error) {
	if h, ok := x.(*Cached); ok {
		return h.Deref()
	}
	return x, nil
}

// callFn invokes fn (a reflect.Value of Kind Func) with args, recovering
// a panic into an error at this outermost boundary, since a thunk is
// arbitrary user code the engine cannot trust to always return cleanly.
func callFn(fn reflect.Value, args []reflect.Value) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	out := fn.Call(args)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if e, ok := out[0].Interface().(error); ok {
			return nil, e
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1].Interface()
		if e, ok := last.(error); ok && e != nil {
			return nil, e
		}
		return out[0].Interface(), nil
	}
}

// argSummaryLimit caps how much of a forced argument's %v rendering
// ends up in meta.yaml: enough to be useful in a directory listing,
// short enough that a large argument (a dataframe, a big slice)
// doesn't bloat the metadata file.
const argSummaryLimit = 64

// summarizeArg renders a forced argument for Meta.ArgsSummary: a
// best-effort, human-readable hint for someone browsing the disk
// cache, not a reconstructable encoding (that's what the value blob
// and the fingerprint are for).
func summarizeArg(v reflect.Value) string {
	s := fmt.Sprintf("%v", v.Interface())
	if len(s) <= argSummaryLimit {
		return s
	}
	return s[:argSummaryLimit] + "..."
}

// argValue adapts a forced argument value to whatever type fn expects
// at position i, so wrapping an int-typed function with an untyped
// literal argument (e.g. from JSON or a test) still calls cleanly.
func argValue(v any, fnType reflect.Type, i int) reflect.Value {
	if v == nil {
		if fnType.NumIn() > i {
			return reflect.Zero(fnType.In(i))
		}
		return reflect.ValueOf(&v).Elem()
	}
	rv := reflect.ValueOf(v)
	if fnType.NumIn() > i && rv.Type() != fnType.In(i) && rv.Type().ConvertibleTo(fnType.In(i)) {
		return rv.Convert(fnType.In(i))
	}
	return rv
}
