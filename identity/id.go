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

// Package identity computes stable, value-equal identifiers for any
// input a function may be wrapped with: primitives, collections,
// records, foreign values dispatched through a user-extensible hook,
// and Cached handles (via the Identifiable interface, so this package
// never needs to import the package that defines Cached).
package identity

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/scicloj/pocket-go/internal/perr"
)

// ID is a stable, value-equal identifier tree. The concrete
// implementations below are the only ones that exist; ID is closed
// over this package the way a sum type would be in a language with
// one.
type ID interface {
	// sortKey returns a deterministic string usable to order sibling
	// IDs when building a Map or Set. It is not the canonical textual
	// form used for fingerprinting (that lives in package keying) —
	// only a stable total order consistent with equality.
	sortKey() string
	// Equal reports whether two IDs describe the same value.
	Equal(ID) bool
}

// Nil is the identifier of an absent value (a nil interface, pointer,
// map, slice, chan or func).
type Nil struct{}

func (Nil) sortKey() string  { return "n" }
func (Nil) Equal(o ID) bool  { _, ok := o.(Nil); return ok }
func (Nil) String() string   { return "nil" }

// Name is the identifier of a named function, a keyword-like token, or
// any other qualified-name style identifier (ns may be empty).
type Name struct {
	NS, Local string
}

func (n Name) sortKey() string { return "y:" + n.NS + "/" + n.Local }
func (n Name) Equal(o ID) bool {
	on, ok := o.(Name)
	return ok && on.NS == n.NS && on.Local == n.Local
}
func (n Name) String() string {
	if n.NS == "" {
		return n.Local
	}
	return n.NS + "/" + n.Local
}

// PrimKind distinguishes the canonical spelling used for a primitive.
type PrimKind int

const (
	PrimBool PrimKind = iota
	PrimInt           // canonical widest signed integer
	PrimUint          // canonical widest unsigned integer, used only when it doesn't fit in int64
	PrimFloat         // canonical bit-exact float64
	PrimString
	PrimBytes
)

// Prim is the identifier of a primitive value, canonicalised per
// spec: integers widen to a common signed (or, failing that,
// unsigned) representation and floats compare by bit pattern so that
// value-equal primitives of different Go types collapse to one id.
type Prim struct {
	Kind  PrimKind
	Bool  bool
	Int   int64
	Uint  uint64
	Float uint64 // math.Float64bits
	Str   string
	Bytes []byte
}

func (p Prim) sortKey() string {
	switch p.Kind {
	case PrimBool:
		return "b:" + strconv.FormatBool(p.Bool)
	case PrimInt:
		return "i:" + strconv.FormatInt(p.Int, 10)
	case PrimUint:
		return "u:" + strconv.FormatUint(p.Uint, 10)
	case PrimFloat:
		return "f:" + strconv.FormatUint(p.Float, 16)
	case PrimString:
		return "s:" + p.Str
	case PrimBytes:
		return "x:" + string(p.Bytes)
	}
	return "?"
}

func (p Prim) Equal(o ID) bool {
	op, ok := o.(Prim)
	if !ok || op.Kind != p.Kind {
		return false
	}
	switch p.Kind {
	case PrimBool:
		return op.Bool == p.Bool
	case PrimInt:
		return op.Int == p.Int
	case PrimUint:
		return op.Uint == p.Uint
	case PrimFloat:
		return op.Float == p.Float
	case PrimString:
		return op.Str == p.Str
	case PrimBytes:
		return string(op.Bytes) == string(p.Bytes)
	}
	return false
}

// Seq is the identifier of an ordered collection: order is preserved,
// unlike Map and Set.
type Seq struct {
	Elems []ID
}

func (s Seq) sortKey() string {
	var b strings.Builder
	b.WriteString("q[")
	for _, e := range s.Elems {
		b.WriteString(e.sortKey())
		b.WriteByte(',')
	}
	b.WriteByte(']')
	return b.String()
}

func (s Seq) Equal(o ID) bool {
	os_, ok := o.(Seq)
	if !ok || len(os_.Elems) != len(s.Elems) {
		return false
	}
	for i := range s.Elems {
		if !s.Elems[i].Equal(os_.Elems[i]) {
			return false
		}
	}
	return true
}

// MapEntry is one (key-id, value-id) pair of a Map.
type MapEntry struct {
	Key, Value ID
}

// Map is the identifier of a mapping: entries are sorted by the
// key's sortKey so that two maps with the same entries in different
// iteration orders collapse to the same identifier.
type Map struct {
	Entries []MapEntry
}

func (m Map) sortKey() string {
	var b strings.Builder
	b.WriteString("m{")
	for _, e := range m.Entries {
		b.WriteString(e.Key.sortKey())
		b.WriteByte('=')
		b.WriteString(e.Value.sortKey())
		b.WriteByte(',')
	}
	b.WriteByte('}')
	return b.String()
}

func (m Map) Equal(o ID) bool {
	om, ok := o.(Map)
	if !ok || len(om.Entries) != len(m.Entries) {
		return false
	}
	for i := range m.Entries {
		if !m.Entries[i].Key.Equal(om.Entries[i].Key) || !m.Entries[i].Value.Equal(om.Entries[i].Value) {
			return false
		}
	}
	return true
}

// NewMap builds a Map from entries in any order, sorting them by key
// so construction order never affects the resulting identifier.
func NewMap(entries []MapEntry) Map {
	out := append([]MapEntry(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key.sortKey() < out[j].Key.sortKey() })
	return Map{Entries: out}
}

// Set is the identifier of an unordered collection of unique elements,
// represented as its elements sorted by sortKey.
type Set struct {
	Elems []ID
}

func (s Set) sortKey() string {
	var b strings.Builder
	b.WriteString("t{")
	for _, e := range s.Elems {
		b.WriteString(e.sortKey())
		b.WriteByte(',')
	}
	b.WriteByte('}')
	return b.String()
}

func (s Set) Equal(o ID) bool {
	os_, ok := o.(Set)
	if !ok || len(os_.Elems) != len(s.Elems) {
		return false
	}
	for i := range s.Elems {
		if !s.Elems[i].Equal(os_.Elems[i]) {
			return false
		}
	}
	return true
}

// NewSet builds a Set from elements in any order, deduplicating by
// sortKey and sorting so construction order and duplicates never
// affect the resulting identifier.
func NewSet(elems []ID) Set {
	out := append([]ID(nil), elems...)
	slices.SortFunc(out, func(a, b ID) bool { return a.sortKey() < b.sortKey() })
	deduped := out[:0]
	var last string
	for i, e := range out {
		k := e.sortKey()
		if i == 0 || k != last {
			deduped = append(deduped, e)
			last = k
		}
	}
	return Set{Elems: deduped}
}

// Opaque is the identifier produced by a user-registered hook for a
// record or foreign type the built-in rules don't cover.
type Opaque struct {
	Tag  string
	Repr ID
}

func (o Opaque) sortKey() string { return "o:" + o.Tag + ":" + o.Repr.sortKey() }
func (o Opaque) Equal(x ID) bool {
	ox, ok := x.(Opaque)
	return ok && ox.Tag == o.Tag && ox.Repr.Equal(o.Repr)
}

// Call is the identifier of a function call: a function identifier
// plus an ordered tuple of argument identifiers. It doubles as the
// "call signature" from the data model and as the identifier of any
// Cached handle produced by wrapping Fn over Args (spec invariant:
// equal identifiers imply equal fingerprints imply the same entry
// path).
type Call struct {
	Fn   ID
	Args []ID
}

func (c Call) sortKey() string {
	var b strings.Builder
	b.WriteString("c(")
	b.WriteString(c.Fn.sortKey())
	for _, a := range c.Args {
		b.WriteByte(',')
		b.WriteString(a.sortKey())
	}
	b.WriteByte(')')
	return b.String()
}

func (c Call) Equal(o ID) bool {
	oc, ok := o.(Call)
	if !ok || len(oc.Args) != len(c.Args) || !oc.Fn.Equal(c.Fn) {
		return false
	}
	for i := range c.Args {
		if !c.Args[i].Equal(oc.Args[i]) {
			return false
		}
	}
	return true
}

// Identifiable is implemented by Cached handles (defined in the root
// pocket package) so that identity.Of can compute "the identifier of
// the call that produced this handle" (spec rule 4) without importing
// the package that defines Cached.
type Identifiable interface {
	IdentityOf() (ID, error)
}

// Keyword is a symbolic accessor usable as a function stand-in, per
// spec rule 3: its identifier is the token itself.
type Keyword string

// Collection marks a Go slice as an unordered collection (a set)
// rather than the default ordered Seq treatment, per spec rule 7.
// Duplicate and out-of-order elements collapse to the same id.
type Collection []any

// Of computes the identifier of any input, applying the rules in
// spec order: nil, Identifiable (Cached handles), Keyword, named
// functions, Collection (sets), registered hooks, the Tabular default
// hook, built-in collections/primitives via reflection, and finally
// failure for anything left over.
func Of(x any) (ID, error) {
	if x == nil {
		return Nil{}, nil
	}
	if isNilValue(x) {
		return Nil{}, nil
	}
	if h, ok := x.(Identifiable); ok {
		return h.IdentityOf()
	}
	if k, ok := x.(Keyword); ok {
		return Name{Local: string(k)}, nil
	}
	if ns, local, ok := funcName(x); ok {
		return Name{NS: ns, Local: local}, nil
	}
	if reflect.TypeOf(x).Kind() == reflect.Func {
		return nil, &perr.BadFunction{Got: x}
	}
	if c, ok := x.(Collection); ok {
		elems := make([]ID, 0, len(c))
		for _, e := range c {
			id, err := Of(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, id)
		}
		return NewSet(elems), nil
	}
	if hook, ok := lookupHook(reflect.TypeOf(x)); ok {
		return hook(x)
	}
	if t, ok := x.(Tabular); ok {
		return tabularID(t)
	}
	return fromReflect(x)
}

func isNilValue(x any) bool {
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// funcName returns the qualified ns/name of x if x is a function value
// backed by a named, non-closure top-level function or method.
// Closures are rejected: runtime.FuncForPC names them "<pkg>.<outer>.funcN",
// which this treats as unnamed.
func funcName(x any) (ns, local string, ok bool) {
	v := reflect.ValueOf(x)
	if v.Kind() != reflect.Func {
		return "", "", false
	}
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return "", "", false
	}
	full := fn.Name()
	if full == "" || strings.Contains(full, ".func") {
		return "", "", false
	}
	slash := strings.LastIndexByte(full, '/')
	rest := full
	prefix := ""
	if slash >= 0 {
		prefix = full[:slash+1]
		rest = full[slash+1:]
	}
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return "", prefix + rest, true
	}
	return prefix + rest[:dot], rest[dot+1:], true
}

func fromReflect(x any) (ID, error) {
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Bool:
		return Prim{Kind: PrimBool, Bool: v.Bool()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Prim{Kind: PrimInt, Int: v.Int()}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u <= math.MaxInt64 {
			return Prim{Kind: PrimInt, Int: int64(u)}, nil
		}
		return Prim{Kind: PrimUint, Uint: u}, nil
	case reflect.Float32, reflect.Float64:
		return Prim{Kind: PrimFloat, Float: math.Float64bits(v.Float())}, nil
	case reflect.String:
		return Prim{Kind: PrimString, Str: v.String()}, nil
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return Prim{Kind: PrimBytes, Bytes: append([]byte(nil), v.Bytes()...)}, nil
		}
		elems := make([]ID, v.Len())
		for i := 0; i < v.Len(); i++ {
			id, err := Of(v.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			elems[i] = id
		}
		return Seq{Elems: elems}, nil
	case reflect.Map:
		entries := make([]MapEntry, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			kid, err := Of(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			vid, err := Of(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: kid, Value: vid})
		}
		return NewMap(entries), nil
	case reflect.Ptr:
		if v.IsNil() {
			return Nil{}, nil
		}
		return Of(v.Elem().Interface())
	}
	return nil, &perr.UnknownIdentifiable{Type: fmt.Sprintf("%T", x)}
}
