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

// Package codec is the opaque byte encoder/decoder the cache engine
// treats as a capability it requires, per spec.md §4.3: the core only
// ever asks a Codec to Encode a computed value or Decode a disk blob,
// and only cares whether that succeeded.
package codec

import (
	"reflect"

	"github.com/scicloj/pocket-go/internal/perr"
)

// Codec encodes computed values to bytes and back. Encode/Decode
// failures should be returned as-is; callers wrap them in
// perr.EncodeError/perr.DecodeError.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
	// Version identifies the wire format. It's recorded in every
	// entry's metadata so a later mismatch (e.g. after upgrading the
	// codec) is surfaced as a DecodeError rather than silently
	// misinterpreted.
	Version() string
}

// Sentinel is the cached representation of a computation that
// legitimately returns Go's nil/zero value. Disk presence (or a
// memstore hit) is what distinguishes "cached nil" from "not cached",
// per spec.md §4.7; Sentinel exists only so the default Binary codec
// has something concrete to round-trip for that case.
type Sentinel struct{}

// EncodeValue and DecodeValue wrap c.Encode/c.Decode with the
// perr.EncodeError/perr.DecodeError kinds the rest of pocket-go
// expects to see.
func EncodeValue(c Codec, v any) ([]byte, error) {
	b, err := c.Encode(v)
	if err != nil {
		return nil, &perr.EncodeError{Cause: err}
	}
	return b, nil
}

func DecodeValue(c Codec, b []byte) (any, error) {
	v, err := c.Decode(b)
	if err != nil {
		return nil, &perr.DecodeError{Cause: err}
	}
	return v, nil
}

// TypeCodec is a user-registered encoder/decoder for one Go type,
// dispatched by Register/reflect.Type on encode and by Name on
// decode.
type TypeCodec interface {
	// Name uniquely tags this type across the encoded format. It is
	// written alongside the encoded bytes so Decode can find the
	// right TypeCodec without knowing the Go type in advance.
	Name() string
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

var registry struct {
	byType map[reflect.Type]TypeCodec
	byName map[string]TypeCodec
}

// Register installs a TypeCodec for values of type t. It is the
// extension point spec.md §4.3 requires so the core never has to
// hard-code the set of serialisable types.
func Register(t reflect.Type, tc TypeCodec) {
	if registry.byType == nil {
		registry.byType = make(map[reflect.Type]TypeCodec)
		registry.byName = make(map[string]TypeCodec)
	}
	registry.byType[t] = tc
	registry.byName[tc.Name()] = tc
}

func lookupByType(t reflect.Type) (TypeCodec, bool) {
	tc, ok := registry.byType[t]
	return tc, ok
}

func lookupByName(name string) (TypeCodec, bool) {
	tc, ok := registry.byName[name]
	return tc, ok
}
