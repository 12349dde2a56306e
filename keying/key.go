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

// Package keying turns an identity.ID into the two things the cache
// engine actually needs: a canonical textual form (for debugging and
// for feeding the digest) and a Fingerprint that's stable across
// processes as long as the identifier is stable.
package keying

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/scicloj/pocket-go/identity"
)

// Signature is the identifier of a function call: a function
// identifier plus its ordered argument identifiers. It is also the
// identifier of the Cached handle that call produces.
type Signature = identity.Call

// Fingerprint is the digest of a Signature's canonical textual form.
// blake2b-256 is used rather than spec.md's suggested SHA-1, grounded
// on blake2b already serving a cache-relevant content hash elsewhere
// in this dependency stack (see DESIGN.md); any digest is fine here as
// long as it's held constant for a deployment's lifetime.
type Fingerprint [32]byte

// String returns the lowercase hex encoding of fp.
func (fp Fingerprint) String() string { return hex.EncodeToString(fp[:]) }

// Prefix returns the first n hex characters of fp, used to build the
// on-disk entry path.
func (fp Fingerprint) Prefix(n int) string {
	s := fp.String()
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

// Canonicalize produces a deterministic textual form of id: map
// entries are already sorted by identity.NewMap/NewSet at
// construction time, sequences preserve order, and each primitive
// kind gets one fixed spelling.
func Canonicalize(id identity.ID) string {
	var b strings.Builder
	write(&b, id)
	return b.String()
}

// Of computes the Fingerprint of a Signature by hashing its canonical
// textual form.
func Of(sig Signature) Fingerprint {
	return digest(Canonicalize(sig))
}

// OfID computes the Fingerprint of any identifier directly, for
// identifiers that are not a full call Signature.
func OfID(id identity.ID) Fingerprint {
	return digest(Canonicalize(id))
}

func digest(s string) Fingerprint {
	return blake2b.Sum256([]byte(s))
}

func write(b *strings.Builder, id identity.ID) {
	switch v := id.(type) {
	case identity.Nil:
		b.WriteString("nil")
	case identity.Name:
		b.WriteString("name(")
		b.WriteString(v.NS)
		b.WriteByte('/')
		b.WriteString(v.Local)
		b.WriteByte(')')
	case identity.Prim:
		writePrim(b, v)
	case identity.Seq:
		b.WriteByte('[')
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteByte(',')
			}
			write(b, e)
		}
		b.WriteByte(']')
	case identity.Map:
		b.WriteByte('{')
		entries := append([]identity.MapEntry(nil), v.Entries...)
		sort.Slice(entries, func(i, j int) bool {
			return Canonicalize(entries[i].Key) < Canonicalize(entries[j].Key)
		})
		for i, e := range entries {
			if i > 0 {
				b.WriteByte(',')
			}
			write(b, e.Key)
			b.WriteByte(':')
			write(b, e.Value)
		}
		b.WriteByte('}')
	case identity.Set:
		b.WriteByte('<')
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteByte(',')
			}
			write(b, e)
		}
		b.WriteByte('>')
	case identity.Opaque:
		b.WriteString("opaque(")
		b.WriteString(v.Tag)
		b.WriteByte(',')
		write(b, v.Repr)
		b.WriteByte(')')
	case identity.Call:
		b.WriteString("call(")
		write(b, v.Fn)
		for _, a := range v.Args {
			b.WriteByte(',')
			write(b, a)
		}
		b.WriteByte(')')
	default:
		panic(fmt.Sprintf("keying: unhandled identity.ID type %T", id))
	}
}

func writePrim(b *strings.Builder, p identity.Prim) {
	switch p.Kind {
	case identity.PrimBool:
		b.WriteString("bool(")
		b.WriteString(strconv.FormatBool(p.Bool))
	case identity.PrimInt:
		b.WriteString("int(")
		b.WriteString(strconv.FormatInt(p.Int, 10))
	case identity.PrimUint:
		b.WriteString("uint(")
		b.WriteString(strconv.FormatUint(p.Uint, 10))
	case identity.PrimFloat:
		b.WriteString("float(")
		b.WriteString(strconv.FormatUint(p.Float, 16))
	case identity.PrimString:
		b.WriteString("str(")
		b.WriteString(strconv.Quote(p.Str))
	case identity.PrimBytes:
		b.WriteString("bytes(")
		b.WriteString(hex.EncodeToString(p.Bytes))
	}
	b.WriteByte(')')
}
