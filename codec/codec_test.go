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

package codec

import (
	"reflect"
	"testing"
)

func TestBinaryRoundTripsPrimitivesAndCollections(t *testing.T) {
	c := Binary{}
	cases := []any{
		nil, true, int64(42), uint64(7), 3.5, "hello", []byte("blob"),
		[]any{int64(1), "two", 3.0},
	}
	for _, v := range cases {
		b, err := c.Encode(v)
		if err != nil {
			t.Fatalf("encode(%v): %s", v, err)
		}
		got, err := c.Decode(b)
		if err != nil {
			t.Fatalf("decode(%v): %s", v, err)
		}
		if !reflect.DeepEqual(got, v) {
			t.Errorf("round trip mismatch: want %#v got %#v", v, got)
		}
	}
}

func TestBinaryRoundTripsSentinel(t *testing.T) {
	c := Binary{}
	b, err := c.Encode(Sentinel{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(Sentinel); !ok {
		t.Fatalf("expected Sentinel, got %T", got)
	}
}

type point struct{ X, Y int }

type pointCodec struct{}

func (pointCodec) Name() string { return "codec_test.point" }
func (pointCodec) Encode(v any) ([]byte, error) {
	p := v.(point)
	return []byte{byte(p.X), byte(p.Y)}, nil
}
func (pointCodec) Decode(b []byte) (any, error) {
	return point{X: int(b[0]), Y: int(b[1])}, nil
}

func TestBinaryRoundTripsRegisteredType(t *testing.T) {
	Register(reflect.TypeOf(point{}), pointCodec{})
	c := Binary{}
	b, err := c.Encode(point{X: 3, Y: 4})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if got != (point{X: 3, Y: 4}) {
		t.Fatalf("expected point{3,4}, got %#v", got)
	}
}

func TestEncodeUnregisteredStructErrors(t *testing.T) {
	c := Binary{}
	type unregistered struct{ A int }
	if _, err := c.Encode(unregistered{A: 1}); err == nil {
		t.Fatal("expected error encoding an unregistered struct type")
	}
}
