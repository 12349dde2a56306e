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
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const binaryVersion = "pocket-binary/1+zstd"

const (
	tagNil byte = iota
	tagBool
	tagInt
	tagUint
	tagFloat
	tagString
	tagBytes
	tagSlice
	tagMap
	tagCustom
	tagSentinel
)

// Binary is the default Codec: a small tag-length-value format for
// the primitive/collection value domain plus any TypeCodec-registered
// custom types, with the whole payload wrapped through zstd in a
// Compressor/Decompressor pair around the third-party compression
// algorithm.
type Binary struct{}

var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		e, err := zstd.NewWriter(nil)
		if err != nil {
			panic(err)
		}
		zstdEnc = e
	})
	return zstdEnc
}

func decoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		d, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}
		zstdDec = d
	})
	return zstdDec
}

// Version implements Codec.
func (Binary) Version() string { return binaryVersion }

// Encode implements Codec.
func (Binary) Encode(v any) ([]byte, error) {
	if _, ok := v.(Sentinel); ok {
		return encoder().EncodeAll([]byte{tagSentinel}, nil), nil
	}
	var buf []byte
	buf, err := encodeValue(buf, v)
	if err != nil {
		return nil, err
	}
	return encoder().EncodeAll(buf, nil), nil
}

// Decode implements Codec.
func (Binary) Decode(b []byte) (any, error) {
	raw, err := decoder().DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(raw) == 1 && raw[0] == tagSentinel {
		return Sentinel{}, nil
	}
	v, rest, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("trailing %d bytes after decoded value", len(rest))
	}
	return v, nil
}

func encodeValue(buf []byte, v any) ([]byte, error) {
	if v == nil {
		return append(buf, tagNil), nil
	}
	if tc, ok := lookupByType(reflect.TypeOf(v)); ok {
		payload, err := tc.Encode(v)
		if err != nil {
			return nil, err
		}
		buf = append(buf, tagCustom)
		buf = appendString(buf, tc.Name())
		buf = appendBytes(buf, payload)
		return buf, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		b := byte(0)
		if rv.Bool() {
			b = 1
		}
		return append(buf, tagBool, b), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf = append(buf, tagInt)
		return appendU64(buf, uint64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf = append(buf, tagUint)
		return appendU64(buf, rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		buf = append(buf, tagFloat)
		return appendU64(buf, math.Float64bits(rv.Float())), nil
	case reflect.String:
		buf = append(buf, tagString)
		return appendString(buf, rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf = append(buf, tagBytes)
			return appendBytes(buf, rv.Bytes()), nil
		}
		buf = append(buf, tagSlice)
		buf = appendU64(buf, uint64(rv.Len()))
		var err error
		for i := 0; i < rv.Len(); i++ {
			buf, err = encodeValue(buf, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case reflect.Map:
		buf = append(buf, tagMap)
		buf = appendU64(buf, uint64(rv.Len()))
		iter := rv.MapRange()
		var err error
		for iter.Next() {
			buf, err = encodeValue(buf, iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			buf, err = encodeValue(buf, iter.Value().Interface())
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	}
	return nil, fmt.Errorf("codec: no encoder registered for type %T", v)
}

func decodeValue(b []byte) (any, []byte, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("codec: truncated value")
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case tagNil:
		return nil, rest, nil
	case tagBool:
		if len(rest) < 1 {
			return nil, nil, fmt.Errorf("codec: truncated bool")
		}
		return rest[0] != 0, rest[1:], nil
	case tagInt:
		u, rest, err := readU64(rest)
		return int64(u), rest, err
	case tagUint:
		u, rest, err := readU64(rest)
		return u, rest, err
	case tagFloat:
		u, rest, err := readU64(rest)
		return math.Float64frombits(u), rest, err
	case tagString:
		s, rest, err := readString(rest)
		return s, rest, err
	case tagBytes:
		bs, rest, err := readBytes(rest)
		return bs, rest, err
	case tagSlice:
		n, rest, err := readU64(rest)
		if err != nil {
			return nil, nil, err
		}
		out := make([]any, 0, n)
		for i := uint64(0); i < n; i++ {
			var v any
			v, rest, err = decodeValue(rest)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, v)
		}
		return out, rest, nil
	case tagMap:
		n, rest, err := readU64(rest)
		if err != nil {
			return nil, nil, err
		}
		out := make(map[any]any, n)
		for i := uint64(0); i < n; i++ {
			var k, v any
			k, rest, err = decodeValue(rest)
			if err != nil {
				return nil, nil, err
			}
			v, rest, err = decodeValue(rest)
			if err != nil {
				return nil, nil, err
			}
			out[k] = v
		}
		return out, rest, nil
	case tagCustom:
		name, rest, err := readString(rest)
		if err != nil {
			return nil, nil, err
		}
		payload, rest, err := readBytes(rest)
		if err != nil {
			return nil, nil, err
		}
		tc, ok := lookupByName(name)
		if !ok {
			return nil, nil, fmt.Errorf("codec: no TypeCodec registered for %q", name)
		}
		v, err := tc.Decode(payload)
		return v, rest, err
	}
	return nil, nil, fmt.Errorf("codec: unknown tag %d", tag)
}

func appendU64(buf []byte, u uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], u)
	return append(buf, tmp[:]...)
}

func readU64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("codec: truncated uint64")
	}
	return binary.LittleEndian.Uint64(b[:8]), b[8:], nil
}

func appendBytes(buf []byte, p []byte) []byte {
	buf = appendU64(buf, uint64(len(p)))
	return append(buf, p...)
}

func readBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := readU64(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("codec: truncated bytes")
	}
	return append([]byte(nil), rest[:n]...), rest[n:], nil
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func readString(b []byte) (string, []byte, error) {
	bs, rest, err := readBytes(b)
	if err != nil {
		return "", nil, err
	}
	return string(bs), rest, nil
}
