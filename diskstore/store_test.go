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

package diskstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scicloj/pocket-go/keying"
)

func testPath(t *testing.T, fn string) keying.Path {
	t.Helper()
	dir := t.TempDir()
	return keying.Path{Base: dir, FnSegment: fn, Prefix: "abcdef0123456789"}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := New(nil)
	p := testPath(t, "add")
	meta := Meta{FnName: "add", Fingerprint: p.Prefix, EncoderVersion: "v1", CreatedAt: time.Now()}
	value := []byte("the computed value")

	if err := s.Write(p, meta, value); err != nil {
		t.Fatal(err)
	}
	gotMeta, gotValue, err := s.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if gotMeta.FnName != meta.FnName {
		t.Errorf("fn-name mismatch: %q vs %q", gotMeta.FnName, meta.FnName)
	}
	if string(gotValue) != string(value) {
		t.Errorf("value mismatch: %q vs %q", gotValue, value)
	}
}

func TestReadMissing(t *testing.T) {
	s := New(nil)
	p := testPath(t, "add")
	_, _, err := s.Read(p)
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestReadPartialEntryIsMiss(t *testing.T) {
	s := New(nil)
	p := testPath(t, "add")
	if err := os.MkdirAll(p.Dir(), 0750); err != nil {
		t.Fatal(err)
	}
	meta := Meta{FnName: "add"}
	b, _ := marshalMeta(meta)
	if err := os.WriteFile(filepath.Join(p.Dir(), metaFileName), b, 0640); err != nil {
		t.Fatal(err)
	}
	// no value.bin written: this is a partial entry
	_, _, err := s.Read(p)
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss for partial entry, got %v", err)
	}
}

func TestDeleteThenMiss(t *testing.T) {
	s := New(nil)
	p := testPath(t, "add")
	if err := s.Write(p, Meta{FnName: "add"}, []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(p); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.Read(p)
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
}

func TestEnumerateSkipsCorruptEntries(t *testing.T) {
	base := t.TempDir()
	s := New(nil)
	good := keying.Path{Base: base, FnSegment: "add", Prefix: "aaaa111122223333"}
	if err := s.Write(good, Meta{FnName: "add"}, []byte("v")); err != nil {
		t.Fatal(err)
	}
	bad := keying.Path{Base: base, FnSegment: "add", Prefix: "bbbb444455556666"}
	if err := os.MkdirAll(bad.Dir(), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bad.Dir(), metaFileName), []byte("fn-name: [unterminated"), 0640); err != nil {
		t.Fatal(err)
	}

	metas, err := s.Enumerate(base, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected exactly 1 well-formed entry, got %d", len(metas))
	}
}

func TestNukeRemovesEverything(t *testing.T) {
	base := t.TempDir()
	s := New(nil)
	p := keying.Path{Base: base, FnSegment: "add", Prefix: "aaaa111122223333"}
	if err := s.Write(p, Meta{FnName: "add"}, []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := Nuke(base); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(base); !os.IsNotExist(err) {
		t.Fatalf("expected base dir to be gone, stat err = %v", err)
	}
}
