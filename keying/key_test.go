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

package keying

import (
	"strings"
	"testing"

	"github.com/scicloj/pocket-go/identity"
)

func sig(fn string, args ...any) Signature {
	fnID := identity.Name{Local: fn}
	argIDs := make([]identity.ID, len(args))
	for i, a := range args {
		id, err := identity.Of(a)
		if err != nil {
			panic(err)
		}
		argIDs[i] = id
	}
	return Signature{Fn: fnID, Args: argIDs}
}

func TestFingerprintStableAndSensitive(t *testing.T) {
	a := Of(sig("add", 1, 2))
	b := Of(sig("add", 1, 2))
	if a != b {
		t.Fatalf("same call produced different fingerprints: %v vs %v", a, b)
	}
	c := Of(sig("add", 1, 3))
	if a == c {
		t.Fatal("different arguments produced the same fingerprint")
	}
}

func TestFingerprintIgnoresMapOrder(t *testing.T) {
	a := Of(sig("train", map[string]int{"lr": 1, "epochs": 2}))
	b := Of(sig("train", map[string]int{"epochs": 2, "lr": 1}))
	if a != b {
		t.Fatal("map argument order should not affect fingerprint")
	}
}

func TestSanitizeTruncatesWithUniqueSuffix(t *testing.T) {
	long := strings.Repeat("x", 200)
	out := Sanitize(long, 120)
	if len(out) != 120 {
		t.Fatalf("expected sanitized length 120, got %d", len(out))
	}
	long2 := strings.Repeat("x", 199) + "y"
	out2 := Sanitize(long2, 120)
	if out == out2 {
		t.Fatal("two different long names truncated to the same segment")
	}
}

func TestSanitizeReplacesUnsafeChars(t *testing.T) {
	out := Sanitize("ns/weird:name?", 120)
	if strings.ContainsAny(out, "/:?") {
		t.Fatalf("sanitized name still contains unsafe characters: %q", out)
	}
}

func TestPathLayout(t *testing.T) {
	fp := Of(sig("train"))
	p := NewPath("/tmp/cache", "ns/train", fp, 120)
	dir := p.Dir()
	if !strings.HasPrefix(dir, "/tmp/cache/ns_train/") {
		t.Fatalf("unexpected path: %s", dir)
	}
	if len(p.Prefix) != fingerprintPrefixLen {
		t.Fatalf("expected prefix length %d, got %d", fingerprintPrefixLen, len(p.Prefix))
	}
}
