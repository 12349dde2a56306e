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

package identity

import (
	"reflect"
	"testing"
)

func expensiveAdd(x, y int) int { return x + y }

func TestOfDeterministic(t *testing.T) {
	inputs := []any{
		42, "hello", 3.14, true, []int{1, 2, 3},
		map[string]int{"a": 1, "b": 2},
	}
	for _, in := range inputs {
		a, err := Of(in)
		if err != nil {
			t.Fatalf("Of(%v): %s", in, err)
		}
		b, err := Of(in)
		if err != nil {
			t.Fatalf("Of(%v) second call: %s", in, err)
		}
		if !a.Equal(b) {
			t.Errorf("Of(%v) not deterministic: %v != %v", in, a, b)
		}
	}
}

func TestMapOrderIndependent(t *testing.T) {
	m1 := map[string]int{"a": 1, "b": 2}
	m2 := map[string]int{"b": 2, "a": 1}
	id1, err := Of(m1)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := Of(m2)
	if err != nil {
		t.Fatal(err)
	}
	if !id1.Equal(id2) {
		t.Errorf("maps with same entries produced different ids: %v vs %v", id1, id2)
	}
}

func TestSetDedupesAndIgnoresOrder(t *testing.T) {
	s1 := Collection{1, 2, 2, 3}
	s2 := Collection{3, 2, 1}
	id1, err := Of(s1)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := Of(s2)
	if err != nil {
		t.Fatal(err)
	}
	if !id1.Equal(id2) {
		t.Errorf("sets with same elements produced different ids: %v vs %v", id1, id2)
	}
	set := id1.(Set)
	if len(set.Elems) != 3 {
		t.Errorf("expected set to dedupe to 3 elements, got %d", len(set.Elems))
	}
}

func TestNumericWidening(t *testing.T) {
	a, err := Of(int32(7))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Of(int64(7))
	if err != nil {
		t.Fatal(err)
	}
	c, err := Of(uint8(7))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) || !a.Equal(c) {
		t.Errorf("expected all widths of 7 to collapse to one id: %v, %v, %v", a, b, c)
	}
}

func TestNamedFunctionIdentity(t *testing.T) {
	id, err := Of(expensiveAdd)
	if err != nil {
		t.Fatal(err)
	}
	n, ok := id.(Name)
	if !ok {
		t.Fatalf("expected Name, got %T", id)
	}
	if n.Local != "expensiveAdd" {
		t.Errorf("expected local name expensiveAdd, got %q", n.Local)
	}
}

func TestClosureRejected(t *testing.T) {
	closure := func(x int) int { return x + 1 }
	_, err := Of(closure)
	if err == nil {
		t.Fatal("expected error for anonymous closure")
	}
}

func TestUnregisteredStructRejected(t *testing.T) {
	type point struct{ X, Y int }
	_, err := Of(point{1, 2})
	if err == nil {
		t.Fatal("expected error for struct with no registered hook")
	}
}

func TestRegisteredHook(t *testing.T) {
	type point struct{ X, Y int }
	Register(reflect.TypeOf(point{}), func(v any) (ID, error) {
		p := v.(point)
		xid, _ := Of(p.X)
		yid, _ := Of(p.Y)
		return NewMap([]MapEntry{{Key: Name{Local: "x"}, Value: xid}, {Key: Name{Local: "y"}, Value: yid}}), nil
	})
	defer Unregister(reflect.TypeOf(point{}))

	id, err := Of(point{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := id.(Map); !ok {
		t.Fatalf("expected Map, got %T", id)
	}
}

type fakeTable struct {
	cols map[string][32]byte
	rows int
}

func (f fakeTable) Shape() (int, int)         { return f.rows, len(f.cols) }
func (f fakeTable) ColumnNames() []string {
	names := make([]string, 0, len(f.cols))
	for n := range f.cols {
		names = append(names, n)
	}
	return names
}
func (f fakeTable) ColumnHash(name string) [32]byte { return f.cols[name] }
func (f fakeTable) InferenceMeta() map[string]any   { return nil }

func TestTabularDerivationChangesIdentity(t *testing.T) {
	orig := fakeTable{rows: 10, cols: map[string][32]byte{"a": {1}, "b": {2}}}
	mutated := fakeTable{rows: 10, cols: map[string][32]byte{"a": {1}, "b": {9}}}

	id1, err := Of(orig)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := Of(mutated)
	if err != nil {
		t.Fatal(err)
	}
	if id1.Equal(id2) {
		t.Fatal("mutating a column must change the identifier even though shape is preserved")
	}
}
