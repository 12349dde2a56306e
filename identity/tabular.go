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

import "golang.org/x/exp/slices"

// Tabular is the default identity hook target for tabular datasets,
// the one foreign value shape spec.md names explicitly (rule 9). The
// tabular-dataset library itself is an external collaborator (spec
// §1); this interface is the only surface pocket-go needs from it.
type Tabular interface {
	// Shape returns the dataset's row and column counts.
	Shape() (rows, cols int)
	// ColumnNames returns column names in their natural order.
	ColumnNames() []string
	// ColumnHash returns a digest of a column's contents, used so
	// that two datasets with the same shape and names but different
	// data don't collapse to the same identifier.
	ColumnHash(name string) [32]byte
	// InferenceMeta returns metadata designated as inference-affecting
	// (e.g. the chosen target column): changing it must change the
	// identifier even when every column is untouched.
	InferenceMeta() map[string]any
}

// tabularID implements spec rule 9's default hook: combine shape,
// column names, per-column hashes, and inference-affecting metadata.
// A derivation that mutates a column changes its hash and therefore
// the resulting identifier even when shape is preserved.
func tabularID(t Tabular) (ID, error) {
	rows, cols := t.Shape()
	names := append([]string(nil), t.ColumnNames()...)
	slices.Sort(names)

	entries := make([]MapEntry, 0, 4)
	entries = append(entries, MapEntry{Key: Prim{Kind: PrimString, Str: "shape"}, Value: Seq{Elems: []ID{
		Prim{Kind: PrimInt, Int: int64(rows)},
		Prim{Kind: PrimInt, Int: int64(cols)},
	}}})

	nameIDs := make([]ID, len(names))
	colHashEntries := make([]MapEntry, len(names))
	for i, n := range names {
		nameIDs[i] = Prim{Kind: PrimString, Str: n}
		h := t.ColumnHash(n)
		colHashEntries[i] = MapEntry{
			Key:   Prim{Kind: PrimString, Str: n},
			Value: Prim{Kind: PrimBytes, Bytes: h[:]},
		}
	}
	entries = append(entries, MapEntry{Key: Prim{Kind: PrimString, Str: "column-names"}, Value: Seq{Elems: nameIDs}})
	entries = append(entries, MapEntry{Key: Prim{Kind: PrimString, Str: "column-hashes"}, Value: NewMap(colHashEntries)})

	if meta := t.InferenceMeta(); len(meta) > 0 {
		metaEntries := make([]MapEntry, 0, len(meta))
		for k, v := range meta {
			id, err := Of(v)
			if err != nil {
				return nil, err
			}
			metaEntries = append(metaEntries, MapEntry{Key: Prim{Kind: PrimString, Str: k}, Value: id})
		}
		entries = append(entries, MapEntry{Key: Prim{Kind: PrimString, Str: "inference-meta"}, Value: NewMap(metaEntries)})
	}

	return Opaque{Tag: "tabular", Repr: NewMap(entries)}, nil
}
