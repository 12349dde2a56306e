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
	"encoding/hex"
	"path/filepath"
	"strings"
)

const fingerprintPrefixLen = 16

// unsafe matches any character that can't safely appear in a path
// segment across the filesystems pocket-go is expected to run on.
func unsafe(r rune) bool {
	switch r {
	case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
		return true
	}
	return r < 0x20
}

// Sanitize replaces filesystem-unsafe characters in name with '_' and
// caps the result at limit bytes, suffixing a short hash of the full
// name when truncation occurs so two long, same-prefix names never
// collide on disk.
func Sanitize(name string, limit int) string {
	clean := strings.Map(func(r rune) rune {
		if unsafe(r) {
			return '_'
		}
		return r
	}, name)
	if limit <= 0 {
		limit = 120
	}
	if len(clean) <= limit {
		return clean
	}
	sum := digest(name)
	suffix := "-" + hex.EncodeToString(sum[:])[:8]
	keep := limit - len(suffix)
	if keep < 0 {
		keep = 0
	}
	return clean[:keep] + suffix
}

// Path is the on-disk entry location derived from a sanitised function
// name and a Fingerprint, per spec.md §4.2:
// ${base}/${sanitised-fn-name}/${fp[0..N]}
type Path struct {
	Base      string
	FnSegment string
	Prefix    string
}

// Dir returns the directory that holds this entry's meta.yaml and
// value.bin.
func (p Path) Dir() string {
	return filepath.Join(p.Base, p.FnSegment, p.Prefix)
}

// NewPath builds the Path for a call against fnName, under base, with
// the given filename length limit.
func NewPath(base, fnName string, fp Fingerprint, limit int) Path {
	return Path{
		Base:      base,
		FnSegment: Sanitize(fnName, limit),
		Prefix:    fp.Prefix(fingerprintPrefixLen),
	}
}
