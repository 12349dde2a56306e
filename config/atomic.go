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

package config

import "sync/atomic"

// atomicOverrides is a snapshot-swap holder for *overrides, per
// spec.md §5's "configuration record is ... protected by atomic
// snapshot-swap" requirement: readers never block on writers and
// never observe a torn update.
type atomicOverrides struct {
	p atomic.Pointer[overrides]
}

func (a *atomicOverrides) load() *overrides    { return a.p.Load() }
func (a *atomicOverrides) store(o *overrides) { a.p.Store(o) }
