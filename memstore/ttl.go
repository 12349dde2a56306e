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

package memstore

import "time"

// ttlPolicy expires entries lazily: nothing is ever evicted from
// OnPut, only discovered stale on the next OnGet. A key never looked
// up again simply occupies memory until Clear or Delete — per
// spec.md §4.5 this is documented behavior, not a bug, since pocket-go
// has no background sweeper.
type ttlPolicy struct {
	ttl        time.Duration
	writtenAt  map[string]time.Time
	now        func() time.Time
}

func newTTLPolicy(ttl time.Duration) *ttlPolicy {
	return &ttlPolicy{
		ttl:       ttl,
		writtenAt: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (p *ttlPolicy) OnPut(key string) []string {
	p.writtenAt[key] = p.now()
	return nil
}

func (p *ttlPolicy) OnGet(key string) bool {
	t, ok := p.writtenAt[key]
	if !ok {
		return false
	}
	if p.ttl <= 0 {
		return false
	}
	if p.now().Sub(t) > p.ttl {
		delete(p.writtenAt, key)
		return true
	}
	return false
}

func (p *ttlPolicy) OnRemove(key string) {
	delete(p.writtenAt, key)
}
