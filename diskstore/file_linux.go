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

//go:build linux
// +build linux

package diskstore

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for f before it is written, the way
// dcache.mmap fallocates new cache entries up front instead of
// growing the file a write at a time.
func preallocate(f *os.File, size int64) error {
	if err := f.Truncate(size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	return unix.Fallocate(int(f.Fd()), 0, 0, size)
}

// readBlob reads the whole of f via a read-only mmap, copying it into
// a heap buffer and unmapping immediately. Unlike dcache's long-lived
// refcounted mappings (needed because the query VM reads directly out
// of mapped memory while a scan is in flight), pocket-go's caller
// decodes the blob once and is done with the raw bytes, so there's no
// need to keep the mapping or its reference count alive past this
// call.
func readBlob(f *os.File, size int64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	defer unix.Munmap(mem)
	out := make([]byte, size)
	copy(out, mem)
	return out, nil
}
