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

//go:build !linux
// +build !linux

package diskstore

import (
	"io"
	"os"
)

// preallocate just truncates on platforms without fallocate(2).
func preallocate(f *os.File, size int64) error {
	return f.Truncate(size)
}

// readBlob reads the whole file with a regular read on platforms
// where mmap isn't worth the complexity for this package.
func readBlob(f *os.File, size int64) ([]byte, error) {
	return io.ReadAll(f)
}
