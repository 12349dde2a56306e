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

import (
	"os"
	"strconv"
	"time"
)

// envOverrides mirrors overrides but is read fresh from the process
// environment on every Current() call, the way auth.NewEnvProvider
// reads SNELLER_* variables fresh rather than caching them at
// startup.
type envOverrides struct {
	BaseCacheDir    *string
	Storage         *Storage
	MemCacheOptions struct {
		Policy    *string
		Threshold *int
		TTL       *time.Duration
	}
	FilenameLengthLimit *int
}

func loadEnv() envOverrides {
	var e envOverrides
	if v, ok := os.LookupEnv("POCKET_BASE_CACHE_DIR"); ok {
		e.BaseCacheDir = &v
	}
	if v, ok := os.LookupEnv("POCKET_STORAGE"); ok {
		s := Storage(v)
		if s.valid() {
			e.Storage = &s
		}
	}
	if v, ok := os.LookupEnv("POCKET_MEM_POLICY"); ok {
		e.MemCacheOptions.Policy = &v
	}
	if v, ok := os.LookupEnv("POCKET_MEM_THRESHOLD"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			e.MemCacheOptions.Threshold = &n
		}
	}
	if v, ok := os.LookupEnv("POCKET_MEM_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			e.MemCacheOptions.TTL = &d
		}
	}
	if v, ok := os.LookupEnv("POCKET_FILENAME_LENGTH_LIMIT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			e.FilenameLengthLimit = &n
		}
	}
	return e
}
