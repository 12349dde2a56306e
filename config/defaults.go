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
	_ "embed"
	"time"

	"sigs.k8s.io/yaml"
)

//go:embed defaults.yaml
var defaultsResource []byte

// hardcoded is the absolute last resort: used whole if the embedded
// resource fails to parse (it never should; it's compiled into the
// binary), and field by field by loadDefaults when the resource leaves
// the base cache dir, storage mode, mem policy or filename length
// limit empty or invalid.
var hardcoded = Record{
	BaseCacheDir:        ".pocket-cache",
	Storage:             StorageMemDisk,
	MemCacheOptions:     MemCacheOptions{Policy: "lru", Threshold: 10_000},
	FilenameLengthLimit: 120,
}

type yamlDefaults struct {
	BaseCacheDir        string `json:"base-cache-dir"`
	Storage             string `json:"storage"`
	MemPolicy           string `json:"mem-policy"`
	MemThreshold        int    `json:"mem-threshold"`
	MemTTL              string `json:"mem-ttl"`
	FilenameLengthLimit int    `json:"filename-length-limit"`
}

// loadDefaults parses the embedded defaults.yaml resource (via
// sigs.k8s.io/yaml, so the file stays human-edited YAML while
// decoding through the same json-tagged struct the rest of config
// uses) into a Record, falling back to hardcoded on any parse
// failure.
func loadDefaults() Record {
	var y yamlDefaults
	if err := yaml.Unmarshal(defaultsResource, &y); err != nil {
		return hardcoded
	}
	ttl, err := time.ParseDuration(y.MemTTL)
	if err != nil {
		ttl = 0
	}
	storage := Storage(y.Storage)
	if !storage.valid() {
		storage = hardcoded.Storage
	}
	rec := Record{
		BaseCacheDir: y.BaseCacheDir,
		Storage:      storage,
		MemCacheOptions: MemCacheOptions{
			Policy:    y.MemPolicy,
			Threshold: y.MemThreshold,
			TTL:       ttl,
		},
		FilenameLengthLimit: y.FilenameLengthLimit,
	}
	if rec.BaseCacheDir == "" {
		rec.BaseCacheDir = hardcoded.BaseCacheDir
	}
	if rec.MemCacheOptions.Policy == "" {
		rec.MemCacheOptions.Policy = hardcoded.MemCacheOptions.Policy
	}
	if rec.FilenameLengthLimit <= 0 {
		rec.FilenameLengthLimit = hardcoded.FilenameLengthLimit
	}
	return rec
}
