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

package diskstore

import (
	"time"

	"gopkg.in/yaml.v2"
)

// Meta is the textual metadata record written alongside every value
// blob, per spec.md §6: human-readable and parseable without loading
// the blob.
type Meta struct {
	FnName         string    `yaml:"fn-name"`
	ID             string    `yaml:"id"`
	Fingerprint    string    `yaml:"fingerprint"`
	EncoderVersion string    `yaml:"encoder-version"`
	CreatedAt      time.Time `yaml:"created-at"`
	ArgsSummary    []string  `yaml:"args-summary"`
}

func marshalMeta(m Meta) ([]byte, error) {
	return yaml.Marshal(m)
}

func unmarshalMeta(b []byte) (Meta, error) {
	var m Meta
	err := yaml.Unmarshal(b, &m)
	return m, err
}
