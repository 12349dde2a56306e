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

// Package diskstore is the durable half of pocket-go's two-tier cache:
// a directory-per-entry layout with an atomic write protocol adapted
// from tenant/dcache (temp file, then rename), generalized from a
// single mmap'd data segment to a (metadata, value blob) pair.
package diskstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/scicloj/pocket-go/internal/perr"
	"github.com/scicloj/pocket-go/internal/plog"
	"github.com/scicloj/pocket-go/keying"
)

const (
	metaFileName  = "meta.yaml"
	valueFileName = "value.bin"
)

// ErrMiss is returned by Read when no entry exists at the given path.
// It is not an error condition the caller should log: a miss is the
// expected outcome of a cold cache.
var ErrMiss = errors.New("diskstore: miss")

// Store is a directory-backed, content-addressed store of
// (Meta, value blob) pairs. It has no notion of in-flight
// coordination; callers (the engine package) are responsible for
// ensuring only one goroutine fills a given path at a time.
type Store struct {
	Logger plog.Logger
}

// New returns a Store that logs through l (or discards if l is nil).
func New(l plog.Logger) *Store {
	if l == nil {
		l = plog.Discard
	}
	return &Store{Logger: l}
}

func (s *Store) log() plog.Event { return plog.For(s.Logger) }

// Read loads the entry at p. It returns ErrMiss if the entry doesn't
// exist (including a partially-written entry, which is treated as
// absent per spec.md's "no partial state is ever observed"
// invariant), or a *perr.DecodeError if the metadata exists but is
// corrupt.
func (s *Store) Read(p keying.Path) (Meta, []byte, error) {
	dir := p.Dir()
	metaBytes, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, nil, ErrMiss
		}
		return Meta{}, nil, &perr.DiskIOError{Op: "read meta", Cause: err}
	}
	meta, err := unmarshalMeta(metaBytes)
	if err != nil {
		return Meta{}, nil, &perr.DecodeError{Cause: err}
	}

	f, err := os.Open(filepath.Join(dir, valueFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// metadata without a value blob: a partial write, never a
			// valid state to observe. Treat the whole entry as absent.
			return Meta{}, nil, ErrMiss
		}
		return Meta{}, nil, &perr.DiskIOError{Op: "open value", Cause: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Meta{}, nil, &perr.DiskIOError{Op: "stat value", Cause: err}
	}
	value, err := readBlob(f, fi.Size())
	if err != nil {
		return Meta{}, nil, &perr.DiskIOError{Op: "read value", Cause: err}
	}
	return meta, value, nil
}

// Write persists meta and value at p, atomically: both files are
// written under unique temp names and renamed into place only once
// fully flushed to disk, so a concurrent Read observes either both
// files or neither, never a half-written entry. The uuid-suffixed
// temp names (unlike dcache's single fixed ".tmp" suffix) let
// multiple writers race to fill the same entry without clobbering
// each other's in-progress file.
func (s *Store) Write(p keying.Path, meta Meta, value []byte) error {
	dir := p.Dir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return &perr.DiskIOError{Op: "mkdir", Cause: err}
	}

	metaBytes, err := marshalMeta(meta)
	if err != nil {
		return &perr.DiskIOError{Op: "marshal meta", Cause: err}
	}
	suffix := uuid.NewString()
	metaTmp := filepath.Join(dir, metaFileName+".tmp-"+suffix)
	valueTmp := filepath.Join(dir, valueFileName+".tmp-"+suffix)

	mf, err := os.OpenFile(metaTmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return &perr.DiskIOError{Op: "write meta temp", Cause: err}
	}
	_, err = mf.Write(metaBytes)
	if err == nil {
		err = mf.Sync()
	}
	if cerr := mf.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(metaTmp)
		return &perr.DiskIOError{Op: "write meta temp", Cause: err}
	}
	if err := writeValueTemp(valueTmp, value); err != nil {
		os.Remove(metaTmp)
		return err
	}

	if err := os.Rename(valueTmp, filepath.Join(dir, valueFileName)); err != nil {
		os.Remove(metaTmp)
		os.Remove(valueTmp)
		return &perr.DiskIOError{Op: "rename value", Cause: err}
	}
	if err := os.Rename(metaTmp, filepath.Join(dir, metaFileName)); err != nil {
		return &perr.DiskIOError{Op: "rename meta", Cause: err}
	}
	return nil
}

func writeValueTemp(path string, value []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return &perr.DiskIOError{Op: "create value temp", Cause: err}
	}
	defer f.Close()
	if err := preallocate(f, int64(len(value))); err != nil {
		os.Remove(path)
		return &perr.DiskIOError{Op: "preallocate value", Cause: err}
	}
	if _, err := f.WriteAt(value, 0); err != nil {
		os.Remove(path)
		return &perr.DiskIOError{Op: "write value", Cause: err}
	}
	if err := f.Truncate(int64(len(value))); err != nil {
		os.Remove(path)
		return &perr.DiskIOError{Op: "truncate value", Cause: err}
	}
	if err := f.Sync(); err != nil {
		os.Remove(path)
		return &perr.DiskIOError{Op: "sync value", Cause: err}
	}
	return nil
}

// Delete removes the entry at p, if any. Deleting an absent entry is
// not an error.
func (s *Store) Delete(p keying.Path) error {
	if err := os.RemoveAll(p.Dir()); err != nil {
		return &perr.DiskIOError{Op: "delete entry", Cause: err}
	}
	return nil
}

// Nuke removes the entire cache directory. A subsequent Write
// recreates whatever subdirectories it needs.
func Nuke(base string) error {
	if err := os.RemoveAll(base); err != nil {
		return &perr.DiskIOError{Op: "nuke", Cause: err}
	}
	return nil
}

// Enumerate walks base, yielding the Meta of every well-formed entry
// under it (optionally restricted to entries whose sanitised function
// segment equals fnSegment, or all entries if fnSegment is empty).
// Corrupt or partially-written entries are skipped and reported via
// the Store's Logger, never returned as an error, per spec.md §4.4.
func (s *Store) Enumerate(base, fnSegment string) ([]Meta, error) {
	root := base
	if fnSegment != "" {
		root = filepath.Join(base, fnSegment)
	}
	var out []Meta
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || d.Name() != metaFileName {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			s.log().Warnf("enumerate: skipping unreadable entry %s: %s", path, err)
			return nil
		}
		meta, err := unmarshalMeta(raw)
		if err != nil {
			s.log().Warnf("enumerate: skipping corrupt entry %s: %s", path, err)
			return nil
		}
		if _, err := os.Stat(filepath.Join(filepath.Dir(path), valueFileName)); err != nil {
			s.log().Warnf("enumerate: skipping entry missing value blob %s: %s", path, err)
			return nil
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, &perr.DiskIOError{Op: "enumerate", Cause: err}
	}
	return out, nil
}

// Bytes returns the total size, in bytes, of every value.bin under
// base, for cache_stats' disk-bytes field.
func Bytes(base string) (int64, error) {
	var total int64
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || d.Name() != valueFileName {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, &perr.DiskIOError{Op: "disk-bytes", Cause: err}
	}
	return total, nil
}
