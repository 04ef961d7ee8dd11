/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package mapmatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// OpenQuotaStore opens the quota store described by dsn:
//
//	""                     JSON file at defaultPath
//	file:/path/usage.json  JSON file
//	sqlite:/path/usage.db  SQLite database
//	redis://host:6379/0    Redis server
func OpenQuotaStore(dsn, defaultPath string) (QuotaStore, error) {
	switch {
	case dsn == "":
		return NewFileStore(defaultPath), nil
	case strings.HasPrefix(dsn, "file:"):
		return NewFileStore(strings.TrimPrefix(dsn, "file:")), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return OpenSQLiteStore(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return OpenRedisStore(dsn)
	}
	return nil, fmt.Errorf("unsupported quota store: %s", dsn)
}

// FileStore keeps the usage record in a JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store that persists to the file at path. The
// file and its parent folders are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored record. The file only holds the record of the
// most recent key, and Quota resets the count when the key differs.
func (s *FileStore) Load(_ context.Context, _ string) (UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return UsageRecord{}, nil
	}
	if err != nil {
		return UsageRecord{}, err
	}

	var rec UsageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return UsageRecord{}, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	return rec, nil
}

// Save writes the record to a temporary file and renames it over the
// old one, so a crash never leaves a truncated file.
func (s *FileStore) Save(_ context.Context, rec UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "\t")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (*FileStore) Close() error { return nil }

var (
	_ QuotaStore = (*FileStore)(nil)
	_ QuotaStore = (*SQLiteStore)(nil)
	_ QuotaStore = (*RedisStore)(nil)
)
