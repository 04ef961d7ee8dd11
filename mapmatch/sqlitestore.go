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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
)

const createUsageTable = `
CREATE TABLE IF NOT EXISTS "provider_usage" (
	"api_key" TEXT PRIMARY KEY,
	"usage_count" INTEGER NOT NULL DEFAULT 0,
	"last_reset_month" TEXT NOT NULL DEFAULT ''
)`

// SQLiteStore keeps usage records in a SQLite database, one row per
// API key.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("making folder for quota database: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening quota database: %w", err)
	}
	if _, err := db.Exec(createUsageTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up quota database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, apiKey string) (UsageRecord, error) {
	rec := UsageRecord{APIKey: apiKey}
	err := s.db.QueryRowContext(ctx,
		`SELECT usage_count, last_reset_month FROM provider_usage WHERE api_key=? LIMIT 1`,
		apiKey).Scan(&rec.UsageCount, &rec.LastResetMonth)
	if errors.Is(err, sql.ErrNoRows) {
		return UsageRecord{}, nil
	}
	if err != nil {
		return UsageRecord{}, fmt.Errorf("querying provider usage: %w", err)
	}
	return rec, nil
}

// Save upserts the record. A row saved for an older month never
// overwrites a newer one.
func (s *SQLiteStore) Save(ctx context.Context, rec UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_usage (api_key, usage_count, last_reset_month)
		VALUES (?, ?, ?)
		ON CONFLICT (api_key) DO UPDATE SET
			usage_count = excluded.usage_count,
			last_reset_month = excluded.last_reset_month
		WHERE excluded.last_reset_month >= provider_usage.last_reset_month`,
		rec.APIKey, rec.UsageCount, rec.LastResetMonth)
	if err != nil {
		return fmt.Errorf("saving provider usage: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
