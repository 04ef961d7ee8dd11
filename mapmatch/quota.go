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
	"fmt"
	"sync"
	"time"

	"github.com/timelinize/trackexport/timeline"
	"go.uber.org/zap"
)

// monthLayout formats the month marker used for lazy monthly resets.
const monthLayout = "2006-01"

// UsageRecord is the persisted usage of the primary provider for one
// API key.
type UsageRecord struct {
	APIKey         string `json:"api_key"`
	UsageCount     int    `json:"usage_count"`
	LastResetMonth string `json:"last_reset_month"` // e.g. "2025-03"
}

// QuotaStore persists usage records.
type QuotaStore interface {
	// Load returns the record for apiKey. If there is none, it returns
	// a zero record and no error.
	Load(ctx context.Context, apiKey string) (UsageRecord, error)

	// Save writes the record, replacing any previous record for its key.
	Save(ctx context.Context, rec UsageRecord) error

	Close() error
}

// Quota governs usage of the primary provider. The provider is eligible
// only while UsageCount / MonthlyLimit < FallbackThresholdRatio. Usage
// counts are kept per calendar month (UTC) and reset lazily when the
// month rolls over, or when the API key changes.
//
// A Quota is safe for concurrent use. Calls are made with a Reservation
// so that concurrent callers can never exceed the threshold together.
type Quota struct {
	MonthlyLimit           int
	FallbackThresholdRatio float64

	store  QuotaStore
	apiKey string
	now    func() time.Time
	log    *zap.Logger

	mu       sync.Mutex
	usage    UsageRecord
	reserved int // reservations not yet committed or released
}

// NewQuota returns a quota for apiKey, persisted in store. Call Load
// before using it.
func NewQuota(store QuotaStore, apiKey string, monthlyLimit int, fallbackThresholdRatio float64) *Quota {
	return &Quota{
		MonthlyLimit:           monthlyLimit,
		FallbackThresholdRatio: fallbackThresholdRatio,
		store:                  store,
		apiKey:                 apiKey,
		now:                    time.Now,
		log:                    timeline.Log.Named(timeline.QuotaLoggerName),
		usage:                  UsageRecord{APIKey: apiKey},
	}
}

// SetClock replaces the source of the current time. It is for tests
// and simulations of month rollover.
func (q *Quota) SetClock(now func() time.Time) {
	q.mu.Lock()
	q.now = now
	q.mu.Unlock()
}

// Load reads the persisted usage. A record for a different API key,
// or from a past month, starts the count over at zero.
func (q *Quota) Load(ctx context.Context) error {
	rec, err := q.store.Load(ctx, q.apiKey)
	if err != nil {
		return fmt.Errorf("loading provider usage: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if rec.APIKey != q.apiKey {
		if rec.APIKey != "" {
			q.log.Info("API key changed; resetting usage count")
		}
		rec = UsageRecord{APIKey: q.apiKey}
	}
	q.usage = rec
	q.rolloverLocked()

	q.log.Debug("loaded provider usage",
		zap.Int("usage_count", q.usage.UsageCount),
		zap.String("month", q.usage.LastResetMonth))

	return nil
}

// rolloverLocked resets the count if the month has changed since the
// last reset. q.mu must be locked.
func (q *Quota) rolloverLocked() {
	month := q.now().UTC().Format(monthLayout)
	if q.usage.LastResetMonth == month {
		return
	}
	if q.usage.LastResetMonth != "" {
		q.log.Info("new month; resetting usage count",
			zap.String("previous_month", q.usage.LastResetMonth),
			zap.Int("previous_usage_count", q.usage.UsageCount),
			zap.String("month", month))
	}
	q.usage.UsageCount = 0
	q.usage.LastResetMonth = month
}

// eligibleLocked reports whether one more call fits under the
// threshold, counting calls in flight. q.mu must be locked.
func (q *Quota) eligibleLocked() bool {
	if q.MonthlyLimit <= 0 {
		return false
	}
	used := float64(q.usage.UsageCount + q.reserved)
	return used/float64(q.MonthlyLimit) < q.FallbackThresholdRatio
}

// Eligible reports whether the primary provider may be called now.
func (q *Quota) Eligible() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rolloverLocked()
	return q.eligibleLocked()
}

// Reserve claims one call of the primary provider. It returns false if
// the provider is not eligible. The returned reservation must be
// either committed or released.
func (q *Quota) Reserve(_ context.Context) (*Reservation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rolloverLocked()
	if !q.eligibleLocked() {
		q.log.Debug("primary provider not eligible",
			zap.Error(timeline.ErrQuotaExceeded),
			zap.Int("usage_count", q.usage.UsageCount),
			zap.Int("in_flight", q.reserved),
			zap.Int("monthly_limit", q.MonthlyLimit),
			zap.Float64("threshold", q.FallbackThresholdRatio))
		return nil, false
	}
	q.reserved++
	return &Reservation{q: q}, true
}

// Usage returns a snapshot of the current usage.
func (q *Quota) Usage() UsageRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rolloverLocked()
	return q.usage
}

// Close closes the underlying store.
func (q *Quota) Close() error {
	return q.store.Close()
}

// Reservation is a claim on one call of the primary provider.
type Reservation struct {
	q    *Quota
	done bool
}

// Commit records a successful call: the usage count is incremented and
// persisted. Only the first call to Commit or Release has any effect.
func (r *Reservation) Commit(ctx context.Context) error {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if r.done {
		return nil
	}
	r.done = true
	q.reserved--

	q.rolloverLocked()
	q.usage.UsageCount++
	q.log.Info("primary provider call counted",
		zap.Int("usage_count", q.usage.UsageCount),
		zap.Int("monthly_limit", q.MonthlyLimit),
		zap.String("month", q.usage.LastResetMonth))

	if err := q.store.Save(ctx, q.usage); err != nil {
		return fmt.Errorf("saving provider usage: %w", err)
	}
	return nil
}

// Release gives back a reservation for a call that failed.
func (r *Reservation) Release() {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	q.reserved--
}
