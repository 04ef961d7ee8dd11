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
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"
)

// redisKeyPrefix namespaces the usage hashes.
const redisKeyPrefix = "trackexport:provider_usage:"

// redisKey returns the name of the hash for apiKey. The token itself
// never appears in key names, which are visible to anyone who can list
// keys.
func redisKey(apiKey string) string {
	h := blake3.New()
	h.Write([]byte(apiKey))
	return redisKeyPrefix + hex.EncodeToString(h.Sum(nil)[:16])
}

// RedisStore keeps one hash per API key in Redis, which lets several
// processes share a quota.
type RedisStore struct {
	client *redis.Client
}

// OpenRedisStore connects to the Redis server at url, for example
// "redis://localhost:6379/0".
func OpenRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

// NewRedisStore returns a store that uses client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, apiKey string) (UsageRecord, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(apiKey)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(fields) == 0) {
		return UsageRecord{}, nil
	}
	if err != nil {
		return UsageRecord{}, fmt.Errorf("reading provider usage: %w", err)
	}

	rec := UsageRecord{
		APIKey:         apiKey,
		LastResetMonth: fields["last_reset_month"],
	}
	if v := fields["usage_count"]; v != "" {
		rec.UsageCount, err = strconv.Atoi(v)
		if err != nil {
			return UsageRecord{}, fmt.Errorf("invalid usage count %q: %w", v, err)
		}
	}
	return rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec UsageRecord) error {
	err := s.client.HSet(ctx, redisKey(rec.APIKey),
		"usage_count", rec.UsageCount,
		"last_reset_month", rec.LastResetMonth,
	).Err()
	if err != nil {
		return fmt.Errorf("saving provider usage: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
