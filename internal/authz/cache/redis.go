// Copyright 2026 The LexCore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lexcore/lexcore/internal/observability/logger"
)

const (
	redisKeyPrefix  = "lexcore:authz:decision:"
	redisUserPrefix = "lexcore:authz:user:"
)

// RedisStore is a shared decision cache for multi-replica deployments.
// Every decision key is also tracked in a per-user set so invalidation can
// drop all of a user's decisions in one round trip. Cache errors degrade to
// misses; the evaluator re-derives the decision from the catalog.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed decision cache.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns a cached decision.
func (s *RedisStore) Get(ctx context.Context, userID, key string) (bool, bool) {
	val, err := s.client.Get(ctx, redisKeyPrefix+userID+":"+key).Result()
	if err == redis.Nil {
		return false, false
	}
	if err != nil {
		slog.WarnContext(ctx, "decision cache read failed", logger.Error(err))
		return false, false
	}
	return val == "1", true
}

// Set memoizes a decision and indexes it under the user. Skipped when the
// request was aborted upstream.
func (s *RedisStore) Set(ctx context.Context, userID, key string, allowed bool, ttl time.Duration) {
	if ctx.Err() != nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	val := "0"
	if allowed {
		val = "1"
	}

	fullKey := redisKeyPrefix + userID + ":" + key
	userSet := redisUserPrefix + userID

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fullKey, val, ttl)
	pipe.SAdd(ctx, userSet, fullKey)
	// The index set must never expire before its longest-lived member:
	// NX seeds a TTL on a fresh set, GT only ever extends it.
	pipe.ExpireNX(ctx, userSet, ttl)
	pipe.ExpireGT(ctx, userSet, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.WarnContext(ctx, "decision cache write failed", logger.Error(err))
	}
}

// InvalidateUser drops every decision cached for the user.
func (s *RedisStore) InvalidateUser(ctx context.Context, userID string) {
	userSet := redisUserPrefix + userID
	keys, err := s.client.SMembers(ctx, userSet).Result()
	if err != nil && err != redis.Nil {
		slog.WarnContext(ctx, "decision cache invalidation failed", logger.Error(err))
		return
	}
	keys = append(keys, userSet)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		slog.WarnContext(ctx, "decision cache invalidation failed", logger.Error(err))
	}
}
