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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	s.Set(ctx, "user-1", "k1", true, time.Minute)
	s.Set(ctx, "user-1", "k2", false, time.Minute)

	allowed, ok := s.Get(ctx, "user-1", "k1")
	assert.True(t, ok)
	assert.True(t, allowed)

	allowed, ok = s.Get(ctx, "user-1", "k2")
	assert.True(t, ok)
	assert.False(t, allowed)

	_, ok = s.Get(ctx, "user-1", "missing")
	assert.False(t, ok)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	s.Set(ctx, "user-1", "k1", true, time.Minute)

	mr.FastForward(2 * time.Minute)
	_, ok := s.Get(ctx, "user-1", "k1")
	assert.False(t, ok)
}

func TestRedisStore_HonorsTTLAboveDefault(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	s.Set(ctx, "user-1", "k1", true, 4*DefaultTTL)

	mr.FastForward(2 * DefaultTTL)
	allowed, ok := s.Get(ctx, "user-1", "k1")
	assert.True(t, ok, "entry must survive past DefaultTTL when a longer TTL was requested")
	assert.True(t, allowed)

	// The per-user index set must still cover the long-lived entry.
	s.InvalidateUser(ctx, "user-1")
	_, ok = s.Get(ctx, "user-1", "k1")
	assert.False(t, ok)
}

func TestRedisStore_IndexOutlivesShorterEntries(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	s.Set(ctx, "user-1", "k-long", true, time.Hour)
	s.Set(ctx, "user-1", "k-short", true, time.Minute)

	mr.FastForward(30 * time.Minute)

	// A later short write must not shrink the index set's lifetime below
	// the long entry's.
	_, ok := s.Get(ctx, "user-1", "k-long")
	assert.True(t, ok)
	s.InvalidateUser(ctx, "user-1")
	_, ok = s.Get(ctx, "user-1", "k-long")
	assert.False(t, ok)
}

// TestPurpose: Validates that invalidating a user removes all of that user's decisions and nothing else.
// Scope: Unit Test
// Security: Privilege revocation latency across replicas
// Expected: All keys in the user's index set are deleted; other users are untouched.
// Test Case ID: CA-02
func TestRedisStore_InvalidateUser(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	s.Set(ctx, "user-1", "k1", true, time.Minute)
	s.Set(ctx, "user-1", "k2", true, time.Minute)
	s.Set(ctx, "user-2", "k3", true, time.Minute)

	s.InvalidateUser(ctx, "user-1")

	_, ok := s.Get(ctx, "user-1", "k1")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "user-1", "k2")
	assert.False(t, ok)

	allowed, ok := s.Get(ctx, "user-2", "k3")
	require.True(t, ok)
	assert.True(t, allowed)
}

func TestRedisStore_ErrorsDegradeToMiss(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	s.Set(ctx, "user-1", "k1", true, time.Minute)
	mr.Close()

	_, ok := s.Get(ctx, "user-1", "k1")
	assert.False(t, ok)
}
