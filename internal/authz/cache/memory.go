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
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	allowed   bool
	userID    string
	expiresAt time.Time
}

// MemoryStore is an in-process LRU decision cache. Each entry carries its
// own expiry: the caller's TTL, bounded below by assignment lifetime, is
// honored as given, so a configured TTL above DefaultTTL works. The LRU
// bounds memory by entry count and handles its own locking; indexMu only
// guards the user -> keys index used for invalidation.
type MemoryStore struct {
	entries *lru.LRU[string, memoryEntry]
	indexMu sync.Mutex
	byUser  map[string]map[string]struct{}
	now     func() time.Time
}

// NewMemoryStore creates a memory decision cache holding at most size
// entries.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = 4096
	}
	s := &MemoryStore{
		byUser: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
	// TTL 0 disables the LRU's own time-based expiry; per-entry expiry in
	// Get governs freshness and the size bound governs memory. The eviction
	// callback must only touch state guarded by indexMu.
	s.entries = lru.NewLRU(size, func(key string, e memoryEntry) {
		s.indexMu.Lock()
		defer s.indexMu.Unlock()
		if keys, ok := s.byUser[e.userID]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.byUser, e.userID)
			}
		}
	}, 0)
	return s
}

// Get returns a fresh cached decision.
func (s *MemoryStore) Get(ctx context.Context, userID, key string) (bool, bool) {
	e, ok := s.entries.Get(key)
	if !ok || e.userID != userID {
		return false, false
	}
	if !e.expiresAt.After(s.now()) {
		s.entries.Remove(key)
		return false, false
	}
	return e.allowed, true
}

// Set memoizes a decision. Writes are skipped when the request was already
// aborted upstream.
func (s *MemoryStore) Set(ctx context.Context, userID, key string, allowed bool, ttl time.Duration) {
	if ctx.Err() != nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.entries.Add(key, memoryEntry{
		allowed:   allowed,
		userID:    userID,
		expiresAt: s.now().Add(ttl),
	})

	s.indexMu.Lock()
	keys, ok := s.byUser[userID]
	if !ok {
		keys = make(map[string]struct{})
		s.byUser[userID] = keys
	}
	keys[key] = struct{}{}
	s.indexMu.Unlock()
}

// InvalidateUser drops every decision cached for the user.
func (s *MemoryStore) InvalidateUser(ctx context.Context, userID string) {
	s.indexMu.Lock()
	keys := make([]string, 0, len(s.byUser[userID]))
	for key := range s.byUser[userID] {
		keys = append(keys, key)
	}
	delete(s.byUser, userID)
	s.indexMu.Unlock()

	for _, key := range keys {
		s.entries.Remove(key)
	}
}
