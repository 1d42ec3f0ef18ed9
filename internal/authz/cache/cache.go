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

// Package cache holds short-lived memoized authorization decisions. Entries
// are keyed by the evaluator's canonical decision hash and scoped to a user
// so that any role mutation can drop every decision for that user at once.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is the decision memo lifetime. The evaluator may pass a
// shorter per-entry TTL when the contributing assignments expire sooner.
const DefaultTTL = 15 * time.Minute

// Store is a decision cache backend. Concurrent writers racing on the same
// key are harmless: both results derive from the same inputs, last write
// wins.
type Store interface {
	// Get returns the cached decision and whether it was present and fresh.
	Get(ctx context.Context, userID, key string) (allowed bool, ok bool)

	// Set memoizes a decision for at most ttl.
	Set(ctx context.Context, userID, key string, allowed bool, ttl time.Duration)

	// InvalidateUser drops every cached decision for a user.
	InvalidateUser(ctx context.Context, userID string)
}
