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

package tenant

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/lexcore/lexcore/internal/observability/logger"
)

// KeyProvider supplies tenant-scoped symmetric keys to the crypto boundary.
// Implementations may front an external KMS.
type KeyProvider interface {
	// TenantKey returns the 32-byte AES key for a tenant. Returns
	// ErrKeyUnavailable (possibly wrapped) when no key can be supplied.
	TenantKey(ctx context.Context, tenantID string) ([]byte, error)

	// SignalRotation flags a tenant's key material for rotation.
	SignalRotation(ctx context.Context, tenantID string)
}

const keyDerivationInfo = "lexcore/tenant-data/v1"

// HKDFProvider derives per-tenant keys from a deployment master key with
// HKDF-SHA256, salted by the tenant id. Derived keys are memoized; rotation
// requests are surfaced through the callback and the memo dropped.
type HKDFProvider struct {
	master   []byte
	onRotate func(tenantID string)

	mu   sync.RWMutex
	keys map[string][]byte
}

// NewHKDFProvider creates a key provider over the master key. onRotate may
// be nil.
func NewHKDFProvider(master []byte, onRotate func(tenantID string)) (*HKDFProvider, error) {
	if len(master) < 32 {
		return nil, fmt.Errorf("%w: master key must be at least 32 bytes", ErrKeyUnavailable)
	}
	return &HKDFProvider{
		master:   master,
		onRotate: onRotate,
		keys:     make(map[string][]byte),
	}, nil
}

// TenantKey derives (or returns the memoized) key for a tenant.
func (p *HKDFProvider) TenantKey(ctx context.Context, tenantID string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: empty tenant id", ErrKeyUnavailable)
	}

	p.mu.RLock()
	key, ok := p.keys[tenantID]
	p.mu.RUnlock()
	if ok {
		return key, nil
	}

	r := hkdf.New(sha256.New, p.master, []byte(tenantID), []byte(keyDerivationInfo))
	key = make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: derivation failed: %v", ErrKeyUnavailable, err)
	}

	p.mu.Lock()
	p.keys[tenantID] = key
	p.mu.Unlock()
	return key, nil
}

// SignalRotation drops the memoized key and notifies the rotation hook.
func (p *HKDFProvider) SignalRotation(ctx context.Context, tenantID string) {
	p.mu.Lock()
	delete(p.keys, tenantID)
	p.mu.Unlock()

	slog.WarnContext(ctx, "tenant key rotation requested", logger.TenantID(tenantID))
	if p.onRotate != nil {
		p.onRotate(tenantID)
	}
}
