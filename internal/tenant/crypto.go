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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lexcore/lexcore/internal/audit"
)

const payloadAlgorithm = "aes-256-gcm"

// EncryptedPayload is a sealed tenant-tagged envelope. The ownership tag
// lives inside the ciphertext: it is written once at encryption time and
// read back out of the decrypted envelope, never trusted from caller input.
// TenantID is repeated outside the ciphertext, bound to it as GCM
// associated data, so a cross-tenant read is distinguishable from a
// corrupted payload before any key is tried.
type EncryptedPayload struct {
	Algorithm  string `json:"algorithm"`
	TenantID   string `json:"tenant_id"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// envelope is the plaintext structure sealed into a payload.
type envelope struct {
	Data           json.RawMessage `json:"data"`
	TenantID       string          `json:"tenant_id"`
	OrganizationID string          `json:"organization_id"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Boundary is the cryptographic tenant boundary: every payload it seals is
// tagged with its owning tenant, and every open verifies the tag against
// the requesting context before returning data.
type Boundary struct {
	keys     KeyProvider
	recorder audit.Recorder
	now      func() time.Time
}

// NewBoundary creates a crypto boundary.
func NewBoundary(keys KeyProvider, recorder audit.Recorder) *Boundary {
	return &Boundary{keys: keys, recorder: recorder, now: time.Now}
}

// EncryptTenantData serializes data together with the context's ownership
// tag and seals the combined envelope under the tenant's key.
func (b *Boundary) EncryptTenantData(ctx context.Context, data any, tc *Context) (*EncryptedPayload, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	env := envelope{
		Data:           raw,
		TenantID:       tc.TenantID,
		OrganizationID: tc.OrganizationID,
		CreatedBy:      tc.UserID,
		CreatedAt:      b.now(),
	}
	plain, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize envelope: %w", err)
	}

	aead, err := b.aead(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &EncryptedPayload{
		Algorithm:  payloadAlgorithm,
		TenantID:   tc.TenantID,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plain, []byte(tc.TenantID)),
	}, nil
}

// DecryptTenantData opens a payload and verifies its ownership tag against
// the requesting context before stripping the tag and returning the data.
// A tag mismatch is an ErrIsolationViolation: a distinct error kind from
// decryption failure, audited as a security event.
func (b *Boundary) DecryptTenantData(ctx context.Context, payload *EncryptedPayload, tc *Context) (json.RawMessage, error) {
	if payload.Algorithm != payloadAlgorithm {
		return nil, fmt.Errorf("unsupported payload algorithm: %s", payload.Algorithm)
	}

	if payload.TenantID != tc.TenantID {
		b.auditViolation(ctx, tc, fmt.Sprintf("payload owned by tenant %s", payload.TenantID))
		return nil, fmt.Errorf("%w: payload sealed for a different tenant", ErrIsolationViolation)
	}

	aead, err := b.aead(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	// The requesting context owns the key at this point; an open failure is
	// corruption or a forged owner field, not a cross-tenant read.
	plain, err := aead.Open(nil, payload.Nonce, payload.Ciphertext, []byte(payload.TenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: authentication failed")
	}

	var env envelope
	if err := json.Unmarshal(plain, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}

	if env.TenantID != tc.TenantID || env.OrganizationID != tc.OrganizationID {
		b.auditViolation(ctx, tc, fmt.Sprintf(
			"isolation tag mismatch: payload owned by tenant %s org %s", env.TenantID, env.OrganizationID))
		return nil, fmt.Errorf("%w: payload owned by another tenant", ErrIsolationViolation)
	}

	return env.Data, nil
}

func (b *Boundary) aead(ctx context.Context, tenantID string) (cipher.AEAD, error) {
	key, err := b.keys.TenantKey(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	return aead, nil
}

func (b *Boundary) auditViolation(ctx context.Context, tc *Context, reason string) {
	b.recorder.Record(ctx, audit.Entry{
		Type:           audit.TypeIsolationViolation,
		UserID:         tc.UserID,
		TenantID:       tc.TenantID,
		OrganizationID: tc.OrganizationID,
		Action:         "decrypt",
		Success:        false,
		Reason:         reason,
		Timestamp:      b.now(),
	})
}
