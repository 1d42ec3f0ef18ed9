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

package audit

import (
	"context"
	"log/slog"
	"time"
)

// Entry types
const (
	TypeAccessCheck        = "access_check"
	TypeIsolationViolation = "isolation_violation"
	TypeRoleAssigned       = "role_assigned"
	TypeRoleRevoked        = "role_revoked"
	TypeRoleSwitched       = "role_switched"
	TypeCustomRoleCreated  = "custom_role_created"
	TypeKeyRotationNeeded  = "key_rotation_needed"
)

// Entry represents one auditable access decision or security event.
// Append-only; entries are pruned by age, never edited.
type Entry struct {
	ID             string
	Type           string
	UserID         string
	TenantID       string
	OrganizationID string
	ResourceType   string
	ResourceID     string
	Action         string
	Success        bool
	Reason         string
	Metadata       map[string]any
	Timestamp      time.Time
}

// Recorder defines the interface for audit logging. Implementations are
// best-effort: a recording failure must never affect the access decision
// that triggered it.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Repository defines the durable audit sink.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]*Entry, error)
	// Prune deletes entries older than cutoff and reports how many went.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// SlogRecorder implements Recorder using slog
type SlogRecorder struct{}

// NewSlogRecorder creates a new audit recorder writing to the global logger
func NewSlogRecorder() *SlogRecorder {
	return &SlogRecorder{}
}

// Record writes an audit entry to the log
func (l *SlogRecorder) Record(ctx context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", entry.Type),
		slog.String("user_id", entry.UserID),
		slog.String("tenant_id", entry.TenantID),
		slog.String("organization_id", entry.OrganizationID),
		slog.String("resource_type", entry.ResourceType),
		slog.String("resource_id", entry.ResourceID),
		slog.String("action", entry.Action),
		slog.Bool("success", entry.Success),
		slog.Time("timestamp", entry.Timestamp),
	}
	if entry.Reason != "" {
		attrs = append(attrs, slog.String("reason", entry.Reason))
	}

	// Flatten metadata
	if len(entry.Metadata) > 0 {
		group := []any{}
		for k, v := range entry.Metadata {
			// Redact secrets
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	level := slog.LevelInfo
	if entry.Type == TypeIsolationViolation {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// StoreRecorder implements Recorder on top of a durable Repository.
// Persistence failures are swallowed and locally logged so audit never
// becomes a reason to grant or deny access.
type StoreRecorder struct {
	repo Repository
}

// NewStoreRecorder creates a recorder that persists entries.
func NewStoreRecorder(repo Repository) *StoreRecorder {
	return &StoreRecorder{repo: repo}
}

// Record persists an audit entry, best-effort. Appends are skipped when the
// request was already aborted upstream.
func (r *StoreRecorder) Record(ctx context.Context, entry Entry) {
	if ctx.Err() != nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := r.repo.Append(ctx, &entry); err != nil {
		slog.ErrorContext(ctx, "failed to persist audit entry",
			slog.String("audit_type", entry.Type),
			slog.String("error", err.Error()),
		)
	}
}

// Multi fans an entry out to several recorders.
type Multi []Recorder

// NewMulti creates a fanout recorder.
func NewMulti(recorders ...Recorder) Multi {
	return Multi(recorders)
}

// Record delivers the entry to every recorder.
func (m Multi) Record(ctx context.Context, entry Entry) {
	for _, r := range m {
		r.Record(ctx, entry)
	}
}

// isSecret checks if a metadata key likely contains a secret
func isSecret(key string) bool {
	secrets := []string{"password", "secret", "token", "key", "authorization", "ciphertext"}
	for _, s := range secrets {
		if key == s {
			return true
		}
	}
	return false
}
