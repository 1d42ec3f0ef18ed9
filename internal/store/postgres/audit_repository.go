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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lexcore/lexcore/internal/audit"
	"github.com/lexcore/lexcore/internal/id"
)

// AuditRepository implements audit.Repository
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append stores one audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	if entry.ID == "" {
		entry.ID = id.NewUUIDv7()
	}

	var metaJSON []byte
	if len(entry.Metadata) > 0 {
		var err error
		metaJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize audit metadata: %w", err)
		}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO audit_entries (
			id, entry_type, user_id, tenant_id, organization_id,
			resource_type, resource_id, action, success, reason, metadata, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		entry.ID, entry.Type, entry.UserID, entry.TenantID, entry.OrganizationID,
		entry.ResourceType, entry.ResourceID, entry.Action, entry.Success,
		entry.Reason, metaJSON, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByTenant returns a tenant's entries within [from, to), oldest first
func (r *AuditRepository) ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]*audit.Entry, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, entry_type, user_id, tenant_id, organization_id,
		       resource_type, resource_id, action, success, reason, metadata, occurred_at
		FROM audit_entries
		WHERE tenant_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at
	`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		var metaJSON []byte

		if err := rows.Scan(
			&e.ID, &e.Type, &e.UserID, &e.TenantID, &e.OrganizationID,
			&e.ResourceType, &e.ResourceID, &e.Action, &e.Success,
			&e.Reason, &metaJSON, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse audit metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than cutoff
func (r *AuditRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `
		DELETE FROM audit_entries WHERE occurred_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
