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

	"github.com/lexcore/lexcore/internal/authz"
	"github.com/lexcore/lexcore/internal/rbac"
)

// PermissionRepository implements authz.PermissionRepository
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// EffectiveForUser returns the union of permissions reachable through the
// user's live assignments whose role matches the active role name within
// the organization. Global admin roles contribute regardless of the
// assignment's organization.
func (r *PermissionRepository) EffectiveForUser(ctx context.Context, userID, activeRole string, organizationID *string, now time.Time) ([]authz.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT DISTINCT ON (p.id)
		       p.id, p.resource, p.actions, p.scope, p.conditions, p.description, p.created_at,
		       rp.condition_overrides
		FROM role_assignments ra
		INNER JOIN roles r ON ra.role_id = r.id
		INNER JOIN role_permissions rp ON r.id = rp.role_id
		INNER JOIN permissions p ON rp.permission_id = p.id
		WHERE ra.user_id = $1
		  AND ra.is_active
		  AND (ra.expires_at IS NULL OR ra.expires_at > $4)
		  AND r.is_active
		  AND (
		        (r.name = $2 AND COALESCE(ra.organization_id, '') = COALESCE($3, ''))
		     OR (r.profession = $5 AND r.organization_id IS NULL)
		  )
		ORDER BY p.id
	`, userID, activeRole, organizationID, now, string(rbac.ProfessionAdmin))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve effective permissions: %w", err)
	}
	defer rows.Close()

	var perms []authz.Permission
	for rows.Next() {
		var p authz.Permission
		var scopeStr string
		var condRaw, overrideRaw []byte

		if err := rows.Scan(
			&p.ID, &p.Resource, &p.Actions, &scopeStr, &condRaw, &p.Description, &p.CreatedAt,
			&overrideRaw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}

		p.Scope = authz.Scope(scopeStr)
		src := condRaw
		if len(overrideRaw) > 0 {
			src = overrideRaw
		}
		if len(src) > 0 {
			if err := json.Unmarshal(src, &p.Conditions); err != nil {
				return nil, fmt.Errorf("failed to parse permission conditions: %w", err)
			}
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
