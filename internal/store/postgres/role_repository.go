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
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lexcore/lexcore/internal/authz"
	"github.com/lexcore/lexcore/internal/id"
	"github.com/lexcore/lexcore/internal/rbac"
)

// RoleRepository implements authz.RoleRepository
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetByID retrieves a role by ID, active or not
func (r *RoleRepository) GetByID(ctx context.Context, roleID string) (*authz.Role, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, name, profession, organization_id, description, is_custom, is_active, created_at, updated_at
		FROM roles
		WHERE id = $1
	`, roleID)
	return scanRole(row)
}

// GetByName retrieves a role by name within an organization; a nil
// organization matches system roles only
func (r *RoleRepository) GetByName(ctx context.Context, name string, organizationID *string) (*authz.Role, error) {
	var row pgx.Row
	if organizationID == nil {
		row = r.db.pool.QueryRow(ctx, `
			SELECT id, name, profession, organization_id, description, is_custom, is_active, created_at, updated_at
			FROM roles
			WHERE name = $1 AND organization_id IS NULL
		`, name)
	} else {
		row = r.db.pool.QueryRow(ctx, `
			SELECT id, name, profession, organization_id, description, is_custom, is_active, created_at, updated_at
			FROM roles
			WHERE name = $1 AND organization_id = $2
		`, name, *organizationID)
	}
	return scanRole(row)
}

// CreateWithPermissions atomically creates a role and links its permissions,
// reusing existing permission rows with the same identity
func (r *RoleRepository) CreateWithPermissions(ctx context.Context, role *authz.Role, defs []authz.PermissionDefinition) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO roles (id, name, profession, organization_id, description, is_custom, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`,
		role.ID, role.Name, string(role.Profession), role.OrganizationID,
		role.Description, role.IsCustom, role.IsActive, role.CreatedAt, role.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrRoleExists
	}

	for _, def := range defs {
		permID, err := ensurePermission(ctx, tx, def)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, role.ID, permID); err != nil {
			return fmt.Errorf("failed to link permission: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit role creation: %w", err)
	}
	return nil
}

// EnsureSeed idempotently ensures a system role and its permission links
// exist. Safe to run on every startup.
func (r *RoleRepository) EnsureSeed(ctx context.Context, role *authz.Role, defs []authz.PermissionDefinition) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var roleID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM roles WHERE name = $1 AND organization_id IS NULL
	`, role.Name).Scan(&roleID)
	if errors.Is(err, pgx.ErrNoRows) {
		roleID = role.ID
		if _, err := tx.Exec(ctx, `
			INSERT INTO roles (id, name, profession, organization_id, description, is_custom, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, NULL, $4, FALSE, TRUE, $5, $6)
		`, role.ID, role.Name, string(role.Profession), role.Description, role.CreatedAt, role.UpdatedAt); err != nil {
			return fmt.Errorf("failed to seed role: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to look up seed role: %w", err)
	}

	for _, def := range defs {
		permID, err := ensurePermission(ctx, tx, def)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, roleID, permID); err != nil {
			return fmt.Errorf("failed to link seed permission: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}

// Deactivate marks a role inactive
func (r *RoleRepository) Deactivate(ctx context.Context, roleID string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE roles SET is_active = FALSE, updated_at = $2
		WHERE id = $1 AND is_active
	`, roleID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

// Permissions lists the permissions linked to a role, with per-link
// condition overrides taking precedence over the permission's own conditions
func (r *RoleRepository) Permissions(ctx context.Context, roleID string) ([]authz.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT p.id, p.resource, p.actions, p.scope, p.conditions, p.description, p.created_at,
		       rp.condition_overrides
		FROM permissions p
		INNER JOIN role_permissions rp ON p.id = rp.permission_id
		WHERE rp.role_id = $1
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
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

// ensurePermission finds or creates the permission row matching a
// definition. Action order is not part of the identity.
func ensurePermission(ctx context.Context, tx pgx.Tx, def authz.PermissionDefinition) (string, error) {
	actions := append([]string(nil), def.Actions...)
	sort.Strings(actions)

	conds := def.Conditions
	if conds == nil {
		conds = []authz.Condition{}
	}
	condJSON, err := json.Marshal(conds)
	if err != nil {
		return "", fmt.Errorf("failed to serialize conditions: %w", err)
	}

	var permID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM permissions
		WHERE resource = $1 AND scope = $2 AND actions = $3 AND conditions = $4
	`, def.Resource, string(def.Scope), actions, condJSON).Scan(&permID)
	if errors.Is(err, pgx.ErrNoRows) {
		permID = id.NewUUIDv7()
		if _, err := tx.Exec(ctx, `
			INSERT INTO permissions (id, resource, actions, scope, conditions, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, permID, def.Resource, actions, string(def.Scope), condJSON, def.Description, time.Now()); err != nil {
			return "", fmt.Errorf("failed to create permission: %w", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to look up permission: %w", err)
	}
	return permID, nil
}

func scanRole(row pgx.Row) (*authz.Role, error) {
	var role authz.Role
	var profession string

	err := row.Scan(
		&role.ID, &role.Name, &profession, &role.OrganizationID,
		&role.Description, &role.IsCustom, &role.IsActive,
		&role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	role.Profession = rbac.Profession(profession)
	return &role, nil
}
