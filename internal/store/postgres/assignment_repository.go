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
	"fmt"
	"time"

	"github.com/lexcore/lexcore/internal/authz"
)

// AssignmentRepository implements authz.AssignmentRepository
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Insert stores a new assignment
func (r *AssignmentRepository) Insert(ctx context.Context, a *authz.Assignment) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_assignments (
			id, user_id, role_id, organization_id, assigned_by, assigned_at, expires_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		a.ID, a.UserID, a.RoleID, a.OrganizationID,
		a.AssignedBy, a.AssignedAt, a.ExpiresAt, a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// HasLive reports whether an active, unexpired assignment exists for the
// (user, role, organization) triple at now
func (r *AssignmentRepository) HasLive(ctx context.Context, userID, roleID string, organizationID *string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_assignments
			WHERE user_id = $1 AND role_id = $2
			  AND COALESCE(organization_id, '') = COALESCE($3, '')
			  AND is_active
			  AND (expires_at IS NULL OR expires_at > $4)
		)
	`, userID, roleID, organizationID, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment existence: %w", err)
	}
	return exists, nil
}

// ListLiveForUser returns the user's active, unexpired assignments
func (r *AssignmentRepository) ListLiveForUser(ctx context.Context, userID string, now time.Time) ([]*authz.Assignment, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, role_id, organization_id, assigned_by, assigned_at, expires_at, is_active
		FROM role_assignments
		WHERE user_id = $1 AND is_active AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY assigned_at
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list user assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*authz.Assignment
	for rows.Next() {
		var a authz.Assignment
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.RoleID, &a.OrganizationID,
			&a.AssignedBy, &a.AssignedAt, &a.ExpiresAt, &a.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

// Deactivate soft-deactivates an assignment
func (r *AssignmentRepository) Deactivate(ctx context.Context, userID, roleID string, organizationID *string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE role_assignments SET is_active = FALSE
		WHERE user_id = $1 AND role_id = $2
		  AND COALESCE(organization_id, '') = COALESCE($3, '')
		  AND is_active
	`, userID, roleID, organizationID)
	if err != nil {
		return fmt.Errorf("failed to deactivate assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

// DeactivateExpiredFor retires expired rows for one (user, role, organization)
// triple so a fresh assignment can claim the live-uniqueness slot
func (r *AssignmentRepository) DeactivateExpiredFor(ctx context.Context, userID, roleID string, organizationID *string, now time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE role_assignments SET is_active = FALSE
		WHERE user_id = $1 AND role_id = $2
		  AND COALESCE(organization_id, '') = COALESCE($3, '')
		  AND is_active AND expires_at IS NOT NULL AND expires_at <= $4
	`, userID, roleID, organizationID, now)
	if err != nil {
		return fmt.Errorf("failed to deactivate expired assignments: %w", err)
	}
	return nil
}

// DeactivateExpired marks rows whose expiry elapsed as inactive
func (r *AssignmentRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE role_assignments SET is_active = FALSE
		WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired assignments: %w", err)
	}
	return tag.RowsAffected(), nil
}
