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

package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/lexcore/lexcore/internal/audit"
	"github.com/lexcore/lexcore/internal/id"
	"github.com/lexcore/lexcore/internal/rbac"
)

// AssignRole grants a role to a user, optionally scoped to an organization
// and with an optional expiry. Fails with ErrRoleNotFound for missing or
// inactive roles and ErrRoleConflict when a live assignment already exists
// for the same (user, role, organization) triple. Any cached decisions for
// the user are dropped.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string, organizationID *string, assignedBy string, expiresAt *time.Time) error {
	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if !role.IsActive {
		return ErrRoleNotFound
	}

	exists, err := s.assignmentRepo.HasLive(ctx, userID, roleID, organizationID, s.now())
	if err != nil {
		return fmt.Errorf("failed to check existing assignment: %w", err)
	}
	if exists {
		return ErrRoleConflict
	}

	// An expired assignment still occupies the triple's uniqueness slot;
	// retire it so re-assignment does not trip the index.
	if err := s.assignmentRepo.DeactivateExpiredFor(ctx, userID, roleID, organizationID, s.now()); err != nil {
		return fmt.Errorf("failed to retire expired assignment: %w", err)
	}

	a := &Assignment{
		ID:             id.NewUUIDv7(),
		UserID:         userID,
		RoleID:         roleID,
		OrganizationID: organizationID,
		AssignedBy:     assignedBy,
		AssignedAt:     s.now(),
		ExpiresAt:      expiresAt,
		IsActive:       true,
	}
	if err := s.assignmentRepo.Insert(ctx, a); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	// A stale grant window after a role change is not acceptable; TTL alone
	// does not cover it.
	s.decisions.InvalidateUser(ctx, userID)

	s.recorder.Record(ctx, audit.Entry{
		Type:           audit.TypeRoleAssigned,
		UserID:         assignedBy,
		OrganizationID: deref(organizationID),
		ResourceType:   "role",
		ResourceID:     roleID,
		Action:         "assign",
		Success:        true,
		Metadata:       map[string]any{"assignee_id": userID},
		Timestamp:      s.now(),
	})
	return nil
}

// RevokeRole soft-deactivates an assignment and drops the user's cached
// decisions. The assignment row stays for the audit trail.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID string, organizationID *string, revokedBy string) error {
	if err := s.assignmentRepo.Deactivate(ctx, userID, roleID, organizationID); err != nil {
		return err
	}
	s.decisions.InvalidateUser(ctx, userID)

	s.recorder.Record(ctx, audit.Entry{
		Type:           audit.TypeRoleRevoked,
		UserID:         revokedBy,
		OrganizationID: deref(organizationID),
		ResourceType:   "role",
		ResourceID:     roleID,
		Action:         "revoke",
		Success:        true,
		Metadata:       map[string]any{"assignee_id": userID},
		Timestamp:      s.now(),
	})
	return nil
}

// SwitchActiveRole verifies the user holds a live assignment for newRole in
// the given organization and drops their cached decisions so subsequent
// checks evaluate under the new role.
func (s *Service) SwitchActiveRole(ctx context.Context, userID, newRole string, organizationID *string) (bool, error) {
	assignments, err := s.assignmentRepo.ListLiveForUser(ctx, userID, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to list assignments: %w", err)
	}

	held := false
	for _, a := range assignments {
		if !sameOrg(a.OrganizationID, organizationID) {
			continue
		}
		role, err := s.roleRepo.GetByID(ctx, a.RoleID)
		if err != nil {
			continue
		}
		if role.IsActive && role.Name == newRole {
			held = true
			break
		}
	}
	if !held {
		return false, nil
	}

	s.decisions.InvalidateUser(ctx, userID)
	s.recorder.Record(ctx, audit.Entry{
		Type:           audit.TypeRoleSwitched,
		UserID:         userID,
		OrganizationID: deref(organizationID),
		ResourceType:   "role",
		ResourceID:     newRole,
		Action:         "switch",
		Success:        true,
		Timestamp:      s.now(),
	})
	return true, nil
}

// GetUserRoles returns the roles behind the user's live assignments only;
// expired and deactivated assignments are excluded.
func (s *Service) GetUserRoles(ctx context.Context, userID string) ([]*Role, error) {
	assignments, err := s.assignmentRepo.ListLiveForUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	seen := map[string]bool{}
	roles := make([]*Role, 0, len(assignments))
	for _, a := range assignments {
		if seen[a.RoleID] {
			continue
		}
		seen[a.RoleID] = true
		role, err := s.roleRepo.GetByID(ctx, a.RoleID)
		if err != nil {
			// A dangling assignment must not break role listing.
			continue
		}
		if role.IsActive {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

// CreateCustomRole atomically creates an organization role with its
// permission set. Permissions are reused when an identical
// (resource, scope, actions) definition already exists. All-or-nothing: any
// failure rolls the whole creation back.
func (s *Service) CreateCustomRole(ctx context.Context, organizationID string, def RoleDefinition, createdBy string) (*Role, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("organization id is required")
	}
	if def.Name == "" {
		return nil, fmt.Errorf("role name is required")
	}
	if !rbac.Known(def.Profession) {
		return nil, fmt.Errorf("unknown profession: %s", def.Profession)
	}
	for _, p := range def.Permissions {
		if !ValidScope(p.Scope) {
			return nil, fmt.Errorf("invalid scope %q for resource %q", p.Scope, p.Resource)
		}
	}

	now := s.now()
	role := &Role{
		ID:             id.NewUUIDv7(),
		Name:           def.Name,
		Profession:     def.Profession,
		OrganizationID: &organizationID,
		Description:    def.Description,
		IsCustom:       true,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.roleRepo.CreateWithPermissions(ctx, role, def.Permissions); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Type:           audit.TypeCustomRoleCreated,
		UserID:         createdBy,
		OrganizationID: organizationID,
		ResourceType:   "role",
		ResourceID:     role.ID,
		Action:         "create",
		Success:        true,
		Metadata:       map[string]any{"role_name": def.Name, "permission_count": len(def.Permissions)},
		Timestamp:      now,
	})
	return role, nil
}

// InitializeDefaultRoles idempotently seeds the system role for each
// profession with its standard permission set. Safe to re-run; links are
// never duplicated.
func (s *Service) InitializeDefaultRoles(ctx context.Context) error {
	for _, seed := range DefaultRoleSeeds() {
		if err := s.roleRepo.EnsureSeed(ctx, seed.Role, seed.Permissions); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", seed.Role.Name, err)
		}
	}
	return nil
}

func sameOrg(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
