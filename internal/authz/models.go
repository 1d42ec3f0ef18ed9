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
	"errors"
	"time"

	"github.com/lexcore/lexcore/internal/rbac"
)

// Domain errors
var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrRoleConflict       = errors.New("active role assignment already exists")
	ErrRoleExists         = errors.New("role already exists")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrEvaluationFailure  = errors.New("permission evaluation failed")
)

// Scope defines the breadth at which a permission applies
type Scope string

const (
	ScopeGlobal       Scope = "GLOBAL"
	ScopeOrganization Scope = "ORGANIZATION"
	ScopePersonal     Scope = "PERSONAL"
	ScopeRoleSpecific Scope = "ROLE_SPECIFIC"
)

// ValidScope reports whether s is one of the defined scopes.
func ValidScope(s Scope) bool {
	switch s {
	case ScopeGlobal, ScopeOrganization, ScopePersonal, ScopeRoleSpecific:
		return true
	}
	return false
}

// Role represents a professional role, either a seeded system role
// (OrganizationID nil) or a custom per-organization role. Roles are never
// hard-deleted; they are deactivated instead.
type Role struct {
	ID             string
	Name           string
	Profession     rbac.Profession
	OrganizationID *string // nil = global/system role
	Description    string
	IsCustom       bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Permission represents a grant over a resource. Permissions are
// deduplicated by (resource, scope, actions) on creation.
type Permission struct {
	ID          string
	Resource    string
	Actions     []string
	Scope       Scope
	Conditions  []Condition
	Description string
	CreatedAt   time.Time
}

// AllowsAction checks if the action is a member of the permission's action set.
func (p *Permission) AllowsAction(action string) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// PermissionDefinition describes a permission to create or reuse when
// building a role.
type PermissionDefinition struct {
	Resource    string      `json:"resource"`
	Actions     []string    `json:"actions"`
	Scope       Scope       `json:"scope"`
	Conditions  []Condition `json:"conditions,omitempty"`
	Description string      `json:"description,omitempty"`
}

// RoleDefinition describes a custom role to create for an organization.
type RoleDefinition struct {
	Name        string                 `json:"name"`
	Profession  rbac.Profession        `json:"profession"`
	Description string                 `json:"description,omitempty"`
	Permissions []PermissionDefinition `json:"permissions"`
}

// Assignment represents a role granted to a user, optionally inside an
// organization and with an optional expiry. Assignments are soft-deactivated,
// never deleted, to preserve the audit trail.
type Assignment struct {
	ID             string
	UserID         string
	RoleID         string
	OrganizationID *string
	AssignedBy     string
	AssignedAt     time.Time
	ExpiresAt      *time.Time
	IsActive       bool
}

// Live reports whether the assignment is active and unexpired at now.
func (a *Assignment) Live(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}

// AccessContext is the per-request value object the evaluator matches
// permissions against. Extra carries free-form request context consulted by
// conditions.
type AccessContext struct {
	UserID         string            `json:"user_id"`
	ActiveRole     string            `json:"active_role"`
	OrganizationID string            `json:"organization_id,omitempty"`
	ResourceID     string            `json:"resource_id,omitempty"`
	ResourceType   string            `json:"resource_type,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// Field resolves a condition field name against the context. Unknown fields
// resolve to the empty string.
func (c *AccessContext) Field(name string) string {
	switch name {
	case "userId", "user_id":
		return c.UserID
	case "activeRole", "active_role":
		return c.ActiveRole
	case "organizationId", "organization_id":
		return c.OrganizationID
	case "resourceId", "resource_id":
		return c.ResourceID
	case "resourceType", "resource_type":
		return c.ResourceType
	}
	return c.Extra[name]
}

// CheckResult is the structured outcome of a detailed permission check.
type CheckResult struct {
	Allowed    bool        `json:"has_permission"`
	Scope      Scope       `json:"scope,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// RoleRepository defines the interface for role and permission persistence.
type RoleRepository interface {
	// GetByID retrieves a role by ID, whether active or not.
	GetByID(ctx context.Context, id string) (*Role, error)

	// GetByName retrieves a role by name within an organization; a nil
	// organization matches system roles only.
	GetByName(ctx context.Context, name string, organizationID *string) (*Role, error)

	// CreateWithPermissions atomically creates the role, reuses or creates
	// each permission (deduplicated by resource+scope+actions), and links
	// them. Any failure rolls back the entire creation.
	CreateWithPermissions(ctx context.Context, role *Role, defs []PermissionDefinition) error

	// EnsureSeed idempotently ensures a system role and its permission
	// links exist. Re-running must not duplicate links.
	EnsureSeed(ctx context.Context, role *Role, defs []PermissionDefinition) error

	// Deactivate marks a role inactive.
	Deactivate(ctx context.Context, id string) error

	// Permissions lists the permissions linked to a role, with condition
	// overrides applied.
	Permissions(ctx context.Context, roleID string) ([]Permission, error)
}

// AssignmentRepository defines the interface for role assignments.
type AssignmentRepository interface {
	// Insert stores a new assignment.
	Insert(ctx context.Context, a *Assignment) error

	// HasLive reports whether an active, unexpired assignment exists for
	// the (user, role, organization) triple at now.
	HasLive(ctx context.Context, userID, roleID string, organizationID *string, now time.Time) (bool, error)

	// ListLiveForUser returns the user's active, unexpired assignments.
	ListLiveForUser(ctx context.Context, userID string, now time.Time) ([]*Assignment, error)

	// Deactivate soft-deactivates an assignment.
	Deactivate(ctx context.Context, userID, roleID string, organizationID *string) error

	// DeactivateExpired marks rows whose expiry elapsed as inactive and
	// returns the number of rows touched. Maintenance only; the read paths
	// already exclude expired rows.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)

	// DeactivateExpiredFor deactivates expired rows for one
	// (user, role, organization) triple. Expired rows still hold the
	// triple's live-uniqueness slot until deactivated, so assignment must
	// clear them before inserting.
	DeactivateExpiredFor(ctx context.Context, userID, roleID string, organizationID *string, now time.Time) error
}

// PermissionRepository resolves effective permissions for the evaluator.
type PermissionRepository interface {
	// EffectiveForUser returns the union of permissions reachable through
	// the user's live assignments that match the active role and
	// organization. Global system roles for the admin profession are always
	// included regardless of organization.
	EffectiveForUser(ctx context.Context, userID, activeRole string, organizationID *string, now time.Time) ([]Permission, error)
}
