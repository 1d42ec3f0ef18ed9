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

package authz_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcore/lexcore/internal/audit"
	"github.com/lexcore/lexcore/internal/authz"
	"github.com/lexcore/lexcore/internal/authz/cache"
	"github.com/lexcore/lexcore/internal/rbac"
)

// fakeRoleRepo implements authz.RoleRepository for testing
type fakeRoleRepo struct {
	roles map[string]*authz.Role
	perms map[string][]authz.Permission
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		roles: map[string]*authz.Role{},
		perms: map[string][]authz.Permission{},
	}
}

func (f *fakeRoleRepo) GetByID(_ context.Context, id string) (*authz.Role, error) {
	if r, ok := f.roles[id]; ok {
		return r, nil
	}
	return nil, authz.ErrRoleNotFound
}

func (f *fakeRoleRepo) GetByName(_ context.Context, name string, organizationID *string) (*authz.Role, error) {
	for _, r := range f.roles {
		if r.Name != name {
			continue
		}
		if organizationID == nil && r.OrganizationID == nil {
			return r, nil
		}
		if organizationID != nil && r.OrganizationID != nil && *organizationID == *r.OrganizationID {
			return r, nil
		}
	}
	return nil, authz.ErrRoleNotFound
}

func (f *fakeRoleRepo) CreateWithPermissions(_ context.Context, role *authz.Role, defs []authz.PermissionDefinition) error {
	if _, ok := f.roles[role.ID]; ok {
		return authz.ErrRoleExists
	}
	f.roles[role.ID] = role
	for _, def := range defs {
		f.perms[role.ID] = append(f.perms[role.ID], authz.Permission{
			Resource:   def.Resource,
			Actions:    def.Actions,
			Scope:      def.Scope,
			Conditions: def.Conditions,
		})
	}
	return nil
}

func (f *fakeRoleRepo) EnsureSeed(ctx context.Context, role *authz.Role, defs []authz.PermissionDefinition) error {
	if _, err := f.GetByName(ctx, role.Name, nil); err == nil {
		return nil
	}
	return f.CreateWithPermissions(ctx, role, defs)
}

func (f *fakeRoleRepo) Deactivate(_ context.Context, id string) error {
	r, ok := f.roles[id]
	if !ok {
		return authz.ErrRoleNotFound
	}
	r.IsActive = false
	return nil
}

func (f *fakeRoleRepo) Permissions(_ context.Context, roleID string) ([]authz.Permission, error) {
	return f.perms[roleID], nil
}

// fakeAssignmentRepo implements authz.AssignmentRepository for testing.
// Insert enforces the same one-live-row-per-triple uniqueness the database
// index does, counting expired-but-active rows like the index.
type fakeAssignmentRepo struct {
	assignments []*authz.Assignment
}

func (f *fakeAssignmentRepo) Insert(_ context.Context, a *authz.Assignment) error {
	for _, existing := range f.assignments {
		if existing.IsActive && existing.UserID == a.UserID && existing.RoleID == a.RoleID &&
			sameOrgPtr(existing.OrganizationID, a.OrganizationID) {
			return errors.New(`duplicate key value violates unique constraint "idx_assignments_live"`)
		}
	}
	f.assignments = append(f.assignments, a)
	return nil
}

func (f *fakeAssignmentRepo) DeactivateExpiredFor(_ context.Context, userID, roleID string, organizationID *string, now time.Time) error {
	for _, a := range f.assignments {
		if a.IsActive && a.UserID == userID && a.RoleID == roleID &&
			sameOrgPtr(a.OrganizationID, organizationID) &&
			a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
			a.IsActive = false
		}
	}
	return nil
}

func (f *fakeAssignmentRepo) HasLive(_ context.Context, userID, roleID string, organizationID *string, now time.Time) (bool, error) {
	for _, a := range f.assignments {
		if a.UserID == userID && a.RoleID == roleID && sameOrgPtr(a.OrganizationID, organizationID) && a.Live(now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignmentRepo) ListLiveForUser(_ context.Context, userID string, now time.Time) ([]*authz.Assignment, error) {
	var out []*authz.Assignment
	for _, a := range f.assignments {
		if a.UserID == userID && a.Live(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) Deactivate(_ context.Context, userID, roleID string, organizationID *string) error {
	for _, a := range f.assignments {
		if a.UserID == userID && a.RoleID == roleID && sameOrgPtr(a.OrganizationID, organizationID) && a.IsActive {
			a.IsActive = false
			return nil
		}
	}
	return authz.ErrRoleNotFound
}

func (f *fakeAssignmentRepo) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, a := range f.assignments {
		if a.IsActive && a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
			a.IsActive = false
			n++
		}
	}
	return n, nil
}

func sameOrgPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// fakePermRepo implements authz.PermissionRepository for testing
type fakePermRepo struct {
	perms map[string][]authz.Permission
	calls int
	err   error
	panic bool
}

func (f *fakePermRepo) EffectiveForUser(_ context.Context, userID, _ string, _ *string, _ time.Time) ([]authz.Permission, error) {
	f.calls++
	if f.panic {
		panic("repository gone")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.perms[userID], nil
}

// captureRecorder records audit entries for assertions
type captureRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *captureRecorder) Record(_ context.Context, entry audit.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureRecorder) byType(t string) []audit.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []audit.Entry
	for _, e := range c.entries {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	roles       *fakeRoleRepo
	assignments *fakeAssignmentRepo
	perms       *fakePermRepo
	recorder    *captureRecorder
	svc         *authz.Service
}

func newFixture() *fixture {
	f := &fixture{
		roles:       newFakeRoleRepo(),
		assignments: &fakeAssignmentRepo{},
		perms:       &fakePermRepo{perms: map[string][]authz.Permission{}},
		recorder:    &captureRecorder{},
	}
	f.svc = authz.NewService(f.roles, f.assignments, f.perms, cache.NewMemoryStore(128), f.recorder)
	return f
}

// grantRole wires a role plus a live assignment for a user
func (f *fixture) grantRole(userID, roleID, roleName string, profession rbac.Profession, orgID *string, expiresAt *time.Time) {
	if _, ok := f.roles.roles[roleID]; !ok {
		f.roles.roles[roleID] = &authz.Role{
			ID:         roleID,
			Name:       roleName,
			Profession: profession,
			IsActive:   true,
		}
	}
	f.assignments.assignments = append(f.assignments.assignments, &authz.Assignment{
		ID:             "asg-" + roleID + "-" + userID,
		UserID:         userID,
		RoleID:         roleID,
		OrganizationID: orgID,
		AssignedBy:     "admin-1",
		AssignedAt:     time.Now().Add(-time.Hour),
		ExpiresAt:      expiresAt,
		IsActive:       true,
	})
}

func strPtr(s string) *string { return &s }

// TestPurpose: Validates that a principal's granted permissions admit the granted actions and nothing beyond them.
// Scope: Unit Test
// Security: Least privilege enforcement
// Expected: Read, write and share on dossiers are allowed; delete is denied.
// Test Case ID: AZ-01
func TestCheckPermission_GrantedActionsOnly(t *testing.T) {
	f := newFixture()
	f.grantRole("user-1", "role-avocat", "avocat", rbac.ProfessionAvocat, strPtr("org-1"), nil)
	f.perms.perms["user-1"] = []authz.Permission{
		{Resource: rbac.ResourceDossier, Actions: []string{"read", "write", "share"}, Scope: authz.ScopePersonal},
	}

	ctx := context.Background()
	actx := authz.AccessContext{ActiveRole: "avocat", OrganizationID: "org-1"}

	assert.True(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "read", actx))
	assert.True(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "write", actx))
	assert.True(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "share", actx))
	assert.False(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "delete", actx))
	assert.False(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceActe, "read", actx))
}

// TestPurpose: Validates that organization-scoped permissions never match a request lacking an organization.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: The check is denied when the access context carries no organization ID.
// Test Case ID: AZ-02
func TestCheckPermission_OrganizationScopeRequiresOrganization(t *testing.T) {
	f := newFixture()
	f.grantRole("user-1", "role-juriste", "juriste", rbac.ProfessionJuriste, strPtr("org-1"), nil)
	f.perms.perms["user-1"] = []authz.Permission{
		{Resource: rbac.ResourceDocument, Actions: []string{"read"}, Scope: authz.ScopeOrganization},
	}

	ctx := context.Background()
	assert.False(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDocument, "read",
		authz.AccessContext{ActiveRole: "juriste"}))
	assert.True(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDocument, "read",
		authz.AccessContext{ActiveRole: "juriste", OrganizationID: "org-1"}))
}

// TestPurpose: Validates that all conditions on a permission must hold for it to match.
// Scope: Unit Test
// Security: Conditional grant enforcement
// Expected: The permission applies only when every condition passes.
// Test Case ID: AZ-03
func TestCheckPermission_ConditionsAreConjunctive(t *testing.T) {
	f := newFixture()
	f.grantRole("user-1", "role-custom", "stagiaire-restreint", rbac.ProfessionEtudiant, strPtr("org-1"), nil)
	f.perms.perms["user-1"] = []authz.Permission{
		{
			Resource: rbac.ResourceDossier,
			Actions:  []string{"read"},
			Scope:    authz.ScopeRoleSpecific,
			Conditions: []authz.Condition{
				{Field: "organization_id", Operator: authz.OpEquals, Value: "org-1"},
				{Field: "resource_type", Operator: authz.OpEquals, Value: rbac.ResourceDossier},
			},
		},
	}

	ctx := context.Background()
	allowed := f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "read", authz.AccessContext{
		ActiveRole:     "stagiaire-restreint",
		OrganizationID: "org-1",
		ResourceType:   rbac.ResourceDossier,
	})
	assert.True(t, allowed)

	denied := f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "read", authz.AccessContext{
		ActiveRole:     "stagiaire-restreint",
		OrganizationID: "org-2",
		ResourceType:   rbac.ResourceDossier,
	})
	assert.False(t, denied)
}

// TestPurpose: Validates that any internal failure during evaluation results in a denial, never a grant or a crash.
// Scope: Unit Test
// Security: Fail-secure evaluation
// Expected: Repository errors and panics both yield a denied decision with an audit record.
// Test Case ID: AZ-04
func TestCheckPermission_FailSecure(t *testing.T) {
	t.Run("repository error denies", func(t *testing.T) {
		f := newFixture()
		f.grantRole("user-1", "role-avocat", "avocat", rbac.ProfessionAvocat, strPtr("org-1"), nil)
		f.perms.err = assert.AnError

		result := f.svc.CheckPermissionDetailed(context.Background(), "user-1", rbac.ResourceDossier, "read",
			authz.AccessContext{ActiveRole: "avocat", OrganizationID: "org-1"})
		assert.False(t, result.Allowed)
		assert.Equal(t, "evaluation failed", result.Reason)

		checks := f.recorder.byType(audit.TypeAccessCheck)
		require.NotEmpty(t, checks)
		assert.False(t, checks[len(checks)-1].Success)
	})

	t.Run("panic denies", func(t *testing.T) {
		f := newFixture()
		f.grantRole("user-1", "role-avocat", "avocat", rbac.ProfessionAvocat, strPtr("org-1"), nil)
		f.perms.panic = true

		assert.NotPanics(t, func() {
			result := f.svc.CheckPermissionDetailed(context.Background(), "user-1", rbac.ResourceDossier, "read",
				authz.AccessContext{ActiveRole: "avocat", OrganizationID: "org-1"})
			assert.False(t, result.Allowed)
		})
	})
}

// TestPurpose: Validates that an expired assignment contributes no permissions.
// Scope: Unit Test
// Security: Temporal privilege revocation
// Expected: A check after the assignment's expiry is denied without consulting its permissions.
// Test Case ID: AZ-05
func TestCheckPermission_ExpiredAssignmentExcluded(t *testing.T) {
	f := newFixture()
	expired := time.Now().Add(-time.Minute)
	f.grantRole("user-1", "role-avocat", "avocat", rbac.ProfessionAvocat, strPtr("org-1"), &expired)
	f.perms.perms["user-1"] = nil // live assignments resolve to nothing

	denied := f.svc.CheckPermission(context.Background(), "user-1", rbac.ResourceDossier, "read",
		authz.AccessContext{ActiveRole: "avocat", OrganizationID: "org-1"})
	assert.False(t, denied)
}

func TestCheckPermission_CachesDecision(t *testing.T) {
	f := newFixture()
	f.grantRole("user-1", "role-avocat", "avocat", rbac.ProfessionAvocat, strPtr("org-1"), nil)
	f.perms.perms["user-1"] = []authz.Permission{
		{Resource: rbac.ResourceDossier, Actions: []string{"read"}, Scope: authz.ScopePersonal},
	}

	ctx := context.Background()
	actx := authz.AccessContext{ActiveRole: "avocat", OrganizationID: "org-1"}

	assert.True(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "read", actx))
	assert.True(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "read", actx))
	assert.Equal(t, 1, f.perms.calls)

	// A different action is a different cache key.
	assert.False(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "write", actx))
	assert.Equal(t, 2, f.perms.calls)
}

// TestPurpose: Validates that a cached decision cannot outlive the assignment that produced it.
// Scope: Unit Test
// Security: Temporal privilege revocation
// Expected: After the assignment expires, the cached grant is gone and the check re-evaluates to a denial.
// Test Case ID: AZ-06
func TestCheckPermission_CacheTTLBoundedByAssignmentExpiry(t *testing.T) {
	f := newFixture()
	expiry := time.Now().Add(150 * time.Millisecond)
	f.grantRole("user-1", "role-avocat", "avocat", rbac.ProfessionAvocat, strPtr("org-1"), &expiry)
	f.perms.perms["user-1"] = []authz.Permission{
		{Resource: rbac.ResourceDossier, Actions: []string{"read"}, Scope: authz.ScopePersonal},
	}

	ctx := context.Background()
	actx := authz.AccessContext{ActiveRole: "avocat", OrganizationID: "org-1"}

	assert.True(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "read", actx))

	time.Sleep(200 * time.Millisecond)

	// Assignment has expired: the permission join no longer sees it, and the
	// cached grant must not outlive it either.
	f.perms.perms["user-1"] = nil
	assert.False(t, f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "read", actx))
	assert.Equal(t, 2, f.perms.calls)
}

func TestCheckPermission_AuditsEveryDecision(t *testing.T) {
	f := newFixture()
	f.grantRole("user-1", "role-avocat", "avocat", rbac.ProfessionAvocat, strPtr("org-1"), nil)
	f.perms.perms["user-1"] = []authz.Permission{
		{Resource: rbac.ResourceDossier, Actions: []string{"read"}, Scope: authz.ScopePersonal},
	}

	ctx := context.Background()
	actx := authz.AccessContext{ActiveRole: "avocat", OrganizationID: "org-1"}

	f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "read", actx)
	f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "read", actx) // cache hit
	f.svc.CheckPermission(ctx, "user-1", rbac.ResourceDossier, "delete", actx)

	checks := f.recorder.byType(audit.TypeAccessCheck)
	require.Len(t, checks, 3)
	assert.True(t, checks[0].Success)
	assert.True(t, checks[1].Success)
	assert.Equal(t, "cached decision", checks[1].Reason)
	assert.False(t, checks[2].Success)
}

func TestCheckPermission_TenantStampedOnAudit(t *testing.T) {
	f := newFixture()
	f.svc.WithTenantIDDeriver(func(orgID string) string { return "tnt-" + orgID })
	f.grantRole("user-1", "role-avocat", "avocat", rbac.ProfessionAvocat, strPtr("org-1"), nil)

	f.svc.CheckPermission(context.Background(), "user-1", rbac.ResourceDossier, "read",
		authz.AccessContext{ActiveRole: "avocat", OrganizationID: "org-1"})

	checks := f.recorder.byType(audit.TypeAccessCheck)
	require.NotEmpty(t, checks)
	assert.Equal(t, "tnt-org-1", checks[0].TenantID)
}

func TestCheckPermission_PrimaryRoleFallback(t *testing.T) {
	f := newFixture()
	f.grantRole("user-1", "role-notaire", "notaire", rbac.ProfessionNotaire, strPtr("org-1"), nil)
	f.perms.perms["user-1"] = []authz.Permission{
		{Resource: rbac.ResourceActe, Actions: []string{"read"}, Scope: authz.ScopePersonal},
	}

	// No active role in the context: the earliest live assignment decides.
	allowed := f.svc.CheckPermission(context.Background(), "user-1", rbac.ResourceActe, "read",
		authz.AccessContext{OrganizationID: "org-1"})
	assert.True(t, allowed)
}
