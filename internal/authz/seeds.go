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
	"time"

	"github.com/lexcore/lexcore/internal/id"
	"github.com/lexcore/lexcore/internal/rbac"
)

// RoleSeed pairs a system role with its standard permission set.
type RoleSeed struct {
	Role        *Role
	Permissions []PermissionDefinition
}

// DefaultRoleSeeds returns the seeded role per profession. Role names match
// the profession names; the admin role is global (no organization) and is
// included in every effective-permission resolution regardless of
// organization.
func DefaultRoleSeeds() []RoleSeed {
	now := time.Now()
	seed := func(p rbac.Profession, desc string, perms []PermissionDefinition) RoleSeed {
		return RoleSeed{
			Role: &Role{
				ID:          id.NewUUIDv7(),
				Name:        string(p),
				Profession:  p,
				IsCustom:    false,
				IsActive:    true,
				Description: desc,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
			Permissions: perms,
		}
	}

	return []RoleSeed{
		seed(rbac.ProfessionAdmin, "Platform administration", []PermissionDefinition{
			{Resource: rbac.ResourceDossier, Actions: []string{rbac.ActionRead, rbac.ActionWrite, rbac.ActionDelete, rbac.ActionShare}, Scope: ScopeGlobal},
			{Resource: rbac.ResourceDocument, Actions: []string{rbac.ActionRead, rbac.ActionWrite, rbac.ActionDelete, rbac.ActionShare}, Scope: ScopeGlobal},
			{Resource: rbac.ResourceActe, Actions: []string{rbac.ActionRead, rbac.ActionWrite, rbac.ActionDelete}, Scope: ScopeGlobal},
			{Resource: rbac.ResourceRegistre, Actions: []string{rbac.ActionRead, rbac.ActionWrite}, Scope: ScopeGlobal},
			{Resource: rbac.ResourceNotification, Actions: []string{rbac.ActionRead, rbac.ActionWrite, rbac.ActionDelete}, Scope: ScopeGlobal},
			{Resource: rbac.ResourceModeration, Actions: []string{rbac.ActionRead, rbac.ActionWrite}, Scope: ScopeGlobal},
			{Resource: rbac.ResourceAuditReport, Actions: []string{rbac.ActionRead}, Scope: ScopeGlobal},
		}),
		seed(rbac.ProfessionAvocat, "Attorney", []PermissionDefinition{
			{Resource: rbac.ResourceDossier, Actions: []string{rbac.ActionRead, rbac.ActionWrite, rbac.ActionShare}, Scope: ScopePersonal},
			{Resource: rbac.ResourceDocument, Actions: []string{rbac.ActionRead, rbac.ActionWrite, rbac.ActionShare}, Scope: ScopeOrganization},
			{Resource: rbac.ResourceActe, Actions: []string{rbac.ActionRead}, Scope: ScopeOrganization},
			{Resource: rbac.ResourceNotification, Actions: []string{rbac.ActionRead}, Scope: ScopePersonal},
		}),
		seed(rbac.ProfessionNotaire, "Notary", []PermissionDefinition{
			{Resource: rbac.ResourceActe, Actions: []string{rbac.ActionRead, rbac.ActionWrite}, Scope: ScopePersonal},
			{Resource: rbac.ResourceRegistre, Actions: []string{rbac.ActionRead, rbac.ActionWrite}, Scope: ScopePersonal},
			{Resource: rbac.ResourceDocument, Actions: []string{rbac.ActionRead}, Scope: ScopeOrganization},
			{Resource: rbac.ResourceNotification, Actions: []string{rbac.ActionRead}, Scope: ScopePersonal},
		}),
		seed(rbac.ProfessionJuriste, "In-house counsel", []PermissionDefinition{
			{Resource: rbac.ResourceDossier, Actions: []string{rbac.ActionRead, rbac.ActionWrite}, Scope: ScopeOrganization},
			{Resource: rbac.ResourceDocument, Actions: []string{rbac.ActionRead, rbac.ActionWrite}, Scope: ScopeOrganization},
			{Resource: rbac.ResourceNotification, Actions: []string{rbac.ActionRead}, Scope: ScopePersonal},
		}),
		seed(rbac.ProfessionSecretaire, "Legal secretary", []PermissionDefinition{
			{Resource: rbac.ResourceDossier, Actions: []string{rbac.ActionRead}, Scope: ScopeOrganization},
			{Resource: rbac.ResourceDocument, Actions: []string{rbac.ActionRead}, Scope: ScopeOrganization},
			{Resource: rbac.ResourceNotification, Actions: []string{rbac.ActionRead}, Scope: ScopePersonal},
		}),
		seed(rbac.ProfessionEtudiant, "Trainee", []PermissionDefinition{
			{Resource: rbac.ResourceDossier, Actions: []string{rbac.ActionRead}, Scope: ScopeRoleSpecific,
				Conditions: []Condition{{Field: "organization_id", Operator: OpNotEquals, Value: ""}}},
			{Resource: rbac.ResourceDocument, Actions: []string{rbac.ActionRead}, Scope: ScopeRoleSpecific,
				Conditions: []Condition{{Field: "organization_id", Operator: OpNotEquals, Value: ""}}},
		}),
	}
}
