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

package rbac

// Profession identifies the professional category a role belongs to.
// System roles are seeded once per profession; custom organization roles
// reference one of these categories as well.
type Profession string

const (
	// ProfessionAdmin is the platform administration profession.
	// Its seeded role is global: it applies regardless of organization.
	ProfessionAdmin Profession = "admin"

	// ProfessionAvocat is the attorney profession.
	ProfessionAvocat Profession = "avocat"

	// ProfessionNotaire is the notary profession. Notaries may only act on
	// records held in their own register (see rules.go).
	ProfessionNotaire Profession = "notaire"

	// ProfessionJuriste is the in-house legal counsel profession.
	ProfessionJuriste Profession = "juriste"

	// ProfessionSecretaire is the legal secretary profession.
	ProfessionSecretaire Profession = "secretaire"

	// ProfessionEtudiant is the trainee/student profession, restricted to
	// an allow-list of resource types.
	ProfessionEtudiant Profession = "etudiant"
)

// Known reports whether p is a seeded profession.
func Known(p Profession) bool {
	switch p {
	case ProfessionAdmin, ProfessionAvocat, ProfessionNotaire,
		ProfessionJuriste, ProfessionSecretaire, ProfessionEtudiant:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Resource Type Constants
// Canonical resource names used by permissions and resource tags.
// -----------------------------------------------------------------------------

const (
	ResourceDossier      = "dossier"
	ResourceDocument     = "document"
	ResourceActe         = "acte"
	ResourceRegistre     = "registre"
	ResourceNotification = "notification"
	ResourceModeration   = "moderation_queue"
	ResourceAuditReport  = "audit_report"
)

// -----------------------------------------------------------------------------
// Action Constants
// -----------------------------------------------------------------------------

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
	ActionShare  = "share"
)
