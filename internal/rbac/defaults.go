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

// -----------------------------------------------------------------------------
// Static Role Permission Tables
// These back the fast tenant-context derivation path: permission names are
// resolved from the profession alone, without touching the permission catalog.
// Entries use the "resource:action" form.
// -----------------------------------------------------------------------------

// AdminPermissions defines permissions for the admin profession.
var AdminPermissions = []string{
	"*", // Wildcard: all permissions
}

// AvocatPermissions defines permissions for the avocat profession.
var AvocatPermissions = []string{
	"dossier:read",
	"dossier:write",
	"dossier:share",
	"document:read",
	"document:write",
	"document:share",
	"acte:read",
	"notification:read",
}

// NotairePermissions defines permissions for the notaire profession.
var NotairePermissions = []string{
	"acte:read",
	"acte:write",
	"registre:read",
	"registre:write",
	"document:read",
	"notification:read",
}

// JuristePermissions defines permissions for the juriste profession.
var JuristePermissions = []string{
	"dossier:read",
	"dossier:write",
	"document:read",
	"document:write",
	"notification:read",
}

// SecretairePermissions defines permissions for the secretaire profession.
var SecretairePermissions = []string{
	"dossier:read",
	"document:read",
	"notification:read",
}

// EtudiantPermissions defines permissions for the etudiant profession.
var EtudiantPermissions = []string{
	"dossier:read",
	"document:read",
}

// professionPermissions maps each profession to its static permission table.
var professionPermissions = map[Profession][]string{
	ProfessionAdmin:      AdminPermissions,
	ProfessionAvocat:     AvocatPermissions,
	ProfessionNotaire:    NotairePermissions,
	ProfessionJuriste:    JuristePermissions,
	ProfessionSecretaire: SecretairePermissions,
	ProfessionEtudiant:   EtudiantPermissions,
}

// PermissionsFor returns the static permission names for a profession.
// The returned slice is a copy; callers may not mutate the tables.
func PermissionsFor(p Profession) ([]string, bool) {
	perms, ok := professionPermissions[p]
	if !ok {
		return nil, false
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out, true
}

// HasStaticPermission checks a "resource:action" permission name against the
// profession's static table, honoring the wildcard.
func HasStaticPermission(p Profession, permission string) bool {
	perms, ok := professionPermissions[p]
	if !ok {
		return false
	}
	for _, have := range perms {
		if have == "*" || have == permission {
			return true
		}
	}
	return false
}
