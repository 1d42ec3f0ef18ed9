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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionsFor(t *testing.T) {
	perms, ok := PermissionsFor(ProfessionAvocat)
	require.True(t, ok)
	assert.Contains(t, perms, "dossier:read")
	assert.NotContains(t, perms, "registre:write")

	_, ok = PermissionsFor(Profession("huissier"))
	assert.False(t, ok)
}

func TestPermissionsFor_ReturnsCopy(t *testing.T) {
	perms, ok := PermissionsFor(ProfessionSecretaire)
	require.True(t, ok)
	perms[0] = "registre:write"

	again, ok := PermissionsFor(ProfessionSecretaire)
	require.True(t, ok)
	assert.NotContains(t, again, "registre:write")
}

func TestHasStaticPermission(t *testing.T) {
	assert.True(t, HasStaticPermission(ProfessionAdmin, "registre:write"))
	assert.True(t, HasStaticPermission(ProfessionNotaire, "acte:write"))
	assert.False(t, HasStaticPermission(ProfessionEtudiant, "dossier:write"))
	assert.False(t, HasStaticPermission(Profession("huissier"), "dossier:read"))
}
