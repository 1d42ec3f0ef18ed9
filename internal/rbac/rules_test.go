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
)

func TestNotaireRule(t *testing.T) {
	rule := RuleFor(ProfessionNotaire)

	t.Run("own register record", func(t *testing.T) {
		assert.True(t, rule(RuleContext{
			UserID:          "notaire-1",
			ResourceType:    ResourceActe,
			ResourceOwnerID: "notaire-1",
		}))
	})

	t.Run("another notary's record", func(t *testing.T) {
		assert.False(t, rule(RuleContext{
			UserID:          "notaire-1",
			ResourceType:    ResourceRegistre,
			ResourceOwnerID: "notaire-2",
		}))
	})

	t.Run("untagged owner fails closed", func(t *testing.T) {
		assert.False(t, rule(RuleContext{
			UserID:       "notaire-1",
			ResourceType: ResourceActe,
		}))
	})

	t.Run("other resource types unconstrained", func(t *testing.T) {
		assert.True(t, rule(RuleContext{
			UserID:          "notaire-1",
			ResourceType:    ResourceDocument,
			ResourceOwnerID: "someone-else",
		}))
	})
}

func TestEtudiantRule(t *testing.T) {
	rule := RuleFor(ProfessionEtudiant)

	assert.True(t, rule(RuleContext{ResourceType: ResourceDossier}))
	assert.True(t, rule(RuleContext{ResourceType: ResourceDocument}))
	assert.False(t, rule(RuleContext{ResourceType: ResourceActe}))
	assert.False(t, rule(RuleContext{ResourceType: ResourceRegistre}))
	assert.False(t, rule(RuleContext{ResourceType: ResourceNotification}))
}

// TestPurpose: Validates that professions outside the seeded set never pass
// the rule layer.
// Scope: Unit Test
// Security: Fail-closed profession handling
// Expected: An unregistered, unknown profession denies every request;
// known professions without a dedicated rule pass through.
// Test Case ID: RB-01
func TestRuleFor_UnknownProfessionFailsClosed(t *testing.T) {
	rule := RuleFor(Profession("huissier"))
	assert.False(t, rule(RuleContext{ResourceType: ResourceDossier, UserID: "user-1"}))

	// Seeded professions without a registered rule are unconstrained here.
	assert.True(t, RuleFor(ProfessionAvocat)(RuleContext{ResourceType: ResourceActe}))
}

func TestRegisterRule_Replaces(t *testing.T) {
	p := Profession("temp-profession-for-test")
	defer func() {
		rulesMu.Lock()
		delete(rules, p)
		rulesMu.Unlock()
	}()

	RegisterRule(p, func(RuleContext) bool { return true })
	assert.True(t, RuleFor(p)(RuleContext{}))

	RegisterRule(p, func(RuleContext) bool { return false })
	assert.False(t, RuleFor(p)(RuleContext{}))
}
