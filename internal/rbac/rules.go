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

import "sync"

// RuleContext carries the facts a profession access rule may consult.
// ResourceOwnerID is the user recorded as the creator of the resource tag.
type RuleContext struct {
	UserID          string
	OrganizationID  string
	ResourceType    string
	ResourceID      string
	ResourceOwnerID string
}

// AccessRule is a profession-specific validation applied on top of
// permission checks. Returning false denies the request.
type AccessRule func(rc RuleContext) bool

var (
	rulesMu sync.RWMutex
	rules   = map[Profession]AccessRule{}
)

// RegisterRule installs the access rule for a profession, replacing any
// previous registration. Adding a profession is a registration here, not a
// new branch in the evaluator.
func RegisterRule(p Profession, rule AccessRule) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rules[p] = rule
}

// RuleFor returns the registered rule for a profession. Professions without
// a registered rule pass unconditionally at this layer; unknown professions
// fail closed.
func RuleFor(p Profession) AccessRule {
	rulesMu.RLock()
	rule, ok := rules[p]
	rulesMu.RUnlock()
	if ok {
		return rule
	}
	if !Known(p) {
		return denyAll
	}
	return allowAll
}

func allowAll(RuleContext) bool { return true }
func denyAll(RuleContext) bool  { return false }

// etudiantResourceTypes is the allow-list of resource types a trainee may
// touch regardless of the permissions their role carries.
var etudiantResourceTypes = map[string]bool{
	ResourceDossier:  true,
	ResourceDocument: true,
}

func init() {
	// A notary may only act on records held in their own register: the
	// resource must have been created by them.
	RegisterRule(ProfessionNotaire, func(rc RuleContext) bool {
		if rc.ResourceType != ResourceActe && rc.ResourceType != ResourceRegistre {
			return true
		}
		return rc.ResourceOwnerID != "" && rc.ResourceOwnerID == rc.UserID
	})

	RegisterRule(ProfessionEtudiant, func(rc RuleContext) bool {
		return etudiantResourceTypes[rc.ResourceType]
	})
}
