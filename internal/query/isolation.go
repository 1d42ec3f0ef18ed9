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

package query

import (
	"fmt"

	"github.com/lexcore/lexcore/internal/tenant"
)

const (
	fieldTenantID       = "tenant_id"
	fieldOrganizationID = "organization_id"
)

// ApplyTenantIsolation returns a copy of q with tenant and organization
// equality predicates conjoined at the top level of every query in the tree,
// including every nested Include. The input query is never mutated. The
// operation is idempotent: applying it twice yields the same filters as
// applying it once.
//
// The isolation predicates are ANDed above any caller-supplied filter, so a
// caller-level OR cannot widen the result set beyond the tenant.
func ApplyTenantIsolation(q *Query, tc *tenant.Context) (*Query, error) {
	if q == nil {
		return nil, fmt.Errorf("query is required")
	}
	if tc == nil || tc.TenantID == "" || tc.OrganizationID == "" {
		return nil, fmt.Errorf("tenant context with tenant and organization ids is required")
	}

	out := q.Clone()
	isolate(out, tc.TenantID, tc.OrganizationID)
	return out, nil
}

func isolate(q *Query, tenantID, organizationID string) {
	if q == nil {
		return
	}
	q.Where = withIsolation(q.Where, tenantID, organizationID)
	for _, sub := range q.Include {
		isolate(sub, tenantID, organizationID)
	}
}

func withIsolation(where *Predicate, tenantID, organizationID string) *Predicate {
	tenantEq := Eq(fieldTenantID, tenantID)
	orgEq := Eq(fieldOrganizationID, organizationID)

	if where == nil {
		return And(tenantEq, orgEq)
	}
	if isIsolated(where, tenantID, organizationID) {
		return where
	}
	return And(tenantEq, orgEq, where)
}

// isIsolated reports whether the predicate already pins both isolation
// fields at its top-level conjunction. Only an AND root counts: an OR
// containing a tenant clause does not constrain the other branches.
func isIsolated(p *Predicate, tenantID, organizationID string) bool {
	return hasEq(p, fieldTenantID, tenantID) && hasEq(p, fieldOrganizationID, organizationID)
}

func hasEq(p *Predicate, field string, value any) bool {
	if p == nil {
		return false
	}
	if p.IsLeaf() {
		return p.Field == field && p.Cmp == CmpEq && p.Value == value
	}
	if p.Op != LogicalAnd {
		return false
	}
	for _, c := range p.Children {
		if hasEq(c, field, value) {
			return true
		}
	}
	return false
}
