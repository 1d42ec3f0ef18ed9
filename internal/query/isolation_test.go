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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcore/lexcore/internal/tenant"
)

var testTenantCtx = &tenant.Context{
	TenantID:       "tnt_abc",
	OrganizationID: "org-1",
	UserID:         "user-1",
}

func requireIsolated(t *testing.T, p *Predicate) {
	t.Helper()
	require.NotNil(t, p)
	require.Equal(t, LogicalAnd, p.Op)
	assert.True(t, hasEq(p, fieldTenantID, "tnt_abc"))
	assert.True(t, hasEq(p, fieldOrganizationID, "org-1"))
}

func TestApplyTenantIsolation_InjectsFilters(t *testing.T) {
	q := &Query{Collection: "dossiers", Where: Eq("status", "open")}

	out, err := ApplyTenantIsolation(q, testTenantCtx)
	require.NoError(t, err)

	requireIsolated(t, out.Where)
	assert.True(t, hasEq(out.Where, "status", "open"))
}

func TestApplyTenantIsolation_NoCallerFilter(t *testing.T) {
	out, err := ApplyTenantIsolation(&Query{Collection: "dossiers"}, testTenantCtx)
	require.NoError(t, err)
	requireIsolated(t, out.Where)
}

// TestPurpose: Validates that isolation reaches every nested level of a bulk
// query, so an included relation cannot escape the tenant boundary.
// Scope: Unit Test
// Security: Query-level tenant isolation
// Expected: Root and all Include levels carry tenant and organization
// equality predicates.
// Test Case ID: QI-01
func TestApplyTenantIsolation_NestedIncludes(t *testing.T) {
	q := &Query{
		Collection: "dossiers",
		Where:      Eq("status", "open"),
		Include: map[string]*Query{
			"documents": {
				Collection: "documents",
				Include: map[string]*Query{
					"versions": {Collection: "document_versions", Where: Eq("draft", false)},
				},
			},
		},
	}

	out, err := ApplyTenantIsolation(q, testTenantCtx)
	require.NoError(t, err)

	requireIsolated(t, out.Where)
	docs := out.Include["documents"]
	require.NotNil(t, docs)
	requireIsolated(t, docs.Where)
	versions := docs.Include["versions"]
	require.NotNil(t, versions)
	requireIsolated(t, versions.Where)
	assert.True(t, hasEq(versions.Where, "draft", false))
}

func TestApplyTenantIsolation_Idempotent(t *testing.T) {
	q := &Query{Collection: "dossiers", Where: Eq("status", "open")}

	once, err := ApplyTenantIsolation(q, testTenantCtx)
	require.NoError(t, err)
	twice, err := ApplyTenantIsolation(once, testTenantCtx)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

// TestPurpose: Validates that a caller-supplied OR filter cannot widen a bulk
// query beyond the requesting tenant.
// Scope: Unit Test
// Security: Filter injection resistance
// Expected: The OR subtree is conjoined under the isolation AND, and an OR
// mentioning the tenant field is not treated as already isolated.
// Test Case ID: QI-02
func TestApplyTenantIsolation_OrCannotWiden(t *testing.T) {
	q := &Query{
		Collection: "dossiers",
		Where: Or(
			Eq(fieldTenantID, "tnt_abc"),
			Eq(fieldTenantID, "tnt_other"),
		),
	}

	out, err := ApplyTenantIsolation(q, testTenantCtx)
	require.NoError(t, err)

	requireIsolated(t, out.Where)
	require.Len(t, out.Where.Children, 3)
	assert.Equal(t, LogicalOr, out.Where.Children[2].Op)
}

func TestApplyTenantIsolation_CopyOnWrite(t *testing.T) {
	where := Eq("status", "open")
	q := &Query{Collection: "dossiers", Where: where, Include: map[string]*Query{
		"documents": {Collection: "documents"},
	}}

	_, err := ApplyTenantIsolation(q, testTenantCtx)
	require.NoError(t, err)

	// The input tree is untouched.
	assert.Same(t, where, q.Where)
	assert.True(t, q.Where.IsLeaf())
	assert.Nil(t, q.Include["documents"].Where)
}

func TestApplyTenantIsolation_Validation(t *testing.T) {
	_, err := ApplyTenantIsolation(nil, testTenantCtx)
	assert.Error(t, err)

	_, err = ApplyTenantIsolation(&Query{Collection: "dossiers"}, nil)
	assert.Error(t, err)

	_, err = ApplyTenantIsolation(&Query{Collection: "dossiers"}, &tenant.Context{TenantID: "tnt_abc"})
	assert.Error(t, err)
}
