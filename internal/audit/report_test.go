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

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	entries []*Entry
	err     error
}

func (r *fakeRepository) Append(_ context.Context, entry *Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeRepository) ListByTenant(_ context.Context, tenantID string, from, to time.Time) ([]*Entry, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*Entry
	for _, e := range r.entries {
		if e.TenantID != tenantID {
			continue
		}
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeRepository) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*Entry
	var pruned int64
	for _, e := range r.entries {
		if e.Timestamp.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return pruned, nil
}

func check(tenantID, userID, resourceType string, success bool, at time.Time) *Entry {
	return &Entry{
		Type:         TypeAccessCheck,
		UserID:       userID,
		TenantID:     tenantID,
		ResourceType: resourceType,
		Action:       "read",
		Success:      success,
		Timestamp:    at,
	}
}

func TestGenerateAccessAuditReport_Totals(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{}
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	repo.entries = []*Entry{
		check("tnt_a", "user-1", "dossier", true, base),
		check("tnt_a", "user-1", "dossier", true, base.Add(time.Minute)),
		check("tnt_a", "user-2", "document", false, base.Add(2*time.Minute)),
		// Another tenant's entry never leaks into the report.
		check("tnt_b", "user-9", "dossier", true, base),
	}

	report, err := NewReporter(repo).GenerateAccessAuditReport(ctx, "tnt_a", base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalChecks)
	assert.Equal(t, 2, report.SuccessfulChecks)
	assert.Equal(t, 1, report.FailedChecks)

	require.NotEmpty(t, report.TopPrincipals)
	assert.Equal(t, Count{Key: "user-1", Count: 2}, report.TopPrincipals[0])
	assert.Equal(t, Count{Key: "dossier", Count: 2}, report.TopResourceTypes[0])

	require.Len(t, report.SecurityEvents, 1)
	assert.Equal(t, "user-2", report.SecurityEvents[0].UserID)
}

// TestPurpose: Validates that principals with bursts of failed checks are
// flagged for operator review.
// Scope: Unit Test
// Security: Anomalous access pattern detection
// Expected: More than five failures within a sliding hour flags the
// principal; exactly five does not, nor do six failures spread over a day.
// Test Case ID: AU-01
func TestGenerateAccessAuditReport_SuspiciousPrincipals(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{}
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	// user-burst: 6 failures inside 30 minutes.
	for i := 0; i < 6; i++ {
		repo.entries = append(repo.entries,
			check("tnt_a", "user-burst", "dossier", false, base.Add(time.Duration(i)*5*time.Minute)))
	}
	// user-five: exactly at the threshold, not over it.
	for i := 0; i < 5; i++ {
		repo.entries = append(repo.entries,
			check("tnt_a", "user-five", "dossier", false, base.Add(time.Duration(i)*5*time.Minute)))
	}
	// user-spread: 6 failures, but hours apart.
	for i := 0; i < 6; i++ {
		repo.entries = append(repo.entries,
			check("tnt_a", "user-spread", "dossier", false, base.Add(time.Duration(i)*2*time.Hour)))
	}

	report, err := NewReporter(repo).GenerateAccessAuditReport(ctx, "tnt_a", base.Add(-time.Hour), base.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, []string{"user-burst"}, report.SuspiciousPrincipals)
}

func TestGenerateAccessAuditReport_IsolationViolationsAreSecurityEvents(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{}
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	repo.entries = []*Entry{
		check("tnt_a", "user-1", "dossier", true, base),
		{
			Type:      TypeIsolationViolation,
			UserID:    "user-2",
			TenantID:  "tnt_a",
			Action:    "decrypt",
			Success:   false,
			Timestamp: base.Add(time.Minute),
		},
	}

	report, err := NewReporter(repo).GenerateAccessAuditReport(ctx, "tnt_a", base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, report.SecurityEvents, 1)
	assert.Equal(t, TypeIsolationViolation, report.SecurityEvents[0].Type)
}

func TestGenerateAccessAuditReport_RepositoryError(t *testing.T) {
	repo := &fakeRepository{err: errors.New("connection reset")}
	_, err := NewReporter(repo).GenerateAccessAuditReport(context.Background(), "tnt_a", time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}

func TestRankIsBoundedAndStable(t *testing.T) {
	counts := map[string]int{}
	for i := 0; i < 15; i++ {
		counts[string(rune('a'+i))] = i % 3
	}
	ranked := rank(counts)
	assert.Len(t, ranked, topN)
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].Count == ranked[i].Count {
			assert.Less(t, ranked[i-1].Key, ranked[i].Key)
		} else {
			assert.Greater(t, ranked[i-1].Count, ranked[i].Count)
		}
	}
}
