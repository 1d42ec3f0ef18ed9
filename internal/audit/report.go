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
	"fmt"
	"sort"
	"time"
)

const (
	// suspiciousFailureThreshold flags a principal once their failed checks
	// within any sliding hour exceed this count.
	suspiciousFailureThreshold = 5

	// topN bounds the principal and resource-type rankings in a report.
	topN = 10
)

// Count pairs a ranked key with its occurrence count.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Report aggregates a tenant's audit window for operator review.
type Report struct {
	TenantID             string    `json:"tenant_id"`
	From                 time.Time `json:"from"`
	To                   time.Time `json:"to"`
	TotalChecks          int       `json:"total_checks"`
	SuccessfulChecks     int       `json:"successful_checks"`
	FailedChecks         int       `json:"failed_checks"`
	TopPrincipals        []Count   `json:"top_principals"`
	TopResourceTypes     []Count   `json:"top_resource_types"`
	SecurityEvents       []*Entry  `json:"security_events"`
	SuspiciousPrincipals []string  `json:"suspicious_principals"`
}

// Reporter builds access audit reports from the durable sink.
type Reporter struct {
	repo Repository
}

// NewReporter creates a report generator.
func NewReporter(repo Repository) *Reporter {
	return &Reporter{repo: repo}
}

// GenerateAccessAuditReport aggregates the tenant's entries between from and
// to: totals, top principals, top resource types, security events (failures
// and isolation violations), and principals with suspicious failure bursts.
func (r *Reporter) GenerateAccessAuditReport(ctx context.Context, tenantID string, from, to time.Time) (*Report, error) {
	entries, err := r.repo.ListByTenant(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	report := &Report{
		TenantID: tenantID,
		From:     from,
		To:       to,
	}

	principals := map[string]int{}
	resourceTypes := map[string]int{}
	failureTimes := map[string][]time.Time{}

	for _, e := range entries {
		report.TotalChecks++
		if e.Success {
			report.SuccessfulChecks++
		} else {
			report.FailedChecks++
			failureTimes[e.UserID] = append(failureTimes[e.UserID], e.Timestamp)
		}
		if e.UserID != "" {
			principals[e.UserID]++
		}
		if e.ResourceType != "" {
			resourceTypes[e.ResourceType]++
		}
		if !e.Success || e.Type == TypeIsolationViolation {
			report.SecurityEvents = append(report.SecurityEvents, e)
		}
	}

	report.TopPrincipals = rank(principals)
	report.TopResourceTypes = rank(resourceTypes)
	report.SuspiciousPrincipals = suspiciousPrincipals(failureTimes)

	return report, nil
}

func rank(counts map[string]int) []Count {
	ranked := make([]Count, 0, len(counts))
	for k, n := range counts {
		ranked = append(ranked, Count{Key: k, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// suspiciousPrincipals finds users whose failed checks exceed the threshold
// within any sliding one-hour window.
func suspiciousPrincipals(failures map[string][]time.Time) []string {
	var flagged []string
	for userID, times := range failures {
		if len(times) <= suspiciousFailureThreshold {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		lo := 0
		for hi := range times {
			for times[hi].Sub(times[lo]) > time.Hour {
				lo++
			}
			if hi-lo+1 > suspiciousFailureThreshold {
				flagged = append(flagged, userID)
				break
			}
		}
	}
	sort.Strings(flagged)
	return flagged
}
