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
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lexcore/lexcore/internal/audit"
	"github.com/lexcore/lexcore/internal/authz/cache"
	"github.com/lexcore/lexcore/internal/observability/logger"
)

// Service is the access evaluator: it computes effective permissions for a
// principal and matches them against the requested resource and action.
// Every call is a pure function of catalog + assignment + cache state; no
// in-process locks are needed for the decision itself.
type Service struct {
	roleRepo       RoleRepository
	assignmentRepo AssignmentRepository
	permRepo       PermissionRepository
	decisions      cache.Store
	recorder       audit.Recorder

	// deriveTenantID stamps audit entries with the tenant derived from the
	// organization, when a deriver is wired.
	deriveTenantID func(organizationID string) string

	cacheTTL time.Duration
	now      func() time.Time

	checkCounter    metric.Int64Counter
	checkLatency    metric.Float64Histogram
	cacheHitCounter metric.Int64Counter
}

// NewService creates a new access evaluator.
func NewService(
	roleRepo RoleRepository,
	assignmentRepo AssignmentRepository,
	permRepo PermissionRepository,
	decisions cache.Store,
	recorder audit.Recorder,
) *Service {
	meter := otel.Meter("lexcore/authz")
	checkCounter, _ := meter.Int64Counter("authz_checks_total",
		metric.WithDescription("Permission checks by outcome"))
	checkLatency, _ := meter.Float64Histogram("authz_check_duration_ms",
		metric.WithDescription("Permission check latency"), metric.WithUnit("ms"))
	cacheHitCounter, _ := meter.Int64Counter("authz_cache_hits_total",
		metric.WithDescription("Decision cache hits"))

	return &Service{
		roleRepo:        roleRepo,
		assignmentRepo:  assignmentRepo,
		permRepo:        permRepo,
		decisions:       decisions,
		recorder:        recorder,
		cacheTTL:        cache.DefaultTTL,
		now:             time.Now,
		checkCounter:    checkCounter,
		checkLatency:    checkLatency,
		cacheHitCounter: cacheHitCounter,
	}
}

// WithTenantIDDeriver wires the one-way organization -> tenant derivation so
// audit entries carry the tenant identifier.
func (s *Service) WithTenantIDDeriver(derive func(organizationID string) string) *Service {
	s.deriveTenantID = derive
	return s
}

// WithCacheTTL overrides the decision memo TTL.
func (s *Service) WithCacheTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

// CheckPermission reports whether the user may perform action on resource in
// the given context. Fail-secure: any internal error yields false, never an
// error, and is audited with its cause.
func (s *Service) CheckPermission(ctx context.Context, userID, resource, action string, partial AccessContext) bool {
	return s.CheckPermissionDetailed(ctx, userID, resource, action, partial).Allowed
}

// CheckPermissionDetailed runs the same algorithm as CheckPermission but
// returns the matched scope and conditions, or a denial reason. Used by
// admin surfaces to explain decisions.
func (s *Service) CheckPermissionDetailed(ctx context.Context, userID, resource, action string, partial AccessContext) (result CheckResult) {
	start := s.now()

	// Fail-secure backstop: a panic anywhere below becomes a denial.
	defer func() {
		if rec := recover(); rec != nil {
			result = CheckResult{Allowed: false, Reason: "evaluation failed"}
			s.auditCheck(ctx, userID, resource, action, &partial, false,
				fmt.Sprintf("%v: panic: %v", ErrEvaluationFailure, rec))
		}
		s.observe(ctx, start, result.Allowed)
	}()

	actx := partial
	actx.UserID = userID

	assignments, err := s.assignmentRepo.ListLiveForUser(ctx, userID, s.now())
	if err != nil {
		return s.denyOnError(ctx, userID, resource, action, &actx, err)
	}

	// Materialize the full context: a missing active role falls back to the
	// user's primary profession (their earliest live assignment).
	if actx.ActiveRole == "" {
		actx.ActiveRole, err = s.primaryRole(ctx, assignments)
		if err != nil {
			return s.denyOnError(ctx, userID, resource, action, &actx, err)
		}
	}

	key := CacheKey(userID, resource, action, &actx)
	if allowed, ok := s.decisions.Get(ctx, userID, key); ok {
		s.cacheHitCounter.Add(ctx, 1)
		result = CheckResult{Allowed: allowed}
		if !allowed {
			result.Reason = "no permission matched"
		}
		// Cache hits still count as access attempts.
		s.auditCheck(ctx, userID, resource, action, &actx, allowed, "cached decision")
		return result
	}

	perms, err := s.permRepo.EffectiveForUser(ctx, userID, actx.ActiveRole, optional(actx.OrganizationID), s.now())
	if err != nil {
		return s.denyOnError(ctx, userID, resource, action, &actx, err)
	}

	result = CheckResult{Allowed: false, Reason: "no permission matched"}
	for i := range perms {
		if matches(&perms[i], resource, action, &actx) {
			result = CheckResult{
				Allowed:    true,
				Scope:      perms[i].Scope,
				Conditions: perms[i].Conditions,
			}
			break
		}
	}

	s.decisions.Set(ctx, userID, key, result.Allowed, s.boundTTL(assignments))
	s.auditCheck(ctx, userID, resource, action, &actx, result.Allowed, result.Reason)
	return result
}

// GetEffectivePermissions returns the union of permissions reachable through
// the user's live assignments matching the context.
func (s *Service) GetEffectivePermissions(ctx context.Context, userID string, actx AccessContext) ([]Permission, error) {
	return s.permRepo.EffectiveForUser(ctx, userID, actx.ActiveRole, optional(actx.OrganizationID), s.now())
}

// matches implements the permission match: exact resource, action
// membership, scope constraint, and the conjunction of all conditions.
func matches(p *Permission, resource, action string, actx *AccessContext) bool {
	if p.Resource != resource {
		return false
	}
	if !p.AllowsAction(action) {
		return false
	}
	switch p.Scope {
	case ScopeGlobal:
		// always holds
	case ScopeOrganization:
		if actx.OrganizationID == "" {
			return false
		}
	case ScopePersonal, ScopeRoleSpecific:
		// Finer checks belong to conditions.
	default:
		return false
	}
	for i := range p.Conditions {
		if !p.Conditions[i].Evaluate(actx) {
			return false
		}
	}
	return true
}

// boundTTL limits a cache entry's lifetime to the earliest expiry among the
// assignments that produced the decision, so an expiring assignment can
// never outlive itself in the cache.
func (s *Service) boundTTL(assignments []*Assignment) time.Duration {
	ttl := s.cacheTTL
	now := s.now()
	for _, a := range assignments {
		if a.ExpiresAt == nil {
			continue
		}
		if remaining := a.ExpiresAt.Sub(now); remaining > 0 && remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}

// primaryRole resolves the profession of the user's earliest live assignment.
func (s *Service) primaryRole(ctx context.Context, assignments []*Assignment) (string, error) {
	var primary *Assignment
	for _, a := range assignments {
		if primary == nil || a.AssignedAt.Before(primary.AssignedAt) {
			primary = a
		}
	}
	if primary == nil {
		return "", nil
	}
	role, err := s.roleRepo.GetByID(ctx, primary.RoleID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve primary role: %w", err)
	}
	return role.Name, nil
}

func (s *Service) denyOnError(ctx context.Context, userID, resource, action string, actx *AccessContext, err error) CheckResult {
	slog.ErrorContext(ctx, "permission evaluation failed",
		logger.UserID(userID),
		logger.Resource(resource),
		logger.Action(action),
		logger.Error(err),
	)
	s.auditCheck(ctx, userID, resource, action, actx, false,
		fmt.Sprintf("%v: %v", ErrEvaluationFailure, err))
	return CheckResult{Allowed: false, Reason: "evaluation failed"}
}

func (s *Service) auditCheck(ctx context.Context, userID, resource, action string, actx *AccessContext, allowed bool, reason string) {
	entry := audit.Entry{
		Type:           audit.TypeAccessCheck,
		UserID:         userID,
		OrganizationID: actx.OrganizationID,
		ResourceType:   resource,
		ResourceID:     actx.ResourceID,
		Action:         action,
		Success:        allowed,
		Reason:         reason,
		Timestamp:      s.now(),
	}
	if s.deriveTenantID != nil && actx.OrganizationID != "" {
		entry.TenantID = s.deriveTenantID(actx.OrganizationID)
	}
	s.recorder.Record(ctx, entry)
}

func (s *Service) observe(ctx context.Context, start time.Time, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "granted"
	}
	opt := metric.WithAttributes(attribute.String("outcome", outcome))
	s.checkCounter.Add(ctx, 1, opt)
	s.checkLatency.Record(ctx, float64(s.now().Sub(start).Microseconds())/1000.0, opt)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
