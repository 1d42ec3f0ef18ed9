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

package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexcore/lexcore/internal/audit"
	"github.com/lexcore/lexcore/internal/rbac"
)

// ErrResourceNotFound is returned when no tag exists for a resource.
var ErrResourceNotFound = errors.New("resource not found")

// ResourceTag is the ownership record persisted next to every
// tenant-scoped resource.
type ResourceTag struct {
	ResourceType   string
	ResourceID     string
	TenantID       string
	OrganizationID string
	CreatedBy      string
	CreatedAt      time.Time
}

// TagStore looks up resource ownership tags.
type TagStore interface {
	ResourceTag(ctx context.Context, resourceType, resourceID string) (*ResourceTag, error)
	PutResourceTag(ctx context.Context, tag *ResourceTag) error
}

// Guard composes the three resource access checks: ownership, permission
// membership, and the profession-specific rule. All three must pass.
type Guard struct {
	tags     TagStore
	recorder audit.Recorder
	now      func() time.Time
}

// NewGuard creates a resource access guard.
func NewGuard(tags TagStore, recorder audit.Recorder) *Guard {
	return &Guard{tags: tags, recorder: recorder, now: time.Now}
}

// ValidateResourceAccess verifies that the resource belongs to the
// context's tenant, that the context holds requiredPermission, and that the
// profession's access rule admits the request. A foreign ownership tag is
// an ErrIsolationViolation, surfaced to the caller and audited; it is never
// reported as a plain denial.
func (g *Guard) ValidateResourceAccess(ctx context.Context, resourceType, resourceID string, tc *Context, requiredPermission string) (bool, error) {
	tag, err := g.tags.ResourceTag(ctx, resourceType, resourceID)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to load resource tag: %w", err)
	}

	if tag.TenantID != tc.TenantID {
		g.recorder.Record(ctx, audit.Entry{
			Type:           audit.TypeIsolationViolation,
			UserID:         tc.UserID,
			TenantID:       tc.TenantID,
			OrganizationID: tc.OrganizationID,
			ResourceType:   resourceType,
			ResourceID:     resourceID,
			Action:         "access",
			Success:        false,
			Reason:         "resource owned by another tenant",
			Timestamp:      g.now(),
		})
		return false, fmt.Errorf("%w: resource owned by another tenant", ErrIsolationViolation)
	}

	if !tc.HasPermission(requiredPermission) {
		g.audit(ctx, tc, resourceType, resourceID, false, "missing permission "+requiredPermission)
		return false, nil
	}

	rule := rbac.RuleFor(tc.UserRole)
	ok := rule(rbac.RuleContext{
		UserID:          tc.UserID,
		OrganizationID:  tc.OrganizationID,
		ResourceType:    resourceType,
		ResourceID:      resourceID,
		ResourceOwnerID: tag.CreatedBy,
	})
	if !ok {
		g.audit(ctx, tc, resourceType, resourceID, false, "profession rule denied access")
		return false, nil
	}

	g.audit(ctx, tc, resourceType, resourceID, true, "")
	return true, nil
}

// TagResource records ownership for a newly persisted resource.
func (g *Guard) TagResource(ctx context.Context, resourceType, resourceID string, tc *Context) error {
	return g.tags.PutResourceTag(ctx, &ResourceTag{
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		TenantID:       tc.TenantID,
		OrganizationID: tc.OrganizationID,
		CreatedBy:      tc.UserID,
		CreatedAt:      g.now(),
	})
}

func (g *Guard) audit(ctx context.Context, tc *Context, resourceType, resourceID string, success bool, reason string) {
	g.recorder.Record(ctx, audit.Entry{
		Type:           audit.TypeAccessCheck,
		UserID:         tc.UserID,
		TenantID:       tc.TenantID,
		OrganizationID: tc.OrganizationID,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Action:         "access",
		Success:        success,
		Reason:         reason,
		Timestamp:      g.now(),
	})
}
