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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/lexcore/lexcore/internal/rbac"
)

// Domain errors
var (
	// ErrIsolationViolation marks an attempt to read data whose tenant tag
	// does not match the requesting context. Always security-relevant,
	// always audited, never coerced to a plain denial.
	ErrIsolationViolation = errors.New("tenant isolation violation")

	// ErrKeyUnavailable is returned when no encryption key can be supplied
	// for a tenant.
	ErrKeyUnavailable = errors.New("tenant encryption key unavailable")

	ErrUnknownProfession = errors.New("unknown profession")
)

// Context carries the tenant boundary for one request. Built fresh per
// request, never persisted. Permissions come from the profession's static
// table, not the full catalog: this is the fast derivation path.
type Context struct {
	TenantID       string
	OrganizationID string
	UserID         string
	UserRole       rbac.Profession
	Permissions    []string
}

// HasPermission checks a "resource:action" name against the context's
// resolved permission set, honoring the wildcard.
func (c *Context) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == "*" || p == permission {
			return true
		}
	}
	return false
}

// Factory derives tenant identifiers and assembles tenant contexts.
type Factory struct {
	secret []byte
}

// NewFactory creates a tenant context factory. The secret keys the one-way
// organization -> tenant derivation and must be stable per deployment.
func NewFactory(secret []byte) (*Factory, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("tenant derivation secret must be at least 16 bytes")
	}
	return &Factory{secret: secret}, nil
}

// DeriveTenantID maps an organization id to its tenant id. Deterministic:
// the same organization always yields the same tenant. One-way: without the
// deployment secret the organization id cannot be recovered.
func (f *Factory) DeriveTenantID(organizationID string) string {
	mac := hmac.New(sha256.New, f.secret)
	mac.Write([]byte(organizationID))
	return "tnt_" + hex.EncodeToString(mac.Sum(nil)[:16])
}

// CreateContext builds the tenant context for a request.
func (f *Factory) CreateContext(userID, organizationID string, userRole rbac.Profession) (*Context, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if organizationID == "" {
		return nil, fmt.Errorf("organization id is required")
	}
	perms, ok := rbac.PermissionsFor(userRole)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfession, userRole)
	}

	return &Context{
		TenantID:       f.DeriveTenantID(organizationID),
		OrganizationID: organizationID,
		UserID:         userID,
		UserRole:       userRole,
		Permissions:    perms,
	}, nil
}
