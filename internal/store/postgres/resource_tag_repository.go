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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lexcore/lexcore/internal/tenant"
)

// ResourceTagRepository implements tenant.TagStore
type ResourceTagRepository struct {
	db *DB
}

// NewResourceTagRepository creates a new resource tag repository
func NewResourceTagRepository(db *DB) *ResourceTagRepository {
	return &ResourceTagRepository{db: db}
}

// ResourceTag retrieves the ownership tag for a resource
func (r *ResourceTagRepository) ResourceTag(ctx context.Context, resourceType, resourceID string) (*tenant.ResourceTag, error) {
	var tag tenant.ResourceTag
	err := r.db.pool.QueryRow(ctx, `
		SELECT resource_type, resource_id, tenant_id, organization_id, created_by, created_at
		FROM resource_tags
		WHERE resource_type = $1 AND resource_id = $2
	`, resourceType, resourceID).Scan(
		&tag.ResourceType, &tag.ResourceID, &tag.TenantID,
		&tag.OrganizationID, &tag.CreatedBy, &tag.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource tag: %w", err)
	}
	return &tag, nil
}

// PutResourceTag records ownership for a resource. The first writer wins;
// ownership is never silently reassigned.
func (r *ResourceTagRepository) PutResourceTag(ctx context.Context, tag *tenant.ResourceTag) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO resource_tags (resource_type, resource_id, tenant_id, organization_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (resource_type, resource_id) DO NOTHING
	`,
		tag.ResourceType, tag.ResourceID, tag.TenantID,
		tag.OrganizationID, tag.CreatedBy, tag.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put resource tag: %w", err)
	}
	return nil
}
