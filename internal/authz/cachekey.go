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
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// CacheKey computes the canonical decision-cache key for a check. The hash
// is over a normalized, sorted field encoding so that incidental field
// ordering can never produce distinct keys for the same decision inputs.
func CacheKey(userID, resource, action string, actx *AccessContext) string {
	fields := map[string]string{
		"user_id":         userID,
		"resource":        resource,
		"action":          action,
		"active_role":     actx.ActiveRole,
		"organization_id": actx.OrganizationID,
		"resource_id":     actx.ResourceID,
		"resource_type":   actx.ResourceType,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0x1f})
		h.Write([]byte(strings.ToValidUTF8(fields[k], "")))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}
