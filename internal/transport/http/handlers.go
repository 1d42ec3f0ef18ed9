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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lexcore/lexcore/internal/audit"
	"github.com/lexcore/lexcore/internal/authz"
	"github.com/lexcore/lexcore/internal/observability/logger"
	"github.com/lexcore/lexcore/internal/rbac"
	"github.com/lexcore/lexcore/internal/tenant"
)

// Handler holds the service dependencies for the HTTP surface
type Handler struct {
	authz     *authz.Service
	factory   *tenant.Factory
	guard     *tenant.Guard
	boundary  *tenant.Boundary
	reporter  *audit.Reporter
	jwtSecret []byte
}

// NewHandler creates a new HTTP handler
func NewHandler(svc *authz.Service, factory *tenant.Factory, guard *tenant.Guard, boundary *tenant.Boundary, reporter *audit.Reporter, jwtSecret []byte) *Handler {
	return &Handler{
		authz:     svc,
		factory:   factory,
		guard:     guard,
		boundary:  boundary,
		reporter:  reporter,
		jwtSecret: jwtSecret,
	}
}

// NewRouter creates the HTTP router with all routes and middleware
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		// Access evaluation
		r.Post("/access/check", h.CheckAccess)
		r.Post("/access/check-detailed", h.CheckAccessDetailed)

		// Role catalog
		r.Get("/users/{userID}/roles", h.GetUserRoles)
		r.Post("/users/{userID}/active-role", h.SwitchActiveRole)
		r.Post("/roles/assignments", h.AssignRole)
		r.Delete("/roles/assignments", h.RevokeRole)
		r.Post("/roles/custom", h.CreateCustomRole)

		// Resource isolation
		r.Post("/resources/tag", h.TagResource)
		r.Post("/resources/validate-access", h.ValidateResourceAccess)

		// Tenant crypto boundary
		r.Post("/data/encrypt", h.EncryptData)
		r.Post("/data/decrypt", h.DecryptData)

		// Audit
		r.Get("/audit/report", h.AuditReport)
	})

	return r
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkAccessRequest struct {
	Resource   string            `json:"resource"`
	Action     string            `json:"action"`
	ActiveRole string            `json:"active_role,omitempty"`
	ResourceID string            `json:"resource_id,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

func (req *checkAccessRequest) accessContext(r *http.Request) authz.AccessContext {
	return authz.AccessContext{
		UserID:         GetUserID(r.Context()),
		ActiveRole:     req.ActiveRole,
		OrganizationID: GetOrganizationID(r.Context()),
		ResourceID:     req.ResourceID,
		ResourceType:   req.Resource,
		Extra:          req.Extra,
	}
}

// CheckAccess handles POST /api/v1/access/check
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	var req checkAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Resource == "" || req.Action == "" {
		respondError(w, http.StatusBadRequest, "resource and action are required")
		return
	}

	allowed := h.authz.CheckPermission(r.Context(), GetUserID(r.Context()), req.Resource, req.Action, req.accessContext(r))
	respondJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// CheckAccessDetailed handles POST /api/v1/access/check-detailed
func (h *Handler) CheckAccessDetailed(w http.ResponseWriter, r *http.Request) {
	var req checkAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Resource == "" || req.Action == "" {
		respondError(w, http.StatusBadRequest, "resource and action are required")
		return
	}

	result := h.authz.CheckPermissionDetailed(r.Context(), GetUserID(r.Context()), req.Resource, req.Action, req.accessContext(r))
	respondJSON(w, http.StatusOK, result)
}

type roleResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Profession     string `json:"profession"`
	OrganizationID string `json:"organization_id,omitempty"`
	Description    string `json:"description,omitempty"`
	IsCustom       bool   `json:"is_custom"`
}

// GetUserRoles handles GET /api/v1/users/{userID}/roles
func (h *Handler) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	// Users may list their own roles; anyone else needs the admin surface.
	if userID != GetUserID(r.Context()) && !h.callerIsAdmin(r) {
		respondError(w, http.StatusForbidden, "cannot list roles for another user")
		return
	}

	roles, err := h.authz.GetUserRoles(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list user roles", logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list roles")
		return
	}

	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		rr := roleResponse{
			ID:          role.ID,
			Name:        role.Name,
			Profession:  string(role.Profession),
			Description: role.Description,
			IsCustom:    role.IsCustom,
		}
		if role.OrganizationID != nil {
			rr.OrganizationID = *role.OrganizationID
		}
		out = append(out, rr)
	}
	respondJSON(w, http.StatusOK, map[string]any{"roles": out})
}

type switchRoleRequest struct {
	Role string `json:"role"`
}

// SwitchActiveRole handles POST /api/v1/users/{userID}/active-role
func (h *Handler) SwitchActiveRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID != GetUserID(r.Context()) {
		respondError(w, http.StatusForbidden, "cannot switch roles for another user")
		return
	}

	var req switchRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		respondError(w, http.StatusBadRequest, "role is required")
		return
	}

	orgID := GetOrganizationID(r.Context())
	switched, err := h.authz.SwitchActiveRole(r.Context(), userID, req.Role, optionalString(orgID))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to switch active role", logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to switch role")
		return
	}
	if !switched {
		respondError(w, http.StatusForbidden, "no live assignment for requested role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"switched": true})
}

type assignRoleRequest struct {
	UserID         string     `json:"user_id"`
	RoleID         string     `json:"role_id"`
	OrganizationID string     `json:"organization_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// AssignRole handles POST /api/v1/roles/assignments
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	if !h.callerIsAdmin(r) {
		respondError(w, http.StatusForbidden, "role assignment requires administrator privileges")
		return
	}

	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "user_id and role_id are required")
		return
	}

	err := h.authz.AssignRole(r.Context(), req.UserID, req.RoleID, optionalString(req.OrganizationID), GetUserID(r.Context()), req.ExpiresAt)
	switch {
	case errors.Is(err, authz.ErrRoleNotFound):
		respondError(w, http.StatusNotFound, "role not found")
	case errors.Is(err, authz.ErrRoleConflict):
		respondError(w, http.StatusConflict, "active assignment already exists")
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to assign role", logger.UserID(req.UserID), logger.RoleID(req.RoleID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to assign role")
	default:
		respondJSON(w, http.StatusCreated, map[string]string{"status": "assigned"})
	}
}

type revokeRoleRequest struct {
	UserID         string `json:"user_id"`
	RoleID         string `json:"role_id"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// RevokeRole handles DELETE /api/v1/roles/assignments
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	if !h.callerIsAdmin(r) {
		respondError(w, http.StatusForbidden, "role revocation requires administrator privileges")
		return
	}

	var req revokeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "user_id and role_id are required")
		return
	}

	err := h.authz.RevokeRole(r.Context(), req.UserID, req.RoleID, optionalString(req.OrganizationID), GetUserID(r.Context()))
	switch {
	case errors.Is(err, authz.ErrRoleNotFound):
		respondError(w, http.StatusNotFound, "no live assignment to revoke")
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to revoke role", logger.UserID(req.UserID), logger.RoleID(req.RoleID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to revoke role")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	}
}

// CreateCustomRole handles POST /api/v1/roles/custom
func (h *Handler) CreateCustomRole(w http.ResponseWriter, r *http.Request) {
	if !h.callerIsAdmin(r) {
		respondError(w, http.StatusForbidden, "custom role creation requires administrator privileges")
		return
	}

	orgID := GetOrganizationID(r.Context())
	if orgID == "" {
		respondError(w, http.StatusBadRequest, "caller has no organization")
		return
	}

	var def authz.RoleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.authz.CreateCustomRole(r.Context(), orgID, def, GetUserID(r.Context()))
	switch {
	case errors.Is(err, authz.ErrRoleExists):
		respondError(w, http.StatusConflict, "role name already exists in organization")
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to create custom role", logger.RoleName(def.Name), logger.Error(err))
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondJSON(w, http.StatusCreated, roleResponse{
			ID:             role.ID,
			Name:           role.Name,
			Profession:     string(role.Profession),
			OrganizationID: orgID,
			Description:    role.Description,
			IsCustom:       true,
		})
	}
}

type resourceRequest struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Permission   string `json:"permission,omitempty"`
}

// tenantContext builds the caller's tenant context from the authenticated
// principal.
func (h *Handler) tenantContext(r *http.Request) (*tenant.Context, error) {
	return h.factory.CreateContext(
		GetUserID(r.Context()),
		GetOrganizationID(r.Context()),
		rbac.Profession(GetProfession(r.Context())),
	)
}

// TagResource handles POST /api/v1/resources/tag
func (h *Handler) TagResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ResourceType == "" || req.ResourceID == "" {
		respondError(w, http.StatusBadRequest, "resource_type and resource_id are required")
		return
	}

	tc, err := h.tenantContext(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.guard.TagResource(r.Context(), req.ResourceType, req.ResourceID, tc); err != nil {
		slog.ErrorContext(r.Context(), "failed to tag resource", logger.Resource(req.ResourceType), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to tag resource")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "tagged"})
}

// ValidateResourceAccess handles POST /api/v1/resources/validate-access
func (h *Handler) ValidateResourceAccess(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ResourceType == "" || req.ResourceID == "" || req.Permission == "" {
		respondError(w, http.StatusBadRequest, "resource_type, resource_id and permission are required")
		return
	}

	tc, err := h.tenantContext(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	allowed, err := h.guard.ValidateResourceAccess(r.Context(), req.ResourceType, req.ResourceID, tc, req.Permission)
	switch {
	case errors.Is(err, tenant.ErrResourceNotFound):
		respondError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, tenant.ErrIsolationViolation):
		respondJSON(w, http.StatusForbidden, map[string]string{
			"error": "isolation_violation",
		})
	case err != nil:
		slog.ErrorContext(r.Context(), "resource access validation failed", logger.Resource(req.ResourceType), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "validation failed")
	default:
		respondJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
	}
}

// EncryptData handles POST /api/v1/data/encrypt
func (h *Handler) EncryptData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Data) == 0 {
		respondError(w, http.StatusBadRequest, "data is required")
		return
	}

	tc, err := h.tenantContext(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := h.boundary.EncryptTenantData(r.Context(), req.Data, tc)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to encrypt tenant data", logger.TenantID(tc.TenantID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "encryption failed")
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

// DecryptData handles POST /api/v1/data/decrypt
func (h *Handler) DecryptData(w http.ResponseWriter, r *http.Request) {
	var payload tenant.EncryptedPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	tc, err := h.tenantContext(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.boundary.DecryptTenantData(r.Context(), &payload, tc)
	switch {
	case errors.Is(err, tenant.ErrIsolationViolation):
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "isolation_violation"})
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to decrypt tenant data", logger.TenantID(tc.TenantID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "decryption failed")
	default:
		respondJSON(w, http.StatusOK, map[string]json.RawMessage{"data": data})
	}
}

// AuditReport handles GET /api/v1/audit/report
func (h *Handler) AuditReport(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	orgID := GetOrganizationID(r.Context())

	allowed := h.authz.CheckPermission(r.Context(), userID, rbac.ResourceAuditReport, rbac.ActionRead, authz.AccessContext{
		UserID:         userID,
		OrganizationID: orgID,
	})
	if !allowed {
		respondError(w, http.StatusForbidden, "audit report access denied")
		return
	}

	to := time.Now()
	from := to.Add(-30 * 24 * time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		to = t
	}

	report, err := h.reporter.GenerateAccessAuditReport(r.Context(), h.factory.DeriveTenantID(orgID), from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate audit report", logger.OrganizationID(orgID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) callerIsAdmin(r *http.Request) bool {
	return GetProfession(r.Context()) == string(rbac.ProfessionAdmin)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
