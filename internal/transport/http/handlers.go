// Copyright 2026 The HeraCore Authors
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

// Package http exposes the engine over an RPC-style JSON API. Each
// aggregate has a single POST endpoint taking an action envelope; the
// actor and organization scope always come from the verified token,
// never from the request body.
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

	"github.com/heracore/heracore/internal/gateway"
	"github.com/heracore/heracore/internal/guardrail"
	"github.com/heracore/heracore/internal/observability/logger"
	"github.com/heracore/heracore/internal/org"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	entities      *gateway.EntityGateway
	relationships *gateway.RelationshipGateway
	transactions  *gateway.TransactionGateway
	orgService    *org.Service
	limiter       *RateLimiter
}

// NewHandler creates a new HTTP handler
func NewHandler(
	entities *gateway.EntityGateway,
	relationships *gateway.RelationshipGateway,
	transactions *gateway.TransactionGateway,
	orgService *org.Service,
	limiter *RateLimiter,
) *Handler {
	return &Handler{
		entities:      entities,
		relationships: relationships,
		transactions:  transactions,
		orgService:    orgService,
		limiter:       limiter,
	}
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	TokenSecret []byte
	TokenIssuer string
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, auth AuthConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(auth.TokenSecret, auth.TokenIssuer))

		r.Post("/entities", h.Entities)
		r.Post("/relationships", h.Relationships)
		r.Post("/transactions", h.Transactions)

		r.Post("/organizations", h.ProvisionOrganization)
		r.Get("/organizations/{id}", h.GetOrganization)
	})

	return r
}

// HealthCheck reports liveness
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Entities executes one entity command
func (h *Handler) Entities(w http.ResponseWriter, r *http.Request) {
	var req gateway.EntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Identity and scope are non-negotiable: always token-derived.
	req.ActorID = GetActorID(r.Context())
	req.OrganizationID = GetOrganizationID(r.Context())

	if !h.allow(w, r, classFor(req.Action)) {
		return
	}

	resp, err := h.entities.Execute(r.Context(), req)
	if err != nil {
		respondGatewayError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Relationships executes one relationship command
func (h *Handler) Relationships(w http.ResponseWriter, r *http.Request) {
	var req gateway.RelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ActorID = GetActorID(r.Context())
	req.OrganizationID = GetOrganizationID(r.Context())

	if !h.allow(w, r, classFor(req.Action)) {
		return
	}

	resp, err := h.relationships.Execute(r.Context(), req)
	if err != nil {
		respondGatewayError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Transactions executes one transaction command
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	var req gateway.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ActorID = GetActorID(r.Context())
	req.OrganizationID = GetOrganizationID(r.Context())

	class := ClassFinancial
	if req.Action == gateway.ActionRead || req.Action == gateway.ActionQuery {
		class = ClassRead
	}
	if !h.allow(w, r, class) {
		return
	}

	resp, err := h.transactions.Execute(r.Context(), req)
	if err != nil {
		respondGatewayError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// provisionOrgRequest is the organization provisioning payload.
type provisionOrgRequest struct {
	Name     string          `json:"organization_name"`
	Code     string          `json:"organization_code"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// ProvisionOrganization creates a new tenant
func (h *Handler) ProvisionOrganization(w http.ResponseWriter, r *http.Request) {
	var req provisionOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "organization_name and organization_code are required")
		return
	}

	if !h.allow(w, r, ClassWrite) {
		return
	}

	o, err := h.orgService.Provision(r.Context(), req.Name, req.Code, req.Settings, GetActorID(r.Context()))
	if err != nil {
		if errors.Is(err, org.ErrOrgCodeConflict) {
			respondError(w, http.StatusConflict, "organization code already exists")
			return
		}
		slog.ErrorContext(r.Context(), "organization provisioning failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// GetOrganization returns the caller's organization. Only the scope the
// token grants is visible; any other id is not found.
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, ClassRead) {
		return
	}

	id := chi.URLParam(r, "id")
	if id != GetOrganizationID(r.Context()).String() {
		respondError(w, http.StatusNotFound, "organization not found")
		return
	}

	o, err := h.orgService.Get(r.Context(), GetOrganizationID(r.Context()))
	if err != nil {
		if errors.Is(err, org.ErrOrgNotFound) {
			respondError(w, http.StatusNotFound, "organization not found")
			return
		}
		slog.ErrorContext(r.Context(), "organization lookup failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) allow(w http.ResponseWriter, r *http.Request, class OpClass) bool {
	if h.limiter == nil {
		return true
	}
	if !h.limiter.Allow(GetActorID(r.Context()).String(), class) {
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

func classFor(action gateway.Action) OpClass {
	switch action {
	case gateway.ActionRead, gateway.ActionQuery:
		return ClassRead
	default:
		return ClassWrite
	}
}

// respondGatewayError maps the guardrail taxonomy onto HTTP statuses and
// returns the full violation envelope so callers can fix every issue in
// one round trip.
func respondGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	ge, ok := guardrail.AsError(err)
	if !ok {
		slog.ErrorContext(r.Context(), "gateway execution failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusUnprocessableEntity
	switch ge.Code {
	case guardrail.CodeNotFound:
		status = http.StatusNotFound
	case guardrail.CodeCrossTenantViolation:
		status = http.StatusForbidden
	case guardrail.CodeIdempotencyConflict:
		status = http.StatusConflict
	}

	respondJSON(w, status, map[string]any{
		"success":    false,
		"error":      ge.Code,
		"message":    ge.Message,
		"violations": ge.Violations,
		"request_id": ge.RequestID,
	})
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
