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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heracore/heracore/internal/audit"
	"github.com/heracore/heracore/internal/entity"
	"github.com/heracore/heracore/internal/gateway"
	"github.com/heracore/heracore/internal/guardrail"
	"github.com/heracore/heracore/internal/org"
	"github.com/heracore/heracore/internal/smartcode"
)

var (
	testSecret = []byte("handler-test-secret")
	testIssuer = "heracore-test"
)

// stubOrgRepo is an in-memory org store for router tests.
type stubOrgRepo struct {
	orgs map[uuid.UUID]*org.Organization
}

func (r *stubOrgRepo) Create(ctx context.Context, o *org.Organization) error {
	r.orgs[o.ID] = o
	return nil
}

func (r *stubOrgRepo) GetByID(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
	o, ok := r.orgs[id]
	if !ok {
		return nil, org.ErrOrgNotFound
	}
	return o, nil
}

func (r *stubOrgRepo) GetByCode(ctx context.Context, code string) (*org.Organization, error) {
	for _, o := range r.orgs {
		if o.Code == code {
			return o, nil
		}
	}
	return nil, org.ErrOrgNotFound
}

func (r *stubOrgRepo) Update(ctx context.Context, o *org.Organization) error {
	if _, ok := r.orgs[o.ID]; !ok {
		return org.ErrOrgNotFound
	}
	r.orgs[o.ID] = o
	return nil
}

func (r *stubOrgRepo) Deactivate(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) error {
	o, ok := r.orgs[id]
	if !ok {
		return org.ErrOrgNotFound
	}
	o.Status = org.StatusInactive
	return nil
}

func (r *stubOrgRepo) List(ctx context.Context, limit, offset int) ([]*org.Organization, error) {
	var out []*org.Organization
	for _, o := range r.orgs {
		out = append(out, o)
	}
	return out, nil
}

// stubEntityRepo covers the entity endpoints exercised through the router.
type stubEntityRepo struct {
	entities map[uuid.UUID]*entity.Entity
}

func (r *stubEntityRepo) Create(ctx context.Context, e *entity.Entity) error {
	r.entities[e.ID] = e
	return nil
}

func (r *stubEntityRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*entity.Entity, error) {
	e, ok := r.entities[id]
	if !ok || e.OrganizationID != orgID || e.Status == entity.StatusDeleted {
		return nil, entity.ErrEntityNotFound
	}
	return e, nil
}

func (r *stubEntityRepo) GetByTypeAndCode(ctx context.Context, orgID uuid.UUID, entityType, entityCode string) (*entity.Entity, error) {
	for _, e := range r.entities {
		if e.OrganizationID == orgID && e.EntityType == entityType && e.EntityCode == entityCode && e.Status != entity.StatusDeleted {
			return e, nil
		}
	}
	return nil, entity.ErrEntityNotFound
}

func (r *stubEntityRepo) Query(ctx context.Context, orgID uuid.UUID, f entity.Filter) ([]*entity.Entity, error) {
	var out []*entity.Entity
	for _, e := range r.entities {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubEntityRepo) Update(ctx context.Context, orgID, id uuid.UUID, patch entity.Update, updatedBy uuid.UUID) (*entity.Entity, error) {
	e, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if patch.EntityName != nil {
		e.EntityName = *patch.EntityName
	}
	e.UpdatedBy = updatedBy
	return e, nil
}

func (r *stubEntityRepo) SoftDelete(ctx context.Context, orgID, id uuid.UUID, updatedBy uuid.UUID) error {
	e, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return err
	}
	e.Status = entity.StatusDeleted
	return nil
}

func (r *stubEntityRepo) UpsertDynamicFields(ctx context.Context, fields []*entity.DynamicField) error {
	return nil
}

func (r *stubEntityRepo) GetDynamicFields(ctx context.Context, orgID, entityID uuid.UUID) ([]*entity.DynamicField, error) {
	return nil, nil
}

type routerFixture struct {
	orgID    uuid.UUID
	actorID  uuid.UUID
	entities *stubEntityRepo
	orgs     *stubOrgRepo
}

func newRouterFixture(t *testing.T, limits *RateLimits) (http.Handler, *routerFixture) {
	t.Helper()

	validator, err := smartcode.NewValidator("")
	require.NoError(t, err)

	orgs := &stubOrgRepo{orgs: make(map[uuid.UUID]*org.Organization)}
	entities := &stubEntityRepo{entities: make(map[uuid.UUID]*entity.Entity)}

	orgID := uuid.New()
	actorID := uuid.New()
	orgs.orgs[orgID] = &org.Organization{
		ID:     orgID,
		Name:   "Acme Trading LLC",
		Code:   "acme",
		Status: org.StatusActive,
	}

	deps := gateway.Deps{
		SmartCodes: validator,
		Audit:      audit.NewSlogLogger(),
		Mode:       guardrail.ModeEnforce,
	}

	var limiter *RateLimiter
	if limits != nil {
		limiter = NewRateLimiter(*limits)
	}

	h := NewHandler(
		gateway.NewEntityGateway(deps, entities, nil, orgs),
		gateway.NewRelationshipGateway(deps, nil, nil),
		gateway.NewTransactionGateway(deps, nil),
		org.NewService(orgs, audit.NewSlogLogger()),
		limiter,
	)
	router := NewRouter(h, AuthConfig{TokenSecret: testSecret, TokenIssuer: testIssuer})

	fx := &routerFixture{
		orgID:    orgID,
		actorID:  actorID,
		entities: entities,
		orgs:     orgs,
	}
	return router, fx
}

func signToken(t *testing.T, secret []byte, actorID, orgID uuid.UUID, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, actorClaims{
		ActorID:        actorID.String(),
		OrganizationID: orgID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestPurpose: Validates that the health endpoint responds without any
// credentials so load balancers can probe it.
// Expected: 200 with a status body.
func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	router, _ := newRouterFixture(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

// TestPurpose: Validates token verification on the API surface.
// Security: A missing token, a token signed with the wrong key, and an
// expired token must all be rejected before any handler code runs.
// Expected: 401 in every case.
func TestAuthRejectsBadTokens(t *testing.T) {
	router, fx := newRouterFixture(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/entities", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing token")

	forged := signToken(t, []byte("wrong-secret"), fx.actorID, fx.orgID, time.Now().Add(time.Hour))
	rec = doJSON(t, router, http.MethodPost, "/api/v1/entities", forged, map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "wrong signing key")

	expired := signToken(t, testSecret, fx.actorID, fx.orgID, time.Now().Add(-time.Minute))
	rec = doJSON(t, router, http.MethodPost, "/api/v1/entities", expired, map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "expired token")
}

// TestPurpose: Validates that organization scope cannot be supplied out
// of band.
// Security: The X-Organization-ID header is the classic scope-spoofing
// vector; its mere presence must fail the request rather than being
// silently ignored.
// Expected: 400 naming the offending header.
func TestAuthRejectsOrganizationHeader(t *testing.T) {
	router, fx := newRouterFixture(t, nil)
	token := signToken(t, testSecret, fx.actorID, fx.orgID, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/entities", bytes.NewReader([]byte("{}")))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Organization-ID", uuid.New().String())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Organization-ID")
}

// TestPurpose: Validates that actor and organization identity always come
// from the verified token, never from the request body.
// Security: A caller who writes someone else's ids into the JSON body
// must still have the write attributed and scoped to their own token.
// Expected: The created entity carries the token's org and actor ids.
func TestEntityCreateUsesTokenIdentityNotBody(t *testing.T) {
	router, fx := newRouterFixture(t, nil)
	token := signToken(t, testSecret, fx.actorID, fx.orgID, time.Now().Add(time.Hour))

	foreignOrg := uuid.New()
	foreignActor := uuid.New()
	body := map[string]any{
		"action":          "CREATE",
		"actor_id":        foreignActor.String(),
		"organization_id": foreignOrg.String(),
		"entity": map[string]any{
			"entity_type": "customer",
			"entity_name": "Jane Smith",
			"entity_code": "CUST-001",
			"smart_code":  "HERA.CRM.CUSTOMER.ENTITY.PERSON.v1",
		},
	}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/entities", token, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp gateway.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	var result gateway.EntityResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, fx.orgID, result.Entity.OrganizationID)
	assert.Equal(t, fx.actorID, result.Entity.CreatedBy)
	assert.NotEqual(t, foreignOrg, result.Entity.OrganizationID)
}

// TestPurpose: Validates the mapping from the governance error taxonomy
// onto HTTP statuses.
// Expected: Smart-code rejections are 422 with the violation list;
// missing records are 404.
func TestGuardrailErrorsMapToHTTPStatus(t *testing.T) {
	router, fx := newRouterFixture(t, nil)
	token := signToken(t, testSecret, fx.actorID, fx.orgID, time.Now().Add(time.Hour))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/entities", token, map[string]any{
		"action": "CREATE",
		"entity": map[string]any{
			"entity_type": "customer",
			"entity_name": "Jane Smith",
			"entity_code": "CUST-001",
			"smart_code":  "not.a.smart.code",
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), guardrail.CodeInvalidSmartCode)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/entities", token, map[string]any{
		"action":    "READ",
		"entity_id": uuid.New().String(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), guardrail.CodeNotFound)
}

// TestPurpose: Validates per-actor token-bucket rate limiting on reads.
// Expected: The first request within the burst budget passes, the next
// one is rejected with 429.
func TestRateLimitReturns429(t *testing.T) {
	router, fx := newRouterFixture(t, &RateLimits{
		ReadPerMinute:      1,
		WritePerMinute:     1,
		FinancialPerMinute: 1,
		Burst:              1,
	})
	token := signToken(t, testSecret, fx.actorID, fx.orgID, time.Now().Add(time.Hour))

	query := map[string]any{"action": "QUERY"}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/entities", token, query)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/v1/entities", token, query)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

// TestPurpose: Validates that the organization endpoint only serves the
// organization the token is scoped to.
// Security: Probing another tenant's organization id must look identical
// to probing a nonexistent one.
// Expected: Own org 200, any other id 404.
func TestGetOrganizationScopedToToken(t *testing.T) {
	router, fx := newRouterFixture(t, nil)
	token := signToken(t, testSecret, fx.actorID, fx.orgID, time.Now().Add(time.Hour))

	rec := doJSON(t, router, http.MethodGet, "/api/v1/organizations/"+fx.orgID.String(), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Trading LLC")

	rec = doJSON(t, router, http.MethodGet, "/api/v1/organizations/"+uuid.New().String(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestPurpose: Validates tenant provisioning over HTTP, including the
// duplicate-code conflict.
// Expected: First provision 201, same code again 409.
func TestProvisionOrganization(t *testing.T) {
	router, fx := newRouterFixture(t, nil)
	token := signToken(t, testSecret, fx.actorID, fx.orgID, time.Now().Add(time.Hour))

	body := map[string]any{
		"organization_name": "Mario's Restaurant",
		"organization_code": "marios",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/organizations", token, body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/organizations", token, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
