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

// Package gateway is the only mutation surface of the data engine. Each
// aggregate (entity, relationship, transaction) gets one gateway that
// composes, in order: smart code validation, tenant boundary enforcement,
// shape checks, posting balance (transactions), the idempotency
// short-circuit, the store mutation, and actor stamping. Every call is
// audited under a request id.
package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heracore/heracore/internal/audit"
	"github.com/heracore/heracore/internal/boundary"
	"github.com/heracore/heracore/internal/guardrail"
	"github.com/heracore/heracore/internal/idempotency"
	"github.com/heracore/heracore/internal/smartcode"
)

// Action is the operation discriminator shared by the CRUD surfaces.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionRead    Action = "READ"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionQuery   Action = "QUERY"
	ActionPost    Action = "POST"
	ActionVoid    Action = "VOID"
	ActionReverse Action = "REVERSE"
)

// Options carries caller-controlled execution options.
type Options struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	HardDelete     bool   `json:"hard_delete,omitempty"`
}

// Response is the uniform gateway result. RequestID correlates the call
// with the audit log; Violations lists warn-mode findings even on success.
type Response struct {
	Success    bool                  `json:"success"`
	Data       json.RawMessage       `json:"data,omitempty"`
	RequestID  string                `json:"request_id"`
	Violations []guardrail.Violation `json:"violations,omitempty"`
	Replayed   bool                  `json:"replayed,omitempty"`
}

// Deps bundles the collaborators every gateway shares.
type Deps struct {
	SmartCodes  *smartcode.Validator
	Boundary    *boundary.Enforcer
	Idempotency *idempotency.Checker
	Audit       audit.Logger
	Mode        guardrail.Mode
}

func newRequestID() string {
	return uuid.NewString()
}

// okResponse marshals data into a success envelope.
func okResponse(requestID string, data any, violations []guardrail.Violation) (*Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Response{
		Success:    true,
		Data:       raw,
		RequestID:  requestID,
		Violations: violations,
	}, nil
}

// checkReplay consults the idempotency store before executing. A stored
// response is returned verbatim, so the caller sees the original ids.
func (d *Deps) checkReplay(ctx context.Context, orgID uuid.UUID, operation, key string, payload any) (*Response, string, error) {
	if d.Idempotency == nil || key == "" {
		return nil, "", nil
	}
	hash, err := idempotency.HashPayload(payload)
	if err != nil {
		return nil, "", err
	}
	stored, err := d.Idempotency.Check(ctx, orgID, operation, key, hash)
	if err != nil {
		if errors.Is(err, idempotency.ErrKeyConflict) {
			return nil, hash, guardrail.NewError(guardrail.CodeIdempotencyConflict,
				"idempotency key was already used with a different payload")
		}
		return nil, hash, err
	}
	if stored == nil {
		return nil, hash, nil
	}

	var resp Response
	if err := json.Unmarshal(stored, &resp); err != nil {
		return nil, hash, err
	}
	resp.Replayed = true

	d.Audit.Log(ctx, audit.Event{
		Type:      audit.TypeIdempotentReplay,
		RequestID: resp.RequestID,
		OrgID:     orgID.String(),
		Outcome:   audit.OutcomeReplayed,
		Metadata:  map[string]any{"operation": operation},
	})
	return &resp, hash, nil
}

// storeResult persists a successful response for future replays.
func (d *Deps) storeResult(ctx context.Context, orgID uuid.UUID, operation, key, hash string, resp *Response) {
	if d.Idempotency == nil || key == "" || hash == "" {
		return
	}
	if data, err := json.Marshal(resp); err == nil {
		// Failure to record a replay entry must not fail the write that
		// already committed; the retry will simply re-execute.
		_ = d.Idempotency.Store(ctx, orgID, operation, key, hash, data)
	}
}

// auditOutcome emits the per-call audit event.
func (d *Deps) auditOutcome(ctx context.Context, eventType, requestID string, orgID, actorID uuid.UUID, resource, outcome string, violations []guardrail.Violation) {
	ev := audit.Event{
		Type:      eventType,
		RequestID: requestID,
		OrgID:     orgID.String(),
		ActorID:   actorID.String(),
		Resource:  resource,
		Outcome:   outcome,
	}
	for _, v := range violations {
		ev.Violations = append(ev.Violations, v)
	}
	d.Audit.Log(ctx, ev)
}

// boundaryViolation converts an enforcer error into the right taxonomy:
// missing rows are NOT_FOUND (never a boundary detail, to avoid leaking
// existence across tenants), actual breaches are CROSS_TENANT_VIOLATION.
func boundaryViolation(err error) guardrail.Violation {
	if errors.Is(err, boundary.ErrRefNotFound) {
		return guardrail.Violation{Code: guardrail.CodeNotFound, Message: "referenced record not found"}
	}
	if errors.Is(err, boundary.ErrCrossTenant) {
		return guardrail.Violation{Code: guardrail.CodeCrossTenantViolation, Message: err.Error()}
	}
	return guardrail.Violation{Code: guardrail.CodeShapeValidation, Message: err.Error()}
}

// decimalFromJSONNumber parses a JSON number into an exact decimal,
// preserving the caller's literal digits instead of going through float64.
func decimalFromJSONNumber(n json.Number) (decimal.Decimal, error) {
	return decimal.NewFromString(n.String())
}

// notFoundErr builds the uniform NOT_FOUND envelope.
func notFoundErr(requestID, what string) error {
	return &guardrail.Error{
		Code:      guardrail.CodeNotFound,
		Message:   what + " not found",
		RequestID: requestID,
		Violations: []guardrail.Violation{
			{Code: guardrail.CodeNotFound, Message: what + " not found"},
		},
	}
}
