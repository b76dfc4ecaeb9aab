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

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heracore/heracore/internal/audit"
	"github.com/heracore/heracore/internal/guardrail"
	"github.com/heracore/heracore/internal/relationship"
)

// RelationshipPayload is the caller-supplied edge shape for CREATE.
type RelationshipPayload struct {
	FromEntityID     uuid.UUID       `json:"from_entity_id"`
	ToEntityID       uuid.UUID       `json:"to_entity_id"`
	RelationshipType string          `json:"relationship_type"`
	RelationshipData json.RawMessage `json:"relationship_data,omitempty"`
	SmartCode        string          `json:"smart_code"`
}

// RelationshipRequest is the single entry-point command for the edge
// aggregate.
type RelationshipRequest struct {
	Action         Action               `json:"action"`
	ActorID        uuid.UUID            `json:"actor_id"`
	OrganizationID uuid.UUID            `json:"organization_id"`
	RelationshipID uuid.UUID            `json:"relationship_id,omitempty"`
	Relationship   *RelationshipPayload `json:"relationship,omitempty"`
	Patch          *relationship.Update `json:"patch,omitempty"`
	Filter         relationship.Filter  `json:"filter,omitempty"`
	Options        Options              `json:"options,omitempty"`
}

// RelationshipGateway wraps all edge mutations in the guardrail pipeline.
type RelationshipGateway struct {
	deps        Deps
	edges       relationship.Repository
	memberships *relationship.Resolver
}

// NewRelationshipGateway creates the relationship CRUD gateway.
func NewRelationshipGateway(deps Deps, edges relationship.Repository, memberships *relationship.Resolver) *RelationshipGateway {
	return &RelationshipGateway{deps: deps, edges: edges, memberships: memberships}
}

// Execute runs one relationship command through the pipeline.
func (g *RelationshipGateway) Execute(ctx context.Context, req RelationshipRequest) (*Response, error) {
	requestID := newRequestID()

	if req.ActorID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "actor_id is required")
	}
	if req.OrganizationID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "organization_id is required")
	}

	switch req.Action {
	case ActionCreate:
		return g.create(ctx, requestID, req)
	case ActionRead:
		return g.read(ctx, requestID, req)
	case ActionQuery:
		return g.query(ctx, requestID, req)
	case ActionUpdate:
		return g.update(ctx, requestID, req)
	case ActionDelete:
		return g.delete(ctx, requestID, req)
	default:
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, fmt.Sprintf("unsupported relationship action %q", req.Action))
	}
}

func (g *RelationshipGateway) create(ctx context.Context, requestID string, req RelationshipRequest) (*Response, error) {
	collector := guardrail.NewCollector(g.deps.Mode)

	if req.Relationship == nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "relationship payload is required for CREATE")
	}
	p := req.Relationship

	if _, err := g.deps.SmartCodes.Validate(p.SmartCode); err != nil {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeInvalidSmartCode, Field: "smart_code", Message: err.Error(),
		})
	}

	if p.RelationshipType == "" {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeShapeValidation, Field: "relationship_type",
			Message: "relationship_type is required",
		})
	}
	if p.FromEntityID == uuid.Nil || p.ToEntityID == uuid.Nil {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeShapeValidation, Field: "from_entity_id",
			Message: "both endpoints are required",
		})
	}
	if p.FromEntityID == p.ToEntityID && p.FromEntityID != uuid.Nil {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeShapeValidation, Field: "to_entity_id",
			Message: "self-referencing edge is not allowed",
		})
	}

	// Payload-only failures abort before the replay lookup; a first call
	// rejected here never stored a response.
	if err := collector.Err(requestID); err != nil {
		g.deps.auditOutcome(ctx, audit.TypeRelationshipWrite, requestID, req.OrganizationID, req.ActorID, "relationship", audit.OutcomeRejected, collector.Violations())
		return nil, err
	}

	// Idempotency short-circuit, ahead of the state-dependent checks: the
	// edge the first call created is exactly what the duplicate guard
	// below would find, and a replay must return the stored response
	// instead of being rejected by it.
	replay, hash, err := g.deps.checkReplay(ctx, req.OrganizationID, "relationship.create", req.Options.IdempotencyKey, req)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	// Both endpoints must live in the declared organization; the platform
	// exception on the from side is handled inside the enforcer.
	if p.FromEntityID != uuid.Nil && p.ToEntityID != uuid.Nil {
		if err := g.deps.Boundary.CheckRelationshipEndpoints(ctx, req.OrganizationID, p.FromEntityID, p.ToEntityID); err != nil {
			collector.Add(boundaryViolation(err))
		}
	}

	// Duplicate active edges for the same (from, to, type) triple are a
	// data hazard, surfaced before the store rejects them.
	if !collector.Blocked() && p.RelationshipType != "" {
		existing, err := g.edges.Query(ctx, req.OrganizationID, relationship.Filter{
			RelationshipType: p.RelationshipType,
			FromEntityID:     p.FromEntityID,
			ToEntityID:       p.ToEntityID,
			ActiveOnly:       true,
			Limit:            1,
		})
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			collector.Add(guardrail.Violation{
				Code: guardrail.CodeShapeValidation, Field: "relationship_type",
				Message: "active edge already exists for (from, to, type)",
				Details: map[string]any{"existing_relationship_id": existing[0].ID.String()},
			})
		}
	}

	if err := collector.Err(requestID); err != nil {
		g.deps.auditOutcome(ctx, audit.TypeRelationshipWrite, requestID, req.OrganizationID, req.ActorID, "relationship", audit.OutcomeRejected, collector.Violations())
		return nil, err
	}
	collector.LogWarnings(ctx, requestID)

	now := time.Now()
	r := &relationship.Relationship{
		ID:               uuid.New(),
		OrganizationID:   req.OrganizationID,
		FromEntityID:     p.FromEntityID,
		ToEntityID:       p.ToEntityID,
		RelationshipType: p.RelationshipType,
		RelationshipData: p.RelationshipData,
		SmartCode:        p.SmartCode,
		IsActive:         true,
		CreatedBy:        req.ActorID,
		UpdatedBy:        req.ActorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := g.edges.Create(ctx, r); err != nil {
		if errors.Is(err, relationship.ErrDuplicateEdge) {
			return nil, guardrail.NewError(guardrail.CodeShapeValidation, err.Error())
		}
		return nil, err
	}
	g.invalidateMemberships(ctx, r)

	resp, err := okResponse(requestID, r, collector.Violations())
	if err != nil {
		return nil, err
	}
	g.deps.storeResult(ctx, req.OrganizationID, "relationship.create", req.Options.IdempotencyKey, hash, resp)
	g.deps.auditOutcome(ctx, audit.TypeRelationshipWrite, requestID, req.OrganizationID, req.ActorID, "relationship:"+r.ID.String(), audit.OutcomeSuccess, collector.Violations())
	return resp, nil
}

func (g *RelationshipGateway) read(ctx context.Context, requestID string, req RelationshipRequest) (*Response, error) {
	if req.RelationshipID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "relationship_id is required for READ")
	}
	r, err := g.edges.GetByID(ctx, req.OrganizationID, req.RelationshipID)
	if err != nil {
		if errors.Is(err, relationship.ErrRelationshipNotFound) {
			return nil, notFoundErr(requestID, "relationship")
		}
		return nil, err
	}
	return okResponse(requestID, r, nil)
}

func (g *RelationshipGateway) query(ctx context.Context, requestID string, req RelationshipRequest) (*Response, error) {
	list, err := g.edges.Query(ctx, req.OrganizationID, req.Filter)
	if err != nil {
		return nil, err
	}
	return okResponse(requestID, list, nil)
}

func (g *RelationshipGateway) update(ctx context.Context, requestID string, req RelationshipRequest) (*Response, error) {
	if req.RelationshipID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "relationship_id is required for UPDATE")
	}
	if req.Patch == nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "patch is required for UPDATE")
	}

	collector := guardrail.NewCollector(g.deps.Mode)
	if req.Patch.SmartCode != nil {
		if _, err := g.deps.SmartCodes.Validate(*req.Patch.SmartCode); err != nil {
			collector.Add(guardrail.Violation{
				Code: guardrail.CodeInvalidSmartCode, Field: "smart_code", Message: err.Error(),
			})
		}
	}
	if err := collector.Err(requestID); err != nil {
		g.deps.auditOutcome(ctx, audit.TypeRelationshipWrite, requestID, req.OrganizationID, req.ActorID, "relationship:"+req.RelationshipID.String(), audit.OutcomeRejected, collector.Violations())
		return nil, err
	}
	collector.LogWarnings(ctx, requestID)

	r, err := g.edges.Update(ctx, req.OrganizationID, req.RelationshipID, *req.Patch, req.ActorID)
	if err != nil {
		if errors.Is(err, relationship.ErrRelationshipNotFound) {
			return nil, notFoundErr(requestID, "relationship")
		}
		return nil, err
	}
	g.invalidateMemberships(ctx, r)

	g.deps.auditOutcome(ctx, audit.TypeRelationshipWrite, requestID, req.OrganizationID, req.ActorID, "relationship:"+r.ID.String(), audit.OutcomeSuccess, collector.Violations())
	return okResponse(requestID, r, collector.Violations())
}

// delete deactivates an edge. Deleting a membership edge cascades: every
// role edge of the same actor in the same organization is removed in the
// same storage transaction, so no orphaned grants survive.
func (g *RelationshipGateway) delete(ctx context.Context, requestID string, req RelationshipRequest) (*Response, error) {
	if req.RelationshipID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "relationship_id is required for DELETE")
	}

	r, err := g.edges.GetByID(ctx, req.OrganizationID, req.RelationshipID)
	if err != nil {
		if errors.Is(err, relationship.ErrRelationshipNotFound) {
			return nil, notFoundErr(requestID, "relationship")
		}
		return nil, err
	}

	if r.RelationshipType == relationship.TypeMembership {
		removed, err := g.edges.DeleteMembershipCascade(ctx, req.OrganizationID, r.FromEntityID)
		if err != nil {
			return nil, err
		}
		g.invalidateMemberships(ctx, r)
		g.deps.Audit.Log(ctx, audit.Event{
			Type:      audit.TypeMembershipCascade,
			RequestID: requestID,
			OrgID:     req.OrganizationID.String(),
			ActorID:   req.ActorID.String(),
			Resource:  "relationship:" + r.ID.String(),
			Outcome:   audit.OutcomeSuccess,
			Metadata:  map[string]any{"edges_removed": removed},
		})
		return okResponse(requestID, map[string]any{"id": r.ID.String(), "edges_removed": removed}, nil)
	}

	if req.Options.HardDelete {
		err = g.edges.HardDelete(ctx, req.OrganizationID, req.RelationshipID)
	} else {
		err = g.edges.Deactivate(ctx, req.OrganizationID, req.RelationshipID, req.ActorID)
	}
	if err != nil {
		if errors.Is(err, relationship.ErrRelationshipNotFound) {
			return nil, notFoundErr(requestID, "relationship")
		}
		return nil, err
	}
	g.invalidateMemberships(ctx, r)

	g.deps.auditOutcome(ctx, audit.TypeRelationshipWrite, requestID, req.OrganizationID, req.ActorID, "relationship:"+r.ID.String(), audit.OutcomeSuccess, nil)
	return okResponse(requestID, map[string]string{"id": r.ID.String()}, nil)
}

// invalidateMemberships drops the resolver cache when a role-bearing edge
// changes, so the next resolution sees the mutation.
func (g *RelationshipGateway) invalidateMemberships(ctx context.Context, r *relationship.Relationship) {
	if g.memberships == nil {
		return
	}
	switch r.RelationshipType {
	case relationship.TypeMembership, relationship.TypeHasRole:
		g.memberships.Invalidate(ctx, r.FromEntityID)
	}
}
