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
	"github.com/heracore/heracore/internal/entity"
	"github.com/heracore/heracore/internal/guardrail"
	"github.com/heracore/heracore/internal/org"
	"github.com/heracore/heracore/internal/relationship"
)

// EntityPayload is the caller-supplied entity shape for CREATE/UPDATE.
type EntityPayload struct {
	EntityType string          `json:"entity_type"`
	EntityName string          `json:"entity_name"`
	EntityCode string          `json:"entity_code"`
	SmartCode  string          `json:"smart_code"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Status     string          `json:"status,omitempty"`
}

// DynamicFieldPayload is one typed attribute upserted alongside an entity.
type DynamicFieldPayload struct {
	FieldName    string           `json:"field_name"`
	FieldType    entity.FieldType `json:"field_type"`
	ValueText    *string          `json:"value_text,omitempty"`
	ValueNumber  *json.Number     `json:"value_number,omitempty"`
	ValueBoolean *bool            `json:"value_boolean,omitempty"`
	ValueJSON    json.RawMessage  `json:"value_json,omitempty"`
	ValueDate    *time.Time       `json:"value_date,omitempty"`
	SmartCode    string           `json:"smart_code"`
}

// EntityEdgePayload is an edge created together with the entity. The new
// entity is always the from side.
type EntityEdgePayload struct {
	ToEntityID       uuid.UUID       `json:"to_entity_id"`
	RelationshipType string          `json:"relationship_type"`
	RelationshipData json.RawMessage `json:"relationship_data,omitempty"`
	SmartCode        string          `json:"smart_code"`
}

// EntityRequest is the single entry-point command for the entity aggregate.
type EntityRequest struct {
	Action         Action                `json:"action"`
	ActorID        uuid.UUID             `json:"actor_id"`
	OrganizationID uuid.UUID             `json:"organization_id"`
	EntityID       uuid.UUID             `json:"entity_id,omitempty"`
	Entity         *EntityPayload        `json:"entity,omitempty"`
	DynamicFields  []DynamicFieldPayload `json:"dynamic_fields,omitempty"`
	Relationships  []EntityEdgePayload   `json:"relationships,omitempty"`
	Patch          *entity.Update        `json:"patch,omitempty"`
	Filter         entity.Filter         `json:"filter,omitempty"`
	Options        Options               `json:"options,omitempty"`
}

// EntityResult is the data payload of a successful entity write.
type EntityResult struct {
	Entity        *entity.Entity               `json:"entity"`
	DynamicFields []*entity.DynamicField       `json:"dynamic_fields,omitempty"`
	Relationships []*relationship.Relationship `json:"relationships,omitempty"`
}

// EntityGateway wraps all entity mutations in the guardrail pipeline.
type EntityGateway struct {
	deps     Deps
	entities entity.Repository
	edges    relationship.Repository
	orgs     org.Repository
}

// NewEntityGateway creates the entity CRUD gateway.
func NewEntityGateway(deps Deps, entities entity.Repository, edges relationship.Repository, orgs org.Repository) *EntityGateway {
	return &EntityGateway{deps: deps, entities: entities, edges: edges, orgs: orgs}
}

// Execute runs one entity command through the pipeline.
func (g *EntityGateway) Execute(ctx context.Context, req EntityRequest) (*Response, error) {
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
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, fmt.Sprintf("unsupported entity action %q", req.Action))
	}
}

func (g *EntityGateway) create(ctx context.Context, requestID string, req EntityRequest) (*Response, error) {
	collector := guardrail.NewCollector(g.deps.Mode)

	if req.Entity == nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "entity payload is required for CREATE")
	}
	p := req.Entity

	// 1. Smart code shape, always fatal on failure.
	if _, err := g.deps.SmartCodes.Validate(p.SmartCode); err != nil {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeInvalidSmartCode, Field: "smart_code", Message: err.Error(),
		})
	}
	for i, f := range req.DynamicFields {
		if _, err := g.deps.SmartCodes.Validate(f.SmartCode); err != nil {
			collector.Add(guardrail.Violation{
				Code:    guardrail.CodeInvalidSmartCode,
				Field:   fmt.Sprintf("dynamic_fields[%d].smart_code", i),
				Message: err.Error(),
			})
		}
	}
	for i, edge := range req.Relationships {
		if _, err := g.deps.SmartCodes.Validate(edge.SmartCode); err != nil {
			collector.Add(guardrail.Violation{
				Code:    guardrail.CodeInvalidSmartCode,
				Field:   fmt.Sprintf("relationships[%d].smart_code", i),
				Message: err.Error(),
			})
		}
		if edge.RelationshipType == "" {
			collector.Add(guardrail.Violation{
				Code:    guardrail.CodeShapeValidation,
				Field:   fmt.Sprintf("relationships[%d].relationship_type", i),
				Message: "relationship_type is required",
			})
		}
		if edge.ToEntityID == uuid.Nil {
			collector.Add(guardrail.Violation{
				Code:    guardrail.CodeShapeValidation,
				Field:   fmt.Sprintf("relationships[%d].to_entity_id", i),
				Message: "to_entity_id is required",
			})
		}
	}

	// 2. Required fields. Payload-only failures abort here: a first call
	// that failed on its payload stored nothing, so there is no replay to
	// look up.
	g.checkShape(collector, p, req.DynamicFields)
	if err := collector.Err(requestID); err != nil {
		g.deps.auditOutcome(ctx, audit.TypeEntityWrite, requestID, req.OrganizationID, req.ActorID, "entity", audit.OutcomeRejected, collector.Violations())
		return nil, err
	}

	// 3. Idempotency short-circuit, ahead of every state-dependent check.
	// The first successful call changed exactly the state those checks
	// read (the uniqueness row it created), and a replay must return the
	// stored response instead of tripping over it.
	replay, hash, err := g.deps.checkReplay(ctx, req.OrganizationID, "entity.create", req.Options.IdempotencyKey, req)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	// 4. Tenant boundary: the declared organization must exist and be
	// active, and every inline edge target must already live inside it.
	// The new entity's own side is in-scope by construction.
	o, err := g.orgs.GetByID(ctx, req.OrganizationID)
	if err != nil {
		if errors.Is(err, org.ErrOrgNotFound) {
			return nil, notFoundErr(requestID, "organization")
		}
		return nil, err
	}
	if o.Status != org.StatusActive {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeShapeValidation, Field: "organization_id",
			Message: "organization is not active",
		})
	}
	if g.deps.Boundary != nil {
		for i, edge := range req.Relationships {
			if edge.ToEntityID == uuid.Nil {
				continue
			}
			if err := g.deps.Boundary.CheckEntity(ctx, req.OrganizationID, edge.ToEntityID); err != nil {
				v := boundaryViolation(err)
				v.Field = fmt.Sprintf("relationships[%d].to_entity_id", i)
				collector.Add(v)
			}
		}
	}

	// 5. Soft uniqueness constraint on (entity_type, entity_code).
	if p.EntityType != "" && p.EntityCode != "" {
		if existing, err := g.entities.GetByTypeAndCode(ctx, req.OrganizationID, p.EntityType, p.EntityCode); err == nil {
			collector.Add(guardrail.Violation{
				Code: guardrail.CodeShapeValidation, Field: "entity_code",
				Message: "entity_type + entity_code already exists in organization",
				Details: map[string]any{"existing_entity_id": existing.ID.String()},
			})
		}
	}

	if err := collector.Err(requestID); err != nil {
		g.deps.auditOutcome(ctx, audit.TypeEntityWrite, requestID, req.OrganizationID, req.ActorID, "entity", audit.OutcomeRejected, collector.Violations())
		return nil, err
	}
	collector.LogWarnings(ctx, requestID)

	// 6. Store mutation with actor stamping.
	now := time.Now()
	status := p.Status
	if status == "" {
		status = entity.StatusActive
	}
	e := &entity.Entity{
		ID:             uuid.New(),
		OrganizationID: req.OrganizationID,
		EntityType:     p.EntityType,
		EntityName:     p.EntityName,
		EntityCode:     p.EntityCode,
		SmartCode:      p.SmartCode,
		Metadata:       p.Metadata,
		Status:         status,
		CreatedBy:      req.ActorID,
		UpdatedBy:      req.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := g.entities.Create(ctx, e); err != nil {
		return nil, err
	}

	fields, err := g.buildDynamicFields(e, req.DynamicFields, req.ActorID, now)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := g.entities.UpsertDynamicFields(ctx, fields); err != nil {
			return nil, err
		}
	}

	var created []*relationship.Relationship
	for _, edge := range req.Relationships {
		r := &relationship.Relationship{
			ID:               uuid.New(),
			OrganizationID:   req.OrganizationID,
			FromEntityID:     e.ID,
			ToEntityID:       edge.ToEntityID,
			RelationshipType: edge.RelationshipType,
			RelationshipData: edge.RelationshipData,
			SmartCode:        edge.SmartCode,
			IsActive:         true,
			CreatedBy:        req.ActorID,
			UpdatedBy:        req.ActorID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := g.edges.Create(ctx, r); err != nil {
			return nil, err
		}
		created = append(created, r)
	}

	resp, err := okResponse(requestID, EntityResult{Entity: e, DynamicFields: fields, Relationships: created}, collector.Violations())
	if err != nil {
		return nil, err
	}
	g.deps.storeResult(ctx, req.OrganizationID, "entity.create", req.Options.IdempotencyKey, hash, resp)
	g.deps.auditOutcome(ctx, audit.TypeEntityWrite, requestID, req.OrganizationID, req.ActorID, "entity:"+e.ID.String(), audit.OutcomeSuccess, collector.Violations())
	return resp, nil
}

func (g *EntityGateway) read(ctx context.Context, requestID string, req EntityRequest) (*Response, error) {
	if req.EntityID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "entity_id is required for READ")
	}
	// Scoped read: anything outside the caller's organization is simply
	// not found, never a boundary detail.
	e, err := g.entities.GetByID(ctx, req.OrganizationID, req.EntityID)
	if err != nil {
		if errors.Is(err, entity.ErrEntityNotFound) {
			return nil, notFoundErr(requestID, "entity")
		}
		return nil, err
	}
	fields, err := g.entities.GetDynamicFields(ctx, req.OrganizationID, e.ID)
	if err != nil {
		return nil, err
	}
	return okResponse(requestID, EntityResult{Entity: e, DynamicFields: fields}, nil)
}

func (g *EntityGateway) query(ctx context.Context, requestID string, req EntityRequest) (*Response, error) {
	list, err := g.entities.Query(ctx, req.OrganizationID, req.Filter)
	if err != nil {
		return nil, err
	}
	return okResponse(requestID, list, nil)
}

func (g *EntityGateway) update(ctx context.Context, requestID string, req EntityRequest) (*Response, error) {
	if req.EntityID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "entity_id is required for UPDATE")
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
		g.deps.auditOutcome(ctx, audit.TypeEntityWrite, requestID, req.OrganizationID, req.ActorID, "entity:"+req.EntityID.String(), audit.OutcomeRejected, collector.Violations())
		return nil, err
	}
	collector.LogWarnings(ctx, requestID)

	e, err := g.entities.Update(ctx, req.OrganizationID, req.EntityID, *req.Patch, req.ActorID)
	if err != nil {
		if errors.Is(err, entity.ErrEntityNotFound) {
			return nil, notFoundErr(requestID, "entity")
		}
		return nil, err
	}

	var fields []*entity.DynamicField
	if len(req.DynamicFields) > 0 {
		fields, err = g.buildDynamicFields(e, req.DynamicFields, req.ActorID, time.Now())
		if err != nil {
			return nil, err
		}
		if err := g.entities.UpsertDynamicFields(ctx, fields); err != nil {
			return nil, err
		}
	}

	g.deps.auditOutcome(ctx, audit.TypeEntityWrite, requestID, req.OrganizationID, req.ActorID, "entity:"+e.ID.String(), audit.OutcomeSuccess, collector.Violations())
	return okResponse(requestID, EntityResult{Entity: e, DynamicFields: fields}, collector.Violations())
}

func (g *EntityGateway) delete(ctx context.Context, requestID string, req EntityRequest) (*Response, error) {
	if req.EntityID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "entity_id is required for DELETE")
	}
	// Delete is a status transition; the row is kept for audit.
	if err := g.entities.SoftDelete(ctx, req.OrganizationID, req.EntityID, req.ActorID); err != nil {
		if errors.Is(err, entity.ErrEntityNotFound) {
			return nil, notFoundErr(requestID, "entity")
		}
		return nil, err
	}
	g.deps.auditOutcome(ctx, audit.TypeEntityWrite, requestID, req.OrganizationID, req.ActorID, "entity:"+req.EntityID.String(), audit.OutcomeSuccess, nil)
	return okResponse(requestID, map[string]string{"id": req.EntityID.String(), "status": entity.StatusDeleted}, nil)
}

func (g *EntityGateway) checkShape(collector *guardrail.Collector, p *EntityPayload, fields []DynamicFieldPayload) {
	if p.EntityType == "" {
		collector.Add(guardrail.Violation{Code: guardrail.CodeShapeValidation, Field: "entity_type", Message: "entity_type is required"})
	}
	if p.EntityName == "" {
		collector.Add(guardrail.Violation{Code: guardrail.CodeShapeValidation, Field: "entity_name", Message: "entity_name is required"})
	}
	for i, f := range fields {
		if f.FieldName == "" {
			collector.Add(guardrail.Violation{
				Code:    guardrail.CodeShapeValidation,
				Field:   fmt.Sprintf("dynamic_fields[%d].field_name", i),
				Message: "field_name is required",
			})
		}
		switch f.FieldType {
		case entity.FieldTypeText, entity.FieldTypeNumber, entity.FieldTypeBoolean, entity.FieldTypeJSON, entity.FieldTypeDate:
		default:
			collector.Add(guardrail.Violation{
				Code:    guardrail.CodeShapeValidation,
				Field:   fmt.Sprintf("dynamic_fields[%d].field_type", i),
				Message: fmt.Sprintf("unknown field_type %q", f.FieldType),
			})
		}
	}
}

// buildDynamicFields materializes payload fields into rows owned by the
// entity. The organization id is taken from the owning entity, which makes
// cross-tenant attribute attachment impossible by construction.
func (g *EntityGateway) buildDynamicFields(e *entity.Entity, payloads []DynamicFieldPayload, actorID uuid.UUID, now time.Time) ([]*entity.DynamicField, error) {
	fields := make([]*entity.DynamicField, 0, len(payloads))
	for _, p := range payloads {
		f := &entity.DynamicField{
			ID:             uuid.New(),
			OrganizationID: e.OrganizationID,
			EntityID:       e.ID,
			FieldName:      p.FieldName,
			FieldType:      p.FieldType,
			ValueText:      p.ValueText,
			ValueBoolean:   p.ValueBoolean,
			ValueJSON:      p.ValueJSON,
			ValueDate:      p.ValueDate,
			SmartCode:      p.SmartCode,
			CreatedBy:      actorID,
			UpdatedBy:      actorID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if p.ValueNumber != nil {
			num, err := decimalFromJSONNumber(*p.ValueNumber)
			if err != nil {
				return nil, guardrail.NewError(guardrail.CodeShapeValidation,
					fmt.Sprintf("dynamic field %q: invalid number %q", p.FieldName, p.ValueNumber.String()))
			}
			f.ValueNumber = &num
		}
		fields = append(fields, f)
	}
	return fields, nil
}
