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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heracore/heracore/internal/audit"
	"github.com/heracore/heracore/internal/boundary"
	"github.com/heracore/heracore/internal/entity"
	"github.com/heracore/heracore/internal/guardrail"
	"github.com/heracore/heracore/internal/idempotency"
	"github.com/heracore/heracore/internal/org"
	"github.com/heracore/heracore/internal/relationship"
	"github.com/heracore/heracore/internal/smartcode"
	"github.com/heracore/heracore/internal/transaction"
)

// In-memory repositories backing the gateway tests. They implement the
// same interfaces as the postgres store, including org scoping: reads
// filter by organization_id exactly like the SQL does.

type memOrgRepo struct {
	mu   sync.Mutex
	orgs map[uuid.UUID]*org.Organization
}

func newMemOrgRepo() *memOrgRepo {
	return &memOrgRepo{orgs: make(map[uuid.UUID]*org.Organization)}
}

func (r *memOrgRepo) Create(_ context.Context, o *org.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orgs {
		if existing.Code == o.Code {
			return org.ErrOrgCodeConflict
		}
	}
	r.orgs[o.ID] = o
	return nil
}

func (r *memOrgRepo) GetByID(_ context.Context, id uuid.UUID) (*org.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orgs[id]; ok {
		return o, nil
	}
	return nil, org.ErrOrgNotFound
}

func (r *memOrgRepo) GetByCode(_ context.Context, code string) (*org.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orgs {
		if o.Code == code {
			return o, nil
		}
	}
	return nil, org.ErrOrgNotFound
}

func (r *memOrgRepo) Update(_ context.Context, o *org.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orgs[o.ID]; !ok {
		return org.ErrOrgNotFound
	}
	r.orgs[o.ID] = o
	return nil
}

func (r *memOrgRepo) Deactivate(_ context.Context, id uuid.UUID, updatedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orgs[id]
	if !ok {
		return org.ErrOrgNotFound
	}
	o.Status = org.StatusInactive
	o.UpdatedBy = updatedBy
	return nil
}

func (r *memOrgRepo) List(_ context.Context, limit, offset int) ([]*org.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*org.Organization, 0, len(r.orgs))
	for _, o := range r.orgs {
		out = append(out, o)
	}
	return out, nil
}

type memEntityRepo struct {
	mu       sync.Mutex
	entities map[uuid.UUID]*entity.Entity
	fields   map[uuid.UUID]map[string]*entity.DynamicField
}

func newMemEntityRepo() *memEntityRepo {
	return &memEntityRepo{
		entities: make(map[uuid.UUID]*entity.Entity),
		fields:   make(map[uuid.UUID]map[string]*entity.DynamicField),
	}
}

func (r *memEntityRepo) Create(_ context.Context, e *entity.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[e.ID] = e
	return nil
}

func (r *memEntityRepo) GetByID(_ context.Context, orgID, id uuid.UUID) (*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	if !ok || e.OrganizationID != orgID || e.Status == entity.StatusDeleted {
		return nil, entity.ErrEntityNotFound
	}
	return e, nil
}

func (r *memEntityRepo) GetByTypeAndCode(_ context.Context, orgID uuid.UUID, entityType, entityCode string) (*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entities {
		if e.OrganizationID == orgID && e.EntityType == entityType && e.EntityCode == entityCode && e.Status != entity.StatusDeleted {
			return e, nil
		}
	}
	return nil, entity.ErrEntityNotFound
}

func (r *memEntityRepo) Query(_ context.Context, orgID uuid.UUID, f entity.Filter) ([]*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Entity
	for _, e := range r.entities {
		if e.OrganizationID != orgID {
			continue
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.CodeMatch != "" && e.EntityCode != f.CodeMatch {
			continue
		}
		if f.NameMatch != "" && !strings.Contains(strings.ToLower(e.EntityName), strings.ToLower(f.NameMatch)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memEntityRepo) Update(_ context.Context, orgID, id uuid.UUID, patch entity.Update, updatedBy uuid.UUID) (*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	if !ok || e.OrganizationID != orgID || e.Status == entity.StatusDeleted {
		return nil, entity.ErrEntityNotFound
	}
	if patch.EntityName != nil {
		e.EntityName = *patch.EntityName
	}
	if patch.EntityCode != nil {
		e.EntityCode = *patch.EntityCode
	}
	if patch.SmartCode != nil {
		e.SmartCode = *patch.SmartCode
	}
	if patch.Metadata != nil {
		e.Metadata = patch.Metadata
	}
	if patch.Status != nil {
		e.Status = *patch.Status
	}
	e.UpdatedBy = updatedBy
	e.UpdatedAt = time.Now()
	return e, nil
}

func (r *memEntityRepo) SoftDelete(_ context.Context, orgID, id uuid.UUID, updatedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	if !ok || e.OrganizationID != orgID || e.Status == entity.StatusDeleted {
		return entity.ErrEntityNotFound
	}
	e.Status = entity.StatusDeleted
	e.UpdatedBy = updatedBy
	return nil
}

func (r *memEntityRepo) UpsertDynamicFields(_ context.Context, fields []*entity.DynamicField) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fields {
		byName, ok := r.fields[f.EntityID]
		if !ok {
			byName = make(map[string]*entity.DynamicField)
			r.fields[f.EntityID] = byName
		}
		byName[f.FieldName] = f
	}
	return nil
}

func (r *memEntityRepo) GetDynamicFields(_ context.Context, orgID, entityID uuid.UUID) ([]*entity.DynamicField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.DynamicField
	for _, f := range r.fields[entityID] {
		if f.OrganizationID == orgID {
			out = append(out, f)
		}
	}
	return out, nil
}

type memRelationshipRepo struct {
	mu    sync.Mutex
	edges map[uuid.UUID]*relationship.Relationship
}

func newMemRelationshipRepo() *memRelationshipRepo {
	return &memRelationshipRepo{edges: make(map[uuid.UUID]*relationship.Relationship)}
}

func (r *memRelationshipRepo) Create(_ context.Context, rel *relationship.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.edges {
		if e.OrganizationID == rel.OrganizationID && e.FromEntityID == rel.FromEntityID &&
			e.ToEntityID == rel.ToEntityID && e.RelationshipType == rel.RelationshipType && e.IsActive {
			return relationship.ErrDuplicateEdge
		}
	}
	r.edges[rel.ID] = rel
	return nil
}

func (r *memRelationshipRepo) GetByID(_ context.Context, orgID, id uuid.UUID) (*relationship.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.edges[id]
	if !ok || e.OrganizationID != orgID {
		return nil, relationship.ErrRelationshipNotFound
	}
	return e, nil
}

func (r *memRelationshipRepo) Query(_ context.Context, orgID uuid.UUID, f relationship.Filter) ([]*relationship.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*relationship.Relationship
	for _, e := range r.edges {
		if e.OrganizationID != orgID {
			continue
		}
		if f.RelationshipType != "" && e.RelationshipType != f.RelationshipType {
			continue
		}
		if f.FromEntityID != uuid.Nil && e.FromEntityID != f.FromEntityID {
			continue
		}
		if f.ToEntityID != uuid.Nil && e.ToEntityID != f.ToEntityID {
			continue
		}
		if f.ActiveOnly && !e.IsActive {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memRelationshipRepo) Update(_ context.Context, orgID, id uuid.UUID, patch relationship.Update, updatedBy uuid.UUID) (*relationship.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.edges[id]
	if !ok || e.OrganizationID != orgID {
		return nil, relationship.ErrRelationshipNotFound
	}
	if patch.RelationshipData != nil {
		e.RelationshipData = patch.RelationshipData
	}
	if patch.SmartCode != nil {
		e.SmartCode = *patch.SmartCode
	}
	if patch.IsActive != nil {
		e.IsActive = *patch.IsActive
	}
	e.UpdatedBy = updatedBy
	e.UpdatedAt = time.Now()
	return e, nil
}

func (r *memRelationshipRepo) Deactivate(_ context.Context, orgID, id uuid.UUID, updatedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.edges[id]
	if !ok || e.OrganizationID != orgID {
		return relationship.ErrRelationshipNotFound
	}
	e.IsActive = false
	e.UpdatedBy = updatedBy
	return nil
}

func (r *memRelationshipRepo) HardDelete(_ context.Context, orgID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.edges[id]
	if !ok || e.OrganizationID != orgID {
		return relationship.ErrRelationshipNotFound
	}
	delete(r.edges, id)
	return nil
}

func (r *memRelationshipRepo) DeleteMembershipCascade(_ context.Context, orgID, fromEntityID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, e := range r.edges {
		if e.OrganizationID != orgID || e.FromEntityID != fromEntityID {
			continue
		}
		if e.RelationshipType == relationship.TypeMembership || e.RelationshipType == relationship.TypeHasRole {
			delete(r.edges, id)
			removed++
		}
	}
	return removed, nil
}

func (r *memRelationshipRepo) MembershipsForActor(_ context.Context, fromEntityID uuid.UUID) ([]*relationship.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*relationship.Relationship
	for _, e := range r.edges {
		if e.FromEntityID == fromEntityID && e.RelationshipType == relationship.TypeMembership && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

type memTransactionRepo struct {
	mu   sync.Mutex
	txns map[uuid.UUID]*transaction.Transaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{txns: make(map[uuid.UUID]*transaction.Transaction)}
}

func (r *memTransactionRepo) Create(_ context.Context, t *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[t.ID] = t
	return nil
}

func (r *memTransactionRepo) GetByID(_ context.Context, orgID, id uuid.UUID) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.OrganizationID != orgID {
		return nil, transaction.ErrTransactionNotFound
	}
	return t, nil
}

func (r *memTransactionRepo) Query(_ context.Context, orgID uuid.UUID, f transaction.Filter) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, t := range r.txns {
		if t.OrganizationID != orgID {
			continue
		}
		if f.TransactionType != "" && t.TransactionType != f.TransactionType {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memTransactionRepo) UpdateDraft(_ context.Context, orgID, id uuid.UUID, patch transaction.HeaderUpdate, updatedBy uuid.UUID) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.OrganizationID != orgID {
		return nil, transaction.ErrTransactionNotFound
	}
	if t.Status != transaction.StatusDraft {
		return nil, transaction.ErrTransactionImmutable
	}
	if patch.TransactionCode != nil {
		t.TransactionCode = *patch.TransactionCode
	}
	if patch.TransactionDate != nil {
		t.TransactionDate = *patch.TransactionDate
	}
	if patch.BusinessContext != nil {
		t.BusinessContext = patch.BusinessContext
	}
	if patch.Metadata != nil {
		t.Metadata = patch.Metadata
	}
	t.UpdatedBy = updatedBy
	t.UpdatedAt = time.Now()
	return t, nil
}

func (r *memTransactionRepo) SetStatus(_ context.Context, orgID, id uuid.UUID, from, to transaction.Status, updatedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.OrganizationID != orgID {
		return transaction.ErrTransactionNotFound
	}
	if t.Status != from || !transaction.ValidTransition(from, to) {
		return transaction.ErrInvalidTransition
	}
	t.Status = to
	t.UpdatedBy = updatedBy
	return nil
}

func (r *memTransactionRepo) Reverse(_ context.Context, orgID, originalID uuid.UUID, reversal *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[originalID]
	if !ok || t.OrganizationID != orgID {
		return transaction.ErrTransactionNotFound
	}
	if !transaction.ValidTransition(t.Status, transaction.StatusReversed) {
		return transaction.ErrInvalidTransition
	}
	t.Status = transaction.StatusReversed
	r.txns[reversal.ID] = reversal
	return nil
}

type memIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*idempotency.Record
}

func newMemIdempotencyRepo() *memIdempotencyRepo {
	return &memIdempotencyRepo{records: make(map[string]*idempotency.Record)}
}

func idemKey(orgID uuid.UUID, key string) string {
	return orgID.String() + "/" + key
}

func (r *memIdempotencyRepo) Get(_ context.Context, orgID uuid.UUID, key string) (*idempotency.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[idemKey(orgID, key)]; ok {
		return rec, nil
	}
	return nil, idempotency.ErrRecordNotFound
}

func (r *memIdempotencyRepo) Put(_ context.Context, rec *idempotency.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[idemKey(rec.OrganizationID, rec.Key)] = rec
	return nil
}

func (r *memIdempotencyRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for k, rec := range r.records {
		if now.After(rec.ExpiresAt) {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

// mapResolver answers boundary lookups from the in-memory repositories.
type mapResolver struct {
	entities *memEntityRepo
	edges    *memRelationshipRepo
	txns     *memTransactionRepo
}

func (m *mapResolver) EntityOrg(_ context.Context, entityID uuid.UUID) (uuid.UUID, error) {
	m.entities.mu.Lock()
	defer m.entities.mu.Unlock()
	if e, ok := m.entities.entities[entityID]; ok {
		return e.OrganizationID, nil
	}
	return uuid.Nil, boundary.ErrRefNotFound
}

func (m *mapResolver) RelationshipOrg(_ context.Context, relationshipID uuid.UUID) (uuid.UUID, error) {
	m.edges.mu.Lock()
	defer m.edges.mu.Unlock()
	if e, ok := m.edges.edges[relationshipID]; ok {
		return e.OrganizationID, nil
	}
	return uuid.Nil, boundary.ErrRefNotFound
}

func (m *mapResolver) TransactionOrg(_ context.Context, transactionID uuid.UUID) (uuid.UUID, error) {
	m.txns.mu.Lock()
	defer m.txns.mu.Unlock()
	if t, ok := m.txns.txns[transactionID]; ok {
		return t.OrganizationID, nil
	}
	return uuid.Nil, boundary.ErrRefNotFound
}

// recordingAudit captures emitted events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAudit) Log(_ context.Context, event audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAudit) byType(eventType string) []audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Event
	for _, e := range a.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fixture wires a full gateway stack over in-memory storage.
type fixture struct {
	orgs     *memOrgRepo
	entities *memEntityRepo
	edges    *memRelationshipRepo
	txns     *memTransactionRepo
	audit    *recordingAudit
	resolver *relationship.Resolver

	deps Deps

	orgID   uuid.UUID
	actorID uuid.UUID
}

func newFixture(mode guardrail.Mode) *fixture {
	f := &fixture{
		orgs:     newMemOrgRepo(),
		entities: newMemEntityRepo(),
		edges:    newMemRelationshipRepo(),
		txns:     newMemTransactionRepo(),
		audit:    &recordingAudit{},
		orgID:    uuid.New(),
		actorID:  uuid.New(),
	}
	f.resolver = relationship.NewResolver(f.edges, nil, time.Minute)

	validator, err := smartcode.NewValidator("")
	if err != nil {
		panic(err)
	}
	f.deps = Deps{
		SmartCodes:  validator,
		Boundary:    boundary.NewEnforcer(&mapResolver{entities: f.entities, edges: f.edges, txns: f.txns}, uuid.Nil),
		Idempotency: idempotency.NewChecker(newMemIdempotencyRepo(), 24*time.Hour),
		Audit:       f.audit,
		Mode:        mode,
	}

	f.orgs.orgs[f.orgID] = &org.Organization{
		ID: f.orgID, Name: "Test Org", Code: "test-org", Status: org.StatusActive,
	}
	return f
}

// seedEntity inserts an entity directly into storage, bypassing the
// gateway, for tests that need existing rows.
func (f *fixture) seedEntity(orgID uuid.UUID, entityType, code string) *entity.Entity {
	e := &entity.Entity{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EntityType:     entityType,
		EntityName:     code,
		EntityCode:     code,
		SmartCode:      "HERA.CORE.TEST.ENTITY.SEED.v1",
		Status:         entity.StatusActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.entities.entities[e.ID] = e
	return e
}

func (f *fixture) seedEdge(orgID uuid.UUID, from, to uuid.UUID, relType string, data []byte) *relationship.Relationship {
	r := &relationship.Relationship{
		ID:               uuid.New(),
		OrganizationID:   orgID,
		FromEntityID:     from,
		ToEntityID:       to,
		RelationshipType: relType,
		RelationshipData: data,
		SmartCode:        "HERA.CORE.TEST.REL.SEED.v1",
		IsActive:         true,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	f.edges.edges[r.ID] = r
	return r
}
