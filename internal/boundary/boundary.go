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

// Package boundary enforces the platform's core security invariant: every
// read and write is scoped to exactly one organization, and rows
// referenced by an operation must actually belong to it. The enforcer
// re-reads the persisted organization_id for every referenced id; caller
// supplied scope is never trusted.
package boundary

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrCrossTenant is the security violation. It always aborts the write
// regardless of guardrail mode. Transport must surface out-of-scope rows
// as not-found, never as this error, to avoid leaking existence across
// tenants.
var ErrCrossTenant = errors.New("cross-tenant violation")

// ErrRefNotFound means a referenced row does not exist at all.
var ErrRefNotFound = errors.New("referenced row not found")

// Resolver reads the persisted organization_id of referenced rows.
// Implemented by the postgres store.
type Resolver interface {
	EntityOrg(ctx context.Context, entityID uuid.UUID) (uuid.UUID, error)
	RelationshipOrg(ctx context.Context, relationshipID uuid.UUID) (uuid.UUID, error)
	TransactionOrg(ctx context.Context, transactionID uuid.UUID) (uuid.UUID, error)
}

// Enforcer checks referenced rows against a declared organization scope.
type Enforcer struct {
	resolver      Resolver
	platformOrgID uuid.UUID
}

// NewEnforcer creates a boundary enforcer. platformOrgID is the well-known
// all-zero tenant whose entities may appear as the from side of
// tenant-scoped relationships.
func NewEnforcer(resolver Resolver, platformOrgID uuid.UUID) *Enforcer {
	return &Enforcer{resolver: resolver, platformOrgID: platformOrgID}
}

// CheckEntity confirms the entity's stored organization matches declared.
func (e *Enforcer) CheckEntity(ctx context.Context, declared, entityID uuid.UUID) error {
	stored, err := e.resolver.EntityOrg(ctx, entityID)
	if err != nil {
		return err
	}
	if stored != declared {
		return fmt.Errorf("%w: entity %s", ErrCrossTenant, entityID)
	}
	return nil
}

// CheckRelationshipEndpoints confirms both endpoints of an edge belong to
// the declared organization. The single documented exception: the from
// side may be a platform-owned entity, which is how one identity holds
// memberships in many tenants.
func (e *Enforcer) CheckRelationshipEndpoints(ctx context.Context, declared, fromEntityID, toEntityID uuid.UUID) error {
	fromOrg, err := e.resolver.EntityOrg(ctx, fromEntityID)
	if err != nil {
		return err
	}
	if fromOrg != declared && fromOrg != e.platformOrgID {
		return fmt.Errorf("%w: from_entity %s", ErrCrossTenant, fromEntityID)
	}

	toOrg, err := e.resolver.EntityOrg(ctx, toEntityID)
	if err != nil {
		return err
	}
	if toOrg != declared {
		return fmt.Errorf("%w: to_entity %s", ErrCrossTenant, toEntityID)
	}
	return nil
}

// CheckRelationship confirms a referenced edge belongs to declared.
func (e *Enforcer) CheckRelationship(ctx context.Context, declared, relationshipID uuid.UUID) error {
	stored, err := e.resolver.RelationshipOrg(ctx, relationshipID)
	if err != nil {
		return err
	}
	if stored != declared {
		return fmt.Errorf("%w: relationship %s", ErrCrossTenant, relationshipID)
	}
	return nil
}

// CheckTransaction confirms a referenced transaction belongs to declared.
func (e *Enforcer) CheckTransaction(ctx context.Context, declared, transactionID uuid.UUID) error {
	stored, err := e.resolver.TransactionOrg(ctx, transactionID)
	if err != nil {
		return err
	}
	if stored != declared {
		return fmt.Errorf("%w: transaction %s", ErrCrossTenant, transactionID)
	}
	return nil
}

// CheckTransactionRefs validates the optional source/target entity
// references on a transaction header.
func (e *Enforcer) CheckTransactionRefs(ctx context.Context, declared uuid.UUID, sourceEntityID, targetEntityID *uuid.UUID) error {
	if sourceEntityID != nil {
		if err := e.CheckEntity(ctx, declared, *sourceEntityID); err != nil {
			return err
		}
	}
	if targetEntityID != nil {
		if err := e.CheckEntity(ctx, declared, *targetEntityID); err != nil {
			return err
		}
	}
	return nil
}

// PlatformOrgID returns the configured platform tenant id.
func (e *Enforcer) PlatformOrgID() uuid.UUID {
	return e.platformOrgID
}
