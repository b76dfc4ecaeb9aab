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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/heracore/heracore/internal/boundary"
)

// BoundaryResolver implements boundary.Resolver by reading the persisted
// organization_id of referenced rows. It deliberately ignores status
// columns: ownership holds for deleted rows too.
type BoundaryResolver struct {
	db *DB
}

// NewBoundaryResolver creates a resolver over the shared pool
func NewBoundaryResolver(db *DB) *BoundaryResolver {
	return &BoundaryResolver{db: db}
}

// EntityOrg returns the owning organization of an entity
func (r *BoundaryResolver) EntityOrg(ctx context.Context, entityID uuid.UUID) (uuid.UUID, error) {
	return r.ownerOf(ctx, "entities", entityID)
}

// RelationshipOrg returns the owning organization of an edge
func (r *BoundaryResolver) RelationshipOrg(ctx context.Context, relationshipID uuid.UUID) (uuid.UUID, error) {
	return r.ownerOf(ctx, "relationships", relationshipID)
}

// TransactionOrg returns the owning organization of a transaction
func (r *BoundaryResolver) TransactionOrg(ctx context.Context, transactionID uuid.UUID) (uuid.UUID, error) {
	return r.ownerOf(ctx, "transactions", transactionID)
}

func (r *BoundaryResolver) ownerOf(ctx context.Context, table string, id uuid.UUID) (uuid.UUID, error) {
	var orgID uuid.UUID
	// table is one of three compile-time constants, never caller input.
	err := r.db.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT organization_id FROM %s WHERE id = $1", table,
	), id).Scan(&orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, boundary.ErrRefNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve owner in %s: %w", table, err)
	}
	return orgID, nil
}
