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
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heracore/heracore/internal/relationship"
)

// RelationshipRepository implements relationship.Repository
type RelationshipRepository struct {
	db *DB
}

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(db *DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

const relationshipColumns = `id, organization_id, from_entity_id, to_entity_id, relationship_type,
	relationship_data, smart_code, is_active, created_by, updated_by, created_at, updated_at`

// Create inserts a new edge
func (r *RelationshipRepository) Create(ctx context.Context, rel *relationship.Relationship) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO relationships (`+relationshipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		rel.ID, rel.OrganizationID, rel.FromEntityID, rel.ToEntityID, rel.RelationshipType,
		rel.RelationshipData, rel.SmartCode, rel.IsActive, rel.CreatedBy, rel.UpdatedBy,
		rel.CreatedAt, rel.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return relationship.ErrDuplicateEdge
		}
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	return nil
}

// GetByID retrieves an edge within the organization scope
func (r *RelationshipRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*relationship.Relationship, error) {
	return scanRelationship(r.db.pool.QueryRow(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationships
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
}

// Query lists edges matching the filter within one organization
func (r *RelationshipRepository) Query(ctx context.Context, orgID uuid.UUID, f relationship.Filter) ([]*relationship.Relationship, error) {
	q := `SELECT ` + relationshipColumns + ` FROM relationships WHERE organization_id = $1`
	args := []any{orgID}

	if f.RelationshipType != "" {
		args = append(args, f.RelationshipType)
		q += fmt.Sprintf(" AND relationship_type = $%d", len(args))
	}
	if f.FromEntityID != uuid.Nil {
		args = append(args, f.FromEntityID)
		q += fmt.Sprintf(" AND from_entity_id = $%d", len(args))
	}
	if f.ToEntityID != uuid.Nil {
		args = append(args, f.ToEntityID)
		q += fmt.Sprintf(" AND to_entity_id = $%d", len(args))
	}
	if f.ActiveOnly {
		q += " AND is_active"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at LIMIT $%d", len(args))
	args = append(args, f.Offset)
	q += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var out []*relationship.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

// Update applies a partial patch; endpoints and type never change
func (r *RelationshipRepository) Update(ctx context.Context, orgID, id uuid.UUID, patch relationship.Update, updatedBy uuid.UUID) (*relationship.Relationship, error) {
	q := "UPDATE relationships SET updated_by = $3, updated_at = $4"
	args := []any{id, orgID, updatedBy, time.Now()}

	if patch.RelationshipData != nil {
		args = append(args, []byte(patch.RelationshipData))
		q += fmt.Sprintf(", relationship_data = $%d", len(args))
	}
	if patch.SmartCode != nil {
		args = append(args, *patch.SmartCode)
		q += fmt.Sprintf(", smart_code = $%d", len(args))
	}
	if patch.IsActive != nil {
		args = append(args, *patch.IsActive)
		q += fmt.Sprintf(", is_active = $%d", len(args))
	}

	q += " WHERE id = $1 AND organization_id = $2 RETURNING " + relationshipColumns

	return scanRelationship(r.db.pool.QueryRow(ctx, q, args...))
}

// Deactivate flips the edge inactive
func (r *RelationshipRepository) Deactivate(ctx context.Context, orgID, id uuid.UUID, updatedBy uuid.UUID) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE relationships
		SET is_active = FALSE, updated_by = $3, updated_at = $4
		WHERE id = $1 AND organization_id = $2
	`, id, orgID, updatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return relationship.ErrRelationshipNotFound
	}
	return nil
}

// HardDelete removes the edge row
func (r *RelationshipRepository) HardDelete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.db.pool.Exec(ctx, `
		DELETE FROM relationships
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return relationship.ErrRelationshipNotFound
	}
	return nil
}

// DeleteMembershipCascade removes the actor's membership edge in the
// organization together with every has_role edge of the same actor there,
// in a single transaction. Either all rows go or none do.
func (r *RelationshipRepository) DeleteMembershipCascade(ctx context.Context, orgID, fromEntityID uuid.UUID) (int64, error) {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM relationships
		WHERE organization_id = $1 AND from_entity_id = $2 AND relationship_type IN ($3, $4)
	`, orgID, fromEntityID, relationship.TypeMembership, relationship.TypeHasRole)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade delete membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit cascade delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MembershipsForActor returns all active membership edges where the
// actor is the from side, across organizations.
func (r *RelationshipRepository) MembershipsForActor(ctx context.Context, fromEntityID uuid.UUID) ([]*relationship.Relationship, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationships
		WHERE from_entity_id = $1 AND relationship_type = $2 AND is_active
		ORDER BY created_at DESC
	`, fromEntityID, relationship.TypeMembership)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var out []*relationship.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func scanRelationship(row pgx.Row) (*relationship.Relationship, error) {
	var rel relationship.Relationship
	err := row.Scan(
		&rel.ID, &rel.OrganizationID, &rel.FromEntityID, &rel.ToEntityID, &rel.RelationshipType,
		&rel.RelationshipData, &rel.SmartCode, &rel.IsActive, &rel.CreatedBy, &rel.UpdatedBy,
		&rel.CreatedAt, &rel.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, relationship.ErrRelationshipNotFound
		}
		return nil, fmt.Errorf("failed to scan relationship: %w", err)
	}
	return &rel, nil
}
