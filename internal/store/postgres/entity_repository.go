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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/heracore/heracore/internal/entity"
)

// EntityRepository implements entity.Repository
type EntityRepository struct {
	db *DB
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db *DB) *EntityRepository {
	return &EntityRepository{db: db}
}

const entityColumns = `id, organization_id, entity_type, entity_name, entity_code, smart_code,
	metadata, status, created_by, updated_by, created_at, updated_at`

// Create inserts a new entity
func (r *EntityRepository) Create(ctx context.Context, e *entity.Entity) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO entities (`+entityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		e.ID, e.OrganizationID, e.EntityType, e.EntityName, e.EntityCode, e.SmartCode,
		e.Metadata, e.Status, e.CreatedBy, e.UpdatedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

// GetByID retrieves an entity within the organization scope. Deleted
// rows are invisible.
func (r *EntityRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*entity.Entity, error) {
	return scanEntity(r.db.pool.QueryRow(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE id = $1 AND organization_id = $2 AND status <> $3
	`, id, orgID, entity.StatusDeleted))
}

// GetByTypeAndCode retrieves an entity by its business address
func (r *EntityRepository) GetByTypeAndCode(ctx context.Context, orgID uuid.UUID, entityType, entityCode string) (*entity.Entity, error) {
	return scanEntity(r.db.pool.QueryRow(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE organization_id = $1 AND entity_type = $2 AND entity_code = $3 AND status <> $4
		ORDER BY created_at DESC
		LIMIT 1
	`, orgID, entityType, entityCode, entity.StatusDeleted))
}

// Query lists entities matching the filter within one organization
func (r *EntityRepository) Query(ctx context.Context, orgID uuid.UUID, f entity.Filter) ([]*entity.Entity, error) {
	q := `SELECT ` + entityColumns + ` FROM entities WHERE organization_id = $1 AND status <> '` + entity.StatusDeleted + `'`
	args := []any{orgID}

	if f.EntityType != "" {
		args = append(args, f.EntityType)
		q += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.CodeMatch != "" {
		args = append(args, f.CodeMatch)
		q += fmt.Sprintf(" AND entity_code = $%d", len(args))
	}
	if f.NameMatch != "" {
		args = append(args, "%"+f.NameMatch+"%")
		q += fmt.Sprintf(" AND entity_name ILIKE $%d", len(args))
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
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var out []*entity.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update applies a partial patch; id and organization_id never change
func (r *EntityRepository) Update(ctx context.Context, orgID, id uuid.UUID, patch entity.Update, updatedBy uuid.UUID) (*entity.Entity, error) {
	q := "UPDATE entities SET updated_by = $3, updated_at = $4"
	args := []any{id, orgID, updatedBy, time.Now()}

	if patch.EntityName != nil {
		args = append(args, *patch.EntityName)
		q += fmt.Sprintf(", entity_name = $%d", len(args))
	}
	if patch.EntityCode != nil {
		args = append(args, *patch.EntityCode)
		q += fmt.Sprintf(", entity_code = $%d", len(args))
	}
	if patch.SmartCode != nil {
		args = append(args, *patch.SmartCode)
		q += fmt.Sprintf(", smart_code = $%d", len(args))
	}
	if patch.Metadata != nil {
		args = append(args, []byte(patch.Metadata))
		q += fmt.Sprintf(", metadata = $%d", len(args))
	}
	if patch.Status != nil {
		args = append(args, *patch.Status)
		q += fmt.Sprintf(", status = $%d", len(args))
	}

	q += " WHERE id = $1 AND organization_id = $2 AND status <> '" + entity.StatusDeleted + "' RETURNING " + entityColumns

	e, err := scanEntity(r.db.pool.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SoftDelete flips the entity to deleted status
func (r *EntityRepository) SoftDelete(ctx context.Context, orgID, id uuid.UUID, updatedBy uuid.UUID) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE entities
		SET status = $3, updated_by = $4, updated_at = $5
		WHERE id = $1 AND organization_id = $2 AND status <> $3
	`, id, orgID, entity.StatusDeleted, updatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to soft delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrEntityNotFound
	}
	return nil
}

// UpsertDynamicFields writes typed attributes; a later value for the same
// (entity_id, field_name) overwrites the earlier one.
func (r *EntityRepository) UpsertDynamicFields(ctx context.Context, fields []*entity.DynamicField) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, f := range fields {
		_, err := tx.Exec(ctx, `
			INSERT INTO dynamic_fields (
				id, organization_id, entity_id, field_name, field_type,
				value_text, value_number, value_boolean, value_json, value_date,
				smart_code, created_by, updated_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (entity_id, field_name) DO UPDATE SET
				field_type = EXCLUDED.field_type,
				value_text = EXCLUDED.value_text,
				value_number = EXCLUDED.value_number,
				value_boolean = EXCLUDED.value_boolean,
				value_json = EXCLUDED.value_json,
				value_date = EXCLUDED.value_date,
				smart_code = EXCLUDED.smart_code,
				updated_by = EXCLUDED.updated_by,
				updated_at = EXCLUDED.updated_at
		`,
			f.ID, f.OrganizationID, f.EntityID, f.FieldName, f.FieldType,
			f.ValueText, f.ValueNumber, f.ValueBoolean, f.ValueJSON, f.ValueDate,
			f.SmartCode, f.CreatedBy, f.UpdatedBy, f.CreatedAt, f.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert dynamic field %q: %w", f.FieldName, err)
		}
	}

	return tx.Commit(ctx)
}

// GetDynamicFields returns all typed attributes of one entity
func (r *EntityRepository) GetDynamicFields(ctx context.Context, orgID, entityID uuid.UUID) ([]*entity.DynamicField, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, organization_id, entity_id, field_name, field_type,
			value_text, value_number, value_boolean, value_json, value_date,
			smart_code, created_by, updated_by, created_at, updated_at
		FROM dynamic_fields
		WHERE organization_id = $1 AND entity_id = $2
		ORDER BY field_name
	`, orgID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dynamic fields: %w", err)
	}
	defer rows.Close()

	var out []*entity.DynamicField
	for rows.Next() {
		var f entity.DynamicField
		var valueText sql.NullString
		var valueNumber decimal.NullDecimal
		var valueBoolean sql.NullBool
		var valueDate sql.NullTime

		if err := rows.Scan(
			&f.ID, &f.OrganizationID, &f.EntityID, &f.FieldName, &f.FieldType,
			&valueText, &valueNumber, &valueBoolean, &f.ValueJSON, &valueDate,
			&f.SmartCode, &f.CreatedBy, &f.UpdatedBy, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dynamic field: %w", err)
		}

		if valueText.Valid {
			f.ValueText = &valueText.String
		}
		if valueNumber.Valid {
			f.ValueNumber = &valueNumber.Decimal
		}
		if valueBoolean.Valid {
			f.ValueBoolean = &valueBoolean.Bool
		}
		if valueDate.Valid {
			f.ValueDate = &valueDate.Time
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func scanEntity(row pgx.Row) (*entity.Entity, error) {
	var e entity.Entity
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.EntityType, &e.EntityName, &e.EntityCode, &e.SmartCode,
		&e.Metadata, &e.Status, &e.CreatedBy, &e.UpdatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}
	return &e, nil
}
