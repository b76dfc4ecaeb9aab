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

	"github.com/heracore/heracore/internal/org"
)

// OrganizationRepository implements org.Repository
type OrganizationRepository struct {
	db *DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create inserts a new organization
func (r *OrganizationRepository) Create(ctx context.Context, o *org.Organization) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, code, settings, status, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		o.ID, o.Name, o.Code, o.Settings, o.Status, o.CreatedBy, o.UpdatedBy, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return org.ErrOrgCodeConflict
		}
		return fmt.Errorf("failed to insert organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization by id
func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
	return r.scanOne(r.db.pool.QueryRow(ctx, `
		SELECT id, name, code, settings, status, created_by, updated_by, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id))
}

// GetByCode retrieves an organization by its unique code
func (r *OrganizationRepository) GetByCode(ctx context.Context, code string) (*org.Organization, error) {
	return r.scanOne(r.db.pool.QueryRow(ctx, `
		SELECT id, name, code, settings, status, created_by, updated_by, created_at, updated_at
		FROM organizations
		WHERE code = $1
	`, code))
}

// Update overwrites mutable organization fields
func (r *OrganizationRepository) Update(ctx context.Context, o *org.Organization) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE organizations
		SET name = $2, settings = $3, status = $4, updated_by = $5, updated_at = $6
		WHERE id = $1
	`, o.ID, o.Name, o.Settings, o.Status, o.UpdatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return org.ErrOrgNotFound
	}
	return nil
}

// Deactivate flips the organization's status; rows are never removed
func (r *OrganizationRepository) Deactivate(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE organizations
		SET status = $2, updated_by = $3, updated_at = $4
		WHERE id = $1
	`, id, org.StatusInactive, updatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return org.ErrOrgNotFound
	}
	return nil
}

// List returns organizations ordered by creation time
func (r *OrganizationRepository) List(ctx context.Context, limit, offset int) ([]*org.Organization, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, code, settings, status, created_by, updated_by, created_at, updated_at
		FROM organizations
		ORDER BY created_at
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var out []*org.Organization
	for rows.Next() {
		var o org.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Code, &o.Settings, &o.Status, &o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (r *OrganizationRepository) scanOne(row pgx.Row) (*org.Organization, error) {
	var o org.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Code, &o.Settings, &o.Status, &o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, org.ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}
