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

	"github.com/heracore/heracore/internal/idempotency"
)

// IdempotencyRepository implements idempotency.Repository
type IdempotencyRepository struct {
	db *DB
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Get retrieves the record for (organization, key)
func (r *IdempotencyRepository) Get(ctx context.Context, orgID uuid.UUID, key string) (*idempotency.Record, error) {
	var rec idempotency.Record
	err := r.db.pool.QueryRow(ctx, `
		SELECT key, organization_id, operation, payload_hash, response, created_at, expires_at
		FROM idempotency_keys
		WHERE organization_id = $1 AND key = $2
	`, orgID, key).Scan(
		&rec.Key, &rec.OrganizationID, &rec.Operation, &rec.PayloadHash,
		&rec.Response, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, idempotency.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return &rec, nil
}

// Put stores a record; an expired row under the same key is replaced
func (r *IdempotencyRepository) Put(ctx context.Context, rec *idempotency.Record) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, organization_id, operation, payload_hash, response, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (organization_id, key) DO UPDATE SET
			operation = EXCLUDED.operation,
			payload_hash = EXCLUDED.payload_hash,
			response = EXCLUDED.response,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at < now()
	`,
		rec.Key, rec.OrganizationID, rec.Operation, rec.PayloadHash,
		rec.Response, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put idempotency record: %w", err)
	}
	return nil
}

// DeleteExpired purges expired rows; run periodically by cmd/cleanup
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE expires_at < now()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}
	return tag.RowsAffected(), nil
}
