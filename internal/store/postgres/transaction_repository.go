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

	"github.com/heracore/heracore/internal/transaction"
)

// TransactionRepository implements transaction.Repository
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, organization_id, transaction_type, smart_code, transaction_code,
	transaction_date, source_entity_id, target_entity_id, total_amount, transaction_currency,
	status, reversal_of, business_context, metadata, created_by, updated_by, created_at, updated_at`

const lineColumns = `id, transaction_id, organization_id, line_number, line_type, line_amount,
	side, currency, account_type, description, smart_code, created_by, updated_by, created_at, updated_at`

// Create inserts the header and all lines in one transaction
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertTransaction(ctx, tx, t); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a transaction with its lines
func (r *TransactionRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*transaction.Transaction, error) {
	t, err := scanTransaction(r.db.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+lineColumns+`
		FROM transaction_lines
		WHERE transaction_id = $1 AND organization_id = $2
		ORDER BY line_number
	`, id, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l transaction.Line
		if err := rows.Scan(
			&l.ID, &l.TransactionID, &l.OrganizationID, &l.LineNumber, &l.LineType, &l.LineAmount,
			&l.Side, &l.Currency, &l.AccountType, &l.Description, &l.SmartCode,
			&l.CreatedBy, &l.UpdatedBy, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction line: %w", err)
		}
		t.Lines = append(t.Lines, &l)
	}
	return t, rows.Err()
}

// Query lists transaction headers matching the filter; lines are loaded
// per transaction via GetByID.
func (r *TransactionRepository) Query(ctx context.Context, orgID uuid.UUID, f transaction.Filter) ([]*transaction.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE organization_id = $1`
	args := []any{orgID}

	if f.TransactionType != "" {
		args = append(args, f.TransactionType)
		q += fmt.Sprintf(" AND transaction_type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.SourceEntityID != uuid.Nil {
		args = append(args, f.SourceEntityID)
		q += fmt.Sprintf(" AND source_entity_id = $%d", len(args))
	}
	if f.TargetEntityID != uuid.Nil {
		args = append(args, f.TargetEntityID)
		q += fmt.Sprintf(" AND target_entity_id = $%d", len(args))
	}
	if !f.DateFrom.IsZero() {
		args = append(args, f.DateFrom)
		q += fmt.Sprintf(" AND transaction_date >= $%d", len(args))
	}
	if !f.DateTo.IsZero() {
		args = append(args, f.DateTo)
		q += fmt.Sprintf(" AND transaction_date < $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY transaction_date DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	q += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateDraft patches header fields while the transaction is in draft
func (r *TransactionRepository) UpdateDraft(ctx context.Context, orgID, id uuid.UUID, patch transaction.HeaderUpdate, updatedBy uuid.UUID) (*transaction.Transaction, error) {
	q := "UPDATE transactions SET updated_by = $3, updated_at = $4"
	args := []any{id, orgID, updatedBy, time.Now()}

	if patch.TransactionCode != nil {
		args = append(args, *patch.TransactionCode)
		q += fmt.Sprintf(", transaction_code = $%d", len(args))
	}
	if patch.TransactionDate != nil {
		args = append(args, *patch.TransactionDate)
		q += fmt.Sprintf(", transaction_date = $%d", len(args))
	}
	if patch.BusinessContext != nil {
		args = append(args, []byte(patch.BusinessContext))
		q += fmt.Sprintf(", business_context = $%d", len(args))
	}
	if patch.Metadata != nil {
		args = append(args, []byte(patch.Metadata))
		q += fmt.Sprintf(", metadata = $%d", len(args))
	}

	args = append(args, transaction.StatusDraft)
	q += fmt.Sprintf(" WHERE id = $1 AND organization_id = $2 AND status = $%d RETURNING %s", len(args), transactionColumns)

	t, err := scanTransaction(r.db.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			// Distinguish "missing" from "not draft" for the caller.
			if _, getErr := r.GetByID(ctx, orgID, id); getErr == nil {
				return nil, transaction.ErrTransactionImmutable
			}
		}
		return nil, err
	}
	return t, nil
}

// SetStatus performs a guarded lifecycle transition
func (r *TransactionRepository) SetStatus(ctx context.Context, orgID, id uuid.UUID, from, to transaction.Status, updatedBy uuid.UUID) error {
	if !transaction.ValidTransition(from, to) {
		return transaction.ErrInvalidTransition
	}
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE transactions
		SET status = $3, updated_by = $4, updated_at = $5
		WHERE id = $1 AND organization_id = $2 AND status = $6
	`, id, orgID, to, updatedBy, time.Now(), from)
	if err != nil {
		return fmt.Errorf("failed to set transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, orgID, id); getErr != nil {
			return transaction.ErrTransactionNotFound
		}
		return transaction.ErrInvalidTransition
	}
	return nil
}

// Reverse marks the original reversed and inserts the reversal with its
// lines, all in one transaction.
func (r *TransactionRepository) Reverse(ctx context.Context, orgID, originalID uuid.UUID, reversal *transaction.Transaction) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE transactions
		SET status = $3, updated_by = $4, updated_at = $5
		WHERE id = $1 AND organization_id = $2 AND status = $6
	`, originalID, orgID, transaction.StatusReversed, reversal.CreatedBy, time.Now(), transaction.StatusPosted)
	if err != nil {
		return fmt.Errorf("failed to mark transaction reversed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return transaction.ErrInvalidTransition
	}

	if err := insertTransaction(ctx, tx, reversal); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *transaction.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		t.ID, t.OrganizationID, t.TransactionType, t.SmartCode, t.TransactionCode,
		t.TransactionDate, t.SourceEntityID, t.TargetEntityID, t.TotalAmount, t.Currency,
		t.Status, t.ReversalOf, t.BusinessContext, t.Metadata, t.CreatedBy, t.UpdatedBy,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, l := range t.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO transaction_lines (`+lineColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`,
			l.ID, l.TransactionID, l.OrganizationID, l.LineNumber, l.LineType, l.LineAmount,
			l.Side, l.Currency, l.AccountType, l.Description, l.SmartCode,
			l.CreatedBy, l.UpdatedBy, l.CreatedAt, l.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction line %d: %w", l.LineNumber, err)
		}
	}
	return nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	err := row.Scan(
		&t.ID, &t.OrganizationID, &t.TransactionType, &t.SmartCode, &t.TransactionCode,
		&t.TransactionDate, &t.SourceEntityID, &t.TargetEntityID, &t.TotalAmount, &t.Currency,
		&t.Status, &t.ReversalOf, &t.BusinessContext, &t.Metadata, &t.CreatedBy, &t.UpdatedBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &t, nil
}
