package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionImmutable = errors.New("posted transaction is immutable")
	ErrInvalidTransition    = errors.New("invalid transaction status transition")
)

// Filter narrows a Query within one organization.
type Filter struct {
	TransactionType string    `json:"transaction_type,omitempty"`
	Status          Status    `json:"status,omitempty"`
	SourceEntityID  uuid.UUID `json:"source_entity_id,omitempty"`
	TargetEntityID  uuid.UUID `json:"target_entity_id,omitempty"`
	DateFrom        time.Time `json:"date_from,omitempty"`
	DateTo          time.Time `json:"date_to,omitempty"`
	Limit           int       `json:"limit,omitempty"`
	Offset          int       `json:"offset,omitempty"`
}

// HeaderUpdate is a partial patch, accepted only while the transaction is
// in draft.
type HeaderUpdate struct {
	TransactionCode *string         `json:"transaction_code,omitempty"`
	TransactionDate *time.Time      `json:"transaction_date,omitempty"`
	BusinessContext json.RawMessage `json:"business_context,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// Repository defines the interface for transaction storage. Create and
// Reverse write header and lines in a single storage transaction: all
// rows commit or none do.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Transaction, error)
	Query(ctx context.Context, orgID uuid.UUID, f Filter) ([]*Transaction, error)
	UpdateDraft(ctx context.Context, orgID, id uuid.UUID, patch HeaderUpdate, updatedBy uuid.UUID) (*Transaction, error)
	SetStatus(ctx context.Context, orgID, id uuid.UUID, from, to Status, updatedBy uuid.UUID) error

	// Reverse atomically marks the original reversed and inserts the
	// reversal (header + lines) in the same storage transaction.
	Reverse(ctx context.Context, orgID, originalID uuid.UUID, reversal *Transaction) error
}
