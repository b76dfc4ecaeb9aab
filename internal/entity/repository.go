package entity

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrCodeConflict   = errors.New("entity_type + entity_code already exists in organization")
)

// Filter narrows a Query. All reads are implicitly scoped by the
// organization id passed alongside; a filter never widens that scope.
type Filter struct {
	EntityType string `json:"entity_type,omitempty"`
	Status     string `json:"status,omitempty"`
	CodeMatch  string `json:"code_match,omitempty"` // exact entity_code match
	NameMatch  string `json:"name_match,omitempty"` // case-insensitive substring on entity_name
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// Update is a partial patch. Nil fields are left untouched; id and
// organization_id are immutable.
type Update struct {
	EntityName *string         `json:"entity_name,omitempty"`
	EntityCode *string         `json:"entity_code,omitempty"`
	SmartCode  *string         `json:"smart_code,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Status     *string         `json:"status,omitempty"`
}

// Repository defines the interface for entity storage.
type Repository interface {
	Create(ctx context.Context, e *Entity) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Entity, error)
	GetByTypeAndCode(ctx context.Context, orgID uuid.UUID, entityType, entityCode string) (*Entity, error)
	Query(ctx context.Context, orgID uuid.UUID, f Filter) ([]*Entity, error)
	Update(ctx context.Context, orgID, id uuid.UUID, patch Update, updatedBy uuid.UUID) (*Entity, error)
	SoftDelete(ctx context.Context, orgID, id uuid.UUID, updatedBy uuid.UUID) error

	UpsertDynamicFields(ctx context.Context, fields []*DynamicField) error
	GetDynamicFields(ctx context.Context, orgID, entityID uuid.UUID) ([]*DynamicField, error)
}
