package relationship

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrDuplicateEdge        = errors.New("relationship already exists for (from, to, type)")
)

// Filter narrows a Query within one organization.
type Filter struct {
	RelationshipType string    `json:"relationship_type,omitempty"`
	FromEntityID     uuid.UUID `json:"from_entity_id,omitempty"`
	ToEntityID       uuid.UUID `json:"to_entity_id,omitempty"`
	ActiveOnly       bool      `json:"active_only,omitempty"`
	Limit            int       `json:"limit,omitempty"`
	Offset           int       `json:"offset,omitempty"`
}

// Update is a partial patch on an edge. Endpoints, type, and
// organization_id are immutable; re-linking is delete + create.
type Update struct {
	RelationshipData json.RawMessage `json:"relationship_data,omitempty"`
	SmartCode        *string         `json:"smart_code,omitempty"`
	IsActive         *bool           `json:"is_active,omitempty"`
}

// Repository defines the interface for relationship storage.
type Repository interface {
	Create(ctx context.Context, r *Relationship) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Relationship, error)
	Query(ctx context.Context, orgID uuid.UUID, f Filter) ([]*Relationship, error)
	Update(ctx context.Context, orgID, id uuid.UUID, patch Update, updatedBy uuid.UUID) (*Relationship, error)
	Deactivate(ctx context.Context, orgID, id uuid.UUID, updatedBy uuid.UUID) error
	HardDelete(ctx context.Context, orgID, id uuid.UUID) error

	// DeleteMembershipCascade atomically removes the actor's membership
	// edge in orgID together with every has_role edge of the same actor in
	// the same organization. One storage transaction: all rows or none,
	// so no orphaned role edges survive a membership removal.
	DeleteMembershipCascade(ctx context.Context, orgID, fromEntityID uuid.UUID) (int64, error)

	// MembershipsForActor returns all active membership edges where the
	// actor is the from side, across every organization. Used by the
	// membership resolver; the platform exception makes this a cross-org
	// read by design.
	MembershipsForActor(ctx context.Context, fromEntityID uuid.UUID) ([]*Relationship, error)
}
