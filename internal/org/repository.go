package org

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrOrgNotFound     = errors.New("organization not found")
	ErrOrgCodeConflict = errors.New("organization code already exists")
	ErrOrgNotActive    = errors.New("organization is not active")
)

// Repository defines the interface for organization storage.
// Organizations are never hard-deleted; Deactivate flips status only.
type Repository interface {
	Create(ctx context.Context, o *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetByCode(ctx context.Context, code string) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
	Deactivate(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Organization, error)
}
