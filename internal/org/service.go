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

package org

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heracore/heracore/internal/audit"
)

// Service provides organization provisioning and administration.
type Service struct {
	repo        Repository
	auditLogger audit.Logger
}

// NewService creates a new organization service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
	}
}

// Provision creates a new organization at signup.
func (s *Service) Provision(ctx context.Context, name, code string, settings json.RawMessage, actorID uuid.UUID) (*Organization, error) {
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}
	if code == "" {
		return nil, fmt.Errorf("organization code is required")
	}

	if _, err := s.repo.GetByCode(ctx, code); err == nil {
		return nil, ErrOrgCodeConflict
	}

	now := time.Now()
	o := &Organization{
		ID:        uuid.New(),
		Name:      name,
		Code:      code,
		Settings:  settings,
		Status:    StatusActive,
		CreatedBy: actorID,
		UpdatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypeOrgProvisioned,
		OrgID:   o.ID.String(),
		ActorID: actorID.String(),
		Outcome: audit.OutcomeSuccess,
	})

	return o, nil
}

// Get retrieves an organization by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCode retrieves an organization by its code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Organization, error) {
	return s.repo.GetByCode(ctx, code)
}

// List lists organizations with pagination.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Organization, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update applies admin changes to name and settings. The id is immutable.
func (s *Service) Update(ctx context.Context, o *Organization, actorID uuid.UUID) error {
	o.UpdatedBy = actorID
	o.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, o); err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypeOrgUpdated,
		OrgID:   o.ID.String(),
		ActorID: actorID.String(),
		Outcome: audit.OutcomeSuccess,
	})
	return nil
}

// Deactivate soft-disables an organization. Never a hard delete.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id, actorID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypeOrgDeactivated,
		OrgID:   id.String(),
		ActorID: actorID.String(),
		Outcome: audit.OutcomeSuccess,
	})
	return nil
}
