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

// Package relationship models the generic graph: typed, directed edges
// between two entities, carrying their own semantic payload. One edge
// table replaces the many specific association tables of a conventional
// schema.
package relationship

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Well-known relationship types. The type column is free text; these are
// the edges the core engine itself gives semantics to.
const (
	TypeMembership = "membership"
	TypeHasRole    = "has_role"
	TypeHasModule  = "has_module"
	TypeOwnership  = "ownership"
)

// Relationship is a typed, directed edge between two entities. Both
// endpoints must belong to the relationship's organization, with one
// documented exception: a platform-owned entity (all-zero org) may be the
// from side of a tenant-scoped edge, which is how one identity belongs to
// many tenants.
type Relationship struct {
	ID               uuid.UUID       `json:"id"`
	OrganizationID   uuid.UUID       `json:"organization_id"`
	FromEntityID     uuid.UUID       `json:"from_entity_id"`
	ToEntityID       uuid.UUID       `json:"to_entity_id"`
	RelationshipType string          `json:"relationship_type"`
	RelationshipData json.RawMessage `json:"relationship_data,omitempty"`
	SmartCode        string          `json:"smart_code"`
	IsActive         bool            `json:"is_active"`
	CreatedBy        uuid.UUID       `json:"created_by"`
	UpdatedBy        uuid.UUID       `json:"updated_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MembershipData is the payload stored inline on a membership edge. The
// canonical role lives here, not in a separate lookup.
type MembershipData struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// Membership is one resolved "actor belongs to organization" fact. The
// organization id of the membership edge is the target organization.
type Membership struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	RelationshipID uuid.UUID `json:"relationship_id"`
	Role           string    `json:"role"`
	Permissions    []string  `json:"permissions,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
