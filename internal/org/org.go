package org

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant: the root of isolation. Every other
// record in the platform carries its id.
type Organization struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"organization_name"`
	Code      string          `json:"organization_code"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	Status    string          `json:"status"`
	CreatedBy uuid.UUID       `json:"created_by"`
	UpdatedBy uuid.UUID       `json:"updated_by"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PlatformOrgID is the well-known all-zero organization owning
// platform-level entities (e.g. user identities that belong to many
// tenants through membership relationships).
var PlatformOrgID = uuid.Nil

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusArchived = "archived"
)
