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

// Package entity defines the generic business object: any addressable
// record (customer, product, app, GL account...) lives in one node table
// discriminated by entity_type, extended by typed dynamic fields instead
// of per-type columns.
package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entity is a generic, typed business object scoped to one organization.
// OrganizationID is immutable after creation.
type Entity struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	EntityType     string          `json:"entity_type"`
	EntityName     string          `json:"entity_name"`
	EntityCode     string          `json:"entity_code"`
	SmartCode      string          `json:"smart_code"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Status         string          `json:"status"`
	CreatedBy      uuid.UUID       `json:"created_by"`
	UpdatedBy      uuid.UUID       `json:"updated_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Status constants. Deletion is a status transition, never physical removal.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDeleted  = "deleted"
)

// FieldType discriminates the dynamic field value union.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeJSON    FieldType = "json"
	FieldTypeDate    FieldType = "date"
)

// DynamicField is one typed value attached to exactly one entity: the
// schema-less extension mechanism. Exactly one value column is populated
// according to FieldType. Superseded values are overwritten, not versioned.
type DynamicField struct {
	ID             uuid.UUID        `json:"id"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	EntityID       uuid.UUID        `json:"entity_id"`
	FieldName      string           `json:"field_name"`
	FieldType      FieldType        `json:"field_type"`
	ValueText      *string          `json:"value_text,omitempty"`
	ValueNumber    *decimal.Decimal `json:"value_number,omitempty"`
	ValueBoolean   *bool            `json:"value_boolean,omitempty"`
	ValueJSON      json.RawMessage  `json:"value_json,omitempty"`
	ValueDate      *time.Time       `json:"value_date,omitempty"`
	SmartCode      string           `json:"smart_code"`
	CreatedBy      uuid.UUID        `json:"created_by"`
	UpdatedBy      uuid.UUID        `json:"updated_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// HasValue reports whether the column matching FieldType is populated.
func (f *DynamicField) HasValue() bool {
	switch f.FieldType {
	case FieldTypeText:
		return f.ValueText != nil
	case FieldTypeNumber:
		return f.ValueNumber != nil
	case FieldTypeBoolean:
		return f.ValueBoolean != nil
	case FieldTypeJSON:
		return len(f.ValueJSON) > 0
	case FieldTypeDate:
		return f.ValueDate != nil
	}
	return false
}
