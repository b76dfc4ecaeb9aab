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

// Package transaction models business events as an append-only ledger:
// a header plus independently typed, signed line items. Posted
// transactions are immutable; corrections are new, linked, sign-inverted
// transactions.
package transaction

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the transaction lifecycle: draft -> posted -> {voided | reversed}.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPosted   Status = "posted"
	StatusVoided   Status = "voided"
	StatusReversed Status = "reversed"
)

// ValidTransition reports whether the lifecycle permits from -> to.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusPosted || to == StatusVoided
	case StatusPosted:
		return to == StatusVoided || to == StatusReversed
	}
	return false
}

// Side marks a GL line as debit or credit.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// Line types. Only GL lines participate in the posting balance.
const (
	LineTypeGL      = "GL"
	LineTypeItem    = "item"
	LineTypeTax     = "tax"
	LineTypePayment = "payment"
)

// Transaction is a business event header.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	OrganizationID  uuid.UUID       `json:"organization_id"`
	TransactionType string          `json:"transaction_type"`
	SmartCode       string          `json:"smart_code"`
	TransactionCode string          `json:"transaction_code"`
	TransactionDate time.Time       `json:"transaction_date"`
	SourceEntityID  *uuid.UUID      `json:"source_entity_id,omitempty"`
	TargetEntityID  *uuid.UUID      `json:"target_entity_id,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"transaction_currency"`
	Status          Status          `json:"status"`
	ReversalOf      *uuid.UUID      `json:"reversal_of,omitempty"`
	BusinessContext json.RawMessage `json:"business_context,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CreatedBy       uuid.UUID       `json:"created_by"`
	UpdatedBy       uuid.UUID       `json:"updated_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Lines []*Line `json:"lines,omitempty"`
}

// Line is one itemized component of a transaction.
type Line struct {
	ID             uuid.UUID       `json:"id"`
	TransactionID  uuid.UUID       `json:"transaction_id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	LineNumber     int             `json:"line_number"`
	LineType       string          `json:"line_type"`
	LineAmount     decimal.Decimal `json:"line_amount"`
	Side           Side            `json:"side,omitempty"`
	Currency       string          `json:"currency"`
	AccountType    string          `json:"account_type,omitempty"`
	Description    string          `json:"description,omitempty"`
	SmartCode      string          `json:"smart_code,omitempty"`
	CreatedBy      uuid.UUID       `json:"created_by"`
	UpdatedBy      uuid.UUID       `json:"updated_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// InvertedSide returns the opposite posting side. Reversals flip sides
// rather than negating amounts, keeping every stored amount positive.
func InvertedSide(s Side) Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}
