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

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heracore/heracore/internal/audit"
	"github.com/heracore/heracore/internal/guardrail"
	"github.com/heracore/heracore/internal/transaction"
)

// LinePayload is one caller-supplied transaction line.
type LinePayload struct {
	LineNumber  int              `json:"line_number"`
	LineType    string           `json:"line_type"`
	LineAmount  decimal.Decimal  `json:"line_amount"`
	Side        transaction.Side `json:"side,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	AccountType string           `json:"account_type,omitempty"`
	Description string           `json:"description,omitempty"`
	SmartCode   string           `json:"smart_code,omitempty"`
}

// TransactionPayload is the caller-supplied header shape for CREATE.
type TransactionPayload struct {
	TransactionType string          `json:"transaction_type"`
	SmartCode       string          `json:"smart_code"`
	TransactionCode string          `json:"transaction_code"`
	TransactionDate time.Time       `json:"transaction_date"`
	SourceEntityID  *uuid.UUID      `json:"source_entity_id,omitempty"`
	TargetEntityID  *uuid.UUID      `json:"target_entity_id,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"transaction_currency"`
	BusinessContext json.RawMessage `json:"business_context,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	Lines           []LinePayload   `json:"lines,omitempty"`

	// Status may be draft or posted; empty defaults to draft. Creating
	// directly as posted skips the separate POST action but runs the same
	// balance validation.
	Status transaction.Status `json:"status,omitempty"`
}

// TransactionRequest is the single entry-point command for the
// transaction aggregate. POST, VOID, and REVERSE drive the lifecycle.
type TransactionRequest struct {
	Action         Action                    `json:"action"`
	ActorID        uuid.UUID                 `json:"actor_id"`
	OrganizationID uuid.UUID                 `json:"organization_id"`
	TransactionID  uuid.UUID                 `json:"transaction_id,omitempty"`
	Transaction    *TransactionPayload       `json:"transaction,omitempty"`
	Patch          *transaction.HeaderUpdate `json:"patch,omitempty"`
	Filter         transaction.Filter        `json:"filter,omitempty"`
	Options        Options                   `json:"options,omitempty"`
}

// TransactionGateway wraps all transaction mutations in the guardrail
// pipeline, including the posting balance validator.
type TransactionGateway struct {
	deps Deps
	txns transaction.Repository
}

// NewTransactionGateway creates the transaction gateway.
func NewTransactionGateway(deps Deps, txns transaction.Repository) *TransactionGateway {
	return &TransactionGateway{deps: deps, txns: txns}
}

// Execute runs one transaction command through the pipeline.
func (g *TransactionGateway) Execute(ctx context.Context, req TransactionRequest) (*Response, error) {
	requestID := newRequestID()

	if req.ActorID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "actor_id is required")
	}
	if req.OrganizationID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "organization_id is required")
	}

	switch req.Action {
	case ActionCreate:
		return g.create(ctx, requestID, req)
	case ActionRead:
		return g.read(ctx, requestID, req)
	case ActionQuery:
		return g.query(ctx, requestID, req)
	case ActionUpdate:
		return g.update(ctx, requestID, req)
	case ActionPost:
		return g.post(ctx, requestID, req)
	case ActionVoid:
		return g.void(ctx, requestID, req)
	case ActionReverse:
		return g.reverse(ctx, requestID, req)
	default:
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, fmt.Sprintf("unsupported transaction action %q", req.Action))
	}
}

func (g *TransactionGateway) create(ctx context.Context, requestID string, req TransactionRequest) (*Response, error) {
	collector := guardrail.NewCollector(g.deps.Mode)

	if req.Transaction == nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "transaction payload is required for CREATE")
	}
	p := req.Transaction

	// 1. Smart codes: header always, lines where present.
	parsed, scErr := g.deps.SmartCodes.Validate(p.SmartCode)
	if scErr != nil {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeInvalidSmartCode, Field: "smart_code", Message: scErr.Error(),
		})
	}
	for i, l := range p.Lines {
		if l.SmartCode == "" {
			continue
		}
		if _, err := g.deps.SmartCodes.Validate(l.SmartCode); err != nil {
			collector.Add(guardrail.Violation{
				Code:    guardrail.CodeInvalidSmartCode,
				Field:   fmt.Sprintf("lines[%d].smart_code", i),
				Message: err.Error(),
			})
		}
	}

	// 2. Shape.
	if p.TransactionType == "" {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeShapeValidation, Field: "transaction_type",
			Message: "transaction_type is required",
		})
	}
	if p.Currency == "" {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeShapeValidation, Field: "transaction_currency",
			Message: "transaction_currency is required",
		})
	}
	status := p.Status
	if status == "" {
		status = transaction.StatusDraft
	}
	if status != transaction.StatusDraft && status != transaction.StatusPosted {
		collector.Add(guardrail.Violation{
			Code: guardrail.CodeShapeValidation, Field: "status",
			Message: "transactions are created in draft or posted status",
		})
	}
	g.checkLineShape(collector, p.Lines)

	// 3. Posting balance over GL lines. A financial smart code runs the
	// validator even when no GL lines arrived yet: zero lines are
	// trivially balanced, but the check keeps the posting path uniform.
	lines := g.buildLines(req.OrganizationID, p.Lines)
	if len(lines) > 0 || (scErr == nil && parsed.IsFinancial()) {
		if err := transaction.ValidateBalance(lines); err != nil {
			collector.Add(balanceViolation(err))
		}
	}

	// Payload-only failures abort before the replay lookup; a first call
	// rejected here never stored a response.
	if err := collector.Err(requestID); err != nil {
		g.deps.auditOutcome(ctx, audit.TypeTransactionWrite, requestID, req.OrganizationID, req.ActorID, "transaction", audit.OutcomeRejected, collector.Violations())
		return nil, err
	}

	// 4. Idempotency short-circuit, ahead of the state-dependent checks.
	replay, hash, err := g.deps.checkReplay(ctx, req.OrganizationID, "transaction.create", req.Options.IdempotencyKey, req)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	// 5. Tenant boundary on the optional entity references.
	if err := g.deps.Boundary.CheckTransactionRefs(ctx, req.OrganizationID, p.SourceEntityID, p.TargetEntityID); err != nil {
		collector.Add(boundaryViolation(err))
	}

	if err := collector.Err(requestID); err != nil {
		g.deps.auditOutcome(ctx, audit.TypeTransactionWrite, requestID, req.OrganizationID, req.ActorID, "transaction", audit.OutcomeRejected, collector.Violations())
		return nil, err
	}
	collector.LogWarnings(ctx, requestID)

	// 6. Store mutation: header and lines commit atomically.
	now := time.Now()
	t := &transaction.Transaction{
		ID:              uuid.New(),
		OrganizationID:  req.OrganizationID,
		TransactionType: p.TransactionType,
		SmartCode:       p.SmartCode,
		TransactionCode: p.TransactionCode,
		TransactionDate: p.TransactionDate,
		SourceEntityID:  p.SourceEntityID,
		TargetEntityID:  p.TargetEntityID,
		TotalAmount:     p.TotalAmount,
		Currency:        p.Currency,
		Status:          status,
		BusinessContext: p.BusinessContext,
		Metadata:        p.Metadata,
		CreatedBy:       req.ActorID,
		UpdatedBy:       req.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if t.TransactionDate.IsZero() {
		t.TransactionDate = now
	}
	for _, l := range lines {
		l.TransactionID = t.ID
		l.CreatedBy = req.ActorID
		l.UpdatedBy = req.ActorID
		l.CreatedAt = now
		l.UpdatedAt = now
	}
	t.Lines = lines

	if err := g.txns.Create(ctx, t); err != nil {
		return nil, err
	}

	resp, err := okResponse(requestID, t, collector.Violations())
	if err != nil {
		return nil, err
	}
	g.deps.storeResult(ctx, req.OrganizationID, "transaction.create", req.Options.IdempotencyKey, hash, resp)
	g.deps.auditOutcome(ctx, audit.TypeTransactionWrite, requestID, req.OrganizationID, req.ActorID, "transaction:"+t.ID.String(), audit.OutcomeSuccess, collector.Violations())
	return resp, nil
}

func (g *TransactionGateway) read(ctx context.Context, requestID string, req TransactionRequest) (*Response, error) {
	if req.TransactionID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "transaction_id is required for READ")
	}
	t, err := g.get(ctx, requestID, req.OrganizationID, req.TransactionID)
	if err != nil {
		return nil, err
	}
	return okResponse(requestID, t, nil)
}

func (g *TransactionGateway) query(ctx context.Context, requestID string, req TransactionRequest) (*Response, error) {
	list, err := g.txns.Query(ctx, req.OrganizationID, req.Filter)
	if err != nil {
		return nil, err
	}
	return okResponse(requestID, list, nil)
}

func (g *TransactionGateway) update(ctx context.Context, requestID string, req TransactionRequest) (*Response, error) {
	if req.TransactionID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "transaction_id is required for UPDATE")
	}
	if req.Patch == nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "patch is required for UPDATE")
	}
	t, err := g.txns.UpdateDraft(ctx, req.OrganizationID, req.TransactionID, *req.Patch, req.ActorID)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			return nil, notFoundErr(requestID, "transaction")
		}
		if errors.Is(err, transaction.ErrTransactionImmutable) {
			return nil, guardrail.NewError(guardrail.CodeShapeValidation, "only draft transactions can be updated")
		}
		return nil, err
	}
	g.deps.auditOutcome(ctx, audit.TypeTransactionWrite, requestID, req.OrganizationID, req.ActorID, "transaction:"+t.ID.String(), audit.OutcomeSuccess, nil)
	return okResponse(requestID, t, nil)
}

// post promotes a draft to posted. The balance validator runs again at
// posting time, so a draft saved unbalanced in warn mode cannot become
// part of the ledger while unbalanced in enforce mode.
func (g *TransactionGateway) post(ctx context.Context, requestID string, req TransactionRequest) (*Response, error) {
	if req.TransactionID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "transaction_id is required for POST")
	}
	t, err := g.get(ctx, requestID, req.OrganizationID, req.TransactionID)
	if err != nil {
		return nil, err
	}

	collector := guardrail.NewCollector(g.deps.Mode)
	if err := transaction.ValidateBalance(t.Lines); err != nil {
		collector.Add(balanceViolation(err))
	}
	if err := collector.Err(requestID); err != nil {
		g.deps.auditOutcome(ctx, audit.TypeTransactionWrite, requestID, req.OrganizationID, req.ActorID, "transaction:"+t.ID.String(), audit.OutcomeRejected, collector.Violations())
		return nil, err
	}
	collector.LogWarnings(ctx, requestID)

	return g.transition(ctx, requestID, req, t.ID, transaction.StatusDraft, transaction.StatusPosted, collector.Violations())
}

func (g *TransactionGateway) void(ctx context.Context, requestID string, req TransactionRequest) (*Response, error) {
	if req.TransactionID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "transaction_id is required for VOID")
	}
	return g.transition(ctx, requestID, req, req.TransactionID, transaction.StatusPosted, transaction.StatusVoided, nil)
}

// reverse never mutates the original's amounts. It creates a new linked
// transaction with every line's debit/credit side swapped, marks the
// original reversed, and commits both in one storage transaction.
func (g *TransactionGateway) reverse(ctx context.Context, requestID string, req TransactionRequest) (*Response, error) {
	if req.TransactionID == uuid.Nil {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "transaction_id is required for REVERSE")
	}

	// Replay lookup precedes the status check: the first call marked the
	// original reversed, and a retry must get the stored response back
	// instead of an invalid-transition rejection.
	replay, hash, err := g.deps.checkReplay(ctx, req.OrganizationID, "transaction.reverse", req.Options.IdempotencyKey, req)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	original, err := g.get(ctx, requestID, req.OrganizationID, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if original.Status != transaction.StatusPosted {
		return nil, guardrail.NewError(guardrail.CodeShapeValidation, "only posted transactions can be reversed")
	}

	now := time.Now()
	reversal := &transaction.Transaction{
		ID:              uuid.New(),
		OrganizationID:  original.OrganizationID,
		TransactionType: original.TransactionType,
		SmartCode:       original.SmartCode,
		TransactionCode: original.TransactionCode + "-REV",
		TransactionDate: now,
		SourceEntityID:  original.SourceEntityID,
		TargetEntityID:  original.TargetEntityID,
		TotalAmount:     original.TotalAmount,
		Currency:        original.Currency,
		Status:          transaction.StatusPosted,
		ReversalOf:      &original.ID,
		BusinessContext: original.BusinessContext,
		Metadata:        original.Metadata,
		CreatedBy:       req.ActorID,
		UpdatedBy:       req.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, l := range original.Lines {
		reversal.Lines = append(reversal.Lines, &transaction.Line{
			ID:             uuid.New(),
			TransactionID:  reversal.ID,
			OrganizationID: l.OrganizationID,
			LineNumber:     l.LineNumber,
			LineType:       l.LineType,
			LineAmount:     l.LineAmount,
			Side:           transaction.InvertedSide(l.Side),
			Currency:       l.Currency,
			AccountType:    l.AccountType,
			Description:    l.Description,
			SmartCode:      l.SmartCode,
			CreatedBy:      req.ActorID,
			UpdatedBy:      req.ActorID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := g.txns.Reverse(ctx, req.OrganizationID, original.ID, reversal); err != nil {
		if errors.Is(err, transaction.ErrInvalidTransition) {
			return nil, guardrail.NewError(guardrail.CodeShapeValidation, err.Error())
		}
		return nil, err
	}

	resp, err := okResponse(requestID, reversal, nil)
	if err != nil {
		return nil, err
	}
	g.deps.storeResult(ctx, req.OrganizationID, "transaction.reverse", req.Options.IdempotencyKey, hash, resp)
	g.deps.auditOutcome(ctx, audit.TypeTransactionWrite, requestID, req.OrganizationID, req.ActorID, "transaction:"+reversal.ID.String(), audit.OutcomeSuccess, nil)
	return resp, nil
}

func (g *TransactionGateway) transition(ctx context.Context, requestID string, req TransactionRequest, id uuid.UUID, from, to transaction.Status, violations []guardrail.Violation) (*Response, error) {
	if err := g.txns.SetStatus(ctx, req.OrganizationID, id, from, to, req.ActorID); err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			return nil, notFoundErr(requestID, "transaction")
		}
		if errors.Is(err, transaction.ErrInvalidTransition) {
			return nil, guardrail.NewError(guardrail.CodeShapeValidation,
				fmt.Sprintf("transaction cannot move from %s to %s", from, to))
		}
		return nil, err
	}
	g.deps.auditOutcome(ctx, audit.TypeTransactionWrite, requestID, req.OrganizationID, req.ActorID, "transaction:"+id.String(), audit.OutcomeSuccess, violations)
	return okResponse(requestID, map[string]string{"id": id.String(), "status": string(to)}, violations)
}

func (g *TransactionGateway) get(ctx context.Context, requestID string, orgID, id uuid.UUID) (*transaction.Transaction, error) {
	t, err := g.txns.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			return nil, notFoundErr(requestID, "transaction")
		}
		return nil, err
	}
	return t, nil
}

func (g *TransactionGateway) checkLineShape(collector *guardrail.Collector, lines []LinePayload) {
	for i, l := range lines {
		if l.LineType == "" {
			collector.Add(guardrail.Violation{
				Code:    guardrail.CodeShapeValidation,
				Field:   fmt.Sprintf("lines[%d].line_type", i),
				Message: "line_type is required",
			})
		}
		if l.LineType == transaction.LineTypeGL {
			if l.Side != transaction.SideDebit && l.Side != transaction.SideCredit {
				collector.Add(guardrail.Violation{
					Code:    guardrail.CodeShapeValidation,
					Field:   fmt.Sprintf("lines[%d].side", i),
					Message: "GL lines require a debit or credit side",
				})
			}
			if l.Currency == "" {
				collector.Add(guardrail.Violation{
					Code:    guardrail.CodeShapeValidation,
					Field:   fmt.Sprintf("lines[%d].currency", i),
					Message: "GL lines require a currency",
				})
			}
		}
		if l.LineAmount.IsNegative() {
			collector.Add(guardrail.Violation{
				Code:    guardrail.CodeShapeValidation,
				Field:   fmt.Sprintf("lines[%d].line_amount", i),
				Message: "line_amount must not be negative; direction is the side column",
			})
		}
	}
}

func (g *TransactionGateway) buildLines(orgID uuid.UUID, payloads []LinePayload) []*transaction.Line {
	lines := make([]*transaction.Line, 0, len(payloads))
	for i, p := range payloads {
		n := p.LineNumber
		if n == 0 {
			n = i + 1
		}
		lines = append(lines, &transaction.Line{
			ID:             uuid.New(),
			OrganizationID: orgID,
			LineNumber:     n,
			LineType:       p.LineType,
			LineAmount:     p.LineAmount,
			Side:           p.Side,
			Currency:       p.Currency,
			AccountType:    p.AccountType,
			Description:    p.Description,
			SmartCode:      p.SmartCode,
		})
	}
	return lines
}

// balanceViolation converts an UnbalancedError into the violation shape,
// keeping the per-currency totals so the caller sees exactly which bucket
// failed and by how much.
func balanceViolation(err error) guardrail.Violation {
	v := guardrail.Violation{Code: guardrail.CodeUnbalancedPosting, Message: err.Error()}
	var ub *transaction.UnbalancedError
	if errors.As(err, &ub) {
		v.Details = map[string]any{"currency_totals": ub.Totals}
	}
	return v
}
