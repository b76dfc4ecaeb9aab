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

// Package guardrail provides the validation chain run by the CRUD gateways.
// Each guardrail reports violations into a shared collector; the configured
// mode decides whether non-security violations block the write (enforce) or
// are only logged (warn). The tenant boundary is exempt from warn mode: it
// always blocks.
package guardrail

import (
	"context"
	"log/slog"
)

// Mode controls whether violations abort the write.
type Mode string

const (
	ModeWarn    Mode = "warn"
	ModeEnforce Mode = "enforce"
)

// ParseMode returns the mode for a config string, defaulting to enforce.
func ParseMode(s string) Mode {
	if s == string(ModeWarn) {
		return ModeWarn
	}
	return ModeEnforce
}

// Violation codes. INVALID_SMART_CODE, CROSS_TENANT_VIOLATION, and
// NOT_FOUND are fatal in every mode; the rest follow the configured mode.
const (
	CodeInvalidSmartCode     = "INVALID_SMART_CODE"
	CodeCrossTenantViolation = "CROSS_TENANT_VIOLATION"
	CodeUnbalancedPosting    = "UNBALANCED_POSTING"
	CodeShapeValidation      = "SHAPE_VALIDATION"
	CodeNotFound             = "NOT_FOUND"
	CodeIdempotencyConflict  = "IDEMPOTENCY_CONFLICT"
	CodeMultipleMemberships  = "MULTIPLE_MEMBERSHIPS"
)

// Violation is one failed check, with enough detail for the caller to fix
// all issues in a single round trip.
type Violation struct {
	Code    string         `json:"code"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// alwaysFatal reports whether a violation blocks the write regardless of
// mode. Smart code shape and the tenant boundary are never warn-only, and
// neither is a missing referenced row: proceeding past one cannot succeed,
// it just moves the failure onto the foreign key constraint.
func alwaysFatal(code string) bool {
	switch code {
	case CodeInvalidSmartCode, CodeCrossTenantViolation, CodeNotFound:
		return true
	}
	return false
}

// Collector accumulates violations across the pipeline steps.
type Collector struct {
	mode       Mode
	violations []Violation
	fatal      bool
}

// NewCollector creates a collector for one gateway call.
func NewCollector(mode Mode) *Collector {
	return &Collector{mode: mode}
}

// Add records a violation. In warn mode non-security violations are kept
// for reporting but do not mark the call fatal.
func (c *Collector) Add(v Violation) {
	c.violations = append(c.violations, v)
	if c.mode == ModeEnforce || alwaysFatal(v.Code) {
		c.fatal = true
	}
}

// Violations returns everything collected so far.
func (c *Collector) Violations() []Violation {
	return c.violations
}

// Blocked reports whether the write must be aborted.
func (c *Collector) Blocked() bool {
	return c.fatal
}

// LogWarnings emits collected non-fatal violations; called when the write
// proceeds in warn mode so every bypassed rule is still visible.
func (c *Collector) LogWarnings(ctx context.Context, requestID string) {
	for _, v := range c.violations {
		slog.WarnContext(ctx, "guardrail violation (warn mode, not blocking)",
			slog.String("request_id", requestID),
			slog.String("violation_code", v.Code),
			slog.String("violation_field", v.Field),
			slog.String("violation_message", v.Message),
		)
	}
}

// Err converts the collected violations into a typed error using code as
// the dominant taxonomy code, or nil when nothing blocks the write.
func (c *Collector) Err(requestID string) error {
	if !c.fatal {
		return nil
	}
	// The most security-relevant code wins the envelope; among equals the
	// first violation decides.
	rank := map[string]int{
		CodeCrossTenantViolation: 3,
		CodeInvalidSmartCode:     2,
		CodeNotFound:             1,
	}
	code := CodeShapeValidation
	for i, v := range c.violations {
		if i == 0 || rank[v.Code] > rank[code] {
			code = v.Code
		}
	}
	return &Error{
		Code:       code,
		Message:    "guardrail validation failed",
		Violations: c.violations,
		RequestID:  requestID,
	}
}
