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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeOrgProvisioned     = "org_provisioned"
	TypeOrgUpdated         = "org_updated"
	TypeOrgDeactivated     = "org_deactivated"
	TypeEntityWrite        = "entity_write"
	TypeRelationshipWrite  = "relationship_write"
	TypeTransactionWrite   = "transaction_write"
	TypeMembershipCascade  = "membership_cascade_delete"
	TypeGuardrailViolation = "guardrail_violation"
	TypeIdempotentReplay   = "idempotent_replay"
)

// Outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeReplayed = "replayed"
)

// Event represents an auditable gateway action. Every gateway call emits
// one, keyed by the request id so support can correlate responses with
// the audit trail.
type Event struct {
	Type       string
	RequestID  string
	OrgID      string
	ActorID    string
	Resource   string
	Outcome    string
	Violations []any
	Metadata   map[string]any
	Timestamp  time.Time
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("request_id", event.RequestID),
		slog.String("organization_id", event.OrgID),
		slog.String("actor_id", event.ActorID),
		slog.String("outcome", event.Outcome),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.Resource != "" {
		attrs = append(attrs, slog.String("resource", event.Resource))
	}
	if len(event.Violations) > 0 {
		attrs = append(attrs, slog.Any("violations", event.Violations))
	}

	// Flatten metadata
	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			// Redact secrets
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	// Log at INFO level with "audit" component
	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	lower := strings.ToLower(key)
	secrets := []string{"password", "secret", "token", "key", "hash", "credential", "authorization"}
	for _, s := range secrets {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
