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

// Package idempotency gives gateway writes at-most-once semantics for
// retried client calls. A caller-supplied key plus a hash of the payload
// identifies a prior successful execution; within the TTL the stored
// response is returned verbatim instead of re-executing.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrKeyConflict means the same key was reused with a different
	// payload. That is a caller bug, not a replay.
	ErrKeyConflict = errors.New("idempotency key reused with different payload")

	ErrRecordNotFound = errors.New("idempotency record not found")
)

// Record is one stored execution result.
type Record struct {
	Key            string
	OrganizationID uuid.UUID
	Operation      string
	PayloadHash    string
	Response       json.RawMessage
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Repository defines the interface for idempotency record storage.
type Repository interface {
	Get(ctx context.Context, orgID uuid.UUID, key string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// HashPayload produces the canonical payload fingerprint. The payload is
// re-marshaled so that key ordering in the caller's JSON does not matter.
func HashPayload(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Checker wraps the repository with the TTL policy.
type Checker struct {
	repo Repository
	ttl  time.Duration
}

// NewChecker creates a checker with the configured TTL (operationally 24h).
func NewChecker(repo Repository, ttl time.Duration) *Checker {
	return &Checker{repo: repo, ttl: ttl}
}

// Check looks up a prior execution. Returns the stored response when key
// and payload hash match an unexpired record, ErrKeyConflict when the key
// exists with a different hash, and (nil, nil) when the call should
// execute normally.
func (c *Checker) Check(ctx context.Context, orgID uuid.UUID, operation, key, payloadHash string) (json.RawMessage, error) {
	if key == "" {
		return nil, nil
	}
	rec, err := c.repo.Get(ctx, orgID, key)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().After(rec.ExpiresAt) {
		// Expired keys are treated as new operations.
		return nil, nil
	}
	if rec.PayloadHash != payloadHash || rec.Operation != operation {
		return nil, ErrKeyConflict
	}
	return rec.Response, nil
}

// Store persists the successful response for later replays.
func (c *Checker) Store(ctx context.Context, orgID uuid.UUID, operation, key, payloadHash string, response json.RawMessage) error {
	if key == "" {
		return nil
	}
	now := time.Now()
	return c.repo.Put(ctx, &Record{
		Key:            key,
		OrganizationID: orgID,
		Operation:      operation,
		PayloadHash:    payloadHash,
		Response:       response,
		CreatedAt:      now,
		ExpiresAt:      now.Add(c.ttl),
	})
}
