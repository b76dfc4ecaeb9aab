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

package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// OpClass buckets operations for rate limiting purposes. Financial
// mutations get the tightest budget.
type OpClass string

const (
	ClassRead      OpClass = "read"
	ClassWrite     OpClass = "write"
	ClassFinancial OpClass = "financial"
)

// RateLimiter manages per-(actor, class) token buckets.
type RateLimiter struct {
	mu              sync.Mutex
	buckets         map[string]*rate.Limiter
	perClass        map[OpClass]rate.Limit
	burst           int
	cleanupInterval time.Duration
}

// RateLimits holds the per-class budgets in requests per minute.
type RateLimits struct {
	ReadPerMinute      int
	WritePerMinute     int
	FinancialPerMinute int
	Burst              int
}

// NewRateLimiter creates a rate limiter with per-class budgets.
func NewRateLimiter(limits RateLimits) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		perClass: map[OpClass]rate.Limit{
			ClassRead:      rate.Limit(float64(limits.ReadPerMinute) / 60.0),
			ClassWrite:     rate.Limit(float64(limits.WritePerMinute) / 60.0),
			ClassFinancial: rate.Limit(float64(limits.FinancialPerMinute) / 60.0),
		},
		burst:           limits.Burst,
		cleanupInterval: 10 * time.Minute,
	}

	go rl.cleanup()

	return rl
}

// Allow reports whether the actor may perform one operation of the class.
func (rl *RateLimiter) Allow(actorID string, class OpClass) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := actorID + "/" + string(class)
	limiter, exists := rl.buckets[key]
	if !exists {
		limit, ok := rl.perClass[class]
		if !ok {
			limit = rl.perClass[ClassWrite]
		}
		limiter = rate.NewLimiter(limit, rl.burst)
		rl.buckets[key] = limiter
	}

	return limiter.Allow()
}

// cleanup periodically resets the bucket map so drive-by actors do not
// accumulate memory. Active actors get a fresh bucket on next request.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	for range ticker.C {
		rl.mu.Lock()
		rl.buckets = make(map[string]*rate.Limiter)
		rl.mu.Unlock()
	}
}
