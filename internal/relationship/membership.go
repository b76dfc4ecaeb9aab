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

package relationship

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MembershipCache is the subset of the L1 cache the resolver needs.
type MembershipCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Resolver answers "which organizations and roles does this actor have"
// from active membership edges. The role is read from relationship_data
// on the membership edge itself, never from a separate table.
type Resolver struct {
	repo  Repository
	cache MembershipCache
	ttl   time.Duration
}

// NewResolver creates a membership resolver. cache may be nil to disable
// caching (tests).
func NewResolver(repo Repository, cache MembershipCache, ttl time.Duration) *Resolver {
	return &Resolver{repo: repo, cache: cache, ttl: ttl}
}

func cacheKey(actorEntityID uuid.UUID) string {
	return "memberships:" + actorEntityID.String()
}

// Resolve returns one membership per organization for the actor.
//
// Duplicate membership edges for the same (actor, organization) pair are a
// known data-quality hazard: the resolver deterministically keeps the
// newest edge by created_at and logs the duplicates so they are visible
// instead of silently flip-flopping between rows.
func (r *Resolver) Resolve(ctx context.Context, actorEntityID uuid.UUID) ([]Membership, error) {
	if r.cache != nil {
		if data, ok, _ := r.cache.Get(ctx, cacheKey(actorEntityID)); ok {
			var cached []Membership
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	edges, err := r.repo.MembershipsForActor(ctx, actorEntityID)
	if err != nil {
		return nil, err
	}

	// Newest first, so the first edge seen per organization wins.
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].CreatedAt.After(edges[j].CreatedAt)
	})

	seen := make(map[uuid.UUID]bool, len(edges))
	memberships := make([]Membership, 0, len(edges))
	for _, e := range edges {
		if seen[e.OrganizationID] {
			slog.WarnContext(ctx, "duplicate membership edge ignored",
				slog.String("violation_code", "MULTIPLE_MEMBERSHIPS"),
				slog.String("actor_entity_id", actorEntityID.String()),
				slog.String("organization_id", e.OrganizationID.String()),
				slog.String("relationship_id", e.ID.String()),
			)
			continue
		}
		seen[e.OrganizationID] = true

		var data MembershipData
		if len(e.RelationshipData) > 0 {
			// Malformed payloads degrade to an empty role rather than
			// failing the whole resolution.
			_ = json.Unmarshal(e.RelationshipData, &data)
		}
		memberships = append(memberships, Membership{
			OrganizationID: e.OrganizationID,
			RelationshipID: e.ID,
			Role:           data.Role,
			Permissions:    data.Permissions,
			CreatedAt:      e.CreatedAt,
		})
	}

	if r.cache != nil {
		if data, err := json.Marshal(memberships); err == nil {
			_ = r.cache.Set(ctx, cacheKey(actorEntityID), data, r.ttl)
		}
	}

	return memberships, nil
}

// HasMembership reports whether the actor holds an active membership in
// the organization, and with which role.
func (r *Resolver) HasMembership(ctx context.Context, actorEntityID, orgID uuid.UUID) (Membership, bool, error) {
	memberships, err := r.Resolve(ctx, actorEntityID)
	if err != nil {
		return Membership{}, false, err
	}
	for _, m := range memberships {
		if m.OrganizationID == orgID {
			return m, true, nil
		}
	}
	return Membership{}, false, nil
}

// Invalidate drops the cached memberships for an actor. Called by the
// gateway after any membership or role mutation.
func (r *Resolver) Invalidate(ctx context.Context, actorEntityID uuid.UUID) {
	if r.cache != nil {
		_ = r.cache.Delete(ctx, cacheKey(actorEntityID))
	}
}
