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
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	actorIDKey contextKey = "actor_id"
	orgIDKey   contextKey = "organization_id"
)

// GetActorID retrieves the authenticated actor's entity id from context.
func GetActorID(ctx context.Context) uuid.UUID {
	if val, ok := ctx.Value(actorIDKey).(uuid.UUID); ok {
		return val
	}
	return uuid.Nil
}

// GetOrganizationID retrieves the token-derived organization scope from
// context. It is set exclusively by the auth middleware; headers and
// request bodies never influence it.
func GetOrganizationID(ctx context.Context) uuid.UUID {
	if val, ok := ctx.Value(orgIDKey).(uuid.UUID); ok {
		return val
	}
	return uuid.Nil
}
