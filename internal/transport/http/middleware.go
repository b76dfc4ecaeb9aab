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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/heracore/heracore/internal/observability/logger"
)

// Scope Resolution Principles:
// 1. Organization scope comes ONLY from the verified token
// 2. No magic organization ids elevate privileges
// 3. An X-Organization-ID header on an authenticated call is rejected,
//    never silently ignored

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// actorClaims is the token payload issued by the external identity
// provider: the actor's platform entity id and the organization the
// token is scoped to.
type actorClaims struct {
	ActorID        string `json:"actor_id"`
	OrganizationID string `json:"organization_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies the bearer token and places actor and
// organization scope into the request context.
func AuthMiddleware(secret []byte, issuer string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Organization scope is token-derived only. A spoof header is
			// an explicit error so misconfigured clients fail loudly.
			if r.Header.Get("X-Organization-ID") != "" {
				respondError(w, http.StatusBadRequest, "X-Organization-ID header is not accepted; scope is derived from the token")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			raw := strings.TrimPrefix(authHeader, "Bearer ")

			claims := &actorClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			}, jwt.WithIssuer(issuer), jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				respondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			actorID, err := uuid.Parse(claims.ActorID)
			if err != nil || actorID == uuid.Nil {
				respondError(w, http.StatusUnauthorized, "token missing actor identity")
				return
			}
			orgID, err := uuid.Parse(claims.OrganizationID)
			if err != nil || orgID == uuid.Nil {
				respondError(w, http.StatusUnauthorized, "token missing organization scope")
				return
			}

			ctx := context.WithValue(r.Context(), actorIDKey, actorID)
			ctx = context.WithValue(ctx, orgIDKey, orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
