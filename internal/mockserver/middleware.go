// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// ============================================================================
// Request Logging
// ============================================================================

// LoggingMiddleware logs one line per request.
//
// Log format: "REQ 7f3a.../000001 | POST /api/chat/message | 200 | 0.004s"
func LoggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Printf("REQ %s | %s %s | %d | %.3fs",
				middleware.GetReqID(r.Context()),
				r.Method,
				r.URL.Path,
				status,
				time.Since(start).Seconds(),
			)
		})
	}
}

// ============================================================================
// Bearer Authentication
// ============================================================================

type ctxKey int

const userKey ctxKey = iota

// authenticate resolves the bearer token, if any, into a user.
//
// With required set, a missing token answers 403 "Not authenticated" and a
// bad one 401 "Could not validate credentials", the way the production
// FastAPI security dependency does. Without it, anonymous requests pass
// through and only a bad token is rejected.
func (s *Server) authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if required {
					writeDetail(w, http.StatusForbidden, "Not authenticated")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			u, err := s.userFromToken(raw)
			if err != nil {
				writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			if !u.Active {
				writeDetail(w, http.StatusBadRequest, "Inactive user")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// currentUser returns the authenticated user, or nil for guests.
func currentUser(r *http.Request) *user {
	u, _ := r.Context().Value(userKey).(*user)
	return u
}
