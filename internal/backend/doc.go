// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for the Neulbom REST API.
//
// The client covers chat rooms, the chat message endpoint and the account
// endpoints the terminal client needs (login, signup, profile). The bearer
// credential is pulled from a TokenSource on every request, so a login or
// logout between two calls is honoured without rebuilding the client.
//
// # Errors
//
// Non-2xx responses become *APIError. errors.Is matches them against
// ErrUnauthorized, ErrForbidden, ErrNotFound and ErrRateLimited:
//
//	rooms, err := client.ListRooms(ctx)
//	if backend.IsAuthError(err) {
//	    // token missing, expired or rejected
//	}
//
// # Retries
//
// GET, PUT and DELETE are retried with exponential backoff on 5xx, 429 and
// transport errors. POST is sent exactly once: a repeated room creation or
// chat message would be visible to the user.
package backend
