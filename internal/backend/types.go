// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"strings"
	"time"
)

// =============================================================================
// CHAT ROOMS
// =============================================================================

// Room is a server-side chat room.
type Room struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// timestampLayouts are the shapes the server has been seen to emit.
// Python's isoformat omits the zone for naive datetimes.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Created parses CreatedAt. Naive timestamps are read as UTC; an unparseable
// value yields the zero time.
func (r Room) Created() time.Time {
	return parseTimestamp(r.CreatedAt)
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// RoomList is the GET /api/chat/rooms payload.
type RoomList struct {
	Items []Room `json:"items"`
	Total int    `json:"total"`
}

type titleRequest struct {
	Title string `json:"title"`
}

// =============================================================================
// CHAT MESSAGES
// =============================================================================

// Turn is one prior exchange line sent as context with a new message.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the POST /api/chat/message body.
type ChatRequest struct {
	Message string `json:"message"`
	History []Turn `json:"history"`
}

// CrisisHotline is the national welfare call centre, shown when a crisis
// reply carries no phone number of its own.
const CrisisHotline = "129"

// CrisisInfo is the contact metadata attached to a crisis reply.
type CrisisInfo struct {
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
}

// ChatResponse is the reply to a chat message.
type ChatResponse struct {
	Reply      string      `json:"reply"`
	IsCrisis   bool        `json:"is_crisis"`
	CrisisInfo *CrisisInfo `json:"crisis_info,omitempty"`
	RoomID     *int64      `json:"room_id,omitempty"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// LoginRequest is the POST /api/auth/login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the POST /api/auth/signup body.
type SignupRequest struct {
	Name            string `json:"name,omitempty"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm,omitempty"`
	Age             *int   `json:"age,omitempty"`
	Region          string `json:"region,omitempty"`
	CareTarget      string `json:"care_target,omitempty"`
}

// TokenResponse carries a freshly issued credential.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Profile is the GET /api/users/me payload.
type Profile struct {
	ID                 int64  `json:"id"`
	Email              string `json:"email"`
	Age                *int   `json:"age,omitempty"`
	Region             string `json:"region,omitempty"`
	CareTarget         string `json:"care_target,omitempty"`
	Level              int    `json:"level"`
	VerificationStatus string `json:"verification_status,omitempty"`
}

// ProfileUpdate is the PUT /api/users/me body. Nil fields are left as they
// are.
type ProfileUpdate struct {
	Age        *int    `json:"age,omitempty"`
	Region     *string `json:"region,omitempty"`
	CareTarget *string `json:"care_target,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Age == nil && u.Region == nil && u.CareTarget == nil
}
