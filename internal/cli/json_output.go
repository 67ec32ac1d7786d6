// json_output.go - JSON output for scripting.
//
// Every command run with --json prints exactly one JSONResponse on stdout.
// Human-readable chatter goes to stderr in that mode.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/model"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// ErrorType classifies Error (auth_error, not_found_error, ...)
	ErrorType string `json:"error_type,omitempty"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response. The message is
// the user-facing one.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := UserMessage(err)
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// =============================================================================
// COMMAND PAYLOADS
// =============================================================================

// ConversationData describes one conversation.
type ConversationData struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	Origin    string `json:"origin"`
	Fallback  bool   `json:"fallback,omitempty"`
}

func conversationData(c model.Conversation) ConversationData {
	return ConversationData{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		Origin:    c.Origin.String(),
		Fallback:  c.Fallback,
	}
}

// RoomsData is the rooms list payload.
type RoomsData struct {
	Mode          string             `json:"mode"`
	Conversations []ConversationData `json:"conversations"`
}

// ShowData is the rooms show payload.
type ShowData struct {
	Conversation ConversationData `json:"conversation"`
	Messages     []model.Message  `json:"messages"`
}

// SendData is the send payload.
type SendData struct {
	Conversation ConversationData `json:"conversation"`
	Mode         string           `json:"mode"`
	Reply        string           `json:"reply"`
	IsCrisis     bool             `json:"is_crisis"`
	Hotline      string           `json:"hotline,omitempty"`
	CrisisText   string           `json:"crisis_message,omitempty"`
}

// WhoamiData is the whoami payload.
type WhoamiData struct {
	Mode        string `json:"mode"`
	Server      string `json:"server"`
	Fingerprint string `json:"token_fingerprint,omitempty"`
	Email       string `json:"email,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Valid       *bool  `json:"token_valid,omitempty"`
}

// PostData is the posts show payload.
type PostData struct {
	Post     backend.Post      `json:"post"`
	Comments []backend.Comment `json:"comments"`
}

// VersionData is the version payload.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}
