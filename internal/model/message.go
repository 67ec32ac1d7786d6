// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultClockLayout renders message times as 24h hour:minute.
const DefaultClockLayout = "15:04"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "나"
	case RoleAssistant:
		return "늘봄"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one entry of a conversation. Field names follow the JSON shape
// the web client already keeps in browser storage.
type Message struct {
	ID             string
	ConversationID string
	Content        string
	IsUser         bool
	Timestamp      time.Time

	// DisplayTime holds a timestamp that is not an instant, such as the
	// "오후 03:04" clock the web client writes. Timestamp is zero then.
	DisplayTime string
}

type messageJSON struct {
	ID             json.RawMessage `json:"id,omitempty"`
	ConversationID json.RawMessage `json:"conversationId"`
	Content        string          `json:"content"`
	IsUser         bool            `json:"isUser"`
	Timestamp      json.RawMessage `json:"timestamp"`
}

// MarshalJSON writes the web client's shape. A DisplayTime is written back
// as it was read.
func (m Message) MarshalJSON() ([]byte, error) {
	w := messageJSON{
		ConversationID: mustQuote(m.ConversationID),
		Content:        m.Content,
		IsUser:         m.IsUser,
	}
	if m.ID != "" {
		w.ID = mustQuote(m.ID)
	}

	var err error
	if m.Timestamp.IsZero() && m.DisplayTime != "" {
		w.Timestamp = mustQuote(m.DisplayTime)
	} else if w.Timestamp, err = json.Marshal(m.Timestamp); err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts IDs as strings or numbers, and a timestamp as an
// RFC 3339 string, epoch milliseconds or any other string.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := looseString(w.ID)
	if err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	convID, err := looseString(w.ConversationID)
	if err != nil {
		return fmt.Errorf("message conversationId: %w", err)
	}

	*m = Message{
		ID:             id,
		ConversationID: convID,
		Content:        w.Content,
		IsUser:         w.IsUser,
	}
	return m.setTimestamp(w.Timestamp)
}

func (m *Message) setTimestamp(raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] != '"' {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("message timestamp: %s", raw)
		}
		m.Timestamp = time.UnixMilli(ms).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		m.Timestamp = t
		return nil
	}
	m.DisplayTime = s
	return nil
}

// looseString reads a JSON string or number as a string.
func looseString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func mustQuote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// NewUserMessage creates a user-authored message stamped at the given instant.
func NewUserMessage(conversationID, content string, at time.Time) Message {
	return Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Content:        content,
		IsUser:         true,
		Timestamp:      at,
	}
}

// NewAssistantMessage creates an assistant reply stamped at the given instant.
func NewAssistantMessage(conversationID, content string, at time.Time) Message {
	return Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Content:        content,
		IsUser:         false,
		Timestamp:      at,
	}
}

// Role returns the author role.
func (m Message) Role() Role {
	if m.IsUser {
		return RoleUser
	}
	return RoleAssistant
}

// Clock formats the timestamp for display. A DisplayTime is shown as is.
func (m Message) Clock(layout string) string {
	if m.Timestamp.IsZero() {
		return m.DisplayTime
	}
	return FormatClock(m.Timestamp, layout)
}

// FormatClock formats an instant in local time. Zero instants render empty.
func FormatClock(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	if layout == "" {
		layout = DefaultClockLayout
	}
	return t.Local().Format(layout)
}
