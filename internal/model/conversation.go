// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ORIGIN
// =============================================================================

// Origin names the store that owns a conversation.
type Origin string

const (
	// OriginLocal conversations live only in client storage.
	OriginLocal Origin = "local"
	// OriginRemote conversations live on the backend.
	OriginRemote Origin = "remote"
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	return string(o)
}

// Label returns a short human-readable label.
func (o Origin) Label() string {
	switch o {
	case OriginLocal:
		return "이 기기"
	case OriginRemote:
		return "서버"
	default:
		return string(o)
	}
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a chat room. Messages are held separately because the
// backend serves rooms without their history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Origin    Origin    `json:"origin"`

	// Fallback marks a local conversation created because the server
	// refused to create a room for a signed-in user.
	Fallback bool `json:"fallback,omitempty"`
}

// IsLocal reports whether the conversation is owned by client storage.
func (c Conversation) IsLocal() bool {
	return c.Origin == OriginLocal
}

// RemoteID returns the server-assigned room ID.
func (c Conversation) RemoteID() (int64, error) {
	if c.Origin != OriginRemote {
		return 0, fmt.Errorf("conversation %s is not server-backed", c.ID)
	}
	return ParseRemoteID(c.ID)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

const (
	localIDPrefix  = "local_"
	localSuffixLen = 9
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// ErrInvalidID is returned when an ID string cannot be interpreted.
var ErrInvalidID = errors.New("invalid conversation id")

// NewLocalID generates a synthetic guest conversation ID from the given
// instant plus a random base36 suffix.
func NewLocalID(now time.Time) string {
	var sb strings.Builder
	sb.WriteString(localIDPrefix)
	sb.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	sb.WriteByte('_')
	limit := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < localSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			n = big.NewInt(now.UnixNano() % int64(len(base36Alphabet)))
		}
		sb.WriteByte(base36Alphabet[n.Int64()])
	}
	return sb.String()
}

// IsLocalID reports whether id has the synthetic guest form.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// LocalIDNumber extracts the millisecond stamp from a synthetic ID.
func LocalIDNumber(id string) (int64, bool) {
	if !IsLocalID(id) {
		return 0, false
	}
	rest := strings.TrimPrefix(id, localIDPrefix)
	stamp, _, _ := strings.Cut(rest, "_")
	n, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// RemoteIDString renders a server room ID.
func RemoteIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseRemoteID parses a server room ID.
func ParseRemoteID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}

// OriginOf classifies a bare ID string. Only used when a caller has an ID
// without its Conversation, e.g. from a command-line argument.
func OriginOf(id string) Origin {
	if IsLocalID(id) {
		return OriginLocal
	}
	return OriginRemote
}
