// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/neulbom/neulbom-cli/internal/webstorage"
)

// Mode is the session classification.
type Mode string

const (
	// ModeGuest means no credential is stored.
	ModeGuest Mode = "guest"
	// ModeMember means a non-empty credential is stored.
	ModeMember Mode = "member"
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// Label returns the user-facing name of the mode.
func (m Mode) Label() string {
	if m == ModeMember {
		return "회원"
	}
	return "게스트"
}

// Classifier derives the session mode from persisted storage.
type Classifier struct {
	storage webstorage.Storage
	logger  *log.Logger
}

// NewClassifier creates a classifier over storage.
func NewClassifier(storage webstorage.Storage, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Classifier{storage: storage, logger: logger}
}

// Token returns the stored credential with surrounding whitespace removed,
// or "" when none is stored. An unreadable storage counts as no credential.
func (c *Classifier) Token() string {
	token, ok, err := c.storage.GetItem(webstorage.KeyAuthToken)
	if err != nil {
		c.logger.Printf("session: reading credential: %v", err)
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// IsMember reports whether a non-empty credential is stored.
func (c *Classifier) IsMember() bool {
	return c.Token() != ""
}

// Mode returns the current classification.
func (c *Classifier) Mode() Mode {
	if c.IsMember() {
		return ModeMember
	}
	return ModeGuest
}

// SetToken persists a credential after login.
func (c *Classifier) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if err := c.storage.SetItem(webstorage.KeyAuthToken, token); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	c.logger.Printf("session: stored credential %s", Fingerprint(token))
	return nil
}

// ClearToken removes the credential. Guest conversations are left alone.
func (c *Classifier) ClearToken() error {
	if err := c.storage.RemoveItem(webstorage.KeyAuthToken); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}

// Fingerprint returns a short stable identifier for a token that is safe to
// print in logs.
func Fingerprint(token string) string {
	if token == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])[:12]
}
