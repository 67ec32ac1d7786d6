// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/neulbom/neulbom-cli/internal/model"
)

// Search returns conversations whose title or any message contains query,
// ignoring case. Both sides are NFC-normalised, so Hangul typed as
// decomposed jamo (as macOS input methods often produce) still matches.
// An empty query returns everything.
func (s *ConversationStore) Search(query string) []model.Conversation {
	query = foldForSearch(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	var results []model.Conversation
	for _, c := range s.load().entries {
		if query == "" || matches(c, query) {
			results = append(results, c.Conversation())
		}
	}
	return results
}

func matches(c *StoredConversation, query string) bool {
	if strings.Contains(foldForSearch(c.Title), query) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(foldForSearch(m.Content), query) {
			return true
		}
	}
	return false
}

func foldForSearch(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
