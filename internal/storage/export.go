// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/neulbom/neulbom-cli/internal/model"
	"github.com/neulbom/neulbom-cli/internal/util"
)

// =============================================================================
// CONVERSATION EXPORT
// =============================================================================

// ExportMarkdown renders the conversation as Markdown. clockLayout formats
// message times; empty means model.DefaultClockLayout.
func (c *StoredConversation) ExportMarkdown(clockLayout string) string {
	if clockLayout == "" {
		clockLayout = model.DefaultClockLayout
	}

	var sb strings.Builder
	sb.WriteString("# " + c.Title + "\n\n")
	sb.WriteString("Created: " + c.CreatedAt.Local().Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range c.Messages {
		sb.WriteString("**" + msg.Role().DisplayName() + "**")
		if clock := msg.Clock(clockLayout); clock != "" {
			sb.WriteString(" (" + clock + ")")
		}
		sb.WriteString(":\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// ExportJSON exports the conversation as pretty-printed JSON.
func (c *StoredConversation) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

const (
	colIndex   = 4
	colID      = 28
	colOrigin  = 8
	colCreated = 17
	colTitle   = 32
)

// FormatConversationList renders conversations as a table. activeID, when
// non-empty, is marked with an asterisk. Widths are measured in terminal
// cells so Hangul titles line up.
func FormatConversationList(convs []model.Conversation, activeID string) string {
	if len(convs) == 0 {
		return "대화가 없습니다.\n"
	}

	var sb strings.Builder
	header := util.PadWidth("#", colIndex) + " " +
		util.PadWidth("ID", colID) + " " +
		util.PadWidth("위치", colOrigin) + " " +
		util.PadWidth("생성", colCreated) + " " +
		"제목\n"
	sb.WriteString(header)
	sb.WriteString(strings.Repeat("-", colIndex+colID+colOrigin+colCreated+colTitle+4) + "\n")

	for i, c := range convs {
		marker := " "
		if c.ID == activeID {
			marker = "*"
		}
		created := ""
		if !c.CreatedAt.IsZero() {
			created = c.CreatedAt.Local().Format("2006-01-02 15:04")
		}

		sb.WriteString(util.PadWidth(marker+strconv.Itoa(i+1), colIndex) + " " +
			util.PadWidth(util.TruncateWidth(c.ID, colID), colID) + " " +
			util.PadWidth(c.Origin.Label(), colOrigin) + " " +
			util.PadWidth(created, colCreated) + " " +
			util.TruncateWidth(util.SingleLine(c.Title), colTitle) + "\n")
	}
	return sb.String()
}
