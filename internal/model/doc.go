// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: a chat room, either server-backed or stored locally
//   - Origin: which store owns a conversation (local or remote)
//   - Message: one line of a conversation, authored by the user or the assistant
//
// # Identifiers
//
// Server conversations carry integer IDs rendered in decimal ("42"). Guest
// conversations carry synthetic IDs of the form
//
//	local_<unix-millis>_<9 base36 chars>
//
// whose numeric view is the millisecond stamp:
//
//	id := model.NewLocalID(time.Now())
//	n, ok := model.LocalIDNumber(id)
package model
