// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists guest conversations on this device.
//
// All conversations live in a single JSON array under the
// webstorage.KeyLocalChats key, newest first, each entry carrying its full
// message list. Every mutation is written through before it returns.
//
// # Key Types
//
//   - ConversationStore: create, list, rename, delete and append
//   - StoredConversation: one persisted entry with its messages
//
// # Usage
//
//	store := storage.NewConversationStore(ws, logger)
//	conv, err := store.Create("새 대화")
//	err = store.AppendMessage(conv.ID, userMsg, assistantMsg)
//	msgs, err := store.Messages(conv.ID)
//
// A missing or unreadable array is treated as "no conversations".
package storage
