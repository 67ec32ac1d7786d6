// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the neulbom client.
//
// # Key Functions
//
// Text:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadWidth: display-width aware helpers (Hangul is two
//     columns wide)
//   - FirstRunes: prefix of a string by rune count, used for titles
//
// Files:
//   - AtomicWriteFile: crash-safe write-through used by file storage
//
// # Usage
//
//	title := util.FirstRunes(message, 30)
//	cell := util.PadWidth(util.TruncateWidth(title, 24), 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
