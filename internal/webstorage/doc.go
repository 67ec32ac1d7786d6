// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package webstorage emulates the browser localStorage API for a terminal
// client: a flat string-to-string map that survives restarts.
//
// Three backends are available:
//
//   - FileStorage: one JSON object file, written through atomically
//   - SQLiteStorage: a key/value table in an embedded SQLite database
//   - MemoryStorage: process-local map, for tests and --ephemeral runs
//
// Every mutation is persisted before the call returns. Nothing is batched.
//
// # Usage
//
//	store, err := webstorage.Open(webstorage.DriverFile, "~/.neulbom/storage.json", nil)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	_ = store.SetItem(webstorage.KeyAuthToken, token)
//	token, ok, err := store.GetItem(webstorage.KeyAuthToken)
package webstorage
