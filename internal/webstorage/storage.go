// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package webstorage

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
)

// Fixed keys shared with the web client.
const (
	// KeyAuthToken holds the bearer credential of a member session.
	KeyAuthToken = "authToken"
	// KeyLocalChats holds the JSON array of guest conversations.
	KeyLocalChats = "neulbom_local_chats"
)

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// ErrClosed is returned by operations on a closed storage.
var ErrClosed = errors.New("storage is closed")

// Storage is the localStorage contract.
type Storage interface {
	// GetItem returns the value for key and whether it was present.
	GetItem(key string) (string, bool, error)
	// SetItem stores value under key, replacing any previous value.
	SetItem(key, value string) error
	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(key string) error
	// Keys lists the stored keys in sorted order.
	Keys() ([]string, error)
	// Close releases resources held by the backend.
	Close() error
}

// Locator is implemented by backends that live in a file, so callers can
// watch it for changes made by other processes.
type Locator interface {
	Path() string
}

// Open returns the backend named by driver. path is ignored by the memory
// driver. A nil logger discards diagnostics.
func Open(driver, path string, logger *log.Logger) (Storage, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverFile, "":
		return NewFileStorage(path, logger)
	case DriverSQLite:
		return NewSQLiteStorage(path)
	case DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q (expected file, sqlite or memory)", driver)
	}
}

// sortedKeys returns the keys of m in sorted order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
