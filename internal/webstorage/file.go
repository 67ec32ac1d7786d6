// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package webstorage

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"

	"github.com/neulbom/neulbom-cli/internal/util"
)

// FileStorage keeps all items in one JSON object file.
//
// The file is re-read on every call so that a login performed by another
// neulbom process is visible immediately. Writes are read-modify-write under
// a process-local mutex and land through util.AtomicWriteFile.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	logger *log.Logger
	closed bool
}

// NewFileStorage creates a file-backed storage at path. The file is created
// lazily on the first write.
func NewFileStorage(path string, logger *log.Logger) (*FileStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("file storage requires a path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &FileStorage{path: abs, logger: logger}, nil
}

// Path returns the absolute path of the backing file.
func (s *FileStorage) Path() string {
	return s.path
}

// GetItem implements Storage.
func (s *FileStorage) GetItem(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}

	items, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

// SetItem implements Storage.
func (s *FileStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	items, err := s.load()
	if err != nil {
		return err
	}
	items[key] = value
	return s.save(items)
}

// RemoveItem implements Storage.
func (s *FileStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	items, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return s.save(items)
}

// Keys implements Storage.
func (s *FileStorage) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedKeys(items), nil
}

// Close implements Storage.
func (s *FileStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// load reads the item map. A file that is not a JSON object is treated as
// empty, the way a browser treats unreadable storage.
func (s *FileStorage) load() (map[string]string, error) {
	data, err := util.ReadFileIfExists(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}

	items := make(map[string]string)
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.Printf("webstorage: ignoring unreadable %s: %v", s.path, err)
		return make(map[string]string), nil
	}
	return items, nil
}

// save writes the item map through to disk.
func (s *FileStorage) save(items map[string]string) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode storage: %w", err)
	}
	// SECURITY: the file holds the bearer token, owner read/write only
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	return nil
}
