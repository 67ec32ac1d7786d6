// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ModeChange reports a login or logout observed on disk.
type ModeChange struct {
	From Mode
	To   Mode
}

// Watcher watches the storage file and emits a ModeChange whenever the
// classification flips, for example after `neulbom login` in another
// terminal.
type Watcher struct {
	classifier *Classifier
	path       string
	debounce   time.Duration
	logger     *log.Logger

	watcher *fsnotify.Watcher
	changes chan ModeChange

	mu      sync.Mutex
	pending time.Time
	last    Mode
}

// NewWatcher prepares a watcher for the storage file at path. The parent
// directory is watched because atomic writes replace the file.
func NewWatcher(c *Classifier, path string, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("storage has no file to watch")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		classifier: c,
		path:       abs,
		debounce:   debounce,
		logger:     logger,
		watcher:    fw,
		changes:    make(chan ModeChange, 4),
		last:       c.Mode(),
	}, nil
}

// Changes returns the channel of mode flips. It is closed when Run returns.
func (w *Watcher) Changes() <-chan ModeChange {
	return w.changes
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.changes)
	defer w.watcher.Close()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// sqlite writes land in the -wal and -journal siblings
			if !strings.HasPrefix(event.Name, w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("session: watcher error: %v", err)

		case now := <-ticker.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && now.Sub(w.pending) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()
			if due {
				w.reclassify(ctx)
			}
		}
	}
}

func (w *Watcher) reclassify(ctx context.Context) {
	mode := w.classifier.Mode()
	if mode == w.last {
		return
	}
	change := ModeChange{From: w.last, To: mode}
	w.last = mode

	select {
	case w.changes <- change:
	case <-ctx.Done():
	}
}
