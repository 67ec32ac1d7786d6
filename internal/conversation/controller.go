// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/neulbom/neulbom-cli/internal/model"
	"github.com/neulbom/neulbom-cli/internal/storage"
)

// newKey is the in-flight slot for sends that open a conversation.
const newKey = "\x00new"

// Controller drives the chat screen: the conversation list, the thread on
// screen and sending. Safe for concurrent use.
type Controller struct {
	repo       *Repository
	reconciler *Reconciler
	thread     *Thread
	limiter    *rate.Limiter
	logger     *log.Logger

	mu            sync.Mutex
	conversations []model.Conversation
	inflight      map[string]string
	// transcripts keeps this session's messages for server rooms, which
	// have no history endpoint.
	transcripts map[string][]model.Message
	title       string
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLimiter throttles sends. A nil limiter disables throttling.
func WithLimiter(l *rate.Limiter) ControllerOption {
	return func(c *Controller) { c.limiter = l }
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *log.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReconciler replaces the default reconciler.
func WithReconciler(r *Reconciler) ControllerOption {
	return func(c *Controller) { c.reconciler = r }
}

// WithDefaultTitle sets the title of conversations opened from the UI.
func WithDefaultTitle(title string) ControllerOption {
	return func(c *Controller) { c.title = title }
}

// NewController creates a controller over repo.
func NewController(repo *Repository, opts ...ControllerOption) *Controller {
	c := &Controller{
		repo:        repo,
		thread:      NewThread(),
		logger:      log.New(io.Discard, "", 0),
		inflight:    make(map[string]string),
		transcripts: make(map[string][]model.Message),
		title:       storage.DefaultTitle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reconciler == nil {
		c.reconciler = NewReconciler(repo.Local(), c.logger)
	}
	return c
}

// NewLimiter builds a send limiter from a per-minute budget. Zero disables
// throttling.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)
}

// Thread returns the thread on screen.
func (c *Controller) Thread() *Thread { return c.thread }

// Repository returns the underlying repository.
func (c *Controller) Repository() *Repository { return c.repo }

// Conversations returns the last loaded list.
func (c *Controller) Conversations() []model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Conversation{}, c.conversations...)
}

// Active returns the conversation on screen, if any.
func (c *Controller) Active() (model.Conversation, bool) {
	conv := c.thread.Conversation()
	return conv, conv.ID != ""
}

// =============================================================================
// LIST / SELECT
// =============================================================================

// Load refreshes the list. With nothing stored it opens a first
// conversation; otherwise it selects the newest unless a conversation still
// listed is already on screen.
func (c *Controller) Load(ctx context.Context) error {
	convs, err := c.Refresh(ctx)
	if err != nil {
		return err
	}

	if len(convs) == 0 {
		if _, err := c.NewConversation(ctx); err != nil {
			c.logger.Printf("conversation: opening first conversation: %v", err)
		}
		return nil
	}

	if active, ok := c.Active(); ok && containsID(convs, active.ID) {
		return nil
	}
	return c.Select(ctx, convs[0].ID)
}

// Refresh reloads the conversation list.
func (c *Controller) Refresh(ctx context.Context) ([]model.Conversation, error) {
	convs, err := c.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.conversations = convs
	c.mu.Unlock()
	return append([]model.Conversation{}, convs...), nil
}

// Select shows the conversation with id and loads its messages.
func (c *Controller) Select(ctx context.Context, id string) error {
	conv, ok := c.lookup(id)
	if !ok {
		return storage.ErrConversationNotFound
	}

	msgs, err := c.repo.Messages(ctx, conv)
	if err != nil {
		return err
	}
	if len(msgs) == 0 && !conv.IsLocal() {
		c.mu.Lock()
		msgs = append([]model.Message{}, c.transcripts[conv.ID]...)
		c.mu.Unlock()
	}
	c.thread.Reset(conv, msgs)
	return nil
}

// SelectIndex selects by 1-based position in Conversations.
func (c *Controller) SelectIndex(ctx context.Context, n int) error {
	c.mu.Lock()
	if n < 1 || n > len(c.conversations) {
		c.mu.Unlock()
		return fmt.Errorf("no conversation #%d: %w", n, storage.ErrConversationNotFound)
	}
	id := c.conversations[n-1].ID
	c.mu.Unlock()
	return c.Select(ctx, id)
}

// =============================================================================
// CREATE / RENAME / DELETE
// =============================================================================

// NewConversation opens an empty conversation and shows it.
func (c *Controller) NewConversation(ctx context.Context) (model.Conversation, error) {
	conv, err := c.repo.Create(ctx, c.title)
	if err != nil {
		return model.Conversation{}, err
	}
	c.mu.Lock()
	c.conversations = append([]model.Conversation{conv}, c.conversations...)
	c.mu.Unlock()
	c.thread.Reset(conv, nil)
	return conv, nil
}

// Rename retitles the conversation with id, or the one on screen when id
// is empty.
func (c *Controller) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return storage.ErrEmptyTitle
	}
	conv, err := c.target(id)
	if err != nil {
		return err
	}
	if err := c.repo.Rename(ctx, conv, title); err != nil {
		return err
	}

	c.mu.Lock()
	for i := range c.conversations {
		if c.conversations[i].ID == conv.ID {
			c.conversations[i].Title = title
		}
	}
	c.mu.Unlock()
	c.thread.Retitle(conv.ID, title)
	return nil
}

// Delete removes the conversation with id, or the one on screen when id is
// empty. Deleting the conversation on screen moves to the first one left.
func (c *Controller) Delete(ctx context.Context, id string) error {
	conv, err := c.target(id)
	if err != nil {
		return err
	}
	if err := c.repo.Delete(ctx, conv); err != nil {
		return err
	}

	c.mu.Lock()
	remaining := c.conversations[:0:0]
	for _, existing := range c.conversations {
		if existing.ID != conv.ID {
			remaining = append(remaining, existing)
		}
	}
	c.conversations = remaining
	delete(c.transcripts, conv.ID)
	c.mu.Unlock()

	if active, ok := c.Active(); ok && active.ID == conv.ID {
		if len(remaining) == 0 {
			c.thread.Clear()
			return nil
		}
		return c.Select(ctx, remaining[0].ID)
	}
	return nil
}

// =============================================================================
// SEND
// =============================================================================

// Send posts text into the conversation on screen, or opens one when none
// is selected, and returns the displayed pair. A second send into the same
// conversation while the first is in flight fails with ErrSendInFlight.
// On error the caller keeps text so it can be offered again.
func (c *Controller) Send(ctx context.Context, text string) ([2]model.Message, error) {
	var pair [2]model.Message
	text = strings.TrimSpace(text)
	if text == "" {
		return pair, ErrEmptyMessage
	}

	state := c.thread.Snapshot()
	var target *model.Conversation
	key := newKey
	if state.Conversation.ID != "" {
		conv := state.Conversation
		target = &conv
		key = conv.ID
	}

	token, ok := c.acquire(key)
	if !ok {
		return pair, ErrSendInFlight
	}
	defer c.release(key, token)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return pair, fmt.Errorf("send throttled: %w", err)
		}
	}

	outcome, err := c.repo.Send(ctx, target, text, state.Messages)
	if err != nil {
		return pair, err
	}

	pair, err = c.reconciler.Reconcile(c.thread, text, outcome)
	if err != nil {
		return pair, err
	}

	conv := outcome.Conversation
	c.mu.Lock()
	if outcome.Created && conv.ID != "" && !containsID(c.conversations, conv.ID) {
		c.conversations = append([]model.Conversation{conv}, c.conversations...)
	}
	if !conv.IsLocal() && conv.ID != "" {
		c.transcripts[conv.ID] = append(c.transcripts[conv.ID], pair[0], pair[1])
	}
	c.mu.Unlock()
	return pair, nil
}

func (c *Controller) acquire(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return "", false
	}
	token := uuid.NewString()
	c.inflight[key] = token
	return token, true
}

func (c *Controller) release(key, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[key] == token {
		delete(c.inflight, key)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Controller) lookup(id string) (model.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conv := range c.conversations {
		if conv.ID == id {
			return conv, true
		}
	}
	if active := c.thread.Conversation(); active.ID == id && id != "" {
		return active, true
	}
	return model.Conversation{}, false
}

func (c *Controller) target(id string) (model.Conversation, error) {
	if id == "" {
		if conv, ok := c.Active(); ok {
			return conv, nil
		}
		return model.Conversation{}, storage.ErrConversationNotFound
	}
	conv, ok := c.lookup(id)
	if !ok {
		return model.Conversation{}, storage.ErrConversationNotFound
	}
	return conv, nil
}

func containsID(convs []model.Conversation, id string) bool {
	for _, c := range convs {
		if c.ID == id {
			return true
		}
	}
	return false
}
