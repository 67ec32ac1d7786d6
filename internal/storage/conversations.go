// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/neulbom/neulbom-cli/internal/model"
	"github.com/neulbom/neulbom-cli/internal/webstorage"
)

// DefaultTitle is used when a conversation is created without a title.
const DefaultTitle = "새 대화"

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is one entry of the persisted array.
type StoredConversation struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
	Origin    model.Origin    `json:"origin,omitempty"`
	Fallback  bool            `json:"fallback,omitempty"`
	Messages  []model.Message `json:"messages"`
}

// Conversation returns the summary view of the entry.
func (c *StoredConversation) Conversation() model.Conversation {
	return model.Conversation{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		Origin:    model.OriginLocal,
		Fallback:  c.Fallback,
	}
}

// MessageCount returns the number of messages in the conversation.
func (c *StoredConversation) MessageCount() int {
	return len(c.Messages)
}

func (c *StoredConversation) clone() *StoredConversation {
	cp := *c
	cp.Messages = append([]model.Message(nil), c.Messages...)
	return &cp
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore handles guest conversation persistence.
type ConversationStore struct {
	// MaxConversations limits stored conversations (0 = unlimited).
	// The oldest entries are dropped when a create exceeds it.
	MaxConversations int

	// DefaultTitle replaces an empty title on Create.
	DefaultTitle string

	// Now is the clock used for creation stamps.
	Now func() time.Time

	mu      sync.Mutex
	storage webstorage.Storage
	key     string
	logger  *log.Logger
}

// NewConversationStore creates a store over the local chats key of storage.
func NewConversationStore(storage webstorage.Storage, logger *log.Logger) *ConversationStore {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ConversationStore{
		DefaultTitle: DefaultTitle,
		Now:          time.Now,
		storage:      storage,
		key:          webstorage.KeyLocalChats,
		logger:       logger,
	}
}

// =============================================================================
// CREATE / UPDATE OPERATIONS
// =============================================================================

// Create inserts a new conversation at the head of the list and persists it
// before returning.
func (s *ConversationStore) Create(title string) (model.Conversation, error) {
	return s.create(title, false)
}

// CreateFallback is Create for a member whose server-side create failed.
// The entry is marked so it stays listed alongside the member's rooms.
func (s *ConversationStore) CreateFallback(title string) (model.Conversation, error) {
	return s.create(title, true)
}

func (s *ConversationStore) create(title string, fallback bool) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		title = s.DefaultTitle
	}

	now := s.Now()
	conv := &StoredConversation{
		ID:        model.NewLocalID(now),
		Title:     title,
		CreatedAt: now.UTC(),
		Origin:    model.OriginLocal,
		Fallback:  fallback,
		Messages:  []model.Message{},
	}

	st := s.load()
	entries := append([]*StoredConversation{conv}, st.entries...)
	if s.MaxConversations > 0 && len(entries) > s.MaxConversations {
		dropped := len(entries) - s.MaxConversations
		entries = entries[:s.MaxConversations]
		s.logger.Printf("storage: dropped %d oldest guest conversations", dropped)
	}
	st.entries = entries

	if err := s.save(st); err != nil {
		return model.Conversation{}, err
	}
	return conv.Conversation(), nil
}

// Rename sets a new title on an existing conversation.
func (s *ConversationStore) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	return s.update(id, func(c *StoredConversation) {
		c.Title = title
	})
}

// AppendMessage appends messages, in order, to a conversation in a single
// write.
func (s *ConversationStore) AppendMessage(id string, msgs ...model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.update(id, func(c *StoredConversation) {
		for _, m := range msgs {
			m.ConversationID = id
			c.Messages = append(c.Messages, m)
		}
	})
}

func (s *ConversationStore) update(id string, fn func(*StoredConversation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	for _, c := range st.entries {
		if c.ID == id {
			fn(c)
			return s.save(st)
		}
	}
	return ErrConversationNotFound
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// List returns all conversations, most recent first. It never fails: an
// unreadable store lists as empty.
func (s *ConversationStore) List() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load().entries
	convs := make([]model.Conversation, 0, len(entries))
	for _, c := range entries {
		convs = append(convs, c.Conversation())
	}
	return convs
}

// Get returns a copy of one stored conversation.
func (s *ConversationStore) Get(id string) (*StoredConversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.load().entries {
		if c.ID == id {
			return c.clone(), nil
		}
	}
	return nil, ErrConversationNotFound
}

// Messages returns the messages of a conversation in append order.
func (s *ConversationStore) Messages(id string) ([]model.Message, error) {
	conv, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}

// Exists reports whether id names a stored conversation.
func (s *ConversationStore) Exists(id string) bool {
	_, err := s.Get(id)
	return err == nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation and its messages.
func (s *ConversationStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	for i, c := range st.entries {
		if c.ID == id {
			st.entries = append(st.entries[:i], st.entries[i+1:]...)
			return s.save(st)
		}
	}
	return ErrConversationNotFound
}

// Clear removes every guest conversation.
func (s *ConversationStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.RemoveItem(s.key); err != nil {
		return fmt.Errorf("failed to clear conversations: %w", err)
	}
	return nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// storedState is the decoded array plus the entries this client could not
// read. Those are written back untouched so another client's data survives
// our writes.
type storedState struct {
	entries    []*StoredConversation
	unreadable []json.RawMessage
}

// load decodes the stored array. Entries that fail to decode are set aside
// individually so one bad record does not hide the rest.
func (s *ConversationStore) load() storedState {
	var st storedState

	raw, ok, err := s.storage.GetItem(s.key)
	if err != nil {
		s.logger.Printf("storage: reading %s: %v", s.key, err)
		return st
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return st
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Printf("storage: %s is not a JSON array, treating as empty: %v", s.key, err)
		return st
	}

	st.entries = make([]*StoredConversation, 0, len(items))
	for i, item := range items {
		var c StoredConversation
		if err := json.Unmarshal(item, &c); err != nil || c.ID == "" {
			s.logger.Printf("storage: keeping unreadable entry %d as is", i)
			st.unreadable = append(st.unreadable, item)
			continue
		}
		c.Origin = model.OriginLocal
		if c.Messages == nil {
			c.Messages = []model.Message{}
		}
		st.entries = append(st.entries, &c)
	}
	return st
}

// save writes the readable entries followed by the unreadable ones.
func (s *ConversationStore) save(st storedState) error {
	items := make([]json.RawMessage, 0, len(st.entries)+len(st.unreadable))
	for _, c := range st.entries {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode conversations: %w", err)
		}
		items = append(items, data)
	}
	items = append(items, st.unreadable...)

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode conversations: %w", err)
	}
	if err := s.storage.SetItem(s.key, string(data)); err != nil {
		return fmt.Errorf("failed to persist conversations: %w", err)
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrEmptyTitle is returned when renaming to a blank title.
var ErrEmptyTitle = &ConversationError{Message: "title must not be empty"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
