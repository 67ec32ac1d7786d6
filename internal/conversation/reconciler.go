// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/model"
)

// =============================================================================
// THREAD
// =============================================================================

// ThreadState is a point-in-time copy of a Thread.
type ThreadState struct {
	Conversation model.Conversation
	Messages     []model.Message
	Crisis       bool
	CrisisInfo   *backend.CrisisInfo
}

// Thread is the conversation currently on screen. Safe for concurrent use.
type Thread struct {
	mu           sync.Mutex
	conversation model.Conversation
	messages     []model.Message
	crisis       bool
	crisisInfo   *backend.CrisisInfo
}

// NewThread returns an empty thread with no conversation selected.
func NewThread() *Thread {
	return &Thread{messages: []model.Message{}}
}

// Reset shows conv with msgs and lowers the crisis flag.
func (t *Thread) Reset(conv model.Conversation, msgs []model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conversation = conv
	t.messages = append([]model.Message{}, msgs...)
	t.crisis = false
	t.crisisInfo = nil
}

// Clear deselects the conversation.
func (t *Thread) Clear() {
	t.Reset(model.Conversation{}, nil)
}

// Conversation returns the conversation on screen; its ID is empty when
// none is selected.
func (t *Thread) Conversation() model.Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversation
}

// Messages returns a copy of the displayed messages.
func (t *Thread) Messages() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Message{}, t.messages...)
}

// Retitle updates the title of the displayed conversation if it is id.
func (t *Thread) Retitle(id, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conversation.ID == id {
		t.conversation.Title = title
	}
}

// DismissCrisis lowers the crisis flag.
func (t *Thread) DismissCrisis() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.crisis = false
	t.crisisInfo = nil
}

// Snapshot copies the thread.
func (t *Thread) Snapshot() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := ThreadState{
		Conversation: t.conversation,
		Messages:     append([]model.Message{}, t.messages...),
		Crisis:       t.crisis,
	}
	if t.crisisInfo != nil {
		info := *t.crisisInfo
		s.CrisisInfo = &info
	}
	return s
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler applies a completed send to a Thread and, for local
// conversations, to the guest store.
type Reconciler struct {
	// Now stamps the displayed pair.
	Now func() time.Time

	local  *LocalStore
	logger *log.Logger
}

// NewReconciler creates a reconciler persisting through local.
func NewReconciler(local *LocalStore, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Reconciler{Now: time.Now, local: local, logger: logger}
}

// Reconcile builds the user and assistant messages for one send and appends
// them to thread in a single update, user first. A thread with nothing
// selected adopts the outcome's conversation; a thread showing another
// conversation is left alone. A crisis response raises the thread's crisis
// flag without touching the reply. Pairs in local conversations are
// persisted before returning.
func (r *Reconciler) Reconcile(thread *Thread, text string, outcome *SendOutcome) ([2]model.Message, error) {
	var pair [2]model.Message
	if outcome == nil || outcome.Response == nil {
		return pair, errors.New("reconcile: no response")
	}

	conv := outcome.Conversation
	now := r.Now()
	pair[0] = model.NewUserMessage(conv.ID, text, now)
	pair[1] = model.NewAssistantMessage(conv.ID, outcome.Response.Reply, now)

	thread.mu.Lock()
	if thread.conversation.ID == "" || thread.conversation.ID == conv.ID {
		if thread.conversation.ID == "" && conv.ID != "" {
			thread.conversation = conv
		}
		thread.messages = append(thread.messages, pair[0], pair[1])
	}
	if outcome.Response.IsCrisis {
		thread.crisis = true
		if info := outcome.Response.CrisisInfo; info != nil {
			cp := *info
			thread.crisisInfo = &cp
		}
	}
	thread.mu.Unlock()

	if conv.IsLocal() && conv.ID != "" {
		if err := r.local.Underlying().AppendMessage(conv.ID, pair[0], pair[1]); err != nil {
			return pair, fmt.Errorf("failed to save messages: %w", err)
		}
	}
	return pair, nil
}
