// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/model"
	"github.com/neulbom/neulbom-cli/internal/storage"
)

var (
	// ErrLoginRequired is returned when a member-only write is rejected
	// because the credential is missing or no longer valid.
	ErrLoginRequired = errors.New("로그인이 필요합니다")

	// ErrEmptyMessage is returned for a send with no text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrSendInFlight is returned when a conversation already has a send
	// waiting for its reply.
	ErrSendInFlight = errors.New("a message is already being sent in this conversation")
)

// Store is a backing store for conversations.
type Store interface {
	Origin() model.Origin
	List(ctx context.Context) ([]model.Conversation, error)
	Create(ctx context.Context, title string) (model.Conversation, error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
	Messages(ctx context.Context, id string) ([]model.Message, error)
}

// =============================================================================
// LOCAL STORE
// =============================================================================

// LocalStore adapts the guest ConversationStore. Calls complete
// synchronously and ignore ctx.
type LocalStore struct {
	store *storage.ConversationStore
}

// NewLocalStore wraps store.
func NewLocalStore(store *storage.ConversationStore) *LocalStore {
	return &LocalStore{store: store}
}

// Origin implements Store.
func (l *LocalStore) Origin() model.Origin { return model.OriginLocal }

// List implements Store. It never fails.
func (l *LocalStore) List(ctx context.Context) ([]model.Conversation, error) {
	return l.store.List(), nil
}

// Create implements Store.
func (l *LocalStore) Create(ctx context.Context, title string) (model.Conversation, error) {
	return l.store.Create(title)
}

// Rename implements Store.
func (l *LocalStore) Rename(ctx context.Context, id, title string) error {
	return l.store.Rename(id, title)
}

// Delete implements Store.
func (l *LocalStore) Delete(ctx context.Context, id string) error {
	return l.store.Delete(id)
}

// Messages implements Store.
func (l *LocalStore) Messages(ctx context.Context, id string) ([]model.Message, error) {
	return l.store.Messages(id)
}

// Underlying returns the wrapped ConversationStore.
func (l *LocalStore) Underlying() *storage.ConversationStore {
	return l.store
}

// =============================================================================
// REMOTE STORE
// =============================================================================

// RemoteStore adapts the backend room endpoints.
type RemoteStore struct {
	client *backend.Client
	logger *log.Logger
}

// NewRemoteStore wraps client. A nil logger discards diagnostics.
func NewRemoteStore(client *backend.Client, logger *log.Logger) *RemoteStore {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &RemoteStore{client: client, logger: logger}
}

// Origin implements Store.
func (r *RemoteStore) Origin() model.Origin { return model.OriginRemote }

// List implements Store. Failures list as empty: authorization failures
// silently, anything else with a log line.
func (r *RemoteStore) List(ctx context.Context) ([]model.Conversation, error) {
	rooms, err := r.client.ListRooms(ctx)
	if err != nil {
		if !backend.IsAuthError(err) {
			r.logger.Printf("conversation: listing rooms: %v", err)
		}
		return []model.Conversation{}, nil
	}

	convs := make([]model.Conversation, 0, len(rooms.Items))
	for _, room := range rooms.Items {
		convs = append(convs, fromRoom(room))
	}
	return convs, nil
}

// Create implements Store. Errors are returned as-is so the caller can
// decide on a fallback.
func (r *RemoteStore) Create(ctx context.Context, title string) (model.Conversation, error) {
	room, err := r.client.CreateRoom(ctx, title)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to create room: %w", err)
	}
	return fromRoom(*room), nil
}

// Rename implements Store.
func (r *RemoteStore) Rename(ctx context.Context, id, title string) error {
	roomID, err := model.ParseRemoteID(id)
	if err != nil {
		return err
	}
	if err := r.client.RenameRoom(ctx, roomID, title); err != nil {
		return r.writeError("rename room", err)
	}
	return nil
}

// Delete implements Store.
func (r *RemoteStore) Delete(ctx context.Context, id string) error {
	roomID, err := model.ParseRemoteID(id)
	if err != nil {
		return err
	}
	if err := r.client.DeleteRoom(ctx, roomID); err != nil {
		return r.writeError("delete room", err)
	}
	return nil
}

// Messages implements Store. The backend keeps no history endpoint, so a
// room always reads as empty.
func (r *RemoteStore) Messages(ctx context.Context, id string) ([]model.Message, error) {
	return []model.Message{}, nil
}

// Send posts one chat message. roomID is nil for a first message.
func (r *RemoteStore) Send(ctx context.Context, roomID *int64, text string, history []backend.Turn) (*backend.ChatResponse, error) {
	resp, err := r.client.SendMessage(ctx, roomID, text, history)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return resp, nil
}

// SendAnonymous posts a chat message without the stored credential, so the
// server keeps no room for it.
func (r *RemoteStore) SendAnonymous(ctx context.Context, text string, history []backend.Turn) (*backend.ChatResponse, error) {
	resp, err := r.client.Anonymous().SendMessage(ctx, nil, text, history)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return resp, nil
}

func (r *RemoteStore) writeError(op string, err error) error {
	if backend.IsAuthError(err) {
		return ErrLoginRequired
	}
	if errors.Is(err, backend.ErrNotFound) {
		return fmt.Errorf("failed to %s: %w", op, storage.ErrConversationNotFound)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func fromRoom(room backend.Room) model.Conversation {
	return model.Conversation{
		ID:        model.RemoteIDString(room.ID),
		Title:     room.Title,
		CreatedAt: room.Created(),
		Origin:    model.OriginRemote,
	}
}
