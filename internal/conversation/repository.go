// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/model"
	"github.com/neulbom/neulbom-cli/internal/session"
	"github.com/neulbom/neulbom-cli/internal/util"
)

// DefaultTitleRunes is how much of a first message becomes the title of the
// conversation it opens.
const DefaultTitleRunes = 30

// SendOutcome is the result of one Repository.Send.
type SendOutcome struct {
	// Conversation the exchange belongs to. Its ID is empty when a member
	// sent without a room and the server did not assign one.
	Conversation model.Conversation

	// Created is true when this send opened Conversation.
	Created bool

	// Mode is the session mode the send was routed under.
	Mode session.Mode

	Response *backend.ChatResponse
}

// Repository dispatches conversation operations to the local or remote
// store. The session is reclassified on every call.
type Repository struct {
	// TitleRunes caps titles derived from a first message.
	TitleRunes int

	// Now is the clock used for conversations opened by a send.
	Now func() time.Time

	classifier *session.Classifier
	local      *LocalStore
	remote     *RemoteStore
	logger     *log.Logger
}

// NewRepository creates a repository over both stores.
func NewRepository(classifier *session.Classifier, local *LocalStore, remote *RemoteStore, logger *log.Logger) *Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Repository{
		TitleRunes: DefaultTitleRunes,
		Now:        time.Now,
		classifier: classifier,
		local:      local,
		remote:     remote,
		logger:     logger,
	}
}

// Mode classifies the session now.
func (r *Repository) Mode() session.Mode {
	return r.classifier.Mode()
}

// Local returns the guest store.
func (r *Repository) Local() *LocalStore {
	return r.local
}

// storeFor picks the store for an existing conversation. Local-origin
// conversations never leave the local store. Server rooms need a member
// session.
func (r *Repository) storeFor(origin model.Origin) (Store, error) {
	if origin == model.OriginLocal {
		return r.local, nil
	}
	if r.classifier.IsMember() {
		return r.remote, nil
	}
	return nil, ErrLoginRequired
}

// List returns the conversations visible in the current mode. Members see
// their rooms followed by local fallback conversations; guests see the
// local store.
func (r *Repository) List(ctx context.Context) ([]model.Conversation, error) {
	if !r.classifier.IsMember() {
		return r.local.List(ctx)
	}

	convs, err := r.remote.List(ctx)
	if err != nil {
		return nil, err
	}
	locals, err := r.local.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range locals {
		if c.Fallback {
			convs = append(convs, c)
		}
	}
	return convs, nil
}

// Create opens a conversation. For members a failed remote create falls
// back to a local conversation marked as such, so the caller can still
// tell where it lives.
func (r *Repository) Create(ctx context.Context, title string) (model.Conversation, error) {
	if !r.classifier.IsMember() {
		return r.local.Create(ctx, title)
	}

	conv, err := r.remote.Create(ctx, title)
	if err == nil {
		return conv, nil
	}
	r.logger.Printf("conversation: %v; keeping it on this device", err)
	return r.local.Underlying().CreateFallback(title)
}

// Rename sets the title of conv. Renaming a server room after logging out
// returns ErrLoginRequired.
func (r *Repository) Rename(ctx context.Context, conv model.Conversation, title string) error {
	st, err := r.storeFor(conv.Origin)
	if err != nil {
		return err
	}
	return st.Rename(ctx, conv.ID, title)
}

// Delete removes conv. Deleting a server room after logging out returns
// ErrLoginRequired.
func (r *Repository) Delete(ctx context.Context, conv model.Conversation) error {
	st, err := r.storeFor(conv.Origin)
	if err != nil {
		return err
	}
	return st.Delete(ctx, conv.ID)
}

// Messages returns the stored history of conv. A server room read without
// a member session is empty.
func (r *Repository) Messages(ctx context.Context, conv model.Conversation) ([]model.Message, error) {
	st, err := r.storeFor(conv.Origin)
	if err != nil {
		return []model.Message{}, nil
	}
	return st.Messages(ctx, conv.ID)
}

// Resolve finds a conversation by ID among those visible now.
func (r *Repository) Resolve(ctx context.Context, id string) (model.Conversation, bool, error) {
	convs, err := r.List(ctx)
	if err != nil {
		return model.Conversation{}, false, err
	}
	for _, c := range convs {
		if c.ID == id {
			return c, true, nil
		}
	}
	return model.Conversation{}, false, nil
}

// Send posts text with history as context. target is nil for a first
// message:
//   - a guest gets a new local conversation titled after the text
//   - a member gets whatever room the server assigns
//
// Local conversations are sent without the credential even for members.
// Sending into a server room after logging out returns ErrLoginRequired.
func (r *Repository) Send(ctx context.Context, target *model.Conversation, text string, history []model.Message) (*SendOutcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	mode := r.classifier.Mode()
	turns := Transcript(history)
	out := &SendOutcome{Mode: mode}

	switch {
	case target == nil && mode == session.ModeGuest:
		resp, err := r.remote.Send(ctx, nil, text, turns)
		if err != nil {
			return nil, err
		}
		conv, err := r.local.Create(ctx, r.titleFrom(text))
		if err != nil {
			return nil, err
		}
		out.Conversation, out.Created, out.Response = conv, true, resp

	case target == nil:
		resp, err := r.remote.Send(ctx, nil, text, turns)
		if err != nil {
			return nil, err
		}
		if resp.RoomID != nil {
			out.Conversation = model.Conversation{
				ID:        model.RemoteIDString(*resp.RoomID),
				Title:     r.titleFrom(text),
				CreatedAt: r.Now().UTC(),
				Origin:    model.OriginRemote,
			}
			out.Created = true
		}
		out.Response = resp

	case target.IsLocal():
		var resp *backend.ChatResponse
		var err error
		if mode == session.ModeMember {
			resp, err = r.remote.SendAnonymous(ctx, text, turns)
		} else {
			resp, err = r.remote.Send(ctx, nil, text, turns)
		}
		if err != nil {
			return nil, err
		}
		out.Conversation, out.Response = *target, resp

	default:
		if mode != session.ModeMember {
			return nil, ErrLoginRequired
		}
		roomID, err := target.RemoteID()
		if err != nil {
			return nil, err
		}
		resp, err := r.remote.Send(ctx, &roomID, text, turns)
		if err != nil {
			if backend.IsAuthError(err) {
				return nil, ErrLoginRequired
			}
			return nil, err
		}
		out.Conversation, out.Response = *target, resp
	}

	r.logger.Printf("conversation: sent in %s mode to %q (crisis=%t)",
		mode, out.Conversation.ID, out.Response.IsCrisis)
	return out, nil
}

func (r *Repository) titleFrom(text string) string {
	n := r.TitleRunes
	if n <= 0 {
		n = DefaultTitleRunes
	}
	return util.FirstRunes(util.SingleLine(text), n)
}

// Transcript converts displayed messages into the role-tagged history the
// backend expects.
func Transcript(history []model.Message) []backend.Turn {
	turns := make([]backend.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, backend.Turn{Role: m.Role().String(), Content: m.Content})
	}
	return turns
}
