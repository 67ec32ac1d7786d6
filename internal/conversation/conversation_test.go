// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/mockserver"
	"github.com/neulbom/neulbom-cli/internal/model"
	"github.com/neulbom/neulbom-cli/internal/session"
	"github.com/neulbom/neulbom-cli/internal/storage"
	"github.com/neulbom/neulbom-cli/internal/webstorage"
)

const (
	testEmail    = "demo@neulbom.kr"
	testPassword = "demo1234"
)

type harness struct {
	srv        *mockserver.Server
	ws         webstorage.Storage
	classifier *session.Classifier
	repo       *Repository
	ctl        *Controller
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	ws   webstorage.Storage
	wrap func(http.Handler) http.Handler
}

func withStorage(ws webstorage.Storage) harnessOption {
	return func(c *harnessConfig) { c.ws = ws }
}

func withMiddleware(wrap func(http.Handler) http.Handler) harnessOption {
	return func(c *harnessConfig) { c.wrap = wrap }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{ws: webstorage.NewMemoryStorage()}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv := mockserver.New("test-secret").WithUser(testEmail, testPassword)
	handler := srv.Handler()
	if cfg.wrap != nil {
		handler = cfg.wrap(handler)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	classifier := session.NewClassifier(cfg.ws, nil)
	client := backend.NewClient(ts.URL, classifier).WithMaxRetries(1)
	local := NewLocalStore(storage.NewConversationStore(cfg.ws, nil))
	repo := NewRepository(classifier, local, NewRemoteStore(client, nil), nil)

	return &harness{
		srv:        srv,
		ws:         cfg.ws,
		classifier: classifier,
		repo:       repo,
		ctl:        NewController(repo),
	}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	tok, err := h.srv.IssueToken(testEmail)
	require.NoError(t, err)
	require.NoError(t, h.classifier.SetToken(tok))
}

func (h *harness) logout(t *testing.T) {
	t.Helper()
	require.NoError(t, h.classifier.ClearToken())
}

// =============================================================================
// REPOSITORY ROUTING
// =============================================================================

func TestRepository_GuestCreateThenList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.repo.Create(ctx, "첫 상담")
	require.NoError(t, err)

	list, err := h.repo.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, "첫 상담", list[0].Title)
	assert.Equal(t, model.OriginLocal, list[0].Origin)

	n, ok := model.LocalIDNumber(list[0].ID)
	require.True(t, ok, "synthetic id %q should carry a number", list[0].ID)
	assert.Positive(t, n)
	assert.Zero(t, h.srv.RoomCount())
}

func TestRepository_MemberCreateFailureFallsBackToLocal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)
	h.srv.SetFailCreate(true)

	conv, err := h.repo.Create(ctx, "서버 오류 중")
	require.NoError(t, err)
	assert.Equal(t, model.OriginLocal, conv.Origin)
	assert.True(t, conv.Fallback)

	list, err := h.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].ID)

	require.NoError(t, h.ctl.Load(ctx))
	active, ok := h.ctl.Active()
	require.True(t, ok)
	assert.Equal(t, conv.ID, active.ID)

	for _, text := range []string{"안녕하세요", "잘 지내요"} {
		_, err := h.ctl.Send(ctx, text)
		require.NoError(t, err)
	}

	msgs, err := h.repo.Messages(ctx, conv)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
	assert.Zero(t, h.srv.RoomCount(), "local conversations must not open server rooms")
}

func TestRepository_MemberListMergesRemoteThenFallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.repo.Create(ctx, "게스트 대화")
	require.NoError(t, err)

	h.login(t)
	remote, err := h.repo.Create(ctx, "서버 대화")
	require.NoError(t, err)
	assert.Equal(t, model.OriginRemote, remote.Origin)

	h.srv.SetFailCreate(true)
	fallback, err := h.repo.Create(ctx, "임시 대화")
	require.NoError(t, err)

	list, err := h.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2, "plain guest conversations stay out of the member list")
	assert.Equal(t, remote.ID, list[0].ID)
	assert.Equal(t, fallback.ID, list[1].ID)
}

func TestRepository_ReclassifiesEveryCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	guestConv, err := h.repo.Create(ctx, "guest")
	require.NoError(t, err)
	assert.Equal(t, model.OriginLocal, guestConv.Origin)

	h.login(t)
	memberConv, err := h.repo.Create(ctx, "member")
	require.NoError(t, err)
	assert.Equal(t, model.OriginRemote, memberConv.Origin)
	assert.Equal(t, 1, h.srv.RoomCount())

	h.logout(t)
	list, err := h.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, guestConv.ID, list[0].ID)

	h.login(t)
	list, err = h.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, memberConv.ID, list[0].ID)
}

func TestRepository_ReclassifiesAcrossStorageInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	ws, err := webstorage.NewFileStorage(path, nil)
	require.NoError(t, err)
	h := newHarness(t, withStorage(ws))
	ctx := context.Background()

	// Another process logs in by writing the same file.
	other, err := webstorage.NewFileStorage(path, nil)
	require.NoError(t, err)
	tok, err := h.srv.IssueToken(testEmail)
	require.NoError(t, err)
	require.NoError(t, other.SetItem(webstorage.KeyAuthToken, tok))

	conv, err := h.repo.Create(ctx, "다른 창에서 로그인")
	require.NoError(t, err)
	assert.Equal(t, model.OriginRemote, conv.Origin)
}

func TestRepository_LocalConversationStaysLocalForMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	conv, err := h.repo.Create(ctx, "before login")
	require.NoError(t, err)
	h.login(t)

	require.NoError(t, h.repo.Rename(ctx, conv, "renamed"))
	stored, err := h.repo.Local().Underlying().Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Title)

	require.NoError(t, h.repo.Delete(ctx, conv))
	assert.False(t, h.repo.Local().Underlying().Exists(conv.ID))
}

func TestRepository_MessagesStable(t *testing.T) {
	ctx := context.Background()

	t.Run("guest", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.ctl.Send(ctx, "안녕")
		require.NoError(t, err)
		conv, ok := h.ctl.Active()
		require.True(t, ok)

		first, err := h.repo.Messages(ctx, conv)
		require.NoError(t, err)
		second, err := h.repo.Messages(ctx, conv)
		require.NoError(t, err)
		assert.Len(t, first, 2)
		assert.Equal(t, first, second)
	})

	t.Run("member", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)
		conv, err := h.repo.Create(ctx, "room")
		require.NoError(t, err)

		first, err := h.repo.Messages(ctx, conv)
		require.NoError(t, err)
		second, err := h.repo.Messages(ctx, conv)
		require.NoError(t, err)
		assert.Empty(t, first)
		assert.Equal(t, first, second)
	})
}

func TestRepository_RemoteWritesNeedLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)
	conv, err := h.repo.Create(ctx, "room")
	require.NoError(t, err)

	require.NoError(t, h.classifier.SetToken("not-a-jwt"))

	err = h.repo.Rename(ctx, conv, "x")
	assert.ErrorIs(t, err, ErrLoginRequired)
	err = h.repo.Delete(ctx, conv)
	assert.ErrorIs(t, err, ErrLoginRequired)

	list, err := h.repo.List(ctx)
	require.NoError(t, err, "authorization failures list as empty")
	assert.Empty(t, list)
}

func TestRepository_RemoteRenameAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)
	conv, err := h.repo.Create(ctx, "room")
	require.NoError(t, err)

	require.NoError(t, h.repo.Rename(ctx, conv, "새 제목"))
	found, ok, err := h.repo.Resolve(ctx, conv.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "새 제목", found.Title)

	require.NoError(t, h.repo.Delete(ctx, conv))
	err = h.repo.Delete(ctx, conv)
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)
}

// =============================================================================
// SEND
// =============================================================================

func TestRepository_GuestFirstSendCreatesTitledConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	text := "요즘 잠이 잘 안 와서 걱정이에요. 어떻게 하면 좋을지 모르겠어요"

	out, err := h.repo.Send(ctx, nil, text, nil)
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.Equal(t, session.ModeGuest, out.Mode)
	assert.Equal(t, model.OriginLocal, out.Conversation.Origin)
	assert.Equal(t, []rune(text)[:30], []rune(out.Conversation.Title))
	assert.Nil(t, out.Response.RoomID)
	assert.Zero(t, h.srv.RoomCount())
}

func TestRepository_MemberFirstSendResolvesRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	out, err := h.repo.Send(ctx, nil, "첫 메시지", nil)
	require.NoError(t, err)
	require.NotNil(t, out.Response.RoomID)
	assert.True(t, out.Created)
	assert.Equal(t, model.OriginRemote, out.Conversation.Origin)
	assert.Equal(t, model.RemoteIDString(*out.Response.RoomID), out.Conversation.ID)

	again, err := h.repo.Send(ctx, &out.Conversation, "두 번째", nil)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, *out.Response.RoomID, *again.Response.RoomID)
	assert.Equal(t, 1, h.srv.RoomCount())
}

func TestRepository_SendToRoomAfterLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)
	conv, err := h.repo.Create(ctx, "room")
	require.NoError(t, err)
	h.logout(t)

	_, err = h.repo.Send(ctx, &conv, "hello", nil)
	assert.ErrorIs(t, err, ErrLoginRequired)
}

func TestRepository_RoomWritesAfterLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)
	conv, err := h.repo.Create(ctx, "room")
	require.NoError(t, err)
	require.Equal(t, model.OriginRemote, conv.Origin)
	h.logout(t)

	assert.ErrorIs(t, h.repo.Rename(ctx, conv, "new"), ErrLoginRequired)
	assert.ErrorIs(t, h.repo.Delete(ctx, conv), ErrLoginRequired)

	msgs, err := h.repo.Messages(ctx, conv)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 1, h.srv.RoomCount())
}

func TestRepository_SendRejectsEmpty(t *testing.T) {
	h := newHarness(t)
	_, err := h.repo.Send(context.Background(), nil, "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestTranscript(t *testing.T) {
	now := time.Now()
	turns := Transcript([]model.Message{
		model.NewUserMessage("c", "q", now),
		model.NewAssistantMessage("c", "a", now),
	})
	assert.Equal(t, []backend.Turn{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	}, turns)
	assert.NotNil(t, Transcript(nil))
}

// =============================================================================
// RECONCILER
// =============================================================================

func TestReconciler_CrisisRaisesFlagOnly(t *testing.T) {
	h := newHarness(t)
	r := NewReconciler(h.repo.Local(), nil)
	thread := NewThread()
	conv := model.Conversation{ID: "7", Origin: model.OriginRemote}
	thread.Reset(conv, nil)

	pair, err := r.Reconcile(thread, "힘들어요", &SendOutcome{
		Conversation: conv,
		Response: &backend.ChatResponse{
			Reply:      "많이 힘드셨겠어요.",
			IsCrisis:   true,
			CrisisInfo: &backend.CrisisInfo{Phone: "129", Message: "연락해보세요"},
		},
	})
	require.NoError(t, err)

	state := thread.Snapshot()
	assert.True(t, state.Crisis)
	require.NotNil(t, state.CrisisInfo)
	assert.Equal(t, "129", state.CrisisInfo.Phone)
	assert.Equal(t, "힘들어요", pair[0].Content)
	assert.Equal(t, "많이 힘드셨겠어요.", pair[1].Content)
	assert.Equal(t, []model.Message{pair[0], pair[1]}, state.Messages)

	// A later ordinary reply keeps the panel up until dismissed.
	_, err = r.Reconcile(thread, "고마워요", &SendOutcome{
		Conversation: conv,
		Response:     &backend.ChatResponse{Reply: "언제든지요"},
	})
	require.NoError(t, err)
	assert.True(t, thread.Snapshot().Crisis)

	thread.DismissCrisis()
	assert.False(t, thread.Snapshot().Crisis)
}

func TestReconciler_CrisisEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pair, err := h.ctl.Send(ctx, "요즘 죽고 싶다는 생각이 들어요")
	require.NoError(t, err)

	state := h.ctl.Thread().Snapshot()
	assert.True(t, state.Crisis)
	require.NotNil(t, state.CrisisInfo)
	assert.Equal(t, backend.CrisisHotline, state.CrisisInfo.Phone)
	assert.Equal(t, "요즘 죽고 싶다는 생각이 들어요", pair[0].Content)
	assert.NotEmpty(t, pair[1].Content)
}

func TestReconciler_UserBeforeAssistant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pair, err := h.ctl.Send(ctx, "안녕하세요")
	require.NoError(t, err)
	assert.True(t, pair[0].IsUser)
	assert.False(t, pair[1].IsUser)

	msgs := h.ctl.Thread().Messages()
	userIdx, botIdx := -1, -1
	for i, m := range msgs {
		switch m.ID {
		case pair[0].ID:
			userIdx = i
		case pair[1].ID:
			botIdx = i
		}
	}
	require.NotEqual(t, -1, userIdx)
	require.NotEqual(t, -1, botIdx)
	assert.Less(t, userIdx, botIdx)
}

func TestReconciler_PersistedPairSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	ws, err := webstorage.NewFileStorage(path, nil)
	require.NoError(t, err)
	h := newHarness(t, withStorage(ws))
	ctx := context.Background()

	pair, err := h.ctl.Send(ctx, "기록 남겨주세요")
	require.NoError(t, err)
	conv, ok := h.ctl.Active()
	require.True(t, ok)

	reopened, err := webstorage.NewFileStorage(path, nil)
	require.NoError(t, err)
	msgs, err := storage.NewConversationStore(reopened, nil).Messages(conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, pair[0].ID, msgs[0].ID)
	assert.Equal(t, pair[1].ID, msgs[1].ID)
	assert.Equal(t, pair[0].Content, msgs[0].Content)
	assert.Equal(t, pair[1].Content, msgs[1].Content)
	assert.True(t, msgs[0].IsUser)
	assert.False(t, msgs[1].IsUser)
}

func TestReconciler_OtherConversationOnScreen(t *testing.T) {
	h := newHarness(t)
	r := NewReconciler(h.repo.Local(), nil)
	thread := NewThread()
	thread.Reset(model.Conversation{ID: "1", Origin: model.OriginRemote}, nil)

	_, err := r.Reconcile(thread, "q", &SendOutcome{
		Conversation: model.Conversation{ID: "2", Origin: model.OriginRemote},
		Response:     &backend.ChatResponse{Reply: "a"},
	})
	require.NoError(t, err)
	assert.Empty(t, thread.Messages())
}

func TestReconciler_NoResponse(t *testing.T) {
	h := newHarness(t)
	r := NewReconciler(h.repo.Local(), nil)
	_, err := r.Reconcile(NewThread(), "q", &SendOutcome{})
	assert.Error(t, err)
}

// =============================================================================
// CONTROLLER
// =============================================================================

func TestController_LoadCreatesFirstConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctl.Load(ctx))
	convs := h.ctl.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, storage.DefaultTitle, convs[0].Title)

	active, ok := h.ctl.Active()
	require.True(t, ok)
	assert.Equal(t, convs[0].ID, active.ID)

	require.NoError(t, h.ctl.Load(ctx))
	assert.Len(t, h.ctl.Conversations(), 1)
}

func TestController_LoadSelectsNewest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.repo.Create(ctx, "older")
	require.NoError(t, err)
	newest, err := h.repo.Create(ctx, "newest")
	require.NoError(t, err)

	require.NoError(t, h.ctl.Load(ctx))
	active, ok := h.ctl.Active()
	require.True(t, ok)
	assert.Equal(t, newest.ID, active.ID)
}

func TestController_SelectLoadsHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ctl.Send(ctx, "first")
	require.NoError(t, err)
	first, _ := h.ctl.Active()

	_, err = h.ctl.NewConversation(ctx)
	require.NoError(t, err)
	assert.Empty(t, h.ctl.Thread().Messages())

	require.NoError(t, h.ctl.Select(ctx, first.ID))
	assert.Len(t, h.ctl.Thread().Messages(), 2)

	require.NoError(t, h.ctl.SelectIndex(ctx, 2))
	active, _ := h.ctl.Active()
	assert.Equal(t, first.ID, active.ID)

	assert.ErrorIs(t, h.ctl.SelectIndex(ctx, 9), storage.ErrConversationNotFound)
	assert.ErrorIs(t, h.ctl.Select(ctx, "missing"), storage.ErrConversationNotFound)
}

func TestController_MemberTranscriptKeptForSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	_, err := h.ctl.Send(ctx, "서버 대화")
	require.NoError(t, err)
	room, ok := h.ctl.Active()
	require.True(t, ok)
	assert.Equal(t, model.OriginRemote, room.Origin)

	_, err = h.ctl.NewConversation(ctx)
	require.NoError(t, err)
	require.NoError(t, h.ctl.Select(ctx, room.ID))
	assert.Len(t, h.ctl.Thread().Messages(), 2)
}

func TestController_RenameAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ctl.Load(ctx))
	first, _ := h.ctl.Active()
	second, err := h.ctl.NewConversation(ctx)
	require.NoError(t, err)

	require.NoError(t, h.ctl.Rename(ctx, "", "고민 상담"))
	active, _ := h.ctl.Active()
	assert.Equal(t, "고민 상담", active.Title)
	assert.Equal(t, "고민 상담", h.ctl.Conversations()[0].Title)
	assert.ErrorIs(t, h.ctl.Rename(ctx, "", "  "), storage.ErrEmptyTitle)

	require.NoError(t, h.ctl.Delete(ctx, second.ID))
	active, ok := h.ctl.Active()
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)

	require.NoError(t, h.ctl.Delete(ctx, ""))
	_, ok = h.ctl.Active()
	assert.False(t, ok)
	assert.Empty(t, h.ctl.Conversations())
}

func TestController_RejectsDoubleSubmit(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h := newHarness(t, withMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/chat/message" {
				entered <- struct{}{}
				<-release
			}
			next.ServeHTTP(w, r)
		})
	}))
	ctx := context.Background()
	require.NoError(t, h.ctl.Load(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := h.ctl.Send(ctx, "first")
		done <- err
	}()
	<-entered

	_, err := h.ctl.Send(ctx, "second")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, h.ctl.Thread().Messages(), 2)

	// The slot is free again once the first send settles.
	_, err = h.ctl.Send(ctx, "third")
	require.NoError(t, err)
	<-entered
}

func TestController_Throttle(t *testing.T) {
	h := newHarness(t)
	ctl := NewController(h.repo, WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))
	ctx := context.Background()

	_, err := ctl.Send(ctx, "one")
	require.NoError(t, err)

	tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = ctl.Send(tctx, "two")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestController_SendFailureLeavesThreadUntouched(t *testing.T) {
	h := newHarness(t, withMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/chat/message" {
				http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}))
	ctx := context.Background()
	require.NoError(t, h.ctl.Load(ctx))

	_, err := h.ctl.Send(ctx, "hello")
	require.Error(t, err)
	var apiErr *backend.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Empty(t, h.ctl.Thread().Messages())
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 3))
	l := NewLimiter(60, 0)
	require.NotNil(t, l)
	assert.Equal(t, rate.Limit(1), l.Limit())
	assert.Equal(t, 1, l.Burst())
}
