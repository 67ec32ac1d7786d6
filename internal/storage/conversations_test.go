// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/neulbom/neulbom-cli/internal/model"
	"github.com/neulbom/neulbom-cli/internal/webstorage"
)

func newTestStore(t *testing.T) (*ConversationStore, webstorage.Storage) {
	t.Helper()
	ws := webstorage.NewMemoryStorage()
	return NewConversationStore(ws, nil), ws
}

// =============================================================================
// CREATE / LIST TESTS
// =============================================================================

func TestConversationStore_CreateThenList(t *testing.T) {
	store, _ := newTestStore(t)

	conv, err := store.Create("시험 기간 스트레스")
	require.NoError(t, err)

	list := store.List()
	require.NotEmpty(t, list)
	assert.Equal(t, "시험 기간 스트레스", list[0].Title)
	assert.Equal(t, conv.ID, list[0].ID)
	assert.Equal(t, model.OriginLocal, list[0].Origin)

	n, ok := model.LocalIDNumber(list[0].ID)
	assert.True(t, ok, "synthetic id must expose an integer")
	assert.Positive(t, n)
}

func TestConversationStore_NewestFirst(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.Create("첫 번째")
	require.NoError(t, err)
	second, err := store.Create("두 번째")
	require.NoError(t, err)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestConversationStore_DefaultTitle(t *testing.T) {
	store, _ := newTestStore(t)

	conv, err := store.Create("   ")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, conv.Title)

	store.DefaultTitle = "untitled"
	conv, err = store.Create("")
	require.NoError(t, err)
	assert.Equal(t, "untitled", conv.Title)
}

func TestConversationStore_CreateFallbackIsMarked(t *testing.T) {
	store, ws := newTestStore(t)

	conv, err := store.CreateFallback("서버 장애")
	require.NoError(t, err)
	assert.True(t, conv.Fallback)
	assert.Equal(t, model.OriginLocal, conv.Origin)

	reopened := NewConversationStore(ws, nil)
	list := reopened.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Fallback)
}

func TestConversationStore_CreatedAtUsesClock(t *testing.T) {
	store, _ := newTestStore(t)
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	store.Now = func() time.Time { return fixed }

	conv, err := store.Create("a")
	require.NoError(t, err)
	assert.True(t, conv.CreatedAt.Equal(fixed))
	assert.True(t, strings.HasPrefix(conv.ID, "local_1740821400000_"))
}

func TestConversationStore_MaxConversations(t *testing.T) {
	store, _ := newTestStore(t)
	store.MaxConversations = 2

	_, err := store.Create("1")
	require.NoError(t, err)
	_, err = store.Create("2")
	require.NoError(t, err)
	_, err = store.Create("3")
	require.NoError(t, err)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "3", list[0].Title)
	assert.Equal(t, "2", list[1].Title)
}

// =============================================================================
// CORRUPTION TESTS
// =============================================================================

func TestConversationStore_CorruptBlobListsEmpty(t *testing.T) {
	store, ws := newTestStore(t)
	require.NoError(t, ws.SetItem(webstorage.KeyLocalChats, "{definitely not an array"))

	assert.Empty(t, store.List())

	// Creating replaces the corrupt value with a valid array.
	_, err := store.Create("new")
	require.NoError(t, err)
	assert.Len(t, store.List(), 1)
}

func TestConversationStore_SkipsBadEntries(t *testing.T) {
	store, ws := newTestStore(t)
	raw := `[{"id":"local_1_aaaaaaaaa","title":"ok","created_at":"2025-01-01T00:00:00Z","messages":[]},
	         {"id":"local_2_bbbbbbbbb","title":"bad","created_at":"yesterday"},
	         {"title":"no id"}]`
	require.NoError(t, ws.SetItem(webstorage.KeyLocalChats, raw))

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "ok", list[0].Title)

	// A later write keeps the entries this client could not read.
	_, err := store.Create("new")
	require.NoError(t, err)
	assert.Len(t, store.List(), 2)

	blob, ok, err := ws.GetItem(webstorage.KeyLocalChats)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, blob, `"created_at":"yesterday"`)
	assert.Contains(t, blob, `"title":"no id"`)

	var items []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(blob), &items))
	assert.Len(t, items, 4)
}

func TestConversationStore_ReadsWebClientEntries(t *testing.T) {
	store, ws := newTestStore(t)
	raw := `[{"id":"local_1732075200123_k3j9x0abc","title":"웹에서 만든 대화","created_at":"2024-11-20T04:00:00.123Z",
	          "messages":[{"id":1732075260000,"conversationId":0,"content":"안녕","isUser":true,"timestamp":"오후 01:01"},
	                      {"conversationId":0,"content":"반가워요","isUser":false,"timestamp":"오후 01:01"}]}]`
	require.NoError(t, ws.SetItem(webstorage.KeyLocalChats, raw))

	list := store.List()
	require.Len(t, list, 1)
	id := list[0].ID

	msgs, err := store.Messages(id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1732075260000", msgs[0].ID)
	assert.Equal(t, "0", msgs[0].ConversationID)
	assert.True(t, msgs[0].Timestamp.IsZero())
	assert.Equal(t, "오후 01:01", msgs[0].Clock("15:04"))

	_, err = store.Create("other")
	require.NoError(t, err)

	blob, _, err := ws.GetItem(webstorage.KeyLocalChats)
	require.NoError(t, err)
	assert.Contains(t, blob, `"timestamp":"오후 01:01"`)
	assert.Contains(t, blob, "웹에서 만든 대화")
}

func TestConversationStore_IgnoresUnknownFields(t *testing.T) {
	store, ws := newTestStore(t)
	raw := `[{"id":"local_1_aaaaaaaaa","title":"t","created_at":"2025-01-01T00:00:00Z","pinned":true,"messages":[]}]`
	require.NoError(t, ws.SetItem(webstorage.KeyLocalChats, raw))
	assert.Len(t, store.List(), 1)
}

// =============================================================================
// RENAME / DELETE TESTS
// =============================================================================

func TestConversationStore_Rename(t *testing.T) {
	store, _ := newTestStore(t)
	conv, err := store.Create("old")
	require.NoError(t, err)

	require.NoError(t, store.Rename(conv.ID, "  new  "))
	assert.Equal(t, "new", store.List()[0].Title)

	assert.ErrorIs(t, store.Rename(conv.ID, " "), ErrEmptyTitle)
	assert.ErrorIs(t, store.Rename("local_0_missing00", "x"), ErrConversationNotFound)
}

func TestConversationStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	a, err := store.Create("a")
	require.NoError(t, err)
	b, err := store.Create("b")
	require.NoError(t, err)

	require.NoError(t, store.Delete(a.ID))
	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	err = store.Delete(a.ID)
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestConversationStore_Clear(t *testing.T) {
	store, ws := newTestStore(t)
	_, err := store.Create("a")
	require.NoError(t, err)
	require.NoError(t, ws.SetItem(webstorage.KeyAuthToken, "tok"))

	require.NoError(t, store.Clear())
	assert.Empty(t, store.List())

	_, ok, err := ws.GetItem(webstorage.KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, ok, "clear must not touch other keys")
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestConversationStore_AppendPairSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	ws, err := webstorage.NewFileStorage(path, nil)
	require.NoError(t, err)
	store := NewConversationStore(ws, nil)

	conv, err := store.Create("guest")
	require.NoError(t, err)

	at := time.Date(2025, 5, 2, 14, 5, 0, 0, time.UTC)
	user := model.NewUserMessage(conv.ID, "요즘 잠을 못 자요", at)
	bot := model.NewAssistantMessage(conv.ID, "많이 힘드셨겠어요.", at.Add(time.Second))
	require.NoError(t, store.AppendMessage(conv.ID, user, bot))
	require.NoError(t, ws.Close())

	reopened, err := webstorage.NewFileStorage(path, nil)
	require.NoError(t, err)
	msgs, err := NewConversationStore(reopened, nil).Messages(conv.ID)
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	assert.Equal(t, user.ID, msgs[0].ID)
	assert.True(t, msgs[0].IsUser)
	assert.Equal(t, "요즘 잠을 못 자요", msgs[0].Content)
	assert.Equal(t, bot.ID, msgs[1].ID)
	assert.False(t, msgs[1].IsUser)
	assert.True(t, msgs[1].Timestamp.Equal(at.Add(time.Second)))
}

func TestConversationStore_MessagesAreStable(t *testing.T) {
	store, _ := newTestStore(t)
	conv, err := store.Create("x")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(conv.ID,
		model.NewUserMessage(conv.ID, "hi", time.Now()),
		model.NewAssistantMessage(conv.ID, "hello", time.Now())))

	first, err := store.Messages(conv.ID)
	require.NoError(t, err)
	second, err := store.Messages(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConversationStore_MessagesNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Messages("local_1_nothere00")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, store.AppendMessage("local_1_nothere00", model.Message{}), ErrConversationNotFound)
}

func TestConversationStore_AppendSetsConversationID(t *testing.T) {
	store, _ := newTestStore(t)
	conv, err := store.Create("x")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(conv.ID, model.Message{Content: "orphan", IsUser: true}))

	msgs, err := store.Messages(conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, conv.ID, msgs[0].ConversationID)
}

func TestConversationStore_GetReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)
	conv, err := store.Create("x")
	require.NoError(t, err)

	got, err := store.Get(conv.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Messages = append(got.Messages, model.Message{Content: "leak"})

	again, err := store.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", again.Title)
	assert.Empty(t, again.Messages)
}

func TestConversationStore_EntryFormat(t *testing.T) {
	store, ws := newTestStore(t)
	conv, err := store.Create("t")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(conv.ID, model.NewUserMessage(conv.ID, "m", time.Now())))

	raw, ok, err := ws.GetItem(webstorage.KeyLocalChats)
	require.NoError(t, err)
	require.True(t, ok)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &entries))
	require.Len(t, entries, 1)
	for _, key := range []string{"id", "title", "created_at", "messages"} {
		assert.Contains(t, entries[0], key)
	}
	msgs := entries[0]["messages"].([]any)
	msg := msgs[0].(map[string]any)
	for _, key := range []string{"conversationId", "content", "isUser", "timestamp"} {
		assert.Contains(t, msg, key)
	}
}

// =============================================================================
// SEARCH / EXPORT TESTS
// =============================================================================

func TestConversationStore_Search(t *testing.T) {
	store, _ := newTestStore(t)
	a, err := store.Create("Exam stress")
	require.NoError(t, err)
	b, err := store.Create("친구 문제")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(b.ID, model.NewUserMessage(b.ID, "친구랑 싸웠어요", time.Now())))

	results := store.Search("exam")
	require.Len(t, results, 1)
	assert.Equal(t, a.ID, results[0].ID)

	// Decomposed jamo still matches precomposed content.
	results = store.Search(norm.NFD.String("싸웠"))
	require.Len(t, results, 1)
	assert.Equal(t, b.ID, results[0].ID)

	assert.Len(t, store.Search(""), 2)
	assert.Empty(t, store.Search("nothing like this"))
}

func TestStoredConversation_ExportMarkdown(t *testing.T) {
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local)
	conv := &StoredConversation{
		ID:        "local_1_abcdefghi",
		Title:     "상담",
		CreatedAt: at,
		Messages: []model.Message{
			model.NewUserMessage("local_1_abcdefghi", "안녕", at),
			model.NewAssistantMessage("local_1_abcdefghi", "반가워요", at),
		},
	}

	md := conv.ExportMarkdown("")
	assert.Contains(t, md, "# 상담")
	assert.Contains(t, md, "**나** (10:00)")
	assert.Contains(t, md, "**늘봄** (10:00)")
	assert.Less(t, strings.Index(md, "안녕"), strings.Index(md, "반가워요"))

	data, err := conv.ExportJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "상담"`)
}

func TestFormatConversationList(t *testing.T) {
	assert.Equal(t, "대화가 없습니다.\n", FormatConversationList(nil, ""))

	convs := []model.Conversation{
		{ID: "12", Title: "서버 대화", Origin: model.OriginRemote},
		{ID: "local_1_abcdefghi", Title: "줄\n바꿈", Origin: model.OriginLocal},
	}
	out := FormatConversationList(convs, "12")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "*1"))
	assert.Contains(t, lines[2], "서버")
	assert.Contains(t, lines[3], "줄 바꿈")
	assert.Contains(t, lines[3], "이 기기")
}
