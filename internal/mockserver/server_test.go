// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neulbom/neulbom-cli/internal/backend"
)

const (
	testEmail    = "demo@neulbom.kr"
	testPassword = "demo1234"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := New("test-secret").WithUser(testEmail, testPassword)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

func memberClient(t *testing.T, srv *Server, url string) *backend.Client {
	t.Helper()
	tok, err := srv.IssueToken(testEmail)
	require.NoError(t, err)
	return backend.NewClient(url, backend.StaticToken(tok)).WithMaxRetries(1)
}

// ============================================================================
// AUTH TESTS
// ============================================================================

func TestServer_LoginAndProfile(t *testing.T) {
	_, url := newTestServer(t)
	anon := backend.NewClient(url, nil)

	tok, err := anon.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)

	member := backend.NewClient(url, backend.StaticToken(tok.AccessToken))
	p, err := member.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testEmail, p.Email)
}

func TestServer_LoginRejected(t *testing.T) {
	srv, url := newTestServer(t)
	anon := backend.NewClient(url, nil)

	_, err := anon.Login(context.Background(), testEmail, "wrong")
	assert.ErrorIs(t, err, backend.ErrUnauthorized)

	srv.DisableUser(testEmail)
	_, err = anon.Login(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, backend.StatusOf(err))
	assert.Contains(t, err.Error(), "Inactive user")
}

func TestServer_Signup(t *testing.T) {
	_, url := newTestServer(t)
	anon := backend.NewClient(url, nil)

	tok, err := anon.Signup(context.Background(), backend.SignupRequest{
		Name: "새 회원", Email: "new@neulbom.kr", Password: "pw12", PasswordConfirm: "pw12",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)

	_, err = anon.Signup(context.Background(), backend.SignupRequest{Email: "new@neulbom.kr", Password: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email already registered")
}

func TestServer_ProtectedRoutes(t *testing.T) {
	_, url := newTestServer(t)

	_, err := backend.NewClient(url, nil).ListRooms(context.Background())
	assert.ErrorIs(t, err, backend.ErrForbidden)

	_, err = backend.NewClient(url, backend.StaticToken("garbage")).ListRooms(context.Background())
	assert.ErrorIs(t, err, backend.ErrUnauthorized)

	other := New("other-secret").WithUser(testEmail, testPassword)
	foreign, err := other.IssueToken(testEmail)
	require.NoError(t, err)
	_, err = backend.NewClient(url, backend.StaticToken(foreign)).ListRooms(context.Background())
	assert.ErrorIs(t, err, backend.ErrUnauthorized)
}

// ============================================================================
// ROOM TESTS
// ============================================================================

func TestServer_RoomLifecycle(t *testing.T) {
	srv, url := newTestServer(t)
	c := memberClient(t, srv, url)
	ctx := context.Background()

	a, err := c.CreateRoom(ctx, "첫 상담")
	require.NoError(t, err)
	b, err := c.CreateRoom(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, b.Title, "대화 ")

	list, err := c.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, b.ID, list.Items[0].ID)

	require.NoError(t, c.RenameRoom(ctx, a.ID, "바뀐 제목"))
	require.NoError(t, c.DeleteRoom(ctx, b.ID))

	list, err = c.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "바뀐 제목", list.Items[0].Title)

	assert.ErrorIs(t, c.DeleteRoom(ctx, b.ID), backend.ErrNotFound)
}

func TestServer_RoomsAreScopedPerUser(t *testing.T) {
	srv, url := newTestServer(t)
	srv.WithUser("other@neulbom.kr", "pw")
	mine := memberClient(t, srv, url)
	tok, err := srv.IssueToken("other@neulbom.kr")
	require.NoError(t, err)
	theirs := backend.NewClient(url, backend.StaticToken(tok))

	room, err := mine.CreateRoom(context.Background(), "private")
	require.NoError(t, err)

	list, err := theirs.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.ErrorIs(t, theirs.RenameRoom(context.Background(), room.ID, "x"), backend.ErrNotFound)
}

func TestServer_FailCreate(t *testing.T) {
	srv, url := newTestServer(t)
	c := memberClient(t, srv, url)

	srv.SetFailCreate(true)
	_, err := c.CreateRoom(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, backend.StatusOf(err))
	assert.Equal(t, 0, srv.RoomCount())

	srv.SetFailCreate(false)
	_, err = c.CreateRoom(context.Background(), "x")
	require.NoError(t, err)
}

// ============================================================================
// MESSAGE TESTS
// ============================================================================

func TestServer_GuestMessage(t *testing.T) {
	srv, url := newTestServer(t)
	resp, err := backend.NewClient(url, nil).SendMessage(context.Background(), nil, "오늘 하루가 길었어요", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Reply)
	assert.False(t, resp.IsCrisis)
	assert.Nil(t, resp.RoomID)
	assert.Equal(t, 0, srv.RoomCount())
}

func TestServer_MemberFirstMessageCreatesRoom(t *testing.T) {
	srv, url := newTestServer(t)
	c := memberClient(t, srv, url)

	resp, err := c.SendMessage(context.Background(), nil, "시험 때문에 너무 긴장돼서 잠을 잘 못 자고 있어요 어떻게 하죠", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.RoomID)

	list, err := c.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, *resp.RoomID, list.Items[0].ID)
	assert.Equal(t, 30, len([]rune(list.Items[0].Title)))

	again, err := c.SendMessage(context.Background(), resp.RoomID, "고마워요", []backend.Turn{{Role: "user", Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, *resp.RoomID, *again.RoomID)
	assert.Equal(t, 1, srv.RoomCount())
}

func TestServer_MessageUnknownRoom(t *testing.T) {
	srv, url := newTestServer(t)
	c := memberClient(t, srv, url)
	missing := int64(999)
	_, err := c.SendMessage(context.Background(), &missing, "hi", nil)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestServer_CrisisMessage(t *testing.T) {
	_, url := newTestServer(t)
	resp, err := backend.NewClient(url, nil).SendMessage(context.Background(), nil, "요즘 정말 죽고 싶어요", nil)
	require.NoError(t, err)
	assert.True(t, resp.IsCrisis)
	require.NotNil(t, resp.CrisisInfo)
	assert.Equal(t, backend.CrisisHotline, resp.CrisisInfo.Phone)
}

func TestAnalyzeCrisis(t *testing.T) {
	tests := []struct {
		text string
		want CrisisLevel
	}{
		{"오늘 날씨가 좋네요", CrisisNone},
		{"다 끝내고 싶어", CrisisLow},
		{"절망적이고 희망 없어", CrisisMedium},
		{"유서를 쓰고 작별 인사를 할 계획이에요", CrisisHigh},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, AnalyzeCrisis(tt.text))
		})
	}
}

func TestServer_Health(t *testing.T) {
	_, url := newTestServer(t)
	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	srv := New("test-secret")
	ln, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_ListenBusyAddr(t *testing.T) {
	srv := New("")
	ln, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = srv.Listen(ln.Addr().String())
	assert.Error(t, err)
}

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	teapot := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	teapot.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/x", nil))
	assert.Contains(t, buf.String(), "POST /api/x | 418 |")

	buf.Reset()
	implicit := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	implicit.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, buf.String(), "GET /health | 200 |")
}
