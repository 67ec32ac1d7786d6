// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neulbom/neulbom-cli/internal/webstorage"
)

// =============================================================================
// CLASSIFIER TESTS
// =============================================================================

func TestClassifier_Modes(t *testing.T) {
	tests := []struct {
		name   string
		token  *string
		member bool
	}{
		{"no token", nil, false},
		{"empty token", ptr(""), false},
		{"whitespace token", ptr("   \n"), false},
		{"token", ptr("abc.def.ghi"), true},
		{"padded token", ptr("  abc  "), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := webstorage.NewMemoryStorage()
			if tt.token != nil {
				require.NoError(t, store.SetItem(webstorage.KeyAuthToken, *tt.token))
			}
			c := NewClassifier(store, nil)
			assert.Equal(t, tt.member, c.IsMember())
			if tt.member {
				assert.Equal(t, ModeMember, c.Mode())
			} else {
				assert.Equal(t, ModeGuest, c.Mode())
			}
		})
	}
}

func TestClassifier_TokenIsTrimmed(t *testing.T) {
	store := webstorage.NewMemoryStorage()
	require.NoError(t, store.SetItem(webstorage.KeyAuthToken, "  tok \n"))
	assert.Equal(t, "tok", NewClassifier(store, nil).Token())
}

func TestClassifier_ReadsEveryCall(t *testing.T) {
	store := webstorage.NewMemoryStorage()
	c := NewClassifier(store, nil)

	assert.Equal(t, ModeGuest, c.Mode())
	require.NoError(t, c.SetToken("tok"))
	assert.Equal(t, ModeMember, c.Mode())

	// Direct storage edits are seen too.
	require.NoError(t, store.RemoveItem(webstorage.KeyAuthToken))
	assert.Equal(t, ModeGuest, c.Mode())
}

func TestClassifier_SetTokenRejectsEmpty(t *testing.T) {
	c := NewClassifier(webstorage.NewMemoryStorage(), nil)
	assert.Error(t, c.SetToken("  "))
	assert.False(t, c.IsMember())
}

func TestClassifier_ClearKeepsGuestData(t *testing.T) {
	store := webstorage.NewMemoryStorage()
	require.NoError(t, store.SetItem(webstorage.KeyLocalChats, "[]"))
	c := NewClassifier(store, nil)
	require.NoError(t, c.SetToken("tok"))
	require.NoError(t, c.ClearToken())

	assert.False(t, c.IsMember())
	_, ok, err := store.GetItem(webstorage.KeyLocalChats)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "none", Fingerprint(""))
	fp := Fingerprint("secret-token")
	assert.True(t, strings.HasPrefix(fp, "sha256:"))
	assert.Len(t, fp, len("sha256:")+12)
	assert.NotContains(t, fp, "secret")
	assert.Equal(t, fp, Fingerprint("secret-token"))
}

func TestModeLabel(t *testing.T) {
	assert.Equal(t, "회원", ModeMember.Label())
	assert.Equal(t, "게스트", ModeGuest.Label())
}

// =============================================================================
// CLAIMS TESTS
// =============================================================================

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "7",
		"email": "user@example.com",
		"exp":   exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("any-key"))
	require.NoError(t, err)

	claims, err := ParseClaims(signed)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(exp.Add(time.Minute)))
}

func TestParseClaims_Opaque(t *testing.T) {
	_, err := ParseClaims("opaque-token")
	assert.Error(t, err)
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcher_ReportsLoginFromOtherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	ours, err := webstorage.NewFileStorage(path, nil)
	require.NoError(t, err)
	theirs, err := webstorage.NewFileStorage(path, nil)
	require.NoError(t, err)

	c := NewClassifier(ours, nil)
	w, err := NewWatcher(c, path, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, theirs.SetItem(webstorage.KeyAuthToken, "tok"))

	select {
	case change := <-w.Changes():
		assert.Equal(t, ModeGuest, change.From)
		assert.Equal(t, ModeMember, change.To)
	case <-time.After(5 * time.Second):
		t.Fatal("no mode change observed")
	}

	require.NoError(t, theirs.RemoveItem(webstorage.KeyAuthToken))

	select {
	case change := <-w.Changes():
		assert.Equal(t, ModeMember, change.From)
		assert.Equal(t, ModeGuest, change.To)
	case <-time.After(5 * time.Second):
		t.Fatal("no mode change observed")
	}
}

func TestWatcher_ClosesOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	s, err := webstorage.NewFileStorage(path, nil)
	require.NoError(t, err)

	w, err := NewWatcher(NewClassifier(s, nil), path, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	_, ok := <-w.Changes()
	assert.False(t, ok)
}

func ptr(s string) *string { return &s }
