// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neulbom/neulbom-cli/internal/backend"
)

func login(t *testing.T) {
	t.Helper()
	r := execute(t, testPassword+"\n", "login", "--email", testEmail, "--password-stdin")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
}

func ids(list []backend.Welfare) []int64 {
	out := make([]int64, 0, len(list))
	for _, w := range list {
		out = append(out, w.ID)
	}
	return out
}

// =============================================================================
// WELFARE TESTS (welfare.go)
// =============================================================================

func TestExecute_WelfareAsGuest(t *testing.T) {
	testEnv(t)

	var list []backend.Welfare
	decodeData(t, execute(t, "", "--json", "welfare", "search", "--age", "70", "--region", "서울"), &list)
	assert.Equal(t, []int64{1, 3}, ids(list))

	decodeData(t, execute(t, "", "--json", "welfare", "search", "--limit", "2"), &list)
	assert.Len(t, list, 2)

	r := execute(t, "", "welfare", "show", "1")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "노인 돌봄 서비스 지원")
	assert.Contains(t, r.stdout, "만 65세 이상")
	assert.Contains(t, r.stdout, "상시")
	assert.NotContains(t, r.stdout, "감사해요")

	decodeData(t, execute(t, "", "--json", "welfare", "popular", "--limit", "1"), &list)
	assert.Equal(t, []int64{1}, ids(list))

	decodeData(t, execute(t, "", "--json", "welfare", "recent"), &list)
	assert.Empty(t, list)

	r = execute(t, "", "welfare", "bookmark", "1")
	assert.Equal(t, ExitAuthError, r.code)

	r = execute(t, "", "welfare", "show", "99")
	assert.Equal(t, ExitNotFoundError, r.code)

	r = execute(t, "", "welfare", "show", "abc")
	assert.Equal(t, ExitUsageError, r.code)
}

func TestExecute_WelfareAsMember(t *testing.T) {
	testEnv(t)
	login(t)

	var profile backend.Profile
	decodeData(t, execute(t, "", "--json", "profile", "update", "--age", "52", "--region", "서울"), &profile)
	require.NotNil(t, profile.Age)
	assert.Equal(t, 52, *profile.Age)
	assert.Equal(t, "서울", profile.Region)

	// the profile fills in the filters left out
	var list []backend.Welfare
	decodeData(t, execute(t, "", "--json", "welfare", "search"), &list)
	assert.Equal(t, []int64{2, 3}, ids(list))

	r := execute(t, "", "welfare", "show", "3")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	decodeData(t, execute(t, "", "--json", "welfare", "recent"), &list)
	assert.Equal(t, []int64{3}, ids(list))

	var res backend.BookmarkResult
	decodeData(t, execute(t, "", "--json", "welfare", "bookmark", "3"), &res)
	assert.False(t, res.AlreadyBookmarked)

	r = execute(t, "", "welfare", "bookmark", "3")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "이미 북마크한")
}

// =============================================================================
// PROFILE TESTS (profile.go)
// =============================================================================

func TestExecute_Profile(t *testing.T) {
	testEnv(t)

	r := execute(t, "", "profile")
	assert.Equal(t, ExitAuthError, r.code)
	assert.Contains(t, r.stderr, "로그인이 필요합니다")

	login(t)
	r = execute(t, "", "profile", "update")
	assert.Equal(t, ExitUsageError, r.code)

	r = execute(t, "", "profile", "update", "--care-target", "노인")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "프로필을 저장했습니다")

	r = execute(t, "", "profile", "show")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, testEmail)
	assert.Contains(t, r.stdout, "노인")
}

// =============================================================================
// POSTS TESTS (posts.go)
// =============================================================================

func TestExecute_PostsNeedLogin(t *testing.T) {
	testEnv(t)
	r := execute(t, "", "posts", "list")
	assert.Equal(t, ExitAuthError, r.code)
}

func TestExecute_PostLifecycle(t *testing.T) {
	srv, _ := testEnv(t)
	login(t)

	var post backend.Post
	decodeData(t, execute(t, "", "--json", "posts", "new", "--title", "잠 못 드는 밤",
		"--category", "counsel", "돌봄이", "힘들어요"), &post)
	assert.Equal(t, "돌봄이 힘들어요", post.Content)
	assert.Equal(t, backend.CategoryCounsel, post.Board())
	assert.Equal(t, 1, srv.PostCount())

	var posts []backend.Post
	decodeData(t, execute(t, "", "--json", "posts", "list", "--category", "counsel"), &posts)
	require.Len(t, posts, 1)
	decodeData(t, execute(t, "", "--json", "posts", "list", "--category", "info"), &posts)
	assert.Empty(t, posts)

	r := execute(t, "", "posts", "list", "--category", "news")
	assert.Equal(t, ExitUsageError, r.code)

	r = execute(t, "힘내세요\n", "posts", "comment", "1", "-")
	require.Equal(t, ExitSuccess, r.code, r.stderr)

	r = execute(t, "", "posts", "show", "1")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "[고민상담]")
	assert.Contains(t, r.stdout, "돌봄이 힘들어요")
	assert.Contains(t, r.stdout, "힘내세요")

	var toggled backend.ToggleResult
	decodeData(t, execute(t, "", "--json", "posts", "like", "1"), &toggled)
	assert.True(t, toggled.On())

	decodeData(t, execute(t, "", "--json", "posts", "edit", "1", "--title", "조금 나아졌어요"), &post)
	assert.Equal(t, "조금 나아졌어요", post.Title)
	assert.Equal(t, "돌봄이 힘들어요", post.Content, "content is kept when not given")

	r = execute(t, "", "--json", "posts", "delete", "1")
	assert.Equal(t, ExitUsageError, r.code)

	r = execute(t, "", "posts", "delete", "1", "--yes")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, 0, srv.PostCount())

	r = execute(t, "", "posts", "show", "1")
	assert.Equal(t, ExitNotFoundError, r.code)
}
