// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/neulbom/neulbom-cli/internal/util"
)

// DefaultPostLimit is how many posts a list asks for.
const DefaultPostLimit = 100

// =============================================================================
// CATEGORIES
// =============================================================================

// PostCategory is a community board.
type PostCategory string

const (
	CategoryInfo    PostCategory = "info"
	CategoryCounsel PostCategory = "counsel"
	CategoryFree    PostCategory = "free"
)

// wireCategories maps boards to the names the server stores.
var wireCategories = map[PostCategory]string{
	CategoryInfo:    "information",
	CategoryCounsel: "worry",
	CategoryFree:    "free",
}

// Wire returns the server's name for the board.
func (c PostCategory) Wire() string {
	if w, ok := wireCategories[c]; ok {
		return w
	}
	return wireCategories[CategoryFree]
}

// Label returns the board's display name.
func (c PostCategory) Label() string {
	switch c {
	case CategoryInfo:
		return "정보공유"
	case CategoryCounsel:
		return "고민상담"
	default:
		return "자유"
	}
}

// ParsePostCategory accepts a board name in either the client's or the
// server's vocabulary. An empty string means no filter.
func ParsePostCategory(s string) (PostCategory, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for c, wire := range wireCategories {
		if s == string(c) || s == wire {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q (info, counsel or free)", s)
}

func categoryFromWire(wire string) PostCategory {
	for c, w := range wireCategories {
		if w == wire {
			return c
		}
	}
	return CategoryFree
}

// =============================================================================
// TYPES
// =============================================================================

// Post is a community post.
type Post struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Category     string `json:"category"`
	ViewCount    int    `json:"view_count"`
	LikeCount    int    `json:"like_count"`
	CommentCount int    `json:"comment_count"`
	AnonymousID  string `json:"anonymous_id,omitempty"`
	CreatedAt    string `json:"created_at"`
	IsLiked      bool   `json:"is_liked"`
	IsBookmarked bool   `json:"is_bookmarked"`
	AuthorID     *int64 `json:"author_id,omitempty"`
}

// Board returns the post's category. Unknown names read as free.
func (p Post) Board() PostCategory {
	return categoryFromWire(p.Category)
}

// Created parses CreatedAt.
func (p Post) Created() time.Time {
	return parseTimestamp(p.CreatedAt)
}

// Preview returns the first n runes of the content on one line.
func (p Post) Preview(n int) string {
	return util.TruncateRunes(util.SingleLine(p.Content), n)
}

// Comment is a reply under a post.
type Comment struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	AnonymousID string `json:"anonymous_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Created parses CreatedAt.
func (c Comment) Created() time.Time {
	return parseTimestamp(c.CreatedAt)
}

// PostInput is the body of a post create or update.
type PostInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// NewPostInput builds a body for board c.
func NewPostInput(title, content string, c PostCategory) PostInput {
	return PostInput{Title: title, Content: content, Category: c.Wire()}
}

// PostQuery filters a post list.
type PostQuery struct {
	Category PostCategory // empty lists every board
	Popular  bool         // most liked first instead of newest first
	Skip     int
	Limit    int
}

func (q PostQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category.Wire())
	}
	if q.Popular {
		v.Set("sort", "popular")
	} else {
		v.Set("sort", "latest")
	}
	if q.Skip > 0 {
		v.Set("skip", strconv.Itoa(q.Skip))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPostLimit
	}
	v.Set("limit", strconv.Itoa(clamp(limit, 1, DefaultPostLimit)))
	return v
}

// ToggleResult is the reply to a like or bookmark toggle. Only the field
// for the toggled flag is set.
type ToggleResult struct {
	Message      string `json:"message"`
	IsLiked      *bool  `json:"is_liked,omitempty"`
	IsBookmarked *bool  `json:"is_bookmarked,omitempty"`
}

// On reports the state after the toggle.
func (r ToggleResult) On() bool {
	switch {
	case r.IsLiked != nil:
		return *r.IsLiked
	case r.IsBookmarked != nil:
		return *r.IsBookmarked
	default:
		return false
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

// ListPosts returns posts of one board, or all boards.
func (c *Client) ListPosts(ctx context.Context, q PostQuery) ([]Post, error) {
	var posts []Post
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/community/posts", query: q.values(), out: &posts})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

// GetPost returns one post. The server counts the view.
func (c *Client) GetPost(ctx context.Context, id int64) (*Post, error) {
	var p Post
	if err := c.do(ctx, request{method: http.MethodGet, path: postPath(id), out: &p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// Comments returns the comments under a post, oldest first.
func (c *Client) Comments(ctx context.Context, postID int64) ([]Comment, error) {
	var list []Comment
	if err := c.do(ctx, request{method: http.MethodGet, path: postPath(postID) + "/comments", out: &list}); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Comment{}
	}
	return list, nil
}

// CreatePost publishes a post.
func (c *Client) CreatePost(ctx context.Context, in PostInput) (*Post, error) {
	var p Post
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/community/posts", body: in, out: &p})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePost replaces a post's title, content and board. Only the author
// may do so; anyone else gets 404.
func (c *Client) UpdatePost(ctx context.Context, id int64, in PostInput) (*Post, error) {
	var p Post
	if err := c.do(ctx, request{method: http.MethodPut, path: postPath(id), body: in, out: &p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePost removes a post written by the member.
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: postPath(id)})
}

// ToggleLike likes a post, or takes the like back.
func (c *Client) ToggleLike(ctx context.Context, id int64) (*ToggleResult, error) {
	return c.toggle(ctx, postPath(id)+"/like")
}

// ToggleBookmark bookmarks a post, or removes the bookmark.
func (c *Client) ToggleBookmark(ctx context.Context, id int64) (*ToggleResult, error) {
	return c.toggle(ctx, postPath(id)+"/bookmark")
}

func (c *Client) toggle(ctx context.Context, path string) (*ToggleResult, error) {
	var res ToggleResult
	if err := c.do(ctx, request{method: http.MethodPost, path: path, out: &res}); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateComment adds a comment under a post.
func (c *Client) CreateComment(ctx context.Context, postID int64, content string) (*Comment, error) {
	var cm Comment
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   postPath(postID) + "/comments",
		body:   map[string]string{"content": content},
		out:    &cm,
	})
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

func postPath(id int64) string {
	return "/api/community/posts/" + strconv.FormatInt(id, 10)
}
