// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neulbom/neulbom-cli/internal/backend"
)

// ============================================================================
// STATE
// ============================================================================

type post struct {
	ID        int64
	AuthorID  int64
	Title     string
	Content   string
	Category  string
	Views     int
	CreatedAt time.Time
	Comments  []backend.Comment
	LikedBy   map[int64]bool
	MarkedBy  map[int64]bool
}

// wire renders p as seen by viewer.
func (p *post) wire(viewer int64) backend.Post {
	author := p.AuthorID
	return backend.Post{
		ID:           p.ID,
		Title:        p.Title,
		Content:      p.Content,
		Category:     p.Category,
		ViewCount:    p.Views,
		LikeCount:    len(p.LikedBy),
		CommentCount: len(p.Comments),
		AnonymousID:  anonymousID(p.AuthorID),
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
		IsLiked:      p.LikedBy[viewer],
		IsBookmarked: p.MarkedBy[viewer],
		AuthorID:     &author,
	}
}

// anonymousID is the name a member posts under.
func anonymousID(userID int64) string {
	return fmt.Sprintf("익명%04d", userID)
}

// PostCount returns how many posts exist.
func (s *Server) PostCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// ============================================================================
// POST HANDLERS
// ============================================================================

// postInput validates a create or update body.
func postInput(w http.ResponseWriter, r *http.Request) (backend.PostInput, bool) {
	var in backend.PostInput
	if !decodeBody(w, r, &in) {
		return in, false
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "제목과 내용을 입력해 주세요.")
		return in, false
	}
	if in.Category == "" {
		in.Category = backend.CategoryFree.Wire()
	}
	if c, err := backend.ParsePostCategory(in.Category); err != nil || c.Wire() != in.Category {
		writeDetail(w, http.StatusUnprocessableEntity, "category must be information, worry or free")
		return in, false
	}
	return in, true
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	popular := q.Get("sort") == "popular"
	skip, limit, ok := pageParams(w, r, 20, backend.DefaultPostLimit)
	if !ok {
		return
	}
	viewer := currentUser(r).ID

	s.mu.RLock()
	var found []*post
	for _, p := range s.posts {
		if category == "" || p.Category == category {
			found = append(found, p)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if popular && len(found[i].LikedBy) != len(found[j].LikedBy) {
			return len(found[i].LikedBy) > len(found[j].LikedBy)
		}
		return found[i].ID > found[j].ID
	})
	list := make([]backend.Post, 0, len(found))
	for _, p := range page(found, skip, limit) {
		list = append(list, p.wire(viewer))
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	in, ok := postInput(w, r)
	if !ok {
		return
	}
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	p := &post{
		ID:        s.nextPostID,
		AuthorID:  u.ID,
		Title:     in.Title,
		Content:   in.Content,
		Category:  in.Category,
		CreatedAt: s.now(),
		LikedBy:   make(map[int64]bool),
		MarkedBy:  make(map[int64]bool),
	}
	s.nextPostID++
	s.posts[p.ID] = p
	writeJSON(w, http.StatusOK, p.wire(u.ID))
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postLocked(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "게시글을 찾을 수 없습니다.")
		return
	}
	p.Views++
	writeJSON(w, http.StatusOK, p.wire(currentUser(r).ID))
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	in, ok := postInput(w, r)
	if !ok {
		return
	}
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postLocked(r)
	if !ok || p.AuthorID != u.ID {
		writeDetail(w, http.StatusNotFound, "게시글을 찾을 수 없거나 수정 권한이 없습니다.")
		return
	}
	p.Title, p.Content, p.Category = in.Title, in.Content, in.Category
	writeJSON(w, http.StatusOK, p.wire(u.ID))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postLocked(r)
	if !ok || p.AuthorID != u.ID {
		writeDetail(w, http.StatusNotFound, "게시글을 찾을 수 없거나 삭제 권한이 없습니다.")
		return
	}
	delete(s.posts, p.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "게시글이 삭제되었습니다."})
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postLocked(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "게시글을 찾을 수 없습니다.")
		return
	}
	liked := !p.LikedBy[u.ID]
	msg := "좋아요가 추가되었습니다."
	if liked {
		p.LikedBy[u.ID] = true
	} else {
		delete(p.LikedBy, u.ID)
		msg = "좋아요가 취소되었습니다."
	}
	writeJSON(w, http.StatusOK, backend.ToggleResult{Message: msg, IsLiked: &liked})
}

func (s *Server) handleTogglePostBookmark(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postLocked(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "게시글을 찾을 수 없습니다.")
		return
	}
	marked := !p.MarkedBy[u.ID]
	msg := "북마크가 추가되었습니다."
	if marked {
		p.MarkedBy[u.ID] = true
	} else {
		delete(p.MarkedBy, u.ID)
		msg = "북마크가 삭제되었습니다."
	}
	writeJSON(w, http.StatusOK, backend.ToggleResult{Message: msg, IsBookmarked: &marked})
}

// ============================================================================
// COMMENT HANDLERS
// ============================================================================

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.postLocked(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "게시글을 찾을 수 없습니다.")
		return
	}
	writeJSON(w, http.StatusOK, append([]backend.Comment{}, p.Comments...))
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "댓글 내용을 입력해 주세요.")
		return
	}
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postLocked(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "게시글을 찾을 수 없습니다.")
		return
	}
	c := backend.Comment{
		ID:          s.nextCommentID,
		Content:     content,
		AnonymousID: anonymousID(u.ID),
		CreatedAt:   s.now().UTC().Format(time.RFC3339),
	}
	s.nextCommentID++
	p.Comments = append(p.Comments, c)
	writeJSON(w, http.StatusOK, c)
}

// postLocked resolves {id} to a post. s.mu must be held.
func (s *Server) postLocked(r *http.Request) (*post, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, false
	}
	p, ok := s.posts[id]
	return p, ok
}
