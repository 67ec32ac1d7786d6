// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neulbom/neulbom-cli/internal/backend"
)

// ============================================================================
// CATALOG
// ============================================================================

type welfareItem struct {
	backend.WelfareDetail
	Views int64
}

func intPtr(n int) *int { return &n }

// seedWelfare is the catalog every server starts with.
func seedWelfare() []*welfareItem {
	return []*welfareItem{
		{WelfareDetail: backend.WelfareDetail{
			Welfare: backend.Welfare{
				ID: 1, Title: "노인 돌봄 서비스 지원", Region: "전국", IsAlways: true, Status: "active",
				Summary:    "만 65세 이상 어르신을 대상으로 일상생활 지원 서비스를 제공합니다.",
				SourceLink: "https://www.bokjiro.go.kr",
			},
			FullText: "안부 확인, 생활 교육, 가사 지원을 제공합니다. 말씀해주셔서 감사해요.",
			AgeMin:   intPtr(65), CareTarget: "노인", Category: "돌봄",
		}},
		{WelfareDetail: backend.WelfareDetail{
			Welfare: backend.Welfare{
				ID: 2, Title: "장애인 활동지원 서비스", Region: "전국", Status: "active",
				Summary:    "신체적·정신적 장애로 혼자 일상생활이 어려운 분들을 위한 활동 지원",
				ApplyStart: "2025-01-01", ApplyEnd: "2025-12-31",
			},
			AgeMin: intPtr(6), AgeMax: intPtr(64), CareTarget: "장애인", Category: "활동지원",
		}},
		{WelfareDetail: backend.WelfareDetail{
			Welfare: backend.Welfare{
				ID: 3, Title: "가족돌봄 휴가제도", Region: "전국", IsAlways: true, Status: "active",
				Summary: "가족 구성원의 질병, 사고 등으로 돌봄이 필요한 경우 사용 가능한 휴가",
			},
			AgeMin: intPtr(19), CareTarget: "가족", Category: "고용",
		}},
		{WelfareDetail: backend.WelfareDetail{
			Welfare: backend.Welfare{
				ID: 4, Title: "서울 가족돌봄청년 자기돌봄비", Region: "서울", Status: "active",
				Summary:    "가족을 돌보는 청년에게 자기돌봄비를 지원합니다. 무엇을 도와드릴까요?",
				ApplyStart: "2025-03-01", ApplyEnd: "2025-06-30",
			},
			AgeMin: intPtr(13), AgeMax: intPtr(34), CareTarget: "가족", Category: "현금",
		}},
		{WelfareDetail: backend.WelfareDetail{
			Welfare: backend.Welfare{
				ID: 5, Title: "부산 치매가족 휴식지원", Region: "부산", IsAlways: true, Status: "active",
				Summary: "치매 어르신을 돌보는 가족에게 휴식 프로그램을 제공합니다.",
			},
			CareTarget: "노인", Category: "돌봄",
		}},
	}
}

// matches applies the search filters the way the real search does: an
// unset filter passes, a nationwide programme matches every region.
func (w *welfareItem) matches(keyword, region string, age int, careTarget string) bool {
	if keyword != "" {
		hay := strings.ToLower(w.Title + " " + w.Summary + " " + w.FullText)
		if !strings.Contains(hay, strings.ToLower(keyword)) {
			return false
		}
	}
	if region != "" && w.Region != "전국" && !strings.Contains(w.Region, region) {
		return false
	}
	if age > 0 {
		if w.AgeMin != nil && age < *w.AgeMin {
			return false
		}
		if w.AgeMax != nil && age > *w.AgeMax {
			return false
		}
	}
	if careTarget != "" && w.CareTarget != "" && w.CareTarget != careTarget {
		return false
	}
	return true
}

// WelfareViews returns how often a programme was opened.
func (s *Server) WelfareViews(id int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.welfare {
		if w.ID == id {
			return w.Views
		}
	}
	return 0
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleSearchWelfare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := strings.TrimSpace(q.Get("keyword"))
	region := q.Get("region")
	careTarget := q.Get("care_target")
	age, _ := strconv.Atoi(q.Get("age"))
	skip, limit, ok := pageParams(w, r, backend.DefaultWelfareLimit, backend.MaxWelfareLimit)
	if !ok {
		return
	}

	// Members' profiles fill the filters they left out.
	if u := currentUser(r); u != nil {
		s.mu.RLock()
		if age == 0 && u.Age != nil {
			age = *u.Age
		}
		if region == "" {
			region = u.Region
		}
		if careTarget == "" {
			careTarget = u.CareTarget
		}
		s.mu.RUnlock()
	}

	s.mu.RLock()
	var found []backend.Welfare
	for _, item := range s.welfare {
		if item.matches(keyword, region, age, careTarget) {
			found = append(found, item.Welfare)
		}
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, page(found, skip, limit))
}

func (s *Server) handleWelfareDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid welfare id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.welfareLocked(id)
	if item == nil {
		writeDetail(w, http.StatusNotFound, "복지 정보를 찾을 수 없습니다.")
		return
	}
	item.Views++
	if u := currentUser(r); u != nil {
		s.recordViewLocked(u.ID, id)
	}
	writeJSON(w, http.StatusOK, item.WelfareDetail)
}

func (s *Server) handleBookmarkWelfare(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid welfare id")
		return
	}
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.welfareLocked(id) == nil {
		writeDetail(w, http.StatusNotFound, "복지 정보를 찾을 수 없습니다.")
		return
	}
	marks := s.welfareBookmarks[u.ID]
	if marks == nil {
		marks = make(map[int64]int64)
		s.welfareBookmarks[u.ID] = marks
	}
	if bid, ok := marks[id]; ok {
		writeJSON(w, http.StatusOK, backend.BookmarkResult{
			Message: "이미 북마크된 복지 정보입니다.", BookmarkID: bid, AlreadyBookmarked: true,
		})
		return
	}
	s.nextBookmarkID++
	marks[id] = s.nextBookmarkID
	writeJSON(w, http.StatusOK, backend.BookmarkResult{
		Message: "북마크가 저장되었습니다.", BookmarkID: s.nextBookmarkID,
	})
}

func (s *Server) handlePopularWelfare(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r, backend.DefaultRecommendLimit, backend.MaxRecommendLimit)
	if !ok {
		return
	}

	s.mu.RLock()
	items := append([]*welfareItem(nil), s.welfare...)
	s.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool { return items[i].Views > items[j].Views })
	list := make([]backend.Welfare, 0, limit)
	for _, item := range items {
		if len(list) == limit {
			break
		}
		list = append(list, item.Welfare)
	}
	writeJSON(w, http.StatusOK, list)
}

// handleRecentWelfare lists what the member opened last. Guests get an
// empty list, not an error.
func (s *Server) handleRecentWelfare(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r, backend.DefaultRecommendLimit, backend.MaxRecommendLimit)
	if !ok {
		return
	}
	list := []backend.Welfare{}
	u := currentUser(r)
	if u == nil {
		writeJSON(w, http.StatusOK, list)
		return
	}

	s.mu.RLock()
	for _, id := range s.recentViews[u.ID] {
		if len(list) == limit {
			break
		}
		if item := s.welfareLocked(id); item != nil {
			list = append(list, item.Welfare)
		}
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, list)
}

// welfareLocked finds a programme. s.mu must be held.
func (s *Server) welfareLocked(id int64) *welfareItem {
	for _, item := range s.welfare {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// recordViewLocked moves id to the front of the user's recent list. s.mu
// must be held.
func (s *Server) recordViewLocked(userID, id int64) {
	recent := []int64{id}
	for _, seen := range s.recentViews[userID] {
		if seen != id {
			recent = append(recent, seen)
		}
	}
	s.recentViews[userID] = recent
}

// ============================================================================
// PAGING
// ============================================================================

// pageParams reads skip and limit, answering 422 when either is out of
// range.
func pageParams(w http.ResponseWriter, r *http.Request, defLimit, maxLimit int) (skip, limit int, ok bool) {
	if raw := r.URL.Query().Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeDetail(w, http.StatusUnprocessableEntity, "skip must be >= 0")
			return 0, 0, false
		}
		skip = n
	}
	limit, ok = limitParam(w, r, defLimit, maxLimit)
	return skip, limit, ok
}

func limitParam(w http.ResponseWriter, r *http.Request, defLimit, maxLimit int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		writeDetail(w, http.StatusUnprocessableEntity, "limit must be between 1 and "+strconv.Itoa(maxLimit))
		return 0, false
	}
	return n, true
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
