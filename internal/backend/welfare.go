// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Welfare list limits accepted by the server.
const (
	DefaultWelfareLimit   = 20
	MaxWelfareLimit       = 100
	DefaultRecommendLimit = 10
	MaxRecommendLimit     = 50
)

// =============================================================================
// TYPES
// =============================================================================

// Welfare is one entry of a welfare programme list.
type Welfare struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Summary    string `json:"summary,omitempty"`
	SourceLink string `json:"source_link,omitempty"`
	Region     string `json:"region,omitempty"`
	ApplyStart string `json:"apply_start,omitempty"`
	ApplyEnd   string `json:"apply_end,omitempty"`
	IsAlways   bool   `json:"is_always"`
	Status     string `json:"status"`
}

// Period renders the application window.
func (w Welfare) Period() string {
	switch {
	case w.IsAlways:
		return "상시"
	case w.ApplyStart == "" && w.ApplyEnd == "":
		return "-"
	default:
		return w.ApplyStart + " ~ " + w.ApplyEnd
	}
}

// WelfareDetail is the GET /api/welfare/{id} payload.
type WelfareDetail struct {
	Welfare
	FullText   string `json:"full_text,omitempty"`
	AgeMin     *int   `json:"age_min,omitempty"`
	AgeMax     *int   `json:"age_max,omitempty"`
	CareTarget string `json:"care_target,omitempty"`
	Category   string `json:"category,omitempty"`
}

// WelfareQuery filters a welfare search. Zero fields are not sent; a
// member's profile fills in what is left out.
type WelfareQuery struct {
	Keyword    string
	Region     string
	Age        int
	CareTarget string
	Skip       int
	Limit      int
}

func (q WelfareQuery) values() url.Values {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	if q.Region != "" {
		v.Set("region", q.Region)
	}
	if q.Age > 0 {
		v.Set("age", strconv.Itoa(q.Age))
	}
	if q.CareTarget != "" {
		v.Set("care_target", q.CareTarget)
	}
	if q.Skip > 0 {
		v.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(clamp(q.Limit, 1, MaxWelfareLimit)))
	}
	return v
}

// BookmarkResult is the reply to a welfare bookmark.
type BookmarkResult struct {
	Message           string `json:"message"`
	BookmarkID        int64  `json:"bookmark_id"`
	AlreadyBookmarked bool   `json:"already_bookmarked"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// SearchWelfare searches welfare programmes. Entries without a title are
// dropped.
func (c *Client) SearchWelfare(ctx context.Context, q WelfareQuery) ([]Welfare, error) {
	var list []Welfare
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/welfare/search", query: q.values(), out: &list})
	if err != nil {
		return nil, err
	}
	return tidyWelfare(list), nil
}

// WelfareDetail returns one programme.
func (c *Client) WelfareDetail(ctx context.Context, id int64) (*WelfareDetail, error) {
	var d WelfareDetail
	if err := c.do(ctx, request{method: http.MethodGet, path: welfarePath(id), out: &d}); err != nil {
		return nil, err
	}
	d.Summary = CleanSummary(d.Summary)
	d.FullText = CleanSummary(d.FullText)
	return &d, nil
}

// BookmarkWelfare saves a programme to the member's bookmarks. Bookmarking
// twice is not an error.
func (c *Client) BookmarkWelfare(ctx context.Context, id int64) (*BookmarkResult, error) {
	var res BookmarkResult
	err := c.do(ctx, request{method: http.MethodPost, path: welfarePath(id) + "/bookmark", out: &res})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RecentWelfare returns the programmes the member opened last. Guests and
// rejected credentials get an empty list.
func (c *Client) RecentWelfare(ctx context.Context, limit int) ([]Welfare, error) {
	list, err := c.recommended(ctx, "recent", limit)
	if err != nil && IsAuthError(err) {
		return []Welfare{}, nil
	}
	return list, err
}

// PopularWelfare returns the most viewed programmes.
func (c *Client) PopularWelfare(ctx context.Context, limit int) ([]Welfare, error) {
	return c.recommended(ctx, "popular", limit)
}

func (c *Client) recommended(ctx context.Context, kind string, limit int) ([]Welfare, error) {
	if limit <= 0 {
		limit = DefaultRecommendLimit
	}
	query := url.Values{"limit": {strconv.Itoa(clamp(limit, 1, MaxRecommendLimit))}}

	var list []Welfare
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/welfare/recommend/" + kind, query: query, out: &list})
	if err != nil {
		return nil, err
	}
	return tidyWelfare(list), nil
}

func welfarePath(id int64) string {
	return "/api/welfare/" + strconv.FormatInt(id, 10)
}

// =============================================================================
// SUMMARY CLEANUP
// =============================================================================

// chatterPatterns are chatbot phrases that leak into crawled summaries.
var chatterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)말씀해주셔서\s*감사해요\.?\s*더\s*자세히\s*들려주실\s*수\s*있나요\.?`),
	regexp.MustCompile(`(?i)말씀해주셔서\s*감사해요\.?`),
	regexp.MustCompile(`(?i)더\s*자세히\s*들려주실\s*수\s*있나요\.?`),
	regexp.MustCompile(`(?i)자세히\s*들려주실\s*수\s*있나요\.?`),
	regexp.MustCompile(`(?i)무엇을\s*도와드릴까요\.?`),
	regexp.MustCompile(`(?i)어떻게\s*도와드릴까요\.?`),
	regexp.MustCompile(`(?i)무엇을\s*도와드릴\s*수\s*있을까요\.?`),
	regexp.MustCompile(`(?i)도와드릴\s*수\s*있어요\.?`),
	regexp.MustCompile(`(?i)알려주세요\.?`),
	regexp.MustCompile(`(?i)문의해주세요\.?`),
	regexp.MustCompile(`(?i)감사해요\.?`),
}

var (
	runsOfSpace = regexp.MustCompile(`\s+`)
	edgePunct   = regexp.MustCompile(`^[.,\s]+|[.,\s]+$`)
)

// CleanSummary strips chatbot phrasing from a programme summary and tidies
// the whitespace left behind.
func CleanSummary(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, re := range chatterPatterns {
		s = re.ReplaceAllString(s, "")
	}
	s = strings.TrimSpace(runsOfSpace.ReplaceAllString(s, " "))
	return strings.TrimSpace(edgePunct.ReplaceAllString(s, ""))
}

func tidyWelfare(list []Welfare) []Welfare {
	out := make([]Welfare, 0, len(list))
	for _, w := range list {
		if strings.TrimSpace(w.Title) == "" {
			continue
		}
		w.Summary = CleanSummary(w.Summary)
		out = append(out, w)
	}
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
