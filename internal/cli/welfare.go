// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// welfare.go - Welfare programme lookup.
//
// Command: welfare [subcommand]
//
// Subcommands:
//   search [KEYWORD] [--region R] [--age N] [--care-target T] [--limit N]
//   show ID                    Programme details (counts as a view)
//   bookmark ID                Save to the member's bookmarks
//   popular [--limit N]        Most viewed programmes
//   recent [--limit N]         Programmes the member opened last
//
// Search and show work for guests. A member's profile fills in the
// filters a search leaves out.

package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/conversation"
	"github.com/neulbom/neulbom-cli/internal/util"
)

// HandleWelfare dispatches the welfare subcommands.
func HandleWelfare(ctx context.Context, a *App) error {
	p := NewArgParser(a.Args.Raw)

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "search", "find":
		age := 0
		if raw := p.Flag("age"); raw != "" {
			n, err := ParseIntWithValidation(raw, "age")
			if err != nil {
				return NewValidationError("age", raw, err.Error())
			}
			age = n
		}
		return welfareSearch(ctx, a, backend.WelfareQuery{
			Keyword:    strings.TrimSpace(JoinPositionalArgs(p, 1)),
			Region:     p.Flag("region"),
			Age:        age,
			CareTarget: p.Flag("care-target"),
			Limit:      p.FlagIntOrDefault("limit", backend.DefaultWelfareLimit),
		})
	case "show", "cat":
		return welfareShow(ctx, a, p.Positional(1))
	case "bookmark", "save":
		return welfareBookmark(ctx, a, p.Positional(1))
	case "popular":
		return welfareRecommended(ctx, a, "welfare popular", p.FlagIntOrDefault("limit", backend.DefaultRecommendLimit))
	case "recent":
		return welfareRecommended(ctx, a, "welfare recent", p.FlagIntOrDefault("limit", backend.DefaultRecommendLimit))
	default:
		return NewValidationErrorWithExample("subcommand", sub,
			"unknown welfare subcommand", "neulbom welfare search 돌봄")
	}
}

func welfareSearch(ctx context.Context, a *App, q backend.WelfareQuery) error {
	list, err := a.Client.SearchWelfare(ctx, q)
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("welfare search", list).Print(a.Out)
	}
	if !a.Args.Quiet {
		fmt.Fprintf(a.Out, "%s %s\n\n", TitleStyle.Render("복지 정보"), DimStyle.Render(fmt.Sprintf("(%d건)", len(list))))
	}
	fmt.Fprint(a.Out, formatWelfareTable(list))
	return nil
}

func welfareShow(ctx context.Context, a *App, ref string) error {
	id, err := serverID(ref, "neulbom welfare show 3")
	if err != nil {
		return err
	}
	d, err := a.Client.WelfareDetail(ctx, id)
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("welfare show", d).Print(a.Out)
	}

	fmt.Fprintln(a.Out, TitleStyle.Render(d.Title))
	fmt.Fprintln(a.Out, RenderSeparator())
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("지역"), orDash(d.Region))
	fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("신청 기간"), d.Period())
	if d.CareTarget != "" {
		fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("대상"), d.CareTarget)
	}
	if ages := ageRange(d.AgeMin, d.AgeMax); ages != "" {
		fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("나이"), ages)
	}
	if d.SourceLink != "" {
		fmt.Fprintf(a.Out, "%s %s\n", RenderLabel("출처"), d.SourceLink)
	}
	body := d.FullText
	if body == "" {
		body = d.Summary
	}
	if body != "" {
		fmt.Fprintln(a.Out)
		fmt.Fprintln(a.Out, WrapText(body, readingWidth()))
	}
	return nil
}

func welfareBookmark(ctx context.Context, a *App, ref string) error {
	id, err := serverID(ref, "neulbom welfare bookmark 3")
	if err != nil {
		return err
	}
	if !a.Classifier.IsMember() {
		return conversation.ErrLoginRequired
	}
	res, err := a.Client.BookmarkWelfare(ctx, id)
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("welfare bookmark", res).Print(a.Out)
	}
	if res.AlreadyBookmarked {
		fmt.Fprintln(a.Out, DimStyle.Render("이미 북마크한 복지 정보입니다."))
		return nil
	}
	fmt.Fprintln(a.Out, SuccessStyle.Render("북마크에 저장했습니다."))
	return nil
}

func welfareRecommended(ctx context.Context, a *App, command string, limit int) error {
	var (
		list []backend.Welfare
		err  error
	)
	if command == "welfare recent" {
		list, err = a.Client.RecentWelfare(ctx, limit)
	} else {
		list, err = a.Client.PopularWelfare(ctx, limit)
	}
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse(command, list).Print(a.Out)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.Out, DimStyle.Render("표시할 복지 정보가 없습니다."))
		return nil
	}
	fmt.Fprint(a.Out, formatWelfareTable(list))
	return nil
}

func serverID(ref, example string) (int64, error) {
	if ref == "" {
		return 0, ErrMissingArgument("ID", example)
	}
	n, err := ParseIntWithValidation(ref, "ID")
	if err != nil {
		return 0, NewValidationErrorWithExample("ID", ref, err.Error(), example)
	}
	return int64(n), nil
}

func formatWelfareTable(list []backend.Welfare) string {
	if len(list) == 0 {
		return DimStyle.Render("검색 결과가 없습니다.") + "\n"
	}
	var sb strings.Builder
	for _, w := range list {
		id := util.PadWidth(strconv.FormatInt(w.ID, 10), 5)
		title := util.PadWidth(util.TruncateWidth(w.Title, 32), 32)
		fmt.Fprintf(&sb, "%s %s %s %s\n", DimStyle.Render(id), title,
			util.PadWidth(util.TruncateWidth(orDash(w.Region), 6), 6), DimStyle.Render(w.Period()))
	}
	return sb.String()
}

func ageRange(lo, hi *int) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("만 %d~%d세", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("만 %d세 이상", *lo)
	case hi != nil:
		return fmt.Sprintf("만 %d세 이하", *hi)
	}
	return ""
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
