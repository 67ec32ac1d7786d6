// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// posts.go - Community board.
//
// Command: posts [subcommand]
//
// Subcommands:
//   list [--category info|counsel|free] [--popular] [--limit N]
//   show ID                    Post with its comments
//   new --title T [--category C] TEXT|-
//   edit ID [--title T] [--category C] [TEXT|-]
//   delete ID [--yes]
//   like ID                    Like, or take the like back
//   bookmark ID                Bookmark, or remove the bookmark
//   comment ID TEXT|-
//
// The board is for members only. Posts appear under an anonymous name.

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/conversation"
	"github.com/neulbom/neulbom-cli/internal/util"
)

// postPreviewRunes is how much of a post the list shows.
const postPreviewRunes = 40

// HandlePosts dispatches the posts subcommands.
func HandlePosts(ctx context.Context, a *App) error {
	p := NewArgParser(a.Args.Raw, "yes", "y", "popular")
	if !a.Classifier.IsMember() {
		return conversation.ErrLoginRequired
	}

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "list", "ls":
		category, err := categoryFlag(p)
		if err != nil {
			return err
		}
		return postsList(ctx, a, backend.PostQuery{
			Category: category,
			Popular:  p.BoolFlag("popular"),
			Limit:    p.FlagIntOrDefault("limit", backend.DefaultPostLimit),
		})
	case "show", "cat":
		return postsShow(ctx, a, p.Positional(1))
	case "new", "write":
		return postsNew(ctx, a, p)
	case "edit":
		return postsEdit(ctx, a, p)
	case "delete", "rm":
		return postsDelete(ctx, a, p.Positional(1), p.BoolFlag("yes") || p.BoolFlag("y"))
	case "like":
		return postsToggle(ctx, a, "posts like", p.Positional(1))
	case "bookmark":
		return postsToggle(ctx, a, "posts bookmark", p.Positional(1))
	case "comment", "reply":
		return postsComment(ctx, a, p)
	default:
		return NewValidationErrorWithExample("subcommand", sub,
			"unknown posts subcommand", "neulbom posts list --category counsel")
	}
}

func postsList(ctx context.Context, a *App, q backend.PostQuery) error {
	posts, err := a.Client.ListPosts(ctx, q)
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("posts list", posts).Print(a.Out)
	}

	if !a.Args.Quiet {
		board := "전체"
		if q.Category != "" {
			board = q.Category.Label()
		}
		fmt.Fprintf(a.Out, "%s %s\n\n", TitleStyle.Render("커뮤니티"), DimStyle.Render("("+board+")"))
	}
	if len(posts) == 0 {
		fmt.Fprintln(a.Out, DimStyle.Render("아직 게시글이 없습니다."))
		return nil
	}
	for _, post := range posts {
		id := util.PadWidth(strconv.FormatInt(post.ID, 10), 5)
		fmt.Fprintf(a.Out, "%s %s %s %s\n", DimStyle.Render(id),
			InfoStyle.Render("["+post.Board().Label()+"]"), post.Title,
			DimStyle.Render(fmt.Sprintf("♥%d 💬%d · %s", post.LikeCount, post.CommentCount, formatCreated(post.Created()))))
		if preview := post.Preview(postPreviewRunes); preview != "" {
			fmt.Fprintf(a.Out, "      %s\n", DimStyle.Render(preview))
		}
	}
	return nil
}

func postsShow(ctx context.Context, a *App, ref string) error {
	id, err := serverID(ref, "neulbom posts show 3")
	if err != nil {
		return err
	}
	post, err := a.Client.GetPost(ctx, id)
	if err != nil {
		return err
	}
	comments, err := a.Client.Comments(ctx, id)
	if err != nil {
		return err
	}

	if a.Args.JSON {
		return NewJSONResponse("posts show", PostData{Post: *post, Comments: comments}).Print(a.Out)
	}

	fmt.Fprintf(a.Out, "%s %s\n", InfoStyle.Render("["+post.Board().Label()+"]"), TitleStyle.Render(post.Title))
	fmt.Fprintln(a.Out, DimStyle.Render(fmt.Sprintf("%s · %s · 조회 %d · ♥%d",
		orDash(post.AnonymousID), formatCreated(post.Created()), post.ViewCount, post.LikeCount)))
	fmt.Fprintln(a.Out, RenderSeparator())
	fmt.Fprintln(a.Out, WrapText(post.Content, readingWidth()))

	if len(comments) > 0 {
		fmt.Fprintln(a.Out)
		fmt.Fprintln(a.Out, RenderLabel(fmt.Sprintf("댓글 %d", len(comments))))
		for _, c := range comments {
			fmt.Fprintf(a.Out, "  %s %s\n", DimStyle.Render(orDash(c.AnonymousID)+":"), c.Content)
		}
	}
	return nil
}

func postsNew(ctx context.Context, a *App, p *ArgParser) error {
	title := strings.TrimSpace(p.Flag("title"))
	if title == "" {
		return ErrMissingArgument("title", `neulbom posts new --title "제목" "내용"`)
	}
	category, err := categoryFlag(p)
	if err != nil {
		return err
	}
	if category == "" {
		category = backend.CategoryFree
	}
	content, err := a.textArg(p, 1)
	if err != nil {
		return err
	}
	if content == "" {
		return ErrMissingArgument("TEXT", `neulbom posts new --title "제목" "내용"`)
	}

	post, err := a.Client.CreatePost(ctx, backend.NewPostInput(title, content, category))
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("posts new", post).Print(a.Out)
	}
	fmt.Fprintf(a.Out, "%s %s %s\n", SuccessStyle.Render("게시글을 올렸습니다:"), post.Title,
		DimStyle.Render("#"+strconv.FormatInt(post.ID, 10)))
	return nil
}

// postsEdit replaces what was given and keeps the rest of the post.
func postsEdit(ctx context.Context, a *App, p *ArgParser) error {
	id, err := serverID(p.Positional(1), `neulbom posts edit 3 --title "새 제목"`)
	if err != nil {
		return err
	}
	category, err := categoryFlag(p)
	if err != nil {
		return err
	}
	content, err := a.textArg(p, 2)
	if err != nil {
		return err
	}

	current, err := a.Client.GetPost(ctx, id)
	if err != nil {
		return err
	}
	in := backend.PostInput{Title: current.Title, Content: current.Content, Category: current.Category}
	if title := strings.TrimSpace(p.Flag("title")); title != "" {
		in.Title = title
	}
	if content != "" {
		in.Content = content
	}
	if category != "" {
		in.Category = category.Wire()
	}

	post, err := a.Client.UpdatePost(ctx, id, in)
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("posts edit", post).Print(a.Out)
	}
	fmt.Fprintf(a.Out, "%s %s\n", SuccessStyle.Render("수정했습니다:"), post.Title)
	return nil
}

func postsDelete(ctx context.Context, a *App, ref string, yes bool) error {
	id, err := serverID(ref, "neulbom posts delete 3 --yes")
	if err != nil {
		return err
	}
	if !yes && a.Args.JSON {
		return NewValidationErrorWithExample("yes", "", "--yes is required with --json",
			"neulbom --json posts delete "+ref+" --yes")
	}
	if !yes && !a.PromptYesNo(fmt.Sprintf("게시글 #%d을 삭제할까요?", id)) {
		a.say("%s\n", DimStyle.Render("취소했습니다."))
		return nil
	}

	if err := a.Client.DeletePost(ctx, id); err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("posts delete", map[string]int64{"id": id}).Print(a.Out)
	}
	fmt.Fprintln(a.Out, SuccessStyle.Render("삭제했습니다."))
	return nil
}

func postsToggle(ctx context.Context, a *App, command, ref string) error {
	id, err := serverID(ref, "neulbom "+command+" 3")
	if err != nil {
		return err
	}
	var res *backend.ToggleResult
	if command == "posts like" {
		res, err = a.Client.ToggleLike(ctx, id)
	} else {
		res, err = a.Client.ToggleBookmark(ctx, id)
	}
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse(command, res).Print(a.Out)
	}
	style := DimStyle
	if res.On() {
		style = SuccessStyle
	}
	fmt.Fprintln(a.Out, style.Render(res.Message))
	return nil
}

func postsComment(ctx context.Context, a *App, p *ArgParser) error {
	id, err := serverID(p.Positional(1), `neulbom posts comment 3 "힘내세요"`)
	if err != nil {
		return err
	}
	content, err := a.textArg(p, 2)
	if err != nil {
		return err
	}
	if content == "" {
		return ErrMissingArgument("TEXT", `neulbom posts comment 3 "힘내세요"`)
	}

	c, err := a.Client.CreateComment(ctx, id, content)
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("posts comment", c).Print(a.Out)
	}
	fmt.Fprintln(a.Out, SuccessStyle.Render("댓글을 남겼습니다."))
	return nil
}

func categoryFlag(p *ArgParser) (backend.PostCategory, error) {
	raw := p.Flag("category")
	c, err := backend.ParsePostCategory(raw)
	if err != nil {
		return "", NewValidationErrorWithExample("category", raw, err.Error(),
			"neulbom posts list --category counsel")
	}
	return c, nil
}

// textArg joins the positionals from start, or reads stdin for "-".
func (a *App) textArg(p *ArgParser, start int) (string, error) {
	text := JoinPositionalArgs(p, start)
	if text == "-" {
		data, err := io.ReadAll(a.lines())
		if err != nil {
			return "", WrapError(err, "failed to read text")
		}
		text = string(data)
	}
	return strings.TrimSpace(text), nil
}
