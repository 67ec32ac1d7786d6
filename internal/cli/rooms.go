// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// rooms.go - Conversation management.
//
// Command: rooms [subcommand]
//
// Subcommands:
//   list (default)             Conversations visible in the current mode
//   new [TITLE]                Open a conversation
//   rename ID TITLE            Rename
//   delete ID [--yes]          Delete (asks first unless --yes)
//   show ID                    Print messages
//   search QUERY               Search conversations kept on this device
//   export ID [--format md|json] [--output FILE]
//
// Members see their server rooms, followed by conversations kept on this
// device because the server could not open a room. Guests see the
// conversations kept on this device.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neulbom/neulbom-cli/internal/model"
	"github.com/neulbom/neulbom-cli/internal/session"
	"github.com/neulbom/neulbom-cli/internal/storage"
	"github.com/neulbom/neulbom-cli/internal/util"
)

// errLocalOnly is returned for operations that need the message history
// only this device keeps.
var errLocalOnly = errors.New("이 작업은 이 기기에 저장된 대화에서만 할 수 있습니다")

// HandleRooms dispatches the rooms subcommands.
func HandleRooms(ctx context.Context, a *App) error {
	p := NewArgParser(a.Args.Raw, "yes", "y")

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "list", "ls":
		return roomsList(ctx, a)
	case "new", "create":
		return roomsNew(ctx, a, JoinPositionalArgs(p, 1))
	case "rename", "mv":
		return roomsRename(ctx, a, p.Positional(1), JoinPositionalArgs(p, 2))
	case "delete", "rm":
		return roomsDelete(ctx, a, p.Positional(1), p.BoolFlag("yes") || p.BoolFlag("y"))
	case "show", "cat":
		return roomsShow(ctx, a, p.Positional(1))
	case "search", "find":
		return roomsSearch(a, JoinPositionalArgs(p, 1))
	case "export":
		return roomsExport(ctx, a, p.Positional(1), p.FlagOrDefault("format", "md"), p.Flag("output"))
	default:
		return NewValidationErrorWithExample("subcommand", sub,
			"unknown rooms subcommand", "neulbom rooms list")
	}
}

func roomsList(ctx context.Context, a *App) error {
	convs, err := a.Repository.List(ctx)
	if err != nil {
		return err
	}
	mode := a.Repository.Mode()

	if a.Args.JSON {
		data := RoomsData{Mode: mode.String(), Conversations: make([]ConversationData, 0, len(convs))}
		for _, c := range convs {
			data.Conversations = append(data.Conversations, conversationData(c))
		}
		return NewJSONResponse("rooms list", data).Print(a.Out)
	}

	if !a.Args.Quiet {
		fmt.Fprintf(a.Out, "%s %s\n\n", TitleStyle.Render("대화 목록"), DimStyle.Render("("+mode.Label()+")"))
	}
	fmt.Fprint(a.Out, formatConversationTable(convs))
	return nil
}

func roomsNew(ctx context.Context, a *App, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = a.Config.Chat.DefaultTitle
	}
	conv, err := a.Repository.Create(ctx, title)
	if err != nil {
		return err
	}

	if a.Args.JSON {
		return NewJSONResponse("rooms new", conversationData(conv)).Print(a.Out)
	}
	fmt.Fprintf(a.Out, "%s %s %s\n", SuccessStyle.Render("대화를 만들었습니다:"), conv.Title, DimStyle.Render(conv.ID))
	if conv.Fallback {
		a.say("%s\n", WarningStyle.Render("서버에 대화를 만들지 못해 이 기기에 저장했습니다."))
	}
	return nil
}

func roomsRename(ctx context.Context, a *App, ref, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrMissingArgument("TITLE", "neulbom rooms rename 1 새 제목")
	}
	conv, err := a.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if err := a.Repository.Rename(ctx, conv, title); err != nil {
		return err
	}

	if a.Args.JSON {
		conv.Title = title
		return NewJSONResponse("rooms rename", conversationData(conv)).Print(a.Out)
	}
	fmt.Fprintf(a.Out, "%s %s\n", SuccessStyle.Render("제목을 바꿨습니다:"), title)
	return nil
}

func roomsDelete(ctx context.Context, a *App, ref string, yes bool) error {
	conv, err := a.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	if !yes && !a.Args.JSON {
		if !a.PromptYesNo(fmt.Sprintf("'%s' 대화를 삭제할까요?", conv.Title)) {
			a.say("%s\n", DimStyle.Render("취소했습니다."))
			return nil
		}
	}
	if !yes && a.Args.JSON {
		return NewValidationErrorWithExample("yes", "", "--yes is required with --json",
			"neulbom --json rooms delete "+conv.ID+" --yes")
	}

	if err := a.Repository.Delete(ctx, conv); err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("rooms delete", conversationData(conv)).Print(a.Out)
	}
	fmt.Fprintf(a.Out, "%s %s\n", SuccessStyle.Render("삭제했습니다:"), conv.Title)
	return nil
}

func roomsShow(ctx context.Context, a *App, ref string) error {
	conv, err := a.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	msgs, err := a.Repository.Messages(ctx, conv)
	if err != nil {
		return err
	}

	if a.Args.JSON {
		return NewJSONResponse("rooms show", ShowData{
			Conversation: conversationData(conv),
			Messages:     msgs,
		}).Print(a.Out)
	}

	fmt.Fprintf(a.Out, "%s %s\n", TitleStyle.Render(conv.Title), DimStyle.Render("("+conv.Origin.Label()+")"))
	fmt.Fprintln(a.Out, RenderSeparator())
	if len(msgs) == 0 {
		if conv.IsLocal() {
			fmt.Fprintln(a.Out, DimStyle.Render("아직 메시지가 없습니다."))
		} else {
			fmt.Fprintln(a.Out, DimStyle.Render("서버 대화의 지난 메시지는 불러올 수 없습니다."))
		}
		return nil
	}
	NewPrinter(a).Transcript(msgs)
	return nil
}

func roomsSearch(a *App, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrMissingArgument("QUERY", "neulbom rooms search 불안")
	}
	results := a.Conversations.Search(query)
	if a.Repository.Mode() == session.ModeMember {
		// members only see the local conversations their list shows
		visible := results[:0]
		for _, c := range results {
			if c.Fallback {
				visible = append(visible, c)
			}
		}
		results = visible
	}

	if a.Args.JSON {
		data := make([]ConversationData, 0, len(results))
		for _, c := range results {
			data = append(data, conversationData(c))
		}
		return NewJSONResponse("rooms search", data).Print(a.Out)
	}
	fmt.Fprint(a.Out, formatConversationTable(results))
	return nil
}

func roomsExport(ctx context.Context, a *App, ref, format, output string) error {
	conv, err := a.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	if !conv.IsLocal() {
		return errLocalOnly
	}
	stored, err := a.Conversations.Get(conv.ID)
	if err != nil {
		return err
	}

	var data []byte
	switch strings.ToLower(format) {
	case "md", "markdown":
		data = []byte(stored.ExportMarkdown(a.Config.UI.TimeLayout))
	case "json":
		if data, err = stored.ExportJSON(); err != nil {
			return err
		}
		data = append(data, '\n')
	default:
		return NewValidationErrorWithExample("format", format,
			"unsupported export format (md or json)", "neulbom rooms export 1 --format json")
	}

	if output == "" || output == "-" {
		_, err := a.Out.Write(data)
		return err
	}
	if err := util.AtomicWriteFile(output, data, 0600); err != nil {
		return WrapError(err, "failed to write export")
	}
	a.say("%s %s\n", SuccessStyle.Render("내보냈습니다:"), output)
	return nil
}

func formatConversationTable(convs []model.Conversation) string {
	return storage.FormatConversationList(convs, "")
}
