// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// send.go - One-shot message.
//
// Command: send TEXT [--room ID]
//
// Without --room the message opens a conversation: a guest gets one on this
// device titled after the message, a member gets whatever room the server
// assigns. TEXT may also come from stdin with "-".
//
// Examples:
//   neulbom send "요즘 잠을 잘 못 자요"
//   neulbom send --room 2 "어제 얘기 이어서 할게요"
//   echo "안녕하세요" | neulbom --json send -

package cli

import (
	"context"
	"io"
	"strings"
)

// HandleSend sends one message and prints the reply.
func HandleSend(ctx context.Context, a *App) error {
	p := NewArgParser(a.Args.Raw)

	text := JoinPositionalArgs(p, 0)
	if text == "-" {
		data, err := io.ReadAll(a.lines())
		if err != nil {
			return WrapError(err, "failed to read message")
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrMissingArgument("TEXT", `neulbom send "안녕하세요"`)
	}

	if ref := p.Flag("room"); ref != "" {
		conv, err := a.Resolve(ctx, ref)
		if err != nil {
			return err
		}
		if _, err := a.Controller.Refresh(ctx); err != nil {
			return err
		}
		if err := a.Controller.Select(ctx, conv.ID); err != nil {
			return err
		}
	}

	pair, err := a.Controller.Send(ctx, text)
	if err != nil {
		return err
	}
	state := a.Controller.Thread().Snapshot()

	if a.Args.JSON {
		data := SendData{
			Conversation: conversationData(state.Conversation),
			Mode:         a.Repository.Mode().String(),
			Reply:        pair[1].Content,
			IsCrisis:     state.Crisis,
		}
		if state.CrisisInfo != nil {
			data.Hotline = state.CrisisInfo.Phone
			data.CrisisText = state.CrisisInfo.Message
		}
		return NewJSONResponse("send", data).Print(a.Out)
	}

	printer := NewPrinter(a)
	if state.Crisis {
		printer.Crisis(state.CrisisInfo)
	}
	printer.Reply(pair)
	if state.Conversation.ID != "" && !a.Args.Quiet {
		a.say("%s\n", DimStyle.Render("대화: "+state.Conversation.Title+" ("+state.Conversation.ID+")"))
	}
	return nil
}
