// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive conversation.
//
// Command: chat [--room ID]
//
// Opens the newest conversation (or a fresh one when there is none) and
// reads messages until /quit or Ctrl+D. A login or logout in another
// terminal is picked up while the chat is open.
//
// Interactive Commands:
//   /new                Open a conversation
//   /list               List conversations
//   /switch N|ID        Switch conversation
//   /rename TITLE       Rename this conversation
//   /delete             Delete this conversation
//   /history            Show this conversation's messages
//   /mode               Show guest/member mode
//   /dismiss            Hide the hotline notice
//   /help               Show commands
//   /quit               Exit
//
// On a terminal, input has history (arrow keys) saved under ~/.neulbom, and
// a message that failed to send is offered again at the next prompt.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/config"
	"github.com/neulbom/neulbom-cli/internal/conversation"
	"github.com/neulbom/neulbom-cli/internal/session"
	"github.com/neulbom/neulbom-cli/internal/storage"
	"github.com/neulbom/neulbom-cli/internal/util"
)

// historyFileName holds REPL input history inside the config directory.
const historyFileName = "chat_history"

// =============================================================================
// INPUT
// =============================================================================

// lineReader is where the REPL reads from.
type lineReader interface {
	// Prompt reads one line. suggestion, when non-empty, is pre-filled.
	Prompt(prompt, suggestion string) (string, error)
	Close() error
}

// ChatCLI provides input history and line editing on a terminal.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor, loading history from historyFile when
// it exists.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// Prompt implements lineReader.
func (c *ChatCLI) Prompt(prompt, suggestion string) (string, error) {
	var input string
	var err error
	if suggestion != "" {
		input, err = c.line.PromptWithSuggestion(prompt, suggestion, -1)
	} else {
		input, err = c.line.Prompt(prompt)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history, owner-only.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() error {
	c.SaveHistory()
	return c.line.Close()
}

// plainInput reads lines from a pipe. Nothing is echoed.
type plainInput struct {
	r *bufio.Reader
}

func (p *plainInput) Prompt(_, _ string) (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil && line == "" {
		return "", io.EOF
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *plainInput) Close() error { return nil }

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state of one interactive chat.
type ChatSession struct {
	app     *App
	ctl     *conversation.Controller
	printer *Printer
	input   lineReader
	echo    bool // print the user's own lines (input is not a terminal)

	changes     <-chan session.ModeChange
	pending     string // text offered again after a failed send
	crisisShown bool
}

// HandleChat runs the interactive chat.
func HandleChat(ctx context.Context, a *App) error {
	p := NewArgParser(a.Args.Raw)

	s := &ChatSession{
		app:     a,
		ctl:     a.Controller,
		printer: NewPrinter(a),
	}

	if err := s.ctl.Load(ctx); err != nil {
		return err
	}
	if ref := p.Flag("room"); ref != "" {
		conv, err := a.Resolve(ctx, ref)
		if err != nil {
			return err
		}
		if err := s.ctl.Select(ctx, conv.ID); err != nil {
			return err
		}
	}

	if isTerminalReader(a.In) && isTerminalWriter(a.Out) {
		historyFile := historyFileName
		if dir, err := config.ConfigDir(); err == nil {
			historyFile = filepath.Join(dir, historyFileName)
		}
		s.input = NewChatCLI(historyFile)
	} else {
		s.input = &plainInput{r: a.lines()}
		s.echo = true
	}
	defer s.input.Close()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	s.watchSession(watchCtx)

	if !a.Args.Quiet {
		s.printWelcome()
	}
	return s.loop(ctx)
}

// watchSession starts following logins made by other processes. Memory
// storage has nothing to watch.
func (s *ChatSession) watchSession(ctx context.Context) {
	path := s.app.StorageFile()
	if path == "" {
		return
	}
	w, err := session.NewWatcher(s.app.Classifier, path, 0, s.app.Logger)
	if err != nil {
		s.app.Logger.Printf("cli: session watcher: %v", err)
		return
	}
	s.changes = w.Changes()
	go w.Run(ctx)
}

func (s *ChatSession) loop(ctx context.Context) error {
	out := s.app.Out
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.applyModeChanges(ctx)

		suggestion := s.pending
		s.pending = ""
		input, err := s.input.Prompt(s.prompt(), suggestion)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				s.printGoodbye()
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := s.handleSlashCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(s.app.Err, "%s %s\n", ErrorStyle.Render("[오류]"), UserMessage(err))
			}
			if !keepGoing {
				s.printGoodbye()
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			s.printGoodbye()
			return nil
		}

		s.send(ctx, input)
	}
}

func (s *ChatSession) prompt() string {
	return "나> "
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// send posts one message. Ctrl+C while waiting abandons the reply and keeps
// the text for the next prompt.
func (s *ChatSession) send(ctx context.Context, text string) {
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if !s.app.Args.Quiet && !s.echo {
		fmt.Fprintln(s.app.Out, DimStyle.Render("늘봄이 답장을 쓰고 있어요..."))
	}

	pair, err := s.ctl.Send(sendCtx, text)
	if err != nil {
		if !errors.Is(err, conversation.ErrEmptyMessage) {
			s.pending = text
		}
		msg := UserMessage(err)
		if errors.Is(err, context.Canceled) {
			msg = "보내기를 취소했습니다."
		}
		fmt.Fprintf(s.app.Err, "%s %s\n", WarningStyle.Render("[!]"), msg)
		return
	}

	state := s.ctl.Thread().Snapshot()
	if s.echo {
		s.printer.Message(pair[0])
	}
	switch {
	case state.Crisis && !s.crisisShown:
		s.printer.Crisis(state.CrisisInfo)
		s.crisisShown = true
	case state.Crisis:
		phone := ""
		if state.CrisisInfo != nil {
			phone = state.CrisisInfo.Phone
		}
		fmt.Fprintln(s.app.Out, DimStyle.Render(crisisReminder(phone)))
	default:
		s.crisisShown = false
	}
	s.printer.Reply(pair)
}

func crisisReminder(phone string) string {
	if phone == "" {
		phone = backend.CrisisHotline
	}
	return "상담전화 " + phone + " · /dismiss 로 안내 닫기"
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs one command. It returns false to exit.
func (s *ChatSession) handleSlashCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	command := strings.ToLower(parts[0])
	rest := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))
	out := s.app.Out

	switch command {
	case "/help", "/h", "/?", "/":
		s.printHelp()

	case "/new", "/n":
		conv, err := s.ctl.NewConversation(ctx)
		if err != nil {
			return true, err
		}
		if rest != "" {
			if err := s.ctl.Rename(ctx, conv.ID, rest); err != nil {
				return true, err
			}
		}
		s.crisisShown = false
		active, _ := s.ctl.Active()
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("새 대화:"), active.Title)
		if active.Fallback {
			fmt.Fprintln(out, WarningStyle.Render("서버에 대화를 만들지 못해 이 기기에 저장했습니다."))
		}

	case "/list", "/ls", "/l":
		convs, err := s.ctl.Refresh(ctx)
		if err != nil {
			return true, err
		}
		active, _ := s.ctl.Active()
		fmt.Fprint(out, storage.FormatConversationList(convs, active.ID))

	case "/switch", "/sw", "/open":
		if rest == "" {
			return true, ErrMissingArgument("N|ID", "/switch 2")
		}
		var err error
		if n, convErr := strconv.Atoi(rest); convErr == nil {
			err = s.ctl.SelectIndex(ctx, n)
		} else {
			err = s.ctl.Select(ctx, rest)
		}
		if err != nil {
			return true, err
		}
		s.crisisShown = false
		s.printThread()

	case "/rename":
		if err := s.ctl.Rename(ctx, "", rest); err != nil {
			return true, err
		}
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("제목을 바꿨습니다:"), rest)

	case "/delete", "/del":
		active, ok := s.ctl.Active()
		if !ok {
			return true, storage.ErrConversationNotFound
		}
		answer, err := s.input.Prompt(fmt.Sprintf("'%s' 대화를 삭제할까요? [y/N] ", active.Title), "")
		if err != nil {
			return true, nil
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" && a != "네" {
			fmt.Fprintln(out, DimStyle.Render("취소했습니다."))
			return true, nil
		}
		if err := s.ctl.Delete(ctx, active.ID); err != nil {
			return true, err
		}
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("삭제했습니다:"), active.Title)

	case "/history", "/hist":
		s.printThread()

	case "/mode", "/whoami":
		fmt.Fprintf(out, "%s %s\n", RenderLabel("모드"), s.app.Classifier.Mode().Label())
		fmt.Fprintf(out, "%s %s\n", RenderLabel("서버"), s.app.Client.BaseURL())
		if active, ok := s.ctl.Active(); ok {
			fmt.Fprintf(out, "%s %s (%s)\n", RenderLabel("대화"), active.Title, active.Origin.Label())
		}

	case "/dismiss":
		s.ctl.Thread().DismissCrisis()
		s.crisisShown = false
		fmt.Fprintln(out, DimStyle.Render("안내를 닫았습니다. 필요하면 언제든 "+backend.CrisisHotline+"에 전화하세요."))

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, NewValidationErrorWithExample("command", command, "unknown command", "/help")
	}
	return true, nil
}

// applyModeChanges reloads the list after a login or logout elsewhere.
func (s *ChatSession) applyModeChanges(ctx context.Context) {
	if s.changes == nil {
		return
	}
	for {
		select {
		case change, ok := <-s.changes:
			if !ok {
				s.changes = nil
				return
			}
			fmt.Fprintf(s.app.Out, "%s %s → %s\n",
				InfoStyle.Render("[세션]"), change.From.Label(), change.To.Label())
			if err := s.ctl.Load(ctx); err != nil {
				fmt.Fprintf(s.app.Err, "%s %s\n", ErrorStyle.Render("[오류]"), UserMessage(err))
				continue
			}
			s.crisisShown = false
			if active, ok := s.ctl.Active(); ok {
				fmt.Fprintf(s.app.Out, "%s %s\n", DimStyle.Render("현재 대화:"), active.Title)
			}
		default:
			return
		}
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *ChatSession) printWelcome() {
	out := s.app.Out
	fmt.Fprintln(out, TitleStyle.Render("늘봄"))
	fmt.Fprintln(out, RenderSeparator(30))
	fmt.Fprintf(out, "%s %s\n", RenderLabel("모드"), s.app.Classifier.Mode().Label())
	if active, ok := s.ctl.Active(); ok {
		fmt.Fprintf(out, "%s %s (%s)\n", RenderLabel("대화"), active.Title, active.Origin.Label())
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, DimStyle.Render("메시지를 입력하고 Enter를 누르세요. 명령어: /help, 종료: /quit"))
	fmt.Fprintln(out)

	if msgs := s.ctl.Thread().Messages(); len(msgs) > 0 {
		s.printer.Transcript(msgs)
	}
}

func (s *ChatSession) printThread() {
	state := s.ctl.Thread().Snapshot()
	out := s.app.Out
	fmt.Fprintf(out, "%s %s\n", TitleStyle.Render(state.Conversation.Title),
		DimStyle.Render("("+state.Conversation.Origin.Label()+")"))
	if len(state.Messages) == 0 {
		fmt.Fprintln(out, DimStyle.Render("아직 메시지가 없습니다."))
		return
	}
	s.printer.Transcript(state.Messages)
}

func (s *ChatSession) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/new [제목]", "새 대화"},
		{"/list", "대화 목록"},
		{"/switch N|ID", "대화 바꾸기"},
		{"/rename 제목", "제목 바꾸기"},
		{"/delete", "이 대화 삭제"},
		{"/history", "이 대화의 메시지"},
		{"/mode", "손님/회원 모드"},
		{"/dismiss", "상담전화 안내 닫기"},
		{"/quit", "종료"},
	}
	for _, c := range commands {
		fmt.Fprintf(s.app.Out, "  %s %s\n", PromptStyle.Render(util.PadWidth(c.cmd, 16)), c.desc)
	}
}

func (s *ChatSession) printGoodbye() {
	if s.app.Args.Quiet {
		return
	}
	fmt.Fprintln(s.app.Out, DimStyle.Render("대화를 마칩니다. 필요할 때 언제든 다시 찾아 주세요."))
	if s.ctl.Thread().Snapshot().Crisis {
		fmt.Fprintln(s.app.Out, DimStyle.Render(crisisReminder("")))
	}
}
