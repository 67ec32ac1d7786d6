// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/model"
)

// DefaultCrisisMessage is shown when the server flags a crisis without
// sending its own text.
const DefaultCrisisMessage = "지금 많이 힘드시군요. 혼자 견디지 않으셔도 됩니다. 전문 상담사와 바로 이야기할 수 있어요."

// =============================================================================
// MARKDOWN
// =============================================================================

var (
	rendererMu    sync.Mutex
	rendererCache = map[int]*glamour.TermRenderer{}
)

// renderMarkdown renders a reply for a terminal. It falls back to plain
// wrapped text when the renderer cannot be built.
func renderMarkdown(content string, width int) string {
	rendererMu.Lock()
	r, ok := rendererCache[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			rendererMu.Unlock()
			return WrapText(content, width)
		}
		rendererCache[width] = r
	}
	rendered, err := r.Render(content)
	rendererMu.Unlock()
	if err != nil {
		return WrapText(content, width)
	}
	return strings.Trim(rendered, "\n")
}

// Printer writes chat output, styled for a terminal or plain for pipes.
type Printer struct {
	w        io.Writer
	markdown bool
	width    int
	clock    string
}

// NewPrinter returns a printer for a. Markdown is only rendered on a
// terminal.
func NewPrinter(a *App) *Printer {
	tty := isTerminalWriter(a.Out)
	width := DefaultTerminalWidth
	if tty {
		width = readingWidth()
	}
	return &Printer{
		w:        a.Out,
		markdown: a.Config.UI.Markdown && tty,
		width:    width,
		clock:    a.Config.UI.TimeLayout,
	}
}

// Message prints one message with its speaker and clock time.
func (p *Printer) Message(m model.Message) {
	speaker := m.Role().DisplayName()
	style := AssistantStyle
	if m.IsUser {
		style = UserStyle
	}

	header := style.Render(speaker)
	if clock := m.Clock(p.clock); clock != "" {
		header += " " + DimStyle.Render(clock)
	}
	fmt.Fprintln(p.w, header)

	if !m.IsUser && p.markdown {
		fmt.Fprintln(p.w, renderMarkdown(m.Content, p.width))
	} else {
		fmt.Fprintln(p.w, WrapText(m.Content, p.width))
	}
	fmt.Fprintln(p.w)
}

// Reply prints only the assistant half of a pair; the user already sees
// what they typed.
func (p *Printer) Reply(pair [2]model.Message) {
	p.Message(pair[1])
}

// Transcript prints messages in order.
func (p *Printer) Transcript(msgs []model.Message) {
	for _, m := range msgs {
		p.Message(m)
	}
}

// Crisis prints the hotline notice.
func (p *Printer) Crisis(info *backend.CrisisInfo) {
	fmt.Fprintln(p.w, RenderCrisisPanel(info, p.width))
	fmt.Fprintln(p.w)
}

// RenderCrisisPanel frames the crisis message and hotline in a box. Missing
// fields fall back to the national suicide prevention line.
func RenderCrisisPanel(info *backend.CrisisInfo, width int) string {
	phone := backend.CrisisHotline
	message := DefaultCrisisMessage
	if info != nil {
		if strings.TrimSpace(info.Phone) != "" {
			phone = info.Phone
		}
		if strings.TrimSpace(info.Message) != "" {
			message = info.Message
		}
	}

	inner := width - 6
	if inner < 20 {
		inner = 20
	}
	body := strings.Join([]string{
		CrisisTitleStyle.Render("도움이 필요하신가요?"),
		"",
		WrapText(message, inner),
		"",
		"상담전화 " + HotlineStyle.Render(phone) + " (24시간)",
	}, "\n")
	return CrisisStyle.Render(body)
}
