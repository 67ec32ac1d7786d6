// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for neulbom.
//
// Interactive terminals get colors, prompts and markdown. Piped output gets
// plain text, and NO_COLOR is respected everywhere.

package cli

import (
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/neulbom/neulbom-cli/internal/util"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// isTerminalReader reports whether r is the process's terminal stdin.
func isTerminalReader(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && f == os.Stdin && term.IsTerminal(int(f.Fd()))
}

// isTerminalWriter reports whether w is the process's terminal stdout.
func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && f == os.Stdout && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// TERMINAL WIDTH
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width we'll use for wrapping
	MinTerminalWidth = 40

	// MaxReadingWidth caps wrapping on very wide terminals
	MaxReadingWidth = 100
)

// GetTerminalWidth returns the current terminal width.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// readingWidth is the wrap width for replies.
func readingWidth() int {
	w := GetTerminalWidth() - 4
	if w > MaxReadingWidth {
		w = MaxReadingWidth
	}
	return w
}

// WrapText wraps text to maxWidth terminal cells. Hangul and other wide
// characters count as two cells. Existing newlines are kept, and a line
// without spaces longer than maxWidth is broken between characters.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = GetTerminalWidth()
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		if util.StringWidth(line) <= maxWidth {
			result.WriteString(line)
			continue
		}

		words := strings.Fields(line)
		current := ""
		for _, word := range words {
			for util.StringWidth(word) > maxWidth {
				head, rest := splitWidth(word, maxWidth)
				if current != "" {
					result.WriteString(current + "\n")
					current = ""
				}
				result.WriteString(head + "\n")
				word = rest
			}
			switch {
			case current == "":
				current = word
			case util.StringWidth(current)+1+util.StringWidth(word) <= maxWidth:
				current += " " + word
			default:
				result.WriteString(current + "\n")
				current = word
			}
		}
		result.WriteString(current)
	}
	return result.String()
}

// splitWidth cuts s after at most width cells, always taking at least one
// rune so wrapping makes progress.
func splitWidth(s string, width int) (string, string) {
	head := runewidth.Truncate(s, width, "")
	if head == "" {
		_, size := utf8.DecodeRuneInString(s)
		head = s[:size]
	}
	return head, s[len(head):]
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

var (
	// colorsEnabled caches the color support decision
	colorsEnabled     bool
	colorsEnabledOnce sync.Once
)

// ColorsEnabled returns true if colored output should be used.
// See https://no-color.org/ for the NO_COLOR specification.
func ColorsEnabled() bool {
	colorsEnabledOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			colorsEnabled = false
			return
		}
		if os.Getenv("FORCE_COLOR") != "" {
			colorsEnabled = true
			return
		}
		colorsEnabled = IsStdoutTTY()
	})
	return colorsEnabled
}

// GetColorProfile returns the appropriate termenv color profile.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}
