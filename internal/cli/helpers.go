// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Prompts and small formatting helpers shared by commands.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// errNoInput is returned when stdin ends before an answer was read.
var errNoInput = errors.New("no input")

// lines returns the app's buffered stdin. One reader is shared so
// consecutive prompts never lose buffered input.
func (a *App) lines() *bufio.Reader {
	if a.reader == nil {
		in := a.In
		if in == nil {
			in = os.Stdin
		}
		a.reader = bufio.NewReader(in)
	}
	return a.reader
}

// promptInput asks for one line on stderr and returns it trimmed.
func (a *App) promptInput(prompt string) (string, error) {
	fmt.Fprint(a.Err, prompt)
	line, err := a.lines().ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errNoInput
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads a secret without echo on a terminal. From a pipe it
// reads one line, which is what --password-stdin relies on.
func (a *App) readPassword(prompt string) (string, error) {
	if a.reader == nil && isTerminalReader(a.In) {
		fmt.Fprint(a.Err, prompt)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(a.Err)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := a.lines().ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errNoInput
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PromptYesNo asks a yes/no question. Anything but y/yes is no, including
// a closed stdin.
func (a *App) PromptYesNo(question string) bool {
	answer, err := a.promptInput(question + " [y/N]: ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes" || answer == "네" || answer == "예"
}

// formatCreated renders a conversation timestamp in local time.
func formatCreated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// say prints human-readable chatter: to stdout normally, to stderr in JSON
// mode, and nowhere with --quiet.
func (a *App) say(format string, args ...interface{}) {
	if a.Args.Quiet {
		return
	}
	w := a.Out
	if a.Args.JSON {
		w = a.Err
	}
	fmt.Fprintf(w, format, args...)
}
