// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// mockserver_cmd.go - Run the in-process fake backend.
//
// Command: mock-server [--addr ADDR] [--user EMAIL:PASSWORD] [--secret S] [--fail-create]
//
// Serves the same routes as the real backend so the client can be tried
// without one. Runs until interrupted.
//
// Examples:
//   neulbom mock-server
//   neulbom mock-server --addr :9000 --user demo@neulbom.kr:demo1234
//   NEULBOM_API_BASE_URL=http://127.0.0.1:9000 neulbom chat

package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/neulbom/neulbom-cli/internal/mockserver"
)

// HandleMockServer serves until ctx is cancelled.
func HandleMockServer(ctx context.Context, stdout, stderr io.Writer, args Args) error {
	p := NewArgParser(args.Raw, "fail-create")
	addr := p.FlagOrDefault("addr", mockserver.DefaultAddr)

	srv := mockserver.New(p.Flag("secret")).
		WithLogger(log.New(stderr, "mock-server: ", log.LstdFlags))

	if cred := p.Flag("user"); cred != "" {
		email, password, ok := strings.Cut(cred, ":")
		if !ok || email == "" || password == "" {
			return NewValidationErrorWithExample("user", cred, "expected EMAIL:PASSWORD",
				"neulbom mock-server --user demo@neulbom.kr:demo1234")
		}
		srv.WithUser(email, password)
	}
	if p.BoolFlag("fail-create") {
		srv.SetFailCreate(true)
	}

	ln, err := srv.Listen(addr)
	if err != nil {
		return err
	}
	if !args.Quiet {
		fmt.Fprintf(stdout, "%s http://%s\n", SuccessStyle.Render("mock backend listening on"), displayAddr(ln.Addr().String()))
		fmt.Fprintln(stdout, DimStyle.Render("Ctrl+C to stop"))
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return srv.Serve(ctx, ln)
}

// displayAddr turns a wildcard listen address into one a browser or
// NEULBOM_API_BASE_URL can use.
func displayAddr(addr string) string {
	for _, wildcard := range []string{"[::]", "0.0.0.0"} {
		if strings.HasPrefix(addr, wildcard+":") {
			return "127.0.0.1" + strings.TrimPrefix(addr, wildcard)
		}
	}
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}
