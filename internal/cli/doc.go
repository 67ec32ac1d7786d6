// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for neulbom.
//
// Every command works the same for guests and members. Guests keep their
// conversations on this device; members see their server rooms plus any
// conversation the server could not open. The mode follows the stored
// credential, so `neulbom login` in one terminal changes what an open chat
// in another terminal shows.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Global flags plus the command's own arguments
//   - App: Configuration, storage and the conversation stack for one run
//   - JSONResponse: Envelope printed with --json
//
// # Usage
//
//	os.Exit(cli.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
//
// # Commands Overview
//
//   - chat: Interactive conversation (default)
//   - send: One message, one reply
//   - rooms: List, create, rename, delete, show, search and export
//   - login, signup, logout, whoami, profile: Session and account
//   - welfare: Welfare programme search, details and bookmarks
//   - posts: Community board for members
//   - config: Configuration management
//   - mock-server: Local stand-in for the backend
//
// All commands support --json. Exit codes are listed in errors.go.
package cli
