// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for neulbom.
package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdChat
	CmdRooms
	CmdSend
	CmdLogin
	CmdSignup
	CmdLogout
	CmdWhoami
	CmdProfile
	CmdWelfare
	CmdPosts
	CmdConfig
	CmdMockServer
	CmdVersion
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdHelp:       "help",
	CmdChat:       "chat",
	CmdRooms:      "rooms",
	CmdSend:       "send",
	CmdLogin:      "login",
	CmdSignup:     "signup",
	CmdLogout:     "logout",
	CmdWhoami:     "whoami",
	CmdProfile:    "profile",
	CmdWelfare:    "welfare",
	CmdPosts:      "posts",
	CmdConfig:     "config",
	CmdMockServer: "mock-server",
	CmdVersion:    "version",
}

// String returns the command name as typed on the command line.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds global flags plus everything after the command name.
type Args struct {
	// Global flags
	JSON       bool
	Verbose    bool
	Quiet      bool
	Ephemeral  bool   // keep guest data in memory for this run only
	ConfigPath string // explicit config file, overrides ~/.neulbom

	// Name is the command as typed, kept for error messages.
	Name string

	// Raw is the remaining arguments for the command's own parser.
	Raw []string
}

const usageText = `neulbom - 늘봄 상담 대화 클라이언트

Usage:
  neulbom [global flags] <command> [arguments]

Commands:
  chat [--room ID]              Interactive conversation (default)
  send TEXT [--room ID]         Send one message and print the reply
  rooms [list]                  List conversations visible in this mode
  rooms new [TITLE]             Open a conversation
  rooms rename ID TITLE         Rename a conversation
  rooms delete ID [--yes]       Delete a conversation
  rooms show ID                 Print a conversation's messages
  rooms search QUERY            Search conversations kept on this device
  rooms export ID [--format md|json] [--output FILE]
  login [--email E] [--password-stdin]
  signup --email E [--name N] [--password-stdin]
  logout                        Forget the stored credential
  whoami                        Show the current session mode
  profile [show]                Show the member profile
  profile update [--age N] [--region R] [--care-target T]
  welfare search [KEYWORD] [--region R] [--age N] [--care-target T] [--limit N]
  welfare show ID               Show a welfare programme
  welfare bookmark ID           Bookmark a programme (members)
  welfare popular|recent [--limit N]
  posts [list] [--category info|counsel|free] [--popular] [--limit N]
  posts show ID                 Show a post and its comments
  posts new --title T [--category C] TEXT
  posts edit ID [--title T] [--category C] [TEXT]
  posts delete ID [--yes]
  posts like|bookmark ID        Toggle a like or bookmark
  posts comment ID TEXT         Comment on a post
  config [show|path|init|get KEY|set KEY VALUE]
  mock-server [--addr :8000] [--user EMAIL:PASSWORD]
  version                       Show version information
  help                          Show this help

ID is a conversation ID or its number in "rooms list". Welfare and post
IDs are the numbers the server shows. TEXT may be "-" to read stdin.

Global flags:
  --json                        Machine-readable output
  -v, --verbose                 Diagnostics on stderr
  -q, --quiet                   Less chatter
  --config PATH                 Use this config file
  --ephemeral                   Keep guest conversations in memory only

Environment:
  NEULBOM_HOME                  Config and data directory (default ~/.neulbom)
  NEULBOM_API_BASE_URL          Backend origin
  NEULBOM_STORAGE_DRIVER        file, sqlite or memory
  NO_COLOR                      Disable colors

Version: %s
`

// PrintUsage writes the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "neulbom version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse splits argv (without the program name) into a command and its
// arguments. No arguments means chat.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		args.Name = "chat"
		return CmdChat, args
	}

	name := strings.ToLower(remaining[0])
	args.Name = name
	args.Raw = remaining[1:]

	switch name {
	case "chat":
		return CmdChat, args
	case "rooms", "room", "ls":
		return CmdRooms, args
	case "send":
		return CmdSend, args
	case "login":
		return CmdLogin, args
	case "signup", "register":
		return CmdSignup, args
	case "logout":
		return CmdLogout, args
	case "whoami", "status":
		return CmdWhoami, args
	case "profile", "me":
		return CmdProfile, args
	case "welfare", "benefits":
		return CmdWelfare, args
	case "posts", "post", "community":
		return CmdPosts, args
	case "config":
		return CmdConfig, args
	case "mock-server", "mockserver":
		return CmdMockServer, args
	case "version", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	default:
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
// Global flags may appear anywhere on the line.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--json":
			args.JSON = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "--ephemeral":
			args.Ephemeral = true
		case arg == "--config":
			if i+1 < len(argv) {
				i++
				args.ConfigPath = argv[i]
			}
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

// Execute parses argv, runs the command and returns the process exit code.
// Errors are reported on stderr, or on stdout as a JSON envelope with --json.
func Execute(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd, args := Parse(argv)

	err := run(ctx, cmd, args, stdin, stdout, stderr)
	if err != nil {
		DisplayError(stdout, stderr, err, args)
	}
	return GetExitCode(err)
}

func run(ctx context.Context, cmd Command, args Args, stdin io.Reader, stdout, stderr io.Writer) error {
	switch cmd {
	case CmdHelp:
		PrintUsage(stdout)
		return nil
	case CmdVersion:
		return handleVersion(stdout, args)
	case CmdUnknown:
		return NewValidationErrorWithExample("command", args.Name,
			"unknown command", "neulbom help")
	case CmdConfig:
		// config works even when the stored configuration is broken
		return HandleConfig(stdout, stderr, args)
	case CmdMockServer:
		return HandleMockServer(ctx, stdout, stderr, args)
	}

	app, err := NewApp(args, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case CmdChat:
		return HandleChat(ctx, app)
	case CmdRooms:
		return HandleRooms(ctx, app)
	case CmdSend:
		return HandleSend(ctx, app)
	case CmdLogin:
		return HandleLogin(ctx, app)
	case CmdSignup:
		return HandleSignup(ctx, app)
	case CmdLogout:
		return HandleLogout(ctx, app)
	case CmdWhoami:
		return HandleWhoami(ctx, app)
	case CmdProfile:
		return HandleProfile(ctx, app)
	case CmdWelfare:
		return HandleWelfare(ctx, app)
	case CmdPosts:
		return HandlePosts(ctx, app)
	}
	return fmt.Errorf("command %s is not wired", cmd)
}

func handleVersion(w io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}).Print(w)
	}
	PrintVersion(w)
	return nil
}
