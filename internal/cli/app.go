// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/config"
	"github.com/neulbom/neulbom-cli/internal/conversation"
	"github.com/neulbom/neulbom-cli/internal/model"
	"github.com/neulbom/neulbom-cli/internal/session"
	"github.com/neulbom/neulbom-cli/internal/storage"
	"github.com/neulbom/neulbom-cli/internal/webstorage"
)

// App is everything a command needs, wired from the configuration.
type App struct {
	Args   Args
	Config *config.Config
	Logger *log.Logger

	In       io.Reader
	Out, Err io.Writer
	reader   *bufio.Reader

	Storage       webstorage.Storage
	Classifier    *session.Classifier
	Client        *backend.Client
	Conversations *storage.ConversationStore
	Repository    *conversation.Repository
	Controller    *conversation.Controller
}

// NewApp loads the configuration and opens storage.
func NewApp(args Args, stdin io.Reader, stdout, stderr io.Writer) (*App, error) {
	logger := newLogger(stderr, args.Verbose)

	cfg, err := loadConfig(args)
	if cfg == nil {
		return nil, err
	}
	if err != nil {
		// A broken file still leaves usable defaults.
		fmt.Fprintf(stderr, "%s %v (using defaults)\n", WarningStyle.Render("[WARN]"), err)
	}
	if args.Ephemeral {
		cfg.Storage.Driver = webstorage.DriverMemory
	}

	path, err := cfg.StoragePath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if path != "" {
		if err := config.EnsureConfigDir(); err != nil {
			logger.Printf("cli: %v", err)
		}
	}
	ws, err := webstorage.Open(cfg.Storage.Driver, path, logger)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to open storage: %w", err)}
	}

	return wireApp(args, cfg, ws, logger, stdin, stdout, stderr), nil
}

// wireApp builds the conversation stack over an open storage.
func wireApp(args Args, cfg *config.Config, ws webstorage.Storage, logger *log.Logger,
	stdin io.Reader, stdout, stderr io.Writer) *App {
	classifier := session.NewClassifier(ws, logger)
	client := backend.NewClient(cfg.Backend.BaseURL, classifier).
		WithTimeout(cfg.Timeout()).
		WithMaxRetries(cfg.Backend.MaxRetries).
		WithLogger(logger)

	convs := storage.NewConversationStore(ws, logger)
	convs.MaxConversations = cfg.Storage.MaxGuestConversations
	convs.DefaultTitle = cfg.Chat.DefaultTitle

	repo := conversation.NewRepository(
		classifier,
		conversation.NewLocalStore(convs),
		conversation.NewRemoteStore(client, logger),
		logger,
	)
	repo.TitleRunes = cfg.Chat.TitleRunes

	controller := conversation.NewController(repo,
		conversation.WithLogger(logger),
		conversation.WithDefaultTitle(cfg.Chat.DefaultTitle),
		conversation.WithLimiter(conversation.NewLimiter(cfg.Chat.SendsPerMinute, cfg.Chat.SendBurst)),
	)

	return &App{
		Args:          args,
		Config:        cfg,
		Logger:        logger,
		In:            stdin,
		Out:           stdout,
		Err:           stderr,
		Storage:       ws,
		Classifier:    classifier,
		Client:        client,
		Conversations: convs,
		Repository:    repo,
		Controller:    controller,
	}
}

// Close releases storage.
func (a *App) Close() error {
	return a.Storage.Close()
}

// StorageFile returns the file guest data lives in, or "" for memory.
func (a *App) StorageFile() string {
	if loc, ok := a.Storage.(webstorage.Locator); ok {
		return loc.Path()
	}
	return ""
}

// Resolve finds a conversation by ID, or by its 1-based position in the
// current list.
func (a *App) Resolve(ctx context.Context, ref string) (model.Conversation, error) {
	if ref == "" {
		return model.Conversation{}, ErrMissingArgument("ID", "neulbom rooms show ID")
	}
	conv, ok, err := a.Repository.Resolve(ctx, ref)
	if err != nil {
		return model.Conversation{}, err
	}
	if ok {
		return conv, nil
	}

	if n, err := ParseIntWithValidation(ref, "ID"); err == nil {
		convs, err := a.Repository.List(ctx)
		if err != nil {
			return model.Conversation{}, err
		}
		if n <= len(convs) {
			return convs[n-1], nil
		}
	}
	return model.Conversation{}, NewNotFoundError("conversation", ref)
}

func loadConfig(args Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		cfg, err := config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, &ConfigError{Err: err}
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if cfg == nil {
		return nil, &ConfigError{Err: err}
	}
	return cfg, err
}

func newLogger(stderr io.Writer, verbose bool) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return log.New(stderr, "neulbom: ", log.Ltime|log.Lmicroseconds)
}
