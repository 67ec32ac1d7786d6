// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - View and modify configuration.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Display current configuration
//   path                Show configuration file path
//   init [--force]      Write the default configuration file
//   get KEY             Print one value
//   set KEY VALUE       Set a value and save
//
// Examples:
//   neulbom config set backend.base_url https://api.neulbom.kr
//   neulbom config set chat.sends_per_minute 0     Disable throttling
//   neulbom config set storage.driver sqlite
//   neulbom config get ui.markdown

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/neulbom/neulbom-cli/internal/config"
)

// configSection is one group of keys in `config show`.
type configSection struct {
	title string
	keys  []string
}

var configSections = []configSection{
	{"Backend", []string{"backend.base_url", "backend.timeout_secs", "backend.max_retries"}},
	{"Storage", []string{"storage.driver", "storage.path", "storage.max_guest_conversations"}},
	{"Chat", []string{"chat.default_title", "chat.title_runes", "chat.sends_per_minute", "chat.send_burst"}},
	{"UI", []string{"ui.markdown", "ui.time_layout", "ui.compact"}},
}

// HandleConfig runs the config command. It loads the configuration itself
// so a broken file can still be inspected and fixed.
func HandleConfig(stdout, stderr io.Writer, args Args) error {
	p := NewArgParser(args.Raw, "force")

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "show":
		cfg, err := loadConfig(args)
		if cfg == nil {
			return err
		}
		if err != nil {
			fmt.Fprintf(stderr, "%s %v (showing defaults)\n", WarningStyle.Render("[WARN]"), err)
		}
		return configShow(stdout, cfg, args)
	case "path":
		return configPath(stdout, args)
	case "init":
		return configInit(stdout, args, p.BoolFlag("force"))
	case "get":
		return configGet(stdout, args, p.Positional(1))
	case "set":
		return configSet(stdout, args, p.Positional(1), JoinPositionalArgs(p, 2))
	default:
		return NewValidationErrorWithExample("subcommand", sub,
			"unknown config subcommand", "neulbom config show")
	}
}

func configShow(w io.Writer, cfg *config.Config, args Args) error {
	if args.JSON {
		return NewJSONResponse("config show", cfg).Print(w)
	}

	fmt.Fprintln(w, TitleStyle.Render("neulbom configuration"))
	for _, section := range configSections {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ValueStyle.Bold(true).Render(section.title))
		for _, key := range section.keys {
			value, err := cfg.Get(key)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "  %s %v\n", LabelStyle.Width(34).Render(key), displayValue(key, value, cfg))
		}
	}
	return nil
}

// displayValue shows the effective storage path when none is configured.
func displayValue(key string, value interface{}, cfg *config.Config) interface{} {
	if key == "storage.path" && value == "" {
		if path, err := cfg.StoragePath(); err == nil && path != "" {
			return DimStyle.Render(path + " (default)")
		}
		return DimStyle.Render("(memory)")
	}
	return value
}

func configPath(w io.Writer, args Args) error {
	path := args.ConfigPath
	if path == "" {
		var err error
		if path, err = config.ConfigPathTOML(); err != nil {
			return &ConfigError{Err: err}
		}
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if args.JSON {
		return NewJSONResponse("config path", map[string]interface{}{
			"path":   path,
			"exists": exists,
		}).Print(w)
	}
	fmt.Fprintln(w, path)
	if !exists && !args.Quiet {
		fmt.Fprintln(w, DimStyle.Render("(not created yet; run `neulbom config init`)"))
	}
	return nil
}

func configInit(w io.Writer, args Args, force bool) error {
	path, err := configFile(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return NewValidationErrorWithExample("config", path, "configuration file already exists",
			"neulbom config init --force")
	}
	if err := config.EnsureConfigDir(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := saveConfig(config.Default(), path); err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("config init", map[string]string{"path": path}).Print(w)
	}
	fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("Wrote"), path)
	return nil
}

func configGet(w io.Writer, args Args, key string) error {
	if key == "" {
		return ErrMissingArgument("KEY", "neulbom config get backend.base_url")
	}
	cfg, err := loadConfig(args)
	if cfg == nil {
		return err
	}
	value, err := cfg.Get(key)
	if err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(),
			"keys: "+strings.Join(config.GetAllKeys(), ", "))
	}

	if args.JSON {
		return NewJSONResponse("config get", map[string]interface{}{"key": key, "value": value}).Print(w)
	}
	fmt.Fprintln(w, value)
	return nil
}

// configSet edits the file on disk rather than the merged configuration,
// so environment overrides are never written back.
func configSet(w io.Writer, args Args, key, value string) error {
	if key == "" {
		return ErrMissingArgument("KEY", "neulbom config set chat.sends_per_minute 10")
	}
	path, err := configFile(args)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if strings.HasSuffix(path, ".json") {
			err = config.LoadJSON(cfg, path)
		} else {
			err = config.LoadTOML(cfg, path)
		}
		if err != nil {
			return &ConfigError{Err: err}
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(),
			"keys: "+strings.Join(config.GetAllKeys(), ", "))
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := config.EnsureConfigDir(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := saveConfig(cfg, path); err != nil {
		return err
	}

	saved, _ := cfg.Get(key)
	if args.JSON {
		return NewJSONResponse("config set", map[string]interface{}{"key": key, "value": saved}).Print(w)
	}
	fmt.Fprintf(w, "%s %s = %v\n", SuccessStyle.Render("Set"), key, saved)
	return nil
}

// configFile is --config when given, otherwise the default TOML path.
func configFile(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	return path, nil
}

func saveConfig(cfg *config.Config, path string) error {
	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return &ConfigError{Err: fmt.Errorf("failed to save config: %w", err)}
	}
	return nil
}
