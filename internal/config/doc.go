// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for neulbom.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - BackendConfig: Backend origin, timeout and retry policy
//   - StorageConfig: Where guest conversations and the token are kept
//   - ChatConfig: Titles and send throttling
//   - UIConfig: Terminal rendering
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NEULBOM_*)
//   - ~/.neulbom/config.toml
//   - ~/.neulbom/config.json
//   - Built-in defaults
//
// NEULBOM_HOME relocates the whole ~/.neulbom directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := backend.NewClient(cfg.Backend.BaseURL, tokens).
//	    WithTimeout(cfg.Timeout()).
//	    WithMaxRetries(cfg.Backend.MaxRetries)
package config
