// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatdesk.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, validation and hot reload.
//
// # Key Types
//
//   - Config: main configuration structure
//   - StorageConfig: conversation storage backend and encryption
//   - ChatConfig: response timeout, test mode, attachment cap
//   - ProvidersConfig: provider keys, endpoints and rate limit
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CHATDESK_*, OPENAI_API_KEY, ...)
//   - .env in the working directory, then ~/.chatdesk/.env
//   - ~/.chatdesk/config.toml
//   - ~/.chatdesk/config.json
//   - Built-in defaults
//
// CHATDESK_HOME moves the whole ~/.chatdesk directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := time.Duration(cfg.Chat.ResponseTimeoutSecs) * time.Second
//
// Dot-notation access as used by "chatdesk config get/set":
//
//	_ = cfg.Set("ui.theme", "light")
//	v, _ := cfg.Get("chat.test_mode")
package config
