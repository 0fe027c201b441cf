// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears the
// variables ApplyEnvOverrides reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, name := range []string{
		"CHATDESK_MODEL", "CHATDESK_STORAGE", "CHATDESK_DATA_DIR", "CHATDESK_PASSPHRASE",
		"CHATDESK_TEST_MODE", "CHATDESK_OLLAMA_URL",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
	} {
		t.Setenv(name, "")
	}
	t.Chdir(dir)
	return dir
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 120, cfg.Chat.ResponseTimeoutSecs)
	assert.Equal(t, 10, cfg.Chat.MaxAttachments)
	assert.Equal(t, 10, cfg.UI.ModelPageSize)
	assert.False(t, cfg.Chat.TestMode)
}

func TestLoad_NoFiles(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().DefaultModel, cfg.DefaultModel)
}

func TestLoad_TOMLFillsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_model = "claude-sonnet-4-5"

[storage]
backend = "sqlite"

[chat]
test_mode = true
`), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", cfg.DefaultModel)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, cfg.Chat.TestMode)
	assert.Equal(t, 120, cfg.Chat.ResponseTimeoutSecs)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if info.Mode().Perm()&0077 != 0 {
		t.Errorf("config permissions not narrowed: %o", info.Mode().Perm())
	}
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"default_model": "gpt-4.1", "ui": {"theme": "light"}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", cfg.DefaultModel)
	assert.Equal(t, "light", cfg.UI.Theme)
}

func TestLoad_InvalidFileFallsBackToDefaults(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("[storage]\nbackend = \"floppy\"\n"), 0600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "file", cfg.Storage.Backend)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "storage.backend", verrs[0].Field)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CHATDESK_MODEL", "gemini-2.5-pro")
	t.Setenv("CHATDESK_STORAGE", "memory")
	t.Setenv("CHATDESK_PASSPHRASE", "hunter2")
	t.Setenv("CHATDESK_TEST_MODE", "yes")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.DefaultModel)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.Encrypt)
	assert.Equal(t, "hunter2", cfg.Storage.Passphrase)
	assert.True(t, cfg.Chat.TestMode)
	assert.Equal(t, "sk-ant-test", cfg.Providers.AnthropicKey)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("OPENROUTER_API_KEY=sk-or-from-dotenv\n"), 0600))
	require.NoError(t, os.Unsetenv("OPENROUTER_API_KEY"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-or-from-dotenv", cfg.Providers.OpenRouterKey)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.UI.Compact = true
	cfg.Providers.RequestsPerMinute = 5
	cfg.Storage.Passphrase = "never written"
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never written")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.True(t, loaded.UI.Compact)
	assert.Equal(t, 5, loaded.Providers.RequestsPerMinute)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty model", func(c *Config) { c.DefaultModel = " " }, "default_model"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"zero timeout", func(c *Config) { c.Chat.ResponseTimeoutSecs = 0 }, "chat.response_timeout_secs"},
		{"too many attachments", func(c *Config) { c.Chat.MaxAttachments = 11 }, "chat.max_attachments"},
		{"bad ollama url", func(c *Config) { c.Providers.OllamaURL = "localhost:11434" }, "providers.ollama_url"},
		{"bad openai url", func(c *Config) { c.Providers.OpenAIBaseURL = "ftp://x" }, "providers.openai_base_url"},
		{"negative rpm", func(c *Config) { c.Providers.RequestsPerMinute = -1 }, "providers.requests_per_minute"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"bad page size", func(c *Config) { c.UI.ModelPageSize = 0 }, "ui.model_page_size"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() = %v, want ValidateErrors", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("field = %q, want %q", verrs[0].Field, tt.field)
			}
		})
	}
}

// =============================================================================
// GET/SET
// =============================================================================

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("chat.response_timeout_secs")
	require.NoError(t, err)
	assert.Equal(t, 120, v)

	require.NoError(t, cfg.Set("ui.theme", "light"))
	assert.Equal(t, "light", cfg.UI.Theme)

	require.NoError(t, cfg.Set("chat.test-mode", "true"))
	assert.True(t, cfg.Chat.TestMode)

	require.NoError(t, cfg.Set("providers.requests_per_minute", "12"))
	assert.Equal(t, 12, cfg.Providers.RequestsPerMinute)

	require.NoError(t, cfg.Set("chat.max_tokens", 2048))
	assert.Equal(t, 2048, cfg.Chat.MaxTokens)

	assert.Error(t, cfg.Set("chat.max_tokens", "lots"))
	assert.Error(t, cfg.Set("nope.key", "x"))
	assert.Error(t, cfg.Set("storage", "x"))
	assert.Error(t, cfg.Set("storage.passphrase", "x"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "default_model")
	assert.Contains(t, keys, "storage.backend")
	assert.Contains(t, keys, "providers.openrouter_key")
	assert.Contains(t, keys, "ui.model_page_size")
	assert.NotContains(t, keys, "storage.passphrase")

	cfg := Default()
	for _, key := range keys {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) = %v", key, err)
		}
	}
}

func TestConfig_StringRedacts(t *testing.T) {
	cfg := Default()
	cfg.Providers.OpenAIKey = "sk-secret-openai"
	cfg.Providers.OpenRouterKey = "sk-or-secret"

	s := cfg.String()
	assert.NotContains(t, s, "sk-secret-openai")
	assert.NotContains(t, s, "sk-or-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "sk-secret-openai", cfg.Providers.OpenAIKey)

	assert.True(t, IsSecretKey("providers.openai_key"))
	assert.False(t, IsSecretKey("providers.ollama_url"))
}

func TestConfig_ResolvePaths(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	data, err := cfg.ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), data)

	logFile, err := cfg.ResolveLogFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chatdesk.log"), logFile)

	cfg.Storage.DataDir = "~/chats"
	data, err = cfg.ResolveDataDir()
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(data, "~"))
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
			if err == nil {
				changes <- cfg
			}
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	cfg := Default()
	cfg.UI.Theme = "light"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-changes:
		assert.Equal(t, "light", got.UI.Theme)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
