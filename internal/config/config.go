// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatdesk configuration.
type Config struct {
	// DefaultModel is selected for new conversations
	DefaultModel string `toml:"default_model" json:"default_model"`

	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Chat      ChatConfig      `toml:"chat" json:"chat"`
	Providers ProvidersConfig `toml:"providers" json:"providers"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Log       LogConfig       `toml:"log" json:"log"`
}

// StorageConfig selects where conversations are kept.
type StorageConfig struct {
	// Backend is one of "file", "sqlite", "memory"
	Backend string `toml:"backend" json:"backend"`
	// DataDir holds the conversation files or database (default: ~/.chatdesk/data)
	DataDir string `toml:"data_dir" json:"data_dir"`
	// Encrypt seals stored values with a key derived from the passphrase
	Encrypt bool `toml:"encrypt" json:"encrypt"`
	// Passphrase comes from CHATDESK_PASSPHRASE or a prompt, never the file
	Passphrase string `toml:"-" json:"-"`
}

// ChatConfig tunes the send cycle.
type ChatConfig struct {
	// ResponseTimeoutSecs bounds one completion call
	ResponseTimeoutSecs int `toml:"response_timeout_secs" json:"response_timeout_secs"`
	// TestMode answers with canned replies instead of calling a provider
	TestMode bool `toml:"test_mode" json:"test_mode"`
	// MaxAttachments caps the files staged for one message
	MaxAttachments int `toml:"max_attachments" json:"max_attachments"`
	// MaxTokens caps reply length, 0 for the provider default
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
}

// ProvidersConfig holds provider credentials and endpoints.
type ProvidersConfig struct {
	OpenAIKey     string `toml:"openai_key" json:"openai_key"`
	OpenAIBaseURL string `toml:"openai_base_url" json:"openai_base_url"`
	AnthropicKey  string `toml:"anthropic_key" json:"anthropic_key"`
	OpenRouterKey string `toml:"openrouter_key" json:"openrouter_key"`
	OllamaURL     string `toml:"ollama_url" json:"ollama_url"`
	// RequestsPerMinute limits calls to each provider, 0 for no limit
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// ModelPageSize is how many models the picker reveals at a time
	ModelPageSize int `toml:"model_page_size" json:"model_page_size"`
	// Compact hides the sidebar
	Compact bool `toml:"compact" json:"compact"`
}

// LogConfig controls the log file.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// File is the log path (default: ~/.chatdesk/chatdesk.log)
	File string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		DefaultModel: model.DefaultModelID,
		Storage: StorageConfig{
			Backend: "file",
		},
		Chat: ChatConfig{
			ResponseTimeoutSecs: 120,
			MaxAttachments:      10,
		},
		Providers: ProvidersConfig{
			OllamaURL:         "http://127.0.0.1:11434",
			RequestsPerMinute: 30,
		},
		UI: UIConfig{
			Theme:         "auto",
			ModelPageSize: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// HomeEnv relocates the whole chatdesk directory.
const HomeEnv = "CHATDESK_HOME"

// ConfigDir returns the chatdesk configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatdesk"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ResolveDataDir returns the storage directory, defaulting under ConfigDir.
func (c *Config) ResolveDataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return expandHome(c.Storage.DataDir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// ResolveLogFile returns the log path, defaulting under ConfigDir.
func (c *Config) ResolveLogFile() (string, error) {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chatdesk.log"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ensureSecurePermissions narrows config files to 0600; they hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv reads .env files from the working directory and the config
// directory. Variables already in the environment win.
func LoadDotEnv() error {
	var paths []string
	if _, err := os.Stat(".env"); err == nil {
		paths = append(paths, ".env")
	}
	if dir, err := ConfigDir(); err == nil {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	return godotenv.Load(paths...)
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last. A broken file is reported
// alongside the defaults.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var loadErr error
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		if loadErr == nil {
			loadErr = err
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaults.DefaultModel
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}

	// Chat
	if cfg.Chat.ResponseTimeoutSecs == 0 {
		cfg.Chat.ResponseTimeoutSecs = defaults.Chat.ResponseTimeoutSecs
	}
	if cfg.Chat.MaxAttachments == 0 {
		cfg.Chat.MaxAttachments = defaults.Chat.MaxAttachments
	}

	// Providers
	if cfg.Providers.OllamaURL == "" {
		cfg.Providers.OllamaURL = defaults.Providers.OllamaURL
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.ModelPageSize == 0 {
		cfg.UI.ModelPageSize = defaults.UI.ModelPageSize
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# chatdesk configuration file\n")
	b.WriteString("# Keys can also be set with: chatdesk config set <key> <value>\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.DefaultModel) == "" {
		add("default_model", "must not be empty")
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "file", "sqlite", "memory":
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}

	if c.Chat.ResponseTimeoutSecs < 1 || c.Chat.ResponseTimeoutSecs > 3600 {
		add("chat.response_timeout_secs", "must be between 1 and 3600, got %d", c.Chat.ResponseTimeoutSecs)
	}
	if c.Chat.MaxAttachments < 1 || c.Chat.MaxAttachments > 10 {
		add("chat.max_attachments", "must be between 1 and 10, got %d", c.Chat.MaxAttachments)
	}
	if c.Chat.MaxTokens < 0 {
		add("chat.max_tokens", "must not be negative")
	}

	for field, raw := range map[string]string{
		"providers.ollama_url":      c.Providers.OllamaURL,
		"providers.openai_base_url": c.Providers.OpenAIBaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add(field, "invalid URL '%s'", raw)
		}
	}
	if c.Providers.RequestsPerMinute < 0 {
		add("providers.requests_per_minute", "must not be negative")
	}

	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}
	if c.UI.ModelPageSize < 1 || c.UI.ModelPageSize > 100 {
		add("ui.model_page_size", "must be between 1 and 100, got %d", c.UI.ModelPageSize)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CHATDESK_MODEL: overrides default_model
//   - CHATDESK_STORAGE: overrides storage.backend
//   - CHATDESK_DATA_DIR: overrides storage.data_dir
//   - CHATDESK_PASSPHRASE: storage passphrase, also turns encryption on
//   - CHATDESK_TEST_MODE: "1" or "true" enables canned replies
//   - CHATDESK_OLLAMA_URL: overrides providers.ollama_url
//   - OPENAI_API_KEY, ANTHROPIC_API_KEY, OPENROUTER_API_KEY: provider keys
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATDESK_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("CHATDESK_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("CHATDESK_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("CHATDESK_PASSPHRASE"); v != "" {
		c.Storage.Passphrase = v
		c.Storage.Encrypt = true
	}
	if v := os.Getenv("CHATDESK_TEST_MODE"); v != "" {
		c.Chat.TestMode = parseBool(v)
	}
	if v := os.Getenv("CHATDESK_OLLAMA_URL"); v != "" {
		c.Providers.OllamaURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Providers.AnthropicKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.Providers.OpenRouterKey = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.test_mode").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup resolves a dot-notation key against the toml tags.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, normalizeKey(part))
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name && tag != "-" {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// normalizeKey accepts kebab-case spellings of snake_case keys.
func normalizeKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}

// setFieldValue sets a reflect.Value from a value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
			if tag == "" || tag == "-" {
				continue
			}
			if t.Field(i).Type.Kind() == reflect.Struct {
				walk(t.Field(i).Type, prefix+tag+".")
				continue
			}
			keys = append(keys, prefix+tag)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// IsSecretKey reports whether the key holds a credential.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(key, "_key")
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with credentials masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	for _, key := range []*string{
		&safe.Providers.OpenAIKey,
		&safe.Providers.AnthropicKey,
		&safe.Providers.OpenRouterKey,
	} {
		if *key != "" {
			*key = "[REDACTED]"
		}
	}
	safe.Storage.Passphrase = ""
	return safe
}

// String returns the config as JSON with credentials redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
