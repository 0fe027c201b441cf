// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/jeranaias/chatdesk/internal/cloud"
	"github.com/jeranaias/chatdesk/internal/completion"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/history"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ollama"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/storage"
)

// SQLiteFile is the database name used by the sqlite backend.
const SQLiteFile = "chatdesk.db"

// cannedDelay paces test-mode replies so the typing indicator is visible.
const cannedDelay = 800 * time.Millisecond

// ErrNoPassphrase is returned when encryption is on and no passphrase can
// be obtained.
var ErrNoPassphrase = errors.New("storage encryption enabled but no passphrase available")

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App holds everything a command needs: configuration, the conversation
// store, the completion router and the send controller.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      *history.Store
	Router     *completion.Router
	Controller *session.Controller

	// ConfigPath is the file the configuration was read from, when known.
	ConfigPath string

	backend storage.Backend
}

// AppOptions overrides parts of the wiring, mostly for tests.
type AppOptions struct {
	// Backend replaces the backend selected by the configuration.
	Backend storage.Backend

	// Router replaces the router built from the provider keys.
	Router *completion.Router

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Passphrase is asked for when encryption is on and none is configured.
	Passphrase func() (string, error)
}

// NewApp wires an App from cfg.
func NewApp(cfg *config.Config, opts AppOptions) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = OpenBackend(cfg, opts.Passphrase)
		if err != nil {
			return nil, err
		}
	}

	store := history.Open(backend,
		history.WithLogger(logger.Named("history")),
	)
	if err := store.LoadError(); err != nil {
		// Starting empty would overwrite history sealed under another key.
		if errors.Is(err, storage.ErrDecrypt) {
			if opts.Backend == nil {
				storage.Close(backend)
			}
			return nil, fmt.Errorf("open history: %w", err)
		}
		logger.Warn("starting with empty history", zap.Error(err))
	}

	router := opts.Router
	if router == nil {
		router = NewRouter(cfg, logger)
	}

	controller := session.NewController(store, router,
		session.WithTimeout(time.Duration(cfg.Chat.ResponseTimeoutSecs)*time.Second),
		session.WithTestMode(cfg.Chat.TestMode),
		session.WithMaxTokens(cfg.Chat.MaxTokens),
		session.WithModel(cfg.DefaultModel),
		session.WithLogger(logger.Named("session")),
	)
	if active, ok := store.Active(); ok {
		controller.SetModel(active.Model)
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Router:     router,
		Controller: controller,
		backend:    backend,
	}, nil
}

// Close releases the storage backend.
func (a *App) Close() error {
	return storage.Close(a.backend)
}

// OpenBackend builds the storage backend named by cfg.Storage.Backend,
// wrapped in encryption when cfg.Storage.Encrypt is set.
func OpenBackend(cfg *config.Config, passphrase func() (string, error)) (storage.Backend, error) {
	var backend storage.Backend
	switch cfg.Storage.Backend {
	case "memory":
		backend = storage.NewMemoryBackend()
	case "sqlite":
		dir, err := cfg.ResolveDataDir()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		backend, err = storage.NewSQLiteBackend(filepath.Join(dir, SQLiteFile))
		if err != nil {
			return nil, err
		}
	default:
		dir, err := cfg.ResolveDataDir()
		if err != nil {
			return nil, err
		}
		backend, err = storage.NewFileBackend(dir)
		if err != nil {
			return nil, err
		}
	}

	if !cfg.Storage.Encrypt {
		return backend, nil
	}

	secret := cfg.Storage.Passphrase
	if secret == "" && passphrase != nil {
		var err error
		if secret, err = passphrase(); err != nil {
			storage.Close(backend)
			return nil, err
		}
	}
	if secret == "" {
		storage.Close(backend)
		return nil, ErrNoPassphrase
	}

	encrypted, err := storage.NewEncryptedBackend(backend, secret)
	if err != nil {
		storage.Close(backend)
		return nil, fmt.Errorf("open encrypted storage: %w", err)
	}
	return encrypted, nil
}

// PromptPassphrase reads the storage passphrase from the terminal without
// echoing it.
func PromptPassphrase() (string, error) {
	if !isTerminal(os.Stdin) {
		return "", fmt.Errorf("%w: cannot read the storage passphrase", errNoTerminal)
	}
	fmt.Fprint(os.Stderr, "Storage passphrase: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(secret), nil
}

// NewRouter registers an adapter for every provider with credentials in
// cfg. Ollama needs none and is always registered.
func NewRouter(cfg *config.Config, logger *zap.Logger) *completion.Router {
	p := cfg.Providers
	router := completion.NewRouter(nil,
		completion.WithRateLimit(p.RequestsPerMinute),
		completion.WithCanned(completion.NewCanned(cannedDelay)),
		completion.WithRouterLogger(logger.Named("completion")),
	)

	if p.OpenAIKey != "" {
		adapter, err := completion.NewOpenAI(completion.OpenAIConfig{
			APIKey:  p.OpenAIKey,
			BaseURL: p.OpenAIBaseURL,
		})
		if err != nil {
			logger.Warn("openai adapter unavailable", zap.Error(err))
		} else {
			router.Register(model.ProviderOpenAI, adapter)
		}
	}
	if p.AnthropicKey != "" {
		router.Register(model.ProviderAnthropic, completion.NewAnthropic(completion.AnthropicConfig{
			APIKey: p.AnthropicKey,
		}))
	}
	if p.OpenRouterKey != "" {
		client := cloud.New(p.OpenRouterKey, cloud.WithLogger(logger.Named("openrouter")))
		router.Register(model.ProviderOpenRouter, completion.NewOpenRouter(client))
	}
	if p.OllamaURL != "" {
		client := ollama.New(p.OllamaURL, ollama.WithLogger(logger.Named("ollama")))
		router.Register(model.ProviderOllama, completion.NewOllama(client))
	}
	return router
}
