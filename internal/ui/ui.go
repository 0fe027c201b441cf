// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui starts the full-screen chat interface.
package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/cli"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/ui/chat"
)

// Run shows the chat screen for app until the user quits or ctx ends.
func Run(ctx context.Context, app *cli.App) error {
	logger := app.Logger.Named("ui")

	m := chat.New(chat.Deps{
		Store:      app.Store,
		Controller: app.Controller,
		Catalog:    app.Router.Catalog(),
		Config:     app.Config,
		Logger:     logger,
		Context:    ctx,
	})
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("release attachments", zap.Error(err))
		}
	}()

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if app.ConfigPath != "" {
		watchCtx, stop := context.WithCancel(ctx)
		defer stop()
		go watchConfig(watchCtx, p, app.ConfigPath, logger)
	}

	logger.Debug("starting interface")
	if _, err := p.Run(); err != nil {
		// ctx ending is a normal shutdown
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run interface: %w", err)
	}
	return nil
}

// watchConfig forwards edits of the config file to the running program.
func watchConfig(ctx context.Context, p *tea.Program, path string, logger *zap.Logger) {
	err := config.Watch(ctx, path, 0, func(cfg *config.Config, err error) {
		p.Send(chat.ConfigMsg{Config: cfg, Err: err})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("config watch stopped", zap.String("path", path), zap.Error(err))
	}
}
