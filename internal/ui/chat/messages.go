// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/session"
)

// ReplyMsg delivers the outcome of a send once the provider has answered,
// failed, timed out or been cancelled.
type ReplyMsg struct {
	Result session.Result
	Err    error
}

// waitReply blocks on p in the Bubble Tea command goroutine.
func waitReply(p *session.Pending) tea.Cmd {
	return func() tea.Msg {
		res, err := p.Wait()
		return ReplyMsg{Result: res, Err: err}
	}
}

// ConfigMsg carries the configuration file after an edit. Err is set
// when the new file could not be read or is invalid.
type ConfigMsg struct {
	Config *config.Config
	Err    error
}

// notice is a failure message shown after the user message it answers.
// Notices live only in the interface and are never stored.
type notice struct {
	after string
	msg   model.Message
}

// overlay is the dialog currently covering the transcript.
type overlay int

const (
	overlayNone overlay = iota
	overlayModels
	overlayRename
	overlayAttach
	overlayConfirmDelete
	overlayConfirmClear
)
