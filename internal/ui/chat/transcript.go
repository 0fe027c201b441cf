// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ui/components"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders the active conversation, with failure notices
// placed after the message they answer. An empty conversation shows the
// welcome screen.
func (m *Model) renderTranscript() string {
	width := max(m.viewport.Width, 20)
	conv, ok := m.store.Active()
	if !ok || conv.IsEmpty() {
		name := m.controller.Model()
		if ok {
			name = conv.Model
		}
		if info, found := m.catalog.Find(name); found {
			name = info.DisplayName()
		}
		return components.RenderWelcome(m.theme, m.viewport.Width, m.viewport.Height, name)
	}

	if width != m.renderWidth {
		m.rendered = make(map[string]string)
		m.renderWidth = width
	}

	after := make(map[string][]model.Message)
	for _, n := range m.notices[conv.ID] {
		after[n.after] = append(after[n.after], n.msg)
	}

	var blocks []string
	for _, msg := range conv.Messages {
		blocks = append(blocks, m.renderMessage(msg, width))
		for _, failed := range after[msg.ID] {
			blocks = append(blocks, m.renderNotice(failed, width))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderMessage(msg model.Message, width int) string {
	stamp := m.theme.Timestamp.Render(msg.CreatedAt.Local().Format("15:04"))

	if msg.Role == model.RoleUser {
		rows := []string{m.theme.UserLabel.Render("You") + "  " + stamp}
		if msg.Content != "" {
			rows = append(rows, m.theme.UserText.Width(width-2).Render(msg.Content))
		}
		for _, a := range msg.Attachments {
			rows = append(rows, m.theme.Attachment.Render(
				fmt.Sprintf("📎 %s (%s, %s)", a.Name, a.Kind.Label(), formatSize(a.Size))))
		}
		return strings.Join(rows, "\n")
	}

	return m.theme.AssistantLabel.Render("Assistant") + "  " + stamp + "\n" + m.renderMarkdown(msg, width)
}

func (m *Model) renderNotice(msg model.Message, width int) string {
	return m.theme.Failure.Width(width - 2).Render("⚠ " + msg.Content)
}

// renderMarkdown renders an assistant reply, caching by message id for the
// current width. Content that glamour rejects is shown as is.
func (m *Model) renderMarkdown(msg model.Message, width int) string {
	if out, ok := m.rendered[msg.ID]; ok {
		return out
	}

	style := "light"
	switch {
	case m.theme.ColorProfile == termenv.Ascii:
		style = "notty"
	case m.theme.IsDark:
		style = "dark"
	}

	out := msg.Content
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err == nil {
		out, err = r.Render(msg.Content)
	}
	if err != nil {
		m.logger.Debug("markdown render failed", zap.String("message", msg.ID), zap.Error(err))
		out = msg.Content
	}
	out = strings.Trim(out, "\n")
	m.rendered[msg.ID] = out
	return out
}

// formatSize formats a byte count for display.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
