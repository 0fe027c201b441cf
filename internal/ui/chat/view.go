// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatdesk/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading…"
	}

	main := []string{m.renderMain()}
	if below := m.renderBelowTranscript(); below != "" {
		main = append(main, below)
	}
	main = append(main, m.renderComposer())
	column := lipgloss.JoinVertical(lipgloss.Left, main...)

	body := column
	if m.showSidebar() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), column)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatusBar(),
	)
}

// renderMain is the transcript, or the open dialog in its place.
func (m *Model) renderMain() string {
	width := m.mainWidth()
	var dialog string
	switch m.overlay {
	case overlayModels:
		if m.picker != nil {
			dialog = m.picker.View(min(width-4, 72))
		}
	case overlayRename:
		dialog = m.renderPromptDialog("Rename conversation", "enter save · esc cancel")
	case overlayAttach:
		dialog = m.renderPromptDialog("Attach a file",
			fmt.Sprintf("%d of %d files · enter attach · esc cancel",
				m.attachments.Len(), m.attachments.Limit()))
	case overlayConfirmDelete:
		dialog = m.renderConfirm("Delete %q? This cannot be undone.")
	case overlayConfirmClear:
		dialog = m.renderConfirm("Remove every message from %q?")
	}
	if dialog == "" {
		return m.viewport.View()
	}
	return lipgloss.Place(width, m.viewport.Height, lipgloss.Center, lipgloss.Center, dialog)
}

func (m *Model) renderPromptDialog(title, footer string) string {
	m.prompt.Width = max(min(m.mainWidth()-12, 60), 10)
	return m.theme.Dialog.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.theme.DialogTitle.Render(title),
		"",
		m.prompt.View(),
		"",
		m.theme.PickerDesc.Render(footer),
	))
}

func (m *Model) renderConfirm(question string) string {
	title := m.confirmID
	if conv, ok := m.store.Get(m.confirmID); ok {
		title = components.TruncateTitle(conv.Title, 40)
	}
	return m.theme.Dialog.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.theme.DialogTitle.Render("Are you sure?"),
		"",
		fmt.Sprintf(question, title),
		"",
		m.theme.PickerDesc.Render("y confirm · n cancel"),
	))
}

// =============================================================================
// FIXED ROWS
// =============================================================================

func (m *Model) renderHeader() string {
	parts := []string{m.theme.HeaderBrand.Render("chatdesk")}

	if conv, ok := m.store.Active(); ok {
		parts = append(parts, m.theme.HeaderTitle.Render(components.TruncateTitle(conv.Title, max(m.width/2, 10))))
	}

	name := m.controller.Model()
	if conv, ok := m.store.Active(); ok && conv.Model != "" {
		name = conv.Model
	}
	if info, ok := m.catalog.Find(name); ok {
		name = info.DisplayName()
	}
	parts = append(parts, m.theme.HeaderModel.Render(name))

	if m.Responding() {
		parts = append(parts, m.theme.HeaderBusy.Render("replying… esc to stop"))
	}
	return m.theme.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

// renderBelowTranscript holds the typing line and the notifications.
func (m *Model) renderBelowTranscript() string {
	var rows []string
	if line := m.typing.View(); line != "" {
		rows = append(rows, line)
	}
	if stack := components.RenderToastStack(m.toasts.Toasts(), max(m.mainWidth()-2, 10)); stack != "" {
		rows = append(rows, stack)
	}
	return strings.Join(rows, "\n")
}

func (m *Model) renderComposer() string {
	var rows []string
	if files := m.attachments.Files(); len(files) > 0 {
		names := make([]string, 0, len(files))
		for _, f := range files {
			detail := f.Kind.Label()
			if p := f.Preview(); p != nil && p.Dimensions() != "" {
				detail += " " + p.Dimensions()
			}
			names = append(names, fmt.Sprintf("📎 %s (%s, %s)", f.Name, detail, formatSize(f.Size)))
		}
		rows = append(rows, m.theme.PendingFiles.Render(strings.Join(names, "  ")))
	}

	box := m.theme.InputBox
	if m.Responding() {
		box = m.theme.InputBoxDisabled
	}
	rows = append(rows, box.Width(max(m.mainWidth()-2, 1)).Render(m.input.View()))
	return strings.Join(rows, "\n")
}

func (m *Model) renderStatusBar() string {
	return m.theme.StatusBar.Width(m.width).Render(m.help.View(m.keys))
}
