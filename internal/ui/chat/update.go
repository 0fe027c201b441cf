// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/history"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/ui/components"
)

// =============================================================================
// KEY DISPATCH
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.overlay != overlayNone {
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m, m.cancelOrDismiss()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.FocusList):
		m.setSidebarFocus(!m.sidebar.Focused())
		return m, nil
	case key.Matches(msg, m.keys.NewChat):
		return m, m.newChat()
	case key.Matches(msg, m.keys.Rename):
		return m, m.openRename()
	case key.Matches(msg, m.keys.Delete):
		return m, m.openConfirm(overlayConfirmDelete)
	case key.Matches(msg, m.keys.Clear):
		return m, m.openConfirm(overlayConfirmClear)
	case key.Matches(msg, m.keys.Export):
		return m, m.exportActive()
	case key.Matches(msg, m.keys.Models):
		m.openModels()
		return m, nil
	case key.Matches(msg, m.keys.Attach):
		m.openPrompt(overlayAttach, "", "path to a file")
		return m, nil
	case key.Matches(msg, m.keys.Detach):
		return m, m.detachLast()
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if i, ok := suggestionIndex(msg); ok && m.showingWelcome() {
		return m, m.send(components.Suggestions[i])
	}

	if m.sidebar.Focused() {
		return m.handleSidebarKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		return m, m.send(m.input.Value())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// suggestionIndex maps alt+1..alt+N onto a starter prompt.
func suggestionIndex(msg tea.KeyMsg) (int, bool) {
	for i := range components.Suggestions {
		if msg.String() == components.SuggestionKey(i) {
			return i, true
		}
	}
	return 0, false
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ListUp):
		m.sidebar.MoveCursor(-1)
	case key.Matches(msg, m.keys.ListDown):
		m.sidebar.MoveCursor(1)
	case key.Matches(msg, m.keys.ListSelect):
		cmd := m.selectConversation(m.sidebar.CursorID())
		m.setSidebarFocus(false)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setSidebarFocus(focused bool) {
	if focused && !m.showSidebar() {
		return
	}
	m.sidebar.SetFocused(focused)
	if focused {
		m.input.Blur()
	} else {
		m.input.Focus()
	}
}

// cancelOrDismiss stops the reply of the visible conversation, or else
// dismisses the newest toast, or else leaves the sidebar.
func (m *Model) cancelOrDismiss() tea.Cmd {
	if id := m.store.ActiveID(); id != "" && m.controller.Cancel(id) {
		return nil
	}
	if m.toasts.DismissNewest() {
		return nil
	}
	if m.sidebar.Focused() {
		m.setSidebarFocus(false)
	}
	return nil
}

// =============================================================================
// SENDING
// =============================================================================

// showingWelcome reports whether the starter prompts are on screen.
func (m *Model) showingWelcome() bool {
	conv, ok := m.store.Active()
	return (!ok || conv.IsEmpty()) && strings.TrimSpace(m.input.Value()) == ""
}

// Responding reports whether the visible conversation awaits a reply.
// Sending is disabled while it does.
func (m *Model) Responding() bool {
	id := m.store.ActiveID()
	return id != "" && m.controller.Responding(id)
}

// send starts a send cycle for text and the pending files. The reply
// arrives later as a ReplyMsg.
func (m *Model) send(text string) tea.Cmd {
	if m.Responding() {
		return m.toast(components.ToastKindStatus, "Wait for the reply or press esc to stop it")
	}

	p, err := m.controller.Begin(m.ctx, session.Draft{
		Text:        text,
		Attachments: m.attachments,
	})
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		return nil
	case err != nil:
		m.logger.Warn("send rejected", zap.Error(err))
		return m.toast(components.ToastKindError, err.Error())
	}

	id := p.ConversationID()
	m.pending[id] = true
	m.input.Reset()

	// a freshly created conversation uses the selected model
	if conv, ok := m.store.Get(id); ok {
		m.controller.SetModel(conv.Model)
	}
	return tea.Batch(m.refresh(), waitReply(p))
}

func (m *Model) handleReply(msg ReplyMsg) tea.Cmd {
	res := msg.Result
	id := res.ConversationID
	delete(m.pending, id)

	var toast tea.Cmd
	switch {
	case res.Discarded:
		toast = m.toast(components.ToastKindWarning, "Reply discarded: the conversation was deleted or cleared")
	case errors.Is(msg.Err, context.Canceled):
		toast = m.toast(components.ToastKindStatus, "Reply stopped")
	case msg.Err != nil && res.Reply.Failed && m.store.Has(id):
		m.notices[id] = append(m.notices[id], notice{after: res.UserMessage.ID, msg: res.Reply})
		if id != m.store.ActiveID() {
			conv, _ := m.store.Get(id)
			toast = m.toast(components.ToastKindError, fmt.Sprintf("No reply in %q", conv.Title))
		}
	case msg.Err != nil && history.IsStorageError(msg.Err, history.OpWrite):
		toast = m.toast(components.ToastKindWarning, "Reply shown but not saved: "+msg.Err.Error())
	case msg.Err != nil:
		toast = m.toast(components.ToastKindError, msg.Err.Error())
	}
	return tea.Batch(m.refresh(), toast)
}

// =============================================================================
// CONVERSATION ACTIONS
// =============================================================================

// storeErr turns a store error into a toast. Write failures leave the
// change in memory, so they only warn.
func (m *Model) storeErr(err error) tea.Cmd {
	if history.IsStorageError(err, history.OpWrite) {
		return m.toast(components.ToastKindWarning, "Not saved: "+err.Error())
	}
	return m.toast(components.ToastKindError, err.Error())
}

func (m *Model) newChat() tea.Cmd {
	var cmd tea.Cmd
	if _, err := m.store.CreateConversation(m.controller.Model()); err != nil {
		cmd = m.storeErr(err)
	}
	m.setSidebarFocus(false)
	return tea.Batch(m.refresh(), cmd)
}

func (m *Model) selectConversation(id string) tea.Cmd {
	if id == "" || id == m.store.ActiveID() {
		return m.refresh()
	}
	var cmd tea.Cmd
	if err := m.store.SelectConversation(id); err != nil {
		cmd = m.storeErr(err)
	}
	if conv, ok := m.store.Active(); ok {
		m.controller.SetModel(conv.Model)
	}
	return tea.Batch(m.refresh(), cmd)
}

// targetID is the conversation the conversation actions apply to: the
// sidebar cursor while the sidebar is focused, else the active one.
func (m *Model) targetID() string {
	if m.sidebar.Focused() {
		return m.sidebar.CursorID()
	}
	return m.store.ActiveID()
}

func (m *Model) openConfirm(kind overlay) tea.Cmd {
	id := m.targetID()
	if id == "" {
		return m.toast(components.ToastKindStatus, "No conversation selected")
	}
	m.overlay = kind
	m.confirmID = id
	return nil
}

func (m *Model) deleteConversation(id string) tea.Cmd {
	m.controller.Cancel(id)
	delete(m.notices, id)

	var cmd tea.Cmd
	if err := m.store.DeleteConversation(id); err != nil {
		cmd = m.storeErr(err)
	} else {
		cmd = m.toast(components.ToastKindSuccess, "Conversation deleted")
	}
	if conv, ok := m.store.Active(); ok {
		m.controller.SetModel(conv.Model)
	}
	return tea.Batch(m.refresh(), cmd)
}

func (m *Model) clearConversation(id string) tea.Cmd {
	m.controller.Cancel(id)
	delete(m.notices, id)

	var cmd tea.Cmd
	if err := m.store.ClearMessages(id); err != nil {
		cmd = m.storeErr(err)
	}
	return tea.Batch(m.refresh(), cmd)
}

func (m *Model) openRename() tea.Cmd {
	id := m.targetID()
	conv, ok := m.store.Get(id)
	if !ok {
		return m.toast(components.ToastKindStatus, "No conversation selected")
	}
	m.confirmID = id
	m.openPrompt(overlayRename, conv.Title, "conversation title")
	return nil
}

func (m *Model) renameConversation(id, title string) tea.Cmd {
	err := m.store.RenameConversation(id, title)
	switch {
	case errors.Is(err, history.ErrEmptyTitle):
		return m.toast(components.ToastKindError, "Title cannot be empty")
	case err != nil:
		return tea.Batch(m.refresh(), m.storeErr(err))
	}
	return m.refresh()
}

func (m *Model) exportActive() tea.Cmd {
	conv, ok := m.store.Active()
	if !ok || conv.IsEmpty() {
		return m.toast(components.ToastKindStatus, "Nothing to export yet")
	}
	opts := export.DefaultOptions()
	opts.OutputDir = m.exportDir
	opts.Now = m.now
	path, err := export.ExportMarkdown(&conv, opts)
	if err != nil {
		return m.toast(components.ToastKindError, "Export failed: "+err.Error())
	}
	return m.toast(components.ToastKindSuccess, "Exported to "+path)
}

// =============================================================================
// MODEL PICKER
// =============================================================================

func (m *Model) openModels() {
	current := m.controller.Model()
	locked := false
	if conv, ok := m.store.Active(); ok {
		current = conv.Model
		locked = conv.ModelLocked()
	}
	m.picker = components.NewModelPicker(m.theme, m.catalog.All(), m.cfg.UI.ModelPageSize, current)
	m.picker.SetLocked(locked)
	m.overlay = overlayModels
}

// chooseModel makes id the model for new conversations and, unless it
// already has messages, for the active one.
func (m *Model) chooseModel(info model.ModelInfo) tea.Cmd {
	m.controller.SetModel(info.ID)

	conv, ok := m.store.Active()
	if !ok {
		return m.toast(components.ToastKindSuccess, "New chats will use "+info.DisplayName())
	}
	err := m.store.UpdateConversation(conv.ID, model.ModelPatch(info.ID))
	switch {
	case errors.Is(err, history.ErrModelLocked):
		return m.toast(components.ToastKindWarning, fmt.Sprintf(
			"This conversation stays on %s; new chats will use %s", conv.Model, info.DisplayName()))
	case err != nil:
		return tea.Batch(m.refresh(), m.storeErr(err))
	}
	return tea.Batch(m.refresh(), m.toast(components.ToastKindSuccess, "Model set to "+info.DisplayName()))
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func (m *Model) attachFile(path string) tea.Cmd {
	path = expandHome(strings.TrimSpace(path))
	if path == "" {
		return nil
	}
	if limit := m.attachments.Limit(); m.attachments.Len() >= limit {
		return m.toast(components.ToastKindWarning, fmt.Sprintf("At most %d files per message", limit))
	}
	added, err := m.attachments.Add(path)
	if err != nil {
		return m.toast(components.ToastKindError, err.Error())
	}
	if len(added) == 0 {
		return nil
	}
	return m.toast(components.ToastKindSuccess, "Attached "+added[0].Name)
}

func (m *Model) detachLast() tea.Cmd {
	n := m.attachments.Len()
	if n == 0 {
		return nil
	}
	m.attachments.RemoveAt(n - 1)
	return nil
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m *Model) openPrompt(kind overlay, value, placeholder string) {
	m.overlay = kind
	m.prompt.SetValue(value)
	m.prompt.Placeholder = placeholder
	m.prompt.CursorEnd()
	m.prompt.Focus()
	m.input.Blur()
}

func (m *Model) closeOverlay() {
	m.overlay = overlayNone
	m.picker = nil
	m.confirmID = ""
	m.prompt.Blur()
	if !m.sidebar.Focused() {
		m.input.Focus()
	}
}

func (m Model) handleOverlayKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Cancel) {
		m.closeOverlay()
		return m, nil
	}

	switch m.overlay {
	case overlayModels:
		switch msg.String() {
		case "up", "k", "shift+tab":
			m.picker.MoveCursor(-1)
		case "down", "j", "tab":
			m.picker.MoveCursor(1)
		case "enter":
			info, ok := m.picker.Select()
			if !ok {
				return m, nil
			}
			m.closeOverlay()
			return m, m.chooseModel(info)
		}
		return m, nil

	case overlayRename, overlayAttach:
		if msg.Type == tea.KeyEnter {
			value, kind, id := m.prompt.Value(), m.overlay, m.confirmID
			m.closeOverlay()
			if kind == overlayRename {
				return m, m.renameConversation(id, value)
			}
			return m, m.attachFile(value)
		}
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd

	case overlayConfirmDelete, overlayConfirmClear:
		switch strings.ToLower(msg.String()) {
		case "y", "enter":
			kind, id := m.overlay, m.confirmID
			m.closeOverlay()
			if kind == overlayConfirmDelete {
				return m, m.deleteConversation(id)
			}
			return m, m.clearConversation(id)
		case "n":
			m.closeOverlay()
		}
		return m, nil
	}
	return m, nil
}
