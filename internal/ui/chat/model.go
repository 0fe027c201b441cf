// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/attach"
	"github.com/jeranaias/chatdesk/internal/completion"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/history"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/ui/components"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// inputHeight is the number of text rows in the message box.
const inputHeight = 3

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Deps is what the chat view drives.
type Deps struct {
	Store      *history.Store
	Controller *session.Controller
	Catalog    *completion.Catalog
	Config     *config.Config
	Logger     *zap.Logger

	// Context bounds every send. Defaults to context.Background.
	Context context.Context

	// Theme defaults to the configured theme.
	Theme *styles.Theme

	// ExportDir receives markdown exports. Defaults to the working directory.
	ExportDir string

	// Now defaults to time.Now.
	Now func() time.Time
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen: sidebar, transcript,
// message box and status bar.
type Model struct {
	store      *history.Store
	controller *session.Controller
	catalog    *completion.Catalog
	cfg        *config.Config
	logger     *zap.Logger
	ctx        context.Context
	exportDir  string
	now        func() time.Time

	// Styling
	theme *styles.Theme
	keys  KeyMap
	help  help.Model

	// Dimensions
	width  int
	height int

	// UI Components
	sidebar  *components.Sidebar
	viewport viewport.Model
	input    textarea.Model
	prompt   textinput.Model
	typing   components.TypingIndicator
	toasts   *components.ToastManager
	picker   *components.ModelPicker

	// Pending files for the next send
	attachments *attach.Set

	// Conversations awaiting a reply
	pending map[string]bool

	// Failure notices by conversation
	notices map[string][]notice

	// Rendered assistant replies by message id, valid for renderWidth
	rendered    map[string]string
	renderWidth int

	overlay   overlay
	confirmID string
	viewedID  string
}

// New creates the chat model.
func New(deps Deps) Model {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx := deps.Context
	if ctx == nil {
		ctx = context.Background()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	theme := deps.Theme
	if theme == nil {
		theme = styles.ThemeFor(cfg.UI.Theme)
	}
	exportDir := deps.ExportDir
	if exportDir == "" {
		exportDir = "."
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = completion.NewCatalog(model.BuiltinModels)
	}

	input := textarea.New()
	input.Placeholder = "Message the assistant…"
	input.ShowLineNumbers = false
	input.Prompt = ""
	input.CharLimit = 0
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline = DefaultKeyMap().Newline
	input.Focus()

	prompt := textinput.New()
	prompt.CharLimit = 200

	typing := components.NewTypingIndicator(theme)
	typing.SetClock(now)

	m := Model{
		store:      deps.Store,
		controller: deps.Controller,
		catalog:    catalog,
		cfg:        cfg,
		logger:     logger,
		ctx:        ctx,
		exportDir:  exportDir,
		now:        now,

		theme: theme,
		keys:  DefaultKeyMap(),
		help:  help.New(),

		sidebar:  components.NewSidebar(theme),
		viewport: viewport.New(0, 0),
		input:    input,
		prompt:   prompt,
		typing:   typing,
		toasts:   components.NewToastManager(now),

		attachments: attach.NewSet(
			attach.WithLimit(cfg.Chat.MaxAttachments),
			attach.WithLogger(logger.Named("attach")),
		),
		pending:  make(map[string]bool),
		notices:  make(map[string][]notice),
		rendered: make(map[string]string),
	}
	m.refresh()
	return m
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Close releases pending attachments.
func (m Model) Close() error {
	return m.attachments.Close()
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles a message and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.help.Width = msg.Width

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case ReplyMsg:
		cmds = append(cmds, m.handleReply(msg))

	case ConfigMsg:
		cmds = append(cmds, m.applyConfig(msg))

	case components.ToastTickMsg:
		if m.toasts.Tick() > 0 {
			cmds = append(cmds, components.ToastTickCmd())
		}

	default:
		var cmd tea.Cmd
		m.typing, cmd = m.typing.Update(msg)
		cmds = append(cmds, cmd)
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.layout()
	return m, tea.Batch(cmds...)
}

// =============================================================================
// STATE SYNC
// =============================================================================

// refresh pulls the store into the sidebar and transcript and starts or
// stops the typing indicator for the visible conversation.
func (m *Model) refresh() tea.Cmd {
	activeID := m.store.ActiveID()
	m.sidebar.SetGroups(m.store.Groups(m.now()), activeID)
	m.sidebar.SetBusy(m.pending)

	// forget notices of conversations that are gone
	for id := range m.notices {
		if !m.store.Has(id) {
			delete(m.notices, id)
		}
	}

	var cmd tea.Cmd
	if m.pending[activeID] {
		cmd = m.typing.Start()
	} else {
		m.typing.Stop()
	}

	follow := activeID != m.viewedID || m.viewport.AtBottom()
	m.viewedID = activeID
	m.layout()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
	return cmd
}

// applyConfig takes the interface settings and the attachment cap from a
// reloaded configuration. Everything else needs a restart.
func (m *Model) applyConfig(msg ConfigMsg) tea.Cmd {
	if msg.Err != nil || msg.Config == nil {
		m.logger.Warn("config reload failed", zap.Error(msg.Err))
		return m.toast(components.ToastKindWarning, fmt.Sprintf("Settings not reloaded: %v", msg.Err))
	}

	cfg := *m.cfg
	cfg.UI = msg.Config.UI
	cfg.Chat.MaxAttachments = msg.Config.Chat.MaxAttachments
	if cfg.UI.Theme != m.cfg.UI.Theme {
		m.setTheme(styles.ThemeFor(cfg.UI.Theme))
	}
	m.cfg = &cfg
	m.attachments.SetLimit(cfg.Chat.MaxAttachments)
	m.logger.Info("settings reloaded", zap.String("theme", cfg.UI.Theme), zap.Bool("compact", cfg.UI.Compact))

	return tea.Batch(m.refresh(), m.toast(components.ToastKindStatus, "Settings reloaded"))
}

// setTheme restyles every component. The typing indicator restarts on the
// next refresh.
func (m *Model) setTheme(theme *styles.Theme) {
	theme.SetSize(m.width, m.height)
	m.theme = theme

	focused := m.sidebar.Focused()
	m.sidebar = components.NewSidebar(theme)
	m.sidebar.SetFocused(focused)

	m.typing = components.NewTypingIndicator(theme)
	m.typing.SetClock(m.now)

	m.rendered = make(map[string]string)
}

// toast shows a notification and starts the expiry ticks when it is the
// only one visible.
func (m *Model) toast(kind components.ToastKind, message string) tea.Cmd {
	m.toasts.Add(kind, message)
	if m.toasts.Len() == 1 {
		return components.ToastTickCmd()
	}
	return nil
}

// =============================================================================
// LAYOUT
// =============================================================================

// mainWidth is the width of the column right of the sidebar.
func (m *Model) mainWidth() int {
	if m.showSidebar() {
		return max(m.width-styles.SidebarWidth, 1)
	}
	return max(m.width, 1)
}

func (m *Model) showSidebar() bool {
	return !m.cfg.UI.Compact && m.theme.ShowSidebar()
}

// layout sizes the transcript and message box to fill the screen around
// the fixed rows.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	width := m.mainWidth()

	m.input.SetWidth(max(width-4, 1))

	fixed := lipgloss.Height(m.renderHeader()) +
		lipgloss.Height(m.renderStatusBar()) +
		lipgloss.Height(m.renderComposer())
	if extra := m.renderBelowTranscript(); extra != "" {
		fixed += lipgloss.Height(extra)
	}

	height := max(m.height-fixed, 1)
	if m.viewport.Width != width || m.viewport.Height != height {
		// the welcome screen is sized to the viewport, so size first
		m.viewport.Width = width
		m.viewport.Height = height
		m.viewport.SetContent(m.renderTranscript())
	}
	m.viewport.SetYOffset(m.viewport.YOffset)
	m.sidebar.SetSize(m.height - lipgloss.Height(m.renderHeader()) - lipgloss.Height(m.renderStatusBar()))
}
