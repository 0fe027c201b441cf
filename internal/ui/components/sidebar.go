// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/chatdesk/internal/history"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// busyMarker trails the title of a conversation awaiting a reply.
const busyMarker = " …"

// sidebarRow is one rendered line: a group label or a conversation.
type sidebarRow struct {
	label string
	item  int // index into Sidebar.items, -1 for labels
}

// Sidebar lists conversations under day labels, highlighting the active
// one. The cursor moves over conversations only.
type Sidebar struct {
	theme *styles.Theme

	items    []model.Conversation
	rows     []sidebarRow
	activeID string
	busy     map[string]bool

	cursor  int
	offset  int
	focused bool
	width   int
	height  int
}

// NewSidebar creates an empty sidebar.
func NewSidebar(theme *styles.Theme) *Sidebar {
	return &Sidebar{theme: theme, width: styles.SidebarWidth}
}

// SetGroups replaces the listing. The cursor stays on the conversation it
// pointed at when that conversation survives, else it moves to the active
// one.
func (s *Sidebar) SetGroups(groups []history.Group, activeID string) {
	previous := s.CursorID()

	s.items = s.items[:0]
	s.rows = s.rows[:0]
	for _, g := range groups {
		s.rows = append(s.rows, sidebarRow{label: g.Label, item: -1})
		for _, c := range g.Conversations {
			s.rows = append(s.rows, sidebarRow{item: len(s.items)})
			s.items = append(s.items, c)
		}
	}
	s.activeID = activeID

	if !s.SetCursorTo(previous) && !s.SetCursorTo(activeID) {
		s.cursor = 0
	}
	s.clampOffset()
}

// SetBusy marks the conversations that are awaiting a reply.
func (s *Sidebar) SetBusy(ids map[string]bool) {
	s.busy = ids
}

// SetFocused toggles the focus border and cursor.
func (s *Sidebar) SetFocused(focused bool) {
	s.focused = focused
	if focused {
		s.SetCursorTo(s.activeID)
	}
}

// Focused reports whether the sidebar has keyboard focus.
func (s *Sidebar) Focused() bool {
	return s.focused
}

// SetSize sets the rendered height. The width is fixed by the theme.
func (s *Sidebar) SetSize(height int) {
	s.height = height
	s.clampOffset()
}

// Len returns the number of conversations listed.
func (s *Sidebar) Len() int {
	return len(s.items)
}

// MoveCursor moves the cursor by delta conversations, clamped to the list.
func (s *Sidebar) MoveCursor(delta int) {
	if len(s.items) == 0 {
		return
	}
	s.cursor = min(max(s.cursor+delta, 0), len(s.items)-1)
	s.clampOffset()
}

// CursorID returns the conversation under the cursor, or "".
func (s *Sidebar) CursorID() string {
	if s.cursor < 0 || s.cursor >= len(s.items) {
		return ""
	}
	return s.items[s.cursor].ID
}

// SetCursorTo moves the cursor to id and reports whether it is listed.
func (s *Sidebar) SetCursorTo(id string) bool {
	if id == "" {
		return false
	}
	for i, c := range s.items {
		if c.ID == id {
			s.cursor = i
			s.clampOffset()
			return true
		}
	}
	return false
}

// cursorRow returns the row index of the cursor.
func (s *Sidebar) cursorRow() int {
	for i, r := range s.rows {
		if r.item == s.cursor {
			return i
		}
	}
	return 0
}

// clampOffset scrolls so the cursor row, and its group label when it is
// the first of a group, stay in view.
func (s *Sidebar) clampOffset() {
	visible := s.visibleRows()
	if visible <= 0 {
		s.offset = 0
		return
	}
	row := s.cursorRow()
	top := row
	if row > 0 && s.rows[row-1].item < 0 {
		top = row - 1
	}
	if top < s.offset {
		s.offset = top
	}
	if row >= s.offset+visible {
		s.offset = row - visible + 1
	}
	s.offset = max(min(s.offset, len(s.rows)-visible), 0)
}

// visibleRows is the number of list rows that fit under the title.
func (s *Sidebar) visibleRows() int {
	if s.height <= 0 {
		return len(s.rows)
	}
	return s.height - 2
}

// View renders the sidebar.
func (s *Sidebar) View() string {
	inner := s.width - 1
	var b strings.Builder

	b.WriteString(s.theme.SidebarGroup.Render("Conversations"))
	b.WriteString("\n\n")

	if len(s.items) == 0 {
		b.WriteString(s.theme.SidebarEmpty.Render("No conversations yet"))
	}

	end := min(s.offset+s.visibleRows(), len(s.rows))
	for i := s.offset; i < end; i++ {
		if i > s.offset {
			b.WriteByte('\n')
		}
		row := s.rows[i]
		if row.item < 0 {
			b.WriteString(s.theme.SidebarGroup.Render(row.label))
			continue
		}
		b.WriteString(s.renderItem(row.item, inner))
	}

	style := s.theme.Sidebar
	if s.focused {
		style = s.theme.SidebarFocused
	}
	if s.height > 0 {
		style = style.Height(s.height).MaxHeight(s.height)
	}
	return style.Render(b.String())
}

func (s *Sidebar) renderItem(i, width int) string {
	c := s.items[i]
	avail := width - 3
	marker := ""
	if s.busy[c.ID] {
		marker = busyMarker
		avail -= runewidth.StringWidth(busyMarker)
	}

	title := TruncateTitle(c.Title, avail)
	title = runewidth.FillRight(title, avail)
	if marker != "" {
		title += s.theme.SidebarMeta.Render(marker)
	}

	switch {
	case s.focused && i == s.cursor:
		return s.theme.SidebarCursor.Render(">") + " " + title
	case c.ID == s.activeID:
		return s.theme.SidebarActive.Render(title)
	default:
		return s.theme.SidebarItem.Render(title)
	}
}

// TruncateTitle fits a single-line title into width display cells,
// ending truncated titles with an ellipsis.
func TruncateTitle(title string, width int) string {
	title = strings.Join(strings.Fields(title), " ")
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(title, width, "…")
}
