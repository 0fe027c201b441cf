// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/history"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

var testNow = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

func testTheme() *styles.Theme {
	return styles.NewThemeWithProfile(termenv.Ascii, true)
}

func conv(id, title string, updated time.Time) model.Conversation {
	c := model.NewConversation(id, model.DefaultModelID, updated)
	c.Title = title
	return c
}

// =============================================================================
// SIDEBAR
// =============================================================================

func testGroups() []history.Group {
	return history.GroupByDay([]model.Conversation{
		conv("c1", "Sorting in Python", testNow.Add(-time.Hour)),
		conv("c2", "Quantum computing", testNow.Add(-2*time.Hour)),
		conv("c3", "Professional email", testNow.Add(-26*time.Hour)),
	}, testNow)
}

func TestSidebar_GroupsAndActive(t *testing.T) {
	s := NewSidebar(testTheme())
	s.SetGroups(testGroups(), "c2")

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "c2", s.CursorID())

	view := s.View()
	assert.Contains(t, view, "Today")
	assert.Contains(t, view, "Yesterday")
	assert.Contains(t, view, "Sorting in Python")
	assert.Less(t, strings.Index(view, "Today"), strings.Index(view, "Yesterday"))
}

func TestSidebar_Cursor(t *testing.T) {
	s := NewSidebar(testTheme())
	s.SetGroups(testGroups(), "c1")
	s.SetFocused(true)

	s.MoveCursor(1)
	assert.Equal(t, "c2", s.CursorID())
	s.MoveCursor(5)
	assert.Equal(t, "c3", s.CursorID())
	s.MoveCursor(-10)
	assert.Equal(t, "c1", s.CursorID())

	// the cursor survives a refresh while its conversation does
	s.MoveCursor(2)
	s.SetGroups(testGroups(), "c1")
	assert.Equal(t, "c3", s.CursorID())

	// and falls back to the active one when it does not
	groups := history.GroupByDay([]model.Conversation{
		conv("c1", "Sorting in Python", testNow),
		conv("c2", "Quantum computing", testNow),
	}, testNow)
	s.SetGroups(groups, "c2")
	assert.Equal(t, "c2", s.CursorID())

	assert.Contains(t, s.View(), "> ")
}

func TestSidebar_Empty(t *testing.T) {
	s := NewSidebar(testTheme())
	s.SetGroups(nil, "")

	assert.Equal(t, "", s.CursorID())
	s.MoveCursor(1)
	assert.Contains(t, s.View(), "No conversations yet")
}

func TestSidebar_BusyMarkerAndWidth(t *testing.T) {
	s := NewSidebar(testTheme())
	groups := history.GroupByDay([]model.Conversation{
		conv("c1", "A remarkably long conversation title that cannot fit", testNow),
	}, testNow)
	s.SetGroups(groups, "c1")
	s.SetBusy(map[string]bool{"c1": true})

	view := s.View()
	assert.Contains(t, view, "…")
	for _, line := range strings.Split(view, "\n") {
		if w := runewidth.StringWidth(line); w > styles.SidebarWidth {
			t.Errorf("line %q is %d cells wide, want at most %d", line, w, styles.SidebarWidth)
		}
	}
}

func TestSidebar_ScrollsToCursor(t *testing.T) {
	var convs []model.Conversation
	for i := 0; i < 20; i++ {
		convs = append(convs, conv(string(rune('a'+i)), "Chat "+string(rune('A'+i)), testNow))
	}
	s := NewSidebar(testTheme())
	s.SetGroups(history.GroupByDay(convs, testNow), "a")
	s.SetSize(8)
	s.SetFocused(true)

	s.MoveCursor(19)
	view := s.View()
	assert.Contains(t, view, "Chat T")
	assert.NotContains(t, view, "Chat A")
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		title string
		width int
		want  string
	}{
		{"Short", 10, "Short"},
		{"Exactly ten", 11, "Exactly ten"},
		{"Much too long for this", 10, "Much too …"},
		{"line\nbreaks  collapse", 30, "line breaks collapse"},
		{"日本語のタイトル", 9, "日本語の…"},
		{"anything", 0, ""},
	}

	for _, tt := range tests {
		if got := TruncateTitle(tt.title, tt.width); got != tt.want {
			t.Errorf("TruncateTitle(%q, %d) = %q, want %q", tt.title, tt.width, got, tt.want)
		}
	}
}

// =============================================================================
// MODEL PICKER
// =============================================================================

func TestModelPicker_Paging(t *testing.T) {
	p := NewModelPicker(testTheme(), model.BuiltinModels, 3, model.DefaultModelID)

	assert.Equal(t, 3, p.Shown())
	assert.Equal(t, len(model.BuiltinModels)-3, p.Remaining())
	assert.Contains(t, p.View(80), "Show 3 more…")

	// the row after the last visible model reveals the next page
	p.MoveCursor(3 - p.cursor)
	require.True(t, p.OnMore())
	_, ok := p.Select()
	assert.False(t, ok)
	assert.Equal(t, 6, p.Shown())

	// the cursor lands on the first newly revealed model
	info, ok := p.Select()
	require.True(t, ok)
	assert.Equal(t, model.BuiltinModels[3].ID, info.ID)
}

func TestModelPicker_CursorStartsOnCurrent(t *testing.T) {
	current := model.BuiltinModels[1].ID
	p := NewModelPicker(testTheme(), model.BuiltinModels, 10, current)

	info, ok := p.Select()
	require.True(t, ok)
	assert.Equal(t, current, info.ID)
	assert.False(t, p.OnMore())
	assert.NotContains(t, p.View(80), "more…")
}

func TestModelPicker_Wraps(t *testing.T) {
	p := NewModelPicker(testTheme(), model.BuiltinModels[:2], 10, "")

	p.MoveCursor(-1)
	info, _ := p.Select()
	assert.Equal(t, model.BuiltinModels[1].ID, info.ID)
	p.MoveCursor(1)
	info, _ = p.Select()
	assert.Equal(t, model.BuiltinModels[0].ID, info.ID)
}

func TestModelPicker_LockedFooter(t *testing.T) {
	p := NewModelPicker(testTheme(), model.BuiltinModels, 10, "")
	p.SetLocked(true)
	assert.Contains(t, p.View(80), "keeps its model")
}

// =============================================================================
// TOASTS
// =============================================================================

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestToastManager_Expiry(t *testing.T) {
	clock := &fakeClock{t: testNow}
	m := NewToastManager(clock.now)

	m.Add(ToastKindStatus, "Saved")
	m.Add(ToastKindError, "Request failed")
	require.Equal(t, 2, m.Len())

	clock.t = clock.t.Add(DefaultToastDuration)
	assert.Equal(t, 1, m.Tick())
	assert.Equal(t, "Request failed", m.Toasts()[0].Message)

	clock.t = clock.t.Add(ErrorToastDuration)
	assert.Equal(t, 0, m.Tick())
}

func TestToastManager_CapAndDismiss(t *testing.T) {
	m := NewToastManager(nil)
	for _, msg := range []string{"one", "two", "three", "four"} {
		m.Add(ToastKindWarning, msg)
	}

	toasts := m.Toasts()
	require.Len(t, toasts, maxToasts)
	assert.Equal(t, "four", toasts[0].Message)

	assert.True(t, m.DismissNewest())
	assert.Equal(t, "three", m.Toasts()[0].Message)

	m.Remove(m.Toasts()[0].ID)
	assert.Equal(t, 1, m.Len())
	m.DismissNewest()
	assert.False(t, m.DismissNewest())
}

func TestToast_IsExpired(t *testing.T) {
	toast := Toast{CreatedAt: testNow, Duration: 4 * time.Second}

	assert.False(t, toast.IsExpired(testNow.Add(time.Second)))
	assert.True(t, toast.IsExpired(testNow.Add(4*time.Second)))
}

func TestRenderToastStack(t *testing.T) {
	m := NewToastManager(nil)
	m.Add(ToastKindError, "first")
	m.Add(ToastKindSuccess, "second")

	view := RenderToastStack(m.Toasts(), 80)
	assert.Contains(t, view, styles.StatusIndicators.Error)
	assert.Less(t, strings.Index(view, "first"), strings.Index(view, "second"))
	assert.Empty(t, RenderToastStack(nil, 80))
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"the quick brown fox", 10, "the quick\nbrown fox"},
		{"abcdefghijkl", 5, "abcde\nfghij\nkl"},
		{"", 10, ""},
		{"no wrap", 0, "no wrap"},
	}

	for _, tt := range tests {
		if got := wrapText(tt.text, tt.width); got != tt.want {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

// =============================================================================
// TYPING INDICATOR / WELCOME
// =============================================================================

func TestTypingIndicator(t *testing.T) {
	clock := &fakeClock{t: testNow}
	ind := NewTypingIndicator(testTheme())
	ind.SetClock(clock.now)

	assert.Empty(t, ind.View())
	require.NotNil(t, ind.Start())
	assert.Nil(t, ind.Start(), "restarting keeps the running tick loop")

	clock.t = clock.t.Add(75 * time.Second)
	assert.Equal(t, 75*time.Second, ind.Elapsed())
	assert.Contains(t, ind.View(), "Assistant is typing…")
	assert.Contains(t, ind.View(), "(1m 15s)")

	ind.Stop()
	assert.Zero(t, ind.Elapsed())
	assert.Empty(t, ind.View())
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{12 * time.Second, "12s"},
		{65 * time.Second, "1m 05s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRenderWelcome(t *testing.T) {
	view := RenderWelcome(testTheme(), 100, 30, "GPT-5")

	assert.Contains(t, view, "How can I help you today?")
	assert.Contains(t, view, "GPT-5")
	for i, s := range Suggestions {
		assert.Contains(t, view, s)
		assert.Contains(t, view, SuggestionKey(i))
	}
}
