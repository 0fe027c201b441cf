// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// =============================================================================
// TYPING INDICATOR
// =============================================================================

// TypingIndicator is the spinner shown while the assistant is composing a
// reply for the visible conversation.
type TypingIndicator struct {
	spinner spinner.Model
	theme   *styles.Theme

	message   string
	startTime time.Time
	isActive  bool
	now       func() time.Time
}

// NewTypingIndicator creates an inactive indicator.
func NewTypingIndicator(theme *styles.Theme) TypingIndicator {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Spinner

	return TypingIndicator{
		spinner: s,
		theme:   theme,
		message: "Assistant is typing",
		now:     time.Now,
	}
}

// SetClock replaces the clock used for the elapsed timer.
func (t *TypingIndicator) SetClock(now func() time.Time) {
	t.now = now
}

// Start activates the indicator and returns the first animation tick.
// Starting an active indicator keeps its timer.
func (t *TypingIndicator) Start() tea.Cmd {
	if t.isActive {
		return nil
	}
	t.isActive = true
	t.startTime = t.now()
	return t.spinner.Tick
}

// Stop deactivates the indicator.
func (t *TypingIndicator) Stop() {
	t.isActive = false
}

// Elapsed returns how long the indicator has been showing.
func (t TypingIndicator) Elapsed() time.Duration {
	if !t.isActive {
		return 0
	}
	return t.now().Sub(t.startTime)
}

// Update advances the animation. Ticks arriving while stopped end the loop.
func (t TypingIndicator) Update(msg tea.Msg) (TypingIndicator, tea.Cmd) {
	if !t.isActive {
		return t, nil
	}
	var cmd tea.Cmd
	t.spinner, cmd = t.spinner.Update(msg)
	return t, cmd
}

// View renders the indicator, or nothing when inactive.
func (t TypingIndicator) View() string {
	if !t.isActive {
		return ""
	}
	return t.spinner.View() + " " +
		t.theme.ThinkingText.Render(t.message+"…") +
		t.theme.ThinkingTime.Render(" ("+formatElapsed(t.Elapsed())+")")
}

// formatElapsed formats a duration as "12s" or "1m 05s".
func formatElapsed(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %02ds", seconds/60, seconds%60)
}
