// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatdesk/internal/history"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/util"
)

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

// formatTimeAgo renders t relative to now.
func formatTimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	case d < 7*24*time.Hour:
		return plural(int(d.Hours()/24), "day") + " ago"
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// formatBytes formats a byte count for display.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// =============================================================================
// CONVERSATION LOOKUP
// =============================================================================

// resolveConversation accepts a 1-based index into the listing, a full id
// or a unique id prefix.
func resolveConversation(store *history.Store, ref string) (model.Conversation, error) {
	ref = strings.TrimSpace(ref)
	convs := store.Conversations()

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(convs) {
			return model.Conversation{}, ErrNotFound("conversation", ref)
		}
		return convs[n-1], nil
	}

	if conv, ok := store.Get(ref); ok {
		return conv, nil
	}

	var match *model.Conversation
	for i := range convs {
		if ref != "" && strings.HasPrefix(convs[i].ID, ref) {
			if match != nil {
				return model.Conversation{}, &ValidationError{
					Field:  "conversation",
					Value:  ref,
					Reason: "ambiguous id prefix",
				}
			}
			match = &convs[i]
		}
	}
	if match == nil {
		return model.Conversation{}, ErrNotFound("conversation", ref)
	}
	return *match, nil
}

// sessionRows converts the store listing for display.
func sessionRows(store *history.Store) []SessionInfo {
	convs := store.Conversations()
	active := store.ActiveID()
	rows := make([]SessionInfo, 0, len(convs))
	for i, c := range convs {
		rows = append(rows, SessionInfo{
			Index:        i + 1,
			ID:           c.ID,
			Title:        c.Title,
			Model:        c.Model,
			MessageCount: len(c.Messages),
			Active:       c.ID == active,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return rows
}

// writeSessionTable prints rows as an aligned table.
func writeSessionTable(w io.Writer, rows []SessionInfo, now time.Time) {
	fmt.Fprintf(w, "%-4s %-32s %-18s %-5s %s\n", "#", "Title", "Model", "Msgs", "Updated")
	fmt.Fprintln(w, RenderSeparator(72))
	for _, r := range rows {
		marker := " "
		if r.Active {
			marker = "*"
		}
		fmt.Fprintf(w, "%-4s %-32s %-18s %-5d %s\n",
			strconv.Itoa(r.Index)+marker,
			padRunes(util.Clip(util.SingleLine(r.Title), 30, "…"), 32),
			padRunes(util.Clip(r.Model, 16, "…"), 18),
			r.MessageCount,
			formatTimeAgo(r.UpdatedAt, now),
		)
	}
}

// padRunes pads s with spaces to width runes; fmt pads by bytes.
func padRunes(s string, width int) string {
	if n := util.RuneLen(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders markdown content for terminal display.
// Returns the original content if rendering fails or renderer is unavailable.
func renderMarkdown(content string) string {
	markdownOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrapWidth(os.Stdout)),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayReply writes a reply, rendered as markdown when render is set.
func displayReply(w io.Writer, reply string, render bool) {
	if render {
		fmt.Fprint(w, renderMarkdown(reply))
		return
	}
	fmt.Fprintln(w, reply)
}
