// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/jeranaias/chatdesk/internal/model"
)

// Group is a run of conversations sharing a sidebar label.
type Group struct {
	Label         string
	Conversations []model.Conversation
}

// DayLabel names the day of t relative to now: "Today", "Yesterday",
// "N days ago" within a week, else the date.
func DayLabel(t, now time.Time) string {
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	day := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	today := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(day).Hours() / 24)

	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}

// Groups buckets the collection by the day each conversation was last
// updated. Groups appear in the order their first member appears in the
// collection, and members keep collection order.
func (s *Store) Groups(now time.Time) []Group {
	return GroupByDay(s.Conversations(), now)
}

// GroupByDay buckets convs by DayLabel of UpdatedAt.
func GroupByDay(convs []model.Conversation, now time.Time) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, c := range convs {
		label := DayLabel(c.UpdatedAt, now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Conversations = append(groups[i].Conversations, c)
	}
	return groups
}

// Search returns the conversations whose title or message text contains
// query, compared case-insensitively. An empty query matches everything.
func (s *Store) Search(query string) []model.Conversation {
	convs := s.Conversations()
	query = strings.TrimSpace(query)
	if query == "" {
		return convs
	}

	fold := cases.Fold()
	needle := fold.String(query)

	var out []model.Conversation
	for _, c := range convs {
		if matches(fold, c, needle) {
			out = append(out, c)
		}
	}
	return out
}

func matches(fold cases.Caser, c model.Conversation, needle string) bool {
	if strings.Contains(fold.String(c.Title), needle) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(fold.String(m.Content), needle) {
			return true
		}
	}
	return false
}
