// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/storage"
)

func TestDayLabel(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"earlier today", time.Date(2025, 3, 10, 0, 5, 0, 0, time.UTC), "Today"},
		{"late yesterday", time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC), "Yesterday"},
		{"three days", time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC), "3 days ago"},
		{"a week", time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC), "Mar 3, 2025"},
		{"future clock skew", time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC), "Today"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DayLabel(tt.t, now))
		})
	}
}

func TestGroupByDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	convs := []model.Conversation{
		{ID: "a", UpdatedAt: now.Add(-time.Hour)},
		{ID: "b", UpdatedAt: now.Add(-24 * time.Hour)},
		{ID: "c", UpdatedAt: now.Add(-2 * time.Hour)},
		{ID: "d", UpdatedAt: now.Add(-30 * 24 * time.Hour)},
	}

	groups := GroupByDay(convs, now)
	require.Len(t, groups, 3)
	assert.Equal(t, "Today", groups[0].Label)
	assert.Equal(t, []string{"a", "c"}, ids(groups[0].Conversations))
	assert.Equal(t, "Yesterday", groups[1].Label)
	assert.Equal(t, "Feb 8, 2025", groups[2].Label)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())
	a, _ := s.CreateConversation("gpt-5")
	require.NoError(t, s.AddMessage(a.ID, model.NewUserMessage("Plan a trip to Köln", nil)))
	b, _ := s.CreateConversation("gpt-5")
	require.NoError(t, s.AddMessage(b.ID, model.NewUserMessage("Recipe ideas", nil)))
	require.NoError(t, s.AddMessage(b.ID, model.NewAssistantMessage("Try a STRASSE salad")))

	assert.Equal(t, []string{a.ID}, ids(s.Search("köln")))
	assert.Equal(t, []string{b.ID}, ids(s.Search("strasse")))
	assert.Equal(t, []string{a.ID}, ids(s.Search("KÖLN")))
	assert.Len(t, s.Search("  "), 2)
	assert.Empty(t, s.Search("nothing matches"))
}

func ids(convs []model.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}
