// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// Suggestions are the starter prompts offered on an empty conversation.
var Suggestions = []string{
	"Explain quantum computing in simple terms",
	"Write a Python function to sort a list",
	"Help me write a professional email",
}

// SuggestionKey returns the key that sends suggestion i (zero-based).
func SuggestionKey(i int) string {
	return fmt.Sprintf("alt+%d", i+1)
}

// RenderWelcome renders the empty-conversation screen centered in a
// width x height box.
func RenderWelcome(theme *styles.Theme, width, height int, modelName string) string {
	cardWidth := min(max(width-8, 20), 56)

	cards := make([]string, 0, len(Suggestions))
	for i, s := range Suggestions {
		key := theme.ShortcutKey.Render(SuggestionKey(i))
		cards = append(cards, theme.Suggestion.Width(cardWidth).Render(key+"  "+s))
	}

	body := lipgloss.JoinVertical(lipgloss.Center,
		theme.WelcomeTitle.Render("How can I help you today?"),
		"",
		theme.WelcomeSubtitle.Render("Ask anything. Replies come from "+modelName+"."),
		"",
		lipgloss.JoinVertical(lipgloss.Left, cards...),
	)

	if width <= 0 || height <= 0 {
		return body
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, body)
}
