// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the chatdesk
full-screen interface.

# Color System (colors.go)

All colors are Lip Gloss AdaptiveColor values and pick their light or
dark variant from the detected terminal background.

  - Purple - assistant turns, selections
  - Cyan - brand, user turns, focus
  - Emerald - success
  - Amber - warnings, pending replies
  - Rose - errors and failure notices

# Theme (theme.go)

Theme bundles the lipgloss styles for every region of the screen:
header, sidebar, transcript, input box, model picker, welcome screen and
status bar. NewTheme detects the terminal color profile and background
through termenv; ThemeFor honors the configured "dark", "light" or
"auto" setting.

# Usage

	import "github.com/jeranaias/chatdesk/internal/ui/styles"

	theme := styles.ThemeFor(cfg.UI.Theme)
	title := theme.HeaderTitle.Render(conv.Title)
*/
package styles
