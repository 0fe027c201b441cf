// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// errNoTerminal is returned when a prompt needs a keyboard.
var errNoTerminal = errors.New("stdin is not a terminal")

// isTerminal reports whether v is an *os.File attached to a terminal.
// Pipes, buffers and redirected files are not.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// wrapWidth is the column count for rendered replies on out: the terminal
// width less a margin, kept between 40 and 100. Non-terminals get 80.
func wrapWidth(out *os.File) int {
	width, _, err := term.GetSize(int(out.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return min(max(width-4, 40), 100)
}

// colorProfile honours NO_COLOR and CLICOLOR_FORCE and otherwise follows
// what stdout supports.
func colorProfile() termenv.Profile {
	return termenv.EnvColorProfile()
}
