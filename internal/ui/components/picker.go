// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/chatdesk/internal/completion"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// ModelPicker lists models a page at a time. The last row reveals the
// next page while models remain hidden.
type ModelPicker struct {
	theme   *styles.Theme
	pager   *completion.Pager[model.ModelInfo]
	cursor  int
	current string
	step    int
	locked  bool
}

// NewModelPicker creates a picker over models, revealing pageSize at a
// time, with the cursor on current when it is on the first page.
func NewModelPicker(theme *styles.Theme, models []model.ModelInfo, pageSize int, current string) *ModelPicker {
	if pageSize < 1 {
		pageSize = completion.DefaultPageSize
	}
	p := &ModelPicker{
		theme:   theme,
		pager:   completion.NewPager(models, pageSize),
		current: current,
		step:    pageSize,
	}
	for i, m := range p.pager.Visible() {
		if m.ID == current {
			p.cursor = i
		}
	}
	return p
}

// SetLocked marks the current conversation as fixed to its model, which
// the picker mentions in its footer.
func (p *ModelPicker) SetLocked(locked bool) {
	p.locked = locked
}

// rowCount is the number of selectable rows, the "more" row included.
func (p *ModelPicker) rowCount() int {
	n := len(p.pager.Visible())
	if p.pager.HasMore() {
		n++
	}
	return n
}

// OnMore reports whether the cursor is on the "more" row.
func (p *ModelPicker) OnMore() bool {
	return p.pager.HasMore() && p.cursor == len(p.pager.Visible())
}

// MoveCursor moves the cursor by delta rows, wrapping around.
func (p *ModelPicker) MoveCursor(delta int) {
	n := p.rowCount()
	if n == 0 {
		return
	}
	p.cursor = ((p.cursor+delta)%n + n) % n
}

// Select acts on the cursor row. On the "more" row it reveals the next
// page, leaves the cursor on the first newly shown model and returns
// ok == false. Otherwise it returns the model under the cursor.
func (p *ModelPicker) Select() (model.ModelInfo, bool) {
	if p.OnMore() {
		p.pager.More()
		return model.ModelInfo{}, false
	}
	visible := p.pager.Visible()
	if p.cursor >= len(visible) {
		return model.ModelInfo{}, false
	}
	return visible[p.cursor], true
}

// Shown returns how many models are revealed.
func (p *ModelPicker) Shown() int {
	return len(p.pager.Visible())
}

// Remaining returns how many models are still hidden.
func (p *ModelPicker) Remaining() int {
	return p.pager.Remaining()
}

// View renders the picker as a dialog at most width cells wide.
func (p *ModelPicker) View(width int) string {
	width = min(max(width, 30), 72)
	inner := width - 6

	var b strings.Builder
	b.WriteString(p.theme.DialogTitle.Render("Choose a model"))
	b.WriteByte('\n')

	for i, m := range p.pager.Visible() {
		mark := "  "
		if m.ID == p.current {
			mark = p.theme.PickerCurrent.Render("✓ ")
		}
		name := runewidth.FillRight(runewidth.Truncate(m.DisplayName(), 22, "…"), 22)
		meta := m.Provider
		if ctx := m.ContextString(); ctx != "" {
			meta += " · " + ctx
		}
		line := mark + name + " " + p.theme.PickerDesc.Render(runewidth.Truncate(meta, max(inner-26, 0), "…"))

		style := p.theme.PickerItem
		if i == p.cursor {
			style = p.theme.PickerSelected
		}
		b.WriteString(style.Render(line))
		b.WriteByte('\n')
	}

	if p.pager.HasMore() {
		label := fmt.Sprintf("Show %d more…", min(p.pager.Remaining(), p.step))
		style := p.theme.PickerMore
		if p.OnMore() {
			style = p.theme.PickerSelected
		}
		b.WriteString(style.Render(label))
		b.WriteByte('\n')
	}

	footer := fmt.Sprintf("%d of %d models · enter select · esc close", len(p.pager.Visible()), p.pager.Total())
	if p.locked {
		footer = "This conversation keeps its model; the choice applies to new chats.\n" + footer
	}
	b.WriteByte('\n')
	b.WriteString(p.theme.PickerDesc.Render(footer))

	return p.theme.Dialog.Width(width).Render(b.String())
}
