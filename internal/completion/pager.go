// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

// DefaultPageSize is how many entries each step reveals.
const DefaultPageSize = 10

// Pager reveals a list in fixed-size increments.
type Pager[T any] struct {
	items []T
	size  int
	shown int
}

// NewPager creates a pager showing the first page of items. Sizes below
// one fall back to DefaultPageSize.
func NewPager[T any](items []T, size int) *Pager[T] {
	if size < 1 {
		size = DefaultPageSize
	}
	p := &Pager[T]{items: items, size: size}
	p.Reset()
	return p
}

// Visible returns the revealed prefix.
func (p *Pager[T]) Visible() []T {
	return p.items[:p.shown]
}

// More reveals the next page and returns how many entries it added.
func (p *Pager[T]) More() int {
	before := p.shown
	p.shown = min(p.shown+p.size, len(p.items))
	return p.shown - before
}

// HasMore reports whether entries remain hidden.
func (p *Pager[T]) HasMore() bool {
	return p.shown < len(p.items)
}

// Remaining returns the number of hidden entries.
func (p *Pager[T]) Remaining() int {
	return len(p.items) - p.shown
}

// Total returns the number of entries.
func (p *Pager[T]) Total() int {
	return len(p.items)
}

// Reset goes back to the first page.
func (p *Pager[T]) Reset() {
	p.shown = min(p.size, len(p.items))
}
