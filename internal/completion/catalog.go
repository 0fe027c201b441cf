// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"sync"

	"github.com/jeranaias/chatdesk/internal/model"
)

// Catalog is the de-duplicated list of known models. Built-in entries
// come first, provider listings are appended in the order they arrive.
type Catalog struct {
	mu     sync.RWMutex
	models []ModelInfo
	index  map[string]int
}

// NewCatalog creates a catalog seeded with builtins.
func NewCatalog(builtins []ModelInfo) *Catalog {
	c := &Catalog{index: make(map[string]int)}
	c.Merge(builtins)
	return c
}

// Merge adds models with unseen ids and returns how many were added.
// For ids already present, empty fields are filled from the new entry.
func (c *Catalog) Merge(models []ModelInfo) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, m := range models {
		if m.ID == "" {
			continue
		}
		if i, ok := c.index[m.ID]; ok {
			cur := &c.models[i]
			if cur.Name == "" {
				cur.Name = m.Name
			}
			if cur.Description == "" {
				cur.Description = m.Description
			}
			if cur.MaxTokens == 0 {
				cur.MaxTokens = m.MaxTokens
			}
			if cur.Provider == "" {
				cur.Provider = m.Provider
			}
			continue
		}
		c.index[m.ID] = len(c.models)
		c.models = append(c.models, m)
		added++
	}
	return added
}

// All returns every model.
func (c *Catalog) All() []ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ModelInfo(nil), c.models...)
}

// Len returns the number of models.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// Find looks a model up by id or display name.
func (c *Catalog) Find(idOrName string) (ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.index[idOrName]; ok {
		return c.models[i], true
	}
	return model.FindModel(c.models, idOrName)
}

// ByProvider returns the models carrying the provider label.
func (c *Catalog) ByProvider(label string) []ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ModelInfo
	for _, m := range c.models {
		if m.Provider == label {
			out = append(out, m)
		}
	}
	return out
}
