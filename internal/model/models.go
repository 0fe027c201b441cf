// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// Provider labels used by the model catalog.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderUnknown    = "unknown"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes one selectable completion model.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Provider labels who serves the model (openai, anthropic, google, ...)
	Provider string `json:"provider"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description"`

	// MaxTokens is the context window size, 0 when unknown
	MaxTokens int `json:"max_tokens,omitempty"`
}

// DisplayName returns the name, falling back to the id.
func (m ModelInfo) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// ContextString returns a formatted context window string.
func (m ModelInfo) ContextString() string {
	switch {
	case m.MaxTokens <= 0:
		return ""
	case m.MaxTokens >= 1000000:
		return fmt.Sprintf("%.1fM tokens", float64(m.MaxTokens)/1000000)
	case m.MaxTokens >= 1000:
		return fmt.Sprintf("%dK tokens", m.MaxTokens/1000)
	default:
		return fmt.Sprintf("%d tokens", m.MaxTokens)
	}
}

// =============================================================================
// BUILT-IN CATALOG
// =============================================================================

// BuiltinModels is the catalog shipped with chatdesk. Provider listings are
// merged on top of it at runtime.
var BuiltinModels = []ModelInfo{
	{ID: "gpt-5", Name: "GPT-5", Provider: ProviderOpenAI, Description: "Most capable OpenAI model"},
	{ID: "gpt-5-mini", Name: "GPT-5 Mini", Provider: ProviderOpenAI, Description: "Fast & cost-efficient"},
	{ID: "gpt-4.1", Name: "GPT-4.1", Provider: ProviderOpenAI, Description: "Reliable flagship GPT-4"},
	{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Provider: ProviderAnthropic, Description: "Superior reasoning", MaxTokens: 200000},
	{ID: "claude-opus-4-5", Name: "Claude Opus 4.5", Provider: ProviderAnthropic, Description: "Highly intelligent", MaxTokens: 200000},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: ProviderGoogle, Description: "Fast multimodal"},
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: ProviderUnknown, Description: "Best for complex tasks"},
}

// DefaultModelID is selected when the configuration names no model.
const DefaultModelID = "gpt-5"

// FindModel looks a model up by exact id first, then by case-insensitive
// id or name.
func FindModel(models []ModelInfo, idOrName string) (ModelInfo, bool) {
	for _, m := range models {
		if m.ID == idOrName {
			return m, true
		}
	}
	for _, m := range models {
		if strings.EqualFold(m.ID, idOrName) || strings.EqualFold(m.Name, idOrName) {
			return m, true
		}
	}
	return ModelInfo{}, false
}
