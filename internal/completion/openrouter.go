// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"strings"

	"github.com/jeranaias/chatdesk/internal/cloud"
	"github.com/jeranaias/chatdesk/internal/model"
)

// OpenRouter serves any model through the OpenRouter gateway.
type OpenRouter struct {
	client *cloud.Client
}

// NewOpenRouter wraps a configured client.
func NewOpenRouter(client *cloud.Client) *OpenRouter {
	return &OpenRouter{client: client}
}

// Complete sends the conversation under the gateway's namespaced id.
func (o *OpenRouter) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if !o.client.Configured() {
		return "", cloud.ErrNoKey
	}
	turns := req.turns()
	out := make([]cloud.Turn, 0, len(turns))
	for _, t := range turns {
		ct := cloud.Turn{Role: t.Role, Text: t.Text}
		for _, img := range t.Images {
			ct.Images = append(ct.Images, cloud.Image{MIMEType: img.MIMEType, Data: img.Data})
		}
		out = append(out, ct)
	}
	return o.client.Chat(ctx, cloud.ChatParams{
		Model:     QualifiedModelID(req.Config.Model),
		MaxTokens: req.maxTokens(),
		Turns:     out,
	})
}

// ListModels returns the gateway's catalog.
func (o *OpenRouter) ListModels(ctx context.Context) ([]ModelInfo, error) {
	listed, err := o.client.Models(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ModelInfo, 0, len(listed))
	for _, m := range listed {
		out = append(out, ModelInfo{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			Provider:    model.ProviderOpenRouter,
			MaxTokens:   m.ContextLength,
		})
	}
	return out, nil
}

// QualifiedModelID prefixes bare vendor ids with the vendor namespace the
// gateway expects. Ids that already carry a namespace pass through.
func QualifiedModelID(id string) string {
	if strings.Contains(id, "/") {
		return id
	}
	switch {
	case strings.HasPrefix(id, "gpt-"):
		return "openai/" + id
	case strings.HasPrefix(id, "claude-"):
		return "anthropic/" + id
	case strings.HasPrefix(id, "gemini-"):
		return "google/" + id
	}
	return id
}
