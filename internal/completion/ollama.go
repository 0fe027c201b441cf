// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ollama"
)

// Ollama serves locally installed models.
type Ollama struct {
	client *ollama.Client
}

// NewOllama wraps client.
func NewOllama(client *ollama.Client) *Ollama {
	return &Ollama{client: client}
}

// Complete sends the conversation with images inlined.
func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	turns := req.turns()
	out := make([]ollama.Turn, 0, len(turns))
	for _, t := range turns {
		ot := ollama.Turn{Role: t.Role, Text: t.Text}
		for _, img := range t.Images {
			ot.Images = append(ot.Images, img.Data)
		}
		out = append(out, ot)
	}
	reply, err := o.client.Chat(ctx, ollama.ChatParams{
		Model:     req.Config.Model,
		MaxTokens: req.maxTokens(),
		Turns:     out,
	})
	if err != nil {
		return "", o.explain(req.Config.Model, err)
	}
	return reply, nil
}

// explain adds the likely fix to the errors a local install runs into.
func (o *Ollama) explain(modelID string, err error) error {
	switch {
	case errors.Is(err, ollama.ErrNotRunning):
		return fmt.Errorf("ollama is not reachable at %s, start it with `ollama serve`: %w", o.client.BaseURL(), err)
	case errors.Is(err, ollama.ErrModelMissing):
		return fmt.Errorf("model %q is not installed, run `ollama pull %s`: %w", modelID, modelID, err)
	case errors.Is(err, ollama.ErrTimeout):
		return fmt.Errorf("ollama did not answer in time: %w", err)
	}
	return err
}

// ListModels returns the installed models.
func (o *Ollama) ListModels(ctx context.Context) ([]ModelInfo, error) {
	listed, err := o.client.Installed(ctx)
	if err != nil {
		return nil, o.explain("", err)
	}
	out := make([]ModelInfo, 0, len(listed))
	for _, m := range listed {
		out = append(out, ModelInfo{
			ID:          m.Name,
			Name:        m.Name,
			Description: m.Summary(),
			Provider:    model.ProviderOllama,
		})
	}
	return out, nil
}
