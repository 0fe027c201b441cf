// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/jeranaias/chatdesk/internal/model"
)

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAI serves OpenAI-compatible chat models through langchaingo.
type OpenAI struct {
	llm llms.Model
}

// NewOpenAI creates the adapter. The default model is only a placeholder;
// every request names its own.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model.DefaultModelID),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, openai.WithHTTPClient(cfg.HTTPClient))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &OpenAI{llm: llm}, nil
}

// NewOpenAIWith wraps an existing langchaingo model.
func NewOpenAIWith(llm llms.Model) *OpenAI {
	return &OpenAI{llm: llm}
}

// Complete sends the conversation and returns the first choice.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	resp, err := o.llm.GenerateContent(ctx, langchainMessages(req.turns()),
		llms.WithModel(req.Config.Model),
		llms.WithMaxTokens(req.maxTokens()),
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Content, nil
}

// ListModels returns the built-in OpenAI models.
func (o *OpenAI) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out []ModelInfo
	for _, m := range model.BuiltinModels {
		if m.Provider == model.ProviderOpenAI {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no openai models known")
	}
	return out, nil
}

func langchainMessages(turns []turn) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		mc := llms.MessageContent{Role: chatMessageType(t.Role)}
		if t.Text != "" {
			mc.Parts = append(mc.Parts, llms.TextPart(t.Text))
		}
		for _, img := range t.Images {
			mc.Parts = append(mc.Parts, llms.BinaryPart(img.MIMEType, img.Data))
		}
		if len(mc.Parts) == 0 {
			continue
		}
		out = append(out, mc)
	}
	return out
}

func chatMessageType(r model.Role) llms.ChatMessageType {
	if r == model.RoleAssistant {
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}
