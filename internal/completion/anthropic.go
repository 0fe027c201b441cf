// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jeranaias/chatdesk/internal/model"
)

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries int
}

// Anthropic serves Claude models through the official SDK.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates the adapter.
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

// Complete sends the conversation and joins the text blocks of the reply.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Config.Model),
		MaxTokens: int64(req.maxTokens()),
		Messages:  anthropicMessages(req.turns()),
	}
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyReply
	}
	return b.String(), nil
}

// ListModels pages through the account's models.
func (a *Anthropic) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := a.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, err
	}
	var out []ModelInfo
	for page != nil {
		for _, m := range page.Data {
			out = append(out, ModelInfo{
				ID:       m.ID,
				Name:     m.DisplayName,
				Provider: model.ProviderAnthropic,
			})
		}
		page, err = page.GetNextPage()
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// anthropicMessages converts turns, merging consecutive turns with the
// same role since the API requires alternation.
func anthropicMessages(turns []turn) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var prev model.Role
	for _, t := range turns {
		var blocks []anthropic.ContentBlockParamUnion
		if t.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(t.Text))
		}
		for _, img := range t.Images {
			blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, img.Base64()))
		}
		if len(blocks) == 0 {
			continue
		}
		if len(out) > 0 && t.Role == prev {
			last := &out[len(out)-1]
			last.Content = append(last.Content, blocks...)
			continue
		}
		if t.Role == model.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
		prev = t.Role
	}
	return out
}
