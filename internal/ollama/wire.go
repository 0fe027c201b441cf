// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"encoding/base64"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/chatdesk/internal/model"
)

// Turn is one message of the conversation. Images are raw file bytes.
type Turn struct {
	Role   model.Role
	Text   string
	Images [][]byte
}

// ChatParams describes one non-streaming chat call.
type ChatParams struct {
	Model     string
	MaxTokens int
	Turns     []Turn
}

// Model is an installed model as reported by /api/tags.
type Model struct {
	Name          string
	Size          int64
	Family        string
	ParameterSize string
}

// Summary reads like "8B, 4.7 GB".
func (m Model) Summary() string {
	var parts []string
	if m.ParameterSize != "" {
		parts = append(parts, m.ParameterSize)
	}
	if m.Size > 0 {
		parts = append(parts, humanize.Bytes(uint64(m.Size)))
	}
	return strings.Join(parts, ", ")
}

type chatBody struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *wireOptions  `json:"options,omitempty"`
}

type wireMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type wireOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type chatReply struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type tagsReply struct {
	Models []struct {
		Name    string `json:"name"`
		Size    int64  `json:"size"`
		Details struct {
			Family        string `json:"family"`
			ParameterSize string `json:"parameter_size"`
		} `json:"details"`
	} `json:"models"`
}

type errorReply struct {
	Error string `json:"error"`
}

func encodeChat(p ChatParams) chatBody {
	body := chatBody{Model: p.Model, Messages: make([]wireMessage, 0, len(p.Turns))}
	if p.MaxTokens > 0 {
		body.Options = &wireOptions{NumPredict: p.MaxTokens}
	}
	for _, t := range p.Turns {
		msg := wireMessage{Role: string(t.Role), Content: t.Text}
		for _, img := range t.Images {
			msg.Images = append(msg.Images, base64.StdEncoding.EncodeToString(img))
		}
		body.Messages = append(body.Messages, msg)
	}
	return body
}
