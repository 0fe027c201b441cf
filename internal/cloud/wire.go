// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/jeranaias/chatdesk/internal/model"
)

// Turn is one message of the conversation sent upstream.
type Turn struct {
	Role   model.Role
	Text   string
	Images []Image
}

// Image is an inline picture attached to a turn.
type Image struct {
	MIMEType string
	Data     []byte
}

// ChatParams describes one completion call.
type ChatParams struct {
	Model     string
	MaxTokens int
	Turns     []Turn
}

// Model is one entry of the gateway catalog.
type Model struct {
	ID            string
	Name          string
	Description   string
	ContextLength int
}

type chatBody struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// wireMessage carries plain text as a string and anything with images as
// an array of typed parts.
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wirePart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func encodeTurns(turns []Turn) []wireMessage {
	out := make([]wireMessage, 0, len(turns))
	for _, t := range turns {
		if len(t.Images) == 0 {
			out = append(out, wireMessage{Role: string(t.Role), Content: t.Text})
			continue
		}
		parts := make([]wirePart, 0, len(t.Images)+1)
		if t.Text != "" {
			parts = append(parts, wirePart{Type: "text", Text: t.Text})
		}
		for _, img := range t.Images {
			parts = append(parts, wirePart{Type: "image_url", ImageURL: &imageURL{URL: dataURL(img)}})
		}
		out = append(out, wireMessage{Role: string(t.Role), Content: parts})
	}
	return out
}

func dataURL(img Image) string {
	var b strings.Builder
	b.WriteString("data:")
	b.WriteString(img.MIMEType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(img.Data))
	return b.String()
}

type chatReply struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type catalogReply struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		ContextLength int    `json:"context_length"`
	} `json:"data"`
}

// errorReply is the gateway's error envelope. Code arrives as a number or
// a string depending on the upstream vendor.
type errorReply struct {
	Error struct {
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

const maxErrorText = 300

func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var reply errorReply
	if json.Unmarshal(body, &reply) == nil {
		apiErr.Message = reply.Error.Message
		apiErr.Code = strings.Trim(string(reply.Error.Code), `"`)
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if r := []rune(apiErr.Message); len(r) > maxErrorText {
		apiErr.Message = string(r[:maxErrorText]) + "…"
	}
	return apiErr
}
