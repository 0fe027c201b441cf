// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/chatdesk/internal/attach"
	"github.com/jeranaias/chatdesk/internal/model"
)

// DefaultMaxTokens caps reply length when the request does not.
const DefaultMaxTokens = 4096

// maxInlineText bounds the text documents pasted into a prompt.
const maxInlineText = 100 * 1024

// ModelInfo describes one selectable model.
type ModelInfo = model.ModelInfo

// Provider produces replies.
type Provider interface {
	// Complete returns the reply text for req.
	Complete(ctx context.Context, req Request) (string, error)
	// ListModels returns the models the provider serves, in no particular order.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoModel is returned for requests without a model.
	ErrNoModel = errors.New("no model selected")

	// ErrNoProvider is returned when no adapter serves the model.
	ErrNoProvider = errors.New("no provider configured for model")

	// ErrEmptyReply is returned when a provider answers with no text.
	ErrEmptyReply = errors.New("provider returned an empty reply")
)

// ProviderError attributes a failure to one provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func wrap(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Err: err}
}

// =============================================================================
// REQUEST
// =============================================================================

// Part is one element of a message: text or a reference to a file.
type Part struct {
	Text string
	File *model.AttachmentRef
}

// Message is one turn of the conversation sent to a provider.
type Message struct {
	Role  model.Role
	Parts []Part
}

// Text joins the text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// File is the payload of an attachment on the newest user message.
type File struct {
	ID       string
	Name     string
	MIMEType string
	Kind     model.Kind
	Data     []byte
}

// Base64 returns the payload in standard base64.
func (f File) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// Config carries the per-request model settings.
type Config struct {
	Model     string
	MaxTokens int
}

// Request is everything a provider needs for one reply.
type Request struct {
	Messages    []Message
	Attachments []File
	TestMode    bool
	Config      Config
}

// Validate checks the request is complete.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Config.Model) == "" {
		return ErrNoModel
	}
	if len(r.Messages) == 0 {
		return errors.New("request has no messages")
	}
	return nil
}

// maxTokens returns the reply cap to send.
func (r Request) maxTokens() int {
	if r.Config.MaxTokens > 0 {
		return r.Config.MaxTokens
	}
	return DefaultMaxTokens
}

// MessagesFrom converts stored messages. Attachment metadata becomes
// file parts after the text.
func MessagesFrom(msgs []model.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Failed {
			continue
		}
		msg := Message{Role: m.Role}
		if m.Content != "" {
			msg.Parts = append(msg.Parts, Part{Text: m.Content})
		}
		for i := range m.Attachments {
			ref := m.Attachments[i]
			msg.Parts = append(msg.Parts, Part{File: &ref})
		}
		out = append(out, msg)
	}
	return out
}

// FilesFrom reads the payloads of staged attachments.
func FilesFrom(atts []*attach.Attachment) ([]File, error) {
	files := make([]File, 0, len(atts))
	for _, a := range atts {
		data, err := a.Data()
		if err != nil {
			return nil, err
		}
		files = append(files, File{
			ID:       a.ID,
			Name:     a.Name,
			MIMEType: a.MIMEType,
			Kind:     a.Kind,
			Data:     data,
		})
	}
	return files, nil
}

// =============================================================================
// FLATTENING
// =============================================================================

// turn is a message reduced to what every adapter can express: text plus
// inline images.
type turn struct {
	Role   model.Role
	Text   string
	Images []File
}

// turns flattens the request. Files on the newest user message are
// resolved against the payloads: images stay images, readable text
// documents are pasted in, everything else becomes a note. Files on older
// messages are always notes.
func (r Request) turns() []turn {
	payloads := make(map[string]File, len(r.Attachments))
	for _, f := range r.Attachments {
		payloads[f.ID] = f
	}

	last := -1
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == model.RoleUser {
			last = i
			break
		}
	}

	out := make([]turn, 0, len(r.Messages))
	for i, m := range r.Messages {
		t := turn{Role: m.Role}
		var text []string
		for _, p := range m.Parts {
			if p.File == nil {
				text = append(text, p.Text)
				continue
			}
			f, ok := payloads[p.File.ID]
			if i != last || !ok {
				text = append(text, fileNote(p.File.Name, p.File.MIMEType))
				continue
			}
			if f.Kind == model.KindImage {
				t.Images = append(t.Images, f)
			} else if inline, ok := inlineText(f); ok {
				text = append(text, inline)
			} else {
				text = append(text, fileNote(f.Name, f.MIMEType))
			}
		}
		t.Text = strings.Join(text, "\n\n")
		out = append(out, t)
	}
	return out
}

func fileNote(name, mediaType string) string {
	return fmt.Sprintf("[Attached file: %s (%s)]", name, mediaType)
}

// inlineText renders a small UTF-8 document as a fenced block.
func inlineText(f File) (string, bool) {
	textual := strings.HasPrefix(f.MIMEType, "text/") || f.MIMEType == "application/json"
	if !textual || len(f.Data) > maxInlineText || !utf8.Valid(f.Data) {
		return "", false
	}
	return fmt.Sprintf("Attached file %s:\n```\n%s\n```", f.Name, strings.TrimRight(string(f.Data), "\n")), true
}
