// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON. The conversation is always
// written whole, in the same shape the store persists, so an export can
// be read back with encoding/json into a model.Conversation.
type JSONExporter struct {
	options *Options
}

// document wraps the conversation with export metadata.
type document struct {
	Generator    string             `json:"generator"`
	ExportedAt   time.Time          `json:"exported_at"`
	Conversation model.Conversation `json:"conversation"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to JSON format.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}
	if !e.options.IncludeMetadata {
		return json.MarshalIndent(conv, "", "  ")
	}
	return json.MarshalIndent(document{
		Generator:    "chatdesk",
		ExportedAt:   e.options.now().UTC(),
		Conversation: *conv,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
