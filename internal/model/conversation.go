// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/chatdesk/internal/util"
)

const (
	// DefaultTitle is the title of a conversation before its first user message.
	DefaultTitle = "New Chat"

	// TitleLength is the number of characters kept when deriving a title.
	TitleLength = 30

	// TitleEllipsis is appended to derived titles that were cut.
	TitleEllipsis = "…"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat conversation with history and metadata.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation bound to model.
func NewConversation(id, model string, now time.Time) Conversation {
	return Conversation{
		ID:        id,
		Title:     DefaultTitle,
		Messages:  []Message{},
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewConversationID returns a time-ordered identifier: ids generated later
// sort after ids generated earlier.
func NewConversationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IsEmpty returns true if there are no messages.
func (c Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// MessageCount returns the number of messages.
func (c Conversation) MessageCount() int {
	return len(c.Messages)
}

// ModelLocked reports whether the model can no longer be changed.
func (c Conversation) ModelLocked() bool {
	return len(c.Messages) > 0
}

// LastMessage returns the most recent message and false when there is none.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Preview returns a one-line preview taken from the latest message.
func (c Conversation) Preview(maxLen int) string {
	last, ok := c.LastMessage()
	if !ok {
		return "Empty conversation"
	}
	return last.Preview(maxLen)
}

// Clone creates a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	clone := c
	clone.Messages = make([]Message, len(c.Messages))
	for i, msg := range c.Messages {
		clone.Messages[i] = msg
		if msg.Attachments != nil {
			clone.Messages[i].Attachments = append([]AttachmentRef(nil), msg.Attachments...)
		}
	}
	return clone
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// DeriveTitle builds a title from the first user message: the first
// TitleLength characters, followed by TitleEllipsis when the message is
// longer. Line breaks become single spaces and content is NFC-normalized
// before counting, so a title never spans lines and a base letter plus
// combining mark counts once.
func DeriveTitle(content string) string {
	content = norm.NFC.String(util.SingleLine(content))
	if strings.TrimSpace(content) == "" {
		return DefaultTitle
	}
	return util.Clip(content, TitleLength, TitleEllipsis)
}

// =============================================================================
// PARTIAL UPDATES
// =============================================================================

// ConversationPatch carries the fields accepted by an update. Nil fields
// are left untouched.
type ConversationPatch struct {
	Title *string
	Model *string

	// ClearMessages replaces the message sequence with an empty one.
	ClearMessages bool
}

// IsZero reports whether the patch changes nothing.
func (p ConversationPatch) IsZero() bool {
	return p.Title == nil && p.Model == nil && !p.ClearMessages
}

// TitlePatch is shorthand for a patch that only renames.
func TitlePatch(title string) ConversationPatch {
	return ConversationPatch{Title: &title}
}

// ModelPatch is shorthand for a patch that only switches the model.
func ModelPatch(model string) ConversationPatch {
	return ConversationPatch{Model: &model}
}
