// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/chatdesk/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a serialized role onto the two-valued enumeration.
// Older data tags assistant replies as "system"; both mean RoleAssistant.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, true
	case "assistant", "system":
		return RoleAssistant, true
	default:
		return "", false
	}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// UnmarshalJSON accepts "system" as an alias for the assistant role.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role, ok := ParseRole(s)
	if !ok {
		return &UnknownRoleError{Value: s}
	}
	*r = role
	return nil
}

// UnknownRoleError is returned when decoding a role outside {user, assistant, system}.
type UnknownRoleError struct {
	Value string
}

func (e *UnknownRoleError) Error() string {
	return "unknown message role: " + e.Value
}

// =============================================================================
// ATTACHMENT REFERENCE
// =============================================================================

// AttachmentRef is the persisted part of an attachment. File contents and
// previews stay with the attach package and are never serialized.
type AttachmentRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	MIMEType string `json:"mime_type"`
	Kind     Kind   `json:"kind"`
	Size     int64  `json:"size"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	ID          string          `json:"id"`
	Role        Role            `json:"role"`
	Content     string          `json:"content"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	// Failed marks a locally generated failure notice. Such messages are
	// shown to the user but never stored.
	Failed bool `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a user message carrying the given attachment references.
func NewUserMessage(content string, refs []AttachmentRef) Message {
	msg := NewMessage(RoleUser, content)
	if len(refs) > 0 {
		msg.Attachments = append([]AttachmentRef(nil), refs...)
	}
	return msg
}

// NewAssistantMessage creates an assistant reply.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// NewFailureMessage creates the notice shown when a reply could not be obtained.
func NewFailureMessage(err error) Message {
	text := "The assistant could not respond."
	if err != nil {
		text += " " + err.Error()
	}
	msg := NewMessage(RoleAssistant, text)
	msg.Failed = true
	return msg
}

// HasAttachments reports whether the message carries any attachment.
func (m Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// IsEmpty returns true when there is neither text nor an attachment.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && !m.HasAttachments()
}

// Preview returns a one-line preview of at most maxLen runes.
func (m Message) Preview(maxLen int) string {
	content := util.SingleLine(m.Content)
	if content == "" && m.HasAttachments() {
		names := make([]string, 0, len(m.Attachments))
		for _, a := range m.Attachments {
			names = append(names, a.Name)
		}
		content = "[" + strings.Join(names, ", ") + "]"
	}
	return util.TruncateRunes(content, maxLen)
}

// NewMessageID returns a random message identifier.
func NewMessageID() string {
	return uuid.NewString()
}
