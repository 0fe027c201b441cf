// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: titled, ordered collection of messages bound to one model
//   - ConversationPatch: partial update applied by the history store
//   - Message: single message with role, content and attachment references
//   - Role: two-valued role enumeration (user, assistant)
//   - Kind: attachment classification (image, document, other)
//   - ModelInfo: catalog entry for a completion model
//
// # Usage
//
//	conv := model.NewConversation(model.NewConversationID(), "gpt-5", time.Now())
//	msg := model.NewUserMessage("Hello!", nil)
//	title := model.DeriveTitle(msg.Content)
package model
