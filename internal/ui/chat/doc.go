// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the Bubble Tea model for the chat screen.
//
// The screen has a conversation sidebar grouped by day, the transcript of
// the active conversation, a message box with staged attachments, and a
// status bar of key hints. Sends go through a session.Controller; the
// reply arrives as a ReplyMsg when the provider answers, so several
// conversations can wait on replies at once while only the visible one
// shows the typing indicator.
//
// Failed replies are shown as notices after the message they answer and
// are never written to history.
package chat
