// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the building blocks of the chatdesk
full-screen interface, built on Bubble Tea and Lip Gloss.

# Components

Sidebar (sidebar.go) - Conversations grouped under day labels, with the
active one highlighted and a keyboard cursor when focused.

ModelPicker (picker.go) - Model list revealed a page at a time, with a
"Show N more" row.

TypingIndicator (spinner.go) - Spinner and elapsed timer shown while a
reply is pending.

ToastManager (toast.go) - Non-blocking notifications that expire on
their own.

RenderWelcome (welcome.go) - Empty-conversation screen with starter
prompts.

Components hold no references to the store; the chat model feeds them
snapshots after every change.
*/
package components
