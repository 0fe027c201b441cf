// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives the send-message cycle of a chat.
//
// A send moves one conversation through Idle, Composing,
// AwaitingResponse and Resolved before returning to Idle. The user
// message is stored before the provider is called, the reply is stored
// in the conversation the send started from, and a failed call leaves a
// display-only failure notice that is never persisted.
//
// # Key Types
//
//   - Controller: runs send cycles, one in flight per conversation
//   - Draft: text and attachments about to be sent
//   - Pending: a send whose reply is outstanding
//   - Result: reply or failure of one send
//
// # Usage
//
//	ctl := session.NewController(store, router,
//	    session.WithTimeout(2*time.Minute),
//	    session.WithLogger(logger))
//
//	res, err := ctl.Send(ctx, session.Draft{Text: "Hello"})
//	if err != nil {
//	    fmt.Println(res.Reply.Content) // failure notice
//	}
//
// Interactive front ends call Begin to store the user message right away
// and Wait from a background goroutine.
package session
