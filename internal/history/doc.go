// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history owns the conversation collection and the active
// conversation pointer.
//
// A Store keeps the collection in memory, most recently created first,
// and writes it through to a storage.Backend after every mutation. A
// failed write leaves the in-memory state applied and is reported as a
// *StorageError so the caller can surface it.
//
// Usage:
//
//	store := history.Open(backend, history.WithLogger(logger))
//	conv, err := store.CreateConversation("gpt-5")
//	err = store.AddMessage(conv.ID, model.NewUserMessage("hi", nil))
package history
