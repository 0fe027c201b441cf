// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key-value substrate chatdesk
// persists its conversation history to.
//
// The history store only needs synchronous get/set/remove on a handful of
// keys, so every backend implements the small Backend interface and can be
// swapped freely (or faked in tests).
//
// # Backends
//
//   - FileBackend: one file per key under a directory, atomic writes
//   - SQLiteBackend: a single kv table in a SQLite database
//   - MemoryBackend: in-process map, for tests and --ephemeral runs
//   - EncryptedBackend: AES-256-GCM wrapper around any other backend
//
// # Usage
//
//	backend, err := storage.NewFileBackend(dataDir)
//	err = backend.Set(storage.KeyConversations, data)
//	data, err := backend.Get(storage.KeyConversations)
//	if errors.Is(err, storage.ErrKeyNotFound) { ... }
//
// # Storage Location
//
// By default data lives in ~/.chatdesk/data/.
package storage
