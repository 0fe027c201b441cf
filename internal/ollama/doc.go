// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is a client for a local Ollama server.
//
//	client := ollama.New("http://127.0.0.1:11434")
//	reply, err := client.Chat(ctx, ollama.ChatParams{
//	    Model: "llama3.2",
//	    Turns: []ollama.Turn{{Role: model.RoleUser, Text: "Hello"}},
//	})
//
// Failures wrap ErrNotRunning, ErrTimeout or ErrModelMissing so callers
// can tell the user what to fix.
package ollama
