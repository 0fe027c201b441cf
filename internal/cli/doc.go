// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatdesk command tree.
//
// # Usage
//
//	os.Exit(cli.Execute(ctx, cli.Options{RunTUI: ui.Run}, os.Args[1:]))
//
// # Commands
//
//   - (none), tui: full-screen interface
//   - chat: line-mode chat with liner input history and slash commands
//   - ask: one question, reply on stdout
//   - sessions: list, show, select, rename, delete, export, search, clear
//   - models: the model catalog, paged
//   - config: list, get, set, path
//   - version
//
// Every command accepts --json and prints a JSONResponse envelope.
// Each invocation builds an App: configuration, a storage backend, the
// conversation store, the completion router and the send controller.
package cli
