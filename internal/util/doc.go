// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across chatdesk.
//
// # Key Functions
//
// String Utilities:
//   - Clip: keep the first n runes and append a marker when cut
//   - TruncateRunes: UTF-8 safe truncation that fits the marker inside the limit
//   - SingleLine: collapse newlines for one-line previews
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.Clip(firstMessage, 30, "…")
//	err := util.AtomicWriteFile(path, data, 0600)
package util
