// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to Markdown or JSON files.
//
// # Usage
//
//	exp, err := export.New("md", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(&conv, exp, &export.Options{OutputDir: "."})
//
// Markdown exports carry YAML front matter and list attachment metadata
// under each message. JSON exports keep the persisted shape of the
// conversation.
package export
