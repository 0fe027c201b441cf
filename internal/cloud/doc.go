// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to the OpenRouter gateway, which serves models from
// many vendors behind one OpenAI-compatible endpoint. chatdesk routes every
// model without a dedicated adapter through it.
//
//	client := cloud.New(apiKey, cloud.WithLogger(logger))
//	reply, err := client.Chat(ctx, cloud.ChatParams{
//	    Model: "google/gemini-2.5-flash",
//	    Turns: []cloud.Turn{{Role: model.RoleUser, Text: "Hello"}},
//	})
//
// Failed calls return *APIError, which matches the package sentinels with
// errors.Is. API keys are never logged.
package cloud
