// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion connects chatdesk to the services that write replies.
//
// A Provider turns a Request (the conversation so far, the files attached
// to the newest message and the selected model) into reply text, and
// lists the models it serves. Adapters exist for OpenAI (langchaingo),
// Anthropic (anthropic-sdk-go), OpenRouter and Ollama. Canned answers
// without touching the network and backs test mode.
//
// The Router picks the adapter for a model from the Catalog's provider
// label and rate limits each provider. Pager walks a long model list in
// fixed-size steps.
package completion
