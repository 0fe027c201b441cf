// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach ingests files chosen for the next outgoing message.
//
// Each file is classified once, at ingestion, as an image, a document or
// something else. Images carry a Preview holding their bytes and
// dimensions; the preview is released exactly once, when the attachment
// is removed or the Set is cleared or closed.
//
// A Set holds at most MaxAttachments files. Files past the cap are
// dropped without error, keeping the selection order of the rest.
package attach
