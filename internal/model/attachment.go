// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"mime"
	"strings"
)

// Kind classifies an attachment. It is derived once, at ingestion, from
// the declared media type.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindOther    Kind = "other"
)

// documentTypes lists exact media types treated as documents.
var documentTypes = map[string]bool{
	"application/pdf":                         true,
	"application/msword":                      true,
	"application/rtf":                         true,
	"application/json":                        true,
	"application/vnd.oasis.opendocument.text": true,
}

// ClassifyMIME maps a media type onto a Kind. Parameters such as
// "; charset=utf-8" are ignored.
func ClassifyMIME(mediaType string) Kind {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}

	switch {
	case mt == "":
		return KindOther
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "text/"),
		documentTypes[mt],
		strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument."),
		strings.HasPrefix(mt, "application/vnd.ms-"):
		return KindDocument
	default:
		return KindOther
	}
}

// Label returns a short label used in listings.
func (k Kind) Label() string {
	switch k {
	case KindImage:
		return "image"
	case KindDocument:
		return "doc"
	default:
		return "file"
	}
}
