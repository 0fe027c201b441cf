// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoKey        = errors.New("openrouter: no API key configured")
	ErrUnauthorized = errors.New("openrouter: API key rejected")
	ErrNoCredits    = errors.New("openrouter: account is out of credits")
	ErrUnknownModel = errors.New("openrouter: model not available")
	ErrRateLimited  = errors.New("openrouter: rate limited")
	ErrUnavailable  = errors.New("openrouter: service unavailable")
	ErrEmptyReply   = errors.New("openrouter: response had no choices")

	ErrMalformedReply = errors.New("openrouter: malformed response")
)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("openrouter: %s (%d, %s)", msg, e.Status, e.Code)
	}
	return fmt.Sprintf("openrouter: %s (%d)", msg, e.Status)
}

// Is maps the status onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNoCredits:
		return e.Status == http.StatusPaymentRequired
	case ErrUnknownModel:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrUnavailable:
		return e.Status >= 500
	}
	return false
}

// Temporary reports whether the same request may succeed later.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}
