// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"regexp"
)

// Keys used by the history store.
const (
	// KeyConversations holds the serialized conversation collection.
	KeyConversations = "chatdesk.conversations"

	// KeyActive holds the identifier of the active conversation.
	KeyActive = "chatdesk.active"
)

// Backend is a synchronous key-value store.
type Backend interface {
	// Get returns the value stored at key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)
	// Set stores value at key, replacing any previous value.
	Set(key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}

// Closer is implemented by backends holding external resources.
type Closer interface {
	Close() error
}

// Close releases b's resources when it holds any.
func Close(b Backend) error {
	if c, ok := b.(Closer); ok {
		return c.Close()
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrKeyNotFound is returned by Get when nothing is stored at the key.
// Use errors.Is(err, ErrKeyNotFound) to check for this error.
var ErrKeyNotFound = &Error{Message: "key not found"}

// ErrInvalidKey is returned for keys that cannot be mapped to storage.
var ErrInvalidKey = &Error{Message: "invalid key"}

// Error represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type Error struct {
	Message string
	Key     string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key != "" {
		return e.Message + ": " + e.Key
	}
	return e.Message
}

// Is implements errors.Is support: errors match on Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(key string) error {
	return &Error{Message: ErrKeyNotFound.Message, Key: key}
}

// keyPattern restricts keys to names that are also safe file names.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
