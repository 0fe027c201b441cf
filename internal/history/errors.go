// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no conversation has the given id.
	ErrNotFound = errors.New("conversation not found")

	// ErrModelLocked is returned when a model change targets a
	// conversation that already has messages.
	ErrModelLocked = errors.New("model cannot change after the first message")

	// ErrEmptyTitle is returned when a rename has no visible characters.
	ErrEmptyTitle = errors.New("title is empty")

	// ErrPromptGone is returned when a reply arrives after the message it
	// answers was removed from the conversation.
	ErrPromptGone = errors.New("answered message no longer in conversation")

	// ErrFailedMessage is returned when a failure notice is offered for
	// storage. Those messages are display-only.
	ErrFailedMessage = errors.New("failure notices are not stored")
)

// Op names the storage operation that failed.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// StorageError reports a failure of the persistence substrate.
// Reads fail at Open, writes after a mutation has already been applied
// in memory.
type StorageError struct {
	Op  Op
	Key string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is a *StorageError for op.
func IsStorageError(err error, op Op) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Op == op
}
