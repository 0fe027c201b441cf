// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/model"
)

// MaxAttachments is the most files one message can carry.
const MaxAttachments = 10

// ErrClosed is returned when adding to a closed Set.
var ErrClosed = errors.New("attachment set is closed")

// Set is the ordered list of files staged for the next message.
type Set struct {
	mu     sync.Mutex
	items  []*Attachment
	limit  int
	closed bool

	logger    *zap.Logger
	onRelease func(id string)
}

// Option configures a Set.
type Option func(*Set)

// WithLimit overrides MaxAttachments. Values outside 1..MaxAttachments
// are ignored.
func WithLimit(n int) Option {
	return func(s *Set) { s.setLimit(n) }
}

func (s *Set) setLimit(n int) {
	if n > 0 && n <= MaxAttachments {
		s.limit = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Set) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReleaseHook registers fn to run each time an image preview is released.
func WithReleaseHook(fn func(id string)) Option {
	return func(s *Set) { s.onRelease = fn }
}

// NewSet creates an empty Set.
func NewSet(opts ...Option) *Set {
	s := &Set{limit: MaxAttachments, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add ingests paths in order. Once the Set is full the remaining paths
// are dropped without error. Files that cannot be read are skipped and
// reported together in the returned error; the others are still added.
func (s *Set) Add(paths ...string) ([]*Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	var added []*Attachment
	var errs []error
	for i, path := range paths {
		if len(s.items) >= s.limit {
			s.logger.Debug("attachment limit reached, dropping files",
				zap.Int("limit", s.limit),
				zap.Int("dropped", len(paths)-i))
			break
		}
		a, err := load(path, s.onRelease)
		if err != nil {
			s.logger.Warn("attachment skipped", zap.String("path", path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		s.items = append(s.items, a)
		added = append(added, a)
	}
	return added, errors.Join(errs...)
}

// Remove drops the attachment with id and releases its preview.
func (s *Set) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.items {
		if a.ID == id {
			a.release()
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAt drops the attachment at index i (0-based).
func (s *Set) RemoveAt(i int) bool {
	s.mu.Lock()
	if i < 0 || i >= len(s.items) {
		s.mu.Unlock()
		return false
	}
	id := s.items[i].ID
	s.mu.Unlock()
	return s.Remove(id)
}

// Files returns the attachments in selection order.
func (s *Set) Files() []*Attachment {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Attachment(nil), s.items...)
}

// Refs returns the stored metadata of every attachment.
func (s *Set) Refs() []model.AttachmentRef {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil
	}
	refs := make([]model.AttachmentRef, len(s.items))
	for i, a := range s.items {
		refs[i] = a.Ref()
	}
	return refs
}

// Limit returns how many files the Set accepts.
func (s *Set) Limit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// SetLimit changes the cap. Files already staged are kept even when
// they exceed it.
func (s *Set) SetLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLimit(n)
}

// Len returns the number of attachments.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear releases every preview and empties the Set, which stays usable.
func (s *Set) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		a.release()
	}
	s.items = nil
}

// Close clears the Set and refuses further additions.
func (s *Set) Close() error {
	s.Clear()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
