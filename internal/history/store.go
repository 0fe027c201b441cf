// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/storage"
)

// =============================================================================
// STORE
// =============================================================================

// Store holds the conversation collection and the active pointer.
// All methods are safe for concurrent use. Values returned by reads are
// deep copies.
type Store struct {
	mu sync.Mutex

	backend storage.Backend
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string

	conversations []model.Conversation // most recently created first
	activeID      string

	loadErr error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces model.NewConversationID.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Open loads the persisted collection from backend. A missing or
// unreadable collection yields an empty store; the read failure is
// logged and kept in LoadError.
func Open(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend:       backend,
		logger:        zap.NewNop(),
		now:           time.Now,
		newID:         model.NewConversationID,
		conversations: []model.Conversation{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

// LoadError returns the read failure encountered by Open, or nil.
func (s *Store) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

func (s *Store) load() {
	data, err := s.backend.Get(storage.KeyConversations)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		// First run.
	case err != nil:
		s.failLoad(storage.KeyConversations, err)
		return
	default:
		var convs []model.Conversation
		if err := json.Unmarshal(data, &convs); err != nil {
			s.failLoad(storage.KeyConversations, err)
			return
		}
		for i := range convs {
			if convs[i].Messages == nil {
				convs[i].Messages = []model.Message{}
			}
		}
		s.conversations = convs
	}

	active, err := s.backend.Get(storage.KeyActive)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		s.failLoad(storage.KeyActive, err)
	default:
		id := strings.TrimSpace(string(active))
		if s.indexOf(id) >= 0 {
			s.activeID = id
		} else if id != "" {
			s.logger.Warn("dropping stale active conversation", zap.String("id", id))
		}
	}

	s.logger.Debug("history loaded",
		zap.Int("conversations", len(s.conversations)),
		zap.String("active", s.activeID))
}

func (s *Store) failLoad(key string, err error) {
	s.loadErr = &StorageError{Op: OpRead, Key: key, Err: err}
	s.logger.Error("failed to load history, starting empty", zap.Error(s.loadErr))
	if key == storage.KeyConversations {
		s.conversations = []model.Conversation{}
		s.activeID = ""
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateConversation inserts an empty conversation bound to modelID at
// the front of the collection and makes it active. The conversation is
// returned even when persisting it fails.
func (s *Store) CreateConversation(modelID string) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := model.NewConversation(s.newID(), modelID, s.now())
	s.conversations = append([]model.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID

	s.logger.Debug("conversation created", zap.String("id", conv.ID), zap.String("model", modelID))
	return conv.Clone(), s.persist()
}

// UpdateConversation merges patch into the conversation with id.
// A model change on a conversation that has messages is refused with
// ErrModelLocked and nothing in the patch is applied, unless the same
// patch also clears the messages.
func (s *Store) UpdateConversation(id string, patch model.ConversationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Warn("update of unknown conversation", zap.String("id", id))
		return ErrNotFound
	}
	conv := &s.conversations[i]

	if patch.Model != nil && *patch.Model != conv.Model && conv.ModelLocked() && !patch.ClearMessages {
		s.logger.Warn("model change refused",
			zap.String("id", id),
			zap.String("model", conv.Model),
			zap.String("requested", *patch.Model))
		return ErrModelLocked
	}

	if patch.ClearMessages {
		conv.Messages = []model.Message{}
	}
	if patch.Title != nil {
		conv.Title = *patch.Title
	}
	if patch.Model != nil {
		conv.Model = *patch.Model
	}
	conv.UpdatedAt = s.now()

	return s.persist()
}

// RenameConversation sets the title. Surrounding whitespace is trimmed.
func (s *Store) RenameConversation(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	return s.UpdateConversation(id, model.TitlePatch(title))
}

// ClearMessages empties the message sequence of a conversation.
func (s *Store) ClearMessages(id string) error {
	return s.UpdateConversation(id, model.ConversationPatch{ClearMessages: true})
}

// AddMessage appends msg to the conversation with id. The first user
// message of a conversation names it.
func (s *Store) AddMessage(id string, msg model.Message) error {
	return s.addMessage(id, "", msg)
}

// AddReply appends msg to the conversation with id only while the
// message with promptID is still part of it. Otherwise nothing is
// stored and ErrPromptGone is returned.
func (s *Store) AddReply(id, promptID string, msg model.Message) error {
	return s.addMessage(id, promptID, msg)
}

func (s *Store) addMessage(id, promptID string, msg model.Message) error {
	if msg.Failed {
		return ErrFailedMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Warn("message for unknown conversation dropped",
			zap.String("id", id),
			zap.String("role", msg.Role.String()))
		return ErrNotFound
	}
	conv := &s.conversations[i]

	if promptID != "" && !slices.ContainsFunc(conv.Messages, func(m model.Message) bool { return m.ID == promptID }) {
		s.logger.Warn("reply dropped, its prompt was removed",
			zap.String("id", id),
			zap.String("prompt", promptID))
		return ErrPromptGone
	}

	if msg.ID == "" {
		msg.ID = model.NewMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if len(msg.Attachments) > 0 {
		msg.Attachments = append([]model.AttachmentRef(nil), msg.Attachments...)
	}

	if len(conv.Messages) == 0 && msg.Role == model.RoleUser {
		conv.Title = model.DeriveTitle(msg.Content)
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = s.now()

	return s.persist()
}

// DeleteConversation removes the conversation with id. When it was the
// active one, the most recently created survivor becomes active.
func (s *Store) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Warn("delete of unknown conversation", zap.String("id", id))
		return ErrNotFound
	}
	s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)

	if s.activeID == id {
		s.activeID = s.newestID()
	}

	s.logger.Debug("conversation deleted", zap.String("id", id), zap.String("active", s.activeID))
	return s.persist()
}

// SelectConversation makes id the active conversation. Unknown ids are
// refused with ErrNotFound and the active pointer is left as it was.
func (s *Store) SelectConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		s.logger.Warn("select of unknown conversation", zap.String("id", id))
		return ErrNotFound
	}
	if s.activeID == id {
		return nil
	}
	s.activeID = id
	return s.persistActive()
}

// ClearAllConversations empties the collection, clears the active
// pointer and removes both keys from storage.
func (s *Store) ClearAllConversations() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = []model.Conversation{}
	s.activeID = ""

	var firstErr error
	for _, key := range []string{storage.KeyConversations, storage.KeyActive} {
		if err := s.backend.Remove(key); err != nil {
			werr := s.writeFailed(key, err)
			if firstErr == nil {
				firstErr = werr
			}
		}
	}
	return firstErr
}

// =============================================================================
// READS
// =============================================================================

// Conversations returns every conversation, most recently created first.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Get returns the conversation with id.
func (s *Store) Get(id string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.conversations[i].Clone(), true
}

// Has reports whether a conversation with id exists.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0
}

// ActiveID returns the active conversation id, or "" when none is active.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns the active conversation.
func (s *Store) Active() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(s.activeID)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.conversations[i].Clone(), true
}

// =============================================================================
// INTERNAL
// =============================================================================

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// newestID returns the id of the most recently created conversation.
// Equal creation times fall back to the larger id, which is time-ordered.
func (s *Store) newestID() string {
	best := -1
	for i, c := range s.conversations {
		if best < 0 {
			best = i
			continue
		}
		b := s.conversations[best]
		if c.CreatedAt.After(b.CreatedAt) || (c.CreatedAt.Equal(b.CreatedAt) && c.ID > b.ID) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return s.conversations[best].ID
}

// persist writes the collection and the active pointer. Callers hold mu.
func (s *Store) persist() error {
	data, err := json.Marshal(s.conversations)
	if err != nil {
		return s.writeFailed(storage.KeyConversations, err)
	}
	if err := s.backend.Set(storage.KeyConversations, data); err != nil {
		return s.writeFailed(storage.KeyConversations, err)
	}
	return s.persistActive()
}

func (s *Store) persistActive() error {
	var err error
	if s.activeID == "" {
		err = s.backend.Remove(storage.KeyActive)
	} else {
		err = s.backend.Set(storage.KeyActive, []byte(s.activeID))
	}
	if err != nil {
		return s.writeFailed(storage.KeyActive, err)
	}
	return nil
}

func (s *Store) writeFailed(key string, err error) error {
	werr := &StorageError{Op: OpWrite, Key: key, Err: err}
	s.logger.Warn("history write failed, keeping in-memory state", zap.Error(werr))
	return werr
}
