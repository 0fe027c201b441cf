// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/attach"
	"github.com/jeranaias/chatdesk/internal/completion"
	"github.com/jeranaias/chatdesk/internal/history"
	"github.com/jeranaias/chatdesk/internal/model"
)

// DefaultResponseTimeout bounds one completion call.
const DefaultResponseTimeout = 2 * time.Minute

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage is returned for a draft with no text and no files.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy is returned while a reply for the conversation is outstanding.
	ErrBusy = errors.New("a reply is already pending for this conversation")

	// ErrResponseTimeout is returned when the provider does not answer in time.
	ErrResponseTimeout = errors.New("timed out waiting for a reply")
)

// CompletionError is a failed completion call for one conversation.
type CompletionError struct {
	ConversationID string
	Err            error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion for %s: %v", e.ConversationID, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// =============================================================================
// STATES
// =============================================================================

// State is the phase of a send cycle.
type State int

const (
	StateIdle State = iota
	StateComposing
	StateAwaitingResponse
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateResolved:
		return "resolved"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transition records a state change of one conversation.
type Transition struct {
	ConversationID string
	From, To       State
	At             time.Time
}

// =============================================================================
// DRAFT AND RESULT
// =============================================================================

// Draft is what the user is about to send. An empty ConversationID
// targets the active conversation.
type Draft struct {
	ConversationID string
	Text           string
	Attachments    *attach.Set
}

// Result is the outcome of a send.
type Result struct {
	ConversationID string
	UserMessage    model.Message

	// Reply is the stored assistant message, or a failure notice with
	// Failed set that exists only for display.
	Reply model.Message

	// Discarded is set when the conversation, or the message being
	// answered, vanished before the reply.
	Discarded bool

	Elapsed time.Duration
	Err     error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives send cycles against a store and a completion provider.
//
// The Controller is safe for concurrent use. At most one send is in
// flight per conversation.
type Controller struct {
	mu sync.Mutex

	store    *history.Store
	provider completion.Provider
	logger   *zap.Logger
	now      func() time.Time

	timeout   time.Duration
	testMode  bool
	maxTokens int
	model     string

	inflight map[string]context.CancelFunc
	states   map[string]State
	observer func(Transition)
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout sets the response timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTestMode marks every request as test mode.
func WithTestMode(on bool) Option {
	return func(c *Controller) { c.testMode = on }
}

// WithMaxTokens caps reply length.
func WithMaxTokens(n int) Option {
	return func(c *Controller) { c.maxTokens = n }
}

// WithModel sets the model used for auto-created conversations.
func WithModel(id string) Option {
	return func(c *Controller) { c.model = id }
}

// WithObserver registers fn to receive every state transition.
func WithObserver(fn func(Transition)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller.
func NewController(store *history.Store, provider completion.Provider, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		provider: provider,
		logger:   zap.NewNop(),
		now:      time.Now,
		timeout:  DefaultResponseTimeout,
		model:    model.DefaultModelID,
		inflight: make(map[string]context.CancelFunc),
		states:   make(map[string]State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetModel changes the model used for auto-created conversations.
func (c *Controller) SetModel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = id
}

// Model returns the model used for auto-created conversations.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Responding reports whether a reply for the conversation is outstanding.
func (c *Controller) Responding(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[id]
	return ok
}

// State returns the phase of the conversation's current send.
func (c *Controller) State(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[id]
}

// Cancel aborts the outstanding call for the conversation, if any.
func (c *Controller) Cancel(id string) bool {
	c.mu.Lock()
	cancel, ok := c.inflight[id]
	c.mu.Unlock()
	if ok {
		c.logger.Debug("send cancelled", zap.String("conversation", id))
		cancel()
	}
	return ok
}

// =============================================================================
// SEND CYCLE
// =============================================================================

// Send runs one full cycle and blocks until the reply or failure.
func (c *Controller) Send(ctx context.Context, draft Draft) (Result, error) {
	p, err := c.Begin(ctx, draft)
	if err != nil {
		return Result{ConversationID: draft.ConversationID, Err: err}, err
	}
	return p.Wait()
}

// Pending is a send whose user message is stored and whose reply is
// still to be fetched.
type Pending struct {
	c       *Controller
	ctx     context.Context
	cancel  context.CancelFunc
	convID  string
	user    model.Message
	req     completion.Request
	started time.Time

	once   sync.Once
	result Result
}

// ConversationID returns the conversation the reply belongs to.
func (p *Pending) ConversationID() string { return p.convID }

// UserMessage returns the stored user message.
func (p *Pending) UserMessage() model.Message { return p.user }

// Begin validates the draft, resolves or creates the target
// conversation, and appends the user message. The completion call
// happens in Wait.
func (c *Controller) Begin(ctx context.Context, draft Draft) (*Pending, error) {
	text := strings.TrimSpace(draft.Text)
	if text == "" && draft.Attachments.Len() == 0 {
		return nil, ErrEmptyMessage
	}

	// read before reserve so a failure leaves no conversation behind
	files, err := completion.FilesFrom(draft.Attachments.Files())
	if err != nil {
		return nil, fmt.Errorf("read attachments: %w", err)
	}

	convID, err := c.reserve(draft.ConversationID)
	if err != nil {
		return nil, err
	}
	p := &Pending{c: c, convID: convID, started: c.now()}
	p.ctx, p.cancel = c.callContext(ctx, convID)

	c.transition(convID, StateComposing)

	p.user = model.NewUserMessage(text, draft.Attachments.Refs())

	if err := c.store.AddMessage(convID, p.user); err != nil {
		if !history.IsStorageError(err, history.OpWrite) {
			c.release(convID, p.cancel)
			return nil, err
		}
		// kept in memory; the reply is still worth fetching
		c.logger.Warn("user message not persisted", zap.String("conversation", convID), zap.Error(err))
	}
	draft.Attachments.Clear()

	conv, ok := c.store.Get(convID)
	if !ok {
		c.release(convID, p.cancel)
		return nil, history.ErrNotFound
	}

	c.mu.Lock()
	testMode, maxTokens := c.testMode, c.maxTokens
	c.mu.Unlock()

	p.req = completion.Request{
		Messages:    completion.MessagesFrom(conv.Messages),
		Attachments: files,
		TestMode:    testMode,
		Config:      completion.Config{Model: conv.Model, MaxTokens: maxTokens},
	}
	c.transition(convID, StateAwaitingResponse)
	return p, nil
}

// Wait performs the completion call and records the outcome. Later
// calls return the first outcome.
func (p *Pending) Wait() (Result, error) {
	p.once.Do(func() {
		p.result = p.c.resolve(p)
	})
	return p.result, p.result.Err
}

// reserve picks the target conversation and marks it busy. A fresh
// conversation is created when there is no target and nothing is active.
func (c *Controller) reserve(id string) (string, error) {
	if id == "" {
		id = c.store.ActiveID()
	}
	if id != "" && !c.store.Has(id) {
		return "", history.ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		conv, err := c.store.CreateConversation(c.model)
		if err != nil && !history.IsStorageError(err, history.OpWrite) {
			return "", err
		}
		c.logger.Debug("conversation auto-created", zap.String("id", conv.ID), zap.String("model", conv.Model))
		id = conv.ID
	}
	if _, busy := c.inflight[id]; busy {
		return "", ErrBusy
	}
	c.inflight[id] = func() {}
	return id, nil
}

// callContext derives the context for one completion call and registers
// its cancel func.
func (c *Controller) callContext(ctx context.Context, id string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, ErrResponseTimeout)
	c.mu.Lock()
	c.inflight[id] = cancel
	c.mu.Unlock()
	return ctx, cancel
}

func (c *Controller) release(id string, cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
	c.transition(id, StateIdle)
}

func (c *Controller) resolve(p *Pending) Result {
	defer c.release(p.convID, p.cancel)

	res := Result{ConversationID: p.convID, UserMessage: p.user}
	reply, err := c.provider.Complete(p.ctx, p.req)
	if err == nil && p.ctx.Err() != nil {
		err = p.ctx.Err()
	}
	res.Elapsed = c.now().Sub(p.started)
	c.transition(p.convID, StateResolved)

	if err != nil {
		if errors.Is(context.Cause(p.ctx), ErrResponseTimeout) {
			err = ErrResponseTimeout
		}
		res.Err = &CompletionError{ConversationID: p.convID, Err: err}
		res.Reply = model.NewFailureMessage(err)
		c.logger.Warn("completion failed",
			zap.String("conversation", p.convID),
			zap.String("model", p.req.Config.Model),
			zap.Error(err))
		return res
	}

	res.Reply = model.NewAssistantMessage(reply)
	switch err := c.store.AddReply(p.convID, p.user.ID, res.Reply); {
	case errors.Is(err, history.ErrNotFound):
		res.Discarded = true
		c.logger.Warn("reply discarded, conversation no longer exists", zap.String("conversation", p.convID))
	case errors.Is(err, history.ErrPromptGone):
		res.Discarded = true
		c.logger.Warn("reply discarded, conversation was cleared", zap.String("conversation", p.convID))
	case err != nil:
		res.Err = err
	}
	return res
}

func (c *Controller) transition(id string, to State) {
	c.mu.Lock()
	from := c.states[id]
	if to == StateIdle {
		delete(c.states, id)
	} else {
		c.states[id] = to
	}
	observer := c.observer
	c.mu.Unlock()

	if observer != nil && from != to {
		observer(Transition{ConversationID: id, From: from, To: to, At: c.now()})
	}
}
