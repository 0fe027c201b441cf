// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/chatdesk/internal/attach"
	"github.com/jeranaias/chatdesk/internal/completion"
	"github.com/jeranaias/chatdesk/internal/history"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/storage"
)

// stubProvider answers with reply or err. When block is set it waits for
// the channel or the context.
type stubProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	block chan struct{}
	calls int
	reqs  []completion.Request
}

func (p *stubProvider) Complete(ctx context.Context, req completion.Request) (string, error) {
	p.mu.Lock()
	p.calls++
	p.reqs = append(p.reqs, req)
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.reply, p.err
}

func (p *stubProvider) ListModels(ctx context.Context) ([]completion.ModelInfo, error) {
	return model.BuiltinModels, nil
}

func (p *stubProvider) lastRequest() completion.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqs[len(p.reqs)-1]
}

func newStore(t *testing.T) *history.Store {
	t.Helper()
	return history.Open(storage.NewMemoryBackend())
}

// =============================================================================
// SEND CYCLE TESTS
// =============================================================================

func TestSend_TitleAndReply(t *testing.T) {
	store := newStore(t)
	provider := &stubProvider{reply: "I'm doing well, thanks!"}
	ctl := NewController(store, provider)

	conv, err := store.CreateConversation("gpt-5")
	require.NoError(t, err)

	res, err := ctl.Send(context.Background(), Draft{Text: "Hello there, how are you today?"})
	require.NoError(t, err)
	assert.Equal(t, conv.ID, res.ConversationID)
	assert.False(t, ctl.Responding(conv.ID))
	assert.Equal(t, StateIdle, ctl.State(conv.ID))

	got, ok := store.Get(conv.ID)
	require.True(t, ok)
	assert.Equal(t, "Hello there, how are you today…", got.Title)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "I'm doing well, thanks!", got.Messages[1].Content)

	req := provider.lastRequest()
	assert.Equal(t, "gpt-5", req.Config.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "Hello there, how are you today?", req.Messages[0].Text())
}

func TestSend_ProviderFailure(t *testing.T) {
	store := newStore(t)
	boom := errors.New("service unavailable")
	ctl := NewController(store, &stubProvider{err: boom})

	conv, err := store.CreateConversation("gpt-5")
	require.NoError(t, err)

	res, err := ctl.Send(context.Background(), Draft{Text: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var ce *CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, conv.ID, ce.ConversationID)

	assert.True(t, res.Reply.Failed)
	assert.NotEmpty(t, res.Reply.Content)
	assert.False(t, ctl.Responding(conv.ID))

	got, _ := store.Get(conv.ID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)
}

func TestSend_EmptyDraft(t *testing.T) {
	store := newStore(t)
	provider := &stubProvider{reply: "x"}
	ctl := NewController(store, provider)

	_, err := ctl.Send(context.Background(), Draft{Text: "   \n"})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, store.Len())
	assert.Zero(t, provider.calls)
}

func TestSend_AutoCreatesWithSelectedModel(t *testing.T) {
	store := newStore(t)
	ctl := NewController(store, &stubProvider{reply: "hi"}, WithModel("claude-sonnet-4-5"))
	ctl.SetModel("gemini-2.5-flash")

	res, err := ctl.Send(context.Background(), Draft{Text: "hello"})
	require.NoError(t, err)

	conv, ok := store.Active()
	require.True(t, ok)
	assert.Equal(t, res.ConversationID, conv.ID)
	assert.Equal(t, "gemini-2.5-flash", conv.Model)
	assert.Len(t, conv.Messages, 2)
}

func TestSend_UnknownConversation(t *testing.T) {
	ctl := NewController(newStore(t), &stubProvider{reply: "hi"})
	_, err := ctl.Send(context.Background(), Draft{ConversationID: "missing", Text: "hello"})
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestSend_BusyWhileAwaiting(t *testing.T) {
	store := newStore(t)
	provider := &stubProvider{reply: "done", block: make(chan struct{})}
	ctl := NewController(store, provider)
	conv, _ := store.CreateConversation("gpt-5")

	p, err := ctl.Begin(context.Background(), Draft{Text: "first"})
	require.NoError(t, err)
	assert.True(t, ctl.Responding(conv.ID))
	assert.Equal(t, StateAwaitingResponse, ctl.State(conv.ID))

	_, err = ctl.Send(context.Background(), Draft{Text: "second"})
	assert.ErrorIs(t, err, ErrBusy)

	close(provider.block)
	res, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, "done", res.Reply.Content)
	assert.False(t, ctl.Responding(conv.ID))

	again, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, res.Reply.ID, again.Reply.ID)
}

func TestSend_Timeout(t *testing.T) {
	store := newStore(t)
	provider := &stubProvider{block: make(chan struct{})}
	ctl := NewController(store, provider, WithTimeout(20*time.Millisecond))

	res, err := ctl.Send(context.Background(), Draft{Text: "hello"})
	assert.ErrorIs(t, err, ErrResponseTimeout)
	assert.True(t, res.Reply.Failed)
	assert.False(t, ctl.Responding(res.ConversationID))
}

func TestSend_Cancel(t *testing.T) {
	store := newStore(t)
	provider := &stubProvider{reply: "late", block: make(chan struct{})}
	ctl := NewController(store, provider)
	conv, _ := store.CreateConversation("gpt-5")

	p, err := ctl.Begin(context.Background(), Draft{Text: "hello"})
	require.NoError(t, err)
	assert.True(t, ctl.Cancel(conv.ID))

	_, err = p.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ctl.Cancel(conv.ID))

	got, _ := store.Get(conv.ID)
	assert.Len(t, got.Messages, 1)
}

// TestSend_ReplyGoesToOrigin switches the active conversation while a
// reply is outstanding.
func TestSend_ReplyGoesToOrigin(t *testing.T) {
	store := newStore(t)
	provider := &stubProvider{reply: "answer", block: make(chan struct{})}
	ctl := NewController(store, provider)

	first, _ := store.CreateConversation("gpt-5")
	p, err := ctl.Begin(context.Background(), Draft{Text: "question"})
	require.NoError(t, err)

	second, _ := store.CreateConversation("gpt-5")
	require.Equal(t, second.ID, store.ActiveID())

	close(provider.block)
	res, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, first.ID, res.ConversationID)

	got, _ := store.Get(first.ID)
	assert.Len(t, got.Messages, 2)
	other, _ := store.Get(second.ID)
	assert.Empty(t, other.Messages)
}

func TestSend_ReplyForDeletedConversation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := newStore(t)
	provider := &stubProvider{reply: "answer", block: make(chan struct{})}
	ctl := NewController(store, provider, WithLogger(zap.New(core)))

	conv, _ := store.CreateConversation("gpt-5")
	p, err := ctl.Begin(context.Background(), Draft{Text: "question"})
	require.NoError(t, err)
	require.NoError(t, store.DeleteConversation(conv.ID))

	close(provider.block)
	res, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, res.Discarded)
	assert.Equal(t, 1, logs.FilterMessage("reply discarded, conversation no longer exists").Len())
}

func TestSend_ReplyForClearedConversation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := newStore(t)
	provider := &stubProvider{reply: "answer", block: make(chan struct{})}
	ctl := NewController(store, provider, WithLogger(zap.New(core)))

	conv, _ := store.CreateConversation("gpt-5")
	p, err := ctl.Begin(context.Background(), Draft{Text: "question"})
	require.NoError(t, err)
	require.NoError(t, store.ClearMessages(conv.ID))

	close(provider.block)
	res, err := p.Wait()
	require.NoError(t, err)
	assert.True(t, res.Discarded)
	assert.Equal(t, 1, logs.FilterMessage("reply discarded, conversation was cleared").Len())

	got, _ := store.Get(conv.ID)
	assert.Empty(t, got.Messages)
	assert.False(t, ctl.Responding(conv.ID))
}

func TestBegin_UnreadableAttachmentCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("gone soon"), 0o600))
	files := attach.NewSet()
	_, err := files.Add(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	store := newStore(t)
	ctl := NewController(store, &stubProvider{reply: "ok"})

	_, err = ctl.Begin(context.Background(), Draft{Text: "see attached", Attachments: files})
	require.Error(t, err)
	assert.Zero(t, store.Len())
	assert.Empty(t, store.ActiveID())
	assert.Equal(t, 1, files.Len(), "the draft keeps its files")
}

func TestSend_Transitions(t *testing.T) {
	var mu sync.Mutex
	var seen []State
	store := newStore(t)
	ctl := NewController(store, &stubProvider{reply: "ok"}, WithObserver(func(tr Transition) {
		mu.Lock()
		seen = append(seen, tr.To)
		mu.Unlock()
	}))

	_, err := ctl.Send(context.Background(), Draft{Text: "hello"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateComposing, StateAwaitingResponse, StateResolved, StateIdle}, seen)
}

func TestSend_Attachments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("remember the milk"), 0o600))

	files := attach.NewSet()
	_, err := files.Add(path)
	require.NoError(t, err)

	store := newStore(t)
	provider := &stubProvider{reply: "noted"}
	ctl := NewController(store, provider, WithTestMode(true))

	res, err := ctl.Send(context.Background(), Draft{Attachments: files})
	require.NoError(t, err)
	assert.Zero(t, files.Len())

	require.Len(t, res.UserMessage.Attachments, 1)
	assert.Equal(t, "notes.txt", res.UserMessage.Attachments[0].Name)
	assert.Empty(t, res.UserMessage.Content)

	req := provider.lastRequest()
	assert.True(t, req.TestMode)
	require.Len(t, req.Attachments, 1)
	assert.Equal(t, []byte("remember the milk"), req.Attachments[0].Data)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting-response", StateAwaitingResponse.String())
	assert.Equal(t, "State(9)", State(9).String())
}
