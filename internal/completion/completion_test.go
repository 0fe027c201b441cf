// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/model"
)

// fakeProvider records requests and answers with a fixed reply.
type fakeProvider struct {
	reply  string
	err    error
	models []ModelInfo
	listEr error
	calls  atomic.Int32
	last   Request
}

func (f *fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	f.calls.Add(1)
	f.last = req
	return f.reply, f.err
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return f.models, f.listEr
}

func userRequest(modelID, text string) Request {
	return Request{
		Messages: []Message{{Role: model.RoleUser, Parts: []Part{{Text: text}}}},
		Config:   Config{Model: modelID},
	}
}

// =============================================================================
// REQUEST TESTS
// =============================================================================

func TestRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, Request{}.Validate(), ErrNoModel)
	assert.Error(t, Request{Config: Config{Model: "gpt-5"}}.Validate())
	assert.NoError(t, userRequest("gpt-5", "hi").Validate())
}

func TestRequest_MaxTokens(t *testing.T) {
	assert.Equal(t, DefaultMaxTokens, Request{}.maxTokens())
	assert.Equal(t, 512, Request{Config: Config{MaxTokens: 512}}.maxTokens())
}

func TestMessagesFrom_SkipsFailures(t *testing.T) {
	ref := model.AttachmentRef{ID: "a1", Name: "notes.txt", MIMEType: "text/plain"}
	msgs := []model.Message{
		model.NewUserMessage("hello", []model.AttachmentRef{ref}),
		model.NewFailureMessage(errors.New("boom")),
		model.NewAssistantMessage("hi"),
	}

	out := MessagesFrom(msgs)
	require.Len(t, out, 2)
	assert.Equal(t, "hello", out[0].Text())
	require.Len(t, out[0].Parts, 2)
	assert.Equal(t, "a1", out[0].Parts[1].File.ID)
	assert.Equal(t, model.RoleAssistant, out[1].Role)
}

func TestTurns_ResolvesNewestAttachments(t *testing.T) {
	old := model.AttachmentRef{ID: "old", Name: "old.pdf", MIMEType: "application/pdf"}
	img := model.AttachmentRef{ID: "img", Name: "cat.png", MIMEType: "image/png", Kind: model.KindImage}
	txt := model.AttachmentRef{ID: "txt", Name: "notes.txt", MIMEType: "text/plain"}
	bin := model.AttachmentRef{ID: "bin", Name: "blob.bin", MIMEType: "application/octet-stream"}

	req := Request{
		Messages: MessagesFrom([]model.Message{
			model.NewUserMessage("first", []model.AttachmentRef{old}),
			model.NewAssistantMessage("ok"),
			model.NewUserMessage("look", []model.AttachmentRef{img, txt, bin}),
		}),
		Attachments: []File{
			{ID: "img", Name: "cat.png", MIMEType: "image/png", Kind: model.KindImage, Data: []byte{0x89, 'P'}},
			{ID: "txt", Name: "notes.txt", MIMEType: "text/plain", Data: []byte("line one\n")},
			{ID: "bin", Name: "blob.bin", MIMEType: "application/octet-stream", Data: []byte{0, 1, 2}},
		},
		Config: Config{Model: "gpt-5"},
	}

	turns := req.turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "first\n\n[Attached file: old.pdf (application/pdf)]", turns[0].Text)
	assert.Empty(t, turns[0].Images)

	last := turns[2]
	require.Len(t, last.Images, 1)
	assert.Equal(t, "img", last.Images[0].ID)
	assert.Contains(t, last.Text, "look")
	assert.Contains(t, last.Text, "Attached file notes.txt:\n```\nline one\n```")
	assert.Contains(t, last.Text, "[Attached file: blob.bin (application/octet-stream)]")
}

func TestTurns_OversizedTextBecomesNote(t *testing.T) {
	f := File{ID: "big", Name: "big.txt", MIMEType: "text/plain", Data: []byte(strings.Repeat("a", maxInlineText+1))}
	_, ok := inlineText(f)
	assert.False(t, ok)

	f = File{ID: "bad", Name: "bad.txt", MIMEType: "text/plain", Data: []byte{0xff, 0xfe}}
	_, ok = inlineText(f)
	assert.False(t, ok)
}

// =============================================================================
// CATALOG AND PAGER TESTS
// =============================================================================

func TestCatalog_MergeDeduplicates(t *testing.T) {
	c := NewCatalog(model.BuiltinModels)
	n := c.Len()

	added := c.Merge([]ModelInfo{
		{ID: "gpt-5", Name: "dup", MaxTokens: 400000},
		{ID: "llama3:8b", Provider: model.ProviderOllama},
		{ID: ""},
	})
	assert.Equal(t, 1, added)
	assert.Equal(t, n+1, c.Len())

	m, ok := c.Find("gpt-5")
	require.True(t, ok)
	assert.Equal(t, "GPT-5", m.Name)
	assert.Equal(t, 400000, m.MaxTokens)

	m, ok = c.Find("Claude Opus 4.5")
	require.True(t, ok)
	assert.Equal(t, "claude-opus-4-5", m.ID)

	assert.Len(t, c.ByProvider(model.ProviderOllama), 1)
	assert.Equal(t, "llama3:8b", c.All()[n].ID)
}

func TestPager(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}
	p := NewPager(items, 0)

	assert.Len(t, p.Visible(), DefaultPageSize)
	assert.True(t, p.HasMore())
	assert.Equal(t, 13, p.Remaining())

	assert.Equal(t, 10, p.More())
	assert.Equal(t, 3, p.More())
	assert.Equal(t, 0, p.More())
	assert.False(t, p.HasMore())
	assert.Equal(t, 22, p.Visible()[22])

	p.Reset()
	assert.Len(t, p.Visible(), 10)

	short := NewPager(items[:4], 10)
	assert.Len(t, short.Visible(), 4)
	assert.False(t, short.HasMore())
	assert.Equal(t, 4, short.Total())
}

// =============================================================================
// CANNED TESTS
// =============================================================================

func TestCanned_CyclesReplies(t *testing.T) {
	c := NewCanned(0)
	req := userRequest("gpt-5", "hi")
	for i := 0; i < len(CannedReplies)+1; i++ {
		reply, err := c.Complete(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, CannedReplies[i%len(CannedReplies)], reply)
	}
}

func TestCanned_DelayHonorsContext(t *testing.T) {
	c := NewCanned(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, userRequest("gpt-5", "hi"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// =============================================================================
// ROUTER TESTS
// =============================================================================

func TestRouter_DispatchesByProvider(t *testing.T) {
	openai := &fakeProvider{reply: "from openai"}
	anthropic := &fakeProvider{reply: "from anthropic"}
	r := NewRouter(nil)
	r.Register(model.ProviderOpenAI, openai)
	r.Register(model.ProviderAnthropic, anthropic)

	reply, err := r.Complete(context.Background(), userRequest("gpt-5", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "from openai", reply)

	reply, err = r.Complete(context.Background(), userRequest("claude-sonnet-4-5", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "from anthropic", reply)
	assert.Equal(t, []string{"anthropic", "openai"}, r.Providers())
}

func TestRouter_FallsBack(t *testing.T) {
	gateway := &fakeProvider{reply: "via gateway"}
	r := NewRouter(nil)
	r.Register(model.ProviderOpenRouter, gateway)

	label, _, err := r.Resolve("gemini-2.5-flash")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOpenRouter, label)

	reply, err := r.Complete(context.Background(), userRequest("gemini-2.5-pro", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "via gateway", reply)
}

func TestRouter_NoProvider(t *testing.T) {
	r := NewRouter(nil)
	_, err := r.Complete(context.Background(), userRequest("gpt-5", "hi"))
	assert.ErrorIs(t, err, ErrNoProvider)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ProviderOpenAI, pe.Provider)
}

func TestRouter_TestModeUsesCanned(t *testing.T) {
	live := &fakeProvider{reply: "live"}
	r := NewRouter(nil, WithCanned(&fakeProvider{reply: "canned"}))
	r.Register(model.ProviderOpenAI, live)

	req := userRequest("gpt-5", "hi")
	req.TestMode = true
	reply, err := r.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "canned", reply)
	assert.Zero(t, live.calls.Load())
}

func TestRouter_WrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter(nil)
	r.Register(model.ProviderOpenAI, &fakeProvider{err: boom})
	r.Register(model.ProviderAnthropic, &fakeProvider{reply: "  \n"})

	_, err := r.Complete(context.Background(), userRequest("gpt-5", "hi"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "openai: boom", err.Error())

	_, err = r.Complete(context.Background(), userRequest("claude-opus-4-5", "hi"))
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestRouter_RateLimitHonorsContext(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	r := NewRouter(nil, WithRateLimit(1))
	r.Register(model.ProviderOpenAI, p)

	_, err := r.Complete(context.Background(), userRequest("gpt-5", "hi"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Complete(ctx, userRequest("gpt-5", "again"))
	assert.Error(t, err)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestRouter_ListModelsMerges(t *testing.T) {
	r := NewRouter(nil)
	r.Register(model.ProviderOllama, &fakeProvider{models: []ModelInfo{
		{ID: "llama3:8b", Name: "llama3:8b", Provider: model.ProviderOllama},
	}})
	r.Register(model.ProviderOpenRouter, &fakeProvider{listEr: errors.New("offline")})

	models, err := r.ListModels(context.Background())
	assert.Error(t, err)
	assert.Len(t, models, len(model.BuiltinModels)+1)

	label, _, err := r.Resolve("llama3:8b")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOllama, label)
}

func TestProviderFor_GuessesUnknownIDs(t *testing.T) {
	c := NewCatalog(nil)
	tests := map[string]string{
		"meta-llama/llama-3": model.ProviderOpenRouter,
		"gpt-4o":             model.ProviderOpenAI,
		"claude-3-haiku":     model.ProviderAnthropic,
		"gemini-1.5-pro":     model.ProviderGoogle,
		"qwen2:7b":           model.ProviderOllama,
		"mystery":            model.ProviderUnknown,
	}
	for id, want := range tests {
		if got := providerFor(c, id); got != want {
			t.Errorf("providerFor(%q) = %q, want %q", id, got, want)
		}
	}
}
