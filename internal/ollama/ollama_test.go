// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jeranaias/chatdesk/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithHTTPClient(srv.Client()))
}

// newStalledClient returns a client whose server never answers. The
// handler drains the body so net/http can notice the client going away,
// and is released when the test ends so Close does not wait on it.
func newStalledClient(t *testing.T, onRequest func()) *Client {
	t.Helper()
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if onRequest != nil {
			onRequest()
		}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	// Cleanups run last-in first-out: release before srv.Close.
	t.Cleanup(func() { close(release) })
	return c
}

var hi = []Turn{{Role: model.RoleUser, Text: "hi"}}

// =============================================================================
// CLIENT SETUP
// =============================================================================

func TestNew(t *testing.T) {
	tests := map[string]string{
		"":                          DefaultBaseURL,
		"  ":                        DefaultBaseURL,
		"http://gpu-box:11434/":     "http://gpu-box:11434",
		"http://127.0.0.1:11434///": "http://127.0.0.1:11434",
	}
	for in, want := range tests {
		if got := New(in).BaseURL(); got != want {
			t.Errorf("New(%q).BaseURL() = %q, want %q", in, got, want)
		}
	}
	if got := New("").http.Timeout; got != 2*time.Minute {
		t.Errorf("default timeout = %v", got)
	}
}

func TestModelSummary(t *testing.T) {
	tests := []struct {
		m    Model
		want string
	}{
		{Model{ParameterSize: "8B", Size: 4661224676}, "8B, 4.7 GB"},
		{Model{Size: 512}, "512 B"},
		{Model{ParameterSize: "3.2B"}, "3.2B"},
		{Model{}, ""},
	}
	for _, tt := range tests {
		if got := tt.m.Summary(); got != tt.want {
			t.Errorf("Summary(%+v) = %q, want %q", tt.m, got, tt.want)
		}
	}
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body chatBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Stream {
			t.Error("Stream = true, want false")
		}
		if body.Options == nil || body.Options.NumPredict != 128 {
			t.Errorf("Options = %+v", body.Options)
		}
		if body.Model != "llava" || len(body.Messages) != 2 {
			t.Errorf("request = %+v", body)
		} else {
			if body.Messages[0].Role != "assistant" || body.Messages[0].Images != nil {
				t.Errorf("first message = %+v", body.Messages[0])
			}
			if got := body.Messages[1].Images; len(got) != 1 || got[0] != "UE5H" {
				t.Errorf("images = %v", got)
			}
		}
		w.Write([]byte(`{"model": "llava", "message": {"role": "assistant", "content": "A red square."}, "done": true}`))
	})

	reply, err := c.Chat(context.Background(), ChatParams{
		Model:     "llava",
		MaxTokens: 128,
		Turns: []Turn{
			{Role: model.RoleAssistant, Text: "Ask me anything."},
			{Role: model.RoleUser, Text: "What is this?", Images: [][]byte{[]byte("PNG")}},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "A red square." {
		t.Errorf("reply = %q", reply)
	}
}

func TestEncodeChat_OmitsUnsetOptions(t *testing.T) {
	data, err := json.Marshal(encodeChat(ChatParams{Model: "m", Turns: hi}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"model":"m","messages":[{"role":"user","content":"hi"}],"stream":false}`
	if string(data) != want {
		t.Errorf("json = %s", data)
	}
}

func TestChat_ModelMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "model 'missing' not found"}`))
	})
	_, err := c.Chat(context.Background(), ChatParams{Model: "missing", Turns: hi})
	if !errors.Is(err, ErrModelMissing) {
		t.Errorf("err = %v, want ErrModelMissing", err)
	}
}

func TestChat_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"out of memory"}`))
	})
	_, err := c.Chat(context.Background(), ChatParams{Model: "big", Turns: hi})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != 500 {
		t.Fatalf("err = %v, want *StatusError 500", err)
	}
	if err.Error() != "ollama: out of memory (500)" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestChat_NoModel(t *testing.T) {
	if _, err := New("").Chat(context.Background(), ChatParams{Turns: hi}); err == nil {
		t.Error("expected an error without a model")
	}
}

func TestChat_Timeout(t *testing.T) {
	c := newStalledClient(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Chat(ctx, ChatParams{Model: "slow", Turns: hi})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded in chain", err)
	}
}

func TestChat_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newStalledClient(t, cancel)

	_, err := c.Chat(ctx, ChatParams{Model: "m", Turns: hi})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrNotRunning) || errors.Is(err, ErrTimeout) {
		t.Errorf("cancellation misreported as %v", err)
	}
}

func TestNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := New(url).Installed(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Installed err = %v, want ErrNotRunning", err)
	}
}

// =============================================================================
// MODEL LISTING
// =============================================================================

func TestInstalled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2:latest","size":2019393189,
			"details":{"family":"llama","parameter_size":"3.2B"}}]}`))
	})

	models, err := c.Installed(context.Background())
	if err != nil {
		t.Fatalf("Installed: %v", err)
	}
	want := Model{Name: "llama3.2:latest", Size: 2019393189, Family: "llama", ParameterSize: "3.2B"}
	if len(models) != 1 || models[0] != want {
		t.Errorf("models = %+v", models)
	}
}
