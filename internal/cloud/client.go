// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	defaultTimeout  = 2 * time.Minute
	defaultAttempts = 3
	defaultBackoff  = time.Second
	maxBackoff      = 30 * time.Second
	maxBody         = 8 << 20
)

// Client calls the gateway. It is safe for concurrent use.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the default 2 minute client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries sets how many times a call is tried and the first pause
// between tries. The pause doubles up to 30s.
func WithRetries(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.backoff = backoff
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a client for apiKey. An empty key yields a client whose
// calls fail with ErrNoKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  DefaultBaseURL,
		http:     &http.Client{Timeout: defaultTimeout},
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a key is set.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Chat sends the turns and returns the first choice's text.
func (c *Client) Chat(ctx context.Context, p ChatParams) (string, error) {
	if p.Model == "" {
		return "", errors.New("openrouter: model is required")
	}
	body := chatBody{Model: p.Model, Messages: encodeTurns(p.Turns), MaxTokens: p.MaxTokens}
	var reply chatReply
	if err := c.call(ctx, http.MethodPost, "/chat/completions", body, &reply); err != nil {
		return "", err
	}
	if len(reply.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return reply.Choices[0].Message.Content, nil
}

// Models lists the gateway catalog.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var reply catalogReply
	if err := c.call(ctx, http.MethodGet, "/models", nil, &reply); err != nil {
		return nil, err
	}
	out := make([]Model, 0, len(reply.Data))
	for _, m := range reply.Data {
		out = append(out, Model{ID: m.ID, Name: m.Name, Description: m.Description, ContextLength: m.ContextLength})
	}
	return out, nil
}

// call runs one JSON exchange, retrying 429s, 5xx answers and transport
// failures until the attempts run out or ctx ends.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	if !c.Configured() {
		return ErrNoKey
	}
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("openrouter: encode request: %w", err)
		}
	}

	log := c.logger.With(zap.String("path", path), zap.String("key", c.fingerprint()))
	for attempt := 1; ; attempt++ {
		err := c.exchange(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if attempt >= c.attempts || !retryable(err) || ctx.Err() != nil {
			log.Debug("request failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		wait := c.pause(attempt)
		log.Debug("retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) exchange(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("openrouter: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chatdesk")
	req.Header.Set("X-Title", "chatdesk")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openrouter: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("openrouter: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return nil
}

// retryable keeps the caller's cancellation final and treats every other
// transport failure as transient.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, ErrMalformedReply) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) pause(attempt int) time.Duration {
	d := c.backoff << (attempt - 1)
	if d < 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// fingerprint identifies the key in logs without revealing it.
func (c *Client) fingerprint() string {
	if len(c.apiKey) < 12 {
		return "****"
	}
	return c.apiKey[:6] + "…" + c.apiKey[len(c.apiKey)-4:]
}
