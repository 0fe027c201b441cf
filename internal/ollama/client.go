// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL uses the IPv4 loopback, localhost can resolve to ::1 first.
const DefaultBaseURL = "http://127.0.0.1:11434"

var (
	ErrNotRunning   = errors.New("ollama is not running")
	ErrTimeout      = errors.New("ollama request timed out")
	ErrModelMissing = errors.New("model is not installed")
)

// StatusError is an unexpected HTTP status from the server.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ollama: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("ollama: %s (%d)", e.Message, e.Status)
}

// Client talks to one Ollama server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which allows 2 minutes per
// call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a client for baseURL, or DefaultBaseURL when empty.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 2 * time.Minute},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Chat sends the turns and waits for the whole reply.
func (c *Client) Chat(ctx context.Context, p ChatParams) (string, error) {
	if p.Model == "" {
		return "", errors.New("ollama: model is required")
	}
	var reply chatReply
	err := c.do(ctx, http.MethodPost, "/api/chat", encodeChat(p), &reply)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrModelMissing, p.Model)
	}
	if err != nil {
		return "", err
	}
	return reply.Message.Content, nil
}

// Installed lists the locally pulled models.
func (c *Client) Installed(ctx context.Context) ([]Model, error) {
	var reply tagsReply
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &reply); err != nil {
		return nil, err
	}
	out := make([]Model, 0, len(reply.Models))
	for _, m := range reply.Models {
		out = append(out, Model{
			Name:          m.Name,
			Size:          m.Size,
			Family:        m.Details.Family,
			ParameterSize: m.Details.ParameterSize,
		})
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ollama: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return classify(err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	c.logger.Debug("ollama call", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		var reply errorReply
		json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&reply)
		return &StatusError{Status: resp.StatusCode, Message: reply.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %w", err)
	}
	return nil
}

// classify sorts a failed round trip. The cause stays in the chain so
// callers can still match context errors.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNotRunning, err)
}
