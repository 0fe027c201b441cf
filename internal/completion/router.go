// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatdesk/internal/model"
)

// FallbackProvider serves models whose own provider is not registered.
const FallbackProvider = model.ProviderOpenRouter

// Router dispatches requests to the provider named by the model's catalog
// entry. It is itself a Provider.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	limiters  map[string]*rate.Limiter
	rpm       int
	catalog   *Catalog
	canned    Provider
	fallback  string
	logger    *zap.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRateLimit caps every provider at rpm requests per minute. Zero
// disables limiting.
func WithRateLimit(rpm int) RouterOption {
	return func(r *Router) { r.rpm = rpm }
}

// WithCanned sets the provider answering test-mode requests.
func WithCanned(p Provider) RouterOption {
	return func(r *Router) { r.canned = p }
}

// WithRouterLogger sets the logger.
func WithRouterLogger(l *zap.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter creates a router over catalog. A nil catalog starts from the
// built-in models.
func NewRouter(catalog *Catalog, opts ...RouterOption) *Router {
	if catalog == nil {
		catalog = NewCatalog(model.BuiltinModels)
	}
	r := &Router{
		providers: make(map[string]Provider),
		limiters:  make(map[string]*rate.Limiter),
		catalog:   catalog,
		canned:    NewCanned(0),
		fallback:  FallbackProvider,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs p under label, replacing any previous adapter.
func (r *Router) Register(label string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[label] = p
	if r.rpm > 0 {
		r.limiters[label] = rate.NewLimiter(rate.Limit(float64(r.rpm)/60), 1)
	}
}

// Providers returns the registered labels in sorted order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.providers))
	for label := range r.providers {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Catalog returns the model catalog.
func (r *Router) Catalog() *Catalog {
	return r.catalog
}

// Resolve returns the label and adapter that will serve modelID.
func (r *Router) Resolve(modelID string) (string, Provider, error) {
	label := providerFor(r.catalog, modelID)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[label]; ok {
		return label, p, nil
	}
	if p, ok := r.providers[r.fallback]; ok {
		return r.fallback, p, nil
	}
	return label, nil, ErrNoProvider
}

// providerFor guesses the provider of an id missing from the catalog
// from its shape.
func providerFor(c *Catalog, modelID string) string {
	if m, ok := c.Find(modelID); ok && m.Provider != "" {
		return m.Provider
	}
	switch {
	case strings.Contains(modelID, "/"):
		return model.ProviderOpenRouter
	case strings.HasPrefix(modelID, "gpt-"), strings.HasPrefix(modelID, "o1"), strings.HasPrefix(modelID, "o3"):
		return model.ProviderOpenAI
	case strings.HasPrefix(modelID, "claude-"):
		return model.ProviderAnthropic
	case strings.HasPrefix(modelID, "gemini-"):
		return model.ProviderGoogle
	case strings.Contains(modelID, ":"):
		return model.ProviderOllama
	}
	return model.ProviderUnknown
}

// Complete routes req and returns the reply text.
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if req.TestMode {
		return r.canned.Complete(ctx, req)
	}

	label, p, err := r.Resolve(req.Config.Model)
	if err != nil {
		return "", wrap(label, err)
	}

	r.mu.RLock()
	limiter := r.limiters[label]
	r.mu.RUnlock()
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return "", wrap(label, err)
		}
	}

	r.logger.Debug("completion request",
		zap.String("provider", label),
		zap.String("model", req.Config.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Int("attachments", len(req.Attachments)))

	reply, err := p.Complete(ctx, req)
	if err != nil {
		r.logger.Warn("completion failed", zap.String("provider", label), zap.Error(err))
		return "", wrap(label, err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", wrap(label, ErrEmptyReply)
	}
	return reply, nil
}

// ListModels merges every provider's listing into the catalog and
// returns the catalog. Providers that fail are skipped and their errors
// joined.
func (r *Router) ListModels(ctx context.Context) ([]ModelInfo, error) {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for label, p := range r.providers {
		providers[label] = p
	}
	r.mu.RUnlock()

	labels := make([]string, 0, len(providers))
	for label := range providers {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var errs []error
	for _, label := range labels {
		models, err := providers[label].ListModels(ctx)
		if err != nil {
			r.logger.Debug("model listing failed", zap.String("provider", label), zap.Error(err))
			errs = append(errs, wrap(label, err))
			continue
		}
		added := r.catalog.Merge(models)
		r.logger.Debug("models listed", zap.String("provider", label), zap.Int("added", added))
	}
	return r.catalog.All(), errors.Join(errs...)
}
