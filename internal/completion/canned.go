// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/chatdesk/internal/model"
)

// CannedReplies are returned in turn by Canned.
var CannedReplies = []string{
	"That's a great question! Let me think about that for a moment...\n\nBased on my understanding, I'd be happy to help you with this. Could you provide a bit more context so I can give you the most relevant answer?",
	"Interesting! Here's what I can tell you:\n\nThis is a complex topic with many facets. The key points to consider are the context, the specific requirements, and the desired outcome. Would you like me to elaborate on any particular aspect?",
	"I'd be glad to help with that!\n\nTo give you the best possible answer, I'll break this down into manageable parts. First, let's understand the core concept, then we can explore the practical applications.",
	"Great question! Let me explain:\n\nThe answer depends on several factors, but generally speaking, the most effective approach involves careful planning and consideration of all variables involved.",
}

// Canned answers from a fixed list after an optional delay. It never
// touches the network.
type Canned struct {
	Replies []string
	Delay   time.Duration

	mu   sync.Mutex
	next int
}

// NewCanned creates a provider cycling through CannedReplies.
func NewCanned(delay time.Duration) *Canned {
	return &Canned{Replies: CannedReplies, Delay: delay}
}

// Complete waits Delay and returns the next reply.
func (c *Canned) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if c.Delay > 0 {
		timer := time.NewTimer(c.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if len(c.Replies) == 0 {
		return "", ErrEmptyReply
	}

	c.mu.Lock()
	reply := c.Replies[c.next%len(c.Replies)]
	c.next++
	c.mu.Unlock()
	return reply, nil
}

// ListModels returns the built-in catalog.
func (c *Canned) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return append([]ModelInfo(nil), model.BuiltinModels...), nil
}
