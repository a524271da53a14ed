package discord

import (
	"context"
	"sync"
)

// PromptCollector hands the next message a user sends in a channel to whoever is waiting on it.
type PromptCollector struct {
	mu      sync.Mutex
	waiting map[string]chan string
}

// NewPromptCollector creates a collector.
func NewPromptCollector() *PromptCollector {
	return &PromptCollector{waiting: make(map[string]chan string)}
}

func promptKey(channelID, userID string) string {
	return channelID + ":" + userID
}

// Wait blocks until userID sends a message in channelID or ctx is done. A newer Wait for the
// same pair replaces the older one.
func (c *PromptCollector) Wait(ctx context.Context, channelID, userID string) (string, error) {
	key := promptKey(channelID, userID)
	ch := make(chan string, 1)

	c.mu.Lock()
	c.waiting[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.waiting[key] == ch {
			delete(c.waiting, key)
		}
		c.mu.Unlock()
	}()

	select {
	case content := <-ch:
		return content, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Deliver passes content to a pending Wait and reports whether one consumed it.
func (c *PromptCollector) Deliver(channelID, userID, content string) bool {
	key := promptKey(channelID, userID)

	c.mu.Lock()
	ch, ok := c.waiting[key]
	if ok {
		delete(c.waiting, key)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	ch <- content
	return true
}
