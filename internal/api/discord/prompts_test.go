package discord

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptCollector_DeliverWithoutWaiter(t *testing.T) {
	c := NewPromptCollector()
	assert.False(t, c.Deliver("c", "u", "hello"))
}

func TestPromptCollector_WaitReceivesMessage(t *testing.T) {
	c := NewPromptCollector()
	done := make(chan string, 1)
	go func() {
		answer, err := c.Wait(context.Background(), "c", "u")
		if err == nil {
			done <- answer
		}
	}()

	require.Eventually(t, func() bool { return c.Deliver("c", "u", "support") }, time.Second, time.Millisecond)
	assert.Equal(t, "support", <-done)
	assert.False(t, c.Deliver("c", "u", "again"))
}

func TestPromptCollector_OtherUserIgnored(t *testing.T) {
	c := NewPromptCollector()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Deliver("c", "someone-else", "hijack")
	}()
	_, err := c.Wait(ctx, "c", "u")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
