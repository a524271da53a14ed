package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("TICKET_PROMPT_TIMEOUT", "")
	t.Setenv("TICKET_TRANSCRIPT_PAGE_SIZE", "")
	t.Setenv("REDIS_DB", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 2*time.Minute, cfg.Ticket.PromptTimeout)
	assert.Equal(t, 100, cfg.Ticket.TranscriptPageSize)
	assert.Equal(t, "ticket", cfg.Ticket.ChannelPrefix)
	assert.Equal(t, time.UTC, cfg.Ticket.TranscriptTimezone)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Mongo")
	t.Setenv("TICKET_PROMPT_TIMEOUT", "30s")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendMongo, cfg.Store.Backend)
	assert.Equal(t, 30*time.Second, cfg.Ticket.PromptTimeout)
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
}

func TestLoad_Discord(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_APPLICATION_ID", "100000000000000001")
	t.Setenv("DISCORD_DEV_GUILD_ID", "100000000000000002")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DiscordConfig{
		Token:         "token",
		ApplicationID: "100000000000000001",
		DevGuildID:    "100000000000000002",
	}, cfg.Discord)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "redis db", key: "REDIS_DB", val: "one"},
		{name: "store backend", key: "STORE_BACKEND", val: "sqlite"},
		{name: "timezone", key: "TICKET_TRANSCRIPT_TIMEZONE", val: "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvAsDuration_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Second, getEnvAsDuration("SOME_DURATION", time.Second))
}
