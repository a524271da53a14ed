package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
)

type brokerStub struct {
	channels []string
	payloads [][]byte
	err      error
}

func (b *brokerStub) Publish(_ context.Context, channel string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	return nil
}

func TestNotificationService_ForwardsLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	dispatcher := events.NewInMemoryDispatcher()
	broker := &brokerStub{}
	NewNotificationService(dispatcher, events.NewRedisPublisher(broker, "ticketbot:events"), nil).RegisterHandlers()

	ticket := &domain.ActiveTicket{GuildID: testGuildID, ChannelID: "500000000000000001", OwnerUserID: testOwnerID}
	for _, eventType := range events.LifecycleEvents {
		require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(eventType, ticket, staff, nil)))
	}

	require.Len(t, broker.payloads, len(events.LifecycleEvents))
	assert.Equal(t, "ticketbot:events", broker.channels[0])
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(broker.payloads[len(broker.payloads)-1], &decoded))
	assert.Equal(t, string(events.EventTicketClosed), decoded["type"])
}

func TestNotificationService_ReportsBrokerFailure(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	broker := &brokerStub{err: errors.New("redis down")}
	NewNotificationService(dispatcher, events.NewRedisPublisher(broker, "ticketbot:events"), nil).RegisterHandlers()

	ticket := &domain.ActiveTicket{GuildID: testGuildID, ChannelID: "500000000000000001", OwnerUserID: testOwnerID}
	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketClaimed, ticket, staff, nil))
	assert.ErrorContains(t, err, "redis down")
}

func TestNotificationService_LogsOnlyWithoutPublisher(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, nil, nil).RegisterHandlers()

	ticket := &domain.ActiveTicket{GuildID: testGuildID, ChannelID: "500000000000000001", OwnerUserID: testOwnerID}
	assert.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketOpened, ticket, staff, nil)))
}
