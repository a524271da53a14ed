package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

type recordingBroker struct {
	channel  string
	payloads [][]byte
	err      error
}

func (b *recordingBroker) Publish(_ context.Context, channel string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.channel = channel
	b.payloads = append(b.payloads, payload)
	return nil
}

func testTicket() *domain.ActiveTicket {
	return &domain.ActiveTicket{GuildID: "g", ChannelID: "c", OwnerUserID: "o", Type: "support"}
}

func TestDispatcher_InvokesAllHandlersAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls int
	d.Subscribe(EventTicketClaimed, func(context.Context, Event) error {
		calls++
		return errors.New("first")
	})
	d.Subscribe(EventTicketClaimed, func(context.Context, Event) error {
		calls++
		return nil
	})
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		t.Fatal("unexpected handler")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketClaimed, testTicket(), domain.Actor{ID: "v"}, nil))
	assert.EqualError(t, err, "first")
	assert.Equal(t, 2, calls)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventTicketOpened, testTicket(), domain.Actor{ID: "o"}, TicketOpenedPayload{Type: "support"})
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "c", e.ChannelID)
	assert.Equal(t, "o", e.Actor.UserID)
	assert.False(t, e.Timestamp.IsZero())

	other := NewEvent(EventTicketOpened, testTicket(), domain.Actor{ID: "o"}, nil)
	assert.NotEqual(t, e.ID, other.ID)
}

func TestRedisPublisher_Forward(t *testing.T) {
	broker := &recordingBroker{}
	p := NewRedisPublisher(broker, "ticketbot:events")
	event := NewEvent(EventTicketClosed, testTicket(), domain.Actor{ID: "v"}, TicketClosedPayload{Messages: 3})

	require.NoError(t, p.Forward(context.Background(), event))
	require.Len(t, broker.payloads, 1)
	assert.Equal(t, "ticketbot:events", broker.channel)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(broker.payloads[0], &decoded))
	assert.Equal(t, "ticket_closed", decoded["type"])
	assert.Equal(t, 3.0, decoded["payload"].(map[string]any)["messages"])

	broker.err = errors.New("down")
	assert.Error(t, p.Forward(context.Background(), event))
}
