package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened    EventType = "ticket_opened"
	EventTicketClaimed   EventType = "ticket_claimed"
	EventTicketUnclaimed EventType = "ticket_unclaimed"
	EventTicketLocked    EventType = "ticket_locked"
	EventTicketUnlocked  EventType = "ticket_unlocked"
	EventTicketClosed    EventType = "ticket_closed"
)

// LifecycleEvents lists every event the ticket lifecycle emits.
var LifecycleEvents = []EventType{
	EventTicketOpened,
	EventTicketClaimed,
	EventTicketUnclaimed,
	EventTicketLocked,
	EventTicketUnlocked,
	EventTicketClosed,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID   string `json:"user_id,omitempty"`
	Elevated bool   `json:"elevated,omitempty"`
}

// Event represents a ticket lifecycle event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	OwnerID   string    `json:"owner_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps a fresh id and time on an event for the given ticket.
func NewEvent(eventType EventType, ticket *domain.ActiveTicket, actor domain.Actor, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		GuildID:   ticket.GuildID,
		ChannelID: ticket.ChannelID,
		OwnerID:   ticket.OwnerUserID,
		Actor:     Actor{UserID: actor.ID, Elevated: actor.Elevated},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	Type              string `json:"type"`
	StartingMessageID string `json:"starting_message_id,omitempty"`
}

// TicketResponderPayload is used by claim and unclaim.
type TicketResponderPayload struct {
	PreviousResponderID string `json:"previous_responder_id,omitempty"`
	ResponderID         string `json:"responder_id,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Reason         string `json:"reason,omitempty"`
	ChannelDeleted bool   `json:"channel_deleted"`
	Messages       int    `json:"messages"`
}
