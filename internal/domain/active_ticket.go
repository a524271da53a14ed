package domain

import "time"

// Transcript markers for messages without text.
const (
	EmptyMessageMarker      = "[Empty]"
	AttachmentMessageMarker = "[Attachment]"
)

// TicketState enumerates lifecycle states derived from an ActiveTicket.
type TicketState string

const (
	TicketStateOpenUnclaimed TicketState = "OPEN_UNCLAIMED"
	TicketStateOpenClaimed   TicketState = "OPEN_CLAIMED"
	TicketStateLocked        TicketState = "LOCKED"
	TicketStateClosed        TicketState = "CLOSED"
)

// TicketKey identifies an ActiveTicket.
type TicketKey struct {
	ChannelID   string
	OwnerUserID string
}

// String returns the document key for the ticket.
func (k TicketKey) String() string {
	return k.ChannelID + ":" + k.OwnerUserID
}

// IndividualMessage is one normalized transcript entry.
type IndividualMessage struct {
	TimeStamp time.Time `json:"timeStamp" bson:"timeStamp"`
	Message   string    `json:"message" bson:"message"`
	UserID    string    `json:"userId" bson:"userId"`
}

// ActiveTicket tracks one ticket channel. Closed tickets are kept as an audit record.
type ActiveTicket struct {
	OwnerUserID       string              `json:"ownerUserId" bson:"ownerUserId"`
	ResponderUserID   string              `json:"responderUserId,omitempty" bson:"responderUserId,omitempty"`
	GuildID           string              `json:"guildId" bson:"guildId"`
	ChannelID         string              `json:"channelId" bson:"channelId"`
	StartingMessageID string              `json:"startingMessageId,omitempty" bson:"startingMessageId,omitempty"`
	Type              string              `json:"type" bson:"type"`
	Locked            bool                `json:"locked" bson:"locked"`
	Closed            bool                `json:"closed" bson:"closed"`
	Reason            string              `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt         time.Time           `json:"createdTimestamp" bson:"createdTimestamp"`
	MessageHistory    []IndividualMessage `json:"messageHistory" bson:"messageHistory"`
}

// Key returns the ticket's store key.
func (t *ActiveTicket) Key() TicketKey {
	return TicketKey{ChannelID: t.ChannelID, OwnerUserID: t.OwnerUserID}
}

// State derives the lifecycle state from the stored flags.
func (t *ActiveTicket) State() TicketState {
	switch {
	case t.Closed:
		return TicketStateClosed
	case t.Locked:
		return TicketStateLocked
	case t.ResponderUserID != "":
		return TicketStateOpenClaimed
	default:
		return TicketStateOpenUnclaimed
	}
}

// CanAct reports whether the actor may act on the ticket as its responder.
func (t *ActiveTicket) CanAct(actor Actor) bool {
	return actor.Elevated || (t.ResponderUserID != "" && actor.ID == t.ResponderUserID)
}
