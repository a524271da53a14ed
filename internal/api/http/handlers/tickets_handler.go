package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/pkg/util/snowflake"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketFinder looks up tickets by channel.
type TicketFinder interface {
	Ticket(ctx context.Context, channelID string) (*domain.ActiveTicket, error)
}

// TicketsHandler exposes stored tickets and their transcripts.
type TicketsHandler struct {
	tickets  TicketFinder
	location *time.Location
}

// NewTicketsHandler constructs handler. Transcript lines are rendered in loc.
func NewTicketsHandler(tickets TicketFinder, loc *time.Location) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, location: loc}
}

// GetTicket GET /tickets/:channelId.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	channelID := c.Params("channelId")
	if !snowflake.Valid(channelID) {
		return apperrors.NewValidationError("invalid channel id", map[string]any{"channel_id": channelID})
	}
	ticket, err := h.tickets.Ticket(c.UserContext(), channelID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

func (h *TicketsHandler) ticketDetail(t *domain.ActiveTicket) dto.TicketDetailResponse {
	messages := make([]dto.TranscriptResponse, 0, len(t.MessageHistory))
	for _, m := range t.MessageHistory {
		messages = append(messages, dto.TranscriptResponse{UserID: m.UserID, Message: m.Message, Timestamp: m.TimeStamp})
	}
	return dto.TicketDetailResponse{
		ChannelID:         t.ChannelID,
		GuildID:           t.GuildID,
		Type:              t.Type,
		OwnerUserID:       t.OwnerUserID,
		ResponderUserID:   t.ResponderUserID,
		StartingMessageID: t.StartingMessageID,
		State:             t.State(),
		Reason:            t.Reason,
		CreatedAt:         t.CreatedAt,
		Messages:          messages,
		Transcript:        string(transcript.Render(t.MessageHistory, h.location)),
	}
}
