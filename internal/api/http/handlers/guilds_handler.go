package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/pkg/util/snowflake"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketTypeLister reads a guild's ticket configuration.
type TicketTypeLister interface {
	TicketTypes(ctx context.Context, guildID string) ([]domain.TicketType, error)
}

// GuildsHandler exposes read-only guild configuration.
type GuildsHandler struct {
	guilds TicketTypeLister
}

// NewGuildsHandler constructs handler.
func NewGuildsHandler(guilds TicketTypeLister) *GuildsHandler {
	return &GuildsHandler{guilds: guilds}
}

// ListTicketTypes GET /guilds/:guildId/ticket-types.
func (h *GuildsHandler) ListTicketTypes(c *fiber.Ctx) error {
	guildID := c.Params("guildId")
	if !snowflake.Valid(guildID) {
		return apperrors.NewValidationError("invalid guild id", map[string]any{"guild_id": guildID})
	}
	types, err := h.guilds.TicketTypes(c.UserContext(), guildID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketTypeResponse, 0, len(types))
	for _, def := range types {
		items = append(items, ticketTypeResponse(def))
	}
	return c.JSON(fiber.Map{"data": items})
}

func ticketTypeResponse(def domain.TicketType) dto.TicketTypeResponse {
	roles := def.RoleAccess
	if roles == nil {
		roles = []string{}
	}
	return dto.TicketTypeResponse{
		Type:                  def.Type,
		SubmissionChannelID:   def.SubmissionChannelID,
		SubmissionTitle:       def.SubmissionTitle,
		SubmissionMessage:     def.SubmissionMessage,
		SubmissionButtonLabel: def.SubmissionButtonLabel,
		CreationCategoryID:    def.CreationCategoryID,
		ArchiveChannelID:      def.ArchiveChannelID,
		StartingMessage:       def.StartingMessage,
		RoleAccess:            roles,
	}
}
