package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketTypeResponse describes one configured ticket type.
type TicketTypeResponse struct {
	Type                  string   `json:"type"`
	SubmissionChannelID   string   `json:"submission_channel_id,omitempty"`
	SubmissionTitle       string   `json:"submission_title,omitempty"`
	SubmissionMessage     string   `json:"submission_message,omitempty"`
	SubmissionButtonLabel string   `json:"submission_button_label,omitempty"`
	CreationCategoryID    string   `json:"creation_category_id,omitempty"`
	ArchiveChannelID      string   `json:"archive_channel_id,omitempty"`
	StartingMessage       string   `json:"starting_message,omitempty"`
	RoleAccess            []string `json:"role_access"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ChannelID         string               `json:"channel_id"`
	GuildID           string               `json:"guild_id"`
	Type              string               `json:"type"`
	OwnerUserID       string               `json:"owner_user_id"`
	ResponderUserID   string               `json:"responder_user_id,omitempty"`
	StartingMessageID string               `json:"starting_message_id,omitempty"`
	State             domain.TicketState   `json:"state"`
	Reason            string               `json:"reason,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	Messages          []TranscriptResponse `json:"messages"`
	Transcript        string               `json:"transcript"`
}

// TranscriptResponse is one transcript entry.
type TranscriptResponse struct {
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
