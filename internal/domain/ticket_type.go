package domain

// TicketField names a settable attribute of a TicketType. The value doubles as the
// document path segment under guilds.tickets.<index>.
type TicketField string

const (
	TicketFieldType                  TicketField = "type"
	TicketFieldSubmissionChannelID   TicketField = "submissionChannelId"
	TicketFieldSubmissionTitle       TicketField = "submissionTitle"
	TicketFieldSubmissionMessage     TicketField = "submissionMessage"
	TicketFieldSubmissionButtonLabel TicketField = "submissionButtonLabel"
	TicketFieldCreationCategoryID    TicketField = "creationCategoryId"
	TicketFieldArchiveChannelID      TicketField = "archiveChannelId"
	TicketFieldStartingMessage       TicketField = "startingMessage"
	TicketFieldRoleAccess            TicketField = "roleAccess"
)

// TicketType is an administrator-defined ticket workflow within a guild.
type TicketType struct {
	Type                  string   `json:"type" bson:"type"`
	SubmissionChannelID   string   `json:"submissionChannelId,omitempty" bson:"submissionChannelId,omitempty"`
	SubmissionTitle       string   `json:"submissionTitle,omitempty" bson:"submissionTitle,omitempty"`
	SubmissionMessage     string   `json:"submissionMessage,omitempty" bson:"submissionMessage,omitempty"`
	SubmissionButtonLabel string   `json:"submissionButtonLabel,omitempty" bson:"submissionButtonLabel,omitempty"`
	CreationCategoryID    string   `json:"creationCategoryId,omitempty" bson:"creationCategoryId,omitempty"`
	ArchiveChannelID      string   `json:"archiveChannelId,omitempty" bson:"archiveChannelId,omitempty"`
	StartingMessage       string   `json:"startingMessage,omitempty" bson:"startingMessage,omitempty"`
	RoleAccess            []string `json:"roleAccess,omitempty" bson:"roleAccess,omitempty"`
}

// GuildConfig is the per-guild ticket configuration document.
type GuildConfig struct {
	ID      string       `json:"id" bson:"id"`
	Tickets []TicketType `json:"tickets" bson:"tickets"`
}

// TicketIndex returns the position of the named ticket type, or -1.
func (g *GuildConfig) TicketIndex(ticketType string) int {
	if g == nil {
		return -1
	}
	for i := range g.Tickets {
		if g.Tickets[i].Type == ticketType {
			return i
		}
	}
	return -1
}

// Ticket returns the named ticket type, or nil.
func (g *GuildConfig) Ticket(ticketType string) *TicketType {
	idx := g.TicketIndex(ticketType)
	if idx < 0 {
		return nil
	}
	return &g.Tickets[idx]
}
