package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	defaultChannelPrefix = "ticket"
	// publishTimeout bounds event delivery for each lifecycle action.
	publishTimeout = 3 * time.Second
)

// TicketService coordinates the ticket lifecycle.
//
// Every entry point checks its preconditions in order and stops at the first failure.
// Steps already completed are not undone.
type TicketService struct {
	guilds      repository.GuildRepository
	tickets     repository.ActiveTicketRepository
	platform    platform.Client
	transcripts *transcript.Builder
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	cfg         config.TicketConfig
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	GuildRepo  repository.GuildRepository
	TicketRepo repository.ActiveTicketRepository
	Platform   platform.Client
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     config.TicketConfig
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		guilds:      deps.GuildRepo,
		tickets:     deps.TicketRepo,
		platform:    deps.Platform,
		transcripts: transcript.NewBuilder(deps.Platform, deps.Config.TranscriptPageSize),
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		cfg:         deps.Config,
		now:         time.Now,
	}
}

// Submit opens a new ticket of ticketType for the actor.
func (s *TicketService) Submit(ctx context.Context, guildID string, actor domain.Actor, ticketType string) (status string, err error) {
	defer s.record("submit", &err)

	def, err := s.guilds.GetTicketType(ctx, guildID, ticketType)
	if err != nil {
		return "", err
	}
	if def.CreationCategoryID == "" {
		return "", errorutil.NewValidationError("This ticket type has no creation category.", nil)
	}
	if def.StartingMessage == "" {
		return "", errorutil.NewValidationError("This ticket type has no starting message.", nil)
	}

	category, err := s.platform.Channel(ctx, def.CreationCategoryID)
	if err != nil {
		return "", errorutil.NewPlatformUnavailable("There was an error fetching the creation category.", err)
	}
	if category.Type != discordgo.ChannelTypeGuildCategory {
		return "", errorutil.NewValidationError("The creation category is not a category.", nil)
	}

	roles := make([]*discordgo.Role, 0, len(def.RoleAccess))
	for _, roleID := range def.RoleAccess {
		role, err := s.platform.Role(ctx, guildID, roleID)
		if err != nil {
			return "", errorutil.NewPlatformUnavailable("There was an error fetching a role.", err)
		}
		roles = append(roles, role)
	}

	existing, err := s.platform.GuildChannels(ctx, guildID)
	if err != nil {
		return "", errorutil.NewPlatformUnavailable("There was an error fetching the server channels.", err)
	}

	channel, err := s.platform.CreateChannel(ctx, guildID, discordgo.GuildChannelCreateData{
		Name:                 nextChannelName(s.channelBase(actor.Username), existing),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             category.ID,
		PermissionOverwrites: s.ticketOverwrites(guildID, actor.ID, roles),
	})
	if err != nil {
		return "", errorutil.NewPlatformUnavailable("There was an error creating the ticket channel. Make sure I have the Manage Channels permission.", err)
	}

	ticket := &domain.ActiveTicket{
		OwnerUserID: actor.ID,
		GuildID:     guildID,
		ChannelID:   channel.ID,
		Type:        def.Type,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return "", err
	}

	mentions := make([]string, len(roles))
	for i, role := range roles {
		mentions[i] = "<@&" + role.ID + ">"
	}
	msg, err := s.platform.SendMessage(ctx, channel.ID, &discordgo.MessageSend{
		Content:    strings.Join(mentions, ", "),
		Embeds:     []*discordgo.MessageEmbed{{Description: def.StartingMessage}},
		Components: UnclaimedControls(ticket.Key()),
	})
	if err != nil {
		return "", errorutil.NewPlatformUnavailable("There was an error sending the starting message in the ticket channel.", err)
	}
	if err := s.tickets.SetStartingMessageID(ctx, ticket.Key(), msg.ID); err != nil {
		return "", err
	}
	ticket.StartingMessageID = msg.ID

	s.logTransition("ticket opened", ticket, actor)
	s.publish(ctx, events.EventTicketOpened, ticket, actor, events.TicketOpenedPayload{
		Type:              ticket.Type,
		StartingMessageID: msg.ID,
	})
	return fmt.Sprintf("Ticket created at <#%s>.", channel.ID), nil
}

// Claim makes the actor the ticket's responder.
func (s *TicketService) Claim(ctx context.Context, actor domain.Actor, key domain.TicketKey) (status string, err error) {
	defer s.record("claim", &err)

	ticket, err := s.loadOpen(ctx, key)
	if err != nil {
		return "", err
	}
	switch {
	case ticket.Locked:
		return "", errorutil.NewValidationError("This ticket is locked.", nil)
	case ticket.ResponderUserID == actor.ID:
		return "", errorutil.NewValidationError("You have already claimed this ticket.", nil)
	case ticket.OwnerUserID == actor.ID && !actor.Elevated:
		return "", errorutil.NewUnauthorized("You cannot claim your own ticket.")
	case ticket.ResponderUserID != "" && !actor.Elevated:
		return "", errorutil.NewUnauthorized("You cannot claim another user's ticket.")
	}

	msg, err := s.startingMessage(ctx, ticket)
	if err != nil {
		return "", err
	}
	if err := s.renderControls(ctx, msg, ClaimedControls(key), claimedFooter(actor)); err != nil {
		return "", err
	}
	previous := ticket.ResponderUserID
	if err := s.tickets.SetResponder(ctx, key, actor.ID); err != nil {
		return "", err
	}
	ticket.ResponderUserID = actor.ID

	s.logTransition("ticket claimed", ticket, actor)
	s.publish(ctx, events.EventTicketClaimed, ticket, actor, events.TicketResponderPayload{
		PreviousResponderID: previous,
		ResponderID:         actor.ID,
	})
	return "Ticket claimed.", nil
}

// Unclaim clears the ticket's responder.
func (s *TicketService) Unclaim(ctx context.Context, actor domain.Actor, key domain.TicketKey) (status string, err error) {
	defer s.record("unclaim", &err)

	ticket, err := s.loadOpen(ctx, key)
	if err != nil {
		return "", err
	}
	if err := authorize(ticket, actor, "unclaim"); err != nil {
		return "", err
	}
	if ticket.ResponderUserID == "" {
		return "", errorutil.NewValidationError("This ticket has not been claimed.", nil)
	}
	if ticket.Locked {
		return "", errorutil.NewValidationError("Unlock the ticket before unclaiming it.", nil)
	}

	msg, err := s.startingMessage(ctx, ticket)
	if err != nil {
		return "", err
	}
	if err := s.renderControls(ctx, msg, UnclaimedControls(key), nil); err != nil {
		return "", err
	}
	previous := ticket.ResponderUserID
	if err := s.tickets.SetResponder(ctx, key, ""); err != nil {
		return "", err
	}
	ticket.ResponderUserID = ""

	s.logTransition("ticket unclaimed", ticket, actor)
	s.publish(ctx, events.EventTicketUnclaimed, ticket, actor, events.TicketResponderPayload{
		PreviousResponderID: previous,
	})
	return "Ticket unclaimed.", nil
}

// Lock freezes the ticket: the owner can no longer send messages and only Unlock is offered.
func (s *TicketService) Lock(ctx context.Context, actor domain.Actor, key domain.TicketKey) (status string, err error) {
	defer s.record("lock", &err)

	ticket, err := s.loadOpen(ctx, key)
	if err != nil {
		return "", err
	}
	if err := authorize(ticket, actor, "lock"); err != nil {
		return "", err
	}
	if ticket.Locked {
		return "", errorutil.NewValidationError("This ticket is already locked.", nil)
	}

	msg, err := s.startingMessage(ctx, ticket)
	if err != nil {
		return "", err
	}
	err = s.platform.SetPermission(ctx, ticket.ChannelID, &discordgo.PermissionOverwrite{
		ID:    ticket.OwnerUserID,
		Type:  discordgo.PermissionOverwriteTypeMember,
		Allow: discordgo.PermissionViewChannel,
		Deny:  discordgo.PermissionSendMessages,
	})
	if err != nil {
		return "", errorutil.NewPlatformUnavailable("There was an error updating the owner's permissions.", err)
	}
	if err := s.renderControls(ctx, msg, LockedControls(key), claimedFooter(actor)); err != nil {
		return "", err
	}

	if err := s.takeOver(ctx, ticket, actor); err != nil {
		return "", err
	}
	if err := s.tickets.SetLocked(ctx, key, true); err != nil {
		return "", err
	}
	ticket.Locked = true

	s.logTransition("ticket locked", ticket, actor)
	s.publish(ctx, events.EventTicketLocked, ticket, actor, nil)
	return "Ticket locked.", nil
}

// Unlock restores the owner's send permission and the claimed controls.
func (s *TicketService) Unlock(ctx context.Context, actor domain.Actor, key domain.TicketKey) (status string, err error) {
	defer s.record("unlock", &err)

	ticket, err := s.loadOpen(ctx, key)
	if err != nil {
		return "", err
	}
	if err := authorize(ticket, actor, "unlock"); err != nil {
		return "", err
	}
	if !ticket.Locked {
		return "", errorutil.NewValidationError("This ticket is not locked.", nil)
	}

	msg, err := s.startingMessage(ctx, ticket)
	if err != nil {
		return "", err
	}
	err = s.platform.SetPermission(ctx, ticket.ChannelID, &discordgo.PermissionOverwrite{
		ID:    ticket.OwnerUserID,
		Type:  discordgo.PermissionOverwriteTypeMember,
		Allow: discordgo.PermissionViewChannel,
	})
	if err != nil {
		return "", errorutil.NewPlatformUnavailable("There was an error updating the owner's permissions.", err)
	}
	if err := s.renderControls(ctx, msg, ClaimedControls(key), nil); err != nil {
		return "", err
	}

	if err := s.tickets.SetLocked(ctx, key, false); err != nil {
		return "", err
	}
	ticket.Locked = false

	s.logTransition("ticket unlocked", ticket, actor)
	s.publish(ctx, events.EventTicketUnlocked, ticket, actor, nil)
	return "Ticket unlocked.", nil
}

// Close archives the ticket's transcript, notifies the owner and deletes the channel.
// A non-empty reason is stored on the ticket and shown in the archive record.
func (s *TicketService) Close(ctx context.Context, actor domain.Actor, key domain.TicketKey, reason string) (status string, err error) {
	defer s.record("close", &err)

	ticket, err := s.loadOpen(ctx, key)
	if err != nil {
		return "", err
	}
	if err := authorize(ticket, actor, "close"); err != nil {
		return "", err
	}
	if err := s.takeOver(ctx, ticket, actor); err != nil {
		return "", err
	}
	reason = strings.TrimSpace(reason)
	if reason != "" {
		if err := s.tickets.SetReason(ctx, key, reason); err != nil {
			return "", err
		}
		ticket.Reason = reason
	}

	entries, err := s.transcripts.Capture(ctx, ticket.ChannelID)
	if err != nil {
		return "", errorutil.NewPlatformUnavailable("There was an error fetching the ticket messages.", err)
	}
	if err := s.archive(ctx, ticket, entries, "<@"+actor.ID+">"); err != nil {
		return "", err
	}

	if _, err := s.platform.SendDirectMessage(ctx, ticket.OwnerUserID, s.archiveRecord(ticket, "<@"+actor.ID+">")); err != nil {
		return "", errorutil.NewPlatformUnavailable("Ticket closed, but the transcript could not be sent to the ticket owner.", err)
	}

	deleted := true
	if err := s.platform.DeleteChannel(ctx, ticket.ChannelID); err != nil {
		deleted = false
		s.logger.Warn("ticket channel not deleted",
			zap.String("channel_id", ticket.ChannelID),
			zap.Error(err))
	}

	s.logTransition("ticket closed", ticket, actor)
	s.publish(ctx, events.EventTicketClosed, ticket, actor, events.TicketClosedPayload{
		Reason:         ticket.Reason,
		ChannelDeleted: deleted,
		Messages:       len(entries),
	})
	return "Ticket closed.", nil
}

// HandleChannelDeleted closes the ticket whose channel was deleted outside the bot. Channels
// that carry no open ticket are ignored.
func (s *TicketService) HandleChannelDeleted(ctx context.Context, channelID string) (err error) {
	ticket, err := s.tickets.FindByChannel(ctx, channelID)
	if errorutil.IsCode(err, errorutil.CodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if ticket.Closed {
		return nil
	}
	defer s.record("delete", &err)

	entries, err := s.transcripts.Capture(ctx, channelID)
	if err != nil {
		s.logger.Warn("transcript unavailable for deleted channel",
			zap.String("channel_id", channelID),
			zap.Error(err))
		entries = []domain.IndividualMessage{}
	}
	if err := s.archive(ctx, ticket, entries, "Deletion"); err != nil {
		return err
	}

	s.logTransition("ticket closed by deletion", ticket, domain.Actor{})
	s.publish(ctx, events.EventTicketClosed, ticket, domain.Actor{}, events.TicketClosedPayload{
		Reason:         ticket.Reason,
		ChannelDeleted: true,
		Messages:       len(entries),
	})
	return nil
}

// Ticket returns the ticket tracked for a channel.
func (s *TicketService) Ticket(ctx context.Context, channelID string) (*domain.ActiveTicket, error) {
	return s.tickets.FindByChannel(ctx, channelID)
}

// archive persists the history, marks the ticket closed and posts the archive record.
func (s *TicketService) archive(ctx context.Context, ticket *domain.ActiveTicket, entries []domain.IndividualMessage, closedBy string) error {
	key := ticket.Key()
	if err := s.tickets.SetMessageHistory(ctx, key, entries); err != nil {
		return err
	}
	ticket.MessageHistory = entries
	s.metrics.RecordTranscript(len(entries))

	def, err := s.guilds.GetTicketType(ctx, ticket.GuildID, ticket.Type)
	if err != nil {
		return err
	}
	if def.ArchiveChannelID == "" {
		return errorutil.NewValidationError("There is no archive channel for this ticket type.", nil)
	}
	archiveChannel, err := s.platform.Channel(ctx, def.ArchiveChannelID)
	if err != nil {
		return errorutil.NewPlatformUnavailable("There was an error fetching the archive channel.", err)
	}

	if err := s.tickets.SetClosed(ctx, key, true); err != nil {
		return err
	}
	ticket.Closed = true

	if _, err := s.platform.SendMessage(ctx, archiveChannel.ID, s.archiveRecord(ticket, closedBy)); err != nil {
		return errorutil.NewPlatformUnavailable("There was an error sending the archive record.", err)
	}
	return nil
}

// archiveRecord builds a fresh message each call since the attachment reader is consumed on send.
func (s *TicketService) archiveRecord(ticket *domain.ActiveTicket, closedBy string) *discordgo.MessageSend {
	claimedBy := "Unclaimed"
	if ticket.ResponderUserID != "" {
		claimedBy = "<@" + ticket.ResponderUserID + ">"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Opened by", Value: "<@" + ticket.OwnerUserID + ">", Inline: true},
		{Name: "Claimed by", Value: claimedBy, Inline: true},
		{Name: "Closed by", Value: closedBy, Inline: true},
		{Name: "Created at", Value: fmt.Sprintf("<t:%d:f>", ticket.CreatedAt.Unix()), Inline: true},
	}
	if ticket.Reason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: ticket.Reason})
	}

	body := transcript.Render(ticket.MessageHistory, s.cfg.TranscriptTimezone)
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{Title: "Ticket Closed", Fields: fields}},
		Files: []*discordgo.File{{
			Name:        transcript.FileName(ticket.ChannelID),
			ContentType: "text/plain",
			Reader:      bytes.NewReader(body),
		}},
	}
}

func (s *TicketService) loadOpen(ctx context.Context, key domain.TicketKey) (*domain.ActiveTicket, error) {
	ticket, err := s.tickets.FindByOwnerAndChannel(ctx, key.ChannelID, key.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if ticket.Closed {
		return nil, errorutil.NewValidationError("This ticket is already closed.", nil)
	}
	return ticket, nil
}

func authorize(ticket *domain.ActiveTicket, actor domain.Actor, verb string) error {
	if ticket.CanAct(actor) {
		return nil
	}
	return errorutil.NewUnauthorized(fmt.Sprintf("You cannot %s another user's ticket.", verb))
}

// takeOver records the actor as responder when an elevated member acts on someone else's claim.
func (s *TicketService) takeOver(ctx context.Context, ticket *domain.ActiveTicket, actor domain.Actor) error {
	if ticket.ResponderUserID == actor.ID {
		return nil
	}
	if err := s.tickets.SetResponder(ctx, ticket.Key(), actor.ID); err != nil {
		return err
	}
	ticket.ResponderUserID = actor.ID
	return nil
}

func (s *TicketService) startingMessage(ctx context.Context, ticket *domain.ActiveTicket) (*discordgo.Message, error) {
	if ticket.StartingMessageID == "" {
		return nil, errorutil.NewPlatformUnavailable("There is no starting message for this ticket.", nil)
	}
	msg, err := s.platform.Message(ctx, ticket.ChannelID, ticket.StartingMessageID)
	if err != nil {
		return nil, errorutil.NewPlatformUnavailable("There was an error fetching the starting message.", err)
	}
	return msg, nil
}

// renderControls swaps the starting message's buttons and sets or clears its embed footer.
func (s *TicketService) renderControls(ctx context.Context, msg *discordgo.Message, components []discordgo.MessageComponent, footer *discordgo.MessageEmbedFooter) error {
	embeds := make([]*discordgo.MessageEmbed, len(msg.Embeds))
	for i, embed := range msg.Embeds {
		copied := *embed
		embeds[i] = &copied
	}
	if len(embeds) > 0 {
		embeds[0].Footer = footer
	}

	edit := discordgo.NewMessageEdit(msg.ChannelID, msg.ID)
	edit.Components = &components
	edit.Embeds = &embeds
	if _, err := s.platform.EditMessage(ctx, edit); err != nil {
		return errorutil.NewPlatformUnavailable("There was an error updating the starting message.", err)
	}
	return nil
}

func claimedFooter(actor domain.Actor) *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{Text: "Claimed by " + actor.Username}
}

func (s *TicketService) ticketOverwrites(guildID, ownerID string, roles []*discordgo.Role) []*discordgo.PermissionOverwrite {
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
	}
	if botID := s.platform.BotUserID(); botID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    botID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		})
	}
	overwrites = append(overwrites, &discordgo.PermissionOverwrite{
		ID:    ownerID,
		Type:  discordgo.PermissionOverwriteTypeMember,
		Allow: discordgo.PermissionViewChannel,
	})
	for _, role := range roles {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    role.ID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel,
		})
	}
	return overwrites
}

func (s *TicketService) channelBase(username string) string {
	prefix := s.cfg.ChannelPrefix
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return prefix + "-" + strings.ToLower(username)
}

// nextChannelName returns base, or base-N where N is one more than the highest suffix among
// channels already named after base. A channel named exactly base, or with a non-numeric
// suffix, counts as suffix 1.
func nextChannelName(base string, channels []*discordgo.Channel) string {
	highest := 0
	for _, ch := range channels {
		suffix := 0
		switch {
		case ch.Name == base:
			suffix = 1
		case strings.HasPrefix(ch.Name, base+"-"):
			suffix = 1
			if n, err := strconv.Atoi(strings.TrimPrefix(ch.Name, base+"-")); err == nil && n > 1 {
				suffix = n
			}
		}
		highest = max(highest, suffix)
	}
	if highest == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, highest+1)
}

func (s *TicketService) record(action string, errp *error) {
	outcome := observability.OutcomeSuccess
	if err := *errp; err != nil {
		outcome = observability.OutcomeFailed
		switch errorutil.ToDomainError(err).Code {
		case errorutil.CodeUnauthorized, errorutil.CodeValidation, errorutil.CodeNotFound, errorutil.CodeAlreadyExists:
			outcome = observability.OutcomeRejected
		}
		s.logger.Debug("ticket action failed", zap.String("action", action), zap.Error(err))
	}
	s.metrics.RecordAction(action, outcome)
}

func (s *TicketService) logTransition(msg string, ticket *domain.ActiveTicket, actor domain.Actor) {
	s.logger.Info(msg,
		zap.String("guild_id", ticket.GuildID),
		zap.String("channel_id", ticket.ChannelID),
		zap.String("owner_id", ticket.OwnerUserID),
		zap.String("actor_id", actor.ID),
		zap.String("type", ticket.Type))
}

func (s *TicketService) publish(ctx context.Context, eventType events.EventType, ticket *domain.ActiveTicket, actor domain.Actor, payload any) {
	if s.dispatcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.dispatcher.Publish(ctx, events.NewEvent(eventType, ticket, actor, payload)); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
