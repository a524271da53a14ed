// Package discord adapts gateway events and interactions to the ticket services.
package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const actionTimeout = 30 * time.Second

// Router dispatches interactions to the ticket and guild services.
type Router struct {
	tickets  *service.TicketService
	guilds   *service.GuildService
	platform platform.Client
	prompts  *PromptCollector
	logger   *zap.Logger
}

// RouterDependencies bundles router collaborators.
type RouterDependencies struct {
	TicketService *service.TicketService
	GuildService  *service.GuildService
	Platform      platform.Client
	Prompts       *PromptCollector
	Logger        *zap.Logger
}

// NewRouter builds a router.
func NewRouter(deps RouterDependencies) *Router {
	prompts := deps.Prompts
	if prompts == nil {
		prompts = NewPromptCollector()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		tickets:  deps.TicketService,
		guilds:   deps.GuildService,
		platform: deps.Platform,
		prompts:  prompts,
		logger:   logger,
	}
}

// Register attaches the router's handlers to session.
func (r *Router) Register(session *discordgo.Session) {
	session.AddHandler(r.onInteraction)
	session.AddHandler(r.onMessageCreate)
	session.AddHandler(r.onChannelDelete)
}

func (r *Router) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		r.handleComponent(s, i)
	case discordgo.InteractionModalSubmit:
		r.handleModal(s, i)
	}
}

func (r *Router) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !r.prompts.Deliver(m.ChannelID, m.Author.ID, m.Content) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if err := r.platform.DeleteMessage(ctx, m.ChannelID, m.ID); err != nil {
		r.logger.Debug("prompt reply not deleted", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
}

func (r *Router) onChannelDelete(_ *discordgo.Session, c *discordgo.ChannelDelete) {
	if c.Channel == nil || c.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if err := r.tickets.HandleChannelDeleted(ctx, c.ID); err != nil {
		r.logger.Warn("archiving deleted ticket channel failed", zap.String("channel_id", c.ID), zap.Error(err))
	}
}

func (r *Router) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name == commandPing {
		r.respond(s, i, "Pong")
		return
	}
	if data.Name != commandTicket || len(data.Options) == 0 {
		return
	}

	actor, ok := actorFromInteraction(i.Interaction)
	if !ok {
		r.respond(s, i, "This command can only be used in a server.")
		return
	}
	if !r.acknowledge(s, i) {
		return
	}

	sub := data.Options[0]
	ticketType := optionString(sub.Options, optionTicketType)
	asker := &interactionAsker{session: s, interaction: i.Interaction, prompts: r.prompts, userID: actor.ID}
	ctx := context.Background()

	var status string
	var err error
	switch sub.Name {
	case "add":
		status, err = r.guilds.Add(ctx, actor, i.GuildID, asker)
	case "edit":
		status, err = r.guilds.Edit(ctx, actor, i.GuildID, ticketType, optionString(sub.Options, optionEdit), asker)
	case "remove":
		status, err = r.guilds.Remove(ctx, actor, i.GuildID, ticketType)
	case "list":
		status, err = r.guilds.List(ctx, actor, i.GuildID)
		if err == nil {
			r.editEmbed(s, i, &discordgo.MessageEmbed{Title: "Tickets", Description: status})
			return
		}
	case "post":
		status, err = r.guilds.Post(ctx, actor, i.GuildID, ticketType)
	default:
		return
	}
	r.finish(s, i, status, err)
}

func (r *Router) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	control, ok := service.ParseControlID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}
	actor, ok := actorFromInteraction(i.Interaction)
	if !ok {
		r.respond(s, i, "This button can only be used in a server.")
		return
	}

	if control.Action == service.ControlReasonClose {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: service.ReasonModal(control.Key),
		})
		if err != nil {
			r.logger.Warn("reason modal not shown", zap.Error(err))
		}
		return
	}

	if !r.acknowledge(s, i) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	var status string
	var err error
	switch control.Action {
	case service.ControlSubmit:
		status, err = r.tickets.Submit(ctx, i.GuildID, actor, control.TicketType)
	case service.ControlClaim:
		status, err = r.tickets.Claim(ctx, actor, control.Key)
	case service.ControlUnclaim:
		status, err = r.tickets.Unclaim(ctx, actor, control.Key)
	case service.ControlLock:
		status, err = r.tickets.Lock(ctx, actor, control.Key)
	case service.ControlUnlock:
		status, err = r.tickets.Unlock(ctx, actor, control.Key)
	case service.ControlClose:
		status, err = r.tickets.Close(ctx, actor, control.Key, "")
	}
	r.finish(s, i, status, err)
}

func (r *Router) handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	control, ok := service.ParseControlID(data.CustomID)
	if !ok || control.Action != service.ControlReasonClose {
		return
	}
	actor, ok := actorFromInteraction(i.Interaction)
	if !ok {
		return
	}
	if !r.acknowledge(s, i) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	status, err := r.tickets.Close(ctx, actor, control.Key, modalValue(data.Components, service.ReasonInputID))
	r.finish(s, i, status, err)
}

// actorFromInteraction reports false outside guilds.
func actorFromInteraction(i *discordgo.Interaction) (domain.Actor, bool) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return domain.Actor{}, false
	}
	return domain.Actor{
		ID:       i.Member.User.ID,
		Username: i.Member.User.Username,
		Elevated: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
	}, true
}

func modalValue(components []discordgo.MessageComponent, id string) string {
	for _, c := range components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == id {
				return input.Value
			}
		}
	}
	return ""
}

func (r *Router) acknowledge(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		r.logger.Warn("interaction not acknowledged", zap.String("interaction_id", i.ID), zap.Error(err))
		return false
	}
	return true
}

func (r *Router) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		r.logger.Warn("interaction response failed", zap.String("interaction_id", i.ID), zap.Error(err))
	}
}

func (r *Router) finish(s *discordgo.Session, i *discordgo.InteractionCreate, status string, err error) {
	if err != nil {
		status = errorutil.UserMessage(err)
		if code := errorutil.ToDomainError(err).Code; code == errorutil.CodePersistence || code == errorutil.CodeInternal {
			r.logger.Error("interaction failed", zap.String("interaction_id", i.ID), zap.Error(err))
		}
	}
	if _, editErr := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &status}); editErr != nil {
		r.logger.Debug("interaction reply not updated", zap.String("interaction_id", i.ID), zap.Error(editErr))
	}
}

func (r *Router) editEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		r.logger.Debug("interaction reply not updated", zap.String("interaction_id", i.ID), zap.Error(err))
	}
}

// interactionAsker shows each prompt as the deferred reply and waits for the user's next message.
type interactionAsker struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	prompts     *PromptCollector
	userID      string
}

func (a *interactionAsker) Ask(ctx context.Context, prompt string) (string, error) {
	if _, err := a.session.InteractionResponseEdit(a.interaction, &discordgo.WebhookEdit{Content: &prompt}, discordgo.WithContext(ctx)); err != nil {
		return "", errorutil.NewPlatformUnavailable("There was an error showing the prompt.", err)
	}
	return a.prompts.Wait(ctx, a.interaction.ChannelID, a.userID)
}
