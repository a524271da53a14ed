package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
	"github.com/spec-kit/ticket-bot/pkg/util/snowflake"
)

// DefaultPromptTimeout bounds each interactive prompt.
const DefaultPromptTimeout = 2 * time.Minute

// ClearKeyword unsets an optional field during an edit.
const ClearKeyword = "clear"

// Asker collects the administrator's next message after showing prompt.
// Implementations return ctx.Err() once ctx is done.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

type valueKind int

const (
	kindText valueKind = iota
	kindTextChannel
	kindCategory
	kindRoles
)

type fieldDescriptor struct {
	choice      string
	field       domain.TicketField
	kind        valueKind
	setupPrompt string
	editPrompt  string
	required    bool
	removal     bool
}

// setupSteps are asked in order after the type name when adding a ticket type.
var setupSteps = []fieldDescriptor{
	{field: domain.TicketFieldSubmissionChannelID, kind: kindTextChannel, setupPrompt: "Enter the submission channel (mention or ID):"},
	{field: domain.TicketFieldSubmissionTitle, kind: kindText, setupPrompt: "Enter the submission title:"},
	{field: domain.TicketFieldSubmissionMessage, kind: kindText, setupPrompt: "Enter the submission message:"},
	{field: domain.TicketFieldSubmissionButtonLabel, kind: kindText, setupPrompt: "Enter the submission button label:"},
	{field: domain.TicketFieldCreationCategoryID, kind: kindCategory, setupPrompt: "Enter the creation category (ID):"},
	{field: domain.TicketFieldArchiveChannelID, kind: kindTextChannel, setupPrompt: "Enter the archive channel (mention or ID):"},
	{field: domain.TicketFieldStartingMessage, kind: kindText, setupPrompt: "Enter the starting message:"},
	{field: domain.TicketFieldRoleAccess, kind: kindRoles, setupPrompt: "Mention roles or provide IDs that can access this ticket:"},
}

// editChoices are the values accepted by the edit command, in display order.
var editChoices = []fieldDescriptor{
	{choice: "type", field: domain.TicketFieldType, kind: kindText, editPrompt: "Enter the new ticket type:", required: true},
	{choice: "submission channel", field: domain.TicketFieldSubmissionChannelID, kind: kindTextChannel, editPrompt: "Mention or paste the submission channel ID:"},
	{choice: "submission title", field: domain.TicketFieldSubmissionTitle, kind: kindText, editPrompt: "Enter the new submission title:"},
	{choice: "submission message", field: domain.TicketFieldSubmissionMessage, kind: kindText, editPrompt: "Enter the new submission message:"},
	{choice: "submission button label", field: domain.TicketFieldSubmissionButtonLabel, kind: kindText, editPrompt: "Enter the new button label:"},
	{choice: "creation category", field: domain.TicketFieldCreationCategoryID, kind: kindCategory, editPrompt: "Mention or paste the creation category ID:"},
	{choice: "archive channel", field: domain.TicketFieldArchiveChannelID, kind: kindTextChannel, editPrompt: "Mention or paste the archive channel ID:"},
	{choice: "starting message", field: domain.TicketFieldStartingMessage, kind: kindText, editPrompt: "Enter the new starting message:"},
	{choice: "role access", field: domain.TicketFieldRoleAccess, kind: kindRoles, editPrompt: "Mention roles or provide IDs that can access this ticket:"},
	{choice: "remove role access", field: domain.TicketFieldRoleAccess, kind: kindRoles, editPrompt: "Mention roles or provide IDs to remove from this ticket:", required: true, removal: true},
}

// EditChoices returns the field names accepted by Edit.
func EditChoices() []string {
	choices := make([]string, len(editChoices))
	for i, d := range editChoices {
		choices[i] = d.choice
	}
	return choices
}

// GuildService manages ticket type definitions for administrators.
type GuildService struct {
	guilds        repository.GuildRepository
	platform      platform.Client
	logger        *zap.Logger
	promptTimeout time.Duration
}

// GuildDependencies bundles collaborators for the guild service.
type GuildDependencies struct {
	GuildRepo     repository.GuildRepository
	Platform      platform.Client
	Logger        *zap.Logger
	PromptTimeout time.Duration
}

// NewGuildService constructs the service.
func NewGuildService(deps GuildDependencies) *GuildService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.PromptTimeout
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}
	return &GuildService{
		guilds:        deps.GuildRepo,
		platform:      deps.Platform,
		logger:        logger,
		promptTimeout: timeout,
	}
}

func requireAdmin(actor domain.Actor) error {
	if !actor.Elevated {
		return errorutil.NewUnauthorized("You need the Administrator permission to manage tickets.")
	}
	return nil
}

// Add walks the administrator through defining a new ticket type. Any failed or timed out
// step removes the partially created definition.
func (s *GuildService) Add(ctx context.Context, actor domain.Actor, guildID string, asker Asker) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}

	name, err := s.ask(ctx, asker, "Enter a name for the ticket that you'll use to access the ticket for edits")
	if err != nil {
		if isTimeout(err) {
			return "", errorutil.NewTimeout("Timed out. Ticket setup cancelled.")
		}
		return "", err
	}
	name = strings.TrimSpace(name)
	if err := s.guilds.AddTicketType(ctx, guildID, domain.TicketType{Type: name}); err != nil {
		return "", err
	}

	for i, step := range setupSteps {
		answer, err := s.ask(ctx, asker, fmt.Sprintf("(%d/%d) %s", i+1, len(setupSteps), step.setupPrompt))
		if err == nil {
			err = s.applySetup(ctx, guildID, name, step, answer)
		}
		if err != nil {
			s.rollback(ctx, guildID, name)
			if isTimeout(err) {
				return "", errorutil.NewTimeout("Timed out. Ticket setup cancelled.")
			}
			return "", err
		}
	}

	s.logger.Info("ticket type added", zap.String("guild_id", guildID), zap.String("type", name), zap.String("actor_id", actor.ID))
	return "Ticket added successfully.", nil
}

// Edit prompts once for a new value of the chosen field and applies it.
func (s *GuildService) Edit(ctx context.Context, actor domain.Actor, guildID, ticketType, choice string, asker Asker) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	idx := slices.IndexFunc(editChoices, func(d fieldDescriptor) bool {
		return d.choice == strings.ToLower(strings.TrimSpace(choice))
	})
	if idx < 0 {
		return "", errorutil.NewValidationError("Invalid field selected for editing.", nil)
	}
	desc := editChoices[idx]
	if _, err := s.guilds.GetTicketType(ctx, guildID, ticketType); err != nil {
		return "", err
	}

	prompt := desc.editPrompt
	if !desc.required {
		prompt += fmt.Sprintf(" (reply %q to unset)", ClearKeyword)
	}
	answer, err := s.ask(ctx, asker, prompt)
	if err != nil {
		if isTimeout(err) {
			return "", errorutil.NewTimeout("Timed out. Edit cancelled.")
		}
		return "", err
	}

	status, err := s.applyEdit(ctx, guildID, ticketType, desc, answer)
	if err != nil {
		return "", err
	}
	s.logger.Info("ticket type edited",
		zap.String("guild_id", guildID),
		zap.String("type", ticketType),
		zap.String("field", string(desc.field)),
		zap.String("actor_id", actor.ID))
	return status, nil
}

// Remove deletes a ticket type definition.
func (s *GuildService) Remove(ctx context.Context, actor domain.Actor, guildID, ticketType string) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	if err := s.guilds.RemoveTicketType(ctx, guildID, ticketType); err != nil {
		return "", err
	}
	s.logger.Info("ticket type removed", zap.String("guild_id", guildID), zap.String("type", ticketType), zap.String("actor_id", actor.ID))
	return "Ticket removed successfully.", nil
}

// List describes every ticket type with its submission channel, one per line.
func (s *GuildService) List(ctx context.Context, actor domain.Actor, guildID string) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	types, err := s.guilds.ListTicketTypes(ctx, guildID)
	if err != nil {
		return "", err
	}
	if len(types) == 0 {
		return "No tickets found.", nil
	}
	lines := make([]string, len(types))
	for i, def := range types {
		where := "no submission channel"
		if def.SubmissionChannelID != "" {
			where = "<#" + def.SubmissionChannelID + ">"
		}
		lines[i] = fmt.Sprintf("**%s** - %s", def.Type, where)
	}
	return strings.Join(lines, "\n"), nil
}

// TicketTypes returns the guild's definitions.
func (s *GuildService) TicketTypes(ctx context.Context, guildID string) ([]domain.TicketType, error) {
	return s.guilds.ListTicketTypes(ctx, guildID)
}

// Post publishes the submission prompt with its open-ticket button to the submission channel.
func (s *GuildService) Post(ctx context.Context, actor domain.Actor, guildID, ticketType string) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	def, err := s.guilds.GetTicketType(ctx, guildID, ticketType)
	if err != nil {
		return "", err
	}
	if def.SubmissionChannelID == "" {
		return "", errorutil.NewNotFound("Ticket channel not found.")
	}
	channel, err := s.platform.Channel(ctx, def.SubmissionChannelID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return "", errorutil.NewNotFound("Ticket channel not found.")
		}
		return "", errorutil.NewPlatformUnavailable("There was an error fetching the ticket channel.", err)
	}
	switch {
	case def.SubmissionTitle == "":
		return "", errorutil.NewValidationError("Ticket title not found.", nil)
	case def.SubmissionMessage == "":
		return "", errorutil.NewValidationError("Ticket message not found.", nil)
	case def.SubmissionButtonLabel == "":
		return "", errorutil.NewValidationError("Ticket button label not found.", nil)
	}

	_, err = s.platform.SendMessage(ctx, channel.ID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{{Title: def.SubmissionTitle, Description: def.SubmissionMessage}},
		Components: SubmissionControls(def),
	})
	if err != nil {
		return "", errorutil.NewPlatformUnavailable("Ticket channel not sendable.", err)
	}
	return fmt.Sprintf("Ticket posted in <#%s>.", channel.ID), nil
}

func (s *GuildService) applySetup(ctx context.Context, guildID, ticketType string, desc fieldDescriptor, answer string) error {
	value, err := s.resolve(ctx, guildID, desc, answer)
	if err != nil {
		return err
	}
	return s.guilds.SetField(ctx, guildID, ticketType, desc.field, value)
}

func (s *GuildService) applyEdit(ctx context.Context, guildID, ticketType string, desc fieldDescriptor, answer string) (string, error) {
	if !desc.required && strings.EqualFold(strings.TrimSpace(answer), ClearKeyword) {
		if err := s.guilds.UnsetField(ctx, guildID, ticketType, desc.field); err != nil {
			return "", err
		}
		return fmt.Sprintf("Cleared %s.", desc.choice), nil
	}

	if desc.removal {
		return s.removeRoles(ctx, guildID, ticketType, answer)
	}

	value, err := s.resolve(ctx, guildID, desc, answer)
	if err != nil {
		return "", err
	}
	if desc.kind != kindRoles {
		if err := s.guilds.SetField(ctx, guildID, ticketType, desc.field, value); err != nil {
			return "", err
		}
		return fmt.Sprintf("Updated %s.", desc.choice), nil
	}

	var firstErr error
	added := 0
	for _, roleID := range value.([]string) {
		err := s.guilds.AppendToSetField(ctx, guildID, ticketType, desc.field, roleID)
		switch {
		case err == nil:
			added++
		case errorutil.IsCode(err, errorutil.CodeDuplicateValue):
			if firstErr == nil {
				firstErr = err
			}
		default:
			return "", err
		}
	}
	if added == 0 {
		return "", firstErr
	}
	return "Roles updated successfully.", nil
}

func (s *GuildService) removeRoles(ctx context.Context, guildID, ticketType, answer string) (string, error) {
	ids := snowflake.ParseRoleIDs(answer)
	if len(ids) == 0 {
		return "", errorutil.NewValidationError("No valid roles found in this server.", nil)
	}
	var firstErr error
	removed := 0
	for _, roleID := range ids {
		err := s.guilds.RemoveFromSetField(ctx, guildID, ticketType, domain.TicketFieldRoleAccess, roleID)
		switch {
		case err == nil:
			removed++
		case errorutil.IsCode(err, errorutil.CodeNotFound):
			if firstErr == nil {
				firstErr = err
			}
		default:
			return "", err
		}
	}
	if removed == 0 {
		return "", firstErr
	}
	return "Roles updated successfully.", nil
}

// resolve validates an answer against the platform and returns the value to store.
func (s *GuildService) resolve(ctx context.Context, guildID string, desc fieldDescriptor, answer string) (any, error) {
	answer = strings.TrimSpace(answer)
	switch desc.kind {
	case kindTextChannel:
		return s.resolveChannel(ctx, guildID, answer, discordgo.ChannelTypeGuildText)
	case kindCategory:
		return s.resolveChannel(ctx, guildID, answer, discordgo.ChannelTypeGuildCategory)
	case kindRoles:
		return s.resolveRoles(ctx, guildID, answer)
	default:
		if answer == "" {
			return nil, errorutil.NewValidationError("The value cannot be empty.", nil)
		}
		return answer, nil
	}
}

func (s *GuildService) resolveChannel(ctx context.Context, guildID, answer string, want discordgo.ChannelType) (string, error) {
	noun := "channel"
	if want == discordgo.ChannelTypeGuildCategory {
		noun = "category"
	}
	id, ok := snowflake.Parse(answer)
	if !ok {
		return "", errorutil.NewValidationError(fmt.Sprintf("Invalid %s ID.", noun), nil)
	}
	channel, err := s.platform.Channel(ctx, id)
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		return "", errorutil.NewPlatformUnavailable(fmt.Sprintf("There was an error fetching the %s.", noun), err)
	}
	if err != nil || channel.GuildID != guildID {
		return "", errorutil.NewNotFound(fmt.Sprintf("%s not found in this server.", capitalize(noun)))
	}
	if channel.Type != want {
		if want == discordgo.ChannelTypeGuildCategory {
			return "", errorutil.NewValidationError("Channel is not a category.", nil)
		}
		return "", errorutil.NewValidationError("Channel is not a text channel.", nil)
	}
	return id, nil
}

func (s *GuildService) resolveRoles(ctx context.Context, guildID, answer string) ([]string, error) {
	var roles []string
	for _, id := range snowflake.ParseRoleIDs(answer) {
		if slices.Contains(roles, id) {
			continue
		}
		if _, err := s.platform.Role(ctx, guildID, id); err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				continue
			}
			return nil, errorutil.NewPlatformUnavailable("There was an error fetching a role.", err)
		}
		roles = append(roles, id)
	}
	if len(roles) == 0 {
		return nil, errorutil.NewValidationError("No valid roles found in this server.", nil)
	}
	return roles, nil
}

func (s *GuildService) ask(ctx context.Context, asker Asker, prompt string) (string, error) {
	askCtx, cancel := context.WithTimeout(ctx, s.promptTimeout)
	defer cancel()
	return asker.Ask(askCtx, prompt)
}

func (s *GuildService) rollback(ctx context.Context, guildID, ticketType string) {
	if err := s.guilds.RemoveTicketType(context.WithoutCancel(ctx), guildID, ticketType); err != nil {
		s.logger.Error("ticket setup rollback failed",
			zap.String("guild_id", guildID),
			zap.String("type", ticketType),
			zap.Error(err))
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errorutil.IsCode(err, errorutil.CodeTimeout)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
