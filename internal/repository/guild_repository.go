package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
	"github.com/spec-kit/ticket-bot/pkg/util/snowflake"
)

// GuildRepository persists per-guild ticket type definitions.
//
// Field mutations resolve the ticket type to its position in the guild's list and then
// update "tickets.<index>.<field>". The index is read immediately before the write but
// nothing prevents the list from changing in between; a concurrent removal makes the
// write land on whatever definition now occupies that position.
type GuildRepository interface {
	GetOrCreate(ctx context.Context, guildID string) (*domain.GuildConfig, error)
	GetTicketType(ctx context.Context, guildID, ticketType string) (*domain.TicketType, error)
	ListTicketTypes(ctx context.Context, guildID string) ([]domain.TicketType, error)
	AddTicketType(ctx context.Context, guildID string, def domain.TicketType) error
	RemoveTicketType(ctx context.Context, guildID, ticketType string) error
	SetField(ctx context.Context, guildID, ticketType string, field domain.TicketField, value any) error
	UnsetField(ctx context.Context, guildID, ticketType string, field domain.TicketField) error
	AppendToSetField(ctx context.Context, guildID, ticketType string, field domain.TicketField, value string) error
	RemoveFromSetField(ctx context.Context, guildID, ticketType string, field domain.TicketField, value string) error
}

type guildRepository struct {
	docs persistence.Documents
}

// NewGuildRepository instantiates repository.
func NewGuildRepository(docs persistence.Documents) GuildRepository {
	return &guildRepository{docs: docs}
}

var snowflakeFields = map[domain.TicketField]bool{
	domain.TicketFieldSubmissionChannelID: true,
	domain.TicketFieldCreationCategoryID:  true,
	domain.TicketFieldArchiveChannelID:    true,
	domain.TicketFieldRoleAccess:          true,
}

func (r *guildRepository) GetOrCreate(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	var guild domain.GuildConfig
	err := r.docs.Get(ctx, persistence.CollectionGuilds, guildID, &guild)
	if err == nil {
		return &guild, nil
	}
	if !errors.Is(err, persistence.ErrNoDocument) {
		return nil, errorutil.NewPersistenceError("There was an error fetching the guild configuration.", err)
	}

	guild = domain.GuildConfig{ID: guildID, Tickets: []domain.TicketType{}}
	if err := r.docs.Insert(ctx, persistence.CollectionGuilds, guildID, guild); err != nil {
		if errors.Is(err, persistence.ErrDuplicateKey) {
			return r.GetOrCreate(ctx, guildID)
		}
		return nil, errorutil.NewPersistenceError("There was an error creating the guild configuration.", err)
	}
	return &guild, nil
}

func (r *guildRepository) GetTicketType(ctx context.Context, guildID, ticketType string) (*domain.TicketType, error) {
	guild, err := r.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	def := guild.Ticket(ticketType)
	if def == nil {
		return nil, errorutil.NewNotFound("Ticket not found.")
	}
	return def, nil
}

func (r *guildRepository) ListTicketTypes(ctx context.Context, guildID string) ([]domain.TicketType, error) {
	guild, err := r.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return guild.Tickets, nil
}

func (r *guildRepository) AddTicketType(ctx context.Context, guildID string, def domain.TicketType) error {
	def.Type = strings.TrimSpace(def.Type)
	if def.Type == "" {
		return errorutil.NewValidationError("The ticket type cannot be empty.", nil)
	}
	if err := validateDefinition(def); err != nil {
		return err
	}

	guild, err := r.GetOrCreate(ctx, guildID)
	if err != nil {
		return err
	}
	if guild.TicketIndex(def.Type) >= 0 {
		return errorutil.NewDuplicateType("A ticket with that name already exists.")
	}

	guild.Tickets = append(guild.Tickets, def)
	if err := r.docs.Upsert(ctx, persistence.CollectionGuilds, guildID, guild); err != nil {
		return errorutil.NewPersistenceError("There was an error adding the ticket.", err)
	}
	return nil
}

func (r *guildRepository) RemoveTicketType(ctx context.Context, guildID, ticketType string) error {
	guild, err := r.GetOrCreate(ctx, guildID)
	if err != nil {
		return err
	}
	idx := guild.TicketIndex(ticketType)
	if idx < 0 {
		return errorutil.NewNotFound("Ticket not found.")
	}

	guild.Tickets = slices.Delete(guild.Tickets, idx, idx+1)
	if err := r.docs.Upsert(ctx, persistence.CollectionGuilds, guildID, guild); err != nil {
		return errorutil.NewPersistenceError("There was an error removing the ticket.", err)
	}
	return nil
}

func (r *guildRepository) SetField(ctx context.Context, guildID, ticketType string, field domain.TicketField, value any) error {
	if err := validateFieldValue(field, value); err != nil {
		return err
	}
	if field == domain.TicketFieldType {
		name, _ := value.(string)
		value = strings.TrimSpace(name)
		if value == "" {
			return errorutil.NewValidationError("The ticket type cannot be empty.", nil)
		}
	}

	guild, err := r.GetOrCreate(ctx, guildID)
	if err != nil {
		return err
	}
	if field == domain.TicketFieldType && value != ticketType && guild.TicketIndex(value.(string)) >= 0 {
		return errorutil.NewDuplicateType("A ticket with that name already exists.")
	}
	idx := guild.TicketIndex(ticketType)
	if idx < 0 {
		return errorutil.NewNotFound("Ticket not found.")
	}

	if err := r.docs.Set(ctx, persistence.CollectionGuilds, guildID, fieldPath(idx, field), value); err != nil {
		return r.mutationError(err, field)
	}
	return nil
}

func (r *guildRepository) UnsetField(ctx context.Context, guildID, ticketType string, field domain.TicketField) error {
	if field == domain.TicketFieldType {
		return errorutil.NewValidationError("The ticket type cannot be cleared.", nil)
	}
	idx, err := r.resolveIndex(ctx, guildID, ticketType)
	if err != nil {
		return err
	}
	if err := r.docs.Unset(ctx, persistence.CollectionGuilds, guildID, fieldPath(idx, field)); err != nil {
		return r.mutationError(err, field)
	}
	return nil
}

func (r *guildRepository) AppendToSetField(ctx context.Context, guildID, ticketType string, field domain.TicketField, value string) error {
	if err := validateFieldValue(field, value); err != nil {
		return err
	}
	guild, err := r.GetOrCreate(ctx, guildID)
	if err != nil {
		return err
	}
	idx := guild.TicketIndex(ticketType)
	if idx < 0 {
		return errorutil.NewNotFound("Ticket not found.")
	}
	if slices.Contains(setFieldValues(&guild.Tickets[idx], field), value) {
		return errorutil.NewDuplicateValue(fmt.Sprintf("%s is already in the list.", value))
	}

	if err := r.docs.Push(ctx, persistence.CollectionGuilds, guildID, fieldPath(idx, field), value); err != nil {
		return r.mutationError(err, field)
	}
	return nil
}

func (r *guildRepository) RemoveFromSetField(ctx context.Context, guildID, ticketType string, field domain.TicketField, value string) error {
	guild, err := r.GetOrCreate(ctx, guildID)
	if err != nil {
		return err
	}
	idx := guild.TicketIndex(ticketType)
	if idx < 0 {
		return errorutil.NewNotFound("Ticket not found.")
	}
	if !slices.Contains(setFieldValues(&guild.Tickets[idx], field), value) {
		return errorutil.NewNotFound(fmt.Sprintf("%s is not in the list.", value))
	}

	if err := r.docs.Pull(ctx, persistence.CollectionGuilds, guildID, fieldPath(idx, field), value); err != nil {
		return r.mutationError(err, field)
	}
	return nil
}

func (r *guildRepository) resolveIndex(ctx context.Context, guildID, ticketType string) (int, error) {
	guild, err := r.GetOrCreate(ctx, guildID)
	if err != nil {
		return -1, err
	}
	idx := guild.TicketIndex(ticketType)
	if idx < 0 {
		return -1, errorutil.NewNotFound("Ticket not found.")
	}
	return idx, nil
}

func (r *guildRepository) mutationError(err error, field domain.TicketField) error {
	if errors.Is(err, persistence.ErrNoDocument) {
		return errorutil.NewNotFound("Ticket not found.")
	}
	return errorutil.NewPersistenceError(fmt.Sprintf("There was an error updating %s.", field), err)
}

func fieldPath(idx int, field domain.TicketField) string {
	return fmt.Sprintf("tickets.%d.%s", idx, field)
}

func setFieldValues(def *domain.TicketType, field domain.TicketField) []string {
	if field == domain.TicketFieldRoleAccess {
		return def.RoleAccess
	}
	return nil
}

func validateFieldValue(field domain.TicketField, value any) error {
	if !snowflakeFields[field] {
		return nil
	}
	switch v := value.(type) {
	case string:
		if !snowflake.Valid(v) {
			return errorutil.NewValidationError(fmt.Sprintf("%q is not a valid ID.", v), nil)
		}
	case []string:
		for _, id := range v {
			if !snowflake.Valid(id) {
				return errorutil.NewValidationError(fmt.Sprintf("%q is not a valid ID.", id), nil)
			}
		}
	default:
		return errorutil.NewValidationError(fmt.Sprintf("Invalid value for %s.", field), nil)
	}
	return nil
}

func validateDefinition(def domain.TicketType) error {
	ids := map[domain.TicketField]string{
		domain.TicketFieldSubmissionChannelID: def.SubmissionChannelID,
		domain.TicketFieldCreationCategoryID:  def.CreationCategoryID,
		domain.TicketFieldArchiveChannelID:    def.ArchiveChannelID,
	}
	for field, id := range ids {
		if id == "" {
			continue
		}
		if err := validateFieldValue(field, id); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(def.RoleAccess))
	for _, roleID := range def.RoleAccess {
		if err := validateFieldValue(domain.TicketFieldRoleAccess, roleID); err != nil {
			return err
		}
		if seen[roleID] {
			return errorutil.NewDuplicateValue(fmt.Sprintf("%s is already in the list.", roleID))
		}
		seen[roleID] = true
	}
	return nil
}
