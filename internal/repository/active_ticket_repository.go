package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// ActiveTicketRepository persists ticket lifecycle records keyed by (channel, owner).
type ActiveTicketRepository interface {
	Create(ctx context.Context, ticket *domain.ActiveTicket) error
	FindByOwnerAndChannel(ctx context.Context, channelID, ownerUserID string) (*domain.ActiveTicket, error)
	FindByChannel(ctx context.Context, channelID string) (*domain.ActiveTicket, error)
	SetResponder(ctx context.Context, key domain.TicketKey, userID string) error
	SetStartingMessageID(ctx context.Context, key domain.TicketKey, messageID string) error
	SetLocked(ctx context.Context, key domain.TicketKey, locked bool) error
	SetClosed(ctx context.Context, key domain.TicketKey, closed bool) error
	SetReason(ctx context.Context, key domain.TicketKey, reason string) error
	SetMessageHistory(ctx context.Context, key domain.TicketKey, messages []domain.IndividualMessage) error
	Remove(ctx context.Context, key domain.TicketKey) error
}

type activeTicketRepository struct {
	docs persistence.Documents
}

// NewActiveTicketRepository instantiates repository.
func NewActiveTicketRepository(docs persistence.Documents) ActiveTicketRepository {
	return &activeTicketRepository{docs: docs}
}

const errNoActiveTicket = "There is no active ticket for this channel."

func (r *activeTicketRepository) Create(ctx context.Context, ticket *domain.ActiveTicket) error {
	key := ticket.Key()
	if _, err := r.FindByOwnerAndChannel(ctx, key.ChannelID, key.OwnerUserID); err == nil {
		return errorutil.NewAlreadyExists("There is already an active ticket for this channel.")
	} else if !errorutil.IsCode(err, errorutil.CodeNotFound) {
		return err
	}

	if ticket.MessageHistory == nil {
		ticket.MessageHistory = []domain.IndividualMessage{}
	}
	if err := r.docs.Insert(ctx, persistence.CollectionTickets, key.String(), ticket); err != nil {
		if errors.Is(err, persistence.ErrDuplicateKey) {
			return errorutil.NewAlreadyExists("There is already an active ticket for this channel.")
		}
		return errorutil.NewPersistenceError("There was an error adding the active ticket.", err)
	}
	return nil
}

func (r *activeTicketRepository) FindByOwnerAndChannel(ctx context.Context, channelID, ownerUserID string) (*domain.ActiveTicket, error) {
	key := domain.TicketKey{ChannelID: channelID, OwnerUserID: ownerUserID}
	var ticket domain.ActiveTicket
	if err := r.docs.Get(ctx, persistence.CollectionTickets, key.String(), &ticket); err != nil {
		return nil, lookupError(err)
	}
	return &ticket, nil
}

func (r *activeTicketRepository) FindByChannel(ctx context.Context, channelID string) (*domain.ActiveTicket, error) {
	var ticket domain.ActiveTicket
	if err := r.docs.FindOne(ctx, persistence.CollectionTickets, "channelId", channelID, &ticket); err != nil {
		return nil, lookupError(err)
	}
	return &ticket, nil
}

// SetResponder claims the ticket for userID; an empty userID clears the responder.
func (r *activeTicketRepository) SetResponder(ctx context.Context, key domain.TicketKey, userID string) error {
	if userID == "" {
		return r.unset(ctx, key, "responderUserId", "There was an error removing the responder user.")
	}
	return r.set(ctx, key, "responderUserId", userID, "There was an error setting the responder user.")
}

func (r *activeTicketRepository) SetStartingMessageID(ctx context.Context, key domain.TicketKey, messageID string) error {
	return r.set(ctx, key, "startingMessageId", messageID, "There was an error setting the starting message ID.")
}

func (r *activeTicketRepository) SetLocked(ctx context.Context, key domain.TicketKey, locked bool) error {
	return r.set(ctx, key, "locked", locked, "There was an error setting the locked status.")
}

func (r *activeTicketRepository) SetClosed(ctx context.Context, key domain.TicketKey, closed bool) error {
	return r.set(ctx, key, "closed", closed, "There was an error setting the closed status.")
}

func (r *activeTicketRepository) SetReason(ctx context.Context, key domain.TicketKey, reason string) error {
	if reason == "" {
		return r.unset(ctx, key, "reason", "There was an error removing the close reason.")
	}
	return r.set(ctx, key, "reason", reason, "There was an error setting the close reason.")
}

func (r *activeTicketRepository) SetMessageHistory(ctx context.Context, key domain.TicketKey, messages []domain.IndividualMessage) error {
	if messages == nil {
		messages = []domain.IndividualMessage{}
	}
	return r.set(ctx, key, "messageHistory", messages, "There was an error setting the message history.")
}

func (r *activeTicketRepository) Remove(ctx context.Context, key domain.TicketKey) error {
	if err := r.docs.Delete(ctx, persistence.CollectionTickets, key.String()); err != nil {
		if errors.Is(err, persistence.ErrNoDocument) {
			return errorutil.NewNotFound(errNoActiveTicket)
		}
		return errorutil.NewPersistenceError("There was an error removing the active ticket.", err)
	}
	return nil
}

func (r *activeTicketRepository) set(ctx context.Context, key domain.TicketKey, path string, value any, failure string) error {
	if err := r.docs.Set(ctx, persistence.CollectionTickets, key.String(), path, value); err != nil {
		return mutationError(err, failure)
	}
	return nil
}

func (r *activeTicketRepository) unset(ctx context.Context, key domain.TicketKey, path, failure string) error {
	if err := r.docs.Unset(ctx, persistence.CollectionTickets, key.String(), path); err != nil {
		return mutationError(err, failure)
	}
	return nil
}

func lookupError(err error) error {
	if errors.Is(err, persistence.ErrNoDocument) {
		return errorutil.NewNotFound(errNoActiveTicket)
	}
	return errorutil.NewPersistenceError("There was an error fetching the active ticket.", err)
}

func mutationError(err error, failure string) error {
	if errors.Is(err, persistence.ErrNoDocument) {
		return errorutil.NewNotFound(errNoActiveTicket)
	}
	return errorutil.NewPersistenceError(failure, err)
}
