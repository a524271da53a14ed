package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
)

// NotificationService logs lifecycle events and forwards them to the event broker.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  *events.RedisPublisher
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil publisher disables forwarding.
func NewNotificationService(dispatcher events.Dispatcher, publisher *events.RedisPublisher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.LifecycleEvents {
		n.dispatcher.Subscribe(eventType, n.handleLifecycleEvent)
	}
}

func (n *NotificationService) handleLifecycleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("guild_id", event.GuildID),
		zap.String("channel_id", event.ChannelID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))

	if n.publisher == nil {
		return nil
	}
	if err := n.publisher.Forward(ctx, event); err != nil {
		n.logger.Warn("event forwarding failed", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	return nil
}
