package worker

import (
	"github.com/spec-kit/ticket-bot/internal/service"
)

// StartNotificationWorker registers lifecycle event handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
