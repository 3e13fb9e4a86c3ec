package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/listener"
	"github.com/spec-kit/servicedesk/internal/service"
)

// StartNotificationWorker subscribes the dispatch flows to ticket events.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher) {
	if notificationService == nil || dispatcher == nil {
		return
	}
	notificationService.RegisterHandlers(dispatcher)
}

// StartChangeFeed runs the ticket change feed listener until ctx is cancelled.
func StartChangeFeed(ctx context.Context, feed *listener.TicketListener, logger *zap.Logger) {
	if feed == nil {
		return
	}
	go func() {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("change feed listener stopped", zap.Error(err))
		}
	}()
}
