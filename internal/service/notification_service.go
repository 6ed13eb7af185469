package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/idea-service/internal/events"
)

// Notifier accepts events for asynchronous delivery.
type Notifier interface {
	Enqueue(event events.Event) bool
}

// NotificationService forwards domain events to an outbound notifier.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service. notifier may be nil, in which
// case events are only logged.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	n.logger.Info("domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("idea_id", event.IdeaID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))

	if n.notifier == nil {
		return nil
	}
	n.notifier.Enqueue(event)
	return nil
}
