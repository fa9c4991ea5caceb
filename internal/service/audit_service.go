package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/rsams/attendance-service/internal/events"
)

// AuditService writes every account event to the structured log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, t := range events.AllEventTypes {
		a.dispatcher.Subscribe(t, a.handle)
	}
}

func (a *AuditService) handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("account_id", event.AccountID),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.Actor.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.Actor.ActorID), zap.String("actor_role", string(event.Actor.Role)))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}

	switch event.Type {
	case events.EventAccountLocked, events.EventAccountDeactivated:
		a.logger.Warn("audit", fields...)
	default:
		a.logger.Info("audit", fields...)
	}
	return nil
}
