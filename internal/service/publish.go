package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rsams/attendance-service/internal/events"
)

func publish(ctx context.Context, dispatcher events.Dispatcher, eventType events.EventType, accountID string, actor events.Actor, payload interface{}) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}
