package worker

import (
	"github.com/rsams/attendance-service/internal/events"
	"github.com/rsams/attendance-service/internal/service"
)

// StartEventWorkers registers the audit log and, when configured, the broker
// forwarder as account event subscribers.
func StartEventWorkers(dispatcher events.Dispatcher, audit *service.AuditService, publisher *events.AMQPPublisher) {
	if audit != nil {
		audit.RegisterHandlers()
	}
	if publisher != nil && dispatcher != nil {
		publisher.Attach(dispatcher)
	}
}
