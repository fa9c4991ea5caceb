package events

import (
	"time"

	"github.com/rsams/attendance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered      EventType = "account.registered"
	EventAccountLocked          EventType = "account.locked"
	EventAccountPasswordChanged EventType = "account.password_changed"
	EventAccountDeactivated     EventType = "account.deactivated"
	EventAccountUnlocked        EventType = "account.unlocked"
)

// AllEventTypes lists every account event, in a stable order.
var AllEventTypes = []EventType{
	EventAccountRegistered,
	EventAccountLocked,
	EventAccountPasswordChanged,
	EventAccountDeactivated,
	EventAccountUnlocked,
}

// Actor identifies who triggered an event. ActorID is empty for anonymous
// flows such as self registration or a failed login.
type Actor struct {
	ActorID string      `json:"actor_id,omitempty"`
	Role    domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// AccountRegisteredPayload payload.
type AccountRegisteredPayload struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	// Source is "self" for /auth/register and "admin" for admin creation.
	Source string `json:"source"`
}

// AccountLockedPayload payload.
type AccountLockedPayload struct {
	FailedLoginCount int       `json:"failed_login_count"`
	LockedUntil      time.Time `json:"locked_until"`
}
