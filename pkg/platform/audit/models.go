// Package audit defines the storefront's audit trail: what happened, to which
// account, from where.
package audit

import (
	"context"
	"time"

	id "luwei/pkg/domain"
)

// EventCategory classifies events for routing and retention.
type EventCategory string

const (
	// CategorySecurity covers sign-in outcomes, revocations and denied access.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine activity such as orders and menu edits.
	CategoryOperations EventCategory = "operations"
)

// EventType names an audited action.
type EventType string

const (
	EventLoginSucceeded     EventType = "login_succeeded"
	EventLoginFailed        EventType = "login_failed"
	EventAccountCreated     EventType = "account_created"
	EventSessionCreated     EventType = "session_created"
	EventSessionRevoked     EventType = "session_revoked"
	EventRedirectDenied     EventType = "redirect_denied"
	EventOrderCreated       EventType = "order_created"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventProductsUpserted   EventType = "products_upserted"
)

var eventCategories = map[EventType]EventCategory{
	EventLoginSucceeded: CategorySecurity,
	EventLoginFailed:    CategorySecurity,
	EventSessionRevoked: CategorySecurity,
	EventRedirectDenied: CategorySecurity,
}

// Category returns the category of e. Unlisted events are operational.
func (e EventType) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from domain logic. It stays transport-agnostic so sinks can
// fan out.
type Event struct {
	Type      EventType         `json:"type"`
	Category  EventCategory     `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	AccountID id.AccountID      `json:"account_id"`
	Subject   string            `json:"subject,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Sink persists or forwards events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
