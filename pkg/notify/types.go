package notify

import (
	"fmt"
	"time"
)

// EventKind identifies what triggered a notification.
type EventKind string

const (
	KindLowBalance      EventKind = "low_balance"
	KindRenewalReminder EventKind = "renewal_reminder"
)

// DeliveryStatus is the terminal state of a dispatch attempt.
type DeliveryStatus string

const (
	StatusSent       DeliveryStatus = "sent"
	StatusFailed     DeliveryStatus = "failed"
	StatusSuppressed DeliveryStatus = "suppressed" // dry-run mode
)

// Event carries the data a renderer needs to shape an outgoing alert.
// Subject is the stable identity of the thing being alerted on (project
// id or subscription name).
type Event struct {
	Kind    EventKind
	Subject string

	// Low-balance fields.
	ProjectName string
	Provider    string
	MeasureKind string // "balance" or "credits"
	Value       float64
	Threshold   float64

	// Renewal-reminder fields.
	SubscriptionName string
	RenewalDay       int
	DaysUntilRenewal int
	NextRenewal      time.Time
	Amount           float64

	Currency string
}

// Text renders the plain human-readable message for the event, used by
// the text-style renderers and recorded on the NotificationEvent.
func (e Event) Text() string {
	switch e.Kind {
	case KindRenewalReminder:
		due := fmt.Sprintf("in %d days", e.DaysUntilRenewal)
		switch e.DaysUntilRenewal {
		case 0:
			due = "today"
		case 1:
			due = "tomorrow"
		}
		return fmt.Sprintf("Subscription %q renews %s (%s), amount: %s %.2f",
			e.SubscriptionName, due, e.NextRenewal.Format("2006-01-02"), e.Currency, e.Amount)
	default:
		return fmt.Sprintf("Project %q %s is low: current %.2f %s, threshold %.2f",
			e.ProjectName, e.MeasureKind, e.Value, e.Currency, e.Threshold)
	}
}

// NotificationEvent records the outcome of one dispatch, successful or
// not, for the history sink.
type NotificationEvent struct {
	ID       string         `json:"id"`
	Kind     EventKind      `json:"kind"`
	Subject  string         `json:"subject"`
	Message  string         `json:"message"`
	Status   DeliveryStatus `json:"status"`
	Attempts int            `json:"attempts"`
	Error    string         `json:"error,omitempty"`
	SentAt   time.Time      `json:"sent_at"`
}

// Renderer shapes an Event into the payload a particular webhook
// convention expects. Renderers must be safe for concurrent use.
type Renderer interface {
	// Name returns the renderer identifier (e.g. "feishu", "custom").
	Name() string

	// Render produces the JSON request body for the event.
	Render(event Event) ([]byte, error)
}
