package storage

import (
	"context"
	"time"

	"github.com/itswl/balance-alert/pkg/notify"
)

// BalanceRecord is one persisted check outcome for a project.
type BalanceRecord struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Project   string    `json:"project"`
	Provider  string    `json:"provider"`
	Success   bool      `json:"success"`
	Value     float64   `json:"value"`
	Currency  string    `json:"currency,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscriptionSnapshot is the renewal outlook for one subscription at
// one point in time.
type SubscriptionSnapshot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DaysUntil   int       `json:"days_until_renewal"`
	NextRenewal time.Time `json:"next_renewal"`
	NeedAlert   bool      `json:"need_alert"`
	Timestamp   time.Time `json:"timestamp"`
}

// RecordFilter narrows balance record queries.
type RecordFilter struct {
	ProjectID string
	Provider  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// Store is the durable history sink. Writes are best-effort from the
// monitoring engine's perspective: callers log failures and move on.
type Store interface {
	// SaveBalanceRecord persists one check outcome.
	SaveBalanceRecord(ctx context.Context, record *BalanceRecord) error

	// QueryBalanceRecords retrieves check history, newest first.
	QueryBalanceRecords(ctx context.Context, filter RecordFilter) ([]BalanceRecord, error)

	// SaveAlertRecord persists one notification dispatch outcome.
	SaveAlertRecord(ctx context.Context, event *notify.NotificationEvent) error

	// ListAlertRecords returns dispatch history, newest first.
	ListAlertRecords(ctx context.Context, limit int) ([]notify.NotificationEvent, error)

	// SaveSubscriptionSnapshot persists one renewal outlook.
	SaveSubscriptionSnapshot(ctx context.Context, snap *SubscriptionSnapshot) error

	// LatestSubscriptionSnapshots returns the most recent snapshot per
	// subscription.
	LatestSubscriptionSnapshots(ctx context.Context) ([]SubscriptionSnapshot, error)

	// Close releases resources.
	Close() error
}
