package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itswl/balance-alert/pkg/notify"

	_ "modernc.org/sqlite"
)

// SQLite implements the Store interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveBalanceRecord(ctx context.Context, record *BalanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balance_records (id, project_id, project, provider, success, value, currency, error, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.ProjectID, record.Project, record.Provider,
		record.Success, record.Value, record.Currency, record.Error, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert balance record: %w", err)
	}
	return nil
}

func (s *SQLite) QueryBalanceRecords(ctx context.Context, filter RecordFilter) ([]BalanceRecord, error) {
	query := "SELECT id, project_id, project, provider, success, value, currency, error, timestamp FROM balance_records"
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query balance records: %w", err)
	}
	defer rows.Close()

	var records []BalanceRecord
	for rows.Next() {
		var r BalanceRecord
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Project, &r.Provider,
			&r.Success, &r.Value, &r.Currency, &r.Error, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) SaveAlertRecord(ctx context.Context, event *notify.NotificationEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_records (id, kind, subject, message, status, attempts, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.Kind), event.Subject, event.Message,
		string(event.Status), event.Attempts, event.Error, event.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert record: %w", err)
	}
	return nil
}

func (s *SQLite) ListAlertRecords(ctx context.Context, limit int) ([]notify.NotificationEvent, error) {
	query := "SELECT id, kind, subject, message, status, attempts, error, sent_at FROM alert_records ORDER BY sent_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list alert records: %w", err)
	}
	defer rows.Close()

	var events []notify.NotificationEvent
	for rows.Next() {
		var e notify.NotificationEvent
		var kind, status string
		if err := rows.Scan(&e.ID, &kind, &e.Subject, &e.Message,
			&status, &e.Attempts, &e.Error, &e.SentAt); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		e.Kind = notify.EventKind(kind)
		e.Status = notify.DeliveryStatus(status)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLite) SaveSubscriptionSnapshot(ctx context.Context, snap *SubscriptionSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscription_snapshots (id, name, days_until, next_renewal, need_alert, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Name, snap.DaysUntil, snap.NextRenewal, snap.NeedAlert, snap.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert subscription snapshot: %w", err)
	}
	return nil
}

func (s *SQLite) LatestSubscriptionSnapshots(ctx context.Context) ([]SubscriptionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.name, s.days_until, s.next_renewal, s.need_alert, s.timestamp
		 FROM subscription_snapshots s
		 JOIN (SELECT name, MAX(timestamp) AS ts FROM subscription_snapshots GROUP BY name) latest
		   ON s.name = latest.name AND s.timestamp = latest.ts
		 ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("query subscription snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []SubscriptionSnapshot
	for rows.Next() {
		var snap SubscriptionSnapshot
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.DaysUntil,
			&snap.NextRenewal, &snap.NeedAlert, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// buildWhereClause constructs a SQL WHERE clause from a RecordFilter.
func buildWhereClause(filter RecordFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if !filter.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.EndTime)
	}

	return strings.Join(conditions, " AND "), args
}
