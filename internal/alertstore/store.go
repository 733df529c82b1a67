// store.go persists received live events so the alert history survives restarts.
package alertstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/utils/clock"
	_ "modernc.org/sqlite"

	"github.com/example/leakwatch/internal/feed"
	"github.com/example/leakwatch/internal/model"
)

// DefaultRecent is the history size served by the alerts endpoint.
const DefaultRecent = 50

const (
	createTableStmt = `
CREATE TABLE IF NOT EXISTS alerts (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    received_at TEXT NOT NULL,
    timestamp TEXT,
    event_type TEXT,
    details TEXT,
    severity TEXT NOT NULL
);`
	createIndexStmt = `CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);`
	insertStmt      = `INSERT OR IGNORE INTO alerts(id, received_at, timestamp, event_type, details, severity) VALUES(?, ?, ?, ?, ?, ?)`
	recentStmt      = `SELECT id, received_at, timestamp, event_type, details, severity FROM alerts ORDER BY seq DESC LIMIT ?`
)

// Alert is one stored live event.
type Alert struct {
	ID         string         `json:"id"`
	ReceivedAt time.Time      `json:"received_at"`
	Timestamp  string         `json:"timestamp,omitempty"`
	EventType  string         `json:"event_type"`
	Details    string         `json:"details"`
	Severity   model.Severity `json:"severity"`
}

// Event converts the alert back into the live event it was stored from.
func (a Alert) Event() model.LiveEvent {
	return model.LiveEvent{ID: a.ID, EventType: a.EventType, Details: a.Details, Timestamp: a.Timestamp}
}

// Store keeps alerts in a SQLite database.
type Store struct {
	db     *sql.DB
	insert *sql.Stmt
	clock  clock.PassiveClock
}

// New opens (or creates) the database at path.
func New(path string) (*Store, error) {
	return NewWithClock(path, clock.RealClock{})
}

// NewWithClock is New with an injected clock for received_at stamps.
func NewWithClock(path string, clk clock.PassiveClock) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("alert store path cannot be empty")
	}
	dir := filepath.Dir(p)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create alert store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+p+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, stmt := range []string{createTableStmt, createIndexStmt} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure alerts schema: %w", err)
		}
	}
	insert, err := db.PrepareContext(ctx, insertStmt)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare alert insert: %w", err)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{db: db, insert: insert, clock: clk}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.insert != nil {
		err = errors.Join(err, s.insert.Close())
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

// Append stores one event; an id that is already stored is ignored.
func (s *Store) Append(ctx context.Context, ev model.LiveEvent, sev model.Severity) error {
	if s == nil {
		return nil
	}
	if ev.ID == "" {
		return errors.New("alert id cannot be empty")
	}
	_, err := s.insert.ExecContext(ctx,
		ev.ID,
		s.clock.Now().UTC().Format(time.RFC3339Nano),
		ev.Timestamp,
		ev.EventType,
		ev.Details,
		sev.String(),
	)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", ev.ID, err)
	}
	return nil
}

// Prepend records every entry the live feed adds.
func (s *Store) Prepend(ctx context.Context, entry feed.Entry) error {
	return s.Append(ctx, entry.Event, entry.Fragment.Severity)
}

// Recent returns up to n alerts, newest first. n <= 0 means DefaultRecent.
func (s *Store) Recent(ctx context.Context, n int) ([]Alert, error) {
	if n <= 0 {
		n = DefaultRecent
	}
	rows, err := s.db.QueryContext(ctx, recentStmt, n)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var (
			a                Alert
			received         string
			ts, typ, details sql.NullString
			severity         string
		)
		if err := rows.Scan(&a.ID, &received, &ts, &typ, &details, &severity); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.ReceivedAt, _ = time.Parse(time.RFC3339Nano, received)
		a.Timestamp = ts.String
		a.EventType = typ.String
		a.Details = details.String
		a.Severity = model.ParseSeverity(severity)
		out = append(out, a)
	}
	return out, rows.Err()
}

// History returns the newest n alerts as events, oldest first, ready for
// seeding the live feed.
func (s *Store) History(ctx context.Context, n int) ([]model.LiveEvent, error) {
	alerts, err := s.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	events := make([]model.LiveEvent, len(alerts))
	for i, a := range alerts {
		events[len(alerts)-1-i] = a.Event()
	}
	return events, nil
}
