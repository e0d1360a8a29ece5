// Package history keeps a SQLite ledger of delivered export files.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Schema is applied on every Open.
const Schema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT    NOT NULL,
	name         TEXT    NOT NULL,
	target       TEXT    NOT NULL,
	content_type TEXT    NOT NULL DEFAULT '',
	size_bytes   INTEGER NOT NULL,
	archived     INTEGER NOT NULL DEFAULT 0,
	error        TEXT    NOT NULL DEFAULT '',
	delivered_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_session ON deliveries(session_id);
CREATE INDEX IF NOT EXISTS idx_deliveries_delivered_at ON deliveries(delivered_at);
`

// Entry is one delivery attempt. Err is empty for a successful write.
type Entry struct {
	ID          int64
	SessionID   string
	Name        string
	Target      string
	ContentType string
	Size        int
	// Archived marks an entry written into a zip rather than delivered
	// on its own.
	Archived bool
	Err      string
	At       time.Time
}

// Ledger records deliveries. Safe for concurrent use.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the ledger at path. ":memory:" keeps it in RAM.
func Open(path string) (*Ledger, error) {
	logger := slog.Default().With("component", "history")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %q: %w", path, err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	logger.Debug("history ledger opened", "path", path)
	return &Ledger{db: db, logger: logger}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Record appends e. A zero At is stamped with the current time.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	archived := 0
	if e.Archived {
		archived = 1
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO deliveries (session_id, name, target, content_type, size_bytes, archived, error, delivered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Name, e.Target, e.ContentType, e.Size, archived, e.Err, e.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record delivery %q: %w", e.Name, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.query(ctx,
		`SELECT id, session_id, name, target, content_type, size_bytes, archived, error, delivered_at
		 FROM deliveries ORDER BY delivered_at DESC, id DESC LIMIT ?`, limit)
}

// Session returns the entries of one batch session in delivery order.
func (l *Ledger) Session(ctx context.Context, sessionID string) ([]Entry, error) {
	return l.query(ctx,
		`SELECT id, session_id, name, target, content_type, size_bytes, archived, error, delivered_at
		 FROM deliveries WHERE session_id = ? ORDER BY id`, sessionID)
}

func (l *Ledger) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			archived int
			at       int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Name, &e.Target, &e.ContentType, &e.Size, &archived, &e.Err, &at); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Archived = archived != 0
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
