package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ironsheep/screenwatch/internal/change"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	region_id   TEXT NOT NULL,
	change_type TEXT NOT NULL,
	confidence  REAL NOT NULL,
	timestamp   TEXT NOT NULL,
	summary     TEXT NOT NULL,
	digest      TEXT NOT NULL,
	text        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_region ON events(region_id, timestamp);
`

// journalTime is fixed-width so timestamps sort lexically.
const journalTime = "2006-01-02T15:04:05.000000000Z07:00"

// Journal persists accepted events in a SQLite database. It implements
// Notifier.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal at path. ":memory:" gives a
// private in-memory journal.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sink: open journal: %w", err)
	}
	// One connection: writes are serialized anyway and ":memory:" is per
	// connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sink: journal %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Notify(ctx context.Context, ev change.Event) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (id, region_id, change_type, confidence, timestamp, summary, digest, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RegionID, string(ev.Type), ev.Confidence,
		ev.Timestamp.UTC().Format(journalTime), ev.Summary, ev.Digest, ev.Text,
	)
	if err != nil {
		return fmt.Errorf("sink: journal insert: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. An empty region matches
// every region.
func (j *Journal) Recent(ctx context.Context, region string, limit int) ([]change.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, region_id, change_type, confidence, timestamp, summary, digest, text
		 FROM events
		 WHERE ? = '' OR region_id = ?
		 ORDER BY timestamp DESC, rowid DESC
		 LIMIT ?`,
		region, region, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sink: journal query: %w", err)
	}
	defer rows.Close()

	var out []change.Event
	for rows.Next() {
		var (
			ev  change.Event
			typ string
			ts  string
		)
		if err := rows.Scan(&ev.ID, &ev.RegionID, &typ, &ev.Confidence, &ts, &ev.Summary, &ev.Digest, &ev.Text); err != nil {
			return nil, fmt.Errorf("sink: journal scan: %w", err)
		}
		ev.Type = change.Type(typ)
		if ev.Timestamp, err = time.Parse(journalTime, ts); err != nil {
			return nil, fmt.Errorf("sink: journal timestamp %q: %w", ts, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count returns the number of stored events.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}
