package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const historySchema = `
CREATE TABLE IF NOT EXISTS history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    value TEXT NOT NULL,
    ts INTEGER NOT NULL
);
`

const historyIndex = `CREATE INDEX IF NOT EXISTS history_kind_ts ON history(kind, ts);`

// SQLiteStore keeps history in a SQLite database. Timestamps are stored as
// UTC unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens dsn with the modernc.org/sqlite driver. For a throwaway
// database pass ":memory:".
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", dsn, err)
	}
	// each pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// EnsureSchema creates the history table and its index if missing.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(historySchema); err != nil {
		return fmt.Errorf("store: create history table: %w", err)
	}
	if _, err := db.Exec(historyIndex); err != nil {
		return fmt.Errorf("store: create history index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history(kind, value, ts) VALUES(?, ?, ?)`,
		rec.Kind, rec.Value, rec.Timestamp.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store: insert %s record: %w", rec.Kind, err)
	}
	return nil
}

func (s *SQLiteStore) Since(ctx context.Context, kind string, since time.Time) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, value, ts FROM history WHERE kind = ? AND ts >= ? ORDER BY ts, id`,
		kind, since.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("store: query %s records: %w", kind, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r  Record
			ts int64
		)
		if err := rows.Scan(&r.Kind, &r.Value, &ts); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ HistoryStore = (*SQLiteStore)(nil)
