package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultPath = "data/arb.db"
)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; the recorder workers share this handle.
	db.SetMaxOpenConns(1)
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures the schema exists.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropTables removes every table, children first.
func (s *Store) DropTables(ctx context.Context) error {
	for _, table := range []string{"opportunity_levels", "opportunities", "cycles"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+";"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

// ClearTables deletes all rows but keeps the schema.
func (s *Store) ClearTables(ctx context.Context) error {
	for _, table := range []string{"opportunity_levels", "opportunities", "cycles"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+";"); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cycles (
	cycle_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	kalshi_markets INTEGER NOT NULL DEFAULT 0,
	polymarket_markets INTEGER NOT NULL DEFAULT 0,
	matched_pairs INTEGER NOT NULL DEFAULT 0,
	kalshi_books INTEGER NOT NULL DEFAULT 0,
	polymarket_books INTEGER NOT NULL DEFAULT 0,
	opportunities INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS opportunities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id TEXT NOT NULL,
	pair_id TEXT NOT NULL,
	detected_at TEXT NOT NULL,
	kalshi_market_id TEXT NOT NULL,
	kalshi_title TEXT,
	kalshi_url TEXT,
	polymarket_market_id TEXT NOT NULL,
	polymarket_title TEXT,
	polymarket_url TEXT,
	match_score REAL,
	best_direction TEXT,
	best_profit_pct REAL,
	total_quantity REAL,
	total_max_profit REAL,
	net_contracts INTEGER,
	net_kalshi_fee REAL,
	net_polymarket_fee REAL,
	net_profit REAL,
	UNIQUE (cycle_id, pair_id)
);
CREATE INDEX IF NOT EXISTS opportunities_pair_idx ON opportunities(pair_id, detected_at);
CREATE TABLE IF NOT EXISTS opportunity_levels (
	opportunity_id INTEGER NOT NULL REFERENCES opportunities(id) ON DELETE CASCADE,
	level_index INTEGER NOT NULL,
	buy_yes_venue TEXT NOT NULL,
	buy_yes_price REAL NOT NULL,
	buy_no_venue TEXT NOT NULL,
	buy_no_price REAL NOT NULL,
	quantity REAL NOT NULL,
	total_cost REAL NOT NULL,
	profit_pct REAL NOT NULL,
	max_profit REAL NOT NULL,
	PRIMARY KEY (opportunity_id, level_index)
);
`

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
