package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the journal database. Use ":memory:" for
// an in-memory journal in tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transitions_build_id ON transitions(build_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a transition row for the build.
func (s *SQLiteStore) Append(ctx context.Context, buildID, status, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO transitions (build_id, status, message, timestamp) VALUES (?, ?, ?, ?)",
		buildID, status, message, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ByBuild returns all transitions recorded for a build, oldest first.
func (s *SQLiteStore) ByBuild(ctx context.Context, buildID string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, build_id, status, message, timestamp FROM transitions WHERE build_id = ? ORDER BY id",
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var message sql.NullString
		var ts int64
		if err := rows.Scan(&t.ID, &t.BuildID, &t.Status, &message, &ts); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.Message = message.String
		t.Timestamp = time.UnixMilli(ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
