package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded-database Store, with real read-modify-write
// semantics. Preferred over FileStore when the state path ends in .db.
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens or creates the state database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// Enable WAL mode for better durability under an interrupted run.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS processed_items (
		external_id TEXT PRIMARY KEY,
		last_processed_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS deleted_items (
		external_id TEXT PRIMARY KEY,
		deleted_marked_at TEXT NOT NULL
	);`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate state db: %w", err)
	}

	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) ShouldProcess(externalID string, now time.Time, reprocessWindowHours int) (bool, error) {
	deleted, err := s.IsDeleted(externalID)
	if err != nil {
		return false, err
	}
	if deleted {
		return false, nil
	}

	var ts string
	err = s.conn.QueryRow(
		"SELECT last_processed_at FROM processed_items WHERE external_id = ?", externalID,
	).Scan(&ts)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed: %w", err)
	}

	last, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return true, nil // unreadable timestamp, treat as never processed
	}
	return due(last, now, reprocessWindowHours), nil
}

func (s *SQLiteStore) IsDeleted(externalID string) (bool, error) {
	var one int
	err := s.conn.QueryRow(
		"SELECT 1 FROM deleted_items WHERE external_id = ?", externalID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query deleted: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) MarkDeleted(externalID string) error {
	_, err := s.conn.Exec(
		"INSERT INTO deleted_items (external_id, deleted_marked_at) VALUES (?, ?) ON CONFLICT(external_id) DO NOTHING",
		externalID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkProcessed(externalID string, now time.Time) error {
	_, err := s.conn.Exec(
		`INSERT INTO processed_items (external_id, last_processed_at) VALUES (?, ?)
		 ON CONFLICT(external_id) DO UPDATE SET last_processed_at = excluded.last_processed_at`,
		externalID, now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Processed returns every processed id with its last-processed time.
func (s *SQLiteStore) Processed() map[string]time.Time {
	out := map[string]time.Time{}
	rows, err := s.conn.Query("SELECT external_id, last_processed_at FROM processed_items")
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var id, ts string
		if rows.Scan(&id, &ts) != nil {
			continue
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		out[id] = t
	}
	return out
}

// Deleted returns the deleted ids, sorted.
func (s *SQLiteStore) Deleted() []string {
	var out []string
	rows, err := s.conn.Query("SELECT external_id FROM deleted_items ORDER BY external_id")
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if rows.Scan(&id) == nil {
			out = append(out, id)
		}
	}
	return out
}

// Open picks the Store implementation from the path: paths ending in .db
// get the SQLite store, anything else is treated as a file-store directory.
func Open(path string) (Store, error) {
	if len(path) > 3 && path[len(path)-3:] == ".db" {
		return NewSQLiteStore(path)
	}
	return NewFileStore(path)
}
