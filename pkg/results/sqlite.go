package results

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	request_id  TEXT NOT NULL DEFAULT '',
	filename    TEXT NOT NULL,
	prediction  TEXT NOT NULL,
	probability REAL NOT NULL,
	segments    INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_request ON results(request_id);
`

// SQLiteStore keeps records in a SQLite table. Insertion order is kept by
// an autoincrement column.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the database at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("results: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("results: open %s: %w", path, err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:"
	// databases from being per-connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("results: create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Append implements Store. All records are inserted in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, recs ...Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("results: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results
		(id, request_id, filename, prediction, probability, segments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("results: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = s.now()
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.RequestID, r.Filename, r.Prediction,
			r.Probability, r.Segments, r.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("results: insert %s: %w", r.Filename, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, request_id, filename, prediction,
		probability, segments, created_at FROM results ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r  Record
			ts int64
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Filename, &r.Prediction,
			&r.Probability, &r.Segments, &ts); err != nil {
			return nil, fmt.Errorf("results: scan: %w", err)
		}
		r.CreatedAt = time.Unix(0, ts).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)
