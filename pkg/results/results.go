// Package results keeps the append-only log of authenticity verdicts.
//
// Every processed file appends one Record. List returns the whole log,
// oldest first. Two backends exist: KVStore over any kv.Store (badger in
// production, kv.Memory in tests) and SQLiteStore over a pure-Go SQLite
// database.
package results

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by List when no record has been appended yet.
var ErrEmpty = errors.New("results: no results")

// Record is one verdict in the log.
type Record struct {
	ID          string    `json:"id" yaml:"id" msgpack:"id"`
	RequestID   string    `json:"request_id,omitempty" yaml:"request_id,omitempty" msgpack:"request_id"`
	Filename    string    `json:"filename" yaml:"filename" msgpack:"filename"`
	Prediction  string    `json:"prediction" yaml:"prediction" msgpack:"prediction"`
	Probability float64   `json:"probability" yaml:"probability" msgpack:"probability"`
	Segments    int       `json:"segments" yaml:"segments" msgpack:"segments"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at" msgpack:"created_at"`
}

// Store is an append-only verdict log. Implementations are safe for
// concurrent use.
type Store interface {
	// Append adds records to the log. Empty IDs and zero CreatedAt values
	// are filled in.
	Append(ctx context.Context, recs ...Record) error

	// List returns all records oldest first, or ErrEmpty.
	List(ctx context.Context) ([]Record, error)

	Close() error
}
