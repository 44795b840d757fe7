package results

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haivivi/vocalis/pkg/kv"
	"github.com/vmihailenco/msgpack/v5"
)

// keyPrefix is the kv prefix for verdict records.
var keyPrefix = kv.Key{"results"}

// KVStore stores records msgpack-encoded under {"results", <uuidv7>}.
// UUIDv7 keys sort by creation time, so a prefix scan is already ordered.
type KVStore struct {
	store kv.Store
	now   func() time.Time
}

// NewKVStore wraps store. The KVStore takes ownership: Close closes store.
func NewKVStore(store kv.Store) *KVStore {
	return &KVStore{store: store, now: time.Now}
}

// NewMemory returns a KVStore over kv.Memory.
func NewMemory() *KVStore {
	return NewKVStore(kv.NewMemory(nil))
}

// Append implements Store.
func (s *KVStore) Append(ctx context.Context, recs ...Record) error {
	for _, r := range recs {
		if r.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("results: %w", err)
			}
			r.ID = id.String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = s.now()
		}
		r.CreatedAt = r.CreatedAt.UTC()

		data, err := msgpack.Marshal(&r)
		if err != nil {
			return fmt.Errorf("results: encode: %w", err)
		}
		if err := s.store.Set(ctx, kv.Key{keyPrefix[0], r.ID}, data); err != nil {
			return fmt.Errorf("results: %w", err)
		}
	}
	return nil
}

// List implements Store.
func (s *KVStore) List(ctx context.Context) ([]Record, error) {
	var out []Record
	for entry, err := range s.store.List(ctx, keyPrefix) {
		if err != nil {
			return nil, fmt.Errorf("results: %w", err)
		}
		var r Record
		if err := msgpack.Unmarshal(entry.Value, &r); err != nil {
			return nil, fmt.Errorf("results: decode %s: %w", entry.Key, err)
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Close closes the underlying kv store.
func (s *KVStore) Close() error { return s.store.Close() }

var _ Store = (*KVStore)(nil)
