// Package kv provides a small key-value store abstraction with hierarchical
// keys, used to persist voiceprints and verdict records.
//
// Keys are string slices (e.g. ["voiceprint", "alice"]) joined with a
// separator byte (default ':') for storage. Two implementations exist:
// Badger for on-disk or in-memory persistence, and Memory for tests.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// ErrInvalidKey is returned for keys with empty segments or segments that
// contain the separator.
var ErrInvalidKey = errors.New("kv: invalid key")

// Key is a hierarchical path. Segments must be non-empty and must not
// contain the store's separator.
type Key []string

// String joins the segments with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair returned by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys. Implementations are safe
// for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value under key, replacing any previous value atomically.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List yields every entry strictly below prefix, in lexicographic order
	// of the encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Close releases the store.
	Close() error
}

// DefaultSeparator joins key segments in storage.
const DefaultSeparator byte = ':'

// Options configures store behavior.
type Options struct {
	// Separator joins key segments. Zero means DefaultSeparator.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) ([]byte, error) {
	s := o.sep()
	for _, seg := range k {
		if seg == "" || strings.IndexByte(seg, s) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
		}
	}
	return []byte(strings.Join(k, string(s))), nil
}

// prefix returns the encoded prefix followed by the separator, so that
// "a:b" never matches "a:bc". An empty prefix matches everything.
func (o *Options) prefix(k Key) ([]byte, error) {
	if len(k) == 0 {
		return nil, nil
	}
	p, err := o.encode(k)
	if err != nil {
		return nil, err
	}
	return append(p, o.sep()), nil
}

func (o *Options) decode(b []byte) Key {
	parts := bytes.Split(b, []byte{o.sep()})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// errSeq yields a single error.
func errSeq(err error) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		yield(Entry{}, err)
	}
}
