// Package storage defines BlobStore, a whole-object store used to persist
// serialized voiceprints. It abstracts the backend so that callers can swap
// between local disk and S3-compatible object stores.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// BlobStore stores small objects addressed by slash-separated paths.
//
// Put replaces an object atomically: a concurrent Get observes either the
// old or the new content, never a partial write. Implementations must be
// safe for concurrent use.
type BlobStore interface {
	// Get returns the object content. A missing object yields an error
	// wrapping os.ErrNotExist.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put writes data to path, replacing any existing object.
	Put(ctx context.Context, path string, data []byte) error

	// Delete removes path. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error

	// List returns the paths of all objects under dir, sorted.
	List(ctx context.Context, dir string) ([]string, error)
}

// ErrInvalidPath is returned for paths that escape the store root.
var ErrInvalidPath = errors.New("storage: invalid path")

// cleanPath rejects empty, absolute and parent-relative paths.
func cleanPath(path string) (string, error) {
	p := strings.Trim(path, "/")
	if p == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return p, nil
}

// IsNotExist reports whether err means the object is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
