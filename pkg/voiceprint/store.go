package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/haivivi/vocalis/pkg/kv"
	"github.com/haivivi/vocalis/pkg/storage"
)

// Store maps user names to exactly one voiceprint each. Put replaces the
// previous voiceprint atomically. Implementations are safe for concurrent
// use; serializing writers of the same user is the Enroller's job.
type Store interface {
	Get(ctx context.Context, user string) (*Voiceprint, error)
	Put(ctx context.Context, v *Voiceprint) error
	Delete(ctx context.Context, user string) error

	// Users returns enrolled user names, sorted.
	Users(ctx context.Context) ([]string, error)

	// All returns every voiceprint, sorted by user.
	All(ctx context.Context) ([]*Voiceprint, error)
}

// KVStore keeps voiceprints under {"voiceprint", user} in a kv.Store.
type KVStore struct {
	kv kv.Store
}

var kvPrefix = kv.Key{"voiceprint"}

// NewKVStore wraps s. The caller keeps ownership of s.
func NewKVStore(s kv.Store) *KVStore {
	return &KVStore{kv: s}
}

func (s *KVStore) Get(ctx context.Context, user string) (*Voiceprint, error) {
	if err := ValidateUser(user); err != nil {
		return nil, err
	}
	data, err := s.kv.Get(ctx, kv.Key{kvPrefix[0], user})
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotEnrolled, user)
	}
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w", err)
	}
	return Decode(data)
}

func (s *KVStore) Put(ctx context.Context, v *Voiceprint) error {
	if err := ValidateUser(v.User); err != nil {
		return err
	}
	data, err := v.Encode()
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, kv.Key{kvPrefix[0], v.User}, data); err != nil {
		return fmt.Errorf("voiceprint: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, user string) error {
	if err := ValidateUser(user); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, kv.Key{kvPrefix[0], user}); err != nil {
		return fmt.Errorf("voiceprint: %w", err)
	}
	return nil
}

func (s *KVStore) Users(ctx context.Context) ([]string, error) {
	var users []string
	for entry, err := range s.kv.List(ctx, kvPrefix) {
		if err != nil {
			return nil, fmt.Errorf("voiceprint: %w", err)
		}
		users = append(users, entry.Key[len(entry.Key)-1])
	}
	slices.Sort(users)
	return users, nil
}

func (s *KVStore) All(ctx context.Context) ([]*Voiceprint, error) {
	var out []*Voiceprint
	for entry, err := range s.kv.List(ctx, kvPrefix) {
		if err != nil {
			return nil, fmt.Errorf("voiceprint: %w", err)
		}
		v, err := Decode(entry.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sortByUser(out)
	return out, nil
}

// BlobStore keeps one "<dir>/<user>.gmm" object per user in a
// storage.BlobStore, local disk or S3.
type BlobStore struct {
	blobs storage.BlobStore
	dir   string
}

const blobExt = ".gmm"

// NewBlobStore stores voiceprints under dir in blobs.
func NewBlobStore(blobs storage.BlobStore, dir string) *BlobStore {
	if dir = strings.Trim(dir, "/"); dir == "" {
		dir = "voiceprints"
	}
	return &BlobStore{blobs: blobs, dir: dir}
}

func (s *BlobStore) path(user string) string {
	return path.Join(s.dir, user+blobExt)
}

func (s *BlobStore) Get(ctx context.Context, user string) (*Voiceprint, error) {
	if err := ValidateUser(user); err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(ctx, s.path(user))
	if storage.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotEnrolled, user)
	}
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w", err)
	}
	return Decode(data)
}

func (s *BlobStore) Put(ctx context.Context, v *Voiceprint) error {
	if err := ValidateUser(v.User); err != nil {
		return err
	}
	data, err := v.Encode()
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, s.path(v.User), data); err != nil {
		return fmt.Errorf("voiceprint: %w", err)
	}
	return nil
}

func (s *BlobStore) Delete(ctx context.Context, user string) error {
	if err := ValidateUser(user); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, s.path(user)); err != nil {
		return fmt.Errorf("voiceprint: %w", err)
	}
	return nil
}

func (s *BlobStore) Users(ctx context.Context) ([]string, error) {
	paths, err := s.blobs.List(ctx, s.dir)
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w", err)
	}
	var users []string
	for _, p := range paths {
		if path.Dir(p) != s.dir || !strings.HasSuffix(p, blobExt) {
			continue
		}
		users = append(users, strings.TrimSuffix(path.Base(p), blobExt))
	}
	slices.Sort(users)
	return users, nil
}

func (s *BlobStore) All(ctx context.Context) ([]*Voiceprint, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Voiceprint, 0, len(users))
	for _, u := range users {
		v, err := s.Get(ctx, u)
		if errors.Is(err, ErrNotEnrolled) {
			// Deleted between List and Get.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func sortByUser(vs []*Voiceprint) {
	slices.SortFunc(vs, func(a, b *Voiceprint) int { return strings.Compare(a.User, b.User) })
}

var (
	_ Store = (*KVStore)(nil)
	_ Store = (*BlobStore)(nil)
)
