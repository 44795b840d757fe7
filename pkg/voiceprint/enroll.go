package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haivivi/vocalis/pkg/audio/wave"
	"github.com/haivivi/vocalis/pkg/gmm"
	"github.com/haivivi/vocalis/pkg/kv"
	"github.com/haivivi/vocalis/pkg/pool"
)

type settings struct {
	fit     gmm.Config
	rate    int
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Enroller or a Verifier.
type Option func(*settings)

// WithGMM sets the mixture fit parameters.
func WithGMM(cfg gmm.Config) Option {
	return func(s *settings) { s.fit = cfg }
}

// WithSampleRate sets the feature analysis rate.
func WithSampleRate(rate int) Option {
	return func(s *settings) { s.rate = rate }
}

// WithWorkers bounds per-recording and per-user parallelism.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func newSettings(opts []Option) settings {
	s := settings{
		fit:     gmm.DefaultConfig(),
		rate:    DefaultSampleRate,
		workers: pool.DefaultWorkers,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Enroller fits and stores voiceprints.
type Enroller struct {
	store    Store
	features *FeatureExtractor
	locks    kv.Locker
	settings
}

// NewEnroller returns an Enroller writing to store.
func NewEnroller(store Store, opts ...Option) (*Enroller, error) {
	s := newSettings(opts)
	fx, err := NewFeatureExtractor(s.rate)
	if err != nil {
		return nil, err
	}
	return &Enroller{store: store, features: fx, settings: s}, nil
}

// Enroll builds user's voiceprint from recordings and replaces any
// previous one. Concurrent enrollments of the same user are serialized;
// the last one to finish wins.
func (e *Enroller) Enroll(ctx context.Context, user string, recordings []*wave.Buffer) (*Voiceprint, error) {
	if err := ValidateUser(user); err != nil {
		return nil, err
	}
	if len(recordings) == 0 {
		return nil, fmt.Errorf("%w: no recordings", ErrInsufficientEnrollmentData)
	}

	results := pool.Map(ctx, e.workers, recordings, func(_ context.Context, b *wave.Buffer) ([][]float64, error) {
		return e.features.Features(b)
	})
	var rows [][]float64
	for _, r := range results {
		if !r.OK() {
			return nil, fmt.Errorf("voiceprint: recording %d: %w", r.Index, r.Err.Err)
		}
		rows = append(rows, r.Value...)
	}

	model, err := gmm.Fit(rows, e.fit)
	if errors.Is(err, gmm.ErrInsufficientData) {
		return nil, fmt.Errorf("%w: %d frames from %d recordings", ErrInsufficientEnrollmentData, len(rows), len(recordings))
	}
	if err == nil {
		err = model.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("voiceprint: fit %s: %w", user, err)
	}

	v := &Voiceprint{
		User:       user,
		Model:      model,
		Recordings: len(recordings),
		Frames:     len(rows),
		CreatedAt:  e.now().UTC(),
	}

	unlock := e.locks.Lock(kv.Key{user})
	defer unlock()
	if err := e.store.Put(ctx, v); err != nil {
		return nil, err
	}
	e.logger.Info("voiceprint enrolled",
		"user", user,
		"recordings", len(recordings),
		"frames", len(rows),
		"iterations", model.Iterations,
		"converged", model.Converged,
	)
	return v, nil
}

// Delete removes user's voiceprint.
func (e *Enroller) Delete(ctx context.Context, user string) error {
	unlock := e.locks.Lock(kv.Key{user})
	defer unlock()
	return e.store.Delete(ctx, user)
}

// Exists reports whether user is enrolled.
func (e *Enroller) Exists(ctx context.Context, user string) (bool, error) {
	_, err := e.store.Get(ctx, user)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotEnrolled):
		return false, nil
	default:
		return false, err
	}
}

// Users lists enrolled users.
func (e *Enroller) Users(ctx context.Context) ([]string, error) {
	return e.store.Users(ctx)
}
