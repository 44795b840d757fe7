// Package models owns the process-wide inference models.
//
// The classifier and the embedding model are loaded lazily on first use,
// shared read-only by every request afterwards, and released together by
// Close. Thread safety of concurrent inference is a property of the model
// implementations, not something the registry adds.
package models

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haivivi/vocalis/pkg/classify"
	"github.com/haivivi/vocalis/pkg/embedding"
	"github.com/haivivi/vocalis/pkg/onnx"
)

// ErrModelUnavailable is returned when a model is not configured or fails
// to load. It is fatal to the request that needed the model.
var ErrModelUnavailable = errors.New("models: model unavailable")

// Spec locates one ONNX model.
type Spec struct {
	Path       string `yaml:"path" json:"path"`
	Input      string `yaml:"input" json:"input"`
	Output     string `yaml:"output" json:"output"`
	Dim        int    `yaml:"dim,omitempty" json:"dim,omitempty"`
	SampleRate int    `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`
}

// Config configures a Registry.
type Config struct {
	// Library is the ONNX Runtime shared library path.
	Library    string `yaml:"onnx_library" json:"onnx_library"`
	Embedding  Spec   `yaml:"embedding" json:"embedding"`
	Classifier Spec   `yaml:"classifier" json:"classifier"`
}

// Registry lazily loads and caches models.
type Registry struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	env        *onnx.Env
	embedding  embedding.Model
	classifier classify.Classifier
	closed     bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithEmbedding installs a preloaded embedding model.
func WithEmbedding(m embedding.Model) Option {
	return func(r *Registry) { r.embedding = m }
}

// WithClassifier installs a preloaded classifier.
func WithClassifier(c classify.Classifier) Option {
	return func(r *Registry) { r.classifier = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns a Registry. Nothing is loaded until first use.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	r := &Registry{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Embedding returns the embedding model, loading it if needed.
func (r *Registry) Embedding() (embedding.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("%w: registry closed", ErrModelUnavailable)
	}
	if r.embedding != nil {
		return r.embedding, nil
	}
	spec := r.cfg.Embedding
	env, err := r.runtime(spec)
	if err != nil {
		return nil, err
	}
	m, err := embedding.NewONNXModel(env, spec.Path, spec.Input, spec.Output,
		embedding.WithDim(spec.Dim),
		embedding.WithSampleRate(spec.SampleRate),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	r.logger.Info("embedding model loaded", "path", spec.Path, "dim", m.Dim())
	r.embedding = m
	return m, nil
}

// Classifier returns the classifier, loading it if needed.
func (r *Registry) Classifier() (classify.Classifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("%w: registry closed", ErrModelUnavailable)
	}
	if r.classifier != nil {
		return r.classifier, nil
	}
	spec := r.cfg.Classifier
	env, err := r.runtime(spec)
	if err != nil {
		return nil, err
	}
	c, err := classify.NewONNXClassifier(env, spec.Path, spec.Input, spec.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	r.logger.Info("classifier loaded", "path", spec.Path)
	r.classifier = c
	return c, nil
}

// runtime opens the shared ONNX environment. Callers hold r.mu.
func (r *Registry) runtime(spec Spec) (*onnx.Env, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrModelUnavailable)
	}
	if r.env != nil {
		return r.env, nil
	}
	env, err := onnx.NewEnv(r.cfg.Library)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	r.env = env
	return env, nil
}

// Close releases every loaded model and the runtime.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.embedding != nil {
		errs = append(errs, r.embedding.Close())
	}
	if r.classifier != nil {
		errs = append(errs, r.classifier.Close())
	}
	if r.env != nil {
		errs = append(errs, r.env.Close())
	}
	return errors.Join(errs...)
}
