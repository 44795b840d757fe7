// Package classify scores fused segment tensors and turns segment
// probabilities into a per-file verdict.
//
// The verdict of a file is the arithmetic mean of its segment
// probabilities. A mean strictly greater than the threshold (0.5 by
// default) is REAL; anything else, including exactly 0.5, is FAKE. Files
// are never averaged together.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/haivivi/vocalis/pkg/tensor"
)

// Label is a file verdict.
type Label string

const (
	Real Label = "REAL"
	Fake Label = "FAKE"
)

// DefaultThreshold separates REAL from FAKE.
const DefaultThreshold = 0.5

// ErrNoSegments is returned when a verdict is requested for zero segments.
var ErrNoSegments = errors.New("classify: no segments")

// Classifier maps a [batch, time, feature] tensor to one probability per
// batch element. Implementations must be safe for concurrent use.
type Classifier interface {
	Predict(ctx context.Context, batch *tensor.Tensor) ([]float64, error)
	Close() error
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, batch *tensor.Tensor) ([]float64, error)

// Predict implements Classifier.
func (f ClassifierFunc) Predict(ctx context.Context, batch *tensor.Tensor) ([]float64, error) {
	return f(ctx, batch)
}

// Close implements Classifier.
func (ClassifierFunc) Close() error { return nil }

// Verdict is the decision for one file.
type Verdict struct {
	Label       Label     `json:"prediction" yaml:"prediction"`
	Probability float64   `json:"probability" yaml:"probability"`
	Segments    []float64 `json:"segments" yaml:"segments"`
}

// Decide averages segment probabilities and applies threshold.
func Decide(probs []float64, threshold float64) (Verdict, error) {
	if len(probs) == 0 {
		return Verdict{}, ErrNoSegments
	}
	var sum float64
	for _, p := range probs {
		sum += p
	}
	mean := sum / float64(len(probs))
	return Verdict{
		Label:       LabelFor(mean, threshold),
		Probability: mean,
		Segments:    probs,
	}, nil
}

// LabelFor returns Real iff p > threshold.
func LabelFor(p, threshold float64) Label {
	if p > threshold {
		return Real
	}
	return Fake
}

// Aggregator runs a Classifier over a file's fused segments.
type Aggregator struct {
	classifier Classifier
	threshold  float64
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(v float64) AggregatorOption {
	return func(a *Aggregator) { a.threshold = v }
}

// NewAggregator returns an Aggregator over c.
func NewAggregator(c Classifier, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{classifier: c, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold returns the decision threshold.
func (a *Aggregator) Threshold() float64 { return a.threshold }

// Score classifies segments, each [batch=1, time, feature], in one batched
// call and returns one probability per segment.
func (a *Aggregator) Score(ctx context.Context, segments []*tensor.Tensor) ([]float64, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	batch, err := tensor.Stack(segments)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if err := batch.Expect(tensor.Batch, tensor.Time, tensor.Feature); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	probs, err := a.classifier.Predict(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("classify: predict: %w", err)
	}
	if len(probs) != len(segments) {
		return nil, fmt.Errorf("classify: %d probabilities for %d segments", len(probs), len(segments))
	}
	return probs, nil
}

// Classify scores segments and decides the file verdict.
func (a *Aggregator) Classify(ctx context.Context, segments []*tensor.Tensor) (Verdict, error) {
	probs, err := a.Score(ctx, segments)
	if err != nil {
		return Verdict{}, err
	}
	return Decide(probs, a.threshold)
}
