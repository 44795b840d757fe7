// Package embedding defines the learned audio embedding collaborator.
//
// An embedding model maps one fixed-length waveform segment to a sequence
// of frame embeddings. The number of frames depends on the model and the
// segment length; the embedding width is fixed. Downstream fusion reconciles
// the frame count.
package embedding

import (
	"context"

	"github.com/haivivi/vocalis/pkg/audio/wave"
	"github.com/haivivi/vocalis/pkg/tensor"
)

// DefaultDim is the width of VGGish-style embeddings.
const DefaultDim = 128

// Model extracts frame embeddings from a waveform segment.
//
// The returned tensor has axes [time, feature] or [batch=1, time, feature];
// the feature size equals Dim().
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. The extraction scheduler
// calls Embed from several goroutines on one shared model.
type Model interface {
	// Embed computes the embedding sequence of seg. seg is at SampleRate().
	Embed(ctx context.Context, seg wave.Segment) (*tensor.Tensor, error)

	// Dim returns the embedding width.
	Dim() int

	// SampleRate returns the rate segments must be sampled at.
	SampleRate() int

	// Close releases any resources held by the model.
	Close() error
}

// Func adapts a function to Model.
type Func struct {
	Fn   func(ctx context.Context, seg wave.Segment) (*tensor.Tensor, error)
	D    int
	Rate int
}

// Embed implements Model.
func (f Func) Embed(ctx context.Context, seg wave.Segment) (*tensor.Tensor, error) {
	return f.Fn(ctx, seg)
}

// Dim implements Model.
func (f Func) Dim() int { return f.D }

// SampleRate implements Model.
func (f Func) SampleRate() int { return f.Rate }

// Close implements Model.
func (Func) Close() error { return nil }
