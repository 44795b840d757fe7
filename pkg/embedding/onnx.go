package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/haivivi/vocalis/pkg/audio/wave"
	"github.com/haivivi/vocalis/pkg/onnx"
	"github.com/haivivi/vocalis/pkg/tensor"
)

// ONNXModel implements [Model] with an ONNX export of a waveform embedding
// network. The model takes a [1, samples] float32 waveform and returns
// [frames, dim] or [1, frames, dim].
//
// # Thread Safety
//
// ONNXModel is safe for concurrent use. The session is loaded once and shared.
type ONNXModel struct {
	mu      sync.RWMutex
	session *onnx.Session
	dim     int
	rate    int
	closed  bool
}

// ONNXOption configures an ONNXModel.
type ONNXOption func(*ONNXModel)

// WithDim overrides DefaultDim.
func WithDim(dim int) ONNXOption {
	return func(m *ONNXModel) {
		if dim > 0 {
			m.dim = dim
		}
	}
}

// WithSampleRate overrides the default 22050 Hz input rate.
func WithSampleRate(rate int) ONNXOption {
	return func(m *ONNXModel) {
		if rate > 0 {
			m.rate = rate
		}
	}
}

// NewONNXModel loads the model at path with the given tensor names.
func NewONNXModel(env *onnx.Env, path, input, output string, opts ...ONNXOption) (*ONNXModel, error) {
	m := &ONNXModel{dim: DefaultDim, rate: 22050}
	for _, opt := range opts {
		opt(m)
	}
	s, err := env.NewSession(path, input, output)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	m.session = s
	return m, nil
}

// Embed implements [Model].
func (m *ONNXModel) Embed(_ context.Context, seg wave.Segment) (*tensor.Tensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("embedding: model is closed")
	}
	if seg.SampleRate != m.rate {
		return nil, fmt.Errorf("embedding: segment at %d Hz, model wants %d Hz", seg.SampleRate, m.rate)
	}

	in := make([]float32, len(seg.Samples))
	for i, v := range seg.Samples {
		in[i] = float32(v)
	}
	data, shape, err := m.session.Run([]int64{1, int64(len(in))}, in)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	return wrap(data, shape, m.dim)
}

// wrap tags the raw output. Only [frames, dim] and [1, frames, dim] are
// accepted; anything else is a shape error.
func wrap(data []float32, shape []int64, dim int) (*tensor.Tensor, error) {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	var axes []tensor.Axis
	switch len(dims) {
	case 2:
		axes = []tensor.Axis{tensor.Time, tensor.Feature}
	case 3:
		axes = []tensor.Axis{tensor.Batch, tensor.Time, tensor.Feature}
	default:
		return nil, fmt.Errorf("embedding: %w: output rank %d", tensor.ErrShape, len(dims))
	}
	if dims[len(dims)-1] != dim {
		return nil, fmt.Errorf("embedding: %w: output width %d, want %d", tensor.ErrShape, dims[len(dims)-1], dim)
	}
	t, err := tensor.New(data, axes, dims)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	return t, nil
}

// Dim implements [Model].
func (m *ONNXModel) Dim() int { return m.dim }

// SampleRate implements [Model].
func (m *ONNXModel) SampleRate() int { return m.rate }

// Close implements [Model].
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.session.Close()
}
