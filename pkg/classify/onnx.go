package classify

import (
	"context"
	"fmt"
	"sync"

	"github.com/haivivi/vocalis/pkg/onnx"
	"github.com/haivivi/vocalis/pkg/tensor"
)

// ONNXClassifier implements [Classifier] with an ONNX model that outputs a
// sigmoid probability per batch element, as [batch] or [batch, 1].
type ONNXClassifier struct {
	mu      sync.RWMutex
	session *onnx.Session
	closed  bool
}

// NewONNXClassifier loads the model at path.
func NewONNXClassifier(env *onnx.Env, path, input, output string) (*ONNXClassifier, error) {
	s, err := env.NewSession(path, input, output)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return &ONNXClassifier{session: s}, nil
}

// Predict implements [Classifier].
func (c *ONNXClassifier) Predict(_ context.Context, batch *tensor.Tensor) ([]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("classify: model is closed")
	}

	dims := batch.Shape()
	shape := make([]int64, len(dims))
	for i, d := range dims {
		shape[i] = int64(d)
	}
	data, outShape, err := c.session.Run(shape, batch.Data())
	if err != nil {
		return nil, err
	}
	return probabilities(data, outShape, dims[0])
}

func probabilities(data []float32, shape []int64, batch int) ([]float64, error) {
	ok := (len(shape) == 1 && shape[0] == int64(batch)) ||
		(len(shape) == 2 && shape[0] == int64(batch) && shape[1] == 1)
	if !ok || len(data) != batch {
		return nil, fmt.Errorf("classify: %w: output %v for batch %d", tensor.ErrShape, shape, batch)
	}
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out, nil
}

// Close implements [Classifier].
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.session.Close()
}
