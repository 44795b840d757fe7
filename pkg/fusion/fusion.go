// Package fusion aligns an embedding sequence with a handcrafted descriptor
// and joins them into one fixed-shape classifier input.
//
// The embedding decides the time axis: it is padded or truncated to the
// target frame count, and the descriptor is tiled to match it. The result
// always has shape [batch=1, time=target, feature=embeddingDim+descriptorDim].
package fusion

import (
	"errors"
	"fmt"

	"github.com/haivivi/vocalis/pkg/tensor"
)

// ErrShapeMismatch is returned when the inputs cannot be aligned.
var ErrShapeMismatch = errors.New("fusion: shape mismatch")

// DefaultTargetFrames is the time length the classifier expects.
const DefaultTargetFrames = 28

// Fuse builds the fused tensor for one segment. emb must be [time, feature]
// or [batch=1, time, feature]; descriptor must be non-empty.
func Fuse(emb *tensor.Tensor, descriptor []float32, targetFrames int) (*tensor.Tensor, error) {
	if targetFrames <= 0 {
		return nil, fmt.Errorf("%w: target frames %d", ErrShapeMismatch, targetFrames)
	}
	if len(descriptor) == 0 {
		return nil, fmt.Errorf("%w: empty descriptor", ErrShapeMismatch)
	}

	e, err := emb.DropBatch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if err := e.Expect(tensor.Time, tensor.Feature); err != nil {
		return nil, fmt.Errorf("%w: embedding: %v", ErrShapeMismatch, err)
	}
	if e.Size(tensor.Feature) == 0 {
		return nil, fmt.Errorf("%w: embedding has no features", ErrShapeMismatch)
	}

	e, err = e.Fit(tensor.Time, targetFrames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	// Tile to whatever the embedding ended up with, not the request.
	tiled := tensor.Tile(descriptor, e.Size(tensor.Time))

	fused, err := tensor.Concat(e, tiled)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	return fused.AddBatch(), nil
}

// Shape returns the batch shape of n fused tensors.
func Shape(n, targetFrames, embeddingDim, descriptorDim int) []int {
	return []int{n, targetFrames, embeddingDim + descriptorDim}
}

// Float32 converts a descriptor to the tensor element type.
func Float32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
