// Package tensor provides dense float32 tensors whose axes carry names.
//
// Every operation states the axes it expects and fails with ErrShape when
// the tensor does not match, instead of guessing from the observed rank.
package tensor

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrShape is returned when a tensor's axes or sizes do not match an
// operation's expectation.
var ErrShape = errors.New("tensor: shape")

// Axis names one tensor dimension.
type Axis string

const (
	Batch   Axis = "batch"
	Time    Axis = "time"
	Feature Axis = "feature"
)

// Tensor is a row-major tensor with named axes.
type Tensor struct {
	data  []float32
	shape []int
	axes  []Axis
}

// New wraps data with the given axes and sizes. len(data) must equal the
// product of shape.
func New(data []float32, axes []Axis, shape []int) (*Tensor, error) {
	if len(axes) != len(shape) {
		return nil, fmt.Errorf("%w: %d axes for %d dims", ErrShape, len(axes), len(shape))
	}
	n := 1
	for i, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative size %d on %s", ErrShape, d, axes[i])
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrShape, len(data), shape)
	}
	return &Tensor{data: data, shape: slices.Clone(shape), axes: slices.Clone(axes)}, nil
}

// Zeros returns a zero tensor.
func Zeros(axes []Axis, shape []int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{data: make([]float32, n), shape: slices.Clone(shape), axes: slices.Clone(axes)}
}

// Matrix builds a [Time, Feature] tensor from rows of equal width.
func Matrix(rows [][]float32) (*Tensor, error) {
	if len(rows) == 0 {
		return Zeros([]Axis{Time, Feature}, []int{0, 0}), nil
	}
	width := len(rows[0])
	data := make([]float32, 0, len(rows)*width)
	for i, r := range rows {
		if len(r) != width {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(r), width)
		}
		data = append(data, r...)
	}
	return &Tensor{data: data, shape: []int{len(rows), width}, axes: []Axis{Time, Feature}}, nil
}

// Data returns the backing slice.
func (t *Tensor) Data() []float32 { return t.data }

// Shape returns a copy of the dimension sizes.
func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

// Axes returns a copy of the axis names.
func (t *Tensor) Axes() []Axis { return slices.Clone(t.axes) }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Size returns the size of axis a, or -1 if the tensor lacks it.
func (t *Tensor) Size(a Axis) int {
	if i := slices.Index(t.axes, a); i >= 0 {
		return t.shape[i]
	}
	return -1
}

func (t *Tensor) String() string {
	parts := make([]string, len(t.shape))
	for i := range t.shape {
		parts[i] = fmt.Sprintf("%s=%d", t.axes[i], t.shape[i])
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Expect fails unless the tensor has exactly the given axes in order.
func (t *Tensor) Expect(axes ...Axis) error {
	if !slices.Equal(t.axes, axes) {
		return fmt.Errorf("%w: have %v, want axes %v", ErrShape, t, axes)
	}
	return nil
}

// DropBatch removes a leading singleton batch axis. A tensor without a
// batch axis is returned unchanged; a batch larger than one is an error.
func (t *Tensor) DropBatch() (*Tensor, error) {
	if len(t.axes) == 0 || t.axes[0] != Batch {
		return t, nil
	}
	if t.shape[0] != 1 {
		return nil, fmt.Errorf("%w: cannot drop batch of %d from %v", ErrShape, t.shape[0], t)
	}
	return &Tensor{data: t.data, shape: slices.Clone(t.shape[1:]), axes: slices.Clone(t.axes[1:])}, nil
}

// AddBatch inserts a leading batch axis of size 1. A tensor that already
// leads with a batch axis is returned unchanged.
func (t *Tensor) AddBatch() *Tensor {
	if len(t.axes) > 0 && t.axes[0] == Batch {
		return t
	}
	return &Tensor{
		data:  t.data,
		shape: append([]int{1}, t.shape...),
		axes:  append([]Axis{Batch}, t.axes...),
	}
}

// Fit pads with zeros at the end or truncates from the end so that the
// leading axis, which must be a, has size n.
func (t *Tensor) Fit(a Axis, n int) (*Tensor, error) {
	if len(t.axes) == 0 || t.axes[0] != a {
		return nil, fmt.Errorf("%w: fit %s on %v", ErrShape, a, t)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: fit to %d", ErrShape, n)
	}
	stride := 1
	for _, d := range t.shape[1:] {
		stride *= d
	}
	data := make([]float32, n*stride)
	copy(data, t.data[:min(n, t.shape[0])*stride])
	shape := slices.Clone(t.shape)
	shape[0] = n
	return &Tensor{data: data, shape: shape, axes: slices.Clone(t.axes)}, nil
}

// Tile repeats vec n times along a new leading Time axis.
func Tile(vec []float32, n int) *Tensor {
	data := make([]float32, 0, n*len(vec))
	for range n {
		data = append(data, vec...)
	}
	return &Tensor{data: data, shape: []int{n, len(vec)}, axes: []Axis{Time, Feature}}
}

// Concat joins a and b along their last axis. All other axes must match in
// name and size.
func Concat(a, b *Tensor) (*Tensor, error) {
	if !slices.Equal(a.axes, b.axes) || a.Rank() == 0 {
		return nil, fmt.Errorf("%w: concat %v with %v", ErrShape, a, b)
	}
	last := a.Rank() - 1
	if !slices.Equal(a.shape[:last], b.shape[:last]) {
		return nil, fmt.Errorf("%w: concat %v with %v", ErrShape, a, b)
	}
	wa, wb := a.shape[last], b.shape[last]
	rows := 1
	for _, d := range a.shape[:last] {
		rows *= d
	}
	data := make([]float32, 0, rows*(wa+wb))
	for r := range rows {
		data = append(data, a.data[r*wa:(r+1)*wa]...)
		data = append(data, b.data[r*wb:(r+1)*wb]...)
	}
	shape := slices.Clone(a.shape)
	shape[last] = wa + wb
	return &Tensor{data: data, shape: shape, axes: slices.Clone(a.axes)}, nil
}

// Stack joins tensors that each lead with a batch axis along that axis.
func Stack(ts []*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: stack of nothing", ErrShape)
	}
	first := ts[0]
	if first.Rank() == 0 || first.axes[0] != Batch {
		return nil, fmt.Errorf("%w: stack needs a batch axis, have %v", ErrShape, first)
	}
	batch := 0
	var data []float32
	for _, t := range ts {
		if !slices.Equal(t.axes, first.axes) || !slices.Equal(t.shape[1:], first.shape[1:]) {
			return nil, fmt.Errorf("%w: stack %v with %v", ErrShape, first, t)
		}
		batch += t.shape[0]
		data = append(data, t.data...)
	}
	shape := slices.Clone(first.shape)
	shape[0] = batch
	return &Tensor{data: data, shape: shape, axes: slices.Clone(first.axes)}, nil
}
