package fusion

import (
	"errors"
	"slices"
	"testing"

	"github.com/haivivi/vocalis/pkg/tensor"
)

func embedding(t *testing.T, frames, dim int, batched bool) *tensor.Tensor {
	t.Helper()
	data := make([]float32, frames*dim)
	for i := range data {
		data[i] = float32(i + 1)
	}
	axes, shape := []tensor.Axis{tensor.Time, tensor.Feature}, []int{frames, dim}
	if batched {
		axes = append([]tensor.Axis{tensor.Batch}, axes...)
		shape = append([]int{1}, shape...)
	}
	x, err := tensor.New(data, axes, shape)
	if err != nil {
		t.Fatal(err)
	}
	return x
}

func TestFuse_TimeAxisAlwaysTarget(t *testing.T) {
	desc := make([]float32, 167)
	for _, frames := range []int{1, 5, 20, 27, 28, 29, 60} {
		for _, batched := range []bool{false, true} {
			out, err := Fuse(embedding(t, frames, 128, batched), desc, DefaultTargetFrames)
			if err != nil {
				t.Fatalf("frames=%d batched=%v: %v", frames, batched, err)
			}
			want := []int{1, DefaultTargetFrames, 128 + 167}
			if !slices.Equal(out.Shape(), want) {
				t.Fatalf("frames=%d batched=%v: shape %v, want %v", frames, batched, out.Shape(), want)
			}
		}
	}
}

func TestFuse_Layout(t *testing.T) {
	// 3 frames of dim 2, target 4: last frame zero-padded, descriptor on every frame.
	out, err := Fuse(embedding(t, 3, 2, false), []float32{9}, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{
		1, 2, 9,
		3, 4, 9,
		5, 6, 9,
		0, 0, 9,
	}
	if !slices.Equal(out.Data(), want) {
		t.Errorf("data = %v, want %v", out.Data(), want)
	}
}

func TestFuse_TruncatesFromEnd(t *testing.T) {
	out, err := Fuse(embedding(t, 3, 1, true), []float32{0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float32{1, 0, 2, 0}; !slices.Equal(out.Data(), want) {
		t.Errorf("data = %v, want %v", out.Data(), want)
	}
}

func TestFuse_ShapeMismatch(t *testing.T) {
	rank1, _ := tensor.New(make([]float32, 4), []tensor.Axis{tensor.Feature}, []int{4})
	batch2, _ := tensor.New(make([]float32, 8), []tensor.Axis{tensor.Batch, tensor.Time, tensor.Feature}, []int{2, 2, 2})
	tests := []struct {
		name   string
		emb    *tensor.Tensor
		desc   []float32
		target int
	}{
		{"rank 1", rank1, []float32{1}, 4},
		{"batch of two", batch2, []float32{1}, 4},
		{"empty descriptor", embedding(t, 2, 2, false), nil, 4},
		{"zero target", embedding(t, 2, 2, false), []float32{1}, 0},
		{"no features", embedding(t, 2, 0, false), []float32{1}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fuse(tt.emb, tt.desc, tt.target); !errors.Is(err, ErrShapeMismatch) {
				t.Fatalf("err = %v, want ErrShapeMismatch", err)
			}
		})
	}
}
