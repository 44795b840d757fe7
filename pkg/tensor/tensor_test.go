package tensor

import (
	"errors"
	"slices"
	"testing"
)

func TestNew_Validates(t *testing.T) {
	if _, err := New(make([]float32, 5), []Axis{Time, Feature}, []int{2, 3}); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
	if _, err := New(nil, []Axis{Time}, []int{0, 1}); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
	tt, err := New(make([]float32, 6), []Axis{Time, Feature}, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if tt.Size(Feature) != 3 || tt.Size(Batch) != -1 {
		t.Errorf("sizes = %d/%d", tt.Size(Feature), tt.Size(Batch))
	}
}

func TestMatrix_RaggedRows(t *testing.T) {
	if _, err := Matrix([][]float32{{1, 2}, {3}}); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
}

func TestDropAndAddBatch(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4}, []Axis{Batch, Time, Feature}, []int{1, 2, 2})
	y, err := x.DropBatch()
	if err != nil {
		t.Fatal(err)
	}
	if err := y.Expect(Time, Feature); err != nil {
		t.Fatal(err)
	}
	z := y.AddBatch()
	if !slices.Equal(z.Shape(), []int{1, 2, 2}) {
		t.Errorf("shape = %v", z.Shape())
	}
	if z.AddBatch() != z {
		t.Error("AddBatch should be idempotent")
	}

	big, _ := New(make([]float32, 8), []Axis{Batch, Time, Feature}, []int{2, 2, 2})
	if _, err := big.DropBatch(); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
}

func TestFit(t *testing.T) {
	x, _ := Matrix([][]float32{{1, 2}, {3, 4}, {5, 6}})
	for _, tc := range []struct {
		n    int
		want []float32
	}{
		{2, []float32{1, 2, 3, 4}},
		{3, []float32{1, 2, 3, 4, 5, 6}},
		{4, []float32{1, 2, 3, 4, 5, 6, 0, 0}},
	} {
		y, err := x.Fit(Time, tc.n)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(y.Data(), tc.want) {
			t.Errorf("Fit(%d) = %v, want %v", tc.n, y.Data(), tc.want)
		}
		if y.Size(Time) != tc.n {
			t.Errorf("Fit(%d) time = %d", tc.n, y.Size(Time))
		}
	}
	if _, err := x.Fit(Batch, 1); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
}

func TestTileConcatStack(t *testing.T) {
	emb, _ := Matrix([][]float32{{1}, {2}})
	tiled := Tile([]float32{7, 8}, 2)
	cat, err := Concat(emb, tiled)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float32{1, 7, 8, 2, 7, 8}; !slices.Equal(cat.Data(), want) {
		t.Errorf("Concat = %v, want %v", cat.Data(), want)
	}

	if _, err := Concat(emb, Tile([]float32{1}, 3)); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}

	s, err := Stack([]*Tensor{cat.AddBatch(), cat.AddBatch()})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(s.Shape(), []int{2, 2, 3}) {
		t.Errorf("Stack shape = %v", s.Shape())
	}
	if _, err := Stack([]*Tensor{cat}); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
}
