package wave

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

func TestSplit_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, tc := range []struct{ length, window int }{
		{0, 10}, {1, 10}, {9, 10}, {10, 10}, {11, 10}, {95, 10}, {1000, 7},
	} {
		samples := make([]float64, tc.length)
		for i := range samples {
			samples[i] = rng.Float64()*2 - 1
		}
		segs, err := Split(New(samples, 16000), tc.window)
		if err != nil {
			t.Fatalf("Split(%d, %d): %v", tc.length, tc.window, err)
		}

		wantCount := max(1, (tc.length+tc.window-1)/tc.window)
		if len(segs) != wantCount {
			t.Fatalf("Split(%d, %d) = %d segments, want %d", tc.length, tc.window, len(segs), wantCount)
		}
		for i, s := range segs {
			if len(s.Samples) != tc.window {
				t.Fatalf("segment %d has %d samples, want %d", i, len(s.Samples), tc.window)
			}
			if s.Index != i {
				t.Errorf("segment %d has index %d", i, s.Index)
			}
		}

		joined := Join(segs)
		if len(joined) != tc.length {
			t.Fatalf("Join length = %d, want %d", len(joined), tc.length)
		}
		for i := range joined {
			if joined[i] != samples[i] {
				t.Fatalf("sample %d = %v, want %v", i, joined[i], samples[i])
			}
		}
	}
}

func TestSplit_PadsFinalWindow(t *testing.T) {
	segs, err := Split(New([]float64{1, 1, 1, 1, 1}, 8000), 3)
	if err != nil {
		t.Fatal(err)
	}
	last := segs[len(segs)-1]
	if !last.Padded() || last.Valid != 2 {
		t.Fatalf("last segment valid = %d, padded = %v", last.Valid, last.Padded())
	}
	if last.Samples[2] != 0 {
		t.Errorf("pad sample = %v, want 0", last.Samples[2])
	}
	if segs[0].Padded() {
		t.Error("first segment should not be padded")
	}
}

func TestSplit_InvalidWindow(t *testing.T) {
	if _, err := Split(New(nil, 8000), 0); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestSplitSeconds(t *testing.T) {
	b := New(make([]float64, 22050*45), 22050)
	segs, err := SplitSeconds(b, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if len(segs[0].Samples) != 22050*20 {
		t.Errorf("window = %d samples", len(segs[0].Samples))
	}
}

func TestNormalize(t *testing.T) {
	b := New([]float64{0.1, -0.25, 0.05}, 16000)
	n := b.Normalized()
	if got := n.Peak(); math.Abs(got-1) > 1e-12 {
		t.Fatalf("peak = %v, want 1", got)
	}
	if n.Samples[1] != -1 {
		t.Errorf("sample = %v, want -1", n.Samples[1])
	}
	if b.Samples[1] != -0.25 {
		t.Error("Normalized modified the source buffer")
	}

	zero := New([]float64{0, 0}, 16000).Normalized()
	if zero.Peak() != 0 {
		t.Error("zero buffer should stay zero")
	}
}

func TestSilentAndDuration(t *testing.T) {
	b := New([]float64{0.001, -0.009}, 2)
	if !b.Silent(0.01) {
		t.Error("expected silent buffer")
	}
	if New([]float64{0.01}, 2).Silent(0.01) {
		t.Error("peak equal to threshold is not silent")
	}
	if d := b.Duration(); d != time.Second {
		t.Errorf("duration = %v, want 1s", d)
	}
}
