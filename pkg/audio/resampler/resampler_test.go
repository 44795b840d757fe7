package resampler

import (
	"math"
	"testing"
)

func sine(freq float64, rate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func TestResample_Length(t *testing.T) {
	tests := []struct {
		name     string
		src, dst int
		n        int
	}{
		{"down 44100->22050", 44100, 22050, 44100},
		{"down 22050->16000", 22050, 16000, 22050 * 2},
		{"up 8000->16000", 8000, 16000, 8000},
		{"short", 48000, 16000, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Resample(sine(440, tt.src, tt.n), tt.src, tt.dst)
			if err != nil {
				t.Fatalf("Resample: %v", err)
			}
			want := OutputLen(tt.n, tt.src, tt.dst)
			if len(out) != want {
				t.Fatalf("len = %d, want %d", len(out), want)
			}
		})
	}
}

func TestResample_SameRateCopies(t *testing.T) {
	in := []float64{0.1, 0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	out[0] = 9
	if in[0] != 0.1 {
		t.Fatal("Resample returned an alias of its input")
	}
}

func TestResample_InvalidRate(t *testing.T) {
	if _, err := Resample([]float64{1}, 0, 16000); err == nil {
		t.Fatal("expected error for zero source rate")
	}
}

func TestResample_PreservesEnergy(t *testing.T) {
	in := sine(300, 22050, 22050)
	out, err := Resample(in, 22050, 16000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	rms := func(x []float64) float64 {
		var s float64
		for _, v := range x {
			s += v * v
		}
		return math.Sqrt(s / float64(len(x)))
	}
	in, out = in[2000:20000], out[2000:14000]
	if r := rms(out) / rms(in); r < 0.8 || r > 1.2 {
		t.Errorf("rms ratio = %.3f, want ~1", r)
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float64{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float64{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPCM16(t *testing.T) {
	// 0x4000 = 16384, 0x8000 = -32768
	got := PCM16([]byte{0x00, 0x40, 0x00, 0x80, 0xff})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0] != 0.5 || got[1] != -1 {
		t.Errorf("got %v, want [0.5 -1]", got)
	}
}
