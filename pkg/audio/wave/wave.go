// Package wave holds decoded mono waveforms and the fixed-length segments
// cut from them.
//
// A Buffer is produced once by ingestion and treated as immutable. Split cuts
// it into equally sized Segments: the last one is zero-padded on the right,
// and a buffer shorter than one window yields a single padded segment.
package wave

import (
	"fmt"
	"math"
	"time"
)

// Buffer is a mono waveform at a fixed sample rate.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// New returns a Buffer over samples. The slice is not copied.
func New(samples []float64, sampleRate int) *Buffer {
	return &Buffer{Samples: samples, SampleRate: sampleRate}
}

// Len returns the number of samples.
func (b *Buffer) Len() int { return len(b.Samples) }

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Peak returns the maximum absolute amplitude.
func (b *Buffer) Peak() float64 {
	return Peak(b.Samples)
}

// Normalized returns a copy scaled so that its peak amplitude is 1.
// A buffer with zero peak is returned as an unscaled copy.
func (b *Buffer) Normalized() *Buffer {
	out := make([]float64, len(b.Samples))
	copy(out, b.Samples)
	Normalize(out)
	return &Buffer{Samples: out, SampleRate: b.SampleRate}
}

// Silent reports whether the peak amplitude is below threshold.
func (b *Buffer) Silent(threshold float64) bool {
	return b.Peak() < threshold
}

// Peak returns the maximum absolute value in x.
func Peak(x []float64) float64 {
	var peak float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// Normalize scales x in place to unit peak.
func Normalize(x []float64) {
	peak := Peak(x)
	if peak == 0 {
		return
	}
	for i := range x {
		x[i] /= peak
	}
}

// Segment is one fixed-length window of a Buffer.
type Segment struct {
	// Index is the position of the segment within its source buffer.
	Index int

	// Samples always holds exactly the configured window length.
	Samples []float64

	SampleRate int

	// Valid is the number of leading samples taken from the source; the rest
	// is zero padding.
	Valid int
}

// Padded reports whether the segment carries trailing zero padding.
func (s Segment) Padded() bool { return s.Valid < len(s.Samples) }

// WindowSamples returns sampleRate*seconds rounded to the nearest sample.
func WindowSamples(sampleRate int, seconds float64) int {
	return int(math.Round(float64(sampleRate) * seconds))
}

// Split cuts b into consecutive windows of window samples.
func Split(b *Buffer, window int) ([]Segment, error) {
	if window <= 0 {
		return nil, fmt.Errorf("wave: invalid window %d", window)
	}
	n := len(b.Samples)
	count := (n + window - 1) / window
	if count == 0 {
		count = 1
	}

	segs := make([]Segment, count)
	for i := range segs {
		start := i * window
		end := min(start+window, n)
		samples := make([]float64, window)
		valid := 0
		if start < end {
			valid = copy(samples, b.Samples[start:end])
		}
		segs[i] = Segment{
			Index:      i,
			Samples:    samples,
			SampleRate: b.SampleRate,
			Valid:      valid,
		}
	}
	return segs, nil
}

// SplitSeconds is Split with the window given in seconds.
func SplitSeconds(b *Buffer, seconds float64) ([]Segment, error) {
	return Split(b, WindowSamples(b.SampleRate, seconds))
}

// Join concatenates the valid part of each segment, dropping trailing pad.
func Join(segs []Segment) []float64 {
	var total int
	for _, s := range segs {
		total += s.Valid
	}
	out := make([]float64, 0, total)
	for _, s := range segs {
		out = append(out, s.Samples[:s.Valid]...)
	}
	return out
}
