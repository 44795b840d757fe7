package resampler

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from srcRate to dstRate using a pure Go
// polyphase resampler. The output always holds
// round(len(samples) * dstRate / srcRate) samples; the filter tail is
// flushed with silence and trimmed so callers can rely on the length.
func Resample(samples []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}

	want := OutputLen(len(samples), srcRate, dstRate)
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create %d -> %d: %w", srcRate, dstRate, err)
	}

	out, err := rs.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	// Push silence through until the delayed tail comes out.
	tail := make([]float64, srcRate/10+64)
	for tries := 0; len(out) < want && tries < 8; tries++ {
		more, err := rs.Process(tail)
		if err != nil {
			return nil, fmt.Errorf("resampler: flush: %w", err)
		}
		out = append(out, more...)
	}

	if len(out) >= want {
		return out[:want:want], nil
	}
	padded := make([]float64, want)
	copy(padded, out)
	return padded, nil
}

// OutputLen returns the sample count Resample produces for n input samples.
func OutputLen(n, srcRate, dstRate int) int {
	if srcRate == dstRate {
		return n
	}
	return int(math.Round(float64(n) * float64(dstRate) / float64(srcRate)))
}

// Downmix averages interleaved channels into a mono buffer.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(interleaved))
		copy(out, interleaved)
		return out
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// PCM16 decodes little-endian signed 16-bit samples into [-1, 1) floats.
// A trailing odd byte is ignored.
func PCM16(b []byte) []float64 {
	n := len(b) / 2
	out := make([]float64, n)
	for i := range n {
		s := int16(b[i*2]) | int16(b[i*2+1])<<8
		out[i] = float64(s) / 32768.0
	}
	return out
}
