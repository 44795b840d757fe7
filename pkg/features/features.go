// Package features computes the fixed-length handcrafted descriptor of an
// audio segment.
//
// The descriptor concatenates four time-averaged spectral statistics, in
// this order:
//
//	MFCC          20  cepstral coefficient means
//	Chroma        12  pitch-class energy means
//	Contrast       7  spectral contrast means (6 octave bands + residual)
//	Mel          128  mel band power means
//
// Every component is a column mean over time, so the vector length does not
// depend on the input duration. Audio is always analysed at the extractor's
// rate; segments at another rate are resampled first.
package features

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/haivivi/vocalis/pkg/audio/fbank"
	"github.com/haivivi/vocalis/pkg/audio/resampler"
	"github.com/haivivi/vocalis/pkg/audio/wave"
)

const (
	NumMFCC     = 20
	NumChroma   = 12
	NumContrast = 7
	NumMel      = 128

	// Dim is the length of every descriptor.
	Dim = NumMFCC + NumChroma + NumContrast + NumMel
)

// DefaultSampleRate is the analysis rate for descriptors.
const DefaultSampleRate = 16000

// ErrEmptySegment is returned for a segment without samples.
var ErrEmptySegment = errors.New("features: empty segment")

// Extractor computes descriptors. It is immutable after New and safe for
// concurrent use.
type Extractor struct {
	rate     int
	spec     *fbank.Extractor
	chroma   [][]float64
	contrast [][2]int
}

// New returns an Extractor analysing audio at sampleRate.
func New(sampleRate int) (*Extractor, error) {
	cfg := fbank.DefaultConfig(sampleRate)
	cfg.NumMels = NumMel
	spec, err := fbank.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	freqs := spec.BinFrequencies()
	return &Extractor{
		rate:     sampleRate,
		spec:     spec,
		chroma:   chromaFilters(freqs),
		contrast: contrastBands(freqs, 200, NumContrast-1),
	}, nil
}

// SampleRate returns the analysis rate.
func (e *Extractor) SampleRate() int { return e.rate }

// Dim returns the descriptor length.
func (e *Extractor) Dim() int { return Dim }

// ExtractSegment computes the descriptor of seg.
func (e *Extractor) ExtractSegment(seg wave.Segment) ([]float64, error) {
	return e.Extract(seg.Samples, seg.SampleRate)
}

// Extract computes the descriptor of samples recorded at sampleRate.
func (e *Extractor) Extract(samples []float64, sampleRate int) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySegment
	}
	x := samples
	if sampleRate != e.rate {
		var err error
		if x, err = resampler.Resample(samples, sampleRate, e.rate); err != nil {
			return nil, fmt.Errorf("features: %w", err)
		}
	}

	power := e.spec.Power(x)
	if len(power) == 0 {
		return nil, ErrEmptySegment
	}
	mel := e.spec.Mel(power)

	out := make([]float64, 0, Dim)
	out = append(out, fbank.ColumnMeans(fbank.MFCC(mel, NumMFCC), NumMFCC)...)
	out = append(out, fbank.ColumnMeans(e.chromagram(power), NumChroma)...)
	out = append(out, fbank.ColumnMeans(e.spectralContrast(power), NumContrast)...)
	out = append(out, fbank.ColumnMeans(mel, NumMel)...)
	return out, nil
}

// chromaFilters assigns each bin above 20 Hz to its nearest pitch class
// (C = 0) with unit weight.
func chromaFilters(freqs []float64) [][]float64 {
	bank := make([][]float64, NumChroma)
	for c := range bank {
		bank[c] = make([]float64, len(freqs))
	}
	for k, f := range freqs {
		if f < 20 {
			continue
		}
		// MIDI note 69 is A4 (440 Hz); MIDI % 12 == 0 is C.
		midi := 69 + 12*math.Log2(f/440)
		pc := int(math.Round(midi)) % NumChroma
		if pc < 0 {
			pc += NumChroma
		}
		bank[pc][k] = 1
	}
	return bank
}

// chromagram returns per-frame pitch-class energy normalized to max 1.
func (e *Extractor) chromagram(power [][]float64) [][]float64 {
	out := make([][]float64, len(power))
	for t, spec := range power {
		row := make([]float64, NumChroma)
		var peak float64
		for c, filter := range e.chroma {
			var sum float64
			for k, w := range filter {
				if w != 0 {
					sum += w * spec[k]
				}
			}
			row[c] = sum
			peak = math.Max(peak, sum)
		}
		if peak > 0 {
			for c := range row {
				row[c] /= peak
			}
		}
		out[t] = row
	}
	return out
}

// contrastBands returns [lo, hi) bin ranges for octave bands starting at
// fmin, plus a final band reaching Nyquist.
func contrastBands(freqs []float64, fmin float64, n int) [][2]int {
	edges := make([]float64, n+2)
	edges[1] = fmin
	for i := 2; i <= n; i++ {
		edges[i] = edges[i-1] * 2
	}
	edges[n+1] = math.Inf(1)

	bands := make([][2]int, n+1)
	for b := range bands {
		lo, hi := -1, -1
		for k, f := range freqs {
			if f >= edges[b] && f < edges[b+1] {
				if lo < 0 {
					lo = k
				}
				hi = k + 1
			}
		}
		if lo < 0 {
			lo, hi = len(freqs)-1, len(freqs)
		}
		bands[b] = [2]int{lo, hi}
	}
	return bands
}

// spectralContrast returns per-frame peak-to-valley ratios in dB, taking
// the top and bottom 2% of magnitudes in each band.
func (e *Extractor) spectralContrast(power [][]float64) [][]float64 {
	const quantile = 0.02
	out := make([][]float64, len(power))
	buf := make([]float64, 0, len(e.spec.BinFrequencies()))
	for t, spec := range power {
		row := make([]float64, len(e.contrast))
		for b, band := range e.contrast {
			buf = buf[:0]
			for _, p := range spec[band[0]:band[1]] {
				buf = append(buf, math.Sqrt(p))
			}
			slices.Sort(buf)
			idx := max(1, int(math.Round(quantile*float64(len(buf)))))
			var valley, peak float64
			for i := range idx {
				valley += buf[i]
				peak += buf[len(buf)-1-i]
			}
			valley /= float64(idx)
			peak /= float64(idx)
			row[b] = 10*math.Log10(math.Max(1e-10, peak)) - 10*math.Log10(math.Max(1e-10, valley))
		}
		out[t] = row
	}
	return out
}
