package voiceprint

import (
	"fmt"

	"github.com/haivivi/vocalis/pkg/audio/fbank"
	"github.com/haivivi/vocalis/pkg/audio/resampler"
	"github.com/haivivi/vocalis/pkg/audio/wave"
)

const (
	// NumCoefficients is the number of cepstral coefficients per frame.
	NumCoefficients = 20

	// Dim is the feature width: coefficients followed by their deltas.
	Dim = 2 * NumCoefficients

	// DefaultSampleRate is the analysis rate for speaker features.
	DefaultSampleRate = 16000
)

// FeatureExtractor turns waveforms into delta-augmented cepstral rows.
// It is safe for concurrent use.
type FeatureExtractor struct {
	rate int
	spec *fbank.Extractor
}

// NewFeatureExtractor analyses audio at sampleRate with 25 ms frames and a
// 10 ms hop. Zero means DefaultSampleRate.
func NewFeatureExtractor(sampleRate int) (*FeatureExtractor, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	spec, err := fbank.New(fbank.SpeakerConfig(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w", err)
	}
	return &FeatureExtractor{rate: sampleRate, spec: spec}, nil
}

// SampleRate returns the analysis rate.
func (f *FeatureExtractor) SampleRate() int { return f.rate }

// Features returns one Dim-wide row per analysis frame of buf. A buffer
// shorter than one frame yields no rows.
func (f *FeatureExtractor) Features(buf *wave.Buffer) ([][]float64, error) {
	if buf == nil || buf.Len() == 0 {
		return nil, nil
	}
	x := buf.Samples
	if buf.SampleRate != f.rate {
		var err error
		if x, err = resampler.Resample(buf.Samples, buf.SampleRate, f.rate); err != nil {
			return nil, fmt.Errorf("voiceprint: %w", err)
		}
	}

	power := f.spec.Power(x)
	if len(power) == 0 {
		return nil, nil
	}
	mfcc := fbank.DCT(fbank.LogMel(f.spec.Mel(power)), NumCoefficients)
	fbank.CMVN(mfcc)
	return AppendDeltas(mfcc), nil
}

// Delta computes first-order deltas over a ±2 frame window:
//
//	d[i] = (x[i+2] - x[i-2] + 2*(x[i+1] - x[i-1])) / 10
//
// Out-of-range indices clamp to the first or last frame.
func Delta(x [][]float64) [][]float64 {
	n := len(x)
	out := make([][]float64, n)
	for i := range x {
		p1, p2 := x[max(i-1, 0)], x[max(i-2, 0)]
		n1, n2 := x[min(i+1, n-1)], x[min(i+2, n-1)]
		d := make([]float64, len(x[i]))
		for c := range d {
			d[c] = (n2[c] - p2[c] + 2*(n1[c]-p1[c])) / 10
		}
		out[i] = d
	}
	return out
}

// AppendDeltas returns rows of x followed by their deltas.
func AppendDeltas(x [][]float64) [][]float64 {
	deltas := Delta(x)
	out := make([][]float64, len(x))
	for i, row := range x {
		r := make([]float64, 0, 2*len(row))
		r = append(r, row...)
		out[i] = append(r, deltas[i]...)
	}
	return out
}
