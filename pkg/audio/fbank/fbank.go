// Package fbank computes short-time spectral features from mono audio.
//
// It is the shared front-end for both pipelines in this module: the
// authenticity classifier's handcrafted descriptors (power spectrogram,
// mel bands, MFCC, chroma, contrast) and the speaker voiceprint cepstra.
//
// Two presets are provided:
//
//	DefaultConfig   2048-point frames, hop 512, 128 mel bands, centered,
//	                Hann window. Used for descriptor statistics.
//	SpeakerConfig   25 ms / 10 ms frames at 16 kHz, 512-point FFT,
//	                26 mel bands, Hamming window, pre-emphasis 0.97.
package fbank

import (
	"fmt"

	"github.com/up-zero/gotool/mediautil"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Window selects the analysis window.
type Window string

const (
	Hann    Window = "hann"
	Hamming Window = "hamming"
)

// Config controls spectral analysis parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz
	FFTSize     int     // FFT length; must be >= WindowSize
	WindowSize  int     // window length in samples (0 = FFTSize)
	HopSize     int     // hop length in samples
	NumMels     int     // number of mel bands
	LowFreq     float64 // lowest mel frequency
	HighFreq    float64 // highest mel frequency (0 = Nyquist)
	PreEmphasis float64 // pre-emphasis coefficient (0 = off)
	Center      bool    // reflect-pad by FFTSize/2 on both ends
	Window      Window
}

// DefaultConfig returns the descriptor analysis preset for sampleRate.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate: sampleRate,
		FFTSize:    2048,
		HopSize:    512,
		NumMels:    128,
		Center:     true,
		Window:     Hann,
	}
}

// SpeakerConfig returns the 25 ms / 10 ms cepstral preset for sampleRate.
func SpeakerConfig(sampleRate int) Config {
	win := sampleRate * 25 / 1000
	fft := 1
	for fft < win {
		fft <<= 1
	}
	return Config{
		SampleRate:  sampleRate,
		FFTSize:     fft,
		WindowSize:  win,
		HopSize:     sampleRate / 100,
		NumMels:     26,
		PreEmphasis: 0.97,
		Window:      Hamming,
	}
}

// Bins returns the number of one-sided frequency bins.
func (c Config) Bins() int { return c.FFTSize/2 + 1 }

func (c Config) windowSize() int {
	if c.WindowSize <= 0 {
		return c.FFTSize
	}
	return c.WindowSize
}

func (c Config) highFreq() float64 {
	if c.HighFreq <= 0 {
		return float64(c.SampleRate) / 2
	}
	return c.HighFreq
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("fbank: invalid sample rate %d", c.SampleRate)
	case c.FFTSize <= 0 || c.HopSize <= 0:
		return fmt.Errorf("fbank: invalid fft %d / hop %d", c.FFTSize, c.HopSize)
	case c.windowSize() > c.FFTSize:
		return fmt.Errorf("fbank: window %d exceeds fft size %d", c.windowSize(), c.FFTSize)
	case c.NumMels <= 0:
		return fmt.Errorf("fbank: invalid mel count %d", c.NumMels)
	}
	return nil
}

// Extractor computes spectral features for one Config. The window and mel
// bank are built once; an Extractor is safe for concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
}

// New creates an Extractor.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Extractor{cfg: cfg}
	e.window = makeWindow(cfg.Window, cfg.windowSize())
	e.melBank = melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.highFreq())
	return e, nil
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config { return e.cfg }

// MelBank returns the [NumMels][Bins] triangular filter matrix.
func (e *Extractor) MelBank() [][]float64 { return e.melBank }

// Frames returns the number of analysis frames for n samples.
func (e *Extractor) Frames(n int) int {
	if e.cfg.Center {
		n += 2 * (e.cfg.FFTSize / 2)
	}
	win := e.cfg.FFTSize
	if !e.cfg.Center {
		win = e.cfg.windowSize()
	}
	if n < win {
		return 0
	}
	return (n-win)/e.cfg.HopSize + 1
}

// Power returns the one-sided power spectrogram as [T][Bins].
func (e *Extractor) Power(samples []float64) [][]float64 {
	cfg := e.cfg
	x := samples
	if cfg.PreEmphasis > 0 {
		x = preEmphasis(x, cfg.PreEmphasis)
	}
	if cfg.Center {
		x = reflectPad(x, cfg.FFTSize/2)
	}

	numFrames := e.Frames(len(samples))
	if numFrames == 0 {
		return nil
	}
	win := len(e.window)
	// Centered frames span the full FFT with the window in the middle.
	offset := 0
	if cfg.Center {
		offset = (cfg.FFTSize - win) / 2
	}

	fft := fourier.NewFFT(cfg.FFTSize)
	frame := make([]float64, cfg.FFTSize)
	coeffs := make([]complex128, cfg.Bins())
	out := make([][]float64, numFrames)
	for t := range numFrames {
		start := t * cfg.HopSize
		clear(frame)
		for i := range win {
			frame[offset+i] = x[start+offset+i] * e.window[i]
		}
		coeffs = fft.Coefficients(coeffs, frame)

		row := make([]float64, len(coeffs))
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			row[k] = re*re + im*im
		}
		out[t] = row
	}
	return out
}

// Mel projects a power spectrogram onto the mel bank, giving [T][NumMels].
func (e *Extractor) Mel(power [][]float64) [][]float64 {
	out := make([][]float64, len(power))
	for t, spec := range power {
		row := make([]float64, len(e.melBank))
		for m, filter := range e.melBank {
			var sum float64
			for k, w := range filter {
				if w != 0 {
					sum += w * spec[k]
				}
			}
			row[m] = sum
		}
		out[t] = row
	}
	return out
}

// BinFrequencies returns the center frequency in Hz of every FFT bin.
func (e *Extractor) BinFrequencies() []float64 {
	freqs := make([]float64, e.cfg.Bins())
	for k := range freqs {
		freqs[k] = float64(k) * float64(e.cfg.SampleRate) / float64(e.cfg.FFTSize)
	}
	return freqs
}

func makeWindow(kind Window, n int) []float64 {
	var w32 []float32
	if kind == Hamming {
		w32 = mediautil.HammingWindow(n)
	} else {
		w32 = mediautil.HannWindow(n)
	}
	w := make([]float64, len(w32))
	for i, v := range w32 {
		w[i] = float64(v)
	}
	return w
}

func preEmphasis(x []float64, coef float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if i > 0 {
			v -= coef * x[i-1]
		}
		out[i] = v
	}
	return out
}

// reflectPad mirrors pad samples at each end, excluding the edge sample.
func reflectPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)
	copy(out[pad:], x)
	if n < 2 {
		return out
	}
	for i := 1; i <= pad; i++ {
		out[pad-i] = x[reflect(i, n)]
		out[pad+n-1+i] = x[reflect(n-1-i, n)]
	}
	return out
}

func reflect(i, n int) int {
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
