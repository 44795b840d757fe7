// Package ingest decodes audio files into normalized mono waveforms.
//
// A Loader accepts a file path or a byte stream together with its file name.
// The extension selects the decoder: WAV and MP3 are decoded in process,
// while AAC-family containers (.m4a, .aac, .3gp) are handed to an ffmpeg
// subprocess. Every result is mixed down to mono, resampled to the loader's
// rate, checked for silence and scaled to unit peak.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/haivivi/vocalis/pkg/audio/resampler"
	"github.com/haivivi/vocalis/pkg/audio/wave"
)

var (
	// ErrUnreadableAudio is returned when the source cannot be decoded.
	ErrUnreadableAudio = errors.New("ingest: unreadable audio")

	// ErrUnsupportedFormat is returned for extensions outside the allow-list.
	ErrUnsupportedFormat = errors.New("ingest: unsupported format")

	// ErrSilentAudio is returned when the peak amplitude is below the
	// silence threshold.
	ErrSilentAudio = errors.New("ingest: silent audio")
)

// DefaultSilenceThreshold is the peak amplitude under which input is
// rejected as silent.
const DefaultSilenceThreshold = 0.01

var extensions = []string{".wav", ".mp3", ".m4a", ".aac", ".3gp"}

// Extensions returns the accepted file extensions.
func Extensions() []string {
	return slices.Clone(extensions)
}

// Allowed reports whether name has an accepted extension.
func Allowed(name string) bool {
	return slices.Contains(extensions, strings.ToLower(filepath.Ext(name)))
}

// Loader decodes audio to a fixed sample rate. It holds no per-request state
// and is safe for concurrent use.
type Loader struct {
	sampleRate int
	silence    float64
	ffmpeg     string
	tempDir    string
	logger     *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithSilenceThreshold overrides DefaultSilenceThreshold.
func WithSilenceThreshold(v float64) Option {
	return func(l *Loader) { l.silence = v }
}

// WithFFmpeg sets the ffmpeg binary used for AAC-family containers.
func WithFFmpeg(path string) Option {
	return func(l *Loader) { l.ffmpeg = path }
}

// WithTempDir sets the directory for per-request temporary files.
func WithTempDir(dir string) Option {
	return func(l *Loader) { l.tempDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader returns a Loader producing buffers at sampleRate.
func NewLoader(sampleRate int, opts ...Option) *Loader {
	l := &Loader{
		sampleRate: sampleRate,
		silence:    DefaultSilenceThreshold,
		ffmpeg:     "ffmpeg",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SampleRate returns the rate of every buffer this loader produces.
func (l *Loader) SampleRate() int { return l.sampleRate }

// LoadFile decodes the file at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*wave.Buffer, error) {
	if !Allowed(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	if isContainer(path) {
		pcm, err := l.runFFmpeg(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableAudio, filepath.Base(path), err)
		}
		return l.finish(path, resampler.PCM16(pcm), resampler.Format{SampleRate: l.sampleRate, Channels: 1})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableAudio, filepath.Base(path), err)
	}
	return l.decode(ctx, filepath.Base(path), data)
}

// LoadReader decodes audio read from r. The name is only used for its
// extension and for error messages.
func (l *Loader) LoadReader(ctx context.Context, name string, r io.Reader) (*wave.Buffer, error) {
	if !Allowed(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableAudio, name, err)
	}
	return l.decode(ctx, name, data)
}

func (l *Loader) decode(ctx context.Context, name string, data []byte) (*wave.Buffer, error) {
	var (
		samples []float64
		format  resampler.Format
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".wav":
		samples, format, err = decodeWAV(bytes.NewReader(data))
	case ".mp3":
		samples, format, err = decodeMP3(bytes.NewReader(data))
	default:
		var pcm []byte
		pcm, err = l.convertBytes(ctx, ext, data)
		samples, format = resampler.PCM16(pcm), resampler.Format{SampleRate: l.sampleRate, Channels: 1}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableAudio, name, err)
	}
	return l.finish(name, samples, format)
}

func (l *Loader) finish(name string, samples []float64, format resampler.Format) (*wave.Buffer, error) {
	if len(samples) == 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %s: no samples", ErrUnreadableAudio, name)
	}
	mono := resampler.Downmix(samples, format.Channels)
	out, err := resampler.Resample(mono, format.SampleRate, l.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableAudio, name, err)
	}

	buf := wave.New(out, l.sampleRate)
	if peak := buf.Peak(); peak < l.silence {
		return nil, fmt.Errorf("%w: %s: peak %.4f below %.4f", ErrSilentAudio, name, peak, l.silence)
	}
	wave.Normalize(buf.Samples)

	l.logger.Debug("audio loaded",
		"file", name,
		"source_rate", format.SampleRate,
		"channels", format.Channels,
		"sample_rate", l.sampleRate,
		"duration", buf.Duration(),
	)
	return buf, nil
}

func isContainer(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m4a", ".aac", ".3gp":
		return true
	}
	return false
}
