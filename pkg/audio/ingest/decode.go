package ingest

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/haivivi/vocalis/pkg/audio/resampler"
)

// decodeWAV returns interleaved samples scaled to [-1, 1].
func decodeWAV(r io.ReadSeeker) ([]float64, resampler.Format, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, resampler.Format{}, errors.New("not a valid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, resampler.Format{}, fmt.Errorf("read pcm: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, resampler.Format{}, errors.New("wav has no format chunk")
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, resampler.Format{}, fmt.Errorf("unsupported bit depth %d", depth)
	}
	scale := float64(int64(1) << (depth - 1))
	// 8-bit PCM is unsigned with silence at 128.
	var offset float64
	if depth == 8 {
		offset = scale
	}

	out := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = (float64(v) - offset) / scale
	}
	format := resampler.Format{SampleRate: buf.Format.SampleRate, Channels: buf.Format.NumChannels}
	return out, format, nil
}

// decodeMP3 returns interleaved stereo samples; go-mp3 always emits 16-bit
// little-endian stereo.
func decodeMP3(r io.Reader) ([]float64, resampler.Format, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, resampler.Format{}, fmt.Errorf("mp3 header: %w", err)
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, resampler.Format{}, fmt.Errorf("mp3 frames: %w", err)
	}
	return resampler.PCM16(pcm), resampler.Format{SampleRate: d.SampleRate(), Channels: 2}, nil
}
