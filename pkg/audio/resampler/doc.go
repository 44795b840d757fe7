// Package resampler converts decoded audio between sample rates and channel
// layouts.
//
// Audio is handled as whole buffers of float64 samples in [-1, 1]: the
// pipelines in this module process one complete recording at a time, so
// there is no streaming state to carry between calls.
//
// Example usage:
//
//	src := resampler.Format{SampleRate: 44100, Channels: 2}
//	mono := resampler.Downmix(interleaved, src.Channels)
//	out, err := resampler.Resample(mono, src.SampleRate, 22050)
//	if err != nil {
//	    return err
//	}
package resampler
