package resampler

// Format describes a decoded PCM layout.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 44100, 22050).
	SampleRate int

	// Channels is the number of interleaved channels (1 = mono).
	Channels int
}

// Mono reports whether the format has a single channel.
func (f Format) Mono() bool {
	return f.Channels <= 1
}

// Frames returns how many frames n interleaved samples hold.
func (f Format) Frames(n int) int {
	if f.Channels <= 1 {
		return n
	}
	return n / f.Channels
}

// Seconds returns the duration of n interleaved samples.
func (f Format) Seconds(n int) float64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return float64(f.Frames(n)) / float64(f.SampleRate)
}
