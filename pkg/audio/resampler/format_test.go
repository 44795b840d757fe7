package resampler

import "testing"

func TestFormat_Frames(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		n      int
		want   int
	}{
		{name: "mono", format: Format{SampleRate: 16000, Channels: 1}, n: 100, want: 100},
		{name: "stereo", format: Format{SampleRate: 44100, Channels: 2}, n: 100, want: 50},
		{name: "zero channels treated as mono", format: Format{SampleRate: 8000}, n: 7, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.Frames(tt.n); got != tt.want {
				t.Errorf("Format.Frames(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

func TestFormat_Seconds(t *testing.T) {
	f := Format{SampleRate: 22050, Channels: 2}
	if got := f.Seconds(44100); got != 1 {
		t.Errorf("Seconds = %v, want 1", got)
	}
	if got := (Format{}).Seconds(10); got != 0 {
		t.Errorf("Seconds with zero rate = %v, want 0", got)
	}
}
