package detect

import (
	"fmt"

	"github.com/haivivi/vocalis/pkg/classify"
	"github.com/haivivi/vocalis/pkg/features"
	"github.com/haivivi/vocalis/pkg/fusion"
	"github.com/haivivi/vocalis/pkg/pool"
)

// Config holds the pipeline parameters.
type Config struct {
	// SampleRate is the canonical rate of loaded audio and segments.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// SegmentSeconds is the fixed segment length.
	SegmentSeconds float64 `yaml:"segment_seconds" json:"segment_seconds"`

	// FeatureSampleRate is the handcrafted descriptor analysis rate.
	FeatureSampleRate int `yaml:"feature_sample_rate" json:"feature_sample_rate"`

	// TargetFrames is the fused time length.
	TargetFrames int `yaml:"target_frames" json:"target_frames"`

	// Workers bounds every extraction batch.
	Workers int `yaml:"workers" json:"workers"`

	// Threshold separates REAL from FAKE.
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// BatchConfig returns the file-batch preset with 20 s segments.
func BatchConfig() Config {
	return Config{
		SampleRate:        22050,
		SegmentSeconds:    20,
		FeatureSampleRate: features.DefaultSampleRate,
		TargetFrames:      fusion.DefaultTargetFrames,
		Workers:           pool.DefaultWorkers,
		Threshold:         classify.DefaultThreshold,
	}
}

// ServiceConfig returns the upload-service preset with 5 s segments.
func ServiceConfig() Config {
	c := BatchConfig()
	c.SegmentSeconds = 5
	return c
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("detect: invalid sample rate %d", c.SampleRate)
	case c.SegmentSeconds <= 0:
		return fmt.Errorf("detect: invalid segment length %v", c.SegmentSeconds)
	case c.FeatureSampleRate <= 0:
		return fmt.Errorf("detect: invalid feature sample rate %d", c.FeatureSampleRate)
	case c.TargetFrames <= 0:
		return fmt.Errorf("detect: invalid target frames %d", c.TargetFrames)
	case c.Threshold < 0 || c.Threshold > 1:
		return fmt.Errorf("detect: threshold %v outside [0, 1]", c.Threshold)
	}
	return nil
}
