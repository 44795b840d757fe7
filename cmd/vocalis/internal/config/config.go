// Package config loads the vocalis configuration file.
//
// The file lives at os.UserConfigDir()/vocalis/config.yaml unless --config
// points elsewhere. A missing file yields [Default]. Relative paths inside
// the file are resolved against the file's directory.
//
//	detect:
//	  segment_seconds: 20
//	  service_segment_seconds: 5
//	voiceprint:
//	  gmm:
//	    components: 16
//	models:
//	  onnx_library: /usr/lib/libonnxruntime.so
//	  classifier: {path: models/classifier.onnx, input: input, output: output}
//	store:
//	  backend: badger
//	  dir: voiceprints
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/vocalis/pkg/audio/ingest"
	"github.com/haivivi/vocalis/pkg/detect"
	"github.com/haivivi/vocalis/pkg/gmm"
	"github.com/haivivi/vocalis/pkg/models"
	"github.com/haivivi/vocalis/pkg/server"
	"github.com/haivivi/vocalis/pkg/storage"
	"github.com/haivivi/vocalis/pkg/voiceprint"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "vocalis"

	// fileName is the configuration file inside appDir.
	fileName = "config.yaml"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
)

var (
	storeBackends   = []string{BackendBadger, BackendMemory, BackendLocal, BackendS3}
	resultsBackends = []string{BackendBadger, BackendSQLite, BackendMemory}
)

// Config is the root configuration.
type Config struct {
	// Dir is the directory of the loaded file. Relative paths resolve
	// against it.
	Dir string `yaml:"-" json:"-"`

	Detect     DetectConfig     `yaml:"detect" json:"detect"`
	Voiceprint VoiceprintConfig `yaml:"voiceprint" json:"voiceprint"`
	Models     models.Config    `yaml:"models" json:"models"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Results    ResultsConfig    `yaml:"results" json:"results"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
}

// DetectConfig holds the authenticity pipeline parameters shared by the
// batch and service presets.
type DetectConfig struct {
	SampleRate            int     `yaml:"sample_rate" json:"sample_rate"`
	SegmentSeconds        float64 `yaml:"segment_seconds" json:"segment_seconds"`
	ServiceSegmentSeconds float64 `yaml:"service_segment_seconds" json:"service_segment_seconds"`
	FeatureSampleRate     int     `yaml:"feature_sample_rate" json:"feature_sample_rate"`
	TargetFrames          int     `yaml:"target_frames" json:"target_frames"`
	Workers               int     `yaml:"workers" json:"workers"`
	Threshold             float64 `yaml:"threshold" json:"threshold"`
}

// Pipeline returns the detect.Config for the batch preset, or the service
// preset when service is set.
func (c DetectConfig) Pipeline(service bool) detect.Config {
	seconds := c.SegmentSeconds
	if service {
		seconds = c.ServiceSegmentSeconds
	}
	return detect.Config{
		SampleRate:        c.SampleRate,
		SegmentSeconds:    seconds,
		FeatureSampleRate: c.FeatureSampleRate,
		TargetFrames:      c.TargetFrames,
		Workers:           c.Workers,
		Threshold:         c.Threshold,
	}
}

// VoiceprintConfig configures speaker enrollment and verification.
type VoiceprintConfig struct {
	SampleRate int        `yaml:"sample_rate" json:"sample_rate"`
	Workers    int        `yaml:"workers" json:"workers"`
	GMM        gmm.Config `yaml:"gmm" json:"gmm"`
}

// StoreConfig selects the voiceprint store.
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"`

	// Dir is the badger directory or the local blob root.
	Dir string `yaml:"dir" json:"dir"`

	Bucket string           `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix string           `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	S3     storage.S3Config `yaml:"s3,omitempty" json:"s3,omitempty"`
}

// ResultsConfig selects the verdict log.
type ResultsConfig struct {
	Backend string `yaml:"backend" json:"backend"`

	// Path is the badger directory or the SQLite file.
	Path string `yaml:"path" json:"path"`
}

// ServerConfig configures `vocalis serve`.
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb" json:"max_upload_mb"`
}

// MaxUpload returns the request size limit in bytes.
func (c ServerConfig) MaxUpload() int64 {
	if c.MaxUploadMB <= 0 {
		return server.DefaultMaxUpload
	}
	return c.MaxUploadMB << 20
}

// IngestConfig configures audio decoding.
type IngestConfig struct {
	FFmpeg           string  `yaml:"ffmpeg" json:"ffmpeg"`
	SilenceThreshold float64 `yaml:"silence_threshold" json:"silence_threshold"`
	TempDir          string  `yaml:"temp_dir,omitempty" json:"temp_dir,omitempty"`
}

// Options returns the loader options for c.
func (c IngestConfig) Options() []ingest.Option {
	opts := []ingest.Option{ingest.WithSilenceThreshold(c.SilenceThreshold)}
	if c.FFmpeg != "" {
		opts = append(opts, ingest.WithFFmpeg(c.FFmpeg))
	}
	if c.TempDir != "" {
		opts = append(opts, ingest.WithTempDir(c.TempDir))
	}
	return opts
}

// Default returns the built-in configuration.
func Default() *Config {
	batch := detect.BatchConfig()
	return &Config{
		Detect: DetectConfig{
			SampleRate:            batch.SampleRate,
			SegmentSeconds:        batch.SegmentSeconds,
			ServiceSegmentSeconds: detect.ServiceConfig().SegmentSeconds,
			FeatureSampleRate:     batch.FeatureSampleRate,
			TargetFrames:          batch.TargetFrames,
			Workers:               batch.Workers,
			Threshold:             batch.Threshold,
		},
		Voiceprint: VoiceprintConfig{
			SampleRate: voiceprint.DefaultSampleRate,
			Workers:    batch.Workers,
			GMM:        gmm.DefaultConfig(),
		},
		Store: StoreConfig{
			Backend: BackendBadger,
			Dir:     "voiceprints",
		},
		Results: ResultsConfig{
			Backend: BackendSQLite,
			Path:    "results.db",
		},
		Server: ServerConfig{
			Addr:        ":8000",
			MaxUploadMB: server.DefaultMaxUpload >> 20,
		},
		Ingest: IngestConfig{
			FFmpeg:           "ffmpeg",
			SilenceThreshold: ingest.DefaultSilenceThreshold,
		},
	}
}

// DefaultPath returns os.UserConfigDir()/vocalis/config.yaml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load reads path over the defaults. An empty path means [DefaultPath].
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	cfg.Dir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks backend names and the fields each backend needs.
func (c *Config) Validate() error {
	if !slices.Contains(storeBackends, c.Store.Backend) {
		return fmt.Errorf("store: unknown backend %q (want one of %v)", c.Store.Backend, storeBackends)
	}
	if !slices.Contains(resultsBackends, c.Results.Backend) {
		return fmt.Errorf("results: unknown backend %q (want one of %v)", c.Results.Backend, resultsBackends)
	}
	switch c.Store.Backend {
	case BackendS3:
		if c.Store.Bucket == "" {
			return errors.New("store: s3 backend needs a bucket")
		}
	case BackendBadger, BackendLocal:
		if c.Store.Dir == "" {
			return fmt.Errorf("store: %s backend needs a dir", c.Store.Backend)
		}
	}
	if c.Results.Backend != BackendMemory && c.Results.Path == "" {
		return fmt.Errorf("results: %s backend needs a path", c.Results.Backend)
	}
	if c.Detect.SegmentSeconds <= 0 || c.Detect.ServiceSegmentSeconds <= 0 {
		return errors.New("detect: segment lengths must be positive")
	}
	return nil
}

// Resolve returns p joined to c.Dir when p is relative.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
