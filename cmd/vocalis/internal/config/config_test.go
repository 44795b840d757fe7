package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	batch := cfg.Detect.Pipeline(false)
	if batch.SampleRate != 22050 || batch.SegmentSeconds != 20 || batch.TargetFrames != 28 || batch.Workers != 8 || batch.Threshold != 0.5 {
		t.Errorf("batch = %+v", batch)
	}
	if svc := cfg.Detect.Pipeline(true); svc.SegmentSeconds != 5 {
		t.Errorf("service segment = %v, want 5", svc.SegmentSeconds)
	}
	if cfg.Voiceprint.SampleRate != 16000 || cfg.Voiceprint.GMM.Components != 16 {
		t.Errorf("voiceprint = %+v", cfg.Voiceprint)
	}
	if cfg.Server.MaxUpload() != 64<<20 {
		t.Errorf("max upload = %d", cfg.Server.MaxUpload())
	}
}

func TestLoadMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dir != dir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, dir)
	}
	if cfg.Store.Backend != BackendBadger {
		t.Errorf("backend = %q", cfg.Store.Backend)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `detect:
  segment_seconds: 10
voiceprint:
  gmm:
    components: 8
store:
  backend: s3
  bucket: prints
  s3:
    region: us-east-1
results:
  backend: memory
server:
  addr: 127.0.0.1:9000
  max_upload_mb: 1
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detect.SegmentSeconds != 10 {
		t.Errorf("segment_seconds = %v", cfg.Detect.SegmentSeconds)
	}
	// Untouched keys keep their defaults.
	if cfg.Detect.ServiceSegmentSeconds != 5 || cfg.Detect.SampleRate != 22050 {
		t.Errorf("detect = %+v", cfg.Detect)
	}
	if cfg.Voiceprint.GMM.Components != 8 || cfg.Voiceprint.GMM.NInit != 3 {
		t.Errorf("gmm = %+v", cfg.Voiceprint.GMM)
	}
	if cfg.Store.Backend != BackendS3 || cfg.Store.Bucket != "prints" || cfg.Store.S3.Region != "us-east-1" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Server.MaxUpload() != 1<<20 {
		t.Errorf("server = %+v", cfg.Server)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"store backend", "store:\n  backend: redis\n", "unknown backend"},
		{"results backend", "results:\n  backend: postgres\n", "unknown backend"},
		{"s3 without bucket", "store:\n  backend: s3\n", "bucket"},
		{"sqlite without path", "results:\n  backend: sqlite\n  path: \"\"\n", "path"},
		{"syntax", "detect: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	cfg := &Config{Dir: "/etc/vocalis"}
	if got := cfg.Resolve("voiceprints"); got != filepath.Join("/etc/vocalis", "voiceprints") {
		t.Errorf("Resolve relative = %q", got)
	}
	if got := cfg.Resolve("/var/lib/x"); got != "/var/lib/x" {
		t.Errorf("Resolve absolute = %q", got)
	}
	if got := cfg.Resolve(""); got != "" {
		t.Errorf("Resolve empty = %q", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Store.Backend = BackendLocal
	cfg.Detect.Workers = 3
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Store.Backend != BackendLocal || got.Detect.Workers != 3 {
		t.Errorf("loaded = %+v", got)
	}
}
