package commands

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// setupTestConfig writes a config using file-backed stores under a temp dir
// and points --config at it.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `voiceprint:
  gmm:
    components: 4
    n_init: 1
    max_iter: 30
store:
  backend: local
  dir: prints
results:
  backend: sqlite
  path: results.db
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func writeTone(t *testing.T, dir, name string, f0 float64) string {
	t.Helper()
	const rate = 16000
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	data := make([]int, rate)
	for i := range data {
		tt := float64(i) / rate
		data[i] = int(16000 * (math.Sin(2*math.Pi*f0*tt) + 0.3*math.Sin(2*math.Pi*2.7*f0*tt)) / 1.3)
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCmd(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	configPath = ""
	verbose = false
	outputFormat = "yaml"
	logFormat = "text"
	detectDir = ""
	detectService = false
	enrollUser = ""
	verifyUser = ""
	serveAddr = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(dir, "config.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	dir := setupTestConfig(t)
	out, err := runCmd(t, dir, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "vocalis ") {
		t.Errorf("version output = %q", out)
	}
}

func TestEnrollVerifyDelete(t *testing.T) {
	dir := setupTestConfig(t)
	a1 := writeTone(t, dir, "a1.wav", 150)
	a2 := writeTone(t, dir, "a2.wav", 155)
	test := writeTone(t, dir, "test.wav", 152)

	out, err := runCmd(t, dir, "users", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "users: []") {
		t.Errorf("empty list = %q", out)
	}

	if _, err := runCmd(t, dir, "verify", "--user", "alice", test); err == nil {
		t.Error("verify with nobody enrolled should fail")
	}

	out, err = runCmd(t, dir, "enroll", "--user", "alice", a1, a2)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if !strings.Contains(out, "recordings: 2") {
		t.Errorf("enroll output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "prints", "voiceprints", "alice.gmm")); err != nil {
		t.Errorf("voiceprint blob missing: %v", err)
	}

	out, err = runCmd(t, dir, "-o", "json", "verify", "--user", "alice", test)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out, `"result": "success"`) {
		t.Errorf("verify output = %q", out)
	}

	out, err = runCmd(t, dir, "users", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "- alice") {
		t.Errorf("list = %q", out)
	}

	if _, err := runCmd(t, dir, "users", "delete", "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := runCmd(t, dir, "users", "delete", "alice"); err == nil {
		t.Error("second delete should fail")
	}
}

func TestResultsEmpty(t *testing.T) {
	dir := setupTestConfig(t)
	_, err := runCmd(t, dir, "results")
	if err == nil || !strings.Contains(err.Error(), "no results") {
		t.Errorf("results error = %v", err)
	}
}

func TestDetectErrors(t *testing.T) {
	dir := setupTestConfig(t)
	if _, err := runCmd(t, dir, "detect"); err == nil {
		t.Error("detect without input should fail")
	}
	clip := writeTone(t, dir, "clip.wav", 200)
	if _, err := runCmd(t, dir, "detect", "--dir", dir, clip); err == nil {
		t.Error("detect with --dir and files should fail")
	}
	// No model paths are configured.
	_, err := runCmd(t, dir, "detect", clip)
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("detect error = %v", err)
	}
}

func TestBadOutputFormat(t *testing.T) {
	dir := setupTestConfig(t)
	if _, err := runCmd(t, dir, "-o", "xml", "users", "list"); err == nil {
		t.Error("unknown output format should fail")
	}
}
