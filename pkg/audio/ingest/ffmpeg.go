package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// convertBytes writes data to a request-scoped temporary file and converts
// it with ffmpeg. The file is removed on every return path.
func (l *Loader) convertBytes(ctx context.Context, ext string, data []byte) ([]byte, error) {
	f, err := os.CreateTemp(l.tempDir, "vocalis-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return l.runFFmpeg(ctx, path)
}

// runFFmpeg decodes input to raw 16-bit mono PCM at the loader's rate.
func (l *Loader) runFFmpeg(ctx context.Context, input string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, l.ffmpeg,
		"-nostdin",
		"-v", "error",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(l.sampleRate),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("ffmpeg: %w", err)
		}
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}
