package detect

import (
	"errors"
	"fmt"

	"github.com/haivivi/vocalis/pkg/audio/ingest"
	"github.com/haivivi/vocalis/pkg/fusion"
)

// Kind classifies a per-input failure.
type Kind string

const (
	UnreadableAudio      Kind = "UnreadableAudio"
	UnsupportedFormat    Kind = "UnsupportedFormat"
	SilentAudio          Kind = "SilentAudio"
	ShapeMismatch        Kind = "ShapeMismatch"
	ExtractionJobFailure Kind = "ExtractionJobFailure"
)

// Failure reports why one input was excluded from the batch.
type Failure struct {
	Index    int    `json:"index" yaml:"index"`
	Filename string `json:"filename" yaml:"filename"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Reason   string `json:"reason" yaml:"reason"`

	err error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.Filename, f.Kind, f.Reason)
}

func (f Failure) Unwrap() error { return f.err }

func newFailure(index int, name string, err error) Failure {
	return Failure{Index: index, Filename: name, Kind: kindOf(err), Reason: err.Error(), err: err}
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return UnsupportedFormat
	case errors.Is(err, ingest.ErrSilentAudio):
		return SilentAudio
	case errors.Is(err, ingest.ErrUnreadableAudio):
		return UnreadableAudio
	case errors.Is(err, fusion.ErrShapeMismatch):
		return ShapeMismatch
	default:
		return ExtractionJobFailure
	}
}

// ErrAllFailed is returned when no input of a batch produced a verdict.
var ErrAllFailed = errors.New("detect: every input failed")
