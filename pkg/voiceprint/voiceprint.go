// Package voiceprint enrolls speakers as Gaussian mixture voiceprints and
// verifies claimed identities against them.
//
// # Pipeline
//
//  1. Features: waveform → MFCC (20) → per-recording standardization →
//     first-order delta over ±2 frames → 40 columns per frame
//  2. Enroller.Enroll: feature rows of every enrollment recording are
//     stacked and a diagonal GMM is fit over them
//  3. Verifier.Verify: the test recording is scored against every enrolled
//     voiceprint; the best total log-likelihood wins and the claim is
//     accepted iff the winner is the claimed user
//
// Identification is closed-set: a claim can only succeed if its owner is
// enrolled, and an impostor is rejected only when some other enrolled user
// explains the audio better.
package voiceprint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haivivi/vocalis/pkg/gmm"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrInsufficientEnrollmentData is returned when the enrollment
	// recordings yield fewer feature rows than mixture components.
	ErrInsufficientEnrollmentData = errors.New("voiceprint: insufficient enrollment data")

	// ErrNoEnrolledUsers is returned by verification against an empty
	// store.
	ErrNoEnrolledUsers = errors.New("voiceprint: no enrolled users")

	// ErrMissingTestAudio is returned when the test recording is absent
	// or cannot be ingested.
	ErrMissingTestAudio = errors.New("voiceprint: missing test audio")

	// ErrNotEnrolled is returned when a user has no voiceprint.
	ErrNotEnrolled = errors.New("voiceprint: user not enrolled")

	// ErrInvalidUser is returned for user names that cannot be stored.
	ErrInvalidUser = errors.New("voiceprint: invalid user name")
)

// MaxUserLen bounds user names.
const MaxUserLen = 128

// ValidateUser rejects names that are empty, too long, or would escape a
// key or path segment. A leading dot is rejected because blob listings hide
// dot files.
func ValidateUser(user string) error {
	switch {
	case user == "", strings.HasPrefix(user, "."):
		return fmt.Errorf("%w: %q", ErrInvalidUser, user)
	case len(user) > MaxUserLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidUser, MaxUserLen)
	case strings.ContainsAny(user, "/\\:\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidUser, user)
	}
	return nil
}

// Voiceprint is one user's fitted density plus enrollment bookkeeping.
type Voiceprint struct {
	User       string     `msgpack:"user" json:"user"`
	Model      *gmm.Model `msgpack:"model" json:"-"`
	Recordings int        `msgpack:"recordings" json:"recordings"`
	Frames     int        `msgpack:"frames" json:"frames"`
	CreatedAt  time.Time  `msgpack:"created_at" json:"created_at"`
}

// Encode checks the model and serializes v.
func (v *Voiceprint) Encode() ([]byte, error) {
	if v.Model == nil {
		return nil, fmt.Errorf("voiceprint: encode %s: missing model", v.User)
	}
	if err := v.Model.Validate(); err != nil {
		return nil, fmt.Errorf("voiceprint: encode %s: %w", v.User, err)
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("voiceprint: encode %s: %w", v.User, err)
	}
	return data, nil
}

// Decode parses a blob produced by Encode and checks the model.
func Decode(data []byte) (*Voiceprint, error) {
	var v Voiceprint
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("voiceprint: decode: %w", err)
	}
	if v.Model == nil {
		return nil, fmt.Errorf("voiceprint: decode %s: missing model", v.User)
	}
	if err := v.Model.Validate(); err != nil {
		return nil, fmt.Errorf("voiceprint: decode %s: %w", v.User, err)
	}
	return &v, nil
}
