package voiceprint

import (
	"context"
	"fmt"
	"slices"

	"github.com/haivivi/vocalis/pkg/audio/wave"
	"github.com/haivivi/vocalis/pkg/pool"
)

// Outcome is the verification decision.
type Outcome string

const (
	Success Outcome = "success"
	Fail    Outcome = "fail"
)

// Score is the total log-likelihood of a test recording under one user's
// voiceprint.
type Score struct {
	User          string  `json:"user" yaml:"user"`
	LogLikelihood float64 `json:"log_likelihood" yaml:"log_likelihood"`
}

// Verification is the result of checking a claimed identity.
type Verification struct {
	Result     Outcome `json:"result" yaml:"result"`
	Claimed    string  `json:"claimed" yaml:"claimed"`
	Identified string  `json:"identified" yaml:"identified"`
	Frames     int     `json:"frames" yaml:"frames"`

	// Scores holds every enrolled user's score, best first.
	Scores []Score `json:"scores" yaml:"scores"`
}

// Accepted reports whether the claim succeeded.
func (v *Verification) Accepted() bool { return v.Result == Success }

// Verifier scores test recordings against every enrolled voiceprint.
type Verifier struct {
	store    Store
	features *FeatureExtractor
	settings
}

// NewVerifier returns a Verifier reading from store.
func NewVerifier(store Store, opts ...Option) (*Verifier, error) {
	s := newSettings(opts)
	fx, err := NewFeatureExtractor(s.rate)
	if err != nil {
		return nil, err
	}
	return &Verifier{store: store, features: fx, settings: s}, nil
}

// Verify checks whether buf was spoken by claimed.
func (v *Verifier) Verify(ctx context.Context, claimed string, buf *wave.Buffer) (*Verification, error) {
	if buf == nil || buf.Len() == 0 {
		return nil, ErrMissingTestAudio
	}
	rows, err := v.features.Features(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingTestAudio, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: recording shorter than one frame", ErrMissingTestAudio)
	}
	return v.VerifyFeatures(ctx, claimed, rows)
}

// VerifyFeatures checks precomputed feature rows against claimed.
func (v *Verifier) VerifyFeatures(ctx context.Context, claimed string, rows [][]float64) (*Verification, error) {
	scores, err := v.Identify(ctx, rows)
	if err != nil {
		return nil, err
	}
	res := &Verification{
		Result:     Fail,
		Claimed:    claimed,
		Identified: scores[0].User,
		Frames:     len(rows),
		Scores:     scores,
	}
	if res.Identified == claimed {
		res.Result = Success
	}
	v.logger.Info("voiceprint verified",
		"user", claimed,
		"identified", res.Identified,
		"result", res.Result,
		"frames", len(rows),
	)
	return res, nil
}

// Identify scores rows against every enrolled user, best first. Ties keep
// user-name order.
func (v *Verifier) Identify(ctx context.Context, rows [][]float64) ([]Score, error) {
	prints, err := v.store.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(prints) == 0 {
		return nil, ErrNoEnrolledUsers
	}

	results := pool.Map(ctx, v.workers, prints, func(_ context.Context, p *Voiceprint) (float64, error) {
		return p.Model.Score(rows)
	})
	scores := make([]Score, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			return nil, fmt.Errorf("voiceprint: score %s: %w", prints[r.Index].User, r.Err.Err)
		}
		scores = append(scores, Score{User: prints[r.Index].User, LogLikelihood: r.Value})
	}
	slices.SortStableFunc(scores, func(a, b Score) int {
		switch {
		case a.LogLikelihood > b.LogLikelihood:
			return -1
		case a.LogLikelihood < b.LogLikelihood:
			return 1
		}
		return 0
	})
	return scores, nil
}
