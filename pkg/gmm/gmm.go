// Package gmm fits diagonal-covariance Gaussian mixture models with
// expectation-maximization and scores feature rows under them.
//
// Fitting follows the usual recipe: k-means++ seeding refined by a few Lloyd
// iterations, EM until the mean log-likelihood improves by less than Tol or
// MaxIter is reached, repeated NInit times from different seeds, keeping the
// run with the best final likelihood. A fixed Seed makes fits reproducible.
package gmm

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrInsufficientData is returned when there are fewer rows than
	// mixture components.
	ErrInsufficientData = errors.New("gmm: insufficient data")

	// ErrDimension is returned for ragged input or rows whose width does
	// not match the model.
	ErrDimension = errors.New("gmm: dimension mismatch")

	// ErrNonFinite is returned for a model holding NaN or infinite
	// parameters.
	ErrNonFinite = errors.New("gmm: non-finite parameters")
)

// Config holds the fit parameters.
type Config struct {
	Components int     `yaml:"components" json:"components"`
	NInit      int     `yaml:"n_init" json:"n_init"`
	MaxIter    int     `yaml:"max_iter" json:"max_iter"`
	Tol        float64 `yaml:"tol" json:"tol"`
	RegCovar   float64 `yaml:"reg_covar" json:"reg_covar"`
	Seed       uint64  `yaml:"seed" json:"seed"`
}

// DefaultConfig returns 16 components, 3 initializations and at most 200
// EM iterations.
func DefaultConfig() Config {
	return Config{
		Components: 16,
		NInit:      3,
		MaxIter:    200,
		Tol:        1e-3,
		RegCovar:   1e-6,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Components <= 0 {
		c.Components = d.Components
	}
	if c.NInit <= 0 {
		c.NInit = d.NInit
	}
	if c.MaxIter <= 0 {
		c.MaxIter = d.MaxIter
	}
	if c.Tol <= 0 {
		c.Tol = d.Tol
	}
	if c.RegCovar <= 0 {
		c.RegCovar = d.RegCovar
	}
	return c
}

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16

// Model is a fitted mixture. The exported fields are the full state, so a
// Model round-trips through msgpack or JSON unchanged.
type Model struct {
	Weights   []float64   `msgpack:"weights" json:"weights"`
	Means     [][]float64 `msgpack:"means" json:"means"`
	Variances [][]float64 `msgpack:"variances" json:"variances"`

	Converged  bool    `msgpack:"converged" json:"converged"`
	Iterations int     `msgpack:"iterations" json:"iterations"`
	LowerBound float64 `msgpack:"lower_bound" json:"lower_bound"`
}

// Components returns the number of mixture components.
func (m *Model) Components() int { return len(m.Weights) }

// Dim returns the feature dimension.
func (m *Model) Dim() int {
	if len(m.Means) == 0 {
		return 0
	}
	return len(m.Means[0])
}

// Validate checks that the model is internally consistent.
func (m *Model) Validate() error {
	k := len(m.Weights)
	if k == 0 || len(m.Means) != k || len(m.Variances) != k {
		return fmt.Errorf("%w: %d weights, %d means, %d variances", ErrDimension, k, len(m.Means), len(m.Variances))
	}
	d := m.Dim()
	for i := range k {
		if len(m.Means[i]) != d || len(m.Variances[i]) != d {
			return fmt.Errorf("%w: component %d", ErrDimension, i)
		}
		if w := m.Weights[i]; !(w >= 0) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: component %d has weight %v", ErrNonFinite, i, w)
		}
		for _, v := range m.Means[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: component %d has mean %v", ErrNonFinite, i, v)
			}
		}
		for _, v := range m.Variances[i] {
			if !(v > 0) || math.IsInf(v, 0) {
				return fmt.Errorf("gmm: component %d has non-positive variance", i)
			}
		}
	}
	return nil
}

// Fit fits a mixture to rows with cfg. Zero fields of cfg take their
// DefaultConfig values.
func Fit(rows [][]float64, cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	if len(rows) < cfg.Components {
		return nil, fmt.Errorf("%w: %d rows for %d components", ErrInsufficientData, len(rows), cfg.Components)
	}
	d, err := width(rows)
	if err != nil {
		return nil, err
	}
	if d == 0 {
		return nil, fmt.Errorf("%w: zero-width rows", ErrDimension)
	}

	var (
		best    *Model
		lastErr error
	)
	for run := range cfg.NInit {
		rng := rand.New(rand.NewPCG(cfg.Seed, uint64(run)+0x9e3779b97f4a7c15))
		m := fitOnce(rows, d, cfg, rng)
		if err := m.Validate(); err != nil {
			lastErr = err
			continue
		}
		if math.IsNaN(m.LowerBound) {
			lastErr = fmt.Errorf("%w: lower bound", ErrNonFinite)
			continue
		}
		if best == nil || m.LowerBound > best.LowerBound {
			best = m
		}
	}
	if best == nil {
		return nil, fmt.Errorf("gmm: no initialization produced a valid model: %w", lastErr)
	}
	return best, nil
}

func width(rows [][]float64) (int, error) {
	d := len(rows[0])
	for i, r := range rows {
		if len(r) != d {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimension, i, len(r), d)
		}
		for _, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("gmm: row %d has non-finite value", i)
			}
		}
	}
	return d, nil
}

func fitOnce(rows [][]float64, d int, cfg Config, rng *rand.Rand) *Model {
	n, k := len(rows), cfg.Components
	resp := newMatrix(n, k)
	for i, c := range kmeans(rows, k, rng) {
		resp[i][c] = 1
	}

	m := &Model{
		Weights:   make([]float64, k),
		Means:     newMatrix(k, d),
		Variances: newMatrix(k, d),
	}
	m.mStep(rows, resp, cfg.RegCovar)

	lb := math.Inf(-1)
	for it := 1; it <= cfg.MaxIter; it++ {
		prev := lb
		lb = m.eStep(rows, resp)
		m.mStep(rows, resp, cfg.RegCovar)
		m.Iterations = it
		if math.Abs(lb-prev) < cfg.Tol {
			m.Converged = true
			break
		}
	}
	// Final bound under the last M-step parameters.
	m.LowerBound = m.eStep(rows, resp)
	return m
}

// eStep fills resp with posterior responsibilities and returns the mean
// log-likelihood per row.
func (m *Model) eStep(rows [][]float64, resp [][]float64) float64 {
	var total float64
	for i, x := range rows {
		r := resp[i]
		m.weightedLogProb(x, r)
		norm := floats.LogSumExp(r)
		for j := range r {
			r[j] = math.Exp(r[j] - norm)
		}
		total += norm
	}
	return total / float64(len(rows))
}

func (m *Model) mStep(rows [][]float64, resp [][]float64, reg float64) {
	n := float64(len(rows))
	// Keeps empty components finite: mean 0, variance reg.
	const eps = 10 * epsilon
	for j := range m.Weights {
		mean, vr := m.Means[j], m.Variances[j]
		for c := range mean {
			mean[c], vr[c] = 0, 0
		}
		var nk float64
		for i, x := range rows {
			w := resp[i][j]
			if w == 0 {
				continue
			}
			nk += w
			floats.AddScaled(mean, w, x)
		}
		nk += eps
		floats.Scale(1/nk, mean)
		for i, x := range rows {
			w := resp[i][j]
			if w == 0 {
				continue
			}
			for c, v := range x {
				diff := v - mean[c]
				vr[c] += w * diff * diff
			}
		}
		for c := range vr {
			vr[c] = vr[c]/nk + reg
		}
		m.Weights[j] = nk / n
	}
	floats.Scale(1/floats.Sum(m.Weights), m.Weights)
}

// weightedLogProb writes log(w_j) + log N(x | mu_j, diag(var_j)) into dst.
func (m *Model) weightedLogProb(x, dst []float64) {
	d := float64(len(x))
	for j := range m.Weights {
		mean, vr := m.Means[j], m.Variances[j]
		var q, logdet float64
		for c, v := range x {
			diff := v - mean[c]
			q += diff * diff / vr[c]
			logdet += math.Log(vr[c])
		}
		dst[j] = math.Log(m.Weights[j]) - 0.5*(d*math.Log(2*math.Pi)+logdet+q)
	}
}

// LogLikelihood returns the log density of each row under the mixture.
func (m *Model) LogLikelihood(rows [][]float64) ([]float64, error) {
	d := m.Dim()
	out := make([]float64, len(rows))
	buf := make([]float64, m.Components())
	for i, x := range rows {
		if len(x) != d {
			return nil, fmt.Errorf("%w: row %d has %d columns, model has %d", ErrDimension, i, len(x), d)
		}
		m.weightedLogProb(x, buf)
		out[i] = floats.LogSumExp(buf)
	}
	return out, nil
}

// Score returns the total log-likelihood of rows, the sum of the per-row
// log densities.
func (m *Model) Score(rows [][]float64) (float64, error) {
	ll, err := m.LogLikelihood(rows)
	if err != nil {
		return 0, err
	}
	return floats.Sum(ll), nil
}

func newMatrix(r, c int) [][]float64 {
	backing := make([]float64, r*c)
	m := make([][]float64, r)
	for i := range m {
		m[i] = backing[i*c : (i+1)*c : (i+1)*c]
	}
	return m
}
