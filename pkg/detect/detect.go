// Package detect runs the voice authenticity pipeline: it loads a batch of
// recordings, splits them into fixed-length segments, extracts the learned
// embedding and the handcrafted descriptor of every segment in parallel,
// fuses them and classifies each file as REAL or FAKE.
//
// A bad input never aborts its batch. Each failing file is reported in
// Response.Failures with a Kind, and the rest still get predictions. Only
// an unavailable model, a classifier error or a result-store error fails
// the whole request.
package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/vocalis/pkg/audio/ingest"
	"github.com/haivivi/vocalis/pkg/audio/resampler"
	"github.com/haivivi/vocalis/pkg/audio/wave"
	"github.com/haivivi/vocalis/pkg/classify"
	"github.com/haivivi/vocalis/pkg/embedding"
	"github.com/haivivi/vocalis/pkg/features"
	"github.com/haivivi/vocalis/pkg/fusion"
	"github.com/haivivi/vocalis/pkg/pool"
	"github.com/haivivi/vocalis/pkg/results"
	"github.com/haivivi/vocalis/pkg/tensor"
)

// Models supplies the shared inference models. *models.Registry
// implements it.
type Models interface {
	Embedding() (embedding.Model, error)
	Classifier() (classify.Classifier, error)
}

// Input is one recording. Either Path or Data is set; Name is reported
// back and selects the decoder by extension.
type Input struct {
	Name string
	Path string
	Data []byte
}

// FileInput returns an Input for the file at path.
func FileInput(path string) Input {
	return Input{Name: filepath.Base(path), Path: path}
}

// Prediction is the verdict for one input.
type Prediction struct {
	Index       int            `json:"index" yaml:"index"`
	Filename    string         `json:"filename" yaml:"filename"`
	Label       classify.Label `json:"prediction" yaml:"prediction"`
	Probability float64        `json:"probability" yaml:"probability"`
	Segments    []float64      `json:"segments" yaml:"segments"`
	Duration    float64        `json:"duration_seconds" yaml:"duration_seconds"`
}

// Response is the outcome of one request.
type Response struct {
	RequestID string `json:"request_id" yaml:"request_id"`

	// Predictions holds one entry per successful input, in input order.
	Predictions []Prediction `json:"predictions" yaml:"predictions"`

	// FeaturesShape is [fused segments, target frames, fused width].
	FeaturesShape []int `json:"features_shape" yaml:"features_shape"`

	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Labels returns the label of every prediction, in order.
func (r *Response) Labels() []classify.Label {
	out := make([]classify.Label, len(r.Predictions))
	for i, p := range r.Predictions {
		out[i] = p.Label
	}
	return out
}

// Pipeline is shared by all requests and holds no request state.
type Pipeline struct {
	models   Models
	cfg      Config
	loader   *ingest.Loader
	features *features.Extractor
	results  results.Store
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig replaces the BatchConfig default.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithLoader sets the audio loader. Its rate must equal Config.SampleRate.
func WithLoader(l *ingest.Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithResults appends every prediction to s.
func WithResults(s results.Store) Option {
	return func(p *Pipeline) { p.results = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New returns a Pipeline over models.
func New(models Models, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		models: models,
		cfg:    BatchConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.cfg.validate(); err != nil {
		return nil, err
	}
	if p.loader == nil {
		p.loader = ingest.NewLoader(p.cfg.SampleRate, ingest.WithLogger(p.logger))
	}
	if p.loader.SampleRate() != p.cfg.SampleRate {
		return nil, fmt.Errorf("detect: loader rate %d differs from pipeline rate %d", p.loader.SampleRate(), p.cfg.SampleRate)
	}
	fx, err := features.New(p.cfg.FeatureSampleRate)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	p.features = fx
	return p, nil
}

// Config returns the pipeline parameters.
func (p *Pipeline) Config() Config { return p.cfg }

// job is one segment of one loaded file.
type job struct {
	file int
	seg  wave.Segment
}

// Detect classifies every input. When all inputs fail the Response is still
// returned, together with an error wrapping ErrAllFailed and every failure.
func (p *Pipeline) Detect(ctx context.Context, inputs []Input) (*Response, error) {
	resp := &Response{RequestID: uuid.NewString()}
	logger := p.logger.With("request", resp.RequestID)

	emb, err := p.models.Embedding()
	if err != nil {
		return nil, err
	}
	clf, err := p.models.Classifier()
	if err != nil {
		return nil, err
	}

	failed := make(map[int]Failure)
	fail := func(i int, err error) {
		if _, ok := failed[i]; ok {
			return
		}
		f := newFailure(i, inputs[i].Name, err)
		failed[i] = f
		logger.Warn("input excluded", "file", f.Filename, "kind", f.Kind, "error", err)
	}

	// Load.
	loaded := pool.Map(ctx, p.cfg.Workers, inputs, p.load)
	var jobs []job
	for _, r := range loaded {
		if !r.OK() {
			fail(r.Index, r.Err.Err)
			continue
		}
		segs, err := wave.SplitSeconds(r.Value, p.cfg.SegmentSeconds)
		if err != nil {
			fail(r.Index, err)
			continue
		}
		logger.Debug("segmented", "file", inputs[r.Index].Name,
			"samples", r.Value.Len(), "segments", len(segs))
		for _, s := range segs {
			jobs = append(jobs, job{file: r.Index, seg: s})
		}
	}

	// Extract both streams. Each batch is internally parallel.
	embeds := pool.Map(ctx, p.cfg.Workers, jobs, func(ctx context.Context, j job) (*tensor.Tensor, error) {
		return p.embed(ctx, emb, j.seg)
	})
	descs := pool.Map(ctx, p.cfg.Workers, jobs, func(_ context.Context, j job) ([]float64, error) {
		return p.features.ExtractSegment(j.seg)
	})

	// Fuse, grouping by file in segment order.
	fused := make(map[int][]*tensor.Tensor)
	for i, j := range jobs {
		if _, ok := failed[j.file]; ok {
			continue
		}
		if !embeds[i].OK() {
			fail(j.file, fmt.Errorf("segment %d embedding: %w", j.seg.Index, embeds[i].Err))
			continue
		}
		if !descs[i].OK() {
			fail(j.file, fmt.Errorf("segment %d features: %w", j.seg.Index, descs[i].Err))
			continue
		}
		e := embeds[i].Value
		if w := e.Size(tensor.Feature); w != emb.Dim() {
			fail(j.file, fmt.Errorf("segment %d: %w: embedding width %d, want %d",
				j.seg.Index, fusion.ErrShapeMismatch, w, emb.Dim()))
			continue
		}
		t, err := fusion.Fuse(e, fusion.Float32(descs[i].Value), p.cfg.TargetFrames)
		if err != nil {
			fail(j.file, fmt.Errorf("segment %d: %w", j.seg.Index, err))
			continue
		}
		logger.Debug("fused", "file", inputs[j.file].Name, "segment", j.seg.Index,
			"embedding", e.String(), "fused", t.String())
		fused[j.file] = append(fused[j.file], t)
	}

	// Classify each surviving file on its own.
	agg := classify.NewAggregator(clf, classify.WithThreshold(p.cfg.Threshold))
	var total int
	for i, in := range inputs {
		if _, ok := failed[i]; ok {
			continue
		}
		segs := fused[i]
		v, err := agg.Classify(ctx, segs)
		if err != nil {
			return nil, fmt.Errorf("detect: %s: %w", in.Name, err)
		}
		total += len(segs)
		resp.Predictions = append(resp.Predictions, Prediction{
			Index:       i,
			Filename:    in.Name,
			Label:       v.Label,
			Probability: v.Probability,
			Segments:    v.Segments,
			Duration:    loaded[i].Value.Duration().Seconds(),
		})
		logger.Info("classified", "file", in.Name, "prediction", v.Label,
			"probability", v.Probability, "segments", len(segs))
	}
	resp.FeaturesShape = fusion.Shape(total, p.cfg.TargetFrames, emb.Dim(), features.Dim)

	for i := range inputs {
		if f, ok := failed[i]; ok {
			resp.Failures = append(resp.Failures, f)
		}
	}

	if len(resp.Predictions) == 0 && len(inputs) > 0 {
		errs := []error{ErrAllFailed}
		for _, f := range resp.Failures {
			errs = append(errs, f)
		}
		return resp, errors.Join(errs...)
	}

	if err := p.record(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *Pipeline) load(ctx context.Context, in Input) (*wave.Buffer, error) {
	if in.Path != "" {
		return p.loader.LoadFile(ctx, in.Path)
	}
	return p.loader.LoadReader(ctx, in.Name, bytes.NewReader(in.Data))
}

func (p *Pipeline) embed(ctx context.Context, m embedding.Model, seg wave.Segment) (*tensor.Tensor, error) {
	if rate := m.SampleRate(); rate > 0 && rate != seg.SampleRate {
		x, err := resampler.Resample(seg.Samples, seg.SampleRate, rate)
		if err != nil {
			return nil, err
		}
		seg.Samples, seg.SampleRate = x, rate
	}
	return m.Embed(ctx, seg)
}

func (p *Pipeline) record(ctx context.Context, resp *Response) error {
	if p.results == nil || len(resp.Predictions) == 0 {
		return nil
	}
	now := p.now()
	recs := make([]results.Record, len(resp.Predictions))
	for i, pr := range resp.Predictions {
		recs[i] = results.Record{
			RequestID:   resp.RequestID,
			Filename:    pr.Filename,
			Prediction:  string(pr.Label),
			Probability: pr.Probability,
			Segments:    len(pr.Segments),
			CreatedAt:   now,
		}
	}
	if err := p.results.Append(ctx, recs...); err != nil {
		return fmt.Errorf("detect: record results: %w", err)
	}
	return nil
}

// DetectFile classifies a single file. Its failure, if any, is returned as
// the error.
func (p *Pipeline) DetectFile(ctx context.Context, path string) (*Prediction, error) {
	resp, err := p.Detect(ctx, []Input{FileInput(path)})
	if err != nil {
		return nil, err
	}
	return &resp.Predictions[0], nil
}

// DetectDir classifies every file with an accepted extension directly in
// dir. os.ReadDir sorts by name, so predictions come back in name order.
func (p *Pipeline) DetectDir(ctx context.Context, dir string) (*Response, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	var inputs []Input
	for _, e := range entries {
		if e.Type().IsRegular() && ingest.Allowed(e.Name()) {
			inputs = append(inputs, FileInput(filepath.Join(dir, e.Name())))
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("detect: no audio files in %s", dir)
	}
	return p.Detect(ctx, inputs)
}
