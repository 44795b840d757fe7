package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/haivivi/vocalis/cmd/vocalis/internal/config"
	"github.com/haivivi/vocalis/pkg/audio/ingest"
	"github.com/haivivi/vocalis/pkg/detect"
	"github.com/haivivi/vocalis/pkg/kv"
	"github.com/haivivi/vocalis/pkg/models"
	"github.com/haivivi/vocalis/pkg/results"
	"github.com/haivivi/vocalis/pkg/storage"
	"github.com/haivivi/vocalis/pkg/voiceprint"
)

// app wires configuration into the library components a command needs.
// Everything is opened on first use and released by Close.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	models  *models.Registry
	results results.Store
	prints  voiceprint.Store

	closers []io.Closer
}

func newApp(cfg *config.Config) *app {
	return &app{cfg: cfg, logger: slog.Default()}
}

// openApp loads the configuration and returns an app over it.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg), nil
}

// Close releases everything the app opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) registry() *models.Registry {
	if a.models == nil {
		mc := a.cfg.Models
		mc.Library = a.cfg.Resolve(mc.Library)
		mc.Embedding.Path = a.cfg.Resolve(mc.Embedding.Path)
		mc.Classifier.Path = a.cfg.Resolve(mc.Classifier.Path)
		a.models = models.NewRegistry(mc, models.WithLogger(a.logger))
		a.closers = append(a.closers, a.models)
	}
	return a.models
}

func (a *app) resultStore() (results.Store, error) {
	if a.results != nil {
		return a.results, nil
	}
	rc := a.cfg.Results
	var (
		s   results.Store
		err error
	)
	switch rc.Backend {
	case config.BackendSQLite:
		s, err = results.OpenSQLite(a.cfg.Resolve(rc.Path))
	case config.BackendBadger:
		var db *kv.Badger
		db, err = kv.NewBadger(kv.BadgerOptions{Dir: a.cfg.Resolve(rc.Path), Logger: a.logger})
		if err == nil {
			s = results.NewKVStore(db)
		}
	case config.BackendMemory:
		s = results.NewMemory()
	default:
		err = fmt.Errorf("unknown results backend %q", rc.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	a.results = s
	a.closers = append(a.closers, s)
	return s, nil
}

func (a *app) voiceprintStore() (voiceprint.Store, error) {
	if a.prints != nil {
		return a.prints, nil
	}
	sc := a.cfg.Store
	switch sc.Backend {
	case config.BackendBadger:
		db, err := kv.NewBadger(kv.BadgerOptions{Dir: a.cfg.Resolve(sc.Dir), Logger: a.logger})
		if err != nil {
			return nil, fmt.Errorf("open voiceprint store: %w", err)
		}
		a.closers = append(a.closers, db)
		a.prints = voiceprint.NewKVStore(db)
	case config.BackendMemory:
		a.prints = voiceprint.NewKVStore(kv.NewMemory(nil))
	case config.BackendLocal:
		local, err := storage.NewLocal(a.cfg.Resolve(sc.Dir))
		if err != nil {
			return nil, fmt.Errorf("open voiceprint store: %w", err)
		}
		a.prints = voiceprint.NewBlobStore(local, "")
	case config.BackendS3:
		client := storage.NewS3Client(sc.S3)
		a.prints = voiceprint.NewBlobStore(storage.NewS3(client, sc.Bucket, sc.Prefix), "")
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
	a.logger.Debug("voiceprint store opened", "backend", sc.Backend)
	return a.prints, nil
}

func (a *app) loader(sampleRate int) *ingest.Loader {
	opts := append(a.cfg.Ingest.Options(), ingest.WithLogger(a.logger))
	return ingest.NewLoader(sampleRate, opts...)
}

// pipeline builds the detection pipeline; service selects the short
// segment preset.
func (a *app) pipeline(service bool) (*detect.Pipeline, error) {
	rs, err := a.resultStore()
	if err != nil {
		return nil, err
	}
	dc := a.cfg.Detect.Pipeline(service)
	return detect.New(a.registry(),
		detect.WithConfig(dc),
		detect.WithLoader(a.loader(dc.SampleRate)),
		detect.WithResults(rs),
		detect.WithLogger(a.logger),
	)
}

func (a *app) voiceprintOptions() []voiceprint.Option {
	vc := a.cfg.Voiceprint
	return []voiceprint.Option{
		voiceprint.WithGMM(vc.GMM),
		voiceprint.WithSampleRate(vc.SampleRate),
		voiceprint.WithWorkers(vc.Workers),
		voiceprint.WithLogger(a.logger),
	}
}

func (a *app) enroller() (*voiceprint.Enroller, error) {
	store, err := a.voiceprintStore()
	if err != nil {
		return nil, err
	}
	return voiceprint.NewEnroller(store, a.voiceprintOptions()...)
}

func (a *app) verifier() (*voiceprint.Verifier, error) {
	store, err := a.voiceprintStore()
	if err != nil {
		return nil, err
	}
	return voiceprint.NewVerifier(store, a.voiceprintOptions()...)
}

// speakerLoader decodes recordings at the speaker-feature rate.
func (a *app) speakerLoader() *ingest.Loader {
	return a.loader(a.cfg.Voiceprint.SampleRate)
}
