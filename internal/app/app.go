// Package app wires the study engine's components from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/cache"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/config"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/extract"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/inference"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/models"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/monitoring"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/provider"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/storage"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/study"
)

// App holds the wired components.
type App struct {
	Config       *config.Config
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	DB           *sql.DB
	Store        *storage.ProgressStore
	Registry     *models.Registry
	Orchestrator *inference.Orchestrator
	Reporter     *monitoring.OutcomeReporter
	Service      *study.Service

	closers []func() error
}

// Options adjusts wiring.
type Options struct {
	// Prometheus receives the metrics collectors; nil disables metrics.
	Prometheus *prometheus.Registry
	// SkipStore runs without a database; outcomes are only logged and published.
	SkipStore bool
}

// New builds every component described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if cfg.Observability.MetricsEnabled {
		a.Metrics = observability.NewMetrics(opts.Prometheus)
	}

	// Step 1: text cache
	textCache, publisher, err := newCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	a.closers = append(a.closers, textCache.Close)

	// Step 2: progress store
	reporterOpts := []monitoring.ReporterOption{monitoring.WithMetrics(a.Metrics)}
	var serviceOpts []study.Option
	if !opts.SkipStore {
		db, err := storage.Open(ctx, cfg.Database)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		a.Store = storage.NewProgressStore(db, storage.WithPreviewChars(cfg.Pipeline.PreviewChars))
		reporterOpts = append(reporterOpts, monitoring.WithStore(a.Store))
		serviceOpts = append(serviceOpts, study.WithRecorder(a.Store))
	}
	if publisher != nil {
		reporterOpts = append(reporterOpts, monitoring.WithPublisher(publisher, cfg.Cache.Redis.OutcomeChannel))
	}
	a.Reporter = monitoring.NewOutcomeReporter(logger, reporterOpts...)

	// Step 3: models
	p, err := provider.New(cfg.Models, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Registry = models.NewRegistry(p, logger,
		models.WithLimit(domain.CapabilitySummarization, cfg.Models.Summarizer.MaxInputChars),
		models.WithLimit(domain.CapabilityQA, cfg.Models.QA.MaxInputChars),
		models.WithLimit(domain.CapabilityQuestionGeneration, cfg.Models.QuestionGen.MaxInputChars),
		models.WithMetrics(a.Metrics),
	)

	// Step 4: orchestrator and facade
	a.Orchestrator = inference.NewOrchestrator(a.Registry, logger,
		inference.WithPolicy(Policy(cfg.Pipeline)),
		inference.WithOutcomeSink(a.Reporter),
		inference.WithMetrics(a.Metrics),
	)

	extractor := extract.NewService(logger,
		extract.WithMaxUploadBytes(cfg.Extraction.MaxUploadBytes),
		extract.WithMetrics(a.Metrics),
	)

	a.Service = study.NewService(extractor, textCache, a.Registry, a.Orchestrator, study.Config{
		CacheTTL:     cfg.Cache.TTL,
		PreviewChars: cfg.Pipeline.PreviewChars,
	}, logger, serviceOpts...)

	return a, nil
}

// Policy converts pipeline configuration into an orchestrator policy.
func Policy(p config.PipelineConfig) inference.Policy {
	return inference.Policy{
		ConfidenceThreshold: p.ConfidenceThreshold,
		SummaryOverlap:      p.SummaryOverlap,
		SummaryMaxWindows:   p.SummaryMaxWindows,
		SummaryMinWords:     p.SummaryMinWords,
		SummaryMinLength:    p.SummaryMinLength,
		SummaryMaxLength:    p.SummaryMaxLength,
		QuizMinWords:        p.QuizMinWords,
		QuizMaxLength:       p.QuizMaxLength,
	}
}

// Close releases the cache and database in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newCache(cfg config.CacheConfig) (cache.Client, cache.Publisher, error) {
	if cfg.Driver == "redis" {
		c, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     strings.TrimPrefix(cfg.Redis.Addr, "redis://"),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}

	c, err := cache.NewMemoryClient(cfg.MaxEntries)
	if err != nil {
		return nil, nil, err
	}
	return c, nil, nil
}
