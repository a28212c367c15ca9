// Package app initializes and holds the services of a single run, acting as a
// dependency injection container.
package app

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-fetcher/internal/batch"
	"github.com/JakeFAU/research-fetcher/internal/cache"
	"github.com/JakeFAU/research-fetcher/internal/clock"
	"github.com/JakeFAU/research-fetcher/internal/config"
	"github.com/JakeFAU/research-fetcher/internal/fetcher"
	collyfetcher "github.com/JakeFAU/research-fetcher/internal/fetcher/colly"
	"github.com/JakeFAU/research-fetcher/internal/fetcher/reader"
	"github.com/JakeFAU/research-fetcher/internal/fetcher/wayback"
	"github.com/JakeFAU/research-fetcher/internal/hash"
	"github.com/JakeFAU/research-fetcher/internal/id/uuid"
	"github.com/JakeFAU/research-fetcher/internal/logging"
	"github.com/JakeFAU/research-fetcher/internal/metrics"
	"github.com/JakeFAU/research-fetcher/internal/ratelimit"
	"github.com/JakeFAU/research-fetcher/internal/research"
	"github.com/JakeFAU/research-fetcher/internal/urlguard"
)

// App holds the shared services for one invocation. It is built once by the
// root command and closed when the command finishes.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    string
	fs       afero.Fs
	clock    research.Clock
	registry *prometheus.Registry
	metrics  *metrics.Collectors
}

// Option customizes NewApp.
type Option func(*App)

// WithFs replaces the OS filesystem used for the cache and for input/output.
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithClock replaces the system clock.
func WithClock(c research.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

// NewApp creates the services described by cfg. It touches neither the
// network nor the cache directory.
func NewApp(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logger
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	if a.clock == nil {
		a.clock = clock.NewSystem()
	}

	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	a.runID = runID
	a.logger = a.logger.With(zap.String("run_id", a.runID))

	a.registry = prometheus.NewRegistry()
	collectors, err := metrics.New(a.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.metrics = collectors

	return a, nil
}

// GetLogger returns the run logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetFs returns the filesystem used for input, output and cache.
func (a *App) GetFs() afero.Fs {
	return a.fs
}

// GetClock returns the run clock.
func (a *App) GetClock() research.Clock {
	return a.clock
}

// RunID identifies this invocation in logs.
func (a *App) RunID() string {
	return a.runID
}

// CacheStore opens the page cache. The directory is not created until the
// first entry is saved.
func (a *App) CacheStore() (*cache.Store, error) {
	hasher, err := hash.New(a.cfg.Cache.KeyHash)
	if err != nil {
		return nil, fmt.Errorf("cache hasher: %w", err)
	}
	store, err := cache.New(a.fs, a.cfg.Cache.Dir, hasher, a.logger.Named("cache"))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return store, nil
}

// FetchChain wires the reader stage, the archive fallback and the URL guard.
// Each stage gets its own HTTP client so their timeouts stay independent; both
// share one per-host pacer.
func (a *App) FetchChain() (*fetcher.Chain, error) {
	pacer := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: a.cfg.HTTP.RequestsPerMinute,
		Burst:             a.cfg.HTTP.Burst,
	}, a.metrics)
	readerHTTP := ratelimit.Wrap(collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.HTTP.UserAgent,
		Timeout:   a.cfg.ReaderTimeout(),
	}), pacer)
	archiveHTTP := ratelimit.Wrap(collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.HTTP.UserAgent,
		Timeout:   a.cfg.ArchiveTimeout(),
	}), pacer)

	readerStage, err := reader.New(readerHTTP, reader.Config{
		BaseURL: a.cfg.Reader.BaseURL,
		APIKey:  a.cfg.Reader.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("reader stage: %w", err)
	}
	archiveStage, err := wayback.New(archiveHTTP, a.cfg.Archive.AvailabilityURL, readerStage)
	if err != nil {
		return nil, fmt.Errorf("archive stage: %w", err)
	}
	if a.cfg.Reader.APIKey == "" {
		a.logger.Info("no reader api key configured, using the keyless tier")
	}

	chain, err := fetcher.NewChain(
		readerStage,
		archiveStage,
		urlguard.New(urlguard.Config{
			AllowPrivate:   a.cfg.Guard.AllowPrivate,
			BlockedDomains: a.cfg.Guard.BlockedDomains,
		}),
		a.metrics,
		a.logger.Named("fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch chain: %w", err)
	}
	return chain, nil
}

// Processor assembles the batch processor over the cache and fetch chain.
func (a *App) Processor() (*batch.Processor, error) {
	store, err := a.CacheStore()
	if err != nil {
		return nil, err
	}
	chain, err := a.FetchChain()
	if err != nil {
		return nil, err
	}
	return batch.New(
		batch.Config{TTL: a.cfg.CacheTTL()},
		store,
		chain,
		a.clock,
		a.metrics,
		a.logger.Named("batch"),
	), nil
}

// Metrics exposes the run collectors.
func (a *App) Metrics() *metrics.Collectors {
	return a.metrics
}

// FlushMetrics writes the registry to metrics.textfile when configured.
func (a *App) FlushMetrics() error {
	if a.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(a.registry, a.cfg.Metrics.Textfile); err != nil {
		return err
	}
	a.logger.Debug("metrics written", zap.String("path", a.cfg.Metrics.Textfile))
	return nil
}

// Close flushes metrics and the logger. It is called by a Cobra hook after
// the command finishes.
func (a *App) Close() {
	if err := a.FlushMetrics(); err != nil {
		a.logger.Warn("Error writing metrics", zap.Error(err))
	}
	if err := a.logger.Sync(); err != nil && !isInvalidSync(err) {
		a.logger.Warn("Error syncing logger on shutdown", zap.Error(err))
	}
}

// isInvalidSync filters the errors fsync reports for stderr on a terminal.
func isInvalidSync(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
