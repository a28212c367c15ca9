// Package batch drives the fetch strategy across a URL list.
package batch

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/research-fetcher/internal/cache"
	"github.com/JakeFAU/research-fetcher/internal/metrics"
	"github.com/JakeFAU/research-fetcher/internal/research"
)

// cachedMethodFallback labels hits whose entry has no recorded method.
const cachedMethodFallback = "cached"

// Config controls Processor behavior.
type Config struct {
	// TTL is the maximum age of a reusable cache entry.
	TTL time.Duration
	// MaxContentChars caps emitted content; zero selects research.MaxContentChars.
	MaxContentChars int
}

// Recorder receives per-URL accounting. *metrics.Collectors satisfies it.
type Recorder interface {
	CacheLookup(result string)
	URLOutcome(outcome string)
	CacheWriteError()
}

// Processor fetches URLs one at a time, consulting the cache first.
type Processor struct {
	cfg      Config
	store    research.CacheStore
	fetcher  research.Fetcher
	clock    research.Clock
	recorder Recorder
	logger   *zap.Logger
}

// New constructs a Processor. recorder and logger may be nil.
func New(
	cfg Config,
	store research.CacheStore,
	fetcher research.Fetcher,
	clock research.Clock,
	recorder Recorder,
	logger *zap.Logger,
) *Processor {
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = research.MaxContentChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		clock:    clock,
		recorder: recorder,
		logger:   logger,
	}
}

// Process resolves every URL in order. It never fails: each URL lands in
// exactly one of the returned slices.
func (p *Processor) Process(ctx context.Context, urls []research.CandidateURL) ([]research.FetchedItem, []research.FailedItem) {
	fetched := make([]research.FetchedItem, 0, len(urls))
	failed := make([]research.FailedItem, 0)
	for _, candidate := range urls {
		item, failure := p.processOne(ctx, candidate.URL)
		if failure != nil {
			p.record(metrics.OutcomeFailed)
			failed = append(failed, *failure)
			continue
		}
		p.record(metrics.OutcomeFetched)
		fetched = append(fetched, item)
	}
	return fetched, failed
}

func (p *Processor) processOne(ctx context.Context, rawURL string) (item research.FetchedItem, failure *research.FailedItem) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("url processing panicked", zap.String("url", rawURL), zap.Any("panic", r))
			failure = p.failedItem(rawURL, fmt.Errorf("internal error: %v", r))
		}
	}()

	key, err := p.store.Key(rawURL)
	if err != nil {
		return research.FetchedItem{}, p.failedItem(rawURL, err)
	}

	if entry, ok := p.store.Load(key); ok {
		if !cache.IsExpired(entry, p.cfg.TTL, p.clock.Now()) {
			p.lookup(metrics.LookupHit)
			p.logger.Debug("cache hit", zap.String("url", rawURL), zap.String("key", key))
			return p.fromCache(rawURL, entry), nil
		}
		p.lookup(metrics.LookupStale)
		p.logger.Debug("cache entry stale", zap.String("url", rawURL), zap.Time("fetched_at", entry.FetchedAt))
	} else {
		p.lookup(metrics.LookupMiss)
	}

	page, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		p.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return research.FetchedItem{}, p.failedItem(rawURL, err)
	}

	content := research.Truncate(page.Content, p.cfg.MaxContentChars)
	fetchedAt := p.clock.Now().UTC()
	entry := research.CacheEntry{
		URL:         rawURL,
		Title:       page.Title,
		Content:     content,
		FetchMethod: page.Method,
		FetchedAt:   fetchedAt,
	}
	if err := p.store.Save(key, entry); err != nil {
		if p.recorder != nil {
			p.recorder.CacheWriteError()
		}
		p.logger.Warn("cache write failed", zap.String("url", rawURL), zap.String("key", key), zap.Error(err))
	}

	p.logger.Info("fetched",
		zap.String("url", rawURL),
		zap.String("method", page.Method),
		zap.Int("chars", utf8.RuneCountInString(content)),
	)
	return research.FetchedItem{
		URL:         rawURL,
		Title:       page.Title,
		Content:     content,
		FetchMethod: page.Method,
		CacheHit:    false,
		FetchedAt:   cache.FormatTimestamp(fetchedAt),
		WordCount:   research.WordCount(content),
	}, nil
}

func (p *Processor) fromCache(rawURL string, entry research.CacheEntry) research.FetchedItem {
	content := research.Truncate(entry.Content, p.cfg.MaxContentChars)
	method := entry.FetchMethod
	if method == "" {
		method = cachedMethodFallback
	}
	return research.FetchedItem{
		URL:         rawURL,
		Title:       entry.Title,
		Content:     content,
		FetchMethod: method,
		CacheHit:    true,
		FetchedAt:   cache.FormatTimestamp(entry.FetchedAt),
		WordCount:   research.WordCount(content),
	}
}

func (p *Processor) failedItem(rawURL string, err error) *research.FailedItem {
	return &research.FailedItem{
		URL:      rawURL,
		Error:    err.Error(),
		Attempts: p.fetcher.Methods(),
	}
}

func (p *Processor) lookup(result string) {
	if p.recorder != nil {
		p.recorder.CacheLookup(result)
	}
}

func (p *Processor) record(outcome string) {
	if p.recorder != nil {
		p.recorder.URLOutcome(outcome)
	}
}
