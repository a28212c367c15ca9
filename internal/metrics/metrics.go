// Package metrics exposes Prometheus collectors for fetch runs.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "research_fetcher"

// Cache lookup results.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupStale = "stale"
)

// URL outcomes.
const (
	OutcomeFetched = "fetched"
	OutcomeFailed  = "failed"
)

// Collectors groups the run metrics. A nil *Collectors is a no-op.
type Collectors struct {
	cacheLookups     *prometheus.CounterVec
	stageAttempts    *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	urlsTotal        *prometheus.CounterVec
	cacheWriteErrors prometheus.Counter
	rateLimitDelay   *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		return nil, errors.New("metrics registerer is required")
	}
	factory := promauto.With(reg)
	c := &Collectors{}
	register := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("register metrics: %v", r)
			}
		}()
		c.cacheLookups = factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups, labeled by result.",
			},
			[]string{"result"},
		)
		c.stageAttempts = factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_attempts_total",
				Help:      "Fetch stage attempts, labeled by method and outcome.",
			},
			[]string{"method", "outcome"},
		)
		c.stageDuration = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Histogram of fetch stage latencies, labeled by method.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method"},
		)
		c.urlsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "urls_total",
				Help:      "Processed URLs, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		c.cacheWriteErrors = factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_write_errors_total",
				Help:      "Cache entries that could not be persisted.",
			},
		)
		c.rateLimitDelay = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_limit_delay_seconds",
				Help:      "Histogram of time spent waiting for a request token, labeled by host.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
		return nil
	}
	if err := register(); err != nil {
		return nil, err
	}
	return c, nil
}

// ObserveStage records one stage attempt.
func (c *Collectors) ObserveStage(method string, err error, took time.Duration) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.stageAttempts.WithLabelValues(method, outcome).Inc()
	c.stageDuration.WithLabelValues(method).Observe(took.Seconds())
}

// CacheLookup records a cache lookup result.
func (c *Collectors) CacheLookup(result string) {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// URLOutcome records the final outcome for one URL.
func (c *Collectors) URLOutcome(outcome string) {
	if c == nil {
		return
	}
	c.urlsTotal.WithLabelValues(outcome).Inc()
}

// CacheWriteError records a failed cache save.
func (c *Collectors) CacheWriteError() {
	if c == nil {
		return
	}
	c.cacheWriteErrors.Inc()
}

// ObserveRateLimitDelay records how long a request waited for its host's token.
func (c *Collectors) ObserveRateLimitDelay(host string, waited time.Duration) {
	if c == nil {
		return
	}
	c.rateLimitDelay.WithLabelValues(host).Observe(waited.Seconds())
}

// WriteTextfile writes everything gathered by g to path in the node_exporter
// textfile format.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
