// Package ratelimit paces outbound requests per host with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/research-fetcher/internal/research"
)

// DelayObserver is told how long a request waited for a token.
type DelayObserver interface {
	ObserveRateLimitDelay(host string, waited time.Duration)
}

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerMinute is the sustained rate per host; zero disables pacing.
	RequestsPerMinute float64
	Burst             int
}

// Limiter manages per-host token buckets.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	observer DelayObserver
}

// New creates a Limiter. observer may be nil.
func New(cfg Config, observer DelayObserver) *Limiter {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
		observer: observer,
	}
}

// Wait blocks until rawURL's host may be requested or ctx is done.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l.limit == rate.Inf {
		return nil
	}
	host := hostOf(rawURL)
	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	if waited := time.Since(start); waited > time.Millisecond && l.observer != nil {
		l.observer.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

// Getter paces a research.Getter through a Limiter.
type Getter struct {
	next    research.Getter
	limiter *Limiter
}

// Wrap returns next paced by limiter.
func Wrap(next research.Getter, limiter *Limiter) *Getter {
	return &Getter{next: next, limiter: limiter}
}

// Get waits for a token and then delegates.
func (g *Getter) Get(ctx context.Context, rawURL string, headers http.Header) (research.HTTPResponse, error) {
	if err := g.limiter.Wait(ctx, rawURL); err != nil {
		return research.HTTPResponse{}, err
	}
	return g.next.Get(ctx, rawURL, headers) //nolint:wrapcheck
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
