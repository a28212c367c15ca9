// Package fetcher composes fetch stages into the primary/fallback strategy.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-fetcher/internal/research"
)

// ErrAllMethodsFailed matches every failure returned by Chain.Fetch.
var ErrAllMethodsFailed = errors.New("all fetch methods failed")

// StageError records the failure of a single stage.
type StageError struct {
	Method string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AllMethodsFailedError is the single error surfaced when no stage produced
// a page. Cause combines the per-stage errors.
type AllMethodsFailedError struct {
	URL   string
	Cause error
}

func (e *AllMethodsFailedError) Error() string {
	return "all fetch methods failed for " + e.URL
}

func (e *AllMethodsFailedError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match ErrAllMethodsFailed.
func (e *AllMethodsFailedError) Is(target error) bool {
	return target == ErrAllMethodsFailed
}

// URLGuard rejects URLs that must not be requested.
type URLGuard interface {
	Check(rawURL string) error
}

// Chain tries the primary stage and, on any failure, the fallback exactly once.
type Chain struct {
	primary  research.Stage
	fallback research.Stage
	guard    URLGuard
	observer research.StageObserver
	logger   *zap.Logger
}

// NewChain builds a Chain. guard and observer are optional.
func NewChain(
	primary, fallback research.Stage,
	guard URLGuard,
	observer research.StageObserver,
	logger *zap.Logger,
) (*Chain, error) {
	if primary == nil || fallback == nil {
		return nil, errors.New("primary and fallback stages are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		primary:  primary,
		fallback: fallback,
		guard:    guard,
		observer: observer,
		logger:   logger,
	}, nil
}

// Methods returns the stage names in attempt order.
func (c *Chain) Methods() []string {
	return []string{c.primary.Method(), c.fallback.Method()}
}

// Fetch resolves rawURL. Every failure is an *AllMethodsFailedError.
func (c *Chain) Fetch(ctx context.Context, rawURL string) (research.Page, error) {
	if c.guard != nil {
		if err := c.guard.Check(rawURL); err != nil {
			c.logger.Warn("url rejected", zap.String("url", rawURL), zap.Error(err))
			return research.Page{}, &AllMethodsFailedError{URL: rawURL, Cause: err}
		}
	}

	page, primaryErr := c.attempt(ctx, c.primary, rawURL)
	if primaryErr == nil {
		return page, nil
	}
	c.logger.Info("primary fetch failed, trying fallback",
		zap.String("url", rawURL),
		zap.String("method", c.primary.Method()),
		zap.Error(primaryErr),
	)

	page, fallbackErr := c.attempt(ctx, c.fallback, rawURL)
	if fallbackErr == nil {
		return page, nil
	}
	return research.Page{}, &AllMethodsFailedError{
		URL:   rawURL,
		Cause: multierr.Combine(primaryErr, fallbackErr),
	}
}

func (c *Chain) attempt(ctx context.Context, stage research.Stage, rawURL string) (page research.Page, err error) {
	method := stage.Method()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
		if err != nil {
			err = &StageError{Method: method, Err: err}
		}
		if c.observer != nil {
			c.observer.ObserveStage(method, err, time.Since(start))
		}
	}()

	page, err = stage.Fetch(ctx, rawURL)
	if err != nil {
		return research.Page{}, err
	}
	if page.Method == "" {
		page.Method = method
	}
	return page, nil
}
