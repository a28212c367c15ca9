package research

import (
	"context"
	"net/http"
	"time"
)

// Getter issues a single HTTP GET and returns the response on 2xx.
// Any other status or a transport failure is an error.
type Getter interface {
	Get(ctx context.Context, rawURL string, headers http.Header) (HTTPResponse, error)
}

// Stage is one retrieval method in the fetch strategy.
type Stage interface {
	Method() string
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Fetcher resolves a URL to a page using every configured stage.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
	// Methods lists the stage names in the order they are attempted.
	Methods() []string
}

// CacheStore persists fetched pages keyed by a URL digest.
type CacheStore interface {
	Key(rawURL string) (string, error)
	Load(key string) (CacheEntry, bool)
	Save(key string, entry CacheEntry) error
}

// StageObserver is notified after every stage attempt.
type StageObserver interface {
	ObserveStage(method string, err error, took time.Duration)
}

// Hasher computes digests for cache keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
