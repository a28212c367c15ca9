package research

import (
	"net/http"
	"time"
)

// MaxContentChars caps the content of every emitted item, counted in runes.
const MaxContentChars = 50_000

// Fetch method names recorded in cache entries and output items.
const (
	MethodReader  = "jina"
	MethodArchive = "wayback"
)

// CandidateURL is a URL chosen by the upstream search tier.
type CandidateURL struct {
	URL            string   `json:"url"`
	Title          string   `json:"title,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// CacheEntry is the persisted result of one successful network fetch.
// FetchedAt is always the time of that fetch, never the time it was read back.
type CacheEntry struct {
	URL         string
	Title       string
	Content     string
	FetchMethod string
	FetchedAt   time.Time
}

// FetchedItem is a URL that resolved to content, either fresh or from cache.
type FetchedItem struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	FetchMethod string `json:"fetch_method"`
	CacheHit    bool   `json:"cache_hit"`
	FetchedAt   string `json:"fetched_at"`
	WordCount   int    `json:"word_count"`
}

// FailedItem is a URL for which every fetch method failed.
type FailedItem struct {
	URL      string   `json:"url"`
	Error    string   `json:"error"`
	Attempts []string `json:"attempts"`
}

// Page is the markdown returned by a fetch stage.
type Page struct {
	Content string
	Title   string
	// Method names the stage that produced the page.
	Method string
}

// HTTPResponse is the subset of an HTTP response the fetch stages consume.
type HTTPResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
