package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/JakeFAU/research-fetcher/internal/research"
)

// Stats summarizes a run.
type Stats struct {
	TotalURLs  int `json:"total_urls"`
	Fetched    int `json:"fetched"`
	Failed     int `json:"failed"`
	CacheHits  int `json:"cache_hits"`
	TotalWords int `json:"total_words"`
}

// Result is the document emitted by a fetch run.
type Result struct {
	Topic         string                 `json:"topic"`
	SearchContext json.RawMessage        `json:"search_context"`
	Fetched       []research.FetchedItem `json:"fetched"`
	Failed        []research.FailedItem  `json:"failed"`
	Stats         Stats                  `json:"stats"`
}

// Assemble builds the result for the deduplicated urls of in.
func Assemble(in Input, urls []research.CandidateURL, fetched []research.FetchedItem, failed []research.FailedItem) Result {
	if fetched == nil {
		fetched = []research.FetchedItem{}
	}
	if failed == nil {
		failed = []research.FailedItem{}
	}
	searchContext := in.Raw
	if len(searchContext) == 0 {
		searchContext = json.RawMessage("{}")
	}
	stats := Stats{
		TotalURLs: len(urls),
		Fetched:   len(fetched),
		Failed:    len(failed),
	}
	for _, item := range fetched {
		if item.CacheHit {
			stats.CacheHits++
		}
		stats.TotalWords += item.WordCount
	}
	return Result{
		Topic:         in.Topic,
		SearchContext: searchContext,
		Fetched:       fetched,
		Failed:        failed,
		Stats:         stats,
	}
}

// Encode renders r as indented JSON without HTML escaping.
func Encode(r Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return buf.Bytes(), nil
}

// Write emits r to w.
func Write(w io.Writer, r Result) error {
	payload, err := Encode(r)
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// WriteFile writes r to path, replacing any existing file.
func WriteFile(fs afero.Fs, path string, r Result) error {
	payload, err := Encode(r)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, payload, 0o600); err != nil {
		return fmt.Errorf("write result %s: %w", path, err)
	}
	return nil
}
