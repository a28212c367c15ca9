// Package document reads the search-context input and assembles the fetch
// result document.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/JakeFAU/research-fetcher/internal/research"
)

// ErrInputNotFound is returned when the input document does not exist.
var ErrInputNotFound = errors.New("input file not found")

// Input is the parsed search-context document.
type Input struct {
	Topic        string
	SelectedURLs []research.CandidateURL
	// Raw is the document exactly as read; it is echoed as search_context.
	Raw json.RawMessage
	// Skipped counts selected entries dropped for having a blank url.
	Skipped int
}

// LoadInput reads and parses the input document at path.
func LoadInput(fs afero.Fs, path string) (Input, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Input{}, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return Input{}, fmt.Errorf("read input %s: %w", path, err)
	}
	in, err := ParseInput(data)
	if err != nil {
		return Input{}, fmt.Errorf("parse input %s: %w", path, err)
	}
	return in, nil
}

// ParseInput decodes a search-context document. Only topic and
// selected_urls[].url are interpreted; everything else is carried in Raw.
func ParseInput(data []byte) (Input, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return Input{}, fmt.Errorf("decode search context: %w", err)
	}
	if doc == nil {
		return Input{}, errors.New("search context must be a JSON object")
	}

	in := Input{Raw: json.RawMessage(bytes.TrimSpace(data))}
	if raw, ok := doc["topic"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &in.Topic); err != nil {
			return Input{}, fmt.Errorf("topic must be a string: %w", err)
		}
	}

	raw, ok := doc["selected_urls"]
	if !ok || isNull(raw) {
		in.SelectedURLs = []research.CandidateURL{}
		return in, nil
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Input{}, fmt.Errorf("selected_urls must be an array of objects: %w", err)
	}
	in.SelectedURLs = make([]research.CandidateURL, 0, len(entries))
	for i, entry := range entries {
		candidate, err := parseCandidate(entry)
		if err != nil {
			return Input{}, fmt.Errorf("selected_urls[%d]: %w", i, err)
		}
		if strings.TrimSpace(candidate.URL) == "" {
			in.Skipped++
			continue
		}
		in.SelectedURLs = append(in.SelectedURLs, candidate)
	}
	return in, nil
}

// parseCandidate requires a string url. The optional metadata is advisory
// and ignored when it has an unexpected type.
func parseCandidate(entry map[string]json.RawMessage) (research.CandidateURL, error) {
	raw, ok := entry["url"]
	if !ok {
		return research.CandidateURL{}, errors.New("missing url")
	}
	var c research.CandidateURL
	if err := json.Unmarshal(raw, &c.URL); err != nil {
		return research.CandidateURL{}, fmt.Errorf("url must be a string: %w", err)
	}
	_ = json.Unmarshal(entry["title"], &c.Title)
	_ = json.Unmarshal(entry["reason"], &c.Reason)
	var score float64
	if err := json.Unmarshal(entry["relevance_score"], &score); err == nil {
		c.RelevanceScore = &score
	}
	return c, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
