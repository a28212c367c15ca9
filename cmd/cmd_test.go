package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/research-fetcher/internal/document"
)

type resultDoc struct {
	Topic         string          `json:"topic"`
	SearchContext json.RawMessage `json:"search_context"`
	Fetched       []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		FetchMethod string `json:"fetch_method"`
		CacheHit    bool   `json:"cache_hit"`
	} `json:"fetched"`
	Failed []struct {
		URL      string   `json:"url"`
		Error    string   `json:"error"`
		Attempts []string `json:"attempts"`
	} `json:"failed"`
	Stats document.Stats `json:"stats"`
}

// fakeServices serves both the reader and the availability API. Paths under
// /reader/ are reader requests; /available is the snapshot lookup.
type fakeServices struct {
	server      *httptest.Server
	readerCalls atomic.Int64
}

func newFakeServices(t *testing.T, failing map[string]bool) *fakeServices {
	t.Helper()
	f := &fakeServices{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/reader/"):
			f.readerCalls.Add(1)
			target := strings.TrimPrefix(r.URL.Path, "/reader/")
			if failing[target] {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("# Page " + target + "\n\nsome fetched words"))
		case r.URL.Path == "/available":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"archived_snapshots":{}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func writeConfig(t *testing.T, dir, serverURL string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := "reader:\n  base_url: " + serverURL + "/reader\n  timeout_seconds: 5\n" +
		"archive:\n  availability_url: " + serverURL + "/available\n  timeout_seconds: 5\n" +
		"logging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func writeInput(t *testing.T, dir string, urls ...string) string {
	t.Helper()
	selected := make([]map[string]any, 0, len(urls))
	for _, u := range urls {
		selected = append(selected, map[string]any{"url": u, "title": "t", "relevance_score": 0.5})
	}
	doc := map[string]any{
		"topic":         "test topic",
		"query_used":    "q",
		"selected_urls": selected,
		"rejected_urls": []any{},
		"search_notes":  "notes",
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "search_context.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestFetchDryRunListsDeduplicatedURLs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	input := writeInput(t, dir,
		"https://a.com/", "https://b.com", "https://A.COM", "https://c.com", "https://d.com")

	stdout, stderr, err := execute(t, "fetch",
		"--input", input, "--cache-dir", cacheDir, "--dry-run", "--log-level", "error")
	require.NoError(t, err)

	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Dry run — 4 URL(s) would be fetched:")
	for _, u := range []string{"https://a.com/", "https://b.com", "https://c.com", "https://d.com"} {
		assert.Contains(t, stderr, "  "+u+"\n")
	}
	assert.NotContains(t, stderr, "A.COM")

	_, statErr := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(statErr), "dry run must not create the cache directory")
}

func TestFetchMissingInputFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, _, err := execute(t, "fetch",
		"--input", filepath.Join(dir, "absent.json"), "--cache-dir", filepath.Join(dir, "cache"), "--log-level", "error")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrInputNotFound)
}

func TestFetchRequiresInputFlag(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "fetch", "--log-level", "error")
	assert.Error(t, err)
}

func TestFetchMixedOutcomeSucceeds(t *testing.T) {
	t.Parallel()

	good := "https://good.example/article"
	bad := "https://bad.example/gone"
	services := newFakeServices(t, map[string]bool{bad: true})

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, services.server.URL)
	input := writeInput(t, dir, good, bad)
	output := filepath.Join(dir, "fetch_results.json")

	_, _, err := execute(t, "fetch", "--config", cfgPath,
		"--input", input, "--output", output, "--cache-dir", filepath.Join(dir, "cache"))
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var result resultDoc
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, "test topic", result.Topic)
	assert.Equal(t, document.Stats{TotalURLs: 2, Fetched: 1, Failed: 1, CacheHits: 0, TotalWords: 6}, result.Stats)
	require.Len(t, result.Fetched, 1)
	assert.Equal(t, good, result.Fetched[0].URL)
	assert.Equal(t, "jina", result.Fetched[0].FetchMethod)
	assert.Equal(t, "Page "+good, result.Fetched[0].Title)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, bad, result.Failed[0].URL)
	assert.Equal(t, []string{"jina", "wayback"}, result.Failed[0].Attempts)
	var passthrough map[string]any
	require.NoError(t, json.Unmarshal(result.SearchContext, &passthrough))
	assert.Equal(t, "notes", passthrough["search_notes"])
	assert.Equal(t, "q", passthrough["query_used"])
}

func TestFetchRerunIsServedFromCache(t *testing.T) {
	t.Parallel()

	services := newFakeServices(t, nil)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, services.server.URL)
	input := writeInput(t, dir, "https://one.example", "https://two.example", "https://three.example")
	cacheDir := filepath.Join(dir, "cache")

	runOnce := func() resultDoc {
		stdout, _, err := execute(t, "fetch", "--config", cfgPath, "--input", input, "--cache-dir", cacheDir)
		require.NoError(t, err)
		var result resultDoc
		require.NoError(t, json.Unmarshal([]byte(stdout), &result))
		return result
	}

	first := runOnce()
	assert.Equal(t, 3, first.Stats.Fetched)
	assert.Equal(t, 0, first.Stats.Failed)
	assert.Equal(t, 0, first.Stats.CacheHits)

	second := runOnce()
	assert.Equal(t, 3, second.Stats.Fetched)
	assert.Equal(t, 3, second.Stats.CacheHits)
	for _, item := range second.Fetched {
		assert.True(t, item.CacheHit, item.URL)
	}
	assert.Equal(t, int64(3), services.readerCalls.Load())

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestCacheCommands(t *testing.T) {
	t.Parallel()

	services := newFakeServices(t, nil)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, services.server.URL)
	target := "https://listed.example/page"
	input := writeInput(t, dir, target)
	cacheDir := filepath.Join(dir, "cache")

	_, _, err := execute(t, "fetch", "--config", cfgPath, "--input", input, "--cache-dir", cacheDir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "broken.json"), []byte("{"), 0o600))

	stdout, _, err := execute(t, "cache", "list", "--config", cfgPath, "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, target)
	assert.Contains(t, stdout, "fresh")
	assert.Contains(t, strings.ToLower(stdout), "1 unreadable")

	stdout, _, err = execute(t, "cache", "show", "--config", cfgPath, "--cache-dir", cacheDir, "--url", target)
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, target, shown["url"])
	assert.Equal(t, true, shown["fresh"])
	assert.Equal(t, "jina", shown["fetch_method"])

	_, _, err = execute(t, "cache", "show", "--config", cfgPath, "--cache-dir", cacheDir, "--url", "https://never.example")
	assert.Error(t, err)
}
