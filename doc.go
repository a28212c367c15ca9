// Package main is the research-fetcher executable.
//
// Architecture overview:
//   - Input: cmd/fetch reads a search_context.json document through internal/document. Only
//     selected_urls[].url is interpreted; the whole document is echoed back as search_context.
//   - Deduplication: internal/urlnorm lowercases each URL and strips one trailing slash; the first
//     occurrence wins and input order is preserved.
//   - Batch: internal/batch walks the URLs one at a time. A fresh entry from internal/cache is reused;
//     otherwise internal/fetcher runs the reader stage and, on any failure, the Wayback stage exactly
//     once. Content is capped at 50,000 characters on both paths.
//   - Cache: one <key>.json file per URL, keyed by the MD5 of the raw URL, written atomically through
//     afero. Unreadable entries are treated as misses. Entries older than --ttl-days are refetched.
//   - Transport: internal/fetcher/colly issues every GET through a Colly collector with one client per
//     stage so their timeouts stay independent. internal/urlguard keeps internal hosts away from the
//     reader and archive services.
//   - Plumbing: Viper loads defaults, an optional config file, RESEARCH_FETCHER_* variables and flags;
//     JINA_API_KEY supplies the reader key. zap logs go to stderr with a run_id. Prometheus collectors
//     can be exported as a node_exporter textfile with --metrics-file.
//
// Operational notes:
//   - Per-URL failures never fail the run; they land in "failed". Only an unreadable input document
//     exits non-zero.
//   - No locking: run one fetch per cache directory at a time.
//   - Ctrl-C cancels the in-flight request; the interrupted URL is reported as failed.
//
// Quick checklist:
//   - Dry run: research-fetcher fetch --input search_context.json --dry-run
//   - Full run: JINA_API_KEY=... research-fetcher fetch --input search_context.json --output fetch_results.json
//   - Inspect: research-fetcher cache list, research-fetcher cache show --url https://example.com
package main
