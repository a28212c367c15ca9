package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/research-fetcher/internal/cache"
)

// newCacheCmd groups the cache inspection subcommands.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the page cache",
	}
	cmd.AddCommand(newCacheListCmd())
	cmd.AddCommand(newCacheShowCmd())
	return cmd
}

func newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached pages with their age and freshness",
		Args:  cobra.NoArgs,
		RunE:  runCacheList,
	}
}

func newCacheShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cached entry for a URL",
		Args:  cobra.NoArgs,
		RunE:  runCacheShow,
	}
	cmd.Flags().String("url", "", "URL exactly as it appears in the input document")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	store, err := appInstance.CacheStore()
	if err != nil {
		return err
	}
	entries, skipped, err := store.List()
	if err != nil {
		return err
	}

	ttl := appInstance.GetConfig().CacheTTL()
	now := appInstance.GetClock().Now()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Key", "URL", "Method", "Fetched At", "Age", "State"})
	fresh := 0
	for _, listed := range entries {
		state := "stale"
		if !cache.IsExpired(listed.Entry, ttl, now) {
			state = "fresh"
			fresh++
		}
		t.AppendRow(table.Row{
			listed.Key,
			listed.Entry.URL,
			listed.Entry.FetchMethod,
			cache.FormatTimestamp(listed.Entry.FetchedAt),
			formatAge(now.Sub(listed.Entry.FetchedAt)),
			state,
		})
	}
	t.AppendFooter(table.Row{"Total", len(entries), "", "", fmt.Sprintf("%d fresh", fresh), fmt.Sprintf("%d unreadable", skipped)})
	t.Render()
	return nil
}

type shownEntry struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	FetchMethod string `json:"fetch_method"`
	FetchedAt   string `json:"fetched_at"`
	Fresh       bool   `json:"fresh"`
	Content     string `json:"content"`
}

func runCacheShow(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	rawURL, err := cmd.Flags().GetString("url")
	if err != nil {
		return fmt.Errorf("read url flag: %w", err)
	}
	store, err := appInstance.CacheStore()
	if err != nil {
		return err
	}
	key, err := store.Key(rawURL)
	if err != nil {
		return err
	}
	entry, ok := store.Load(key)
	if !ok {
		return fmt.Errorf("no readable cache entry for %s", rawURL)
	}

	shown := shownEntry{
		Key:         key,
		URL:         entry.URL,
		Title:       entry.Title,
		FetchMethod: entry.FetchMethod,
		FetchedAt:   cache.FormatTimestamp(entry.FetchedAt),
		Fresh:       !cache.IsExpired(entry, appInstance.GetConfig().CacheTTL(), appInstance.GetClock().Now()),
		Content:     entry.Content,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(shown); err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return d.Truncate(time.Minute).String()
}
