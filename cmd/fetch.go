package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-fetcher/internal/document"
	"github.com/JakeFAU/research-fetcher/internal/research"
	"github.com/JakeFAU/research-fetcher/internal/urlnorm"
)

// newFetchCmd creates the 'fetch' subcommand.
func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and cache the selected URLs of a search context",
		Long: `Reads a search_context.json document, deduplicates its selected URLs and
resolves each one to markdown, reusing fresh cache entries. The result
document is written to --output or stdout. URLs that cannot be fetched are
reported in the "failed" list; they never fail the command.`,
		Args: cobra.NoArgs,
		RunE: runFetchCommand,
	}
	cmd.Flags().String("input", "", "path to search_context.json")
	cmd.Flags().String("output", "", "path for the result document (stdout if omitted)")
	cmd.Flags().Bool("dry-run", false, "list the deduplicated URLs without fetching")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runFetchCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()

	if strings.TrimSpace(cfg.Input) == "" {
		return fmt.Errorf("an input document is required")
	}
	in, err := document.LoadInput(appInstance.GetFs(), cfg.Input)
	if err != nil {
		return err
	}
	if in.Skipped > 0 {
		logger.Warn("skipped selected entries with a blank url", zap.Int("count", in.Skipped))
	}
	urls := urlnorm.Deduplicate(in.SelectedURLs)

	if cfg.DryRun {
		return printDryRun(cmd.ErrOrStderr(), urls)
	}

	proc, err := appInstance.Processor()
	if err != nil {
		return err
	}
	logger.Info("fetch started",
		zap.Int("urls", len(urls)),
		zap.String("cache_dir", cfg.Cache.Dir),
		zap.Int("ttl_days", cfg.Cache.TTLDays),
	)
	fetched, failed := proc.Process(cmd.Context(), urls)
	result := document.Assemble(in, urls, fetched, failed)

	if cfg.Output != "" {
		if err := document.WriteFile(appInstance.GetFs(), cfg.Output, result); err != nil {
			return err
		}
		logger.Info("results written", zap.String("path", cfg.Output))
	} else if err := document.Write(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	logger.Info("fetch finished",
		zap.Int("total_urls", result.Stats.TotalURLs),
		zap.Int("fetched", result.Stats.Fetched),
		zap.Int("failed", result.Stats.Failed),
		zap.Int("cache_hits", result.Stats.CacheHits),
		zap.Int("total_words", result.Stats.TotalWords),
	)
	return nil
}

func printDryRun(w io.Writer, urls []research.CandidateURL) error {
	if _, err := fmt.Fprintf(w, "Dry run — %d URL(s) would be fetched:\n", len(urls)); err != nil {
		return fmt.Errorf("write dry run: %w", err)
	}
	for _, u := range urls {
		if _, err := fmt.Fprintf(w, "  %s\n", u.URL); err != nil {
			return fmt.Errorf("write dry run: %w", err)
		}
	}
	return nil
}
