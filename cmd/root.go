// Package cmd defines and implements the CLI commands for the research-fetcher executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-fetcher/internal/app"
	"github.com/JakeFAU/research-fetcher/internal/batch"
	"github.com/JakeFAU/research-fetcher/internal/cache"
	"github.com/JakeFAU/research-fetcher/internal/config"
	"github.com/JakeFAU/research-fetcher/internal/research"
)

const defaultEnvFile = ".env"

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	GetFs() afero.Fs
	GetClock() research.Clock
	RunID() string
	CacheStore() (*cache.Store, error)
	Processor() (*batch.Processor, error)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(cfg config.Config) (App, error) {
	return app.NewApp(cfg)
}

type rootOptions struct {
	configFile string
	envFile    string
	app        App
}

func (o *rootOptions) closeApp() {
	if o.app != nil {
		o.app.Close()
		o.app = nil
	}
}

// newRootCmd creates and configures the root command.
func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research-fetcher",
		Short: "Fetches and caches the pages selected for a research topic.",
		Long: `research-fetcher resolves the URLs chosen by the search tier into clean
markdown. Each page is read through the Jina reader, falling back to the
closest Wayback Machine snapshot, and cached on disk so reruns are cheap.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Build the application once flags are parsed and before the
		// subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(cmd, opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.app = appInstance

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			opts.closeApp()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	flags.String("cache-dir", ".cache/fetch", "page cache directory")
	flags.Int("ttl-days", 7, "maximum age in days of a reusable cache entry")
	flags.Bool("log-dev", false, "human-readable development logging")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile at exit")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newCacheCmd())

	return cmd
}

// loadEnvFile loads an explicit --env-file, or .env when it exists. Values
// already present in the environment win.
func loadEnvFile(cmd *cobra.Command, path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if !cmd.Flags().Changed("env-file") {
		if _, err := os.Stat(defaultEnvFile); err == nil {
			if err := godotenv.Load(defaultEnvFile); err != nil {
				return fmt.Errorf("load env file %s: %w", defaultEnvFile, err)
			}
		}
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// run executes the command tree with args and closes the app even when the
// command fails.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer opts.closeApp()
	return root.ExecuteContext(ctx)
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "research-fetcher: %v\n", err)
		os.Exit(1)
	}
}
