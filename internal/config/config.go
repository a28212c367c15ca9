// Package config loads and validates fetcher configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/research-fetcher/internal/hash"
)

// EnvPrefix namespaces environment overrides, e.g. RESEARCH_FETCHER_CACHE_DIR.
const EnvPrefix = "RESEARCH_FETCHER"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Input   string        `mapstructure:"input"`
	Output  string        `mapstructure:"output"`
	DryRun  bool          `mapstructure:"dry_run"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Reader  ReaderConfig  `mapstructure:"reader"`
	Archive ArchiveConfig `mapstructure:"archive"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Guard   GuardConfig   `mapstructure:"guard"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CacheConfig locates the page cache and controls reuse.
type CacheConfig struct {
	Dir     string `mapstructure:"dir"`
	TTLDays int    `mapstructure:"ttl_days"`
	KeyHash string `mapstructure:"key_hash"`
}

// ReaderConfig configures the primary reader service.
type ReaderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ArchiveConfig configures the snapshot availability lookup.
type ArchiveConfig struct {
	AvailabilityURL string `mapstructure:"availability_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// HTTPConfig holds settings shared by every outbound request.
type HTTPConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	// RequestsPerMinute paces requests per host; zero disables pacing.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

// GuardConfig toggles the outbound URL checks.
type GuardConfig struct {
	AllowPrivate   bool     `mapstructure:"allow_private"`
	BlockedDomains []string `mapstructure:"blocked_domains"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the end-of-run metrics export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"input":        "input",
	"output":       "output",
	"dry-run":      "dry_run",
	"cache-dir":    "cache.dir",
	"ttl-days":     "cache.ttl_days",
	"log-dev":      "logging.development",
	"log-level":    "logging.level",
	"metrics-file": "metrics.textfile",
}

// Load builds a Config from defaults, an optional file, the environment and
// any flags in flags that the user actually set.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := v.BindEnv("reader.api_key", EnvPrefix+"_READER_API_KEY", "JINA_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind reader api key: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input", "")
	v.SetDefault("output", "")
	v.SetDefault("dry_run", false)
	v.SetDefault("cache.dir", ".cache/fetch")
	v.SetDefault("cache.ttl_days", 7)
	v.SetDefault("cache.key_hash", hash.MD5)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("reader.timeout_seconds", 30)
	v.SetDefault("archive.availability_url", "https://archive.org/wayback/available")
	v.SetDefault("archive.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "research-fetcher/1.0 (+https://github.com/JakeFAU/research-fetcher)")
	v.SetDefault("http.requests_per_minute", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("guard.allow_private", false)
	v.SetDefault("guard.blocked_domains", []string{})
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.textfile", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return fmt.Errorf("cache.dir must be set")
	}
	if c.Cache.TTLDays < 0 {
		return fmt.Errorf("cache.ttl_days must be >= 0")
	}
	switch strings.ToLower(c.Cache.KeyHash) {
	case hash.MD5, hash.SHA256:
	default:
		return fmt.Errorf("cache.key_hash must be %q or %q", hash.MD5, hash.SHA256)
	}
	if err := validateEndpoint("reader.base_url", c.Reader.BaseURL); err != nil {
		return err
	}
	if err := validateEndpoint("archive.availability_url", c.Archive.AvailabilityURL); err != nil {
		return err
	}
	if c.Reader.TimeoutSeconds <= 0 {
		return fmt.Errorf("reader.timeout_seconds must be > 0")
	}
	if c.Archive.TimeoutSeconds <= 0 {
		return fmt.Errorf("archive.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerMinute < 0 {
		return fmt.Errorf("http.requests_per_minute must be >= 0")
	}
	return nil
}

func validateEndpoint(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must be set", key)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url", key)
	}
	return nil
}

// CacheTTL converts cache.ttl_days into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLDays) * 24 * time.Hour
}

// ReaderTimeout bounds one reader request.
func (c Config) ReaderTimeout() time.Duration {
	return time.Duration(c.Reader.TimeoutSeconds) * time.Second
}

// ArchiveTimeout bounds one availability lookup.
func (c Config) ArchiveTimeout() time.Duration {
	return time.Duration(c.Archive.TimeoutSeconds) * time.Second
}
