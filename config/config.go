// Package config loads offlined settings from the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/offlinekit/observe"
)

// DefaultPrecache is the application shell cached at install time.
var DefaultPrecache = []string{
	"/",
	"/index.html",
	"/pages/homepage_ai_query_interface.html",
	"/pages/knowledge_base_crop_season_guide.html",
	"/pages/community_hub_farmer_network.html",
	"/pages/expert_network_agricultural_officer_connect.html",
	"/pages/my_farm_dashboard_personalized_advisor.html",
	"/pages/crop_calculator_profit_analyzer.html",
	"/pages/help_support_multilingual_assistance.html",
	"/css/main.css",
	"/css/tailwind.css",
	"/public/manifest.json",
	"/public/favicon.ico",
}

// Sentinel errors.
var (
	ErrInvalidOrigin  = errors.New("config: origin must be an absolute http(s) URL")
	ErrMissingVersion = errors.New("config: cache version is required")
	ErrInvalidTimeout = errors.New("config: fetch timeout must be positive")
	ErrInvalidAddr    = errors.New("config: listen address is required")
)

// Config holds offlined configuration.
type Config struct {
	Addr       string   `env:"OFFLINEKIT_ADDR"          envDefault:"localhost:8090"`
	Origin     string   `env:"OFFLINEKIT_ORIGIN"        envDefault:"http://localhost:8080"`
	Version    string   `env:"OFFLINEKIT_CACHE_VERSION" envDefault:"agriassist-v1.0.0"`
	Precache   []string `env:"OFFLINEKIT_PRECACHE"      envSeparator:","`
	OfflineURL string   `env:"OFFLINEKIT_OFFLINE_URL"   envDefault:"/offline.html"`
	APIURL     string   `env:"OFFLINEKIT_API_URL"`

	// An empty path keeps that store in memory.
	CachePath string `env:"OFFLINEKIT_CACHE_PATH" envDefault:"data/cache"`
	QueuePath string `env:"OFFLINEKIT_QUEUE_PATH" envDefault:"data/queue.db"`

	FetchTimeout        time.Duration `env:"OFFLINEKIT_FETCH_TIMEOUT"        envDefault:"10s"`
	PrecacheConcurrency int           `env:"OFFLINEKIT_PRECACHE_CONCURRENCY" envDefault:"4"`
	SyncInterval        time.Duration `env:"OFFLINEKIT_SYNC_INTERVAL"        envDefault:"30s"`
	QueueWarnDepth      int           `env:"OFFLINEKIT_QUEUE_WARN_DEPTH"     envDefault:"100"`
	ReplayAttempts      int           `env:"OFFLINEKIT_REPLAY_ATTEMPTS"      envDefault:"3"`

	LogLevel        string  `env:"OFFLINEKIT_LOG_LEVEL"        envDefault:"info"`
	TraceExporter   string  `env:"OFFLINEKIT_TRACE_EXPORTER"   envDefault:"none"`
	TraceSample     float64 `env:"OFFLINEKIT_TRACE_SAMPLE"     envDefault:"1"`
	MetricsExporter string  `env:"OFFLINEKIT_METRICS_EXPORTER" envDefault:"none"`

	ControlKeyHashes []string `env:"OFFLINEKIT_CONTROL_KEY_HASHES" envSeparator:","`
	ControlJWTSecret string   `env:"OFFLINEKIT_CONTROL_JWT_SECRET"`
	ControlJWTIssuer string   `env:"OFFLINEKIT_CONTROL_JWT_ISSUER"`
	ControlRate      float64  `env:"OFFLINEKIT_CONTROL_RATE"  envDefault:"5"`
	ControlBurst     int      `env:"OFFLINEKIT_CONTROL_BURST" envDefault:"10"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Parse reads the environment, then lets flags in args override it.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if len(cfg.Precache) == 0 {
		cfg.Precache = slices.Clone(DefaultPrecache)
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "application origin to front")
	fs.StringVar(&cfg.Version, "cache-version", cfg.Version, "cache generation name")
	fs.StringVar(&cfg.CachePath, "cache-path", cfg.CachePath, "leveldb cache directory (empty for memory)")
	fs.StringVar(&cfg.QueuePath, "queue-path", cfg.QueuePath, "sqlite queue file (empty for memory)")
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "endpoint deferred questions are replayed to")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "network fetch deadline")
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "background sync period (0 disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration and the observability settings derived
// from it.
func (c Config) Validate() error {
	if c.Addr == "" {
		return ErrInvalidAddr
	}
	if _, err := c.OriginURL(); err != nil {
		return err
	}
	if c.Version == "" {
		return ErrMissingVersion
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.FetchTimeout)
	}
	obs := c.Observe("offlined")
	return obs.Validate()
}

// OriginURL parses Origin.
func (c Config) OriginURL() (*url.URL, error) {
	u, err := url.Parse(c.Origin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrigin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrigin, c.Origin)
	}
	return u, nil
}

// AskURL is where the offline queue replays questions; it defaults to
// /api/ask on the origin.
func (c Config) AskURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	return strings.TrimSuffix(c.Origin, "/") + "/api/ask"
}

// PrecacheList is the precache list with the offline document included.
func (c Config) PrecacheList() []string {
	list := slices.Clone(c.Precache)
	if c.OfflineURL != "" && !slices.Contains(list, c.OfflineURL) {
		list = append(list, c.OfflineURL)
	}
	return list
}

// ControlAuthConfigured reports whether the control endpoint requires
// credentials.
func (c Config) ControlAuthConfigured() bool {
	return len(c.ControlKeyHashes) > 0 || c.ControlJWTSecret != ""
}

// Observe maps the telemetry settings onto observe.Config.
func (c Config) Observe(service string) observe.Config {
	return observe.Config{
		ServiceName: service,
		Version:     c.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.TraceExporter != "" && c.TraceExporter != "none",
			Exporter:  c.TraceExporter,
			SamplePct: c.TraceSample,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsExporter != "" && c.MetricsExporter != "none",
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}
