package config

import (
	"errors"
	"flag"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/jonwraymond/offlinekit/observe"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("offlined", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Version != "agriassist-v1.0.0" {
		t.Errorf("Version = %q", cfg.Version)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %s", cfg.FetchTimeout)
	}
	if !slices.Equal(cfg.Precache, DefaultPrecache) {
		t.Errorf("Precache = %v", cfg.Precache)
	}
	if got := cfg.AskURL(); got != "http://localhost:8080/api/ask" {
		t.Errorf("AskURL = %q", got)
	}
	if cfg.ControlAuthConfigured() {
		t.Error("control auth configured by default")
	}
}

func TestParseEnvAndFlags(t *testing.T) {
	t.Setenv("OFFLINEKIT_ORIGIN", "https://farm.example")
	t.Setenv("OFFLINEKIT_PRECACHE", "/a.html,/b.css")
	t.Setenv("OFFLINEKIT_CONTROL_KEY_HASHES", "abc,def")
	t.Setenv("OFFLINEKIT_FETCH_TIMEOUT", "3s")

	cfg, err := Parse(newFlagSet(), []string{"-cache-version", "agriassist-v2", "-fetch-timeout", "5s"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Version != "agriassist-v2" || cfg.FetchTimeout != 5*time.Second {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if !slices.Equal(cfg.Precache, []string{"/a.html", "/b.css"}) {
		t.Errorf("Precache = %v", cfg.Precache)
	}
	if !slices.Equal(cfg.ControlKeyHashes, []string{"abc", "def"}) || !cfg.ControlAuthConfigured() {
		t.Errorf("ControlKeyHashes = %v", cfg.ControlKeyHashes)
	}
	if got := cfg.AskURL(); got != "https://farm.example/api/ask" {
		t.Errorf("AskURL = %q", got)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("OFFLINEKIT_FETCH_TIMEOUT", "soon")
	if _, err := Parse(newFlagSet(), nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Addr:         ":8090",
			Origin:       "http://localhost:8080",
			Version:      "v1",
			FetchTimeout: time.Second,
			LogLevel:     "info",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"no addr", func(c *Config) { c.Addr = "" }, ErrInvalidAddr},
		{"relative origin", func(c *Config) { c.Origin = "/app" }, ErrInvalidOrigin},
		{"ftp origin", func(c *Config) { c.Origin = "ftp://host" }, ErrInvalidOrigin},
		{"no version", func(c *Config) { c.Version = "" }, ErrMissingVersion},
		{"zero timeout", func(c *Config) { c.FetchTimeout = 0 }, ErrInvalidTimeout},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, observe.ErrInvalidLogLevel},
		{"bad exporter", func(c *Config) { c.MetricsExporter = "statsd" }, observe.ErrInvalidMetricsExporter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPrecacheList(t *testing.T) {
	tests := []struct {
		name    string
		list    []string
		offline string
		want    []string
	}{
		{"appends offline doc", []string{"/"}, "/offline.html", []string{"/", "/offline.html"}},
		{"already present", []string{"/offline.html", "/"}, "/offline.html", []string{"/offline.html", "/"}},
		{"no offline doc", []string{"/"}, "", []string{"/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Precache: tt.list, OfflineURL: tt.offline}
			if got := cfg.PrecacheList(); !slices.Equal(got, tt.want) {
				t.Errorf("PrecacheList = %v, want %v", got, tt.want)
			}
		})
	}
}
