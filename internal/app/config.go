package app

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"hnproxy/internal/extractors/filters"
	"hnproxy/internal/stories"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Config holds runtime settings for the server.
type Config struct {
	Addr     string         `yaml:"addr"`
	Env      string         `yaml:"env"`
	LogLevel string         `yaml:"log_level"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Query    QueryConfig    `yaml:"query"`
	CORS     CORSConfig     `yaml:"cors"`
	Article  ArticleConfig  `yaml:"article"`
}

type UpstreamConfig struct {
	BaseURL               string `yaml:"base_url"`
	CacheDurationMinutes  int    `yaml:"cache_duration_minutes"`
	MaxConcurrentRequests int    `yaml:"max_concurrent_requests"`
	RequestTimeout        string `yaml:"request_timeout"`
	RetryMax              int    `yaml:"retry_max"`
	UserAgent             string `yaml:"user_agent"`
}

type CacheConfig struct {
	SweepInterval string `yaml:"sweep_interval"`
}

type QueryConfig struct {
	MaxStories      int `yaml:"max_stories"`
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

type CORSConfig struct {
	// AllowedOrigins empty means any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ArticleConfig struct {
	Enabled        bool                `yaml:"enabled"`
	CacheDuration  string              `yaml:"cache_duration"`
	RequestTimeout string              `yaml:"request_timeout"`
	UserAgent      string              `yaml:"user_agent"`
	Filters        []filters.URLFilter `yaml:"filters"`
	Sites          []SiteConfig        `yaml:"sites"`
}

// SiteConfig routes a domain to selector based extraction.
type SiteConfig struct {
	Domain    string   `yaml:"domain"`
	Selectors []string `yaml:"selectors"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() *Config {
	cfg, err := loadDefaults()
	if err != nil {
		// the embedded file is part of the binary
		panic(err)
	}
	return cfg
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// DefaultConfigYAML returns the embedded default configuration file.
func DefaultConfigYAML() []byte {
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return data
}

// DefaultConfigPath is where Load looks when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "hnproxy", "config.yaml")
}

// Load reads the config at path over the defaults, applies environment
// overrides and validates the result. An empty path uses
// DefaultConfigPath, which may be absent.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// defaults only
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	// Allow overriding port via PORT env (useful for platforms)
	if p := os.Getenv("PORT"); p != "" {
		cfg.Addr = ":" + p
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Env = env
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if u := os.Getenv("HNPROXY_BASE_URL"); u != "" {
		cfg.Upstream.BaseURL = u
	}
}

func validate(cfg *Config) error {
	if cfg.LogLevel != "" {
		if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url: scheme must be http or https, got %q", u.Scheme)
	}
	if cfg.Upstream.CacheDurationMinutes <= 0 {
		return fmt.Errorf("upstream.cache_duration_minutes must be positive, got %d", cfg.Upstream.CacheDurationMinutes)
	}
	if cfg.Upstream.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("upstream.max_concurrent_requests must be positive, got %d", cfg.Upstream.MaxConcurrentRequests)
	}
	if cfg.Upstream.RetryMax < 0 {
		return fmt.Errorf("upstream.retry_max must not be negative, got %d", cfg.Upstream.RetryMax)
	}
	for name, d := range map[string]string{
		"upstream.request_timeout": cfg.Upstream.RequestTimeout,
		"cache.sweep_interval":     cfg.Cache.SweepInterval,
		"article.cache_duration":   cfg.Article.CacheDuration,
		"article.request_timeout":  cfg.Article.RequestTimeout,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for i, site := range cfg.Article.Sites {
		if site.Domain == "" || len(site.Selectors) == 0 {
			return fmt.Errorf("article.sites[%d]: domain and selectors are required", i)
		}
	}
	if cfg.Query.MaxStories <= 0 || cfg.Query.MaxStories > stories.MaxStories {
		return fmt.Errorf("query.max_stories must be in [1, %d], got %d", stories.MaxStories, cfg.Query.MaxStories)
	}
	if cfg.Query.MaxPageSize <= 0 || cfg.Query.MaxPageSize > 100 {
		return fmt.Errorf("query.max_page_size must be in [1, 100], got %d", cfg.Query.MaxPageSize)
	}
	if cfg.Query.DefaultPageSize <= 0 || cfg.Query.DefaultPageSize > cfg.Query.MaxPageSize {
		return fmt.Errorf("query.default_page_size must be in [1, %d], got %d", cfg.Query.MaxPageSize, cfg.Query.DefaultPageSize)
	}
	return nil
}

// CacheDuration is the id list TTL.
func (c *Config) CacheDuration() time.Duration {
	return time.Duration(c.Upstream.CacheDurationMinutes) * time.Minute
}

func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.Upstream.RequestTimeout, 10*time.Second)
}

func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.Cache.SweepInterval, 10*time.Minute)
}

func (c *Config) ArticleCacheDuration() time.Duration {
	return parseDuration(c.Article.CacheDuration, 2*time.Hour)
}

func (c *Config) ArticleTimeout() time.Duration {
	return parseDuration(c.Article.RequestTimeout, 15*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
