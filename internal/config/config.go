// Package config loads and validates the fedroute configuration file.
//
// The file lives at ~/.fedroute/config.yaml (or $FEDROUTE_HOME/config.yaml) unless
// a path is given explicitly. Every section has defaults, so an absent file or an
// absent section yields a working single-node configuration backed by the memory
// directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/directory/cache"
	"github.com/s100fed/fedroute/internal/recommend"
	"github.com/s100fed/fedroute/internal/render"
	"github.com/s100fed/fedroute/internal/scoring"
)

// Environment variables that override values from the configuration file.
const (
	EnvHome          = "FEDROUTE_HOME"
	EnvLogLevel      = "FEDROUTE_LOG_LEVEL"
	EnvLogFormat     = "FEDROUTE_LOG_FORMAT"
	EnvListen        = "FEDROUTE_LISTEN"
	EnvDatabaseURL   = "FEDROUTE_DATABASE_URL"
	EnvMinConfidence = "FEDROUTE_MIN_CONFIDENCE"
)

// Directory drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// ConfigFileName is the name of the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

const (
	defaultListen        = ":8080"
	defaultReadTimeout   = 15 * time.Second
	defaultWriteTimeout  = 30 * time.Second
	defaultRenderTimeout = 10 * time.Second
	defaultMaxDimension  = 4096
	defaultLimit         = 10
	defaultMaxLimit      = 100
	defaultMaxCandidates = 100
	defaultSaturation    = 20
)

// Config is the root of the configuration file.
type Config struct {
	Server    ServerConfig     `yaml:"server" json:"server"`
	Catalog   CatalogConfig    `yaml:"catalog" json:"catalog"`
	Limits    LimitsConfig     `yaml:"limits" json:"limits"`
	Routing   RoutingConfig    `yaml:"routing" json:"routing"`
	Scoring   scoring.Weights  `yaml:"scoring" json:"scoring"`
	Recommend RecommendConfig  `yaml:"recommend" json:"recommend"`
	Directory DirectoryConfig  `yaml:"directory" json:"directory"`
	Cache     CacheConfig      `yaml:"cache" json:"cache"`
	Renderers []RendererConfig `yaml:"renderers,omitempty" json:"renderers,omitempty"`
	Logging   LoggingConfig    `yaml:"logging" json:"logging"`

	// path is where the configuration was loaded from; empty for defaults.
	path string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen       string        `yaml:"listen" json:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// CatalogConfig narrows the product and service catalogs. Empty lists mean the full catalog.
type CatalogConfig struct {
	Products []string `yaml:"products,omitempty" json:"products,omitempty"`
	Services []string `yaml:"services,omitempty" json:"services,omitempty"`
}

// LimitsConfig bounds request dimensions.
type LimitsConfig struct {
	MaxWidth  int `yaml:"max_width" json:"max_width"`
	MaxHeight int `yaml:"max_height" json:"max_height"`
}

// RecommendConfig configures the discovery recommendation ranker.
type RecommendConfig struct {
	Weights              recommend.Weights `yaml:"weights" json:"weights"`
	PreferenceSaturation int               `yaml:"preference_saturation" json:"preference_saturation"`
	DefaultLimit         int               `yaml:"default_limit" json:"default_limit"`
	MaxLimit             int               `yaml:"max_limit" json:"max_limit"`
	MaxCandidates        int               `yaml:"max_candidates" json:"max_candidates"`
}

// DirectoryConfig selects and configures the candidate store.
type DirectoryConfig struct {
	// Driver is "memory" (YAML snapshot) or "postgres".
	Driver string `yaml:"driver" json:"driver"`
	// Snapshot is the YAML directory file for the memory driver.
	Snapshot string `yaml:"snapshot,omitempty" json:"snapshot,omitempty"`
	// DatabaseURL is the lib/pq connection string for the postgres driver.
	DatabaseURL string `yaml:"database_url,omitempty" json:"database_url,omitempty"`
	// MigrateOnStart applies pending migrations when the server starts.
	MigrateOnStart bool `yaml:"migrate_on_start,omitempty" json:"migrate_on_start,omitempty"`
	// History is an optional YAML file of access records for the memory driver.
	History string `yaml:"history,omitempty" json:"history,omitempty"`
}

// CacheConfig configures the cached directory lookup.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	TTLSeconds int  `yaml:"ttl_seconds" json:"ttl_seconds"`
	// Strategies holds informational TTLs per invalidation strategy.
	Strategies map[string]time.Duration `yaml:"strategies,omitempty" json:"strategies,omitempty"`
}

// RendererConfig declares a local renderer for one product/service pair.
type RendererConfig struct {
	Product     string        `yaml:"product" json:"product"`
	Service     string        `yaml:"service" json:"service"`
	Kind        string        `yaml:"kind" json:"kind"`
	URL         string        `yaml:"url,omitempty" json:"url,omitempty"`
	File        string        `yaml:"file,omitempty" json:"file,omitempty"`
	ContentType string        `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Operations  []string      `yaml:"operations,omitempty" json:"operations,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	strategies := make(map[string]time.Duration)
	for s, ttl := range cache.DefaultStrategyTTLs() {
		strategies[string(s)] = ttl
	}
	return &Config{
		Server: ServerConfig{
			Listen:       defaultListen,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
		},
		Limits: LimitsConfig{
			MaxWidth:  defaultMaxDimension,
			MaxHeight: defaultMaxDimension,
		},
		Routing: DefaultRoutingConfig(),
		Scoring: scoring.DefaultWeights(),
		Recommend: RecommendConfig{
			Weights:              recommend.DefaultWeights(),
			PreferenceSaturation: defaultSaturation,
			DefaultLimit:         defaultLimit,
			MaxLimit:             defaultMaxLimit,
			MaxCandidates:        defaultMaxCandidates,
		},
		Directory: DirectoryConfig{Driver: DriverMemory},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: cache.DefaultTTLSeconds,
			Strategies: strategies,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration at path. An empty path means the default location;
// a missing file at the default location is not an error and yields defaults.
// Environment overrides are applied after the file is read.
func Load(path string) (*Config, error) {
	cfg := New()
	explicit := path != ""
	if !explicit {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		cfg.path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err = cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the configuration was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration as YAML to path, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration values from FEDROUTE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Directory.DatabaseURL = v
		c.Directory.Driver = DriverPostgres
	}
	if v := os.Getenv(EnvMinConfidence); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid value %q: %w", EnvMinConfidence, v, err)
		}
		c.Routing.MinConfidence = f
	}
	c.Cache.TTLSeconds = cache.TTLFromEnv(c.Cache.TTLSeconds)
	c.Cache.Enabled = cache.EnabledFromEnv(c.Cache.Enabled)
	return nil
}

// Validate checks every section and returns the first error found.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("server: listen address is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.New("server: timeouts must be non-negative")
	}
	if _, unknown := catalog.New(c.Catalog.Products, c.Catalog.Services); len(unknown) > 0 {
		return fmt.Errorf("catalog: unknown entries %v", unknown)
	}
	if c.Limits.MaxWidth <= 0 || c.Limits.MaxHeight <= 0 {
		return fmt.Errorf("limits: max_width and max_height must be positive, got %dx%d",
			c.Limits.MaxWidth, c.Limits.MaxHeight)
	}
	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing: %w", err)
	}
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	if err := c.Directory.Validate(); err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	for i, r := range c.Renderers {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("renderers[%d]: %w", i, err)
		}
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// Catalogs returns the configured product and service catalog.
func (c *Config) Catalogs() *catalog.Catalog {
	cat, _ := catalog.New(c.Catalog.Products, c.Catalog.Services)
	return cat
}

// RendererSpecs converts the renderer entries for render.BuildRegistry.
func (c *Config) RendererSpecs() []render.Spec {
	specs := make([]render.Spec, 0, len(c.Renderers))
	for _, r := range c.Renderers {
		specs = append(specs, render.Spec{
			Product:     r.Product,
			Service:     r.Service,
			Kind:        r.Kind,
			URL:         r.URL,
			File:        r.File,
			ContentType: r.ContentType,
			Operations:  r.Operations,
		})
	}
	return specs
}

// RenderTimeout returns the longest configured renderer timeout, or the default.
func (c *Config) RenderTimeout() time.Duration {
	timeout := time.Duration(0)
	for _, r := range c.Renderers {
		if r.Timeout > timeout {
			timeout = r.Timeout
		}
	}
	if timeout == 0 {
		return defaultRenderTimeout
	}
	return timeout
}

// Validate checks the recommendation settings.
func (r RecommendConfig) Validate() error {
	w := r.Weights
	for name, v := range map[string]float64{
		"quality": w.Quality, "preference": w.Preference, "context": w.Context, "spatial": w.Spatial,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s must be within [0,1], got %g", name, v)
		}
	}
	if r.PreferenceSaturation <= 0 {
		return fmt.Errorf("preference_saturation must be positive, got %d", r.PreferenceSaturation)
	}
	if r.DefaultLimit <= 0 || r.MaxLimit <= 0 {
		return errors.New("default_limit and max_limit must be positive")
	}
	if r.DefaultLimit > r.MaxLimit {
		return fmt.Errorf("default_limit %d exceeds max_limit %d", r.DefaultLimit, r.MaxLimit)
	}
	if r.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive, got %d", r.MaxCandidates)
	}
	return nil
}

// Validate checks the directory driver settings.
func (d DirectoryConfig) Validate() error {
	switch d.Driver {
	case DriverMemory, "":
		return nil
	case DriverPostgres:
		if d.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the %s driver", DriverPostgres)
		}
		return nil
	default:
		return fmt.Errorf("unknown driver %q (must be %q or %q)", d.Driver, DriverMemory, DriverPostgres)
	}
}

// Validate checks the cache TTL bounds.
func (c CacheConfig) Validate() error {
	if err := cache.ValidateTTL(c.TTLSeconds); err != nil {
		return err
	}
	for name, ttl := range c.Strategies {
		if ttl <= 0 {
			return fmt.Errorf("strategy %q: ttl must be positive", name)
		}
	}
	return nil
}

// Validate checks that the renderer entry is complete for its kind.
func (r RendererConfig) Validate() error {
	if r.Product == "" || r.Service == "" {
		return errors.New("product and service are required")
	}
	switch r.Kind {
	case render.KindHTTP:
		if r.URL == "" {
			return fmt.Errorf("%s/%s: url is required for kind %q", r.Product, r.Service, r.Kind)
		}
	case render.KindStatic:
		if r.File == "" {
			return fmt.Errorf("%s/%s: file is required for kind %q", r.Product, r.Service, r.Kind)
		}
	default:
		return fmt.Errorf("%s/%s: unknown kind %q (must be %q or %q)",
			r.Product, r.Service, r.Kind, render.KindHTTP, render.KindStatic)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("%s/%s: timeout must be non-negative", r.Product, r.Service)
	}
	return nil
}
