// Package config loads depscout settings from defaults, an optional
// depscout.yaml and DEPSCOUT_* environment variables. Command-line flags are
// applied on top by the CLI.
package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matzehuels/depscout/pkg/cache"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/errors"
	"github.com/matzehuels/depscout/pkg/scan"
)

const (
	// AppName names directories and the environment prefix.
	AppName = "depscout"
	// FileName is the config file base name, looked up without extension.
	FileName = "depscout"
	// EnvPrefix prefixes environment overrides, as in DEPSCOUT_SCAN_PARALLELISM.
	EnvPrefix = "DEPSCOUT"
)

// Config is the complete settings tree.
type Config struct {
	Scan   Scan   `mapstructure:"scan"`
	Cache  Cache  `mapstructure:"cache"`
	Store  Store  `mapstructure:"store"`
	Server Server `mapstructure:"server"`
}

// Scan holds defaults for scan options.
type Scan struct {
	Parallelism       int           `mapstructure:"parallelism"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DetectorTimeout   time.Duration `mapstructure:"detector_timeout"`
	Categories        []string      `mapstructure:"categories"`
	ExcludeCategories []string      `mapstructure:"exclude_categories"`
	Detectors         []string      `mapstructure:"detectors"`
	DisableDetectors  []string      `mapstructure:"disable_detectors"`
	Experimental      bool          `mapstructure:"experimental"`
	Exclude           []string      `mapstructure:"exclude"`
	RequireDetectors  bool          `mapstructure:"require_detectors"`
	// Args are "key=value" detector arguments. A list keeps dotted keys
	// and their case intact.
	Args []string `mapstructure:"args"`
}

// Cache selects the detector output cache.
type Cache struct {
	// Backend is "file", "memory", "redis" or "none".
	Backend string        `mapstructure:"backend"`
	Dir     string        `mapstructure:"dir"`
	TTL     time.Duration `mapstructure:"ttl"`
	// RedisURL is used by the redis backend.
	RedisURL string `mapstructure:"redis_url"`
	// Size bounds the memory backend.
	Size int `mapstructure:"size"`
}

// Store names the scan history store. An empty DSN disables history.
type Store struct {
	DSN string `mapstructure:"dsn"`
}

// Server configures "depscout serve".
type Server struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// AllowedRoots restricts the directories API clients may scan. Empty
	// allows any directory.
	AllowedRoots []string `mapstructure:"allowed_roots"`
}

// Cache backends.
const (
	CacheFile   = "file"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Scan: Scan{
			DetectorTimeout: scan.DefaultDetectorTimeout,
		},
		Cache: Cache{
			Backend: CacheFile,
			TTL:     scan.DefaultCacheTTL,
			Size:    cache.DefaultMemoryEntries,
		},
		Server: Server{
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
		},
	}
}

// Load reads the settings. When path is empty, depscout.yaml is looked up in
// the working directory and then in [Dir]; a missing file is not an error.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values no flag or file should be able to produce.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheFile, CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_url is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Scan.Parallelism < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "scan.parallelism cannot be negative")
	}
	for _, p := range c.Scan.Exclude {
		if err := errors.ValidatePattern(p); err != nil {
			return err
		}
	}
	if _, err := detector.ParseArgs(c.Scan.Args); err != nil {
		return err
	}
	return nil
}

// Source reports which file Load would read for path, or "" when none.
func Source(path string) string {
	if path != "" {
		return path
	}
	candidates := []string{FileName + ".yaml", FileName + ".yml"}
	dirs := []string{"."}
	if dir, err := Dir(); err == nil {
		dirs = append(dirs, dir)
	}
	for _, d := range dirs {
		for _, c := range candidates {
			p := filepath.Join(d, c)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p
			}
		}
	}
	return ""
}

// Dir returns the user config directory ($XDG_CONFIG_HOME/depscout).
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// CacheDir returns the default file cache directory ($XDG_CACHE_HOME/depscout).
func CacheDir() (string, error) {
	if base := os.Getenv("XDG_CACHE_HOME"); base != "" {
		return filepath.Join(base, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	return filepath.Join(home, ".cache", AppName), nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("scan.parallelism", d.Scan.Parallelism)
	v.SetDefault("scan.timeout", d.Scan.Timeout)
	v.SetDefault("scan.detector_timeout", d.Scan.DetectorTimeout)
	v.SetDefault("scan.categories", d.Scan.Categories)
	v.SetDefault("scan.exclude_categories", d.Scan.ExcludeCategories)
	v.SetDefault("scan.detectors", d.Scan.Detectors)
	v.SetDefault("scan.disable_detectors", d.Scan.DisableDetectors)
	v.SetDefault("scan.experimental", d.Scan.Experimental)
	v.SetDefault("scan.exclude", d.Scan.Exclude)
	v.SetDefault("scan.require_detectors", d.Scan.RequireDetectors)
	v.SetDefault("scan.args", d.Scan.Args)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.allowed_roots", d.Server.AllowedRoots)
}

// Options converts the scan section into orchestrator options. Cache,
// logger and hooks are left for the caller.
func (s Scan) Options() (scan.Options, error) {
	args, err := detector.ParseArgs(s.Args)
	if err != nil {
		return scan.Options{}, err
	}
	return scan.Options{
		Categories:          s.Categories,
		ExcludeCategories:   s.ExcludeCategories,
		DetectorIDs:         s.Detectors,
		DisabledDetectorIDs: s.DisableDetectors,
		EnableExperimental:  s.Experimental,
		RequireDetectors:    s.RequireDetectors,
		Parallelism:         s.Parallelism,
		DetectorTimeout:     s.DetectorTimeout,
		Exclude:             s.Exclude,
		Args:                args,
	}, nil
}

// Open builds the configured detector cache.
func (c Cache) Open(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case CacheNone:
		return cache.NewNullCache(), nil
	case CacheMemory:
		return cache.NewMemoryCache(c.Size, c.TTL), nil
	case CacheRedis:
		rc, err := cache.NewRedisCache(ctx, c.RedisURL, "")
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "connect to redis")
		}
		return rc, nil
	default:
		dir := c.Dir
		if dir == "" {
			d, err := CacheDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
}
