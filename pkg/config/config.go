// Package config loads the framestamp application config.
//
// The config lives in $XDG_CONFIG_HOME/framestamp/config.toml (usually
// ~/.config/framestamp/config.toml). A missing file yields the defaults;
// command-line flags override whatever the file sets.
//
//	workers = 8
//	font_dirs = ["/studio/fonts"]
//
//	[cache]
//	backend = "redis"
//	redis_addr = "cache.farm:6379"
//	ttl = "72h"
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

const (
	appName  = "framestamp"
	fileName = "config.toml"
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the application config.
type Config struct {
	// Workers bounds concurrent frame renders. Zero uses every CPU.
	Workers int `toml:"workers"`
	// FontDirs are searched for fonts named by labels.
	FontDirs []string `toml:"font_dirs"`
	Debug    bool     `toml:"debug"`
	// Quality is the JPEG output quality.
	Quality int `toml:"quality"`

	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// CacheConfig selects and configures the frame cache.
type CacheConfig struct {
	Backend       string   `toml:"backend"`
	Dir           string   `toml:"dir"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	Prefix        string   `toml:"prefix"`
	TTL           Duration `toml:"ttl"`
}

// ServerConfig configures `framestamp serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// TemplateDir holds the templates the service may render by name.
	TemplateDir string `toml:"template_dir"`
	// MaxUploadMB bounds request bodies.
	MaxUploadMB int `toml:"max_upload_mb"`
}

// Duration is a time.Duration written as a string such as "36h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in config.
func Default() *Config {
	return &Config{
		Quality: 95,
		Cache: CacheConfig{
			Backend: BackendFile,
			TTL:     Duration{7 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			MaxUploadMB: 64,
		},
	}
}

// Load reads the config at path over the defaults. A missing file is not
// an error. An empty path uses Path().
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return Default(), nil
		}
		path = p
	}
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errs.Wrap(errs.ErrCodeConfiguration, err, "read config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrCodeConfiguration, err, "config %s", path)
	}
	return cfg, nil
}

// Write stores cfg at path, creating the directory.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, err, "create config dir")
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "encode config")
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate checks enumerated and ranged fields.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", BackendFile, BackendRedis, BackendNone:
	default:
		return errs.New(errs.ErrCodeConfiguration, "cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisAddr == "" {
		return errs.New(errs.ErrCodeConfiguration, "cache.redis_addr is required for the redis backend")
	}
	if c.Workers < 0 {
		return errs.New(errs.ErrCodeConfiguration, "workers must not be negative")
	}
	if c.Quality < 0 || c.Quality > 100 {
		return errs.New(errs.ErrCodeConfiguration, "quality must be between 1 and 100")
	}
	return nil
}

// CacheDir returns the configured frame cache directory, defaulting to
// $XDG_CACHE_HOME/framestamp.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	return CacheDir()
}

// Dir returns $XDG_CONFIG_HOME/framestamp.
func Dir() (string, error) {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return filepath.Join(d, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// Path returns the default config file path.
func Path() (string, error) {
	d, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, fileName), nil
}

// CacheDir returns $XDG_CACHE_HOME/framestamp.
func CacheDir() (string, error) {
	if d := os.Getenv("XDG_CACHE_HOME"); d != "" {
		return filepath.Join(d, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
