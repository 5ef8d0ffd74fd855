// Package cli implements the framestamp command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/framestamp/pkg/buildinfo"
	"github.com/matzehuels/framestamp/pkg/cache"
	"github.com/matzehuels/framestamp/pkg/config"
	"github.com/matzehuels/framestamp/pkg/fonts"
	"github.com/matzehuels/framestamp/pkg/pipeline"
	"github.com/matzehuels/framestamp/pkg/raster"
	"github.com/matzehuels/framestamp/pkg/scene"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "framestamp"

	// frameKeyType labels frame cache events for observability hooks.
	frameKeyType = "frame"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// Config is loaded before any subcommand runs.
	Config *config.Config

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Framestamp draws templated overlays onto image frames",
		Long:         `Framestamp lays out template-driven overlays (slates, burn-ins, labels, logos, grids) and stamps them onto single frames or whole frame sequences.`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/framestamp/config.toml)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg
	if cfg.Debug {
		c.SetLogLevel(LogDebug)
	}
	return nil
}

// =============================================================================
// Factories
// =============================================================================

// newScene creates a scene whose image references resolve against baseDir.
func (c *CLI) newScene(baseDir string, debug bool) *scene.Scene {
	lib := fonts.New(c.fontDirs(baseDir), 0)
	return scene.New(scene.Options{
		Raster: raster.New(lib),
		Images: raster.NewImageLoader(baseDir, 0),
		Debug:  debug || c.Config.Debug,
		Logger: c.Logger,
	})
}

// fontDirs returns the configured font directories plus the template's own.
func (c *CLI) fontDirs(baseDir string) []string {
	dirs := append([]string{}, c.Config.FontDirs...)
	if baseDir != "" {
		dirs = append(dirs, baseDir, filepath.Join(baseDir, "fonts"))
	}
	return dirs
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, sc *scene.Scene, noCache bool) *pipeline.Runner {
	r := pipeline.NewRunner(sc, c.newCache(ctx, noCache), nil, c.Logger)
	if ttl := c.Config.Cache.TTL.Duration; ttl > 0 {
		r.TTL = ttl
	}
	return r
}

// newCache opens the configured frame cache. Backends that cannot be
// opened degrade to no caching.
func (c *CLI) newCache(ctx context.Context, noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	cc, err := c.openCache(ctx)
	if err != nil {
		c.Logger.Warn("frame cache disabled", "err", err)
		return cache.NewNullCache()
	}
	return cc
}

// openCache opens the configured frame cache backend.
func (c *CLI) openCache(ctx context.Context) (cache.Cache, error) {
	cfg := c.Config.Cache
	switch cfg.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return cache.Instrument(rc, frameKeyType), nil
	}

	dir, err := c.Config.CacheDir()
	if err != nil {
		return nil, fmt.Errorf("get cache dir: %w", err)
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return cache.Instrument(fc, frameKeyType), nil
}
