package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framestamp/pkg/cache"
	"github.com/matzehuels/framestamp/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the stamped frame cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := c.Config.Cache.Backend
			if backend == config.BackendNone {
				printInfo("Caching is disabled")
				return nil
			}
			cc, err := c.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer cc.Close()

			ok, err := cache.Clear(cmd.Context(), cc)
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			if !ok {
				printWarning("The %s cache cannot be cleared", backend)
				return nil
			}
			printSuccess("Cleared the %s cache", backend)
			if backend != config.BackendRedis {
				if dir, err := c.Config.CacheDir(); err == nil {
					printDetail("Directory: %s", dir)
				}
			} else {
				printDetail("Server: %s", c.Config.Cache.RedisAddr)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.Config.CacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}
