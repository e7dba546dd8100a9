package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/apiq/pkg/store"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the snapshot cache",
		Long:  "Inspect and clear the snapshot cache that carries query results across runs",
	}

	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show snapshot cache statistics",
		Long:  "Display the snapshot cache configuration and entry count where the backend reports one",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := snapshotCacheConfig()
			if err != nil {
				return err
			}

			if config == nil {
				fmt.Println("No snapshot cache configured")

				return nil
			}

			cache, err := store.NewCacheFromConfig(config)
			if err != nil {
				return fmt.Errorf("opening snapshot cache: %w", err)
			}
			defer closeCache(cache)

			stats := map[string]interface{}{
				"type": string(config.Type),
				"ttl":  config.Options.TTL.String(),
			}

			if config.NATS != nil {
				stats["bucket"] = config.NATS.Bucket
				stats["url"] = config.NATS.URL
			}

			if countable, ok := cache.(interface{ Len() int }); ok {
				stats["entries"] = countable.Len()
			} else {
				stats["entries"] = NotAvailable
			}

			return renderStructured(stats, func() error {
				return renderObjectTable(stats)
			})
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the snapshot cache",
		Long:  "Remove every entry from the configured snapshot cache backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := snapshotCacheConfig()
			if err != nil {
				return err
			}

			if config == nil {
				fmt.Println("No snapshot cache configured")

				return nil
			}

			cache, err := store.NewCacheFromConfig(config)
			if err != nil {
				return fmt.Errorf("opening snapshot cache: %w", err)
			}
			defer closeCache(cache)

			err = cache.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clearing snapshot cache: %w", err)
			}

			fmt.Println("Snapshot cache cleared")

			return nil
		},
	}
}

// closeCache releases backend resources for caches that hold any.
func closeCache(cache store.Cache) {
	if closer, ok := cache.(interface{ Close() }); ok {
		closer.Close()
	}
}
