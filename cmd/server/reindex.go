package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shubhsaxena/directory-assistant/internal/cache"
	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/indexing"
)

func newReindexCmd(configPath *string) *cobra.Command {
	var fromDriver, fromDSN string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Copy the directory from a SQL store into Elasticsearch",
		Long: `reindex exports every record from the source store and bulk-writes it into
the Elasticsearch indices, one index per record kind. When Redis is enabled
the lookup cache is dropped afterwards so answers reflect the new index.`,
		Example: `  directory-assistant reindex --from sqlite --from-dsn file:directory.db
  directory-assistant reindex --from postgres --from-dsn postgres://assistant@db/directory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			src := a.cfg.Store
			if fromDriver != "" {
				src.Driver = fromDriver
			}
			if fromDSN != "" {
				src.DSN = fromDSN
			}
			if src.Driver == config.DriverElasticsearch {
				return fmt.Errorf("reindex source must be memory, sqlite or postgres")
			}
			return reindex(ctx, cmd, a, src)
		},
	}
	cmd.Flags().StringVar(&fromDriver, "from", "", "source store driver (memory, sqlite, postgres); defaults to store.driver")
	cmd.Flags().StringVar(&fromDSN, "from-dsn", "", "source store dsn; defaults to store.dsn")
	return cmd
}

func reindex(ctx context.Context, cmd *cobra.Command, a *app, src config.StoreConfig) error {
	source, err := a.openStore(ctx, src)
	if err != nil {
		return err
	}
	es, err := a.openIndex(ctx)
	if err != nil {
		return err
	}

	var invalidator indexing.Invalidator
	if a.cfg.Redis.Enabled {
		c, err := cache.NewRedisCache(a.cfg.Redis, es, a.logger)
		if err != nil {
			return fmt.Errorf("connecting to redis for invalidation: %w", err)
		}
		a.onClose(c.Close)
		invalidator = c
	}

	report, err := indexing.NewReindexer(es, invalidator, a.cfg.Elasticsearch.BulkSize, a.logger).Run(ctx, source.dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d records in %d batches (%d cache keys dropped) in %s\n",
		report.Records, report.Batches, report.Invalidated, report.Duration)
	return nil
}
