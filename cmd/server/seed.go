package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/indexing"
	"github.com/shubhsaxena/directory-assistant/internal/store"
)

func newSeedCmd(configPath *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo directory into the configured store",
		Long: `seed creates the schema (or indices) of the configured store and loads the
demo directory: employees, events, tasks, activities and company articles.
Dates are placed relative to now. Without --force a non-empty store is left alone.`,
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
			return seed(ctx, cmd, a, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "load records even when the store already has data; existing ids are kept")
	return cmd
}

func seed(ctx context.Context, cmd *cobra.Command, a *app, force bool) error {
	ds := store.SeedData(time.Now())
	out := cmd.OutOrStdout()

	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		return fmt.Errorf("the memory store is seeded at startup; set store.seed instead")

	case config.DriverSQLite, config.DriverPostgres:
		cfg := a.cfg.Store
		cfg.Seed = false
		b, err := a.openStore(ctx, cfg)
		if err != nil {
			return err
		}
		s := b.dir.(*store.SQL)
		if force {
			if err := s.Load(ctx, ds); err != nil {
				return fmt.Errorf("loading seed data: %w", err)
			}
			fmt.Fprintf(out, "loaded %d records into %s\n", ds.Len(), a.cfg.Store.Driver)
			return nil
		}
		seeded, err := s.SeedIfEmpty(ctx, ds)
		if err != nil {
			return fmt.Errorf("seeding store: %w", err)
		}
		if !seeded {
			fmt.Fprintln(out, "store already has data, nothing loaded (use --force)")
			return nil
		}
		fmt.Fprintf(out, "seeded %s with %d records\n", a.cfg.Store.Driver, ds.Len())
		return nil

	case config.DriverElasticsearch:
		es, err := a.openIndex(ctx)
		if err != nil {
			return err
		}
		report, err := indexing.NewReindexer(es, nil, a.cfg.Elasticsearch.BulkSize, a.logger).
			Run(ctx, store.NewMemory(ds))
		if err != nil {
			return err
		}
		a.logger.Info("index seeded", zap.Int("records", report.Records))
		fmt.Fprintf(out, "indexed %d records in %d batches\n", report.Records, report.Batches)
		return nil
	}
	return fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
}
