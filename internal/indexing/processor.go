// Package indexing copies the directory from its system of record into the
// Elasticsearch index used for lookups.
package indexing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/elasticsearch"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
	"github.com/shubhsaxena/directory-assistant/internal/resilience"
	"github.com/shubhsaxena/directory-assistant/internal/store"
)

// Index is the write side of the search index.
type Index interface {
	Actions(ds *store.Dataset) []elasticsearch.IndexAction
	BulkIndex(ctx context.Context, actions []elasticsearch.IndexAction) error
}

// Invalidator drops cached lookups once the index has changed.
type Invalidator interface {
	Invalidate(ctx context.Context) (int, error)
}

// Report summarizes one reindex run.
type Report struct {
	Records     int
	Batches     int
	Invalidated int
	Duration    time.Duration
}

type Reindexer struct {
	index       Index
	invalidator Invalidator
	bulkSize    int
	retry       resilience.RetryConfig
	logger      *zap.Logger

	buffer []elasticsearch.IndexAction
	report Report
}

// NewReindexer accepts a nil invalidator when no cache is configured.
func NewReindexer(index Index, invalidator Invalidator, bulkSize int, logger *zap.Logger) *Reindexer {
	if bulkSize < 1 {
		bulkSize = 500
	}
	return &Reindexer{
		index:       index,
		invalidator: invalidator,
		bulkSize:    bulkSize,
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			InitialWait: 200 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2,
		},
		logger: logger,
	}
}

// Run exports every record from src and writes it to the index in batches
// of bulkSize. A batch that still fails after retries aborts the run;
// batches already written stay indexed.
func (r *Reindexer) Run(ctx context.Context, src store.Directory) (Report, error) {
	start := time.Now()
	r.buffer = make([]elasticsearch.IndexAction, 0, r.bulkSize)
	r.report = Report{}

	ds, err := store.Export(ctx, src)
	if err != nil {
		return r.report, fmt.Errorf("exporting directory: %w", err)
	}

	for _, action := range r.index.Actions(ds) {
		r.buffer = append(r.buffer, action)
		if len(r.buffer) >= r.bulkSize {
			if err := r.flush(ctx); err != nil {
				return r.report, err
			}
		}
	}
	if err := r.flush(ctx); err != nil {
		return r.report, err
	}

	if r.invalidator != nil {
		n, err := r.invalidator.Invalidate(ctx)
		if err != nil {
			// Stale entries expire on their own TTL.
			r.logger.Warn("cache invalidation after reindex failed", zap.Error(err))
		}
		r.report.Invalidated = n
	}

	r.report.Duration = time.Since(start)
	r.logger.Info("reindex completed",
		zap.Int("records", r.report.Records),
		zap.Int("batches", r.report.Batches),
		zap.Int("invalidated", r.report.Invalidated),
		zap.Duration("duration", r.report.Duration),
	)
	return r.report, nil
}

func (r *Reindexer) flush(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}
	batch := r.buffer
	r.buffer = make([]elasticsearch.IndexAction, 0, r.bulkSize)

	start := time.Now()
	err := resilience.Retry(ctx, r.retry, func() error {
		return r.index.BulkIndex(ctx, batch)
	})
	counts := countByIndex(batch)
	if err != nil {
		for index, n := range counts {
			observability.ReindexRecordsTotal.WithLabelValues(index, "error").Add(float64(n))
		}
		return fmt.Errorf("bulk index batch %d: %w", r.report.Batches+1, err)
	}

	for index, n := range counts {
		observability.ReindexRecordsTotal.WithLabelValues(index, "success").Add(float64(n))
	}
	r.report.Records += len(batch)
	r.report.Batches++
	r.logger.Debug("bulk flush completed",
		zap.Int("count", len(batch)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func countByIndex(batch []elasticsearch.IndexAction) map[string]int {
	counts := make(map[string]int)
	for _, a := range batch {
		counts[a.Index]++
	}
	return counts
}
