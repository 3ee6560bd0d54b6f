// Package clickhouse is the analytics sink: one row per answered question,
// and the intent breakdown read back from those rows.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
)

type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:   conn,
		logger: logger,
	}, nil
}

// WriteAnalyticsEvent stores one question or slow pipeline event.
func (c *Client) WriteAnalyticsEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	start := time.Now()
	query := `
		INSERT INTO assistant_questions (
			event_type, query_hash, intent, confidence, source, duration_ms,
			results, fuzzy, used_model, timestamp, trace_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := c.conn.Exec(ctx, query,
		event.EventType,
		event.QueryHash,
		event.Intent,
		event.Confidence,
		event.Source,
		event.DurationMs,
		int32(event.Results),
		event.Fuzzy,
		event.UsedModel,
		event.Timestamp,
		event.TraceID,
	)
	status := "success"
	if err != nil {
		status = "error"
		err = fmt.Errorf("inserting analytics event: %w", err)
	}
	observability.CHQueryDuration.WithLabelValues("insert_event", status).Observe(time.Since(start).Seconds())
	return err
}

// IntentBreakdown counts answered questions per intent since the given time,
// most frequent first.
func (c *Client) IntentBreakdown(ctx context.Context, since time.Time) ([]models.IntentCount, error) {
	ctx, span := observability.StartSpan(ctx, "ch.intent_breakdown",
		attribute.String("since", since.UTC().Format(time.RFC3339)),
	)
	defer span.End()

	start := time.Now()

	query := `
		SELECT
			intent,
			count() AS cnt,
			avg(confidence) AS avg_confidence
		FROM assistant_questions
		WHERE event_type = 'question' AND timestamp >= ?
		GROUP BY intent
		ORDER BY cnt DESC, intent
	`

	rows, err := c.conn.Query(ctx, query, since.UTC())
	if err != nil {
		observability.CHQueryDuration.WithLabelValues("intent_breakdown", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("ch intent breakdown query: %w", err)
	}
	defer rows.Close()

	var out []models.IntentCount
	for rows.Next() {
		var ic models.IntentCount
		var count uint64
		if err := rows.Scan(&ic.Intent, &count, &ic.AvgConfidence); err != nil {
			return nil, fmt.Errorf("scanning intent row: %w", err)
		}
		ic.Count = int64(count)
		out = append(out, ic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating intent rows: %w", err)
	}

	observability.CHQueryDuration.WithLabelValues("intent_breakdown", "success").Observe(time.Since(start).Seconds())
	return out, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS assistant_questions (
		event_type String,
		query_hash String,
		intent LowCardinality(String),
		confidence Float64,
		source LowCardinality(String),
		duration_ms Float64,
		results Int32,
		fuzzy Bool,
		used_model Bool,
		timestamp DateTime,
		trace_id String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, intent)`

	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}
