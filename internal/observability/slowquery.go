package observability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/models"
)

// SlowPipelineDetector flags questions whose end to end handling exceeded a
// threshold and records them as analytics events.
type SlowPipelineDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
	analyticsWriter   AnalyticsWriter
}

type AnalyticsWriter interface {
	WriteAnalyticsEvent(ctx context.Context, event *models.AnalyticsEvent) error
}

// PipelineRun describes one finished question.
type PipelineRun struct {
	Query     string
	Intent    string
	Source    string
	Duration  time.Duration
	Results   int
	Fuzzy     bool
	UsedModel bool
}

func NewSlowPipelineDetector(warning, critical time.Duration, logger *zap.Logger, aw AnalyticsWriter) *SlowPipelineDetector {
	return &SlowPipelineDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
		analyticsWriter:   aw,
	}
}

func (d *SlowPipelineDetector) Intercept(ctx context.Context, run PipelineRun) {
	// Fast runs return immediately.
	if run.Duration <= d.warningThreshold {
		return
	}

	traceID := TraceIDFromContext(ctx)
	severity := d.classifySeverity(run.Duration)

	SlowPipelineCounter.WithLabelValues(severity, run.Intent).Inc()

	d.logger.Warn("slow question pipeline",
		zap.String("trace_id", traceID),
		zap.String("query_hash", HashQuery(run.Query)),
		zap.String("intent", run.Intent),
		zap.Float64("duration_ms", float64(run.Duration.Milliseconds())),
		zap.Int("results", run.Results),
		zap.Bool("used_model", run.UsedModel),
		zap.String("severity", severity),
	)

	if d.analyticsWriter != nil {
		event := &models.AnalyticsEvent{
			EventType:  "slow_pipeline",
			QueryHash:  HashQuery(run.Query),
			Intent:     run.Intent,
			Source:     run.Source,
			DurationMs: float64(run.Duration.Milliseconds()),
			Results:    run.Results,
			Fuzzy:      run.Fuzzy,
			UsedModel:  run.UsedModel,
			Timestamp:  time.Now().UTC(),
			TraceID:    traceID,
		}
		go func() {
			writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := d.analyticsWriter.WriteAnalyticsEvent(writeCtx, event); err != nil {
				d.logger.Error("failed to write slow pipeline analytics",
					zap.String("trace_id", traceID),
					zap.Error(err),
				)
			}
		}()
	}
}

func (d *SlowPipelineDetector) classifySeverity(dur time.Duration) string {
	if dur > d.criticalThreshold {
		return "critical"
	}
	if dur > d.warningThreshold {
		return "warning"
	}
	return "normal"
}

// HashQuery is the form a question takes in info level logs and analytics.
func HashQuery(q string) string {
	return fmt.Sprintf("%016x", hashUint64(q))
}

func hashUint64(s string) uint64 {
	h := uint64(0)
	for _, c := range s {
		h = h*31 + uint64(c)
	}
	return h
}
