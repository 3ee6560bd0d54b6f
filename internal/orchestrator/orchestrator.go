package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/nlu"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
)

const analyticsWriteTimeout = 2 * time.Second

// Orchestrator runs one question end to end: resolve, route, reply. It keeps
// no state between questions.
type Orchestrator struct {
	resolver  *nlu.Resolver
	router    *Router
	slow      *observability.SlowPipelineDetector
	analytics observability.AnalyticsWriter
	logger    *zap.Logger

	wg sync.WaitGroup
}

// New accepts a nil slow detector and a nil analytics writer.
func New(
	resolver *nlu.Resolver,
	router *Router,
	slow *observability.SlowPipelineDetector,
	analytics observability.AnalyticsWriter,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		resolver:  resolver,
		router:    router,
		slow:      slow,
		analytics: analytics,
		logger:    logger,
	}
}

// Classify resolves a question without looking anything up.
func (o *Orchestrator) Classify(ctx context.Context, text string) nlu.Resolution {
	return o.resolver.Resolve(ctx, text)
}

// Ask answers one question. The only error it returns is the context's: a
// cancelled question yields no answer.
func (o *Orchestrator) Ask(ctx context.Context, req *models.AskRequest) (*models.AskResponse, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx, span := observability.StartSpan(ctx, "assistant.ask",
		attribute.String("request_id", req.RequestID),
	)
	defer span.End()

	res := o.resolver.Resolve(ctx, req.Text)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	answer := o.router.Route(ctx, res)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := res.Classification
	took := time.Since(start)
	status := answerStatus(c.Intent, answer)

	observability.AskRequestsTotal.WithLabelValues(c.Intent.String(), status).Inc()
	observability.AskRequestDuration.WithLabelValues(c.Intent.String(), string(c.Source), status).Observe(took.Seconds())
	observability.ClassificationConfidence.WithLabelValues(string(c.Source)).Observe(c.Confidence)

	span.SetAttributes(
		attribute.String("intent", c.Intent.String()),
		attribute.String("status", status),
		attribute.Int("results", answer.Results),
	)

	fields := []zap.Field{
		zap.String("request_id", req.RequestID),
		zap.String("query_hash", observability.HashQuery(req.Text)),
		zap.String("intent", c.Intent.String()),
		zap.String("source", string(c.Source)),
		zap.Float64("confidence", c.Confidence),
		zap.String("status", status),
		zap.Int("results", answer.Results),
		zap.Int("suggestions", answer.Suggestions),
		zap.Duration("took", took),
	}
	if len(res.Errors) > 0 || answer.Err != nil {
		errs := append([]error(nil), res.Errors...)
		if answer.Err != nil {
			errs = append(errs, answer.Err)
		}
		fields = append(fields, zap.Errors("recovered", errs))
	}
	o.logger.Info("question answered", fields...)
	o.logger.Debug("question text", zap.String("request_id", req.RequestID), zap.String("text", req.Text))

	run := observability.PipelineRun{
		Query:     req.Text,
		Intent:    c.Intent.String(),
		Source:    string(c.Source),
		Duration:  took,
		Results:   answer.Results + answer.Suggestions,
		Fuzzy:     answer.Fuzzy,
		UsedModel: res.UsedModel,
	}
	if o.slow != nil {
		o.slow.Intercept(ctx, run)
	}
	o.record(ctx, run, c.Confidence)

	return &models.AskResponse{
		Reply:          answer.Reply,
		Intent:         c.Intent.String(),
		Confidence:     c.Confidence,
		Source:         string(c.Source),
		Entities:       res.Entities,
		Results:        answer.Results,
		Suggestions:    answer.Suggestions,
		FuzzyRecovered: answer.Fuzzy,
		TookMs:         took.Milliseconds(),
		Metadata: models.AnswerMetadata{
			RequestID:  req.RequestID,
			ChatID:     req.ChatID,
			Normalized: res.Normalized,
			UsedModel:  res.UsedModel,
			Degraded:   answer.Degraded,
		},
	}, nil
}

func answerStatus(intent models.Intent, a Answer) string {
	switch {
	case intent == models.IntentUnclassified:
		return "unclassified"
	case a.Degraded:
		return "degraded"
	case a.Results > 0:
		return "found"
	case a.Fuzzy:
		return "suggested"
	case a.Kind == "":
		return "replied"
	default:
		return "not_found"
	}
}

// record writes the question's analytics row in the background.
func (o *Orchestrator) record(ctx context.Context, run observability.PipelineRun, confidence float64) {
	if o.analytics == nil {
		return
	}
	event := &models.AnalyticsEvent{
		EventType:  "question",
		QueryHash:  observability.HashQuery(run.Query),
		Intent:     run.Intent,
		Confidence: confidence,
		Source:     run.Source,
		DurationMs: float64(run.Duration.Milliseconds()),
		Results:    run.Results,
		Fuzzy:      run.Fuzzy,
		UsedModel:  run.UsedModel,
		Timestamp:  time.Now().UTC(),
		TraceID:    observability.TraceIDFromContext(ctx),
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), analyticsWriteTimeout)
		defer cancel()
		if err := o.analytics.WriteAnalyticsEvent(writeCtx, event); err != nil {
			o.logger.Warn("failed to write question analytics",
				zap.String("trace_id", event.TraceID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until background analytics writes have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
