package nlu

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
	"github.com/shubhsaxena/directory-assistant/internal/resilience"
)

// LabelScore is one ranked answer of the model collaborator.
type LabelScore struct {
	Label string
	Score float64
}

// Classifier is the external model collaborator. Implementations rank the
// candidate labels for text, best first.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) ([]LabelScore, error)
}

type ModelFallbackConfig struct {
	Timeout  time.Duration
	Pinned   models.Intent
	PinnedAt float64
}

func DefaultModelFallbackConfig() ModelFallbackConfig {
	return ModelFallbackConfig{
		Timeout:  2 * time.Second,
		Pinned:   models.IntentFindEmployee,
		PinnedAt: 0.5,
	}
}

// ModelFallback wraps the model collaborator with a timeout and an optional
// circuit breaker. It always yields at least one ranked intent: on any
// failure it returns the pinned pair along with the cause.
type ModelFallback struct {
	client  Classifier
	breaker *gobreaker.CircuitBreaker
	cfg     ModelFallbackConfig
	logger  *zap.Logger
}

// NewModelFallback accepts a nil client (model disabled) and a nil breaker.
func NewModelFallback(client Classifier, breaker *gobreaker.CircuitBreaker, cfg ModelFallbackConfig, logger *zap.Logger) *ModelFallback {
	return &ModelFallback{client: client, breaker: breaker, cfg: cfg, logger: logger}
}

func (m *ModelFallback) pinned() []models.ScoredIntent {
	return []models.ScoredIntent{{Intent: m.cfg.Pinned, Score: clamp(m.cfg.PinnedAt)}}
}

// Classify ranks candidates for text, best first. Labels the model returns
// that are not among candidates are discarded.
func (m *ModelFallback) Classify(ctx context.Context, text string, candidates []models.Intent) ([]models.ScoredIntent, error) {
	if m.client == nil {
		observability.ModelFallbackTotal.WithLabelValues("disabled").Inc()
		return m.pinned(), fmt.Errorf("%w: no client configured", ErrModelUnavailable)
	}

	labels := make([]string, 0, len(candidates))
	byLabel := make(map[string]models.Intent, len(candidates))
	for _, c := range candidates {
		labels = append(labels, c.Label())
		byLabel[c.Label()] = c
		byLabel[c.String()] = c
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "model.classify")
	defer span.End()

	raw, err := resilience.Call(m.breaker, func() ([]LabelScore, error) {
		return m.client.Classify(ctx, text, labels)
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		} else if resilience.IsOpen(err) {
			outcome = "breaker_open"
		}
		observability.ModelFallbackTotal.WithLabelValues(outcome).Inc()
		m.logger.Warn("model classify failed, using pinned intent",
			zap.String("outcome", outcome),
			zap.String("pinned", m.cfg.Pinned.String()),
			zap.Error(err),
		)
		return m.pinned(), fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	ranked := make([]models.ScoredIntent, 0, len(raw))
	for _, ls := range raw {
		intent, ok := byLabel[ls.Label]
		if !ok {
			m.logger.Debug("model returned unknown label", zap.String("label", ls.Label))
			continue
		}
		ranked = append(ranked, models.ScoredIntent{Intent: intent, Score: clamp(ls.Score)})
	}
	if len(ranked) == 0 {
		observability.ModelFallbackTotal.WithLabelValues("unknown_label").Inc()
		return m.pinned(), ErrUnknownLabel
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	observability.ModelFallbackTotal.WithLabelValues("ok").Inc()
	return ranked, nil
}
