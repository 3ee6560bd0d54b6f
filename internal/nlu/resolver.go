package nlu

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
)

type ResolverConfig struct {
	// MinConfidence is the terminal threshold below which every
	// classification becomes IntentUnclassified.
	MinConfidence float64
	// LocalMinScore is the rule score under which, absent entities and
	// trigger words, the model collaborator is consulted.
	LocalMinScore     float64
	TriggerConfidence float64
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		MinConfidence:     0.3,
		LocalMinScore:     0.3,
		TriggerConfidence: 0.9,
	}
}

// Resolution is everything the resolver learned about one question.
type Resolution struct {
	Normalized     string
	Classification models.Classification
	// RawConfidence is the confidence before clamping; the threshold is
	// applied to it.
	RawConfidence float64
	Entities      models.EntityBag
	RuleScores    []models.ScoredIntent
	ModelScores   []models.ScoredIntent
	UsedModel     bool
	// Errors holds every recovered stage failure, in stage order.
	Errors []error
}

// Resolver combines the rule scorer, the entity extractor and the model
// fallback into one classification. It never fails.
type Resolver struct {
	normalizer *Normalizer
	lex        *Lexicon
	scorer     *Scorer
	extractor  *Extractor
	fallback   *ModelFallback
	cfg        ResolverConfig
	logger     *zap.Logger
}

// NewResolver compiles lex against normalizer. fallback may be nil, in which
// case inconclusive questions resolve to IntentUnclassified.
func NewResolver(normalizer *Normalizer, lex *Lexicon, fallback *ModelFallback, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	compiled := lex.Compile(normalizer)
	return &Resolver{
		normalizer: normalizer,
		lex:        compiled,
		scorer:     NewScorer(compiled),
		extractor:  NewExtractor(compiled),
		fallback:   fallback,
		cfg:        cfg,
		logger:     logger,
	}
}

// Lexicon returns the compiled lexicon the resolver matches against.
func (r *Resolver) Lexicon() *Lexicon { return r.lex }

func (r *Resolver) Resolve(ctx context.Context, raw string) Resolution {
	var res Resolution
	normalized, err := r.normalizer.NormalizeStrict(raw)
	if err != nil {
		res.Errors = append(res.Errors, err)
		normalized = r.normalizer.Normalize(raw)
	}
	out := r.ResolveNormalized(ctx, normalized)
	out.Errors = append(res.Errors, out.Errors...)
	return out
}

// ResolveNormalized classifies text that has already been normalized.
func (r *Resolver) ResolveNormalized(ctx context.Context, normalized string) Resolution {
	ctx, span := observability.StartSpan(ctx, "nlu.resolve")
	defer span.End()

	res := Resolution{Normalized: normalized}

	res.RuleScores = r.scorer.ScoreAll(normalized)
	best := Best(res.RuleScores)

	ext, err := r.extractor.Extract(normalized)
	if err != nil {
		res.Errors = append(res.Errors, err)
	}
	res.Entities = ext.Entities

	var (
		intent models.Intent
		raw    float64
		source models.ClassificationSource
	)

	switch {
	case ext.HasGuess:
		intent, raw, source = ext.Guess, r.cfg.TriggerConfidence, models.SourceTrigger
	case !ext.Entities.Empty() || best.Score >= r.cfg.LocalMinScore:
		intent, raw, source = best.Intent, best.Score, models.SourceRules
	default:
		intent, raw, source = r.consultModel(ctx, normalized, ext, &res)
	}

	res.RawConfidence = raw
	confidence := clamp(raw)
	if raw < r.cfg.MinConfidence {
		intent = models.IntentUnclassified
	}
	if !intent.Valid() {
		res.Errors = append(res.Errors, fmt.Errorf("%w: %d", ErrUnknownLabel, intent))
		intent, confidence = models.IntentUnclassified, 0
	}
	res.Classification = models.Classification{
		Intent:     intent,
		Confidence: confidence,
		Source:     source,
	}

	span.SetAttributes(
		attribute.String("intent", intent.String()),
		attribute.String("source", string(source)),
		attribute.Float64("confidence", confidence),
	)
	r.logger.Debug("question resolved",
		zap.String("normalized", normalized),
		zap.String("intent", intent.String()),
		zap.String("source", string(source)),
		zap.Float64("raw_confidence", raw),
		zap.Float64("best_rule_score", best.Score),
		zap.Float64("heuristic_confidence", ext.Confidence),
	)
	return res
}

// consultModel multiplies the model's top score by the extractor's
// heuristic confidence so the model alone cannot produce a confident answer.
func (r *Resolver) consultModel(ctx context.Context, normalized string, ext Extraction, res *Resolution) (models.Intent, float64, models.ClassificationSource) {
	if r.fallback == nil {
		res.Errors = append(res.Errors, fmt.Errorf("%w: model fallback disabled", ErrModelUnavailable))
		return models.IntentUnclassified, 0, models.SourceNone
	}

	res.UsedModel = true
	ranked, err := r.fallback.Classify(ctx, normalized, models.IntentPriority)
	source := models.SourceModel
	if err != nil {
		res.Errors = append(res.Errors, err)
		source = models.SourcePinned
	}
	res.ModelScores = ranked
	if len(ranked) == 0 {
		return models.IntentUnclassified, 0, models.SourceNone
	}
	top := ranked[0]
	return top.Intent, clamp(top.Score) * ext.Confidence, source
}
