package nlu

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/models"
)

func newTestResolver(client Classifier, cfg ResolverConfig) *Resolver {
	var fallback *ModelFallback
	if client != nil {
		fallback = NewModelFallback(client, nil, testFallbackConfig(), zap.NewNop())
	}
	return NewResolver(NewNormalizer(DefaultNormalizerConfig()), DefaultLexicon(), fallback, cfg, zap.NewNop())
}

func hasError(errs []error, target error) bool {
	for _, err := range errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestResolver_SkillQuestion(t *testing.T) {
	r := newTestResolver(nil, DefaultResolverConfig())

	res := r.Resolve(context.Background(), "Кто знает Python?")

	if res.Classification.Intent != models.IntentFindEmployee {
		t.Errorf("expected find-employee, got %s", res.Classification.Intent)
	}
	if res.Classification.Confidence < 0.9 {
		t.Errorf("expected confidence >= 0.9, got %v", res.Classification.Confidence)
	}
	if res.Classification.Source != models.SourceTrigger {
		t.Errorf("expected trigger source, got %s", res.Classification.Source)
	}
	if got := res.Entities.Get(models.EntitySkills); !reflect.DeepEqual(got, []string{"python"}) {
		t.Errorf("expected skills [python], got %v", got)
	}
	if res.UsedModel {
		t.Error("model must not be consulted when a trigger fired")
	}
}

func TestResolver_EventsThisWeek(t *testing.T) {
	r := newTestResolver(nil, DefaultResolverConfig())

	res := r.Resolve(context.Background(), "Какие мероприятия на этой неделе?")

	if res.Classification.Intent != models.IntentFindEvent {
		t.Errorf("expected find-event, got %s", res.Classification.Intent)
	}
	if res.Classification.Confidence < 0.9 {
		t.Errorf("expected confidence >= 0.9, got %v", res.Classification.Confidence)
	}
	if got := res.Entities.Get(models.EntityDates); !reflect.DeepEqual(got, []string{models.DateThisWeek}) {
		t.Errorf("expected dates [this_week], got %v", got)
	}
}

func TestResolver_RulePathClamped(t *testing.T) {
	r := newTestResolver(nil, DefaultResolverConfig())

	res := r.Resolve(context.Background(), "джанго")

	if res.Classification.Intent != models.IntentFindEmployee {
		t.Errorf("expected find-employee from technology bonus, got %s", res.Classification.Intent)
	}
	if res.Classification.Source != models.SourceRules {
		t.Errorf("expected rules source, got %s", res.Classification.Source)
	}
	if res.Classification.Confidence > 1 || res.Classification.Confidence < 0.9 {
		t.Errorf("expected clamped high confidence, got %v", res.Classification.Confidence)
	}
}

func TestResolver_GibberishWithoutModel(t *testing.T) {
	r := newTestResolver(nil, DefaultResolverConfig())

	res := r.Resolve(context.Background(), "зщх ффф ыыы")

	if res.Classification.Intent != models.IntentUnclassified {
		t.Errorf("expected unclassified, got %s", res.Classification.Intent)
	}
	if res.Classification.Confidence != 0 {
		t.Errorf("expected zero confidence, got %v", res.Classification.Confidence)
	}
	if !hasError(res.Errors, ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable to be recorded, got %v", res.Errors)
	}
}

func TestResolver_GibberishModelDown(t *testing.T) {
	client := &fakeClassifier{err: errors.New("inference server unreachable")}
	r := newTestResolver(client, DefaultResolverConfig())

	res := r.Resolve(context.Background(), "зщх ффф ыыы")

	if !res.UsedModel || client.calls != 1 {
		t.Fatalf("expected one model call, got used=%v calls=%d", res.UsedModel, client.calls)
	}
	if res.Classification.Intent != models.IntentUnclassified {
		t.Errorf("expected unclassified, got %s", res.Classification.Intent)
	}
	if res.Classification.Source != models.SourcePinned {
		t.Errorf("expected pinned source, got %s", res.Classification.Source)
	}
	// pinned 0.5 times heuristic 0.3 (three tokens, nothing else)
	if !almostEqual(res.RawConfidence, 0.15) {
		t.Errorf("expected raw confidence 0.15, got %v", res.RawConfidence)
	}
}

func TestResolver_ModelConfidenceIsMultiplied(t *testing.T) {
	client := &fakeClassifier{result: []LabelScore{{Label: models.IntentFindEvent.Label(), Score: 0.9}}}

	r := newTestResolver(client, DefaultResolverConfig())
	res := r.Resolve(context.Background(), "зщх ффф ыыы")
	if !almostEqual(res.RawConfidence, 0.27) {
		t.Errorf("expected 0.9*0.3, got %v", res.RawConfidence)
	}
	if res.Classification.Intent != models.IntentUnclassified {
		t.Errorf("expected unclassified below threshold, got %s", res.Classification.Intent)
	}

	cfg := DefaultResolverConfig()
	cfg.MinConfidence = 0.2
	r = newTestResolver(client, cfg)
	res = r.Resolve(context.Background(), "зщх ффф ыыы")
	if res.Classification.Intent != models.IntentFindEvent {
		t.Errorf("expected find-event above lowered threshold, got %s", res.Classification.Intent)
	}
	if res.Classification.Source != models.SourceModel {
		t.Errorf("expected model source, got %s", res.Classification.Source)
	}
}

func TestResolver_ModelSkippedWhenEntitiesFound(t *testing.T) {
	client := &fakeClassifier{result: []LabelScore{{Label: models.IntentGreeting.Label(), Score: 1}}}
	r := newTestResolver(client, DefaultResolverConfig())

	// A date bucket is an entity, so local scoring is trusted.
	r.Resolve(context.Background(), "сегодня")
	if client.calls != 0 {
		t.Errorf("expected no model call, got %d", client.calls)
	}
}

func TestResolver_Greeting(t *testing.T) {
	r := newTestResolver(nil, DefaultResolverConfig())
	res := r.Resolve(context.Background(), "Привет!")
	if res.Classification.Intent != models.IntentGreeting {
		t.Errorf("expected greeting, got %s", res.Classification.Intent)
	}
}

func TestResolver_MalformedInput(t *testing.T) {
	r := newTestResolver(nil, DefaultResolverConfig())

	res := r.Resolve(context.Background(), "кто \xff знает")
	if !hasError(res.Errors, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput to be recorded, got %v", res.Errors)
	}
	if !res.Classification.Intent.Valid() {
		t.Errorf("expected a valid intent, got %d", res.Classification.Intent)
	}
}

func TestResolver_Properties(t *testing.T) {
	client := &fakeClassifier{result: []LabelScore{
		{Label: models.IntentGeneralInfo.Label(), Score: 0.8},
		{Label: models.IntentFindTask.Label(), Score: 0.4},
	}}
	cfg := DefaultResolverConfig()
	r := newTestResolver(client, cfg)

	queries := []string{
		"",
		"зщх ффф ыыы",
		"ыыы",
		"Кто знает Python?",
		"Какие мероприятия на этой неделе?",
		"Покажи мои задачи",
		"Какие активности сегодня?",
		"правила работы в офисе",
		"кто работает в отделе продаж и знает sql, docker, kubernetes, django",
		"добрый день",
		"что будет в пятницу",
		"12345",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			res := r.Resolve(context.Background(), q)
			c := res.Classification

			if c.Confidence < 0 || c.Confidence > 1 {
				t.Errorf("confidence out of bounds: %v", c.Confidence)
			}
			if res.RawConfidence < cfg.MinConfidence && c.Intent != models.IntentUnclassified {
				t.Errorf("raw %v below threshold but intent %s", res.RawConfidence, c.Intent)
			}
			if !c.Intent.Valid() {
				t.Errorf("intent outside enumeration: %d", c.Intent)
			}
			assertBagComplete(t, res.Entities)

			again := r.Resolve(context.Background(), q)
			if again.Classification != c {
				t.Errorf("not deterministic: %+v != %+v", again.Classification, c)
			}
		})
	}
}

func TestResolver_LonePrepositionIsNotAnEmployeeQuestion(t *testing.T) {
	r := newTestResolver(nil, DefaultResolverConfig())

	res := r.Resolve(context.Background(), "о")

	if res.Classification.Intent == models.IntentFindEmployee {
		t.Errorf("expected no employee match, got %s at %v", res.Classification.Intent, res.Classification.Confidence)
	}
	if res.Classification.Intent != models.IntentUnclassified {
		t.Errorf("expected unclassified, got %s", res.Classification.Intent)
	}
	if best := Best(res.RuleScores); best.Score != 0 {
		t.Errorf("expected zero rule scores, best was %s at %v", best.Intent, best.Score)
	}
}
