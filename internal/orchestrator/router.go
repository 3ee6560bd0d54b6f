package orchestrator

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/fuzzy"
	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/nlu"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
	"github.com/shubhsaxena/directory-assistant/internal/resilience"
	"github.com/shubhsaxena/directory-assistant/internal/store"
)

type RouterConfig struct {
	QueryTimeout time.Duration
	MaxResults   int
	Fuzzy        fuzzy.Options
	Location     *time.Location
}

// Answer is the routed reply to one classified question.
type Answer struct {
	Reply       string
	Kind        models.RecordKind
	Results     int
	Suggestions int
	// Fuzzy is set when the reply lists fuzzy suggestions instead of exact
	// matches.
	Fuzzy bool
	// Degraded is set when the store could not be reached and the reply
	// was produced without it.
	Degraded bool
	Err      error
}

// Router maps a resolved intent to its directory lookup and falls back to
// fuzzy recovery when the exact lookup finds nothing.
type Router struct {
	dir     store.Directory
	lex     *nlu.Lexicon
	builder *QueryBuilder
	breaker *gobreaker.CircuitBreaker
	cfg     RouterConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewRouter accepts a nil breaker.
func NewRouter(dir store.Directory, lex *nlu.Lexicon, breaker *gobreaker.CircuitBreaker, cfg RouterConfig, logger *zap.Logger) *Router {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &Router{
		dir:     dir,
		lex:     lex,
		builder: NewQueryBuilder(lex, cfg.Location),
		breaker: breaker,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Route answers a resolution. It never fails: store faults turn into a
// not-found reply with Degraded set and the cause in Err.
func (r *Router) Route(ctx context.Context, res nlu.Resolution) Answer {
	bag := res.Entities
	if bag == nil {
		bag = models.NewEntityBag()
	}
	// Minute precision keeps time based predicates cacheable.
	now := r.now().Truncate(time.Minute)

	switch res.Classification.Intent {
	case models.IntentGreeting:
		return Answer{Reply: welcomeReply()}
	case models.IntentFindEmployee:
		switch name, _ := r.builder.EmployeeLookup(res.Normalized); name {
		case models.LookupBirthdays:
			return r.birthdays(ctx, res.Normalized, bag, now)
		case models.LookupAvailability:
			return r.availability(ctx, res.Normalized, bag, now)
		}
		p := r.builder.Employees(res.Normalized, bag)
		return route(ctx, r, models.KindEmployee, p, res.Normalized, r.dir.FindEmployees, models.EmployeeFields,
			[]string{models.FieldName, models.FieldSurname, models.FieldPosition, models.FieldDepartment, models.FieldSkills},
			nil, renderEmployee)
	case models.IntentFindEvent:
		p := r.builder.Events(bag, now)
		return route(ctx, r, models.KindEvent, p, res.Normalized, r.dir.FindEvents, models.EventFields,
			[]string{models.FieldTitle, models.FieldDescription, models.FieldType, models.FieldLocation},
			func(a, b models.Event) bool { return a.StartTime.Before(b.StartTime) }, renderEvent)
	case models.IntentFindTask:
		p := r.builder.Tasks(bag)
		return route(ctx, r, models.KindTask, p, res.Normalized, r.dir.FindTasks, models.TaskFields,
			[]string{models.FieldTitle, models.FieldDescription, models.FieldTags, models.FieldAssignee},
			byPriority, renderTask)
	case models.IntentFindActivity:
		p := r.builder.Activities(bag, now)
		return route(ctx, r, models.KindActivity, p, res.Normalized, r.dir.FindActivities, models.ActivityFields,
			[]string{models.FieldTitle, models.FieldDescription, models.FieldType, models.FieldLocation},
			func(a, b models.Activity) bool { return a.StartTime.Before(b.StartTime) }, renderActivity)
	case models.IntentGeneralInfo:
		p := r.builder.GeneralInfo(res.Normalized, bag)
		return route(ctx, r, models.KindGeneralInfo, p, res.Normalized, r.dir.FindGeneralInfo, models.GeneralInfoFields,
			[]string{models.FieldTitle, models.FieldContent, models.FieldCategory},
			nil, renderGeneralInfo)
	default:
		return Answer{Reply: rephraseReply()}
	}
}

func byPriority(a, b models.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.DueDate.IsZero() != b.DueDate.IsZero() {
		return !a.DueDate.IsZero()
	}
	return a.DueDate.Before(b.DueDate)
}

func route[R any](
	ctx context.Context,
	r *Router,
	kind models.RecordKind,
	p models.Predicate,
	normalized string,
	find func(context.Context, models.Predicate) ([]R, error),
	table models.FieldTable[R],
	fuzzyFields []string,
	less func(a, b R) bool,
	render func(R) string,
) Answer {
	ctx, span := observability.StartSpan(ctx, "router.lookup",
		attribute.String("kind", string(kind)),
	)
	defer span.End()

	answer := Answer{Kind: kind}

	records, err := lookup(ctx, r, kind, p, find)
	if err != nil {
		answer.Err = err
		answer.Degraded = true
		answer.Reply = notFoundReply(kind)
		return answer
	}

	if len(records) > 0 {
		if less != nil {
			sort.SliceStable(records, func(i, j int) bool { return less(records[i], records[j]) })
		}
		if len(records) > r.cfg.MaxResults {
			records = records[:r.cfg.MaxResults]
		}
		answer.Results = len(records)
		answer.Reply = listReply(kind, records, render)
		return answer
	}

	suggestions, err := fuzzyRecover(ctx, r, kind, normalized, find, table, fuzzyFields)
	if err != nil {
		answer.Err = err
		answer.Degraded = true
	}
	if len(suggestions) == 0 {
		answer.Reply = notFoundReply(kind)
		return answer
	}
	if len(suggestions) > r.cfg.MaxResults {
		suggestions = suggestions[:r.cfg.MaxResults]
	}
	answer.Fuzzy = true
	answer.Suggestions = len(suggestions)
	answer.Reply = suggestionsReply(suggestions, render)
	return answer
}

// fuzzyRecover ranks every record of the kind against the question, with query
// tokens expanded through the lexicon so cross-language spellings match.
func fuzzyRecover[R any](
	ctx context.Context,
	r *Router,
	kind models.RecordKind,
	normalized string,
	find func(context.Context, models.Predicate) ([]R, error),
	table models.FieldTable[R],
	names []string,
) ([]R, error) {
	tokens := r.builder.ContentTokens(normalized)
	if len(tokens) == 0 {
		observability.FuzzyRecoveryTotal.WithLabelValues(string(kind), "no_query").Inc()
		return nil, nil
	}

	all, err := lookup(ctx, r, kind, models.All(), find)
	if err != nil {
		observability.FuzzyRecoveryTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, err
	}

	fields := make([]fuzzy.Field[R], 0, len(names))
	for _, n := range names {
		fields = append(fields, fuzzy.Field[R]{Name: n, Value: table.Text[n]})
	}

	matches := fuzzy.SearchTokens(all, strings.Join(tokens, " "), r.lex.Expand(tokens), fields, r.cfg.Fuzzy)
	outcome := "empty"
	if len(matches) > 0 {
		outcome = "found"
	}
	observability.FuzzyRecoveryTotal.WithLabelValues(string(kind), outcome).Inc()
	r.logger.Debug("fuzzy recovery",
		zap.String("kind", string(kind)),
		zap.Int("candidates", len(all)),
		zap.Int("matches", len(matches)),
	)
	return fuzzy.Records(matches), nil
}

// lookup runs one store call under the query timeout and the breaker.
func lookup[R any](ctx context.Context, r *Router, kind models.RecordKind, p models.Predicate,
	find func(context.Context, models.Predicate) ([]R, error)) ([]R, error) {

	if r.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.QueryTimeout)
		defer cancel()
	}

	out, err := resilience.Call(r.breaker, func() ([]R, error) {
		return find(ctx, p)
	})
	if err != nil {
		if resilience.IsOpen(err) || errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(store.ErrUnavailable, err)
		}
		r.logger.Warn("directory lookup failed",
			zap.String("kind", string(kind)),
			zap.String("predicate", p.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return out, nil
}
