package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/nlu"
	"github.com/shubhsaxena/directory-assistant/internal/resilience"
	"github.com/shubhsaxena/directory-assistant/internal/store"
)

// Monday, so "this week" spans the whole seeded week.
var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type downDirectory struct {
	err error
}

func (d downDirectory) FindEmployees(context.Context, models.Predicate) ([]models.Employee, error) {
	return nil, d.err
}
func (d downDirectory) FindEvents(context.Context, models.Predicate) ([]models.Event, error) {
	return nil, d.err
}
func (d downDirectory) FindTasks(context.Context, models.Predicate) ([]models.Task, error) {
	return nil, d.err
}
func (d downDirectory) FindActivities(context.Context, models.Predicate) ([]models.Activity, error) {
	return nil, d.err
}
func (d downDirectory) FindGeneralInfo(context.Context, models.Predicate) ([]models.GeneralInfo, error) {
	return nil, d.err
}

// blockingDirectory answers only when the caller gives up.
type blockingDirectory struct{}

func (blockingDirectory) FindEmployees(ctx context.Context, _ models.Predicate) ([]models.Employee, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingDirectory) FindEvents(ctx context.Context, _ models.Predicate) ([]models.Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingDirectory) FindTasks(ctx context.Context, _ models.Predicate) ([]models.Task, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingDirectory) FindActivities(ctx context.Context, _ models.Predicate) ([]models.Activity, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingDirectory) FindGeneralInfo(ctx context.Context, _ models.Predicate) ([]models.GeneralInfo, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingAnalytics struct {
	mu     sync.Mutex
	events []*models.AnalyticsEvent
}

func (r *recordingAnalytics) WriteAnalyticsEvent(_ context.Context, e *models.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func newResolver() *nlu.Resolver {
	n := nlu.NewNormalizer(nlu.DefaultNormalizerConfig())
	return nlu.NewResolver(n, nlu.DefaultLexicon(), nil, nlu.DefaultResolverConfig(), zap.NewNop())
}

func newTestRouter(resolver *nlu.Resolver, dir store.Directory) *Router {
	r := NewRouter(dir, resolver.Lexicon(), nil, RouterConfig{MaxResults: 5}, zap.NewNop())
	r.now = func() time.Time { return testNow }
	return r
}

func seededDirectory() store.Directory {
	return store.NewMemory(store.SeedData(testNow))
}

func routeText(t *testing.T, dir store.Directory, text string) (nlu.Resolution, Answer) {
	t.Helper()
	resolver := newResolver()
	res := resolver.Resolve(context.Background(), text)
	return res, newTestRouter(resolver, dir).Route(context.Background(), res)
}

func TestRouter_EmployeesBySkill(t *testing.T) {
	res, a := routeText(t, seededDirectory(), "кто знает python")

	if res.Classification.Intent != models.IntentFindEmployee {
		t.Fatalf("expected find-employee, got %s", res.Classification.Intent)
	}
	if a.Results != 2 || a.Fuzzy {
		t.Fatalf("expected 2 exact results, got %+v", a)
	}
	for _, name := range []string{"Иван Иванов", "Ольга Соколова"} {
		if !strings.Contains(a.Reply, name) {
			t.Errorf("expected %q in reply:\n%s", name, a.Reply)
		}
	}
}

func TestRouter_FuzzyRecoverySuggestsCrossLanguageSkill(t *testing.T) {
	res, a := routeText(t, seededDirectory(), "джанго")

	if res.Classification.Intent != models.IntentFindEmployee {
		t.Fatalf("expected find-employee, got %s", res.Classification.Intent)
	}
	if a.Results != 0 || !a.Fuzzy || a.Suggestions == 0 {
		t.Fatalf("expected fuzzy suggestions, got %+v", a)
	}
	if !strings.Contains(a.Reply, "Алексей Смирнов") {
		t.Errorf("expected Django developer suggested:\n%s", a.Reply)
	}
	if !strings.HasPrefix(a.Reply, "Точных совпадений нет") {
		t.Errorf("expected suggestion header, got:\n%s", a.Reply)
	}
}

func TestRouter_EventsThisWeekInStartOrder(t *testing.T) {
	res, a := routeText(t, seededDirectory(), "какие мероприятия на этой неделе")

	if res.Classification.Intent != models.IntentFindEvent {
		t.Fatalf("expected find-event, got %s", res.Classification.Intent)
	}
	if a.Results != 3 {
		t.Fatalf("expected 3 events this week, got %d:\n%s", a.Results, a.Reply)
	}
	if strings.Contains(a.Reply, "Корпоратив") {
		t.Error("expected next month's party excluded")
	}
	first, last := strings.Index(a.Reply, "Встреча команды"), strings.Index(a.Reply, "Тренинг по продажам")
	if first < 0 || last < 0 || first > last {
		t.Errorf("expected events ordered by start time:\n%s", a.Reply)
	}
}

func TestRouter_TasksByPriority(t *testing.T) {
	_, a := routeText(t, seededDirectory(), "какие задачи")

	if a.Results != 3 {
		t.Fatalf("expected 3 open tasks, got %d:\n%s", a.Results, a.Reply)
	}
	if strings.Contains(a.Reply, "Подготовить отчет") {
		t.Error("expected done task hidden")
	}
	bug, review, docs := strings.Index(a.Reply, "Исправить баг"), strings.Index(a.Reply, "Провести ревью"), strings.Index(a.Reply, "Обновить документацию")
	if !(bug < review && review < docs) {
		t.Errorf("expected priority then due date order:\n%s", a.Reply)
	}
}

func TestRouter_GeneralInfoByCategory(t *testing.T) {
	_, a := routeText(t, seededDirectory(), "как оформить отпуск")

	if a.Results != 1 || !strings.Contains(a.Reply, "Оформление отпуска") {
		t.Errorf("expected vacation article, got %+v", a)
	}
}

func TestRouter_NotFound(t *testing.T) {
	_, a := routeText(t, seededDirectory(), "какие активности сегодня")

	if a.Results != 0 || a.Fuzzy || a.Degraded {
		t.Fatalf("expected plain not found, got %+v", a)
	}
	if a.Reply != notFoundReply(models.KindActivity) {
		t.Errorf("unexpected reply %q", a.Reply)
	}
}

func TestRouter_GreetingAndUnclassified(t *testing.T) {
	_, a := routeText(t, seededDirectory(), "привет")
	if !strings.HasPrefix(a.Reply, "Здравствуйте") {
		t.Errorf("expected welcome, got %q", a.Reply)
	}

	res, a := routeText(t, seededDirectory(), "зщх ффф ыыы")
	if res.Classification.Intent != models.IntentUnclassified {
		t.Fatalf("expected unclassified, got %s", res.Classification.Intent)
	}
	if !strings.Contains(a.Reply, "переформулировать") || !strings.Contains(a.Reply, ExampleQuestions[0]) {
		t.Errorf("expected rephrase with examples, got %q", a.Reply)
	}
}

func TestRouter_StoreUnavailableDegrades(t *testing.T) {
	dir := downDirectory{err: fmt.Errorf("%w: connection refused", store.ErrUnavailable)}
	_, a := routeText(t, dir, "кто знает python")

	if !a.Degraded || !errors.Is(a.Err, store.ErrUnavailable) {
		t.Fatalf("expected degraded answer, got %+v", a)
	}
	if a.Reply != notFoundReply(models.KindEmployee) {
		t.Errorf("expected not found reply, got %q", a.Reply)
	}
}

func TestRouter_StoreTimeoutDegrades(t *testing.T) {
	resolver := newResolver()
	r := NewRouter(blockingDirectory{}, resolver.Lexicon(), nil, RouterConfig{QueryTimeout: 30 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	a := r.Route(context.Background(), resolver.Resolve(context.Background(), "кто знает python"))

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected the query timeout to bound the lookup, took %v", elapsed)
	}
	if !a.Degraded {
		t.Fatalf("expected degraded answer, got %+v", a)
	}
	if !errors.Is(a.Err, store.ErrUnavailable) || !errors.Is(a.Err, context.DeadlineExceeded) {
		t.Errorf("expected timeout reported as unavailable, got %v", a.Err)
	}
	if a.Reply != "Сотрудники по вашему запросу не найдены." {
		t.Errorf("expected not found reply, got %q", a.Reply)
	}
}

func TestRouter_OpenBreakerIsUnavailable(t *testing.T) {
	resolver := newResolver()
	breaker := resilience.NewCircuitBreaker("test-store", config.CircuitBreakerConfig{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 1,
	}, zap.NewNop())
	r := NewRouter(downDirectory{err: errors.New("boom")}, resolver.Lexicon(), breaker, RouterConfig{}, zap.NewNop())

	res := resolver.Resolve(context.Background(), "кто знает python")
	r.Route(context.Background(), res)
	a := r.Route(context.Background(), res)

	if !errors.Is(a.Err, store.ErrUnavailable) {
		t.Errorf("expected open breaker reported as unavailable, got %v", a.Err)
	}
}

func TestRouter_MaxResults(t *testing.T) {
	resolver := newResolver()
	r := NewRouter(seededDirectory(), resolver.Lexicon(), nil, RouterConfig{MaxResults: 2}, zap.NewNop())
	r.now = func() time.Time { return testNow }

	a := r.Route(context.Background(), resolver.Resolve(context.Background(), "покажи всех сотрудников"))
	if a.Results != 2 {
		t.Errorf("expected results capped at 2, got %d", a.Results)
	}
}

func TestOrchestrator_Ask(t *testing.T) {
	resolver := newResolver()
	analytics := &recordingAnalytics{}
	o := New(resolver, newTestRouter(resolver, seededDirectory()), nil, analytics, zap.NewNop())

	resp, err := o.Ask(context.Background(), &models.AskRequest{Text: "Кто знает Python?", ChatID: "42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Wait()

	if resp.Intent != models.IntentFindEmployee.String() || resp.Confidence < 0.9 {
		t.Errorf("expected confident find-employee, got %s (%v)", resp.Intent, resp.Confidence)
	}
	if resp.Results != 2 || resp.Metadata.Normalized != "кто знает python" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Metadata.RequestID == "" || resp.Metadata.ChatID != "42" {
		t.Errorf("expected request id and chat id, got %+v", resp.Metadata)
	}
	if got := resp.Entities.Get(models.EntitySkills); len(got) != 1 || got[0] != "python" {
		t.Errorf("expected skills [python], got %v", got)
	}

	analytics.mu.Lock()
	defer analytics.mu.Unlock()
	if len(analytics.events) != 1 {
		t.Fatalf("expected 1 analytics event, got %d", len(analytics.events))
	}
	e := analytics.events[0]
	if e.EventType != "question" || e.Intent != resp.Intent || e.Results != 2 {
		t.Errorf("unexpected analytics event %+v", e)
	}
}

func TestOrchestrator_AskCancelled(t *testing.T) {
	resolver := newResolver()
	o := New(resolver, newTestRouter(resolver, seededDirectory()), nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Ask(ctx, &models.AskRequest{Text: "кто знает python"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAnswerStatus(t *testing.T) {
	tests := []struct {
		name   string
		intent models.Intent
		answer Answer
		want   string
	}{
		{"unclassified", models.IntentUnclassified, Answer{}, "unclassified"},
		{"greeting", models.IntentGreeting, Answer{}, "replied"},
		{"found", models.IntentFindTask, Answer{Kind: models.KindTask, Results: 1}, "found"},
		{"suggested", models.IntentFindTask, Answer{Kind: models.KindTask, Fuzzy: true}, "suggested"},
		{"degraded", models.IntentFindTask, Answer{Kind: models.KindTask, Degraded: true}, "degraded"},
		{"not found", models.IntentFindTask, Answer{Kind: models.KindTask}, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := answerStatus(tt.intent, tt.answer); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func birthdayDirectory() store.Directory {
	return store.NewMemory(&store.Dataset{
		Employees: []models.Employee{
			{ID: 1, Name: "Анна", Surname: "Белова", Position: "Разработчик", Department: "IT",
				Birthday: time.Date(1990, 10, 25, 0, 0, 0, 0, time.UTC)},
			{ID: 2, Name: "Борис", Surname: "Волков", Position: "HR-менеджер", Department: "HR",
				Birthday: time.Date(1985, 10, 3, 0, 0, 0, 0, time.UTC)},
			{ID: 3, Name: "Вера", Surname: "Громова", Position: "Аналитик", Department: "IT",
				Birthday: time.Date(1993, 11, 12, 0, 0, 0, 0, time.UTC)},
			{ID: 4, Name: "Глеб", Surname: "Дёмин", Position: "Sales Manager", Department: "Sales"},
		},
	})
}

func TestRouter_Birthdays(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		header  string
		want    []string
		without []string
	}{
		{
			name:    "this month by day",
			text:    "У кого день рождения в этом месяце?",
			header:  "Дни рождения в этом месяце:",
			want:    []string{"Борис Волков, 03.10 (HR)", "Анна Белова, 25.10 (IT)"},
			without: []string{"Вера Громова", "Глеб Дёмин"},
		},
		{
			name:    "next month",
			text:    "дни рождения в следующем месяце",
			header:  "Дни рождения в следующем месяце:",
			want:    []string{"Вера Громова, 12.11 (IT)"},
			without: []string{"Анна Белова", "Борис Волков"},
		},
		{
			name:    "department narrows",
			text:    "дни рождения в отделе IT",
			header:  "Дни рождения в этом месяце:",
			want:    []string{"Анна Белова"},
			without: []string{"Борис Волков", "Вера Громова"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, a := routeText(t, birthdayDirectory(), tt.text)

			if res.Classification.Intent != models.IntentFindEmployee {
				t.Fatalf("expected find-employee, got %s", res.Classification.Intent)
			}
			if a.Results != len(tt.want) || a.Fuzzy || a.Degraded {
				t.Fatalf("expected %d birthdays, got %+v", len(tt.want), a)
			}
			if !strings.HasPrefix(a.Reply, tt.header) {
				t.Errorf("expected header %q, got:\n%s", tt.header, a.Reply)
			}
			last := -1
			for _, w := range tt.want {
				i := strings.Index(a.Reply, w)
				if i < 0 || i < last {
					t.Errorf("expected %q in day order:\n%s", w, a.Reply)
				}
				last = i
			}
			for _, w := range tt.without {
				if strings.Contains(a.Reply, w) {
					t.Errorf("did not expect %q:\n%s", w, a.Reply)
				}
			}
		})
	}
}

func TestRouter_NoBirthdaysThisMonth(t *testing.T) {
	_, a := routeText(t, seededDirectory(), "у кого день рождения в этом месяце")

	if a.Results != 0 || a.Fuzzy || a.Degraded {
		t.Fatalf("expected empty answer, got %+v", a)
	}
	if a.Reply != "В этом месяце нет дней рождения." {
		t.Errorf("unexpected reply %q", a.Reply)
	}
}

func TestRouter_Availability(t *testing.T) {
	res, a := routeText(t, seededDirectory(), "Кто свободен на этой неделе?")

	if res.Classification.Intent != models.IntentFindEmployee {
		t.Fatalf("expected find-employee, got %s", res.Classification.Intent)
	}
	if a.Results != 5 || a.Degraded {
		t.Fatalf("expected 5 employees, got %+v", a)
	}
	for _, w := range []string{
		"Занятость сотрудников",
		"Иван Иванов (IT): занят: Встреча команды (20.10.2026 10:00)",
		"Алексей Смирнов (IT): занят: Встреча команды",
		"Мария Петрова (HR): свободен",
	} {
		if !strings.Contains(a.Reply, w) {
			t.Errorf("expected %q in reply:\n%s", w, a.Reply)
		}
	}
	if strings.Contains(a.Reply, "Корпоратив") {
		t.Errorf("expected events beyond a week ignored:\n%s", a.Reply)
	}
}

func TestRouter_AvailabilityOfNamedEmployee(t *testing.T) {
	_, a := routeText(t, seededDirectory(), "свободен ли Иван")

	if a.Results != 1 {
		t.Fatalf("expected one employee, got %+v", a)
	}
	if !strings.Contains(a.Reply, "Иван Иванов (IT): занят") {
		t.Errorf("unexpected reply:\n%s", a.Reply)
	}
}

func TestRouter_EmployeeLookupsDegrade(t *testing.T) {
	dir := downDirectory{err: fmt.Errorf("%w: connection refused", store.ErrUnavailable)}

	tests := []struct {
		text  string
		reply string
	}{
		{"у кого день рождения в этом месяце", "В этом месяце нет дней рождения."},
		{"кто свободен на этой неделе", notFoundReply(models.KindEmployee)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, a := routeText(t, dir, tt.text)
			if !a.Degraded || !errors.Is(a.Err, store.ErrUnavailable) {
				t.Fatalf("expected degraded answer, got %+v", a)
			}
			if a.Reply != tt.reply {
				t.Errorf("expected %q, got %q", tt.reply, a.Reply)
			}
		})
	}
}
