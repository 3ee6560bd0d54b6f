package nlu

import (
	"strings"
	"unicode/utf8"

	"github.com/shubhsaxena/directory-assistant/internal/models"
)

// Pattern is the rule-scoring vocabulary of one intent.
type Pattern struct {
	Keywords []string
	Synonyms []string
	Examples []string
}

// Concept is one lexicon entry: a canonical name and its surface forms in
// every supported language.
type Concept struct {
	Name  string
	Forms []string
}

// Lexicon is the static vocabulary shared by the scorer, the extractor and
// fuzzy query expansion. It is built once at startup and never mutated.
type Lexicon struct {
	Patterns map[models.Intent]Pattern
	// Triggers are the short per-intent word lists the extractor uses for
	// its primary intent guess.
	Triggers map[models.Intent][]string
	// Bonuses add a flat +1.0 to an intent's rule score when any listed
	// token is present in the query.
	Bonuses map[models.Intent][]string

	// Concepts per entity category, scanned by the extractor.
	Concepts map[models.EntityCategory][]Concept
	// ContextWords per entity category: the token after a context word is
	// taken as a value of that category.
	ContextWords map[models.EntityCategory][]string
	// Periods map a date bucket tag to its surface forms.
	Periods []Concept
	// Lookups name the employee questions answered by a dedicated lookup
	// (birthdays, availability) instead of a plain employee search.
	Lookups []Concept
	// Aliases are cross-language spellings used only to expand fuzzy
	// recovery queries.
	Aliases []Concept
}

// Compile returns a copy of the lexicon with every surface form run through
// n, so forms and queries share one canonical shape. Forms that normalize
// to nothing are dropped.
func (l *Lexicon) Compile(n *Normalizer) *Lexicon {
	norm := func(forms []string) []string {
		out := make([]string, 0, len(forms))
		seen := make(map[string]bool, len(forms))
		for _, f := range forms {
			nf := n.Normalize(f)
			if nf == "" || seen[nf] {
				continue
			}
			seen[nf] = true
			out = append(out, nf)
		}
		return out
	}
	normConcepts := func(cs []Concept) []Concept {
		out := make([]Concept, 0, len(cs))
		for _, c := range cs {
			out = append(out, Concept{Name: c.Name, Forms: norm(c.Forms)})
		}
		return out
	}

	compiled := &Lexicon{
		Patterns:     make(map[models.Intent]Pattern, len(l.Patterns)),
		Triggers:     make(map[models.Intent][]string, len(l.Triggers)),
		Bonuses:      make(map[models.Intent][]string, len(l.Bonuses)),
		Concepts:     make(map[models.EntityCategory][]Concept, len(l.Concepts)),
		ContextWords: make(map[models.EntityCategory][]string, len(l.ContextWords)),
		Periods:      normConcepts(l.Periods),
		Lookups:      normConcepts(l.Lookups),
		Aliases:      normConcepts(l.Aliases),
	}
	for intent, p := range l.Patterns {
		compiled.Patterns[intent] = Pattern{
			Keywords: norm(p.Keywords),
			Synonyms: norm(p.Synonyms),
			Examples: norm(p.Examples),
		}
	}
	for intent, words := range l.Triggers {
		compiled.Triggers[intent] = norm(words)
	}
	for intent, words := range l.Bonuses {
		compiled.Bonuses[intent] = norm(words)
	}
	for cat, cs := range l.Concepts {
		compiled.Concepts[cat] = normConcepts(cs)
	}
	for cat, words := range l.ContextWords {
		compiled.ContextWords[cat] = norm(words)
	}
	return compiled
}

// Concept returns the named concept of a category.
func (l *Lexicon) Concept(cat models.EntityCategory, name string) (Concept, bool) {
	for _, c := range l.Concepts[cat] {
		if c.Name == name {
			return c, true
		}
	}
	return Concept{}, false
}

// Lookup returns the name of the first lookup whose forms occur in the
// normalized query.
func (l *Lexicon) Lookup(query string) (string, bool) {
	tokens := Tokens(query)
	for _, c := range l.Lookups {
		if matchesForms(query, tokens, c.Forms) {
			return c.Name, true
		}
	}
	return "", false
}

// Expand returns tokens followed by every surface form of any alias or
// concept that one of the tokens matches. The original tokens always come
// first and nothing is repeated.
func (l *Lexicon) Expand(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, t := range tokens {
		add(t)
	}
	expand := func(cs []Concept) {
		for _, c := range cs {
			if !matchesAnyToken(tokens, c.Forms) {
				continue
			}
			for _, f := range c.Forms {
				for _, part := range strings.Fields(f) {
					add(part)
				}
			}
		}
	}
	expand(l.Aliases)
	for _, cat := range models.AllEntityCategories {
		expand(l.Concepts[cat])
	}
	return out
}

// formMatches reports whether a surface form occurs in the query. Multi-word
// forms must appear as a substring. Short single-word forms (three runes or
// fewer, like "it" or "go") must equal a token; longer ones may be a token
// prefix so inflected words still match.
func formMatches(query string, tokens []string, form string) bool {
	if form == "" {
		return false
	}
	if strings.Contains(form, " ") {
		return strings.Contains(query, form)
	}
	short := utf8.RuneCountInString(form) <= 3
	for _, t := range tokens {
		if t == form || (!short && strings.HasPrefix(t, form)) {
			return true
		}
	}
	return false
}

func matchesAnyToken(tokens []string, forms []string) bool {
	query := strings.Join(tokens, " ")
	for _, f := range forms {
		if formMatches(query, tokens, f) {
			return true
		}
	}
	return false
}

// DefaultLexicon is the built-in Russian/English corporate vocabulary.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Patterns: map[models.Intent]Pattern{
			models.IntentFindEmployee: {
				Keywords: []string{
					"отдел", "отделе", "it", "hr", "sales", "marketing", "проект", "project",
					"разработка", "разработчик", "менеджер", "директор", "руководитель",
					"специалист", "инженер", "аналитик", "дизайнер", "тестировщик",
				},
				Synonyms: []string{
					"найти", "показать", "кто", "какие", "список", "сотрудники", "работники",
					"коллеги", "люди", "команда", "группа", "подразделение",
					"искать", "поиск", "вывести", "отобразить", "employee", "colleague",
				},
				Examples: []string{
					"кто работает в отделе",
					"найти сотрудника",
					"кто из отдела",
					"покажи сотрудников",
					"кто работает над проектом",
					"список сотрудников",
					"какие люди работают",
					"кто в команде",
					"покажи команду разработки",
					"кто отвечает за проект",
					"найти специалиста по",
					"кто руководит отделом",
					"кто знает",
				},
			},
			models.IntentFindEvent: {
				Keywords: []string{
					"мероприятие", "мероприятия", "корпоратив", "тренинг", "встреча",
					"неделе", "недели", "месяц", "месяца", "день", "дня", "дата",
					"время", "расписание", "план", "календарь", "событие", "события",
				},
				Synonyms: []string{
					"когда", "расписание", "план", "календарь", "дата", "время",
					"запланировано", "назначено", "будет", "пройдет", "состоится",
					"организовано", "подготовлено", "устроено", "event", "meeting",
				},
				Examples: []string{
					"какие мероприятия",
					"когда корпоратив",
					"расписание мероприятий",
					"какие встречи",
					"когда тренинг",
					"что запланировано",
					"какие события",
					"что будет на неделе",
					"какие встречи запланированы",
					"расписание на месяц",
					"когда следующее мероприятие",
					"что готовится в отделе",
				},
			},
			models.IntentFindTask: {
				Keywords: []string{
					"задача", "задачи", "дедлайн", "проект", "работа", "поручение",
					"обязанность", "функция", "роль", "ответственность", "контроль",
					"проверка", "тестирование", "разработка", "внедрение",
				},
				Synonyms: []string{
					"сделать", "выполнить", "срок", "статус", "прогресс", "ход",
					"продвижение", "этап", "стадия", "фаза", "процесс", "работа",
					"дело", "поручение", "обязанность", "task", "deadline",
				},
				Examples: []string{
					"какие задачи",
					"что нужно сделать",
					"какие дедлайны",
					"статус задачи",
					"когда сдать",
					"что в работе",
					"текущие задачи",
					"мои поручения",
					"что на контроле",
					"какие проекты в работе",
					"статус разработки",
					"ход выполнения",
				},
			},
			models.IntentFindActivity: {
				Keywords: []string{
					"активность", "активности", "турнир", "спорт", "игра", "игры",
					"теннис", "футбол", "кино", "театр", "экскурсия", "мастер-класс",
				},
				Synonyms: []string{
					"досуг", "отдых", "развлечения", "хобби", "поиграть", "сыграть",
					"присоединиться", "участвовать", "activity", "sport",
				},
				Examples: []string{
					"какие активности",
					"какие активности сегодня",
					"во что поиграть",
					"есть ли турнир",
					"спортивные мероприятия",
					"куда сходить после работы",
					"чем заняться вечером",
				},
			},
			models.IntentGeneralInfo: {
				Keywords: []string{
					"правила", "офис", "информация", "политика", "отпуск", "больничный",
					"льготы", "дмс", "пропуск", "парковка", "регламент",
				},
				Synonyms: []string{
					"узнать", "подскажи", "расскажи", "где", "как оформить", "порядок",
					"policy", "office", "rules",
				},
				Examples: []string{
					"правила работы",
					"как оформить отпуск",
					"где находится офис",
					"какие льготы",
					"расскажи о компании",
					"правила офиса",
				},
			},
			models.IntentGreeting: {
				Keywords: []string{
					"привет", "здравствуй", "добрый", "начать", "помощь", "хеллоу",
					"хай", "здорово", "приветствую", "доброе",
				},
				Synonyms: []string{
					"здравствуйте", "доброе утро", "добрый день", "добрый вечер",
					"хеллоу", "хай", "приветствую", "здорово", "добро пожаловать",
					"рад видеть", "как дела", "как жизнь", "hello", "hi",
				},
				Examples: []string{
					"привет",
					"здравствуй",
					"добрый день",
					"начать",
					"помощь",
					"как пользоваться",
					"что умеешь",
					"как дела",
					"доброе утро",
					"добрый вечер",
					"рад тебя видеть",
					"как жизнь",
				},
			},
		},

		Triggers: map[models.Intent][]string{
			models.IntentFindEmployee: {
				"кто", "сотрудник", "специалист", "коллег", "who", "employee",
				"день рождения", "дни рождения", "именинник", "birthday",
				"свободен", "свободна ли", "занятость",
			},
			models.IntentFindEvent:    {"мероприят", "встреч", "событи", "корпоратив", "тренинг", "event", "meeting"},
			models.IntentFindTask:     {"задач", "дедлайн", "поручени", "task", "deadline"},
			models.IntentFindActivity: {"активност", "турнир", "спорт", "activity"},
			models.IntentGeneralInfo:  {"правил", "офис", "информаци", "policy", "office"},
			models.IntentGreeting:     {"привет", "здравствуй", "добрый день", "доброе утро", "hello"},
		},

		Bonuses: map[models.Intent][]string{
			models.IntentFindEmployee: {
				"python", "java", "javascript", "typescript", "go", "golang", "sql", "docker",
				"kubernetes", "django", "джанго", "react", "linux", "php", "ruby", "rust",
				"kotlin", "swift", "питон", "джава",
			},
			models.IntentFindEvent: {
				"понедельник", "вторник", "среду", "среда", "четверг", "пятницу", "пятница",
				"субботу", "суббота", "воскресенье", "сегодня", "завтра", "послезавтра",
				"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
				"today", "tomorrow",
			},
		},

		Concepts: map[models.EntityCategory][]Concept{
			models.EntityRoles: {
				{Name: "development", Forms: []string{"разработ", "программист", "developer", "development", "dev"}},
				{Name: "management", Forms: []string{"руковод", "менеджер", "директор", "manager", "management"}},
				{Name: "testing", Forms: []string{"тестиров", "qa", "tester", "testing"}},
				{Name: "design", Forms: []string{"дизайн", "designer", "design"}},
				{Name: "analytics", Forms: []string{"аналит", "analyst", "analytics"}},
			},
			models.EntityDepartments: {
				{Name: "it", Forms: []string{"it", "айти", "ит"}},
				{Name: "hr", Forms: []string{"hr", "кадр", "персонал"}},
				{Name: "sales", Forms: []string{"sales", "продаж"}},
				{Name: "marketing", Forms: []string{"marketing", "маркетинг"}},
			},
			models.EntityEventTypes: {
				{Name: "meeting", Forms: []string{"встреч", "совещани", "meeting"}},
				{Name: "training", Forms: []string{"тренинг", "обучени", "training"}},
				{Name: "team_building", Forms: []string{"корпоратив", "тимбилдинг", "team building"}},
				{Name: "presentation", Forms: []string{"презентац", "presentation"}},
			},
			models.EntityTaskTypes: {
				{Name: "bug", Forms: []string{"баг", "ошибк", "bug"}},
				{Name: "documentation", Forms: []string{"документац", "documentation", "docs"}},
				{Name: "report", Forms: []string{"отчет", "отчёт", "report"}},
				{Name: "review", Forms: []string{"ревью", "review"}},
			},
			models.EntityActivities: {
				{Name: "sports", Forms: []string{"спорт", "турнир", "теннис", "футбол", "sport"}},
				{Name: "games", Forms: []string{"игр", "настолк", "game"}},
				{Name: "culture", Forms: []string{"кино", "театр", "музе", "концерт"}},
				{Name: "education", Forms: []string{"лекци", "мастер-класс", "воркшоп", "workshop"}},
			},
			models.EntityPriorities: {
				{Name: "high", Forms: []string{"срочн", "важн", "высок", "urgent", "high"}},
				{Name: "medium", Forms: []string{"средн", "medium"}},
				{Name: "low", Forms: []string{"низк", "несрочн", "low"}},
			},
			models.EntityStatuses: {
				{Name: models.StatusTodo, Forms: []string{"новые", "новая", "todo"}},
				{Name: models.StatusInProgress, Forms: []string{"в работе", "в процессе", "in progress"}},
				{Name: models.StatusDone, Forms: []string{"выполнен", "завершен", "готово", "готовы", "done"}},
				{Name: models.StatusBlocked, Forms: []string{"заблокир", "blocked"}},
			},
			models.EntityCategories: {
				{Name: "Правила", Forms: []string{"правил", "регламент", "policy", "rules"}},
				{Name: "Офис", Forms: []string{"офис", "пропуск", "парковк", "office"}},
				{Name: "Отпуск", Forms: []string{"отпуск", "больничн", "vacation"}},
				{Name: "Льготы", Forms: []string{"льгот", "дмс", "benefit"}},
			},
		},

		ContextWords: map[models.EntityCategory][]string{
			models.EntitySkills:      {"знает", "знают", "умеет", "владеет", "навыки", "knows", "skilled"},
			models.EntityDepartments: {"отдел", "отделе", "отдела", "department"},
			models.EntityTopics:      {"про", "насчет", "about"},
		},

		Periods: []Concept{
			{Name: models.DateToday, Forms: []string{"сегодня", "today"}},
			{Name: models.DateTomorrow, Forms: []string{"завтра", "tomorrow"}},
			{Name: models.DateThisWeek, Forms: []string{"этой неделе", "эту неделю", "this week"}},
			{Name: models.DateNextWeek, Forms: []string{"следующей неделе", "следующую неделю", "next week"}},
			{Name: models.DateThisMonth, Forms: []string{"этом месяце", "этот месяц", "this month"}},
			{Name: models.DateNextMonth, Forms: []string{"следующем месяце", "следующий месяц", "next month"}},
		},

		Lookups: []Concept{
			{Name: models.LookupBirthdays, Forms: []string{
				"день рождения", "дни рождения", "дня рождения", "днем рождения", "днём рождения",
				"именинник", "именинниц", "birthday",
			}},
			{Name: models.LookupAvailability, Forms: []string{
				"свободен", "свободна ли", "свободны ли", "занят ли", "занята ли", "заняты ли",
				"занятость", "availability", "available",
			}},
		},

		Aliases: []Concept{
			{Name: "python", Forms: []string{"python", "питон", "пайтон"}},
			{Name: "django", Forms: []string{"django", "джанго"}},
			{Name: "java", Forms: []string{"java", "джава"}},
			{Name: "javascript", Forms: []string{"javascript", "джаваскрипт"}},
			{Name: "docker", Forms: []string{"docker", "докер"}},
			{Name: "sql", Forms: []string{"sql", "скл", "эскюэль"}},
			{Name: "golang", Forms: []string{"golang", "голанг"}},
			{Name: "react", Forms: []string{"react", "реакт"}},
		},
	}
}
