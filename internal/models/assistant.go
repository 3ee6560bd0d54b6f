package models

import "time"

type EntityCategory string

const (
	EntitySkills      EntityCategory = "skills"
	EntityDepartments EntityCategory = "departments"
	EntityRoles       EntityCategory = "roles"
	EntityEventTypes  EntityCategory = "event_types"
	EntityTaskTypes   EntityCategory = "task_types"
	EntityActivities  EntityCategory = "activities"
	EntityPriorities  EntityCategory = "priorities"
	EntityStatuses    EntityCategory = "statuses"
	EntityDates       EntityCategory = "dates"
	EntityTopics      EntityCategory = "topics"
	EntityCategories  EntityCategory = "categories"
)

// AllEntityCategories lists every category an EntityBag always carries, in the
// order the extractor scans them.
var AllEntityCategories = []EntityCategory{
	EntitySkills,
	EntityDepartments,
	EntityRoles,
	EntityEventTypes,
	EntityTaskTypes,
	EntityActivities,
	EntityPriorities,
	EntityStatuses,
	EntityDates,
	EntityTopics,
	EntityCategories,
}

// EntityBag maps every category to the values extracted for it. A bag built
// with NewEntityBag has every key present, possibly with an empty slice.
type EntityBag map[EntityCategory][]string

func NewEntityBag() EntityBag {
	bag := make(EntityBag, len(AllEntityCategories))
	for _, c := range AllEntityCategories {
		bag[c] = []string{}
	}
	return bag
}

// Add appends v to category c unless it is already there.
func (b EntityBag) Add(c EntityCategory, v string) {
	for _, existing := range b[c] {
		if existing == v {
			return
		}
	}
	b[c] = append(b[c], v)
}

func (b EntityBag) Get(c EntityCategory) []string {
	return b[c]
}

func (b EntityBag) Empty() bool {
	for _, values := range b {
		if len(values) > 0 {
			return false
		}
	}
	return true
}

// Date bucket tags stored under EntityDates.
const (
	DateToday     = "today"
	DateTomorrow  = "tomorrow"
	DateThisWeek  = "this_week"
	DateNextWeek  = "next_week"
	DateThisMonth = "this_month"
	DateNextMonth = "next_month"
)

// Employee lookups that answer something other than "who matches".
const (
	LookupBirthdays    = "birthdays"
	LookupAvailability = "availability"
)

// ScoredIntent is one entry of a ranked classification.
type ScoredIntent struct {
	Intent Intent  `json:"intent"`
	Score  float64 `json:"score"`
}

// ClassificationSource records which path of the resolver produced a result.
type ClassificationSource string

const (
	SourceTrigger ClassificationSource = "trigger"
	SourceRules   ClassificationSource = "rules"
	SourceModel   ClassificationSource = "model"
	SourcePinned  ClassificationSource = "pinned"
	SourceNone    ClassificationSource = "none"
)

// Classification is the resolver's verdict for one query. Confidence is
// always within [0,1].
type Classification struct {
	Intent     Intent               `json:"intent"`
	Confidence float64              `json:"confidence"`
	Source     ClassificationSource `json:"source"`
}

type AskRequest struct {
	Text      string `json:"text"`
	ChatID    string `json:"chat_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AskResponse struct {
	Reply          string         `json:"reply"`
	Intent         string         `json:"intent"`
	Confidence     float64        `json:"confidence"`
	Source         string         `json:"source"`
	Entities       EntityBag      `json:"entities"`
	Results        int            `json:"results"`
	Suggestions    int            `json:"suggestions"`
	FuzzyRecovered bool           `json:"fuzzy_recovered"`
	TookMs         int64          `json:"took_ms"`
	Metadata       AnswerMetadata `json:"metadata"`
}

type AnswerMetadata struct {
	RequestID  string `json:"request_id"`
	ChatID     string `json:"chat_id,omitempty"`
	Normalized string `json:"normalized"`
	UsedModel  bool   `json:"used_model"`
	Degraded   bool   `json:"degraded"`
}

type AnalyticsEvent struct {
	EventType  string    `json:"event_type"`
	QueryHash  string    `json:"query_hash"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	DurationMs float64   `json:"duration_ms"`
	Results    int       `json:"results"`
	Fuzzy      bool      `json:"fuzzy"`
	UsedModel  bool      `json:"used_model"`
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id"`
}

type IntentCount struct {
	Intent        string  `json:"intent"`
	Count         int64   `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}
