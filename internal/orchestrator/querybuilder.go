package orchestrator

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/nlu"
)

// Priority words map to the stored task priority.
var priorityValues = map[string]int{
	"high":   3,
	"medium": 2,
	"low":    1,
}

// Words that carry no lookup meaning on their own.
var fillerWords = []string{
	"покажи", "найди", "скажи", "подскажи", "есть", "ли", "мне", "мои", "мой", "все", "всех",
	"какой", "какая", "какое", "каких", "где", "кого", "show", "find", "list", "all", "my",
}

// Availability looks this far ahead.
const availabilityWindow = 7 * 24 * time.Hour

var employeeTextFields = []string{
	models.FieldName, models.FieldSurname, models.FieldPosition, models.FieldDepartment, models.FieldSkills,
}

// QueryBuilder turns an entity bag into store predicates.
type QueryBuilder struct {
	lex        *nlu.Lexicon
	vocabulary map[string]bool
	triggers   []string
	loc        *time.Location
}

// NewQueryBuilder expects a lexicon compiled with the same normalizer as the
// queries it will see.
func NewQueryBuilder(lex *nlu.Lexicon, loc *time.Location) *QueryBuilder {
	if loc == nil {
		loc = time.UTC
	}
	vocab := make(map[string]bool)
	add := func(forms []string) {
		for _, f := range forms {
			for _, w := range strings.Fields(f) {
				vocab[w] = true
			}
		}
	}
	add(fillerWords)
	var triggers []string
	for _, intent := range models.IntentPriority {
		p := lex.Patterns[intent]
		add(p.Keywords)
		add(p.Synonyms)
		add(lex.Triggers[intent])
		triggers = append(triggers, lex.Triggers[intent]...)
	}
	for _, words := range lex.ContextWords {
		add(words)
	}
	for _, period := range lex.Periods {
		add(period.Forms)
	}
	for _, l := range lex.Lookups {
		add(l.Forms)
	}
	return &QueryBuilder{lex: lex, vocabulary: vocab, triggers: triggers, loc: loc}
}

// Employees builds the employee predicate. Roles, departments and skills each
// add one group; with none of them the content words of the question are
// matched against names, positions, departments and skills.
func (qb *QueryBuilder) Employees(normalized string, bag models.EntityBag) models.Predicate {
	p := models.All()

	var roles []models.Clause
	for _, name := range bag.Get(models.EntityRoles) {
		for _, f := range qb.forms(models.EntityRoles, name) {
			roles = append(roles, models.Contains(models.FieldPosition, f))
		}
	}
	p = p.And(roles...)

	var departments []models.Clause
	for _, name := range bag.Get(models.EntityDepartments) {
		for _, f := range qb.forms(models.EntityDepartments, name) {
			departments = append(departments, models.Contains(models.FieldDepartment, f))
		}
	}
	p = p.And(departments...)

	for _, skill := range bag.Get(models.EntitySkills) {
		var alternatives []models.Clause
		for _, f := range qb.lex.Expand([]string{skill}) {
			alternatives = append(alternatives, models.Contains(models.FieldSkills, f))
		}
		p = p.And(alternatives...)
	}

	if !p.IsEmpty() {
		return p
	}
	return qb.freeText(p, normalized, employeeTextFields...)
}

// EmployeeLookup reports which dedicated employee lookup, if any, the
// question asks for.
func (qb *QueryBuilder) EmployeeLookup(normalized string) (string, bool) {
	return qb.lex.Lookup(normalized)
}

// BirthdayMonth is the month a birthday question is about: the next month
// when that bucket was extracted, the current month otherwise. The flag is
// set for next month.
func (qb *QueryBuilder) BirthdayMonth(bag models.EntityBag, now time.Time) (time.Month, bool) {
	now = now.In(qb.loc)
	for _, bucket := range bag.Get(models.EntityDates) {
		if bucket == models.DateNextMonth {
			return now.AddDate(0, 1, 1-now.Day()).Month(), true
		}
	}
	return now.Month(), false
}

// BusyWindow selects the events that start now or later and end within the
// availability window.
func (qb *QueryBuilder) BusyWindow(now time.Time) models.Predicate {
	return models.All().
		And(models.After(models.FieldStartTime, now)).
		And(models.Before(models.FieldEndTime, now.Add(availabilityWindow)))
}

// Events defaults to upcoming events when no date bucket was extracted.
func (qb *QueryBuilder) Events(bag models.EntityBag, now time.Time) models.Predicate {
	p := qb.dateGroups(bag, now)

	var types []models.Clause
	for _, name := range bag.Get(models.EntityEventTypes) {
		types = append(types, models.Equals(models.FieldType, name))
	}
	p = p.And(types...)

	return qb.topics(p, bag, models.FieldTitle, models.FieldDescription)
}

// Activities mirrors Events over activity types.
func (qb *QueryBuilder) Activities(bag models.EntityBag, now time.Time) models.Predicate {
	p := qb.dateGroups(bag, now)

	var types []models.Clause
	for _, name := range bag.Get(models.EntityActivities) {
		types = append(types, models.Equals(models.FieldType, name))
	}
	p = p.And(types...)

	return qb.topics(p, bag, models.FieldTitle, models.FieldDescription)
}

// Tasks hides finished tasks unless a status was asked for.
func (qb *QueryBuilder) Tasks(bag models.EntityBag) models.Predicate {
	p := models.All()

	statuses := bag.Get(models.EntityStatuses)
	if len(statuses) == 0 {
		p = p.And(models.NotEquals(models.FieldStatus, models.StatusDone))
	} else {
		var alternatives []models.Clause
		for _, s := range statuses {
			alternatives = append(alternatives, models.Equals(models.FieldStatus, s))
		}
		p = p.And(alternatives...)
	}

	var priorities []models.Clause
	for _, name := range bag.Get(models.EntityPriorities) {
		if v, ok := priorityValues[name]; ok {
			priorities = append(priorities, models.Equals(models.FieldPriority, strconv.Itoa(v)))
		}
	}
	p = p.And(priorities...)

	for _, name := range bag.Get(models.EntityTaskTypes) {
		var alternatives []models.Clause
		for _, f := range qb.forms(models.EntityTaskTypes, name) {
			alternatives = append(alternatives,
				models.Contains(models.FieldTitle, f),
				models.Contains(models.FieldDescription, f),
				models.Contains(models.FieldTags, f),
			)
		}
		p = p.And(alternatives...)
	}

	return qb.topics(p, bag, models.FieldTitle, models.FieldDescription)
}

// GeneralInfo filters by category, then by topic, then by content words.
func (qb *QueryBuilder) GeneralInfo(normalized string, bag models.EntityBag) models.Predicate {
	p := models.All()

	var categories []models.Clause
	for _, name := range bag.Get(models.EntityCategories) {
		categories = append(categories, models.Equals(models.FieldCategory, name))
	}
	p = p.And(categories...)
	p = qb.topics(p, bag, models.FieldTitle, models.FieldContent)

	if !p.IsEmpty() {
		return p
	}
	return qb.freeText(p, normalized, models.FieldTitle, models.FieldContent)
}

// ContentTokens drops every token that is part of the question vocabulary
// rather than what is being looked up.
func (qb *QueryBuilder) ContentTokens(normalized string) []string {
	var out []string
	for _, t := range nlu.Tokens(normalized) {
		if qb.vocabulary[t] || utf8.RuneCountInString(t) < 2 || qb.startsWithTrigger(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (qb *QueryBuilder) startsWithTrigger(token string) bool {
	for _, tr := range qb.triggers {
		if utf8.RuneCountInString(tr) >= 4 && strings.HasPrefix(token, tr) {
			return true
		}
	}
	return false
}

func (qb *QueryBuilder) freeText(p models.Predicate, normalized string, fields ...string) models.Predicate {
	for _, t := range qb.ContentTokens(normalized) {
		alternatives := make([]models.Clause, 0, len(fields))
		for _, f := range fields {
			alternatives = append(alternatives, models.Contains(f, t))
		}
		p = p.And(alternatives...)
	}
	return p
}

func (qb *QueryBuilder) topics(p models.Predicate, bag models.EntityBag, fields ...string) models.Predicate {
	for _, topic := range bag.Get(models.EntityTopics) {
		alternatives := make([]models.Clause, 0, len(fields))
		for _, f := range fields {
			alternatives = append(alternatives, models.Contains(f, topic))
		}
		p = p.And(alternatives...)
	}
	return p
}

// forms returns the surface forms of a lexicon concept, or the value itself
// when it is a raw token taken after a context word.
func (qb *QueryBuilder) forms(cat models.EntityCategory, value string) []string {
	if c, ok := qb.lex.Concept(cat, value); ok && len(c.Forms) > 0 {
		return c.Forms
	}
	return []string{value}
}

// dateGroups restricts start_time to the union of the extracted buckets, or
// to the future when there are none.
func (qb *QueryBuilder) dateGroups(bag models.EntityBag, now time.Time) models.Predicate {
	var from, to time.Time
	for _, bucket := range bag.Get(models.EntityDates) {
		f, t, ok := DateRange(bucket, now.In(qb.loc))
		if !ok {
			continue
		}
		if from.IsZero() || f.Before(from) {
			from = f
		}
		if to.IsZero() || t.After(to) {
			to = t
		}
	}
	if from.IsZero() {
		return models.All().And(models.After(models.FieldStartTime, now))
	}
	return models.All().
		And(models.After(models.FieldStartTime, from)).
		And(models.Before(models.FieldStartTime, to))
}

// DateRange maps a date bucket to the half open interval [from, to) in
// now's location. Weeks run Monday to Sunday.
func DateRange(bucket string, now time.Time) (time.Time, time.Time, bool) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekday := int(day.Weekday()+6) % 7
	monday := day.AddDate(0, 0, -weekday)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch bucket {
	case models.DateToday:
		return day, day.AddDate(0, 0, 1), true
	case models.DateTomorrow:
		return day.AddDate(0, 0, 1), day.AddDate(0, 0, 2), true
	case models.DateThisWeek:
		return monday, monday.AddDate(0, 0, 7), true
	case models.DateNextWeek:
		return monday.AddDate(0, 0, 7), monday.AddDate(0, 0, 14), true
	case models.DateThisMonth:
		return month, month.AddDate(0, 1, 0), true
	case models.DateNextMonth:
		return month.AddDate(0, 1, 0), month.AddDate(0, 2, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}
