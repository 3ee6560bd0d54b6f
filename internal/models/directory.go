package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type RecordKind string

const (
	KindEmployee    RecordKind = "employee"
	KindEvent       RecordKind = "event"
	KindTask        RecordKind = "task"
	KindActivity    RecordKind = "activity"
	KindGeneralInfo RecordKind = "general_info"
)

var AllRecordKinds = []RecordKind{KindEmployee, KindEvent, KindTask, KindActivity, KindGeneralInfo}

// Field names shared by predicates, SQL columns and search documents.
const (
	FieldID              = "id"
	FieldName            = "name"
	FieldSurname         = "surname"
	FieldPosition        = "position"
	FieldDepartment      = "department"
	FieldEmail           = "email"
	FieldSkills          = "skills"
	FieldInterests       = "interests"
	FieldBirthday        = "birthday"
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldStartTime       = "start_time"
	FieldEndTime         = "end_time"
	FieldLocation        = "location"
	FieldType            = "type"
	FieldOrganizer       = "organizer"
	FieldMaxParticipants = "max_participants"
	FieldParticipants    = "participants"
	FieldStatus          = "status"
	FieldPriority        = "priority"
	FieldAssignee        = "assignee"
	FieldDueDate         = "due_date"
	FieldTags            = "tags"
	FieldContent         = "content"
	FieldCategory        = "category"
)

// Task statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusBlocked    = "blocked"
)

type Employee struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Surname    string    `json:"surname"`
	Position   string    `json:"position"`
	Department string    `json:"department"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Skills     string    `json:"skills,omitempty"`
	Interests  string    `json:"interests,omitempty"`
	Birthday   time.Time `json:"birthday"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.Name + " " + e.Surname)
}

type Event struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Location        string    `json:"location,omitempty"`
	Type            string    `json:"type"`
	Organizer       string    `json:"organizer,omitempty"`
	MaxParticipants int       `json:"max_participants,omitempty"`
	Participants    []string  `json:"participants,omitempty"`
}

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    int       `json:"priority"`
	Assignee    string    `json:"assignee,omitempty"`
	DueDate     time.Time `json:"due_date"`
	Tags        []string  `json:"tags,omitempty"`
}

type Activity struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Type            string    `json:"type"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Location        string    `json:"location,omitempty"`
	Organizer       string    `json:"organizer,omitempty"`
	MaxParticipants int       `json:"max_participants,omitempty"`
	Participants    []string  `json:"participants,omitempty"`
}

type GeneralInfo struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// FieldTable is the explicit accessor table for one record kind. Text
// accessors feed contains/equals clauses and fuzzy matching, time accessors
// feed range clauses.
type FieldTable[R any] struct {
	Text map[string]func(R) string
	Time map[string]func(R) time.Time
}

var EmployeeFields = FieldTable[Employee]{
	Text: map[string]func(Employee) string{
		FieldName:       func(e Employee) string { return e.Name },
		FieldSurname:    func(e Employee) string { return e.Surname },
		FieldPosition:   func(e Employee) string { return e.Position },
		FieldDepartment: func(e Employee) string { return e.Department },
		FieldEmail:      func(e Employee) string { return e.Email },
		FieldSkills:     func(e Employee) string { return e.Skills },
		FieldInterests:  func(e Employee) string { return e.Interests },
	},
	Time: map[string]func(Employee) time.Time{
		FieldBirthday: func(e Employee) time.Time { return e.Birthday },
	},
}

var EventFields = FieldTable[Event]{
	Text: map[string]func(Event) string{
		FieldTitle:        func(e Event) string { return e.Title },
		FieldDescription:  func(e Event) string { return e.Description },
		FieldLocation:     func(e Event) string { return e.Location },
		FieldType:         func(e Event) string { return e.Type },
		FieldOrganizer:    func(e Event) string { return e.Organizer },
		FieldParticipants: func(e Event) string { return strings.Join(e.Participants, ", ") },
	},
	Time: map[string]func(Event) time.Time{
		FieldStartTime: func(e Event) time.Time { return e.StartTime },
		FieldEndTime:   func(e Event) time.Time { return e.EndTime },
	},
}

var TaskFields = FieldTable[Task]{
	Text: map[string]func(Task) string{
		FieldTitle:       func(t Task) string { return t.Title },
		FieldDescription: func(t Task) string { return t.Description },
		FieldStatus:      func(t Task) string { return t.Status },
		FieldPriority:    func(t Task) string { return strconv.Itoa(t.Priority) },
		FieldAssignee:    func(t Task) string { return t.Assignee },
		FieldTags:        func(t Task) string { return strings.Join(t.Tags, ", ") },
	},
	Time: map[string]func(Task) time.Time{
		FieldDueDate: func(t Task) time.Time { return t.DueDate },
	},
}

var ActivityFields = FieldTable[Activity]{
	Text: map[string]func(Activity) string{
		FieldTitle:        func(a Activity) string { return a.Title },
		FieldDescription:  func(a Activity) string { return a.Description },
		FieldType:         func(a Activity) string { return a.Type },
		FieldLocation:     func(a Activity) string { return a.Location },
		FieldOrganizer:    func(a Activity) string { return a.Organizer },
		FieldParticipants: func(a Activity) string { return strings.Join(a.Participants, ", ") },
	},
	Time: map[string]func(Activity) time.Time{
		FieldStartTime: func(a Activity) time.Time { return a.StartTime },
		FieldEndTime:   func(a Activity) time.Time { return a.EndTime },
	},
}

var GeneralInfoFields = FieldTable[GeneralInfo]{
	Text: map[string]func(GeneralInfo) string{
		FieldTitle:    func(g GeneralInfo) string { return g.Title },
		FieldContent:  func(g GeneralInfo) string { return g.Content },
		FieldCategory: func(g GeneralInfo) string { return g.Category },
	},
}

type Op string

const (
	OpEquals    Op = "eq"
	OpNotEquals Op = "ne"
	OpContains  Op = "contains"
	OpAfter     Op = "gte"
	OpBefore    Op = "lt"
)

// Clause is a single field test. Text operators compare Value case
// insensitively; OpAfter and OpBefore compare Time.
type Clause struct {
	Field string    `json:"field"`
	Op    Op        `json:"op"`
	Value string    `json:"value,omitempty"`
	Time  time.Time `json:"time,omitempty"`
}

func Contains(field, value string) Clause {
	return Clause{Field: field, Op: OpContains, Value: value}
}

func Equals(field, value string) Clause {
	return Clause{Field: field, Op: OpEquals, Value: value}
}

func NotEquals(field, value string) Clause {
	return Clause{Field: field, Op: OpNotEquals, Value: value}
}

func After(field string, t time.Time) Clause {
	return Clause{Field: field, Op: OpAfter, Time: t}
}

func Before(field string, t time.Time) Clause {
	return Clause{Field: field, Op: OpBefore, Time: t}
}

func (c Clause) String() string {
	if c.Op == OpAfter || c.Op == OpBefore {
		return fmt.Sprintf("%s %s %s", c.Field, c.Op, c.Time.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("%s %s %q", c.Field, c.Op, c.Value)
}

// Predicate is a conjunction of groups; each group is a disjunction of
// clauses. The empty predicate matches every record.
type Predicate struct {
	Groups [][]Clause `json:"groups,omitempty"`
}

// All is the predicate matching every record.
func All() Predicate { return Predicate{} }

// And returns a copy of p with one more group holding the given
// alternatives. An empty call leaves p unchanged.
func (p Predicate) And(anyOf ...Clause) Predicate {
	if len(anyOf) == 0 {
		return p
	}
	groups := make([][]Clause, 0, len(p.Groups)+1)
	groups = append(groups, p.Groups...)
	groups = append(groups, append([]Clause(nil), anyOf...))
	return Predicate{Groups: groups}
}

func (p Predicate) IsEmpty() bool {
	return len(p.Groups) == 0
}

// String renders a canonical form: clause order inside a group and group
// order are both sorted, so equal predicates render identically.
func (p Predicate) String() string {
	if p.IsEmpty() {
		return "*"
	}
	groups := make([]string, 0, len(p.Groups))
	for _, g := range p.Groups {
		parts := make([]string, 0, len(g))
		for _, c := range g {
			parts = append(parts, c.String())
		}
		sort.Strings(parts)
		groups = append(groups, "("+strings.Join(parts, " OR ")+")")
	}
	sort.Strings(groups)
	return strings.Join(groups, " AND ")
}
