package models

import "fmt"

// Intent is the closed set of purposes a question can be classified into.
// The zero value is IntentUnclassified so an unset Intent is never mistaken
// for a real category.
type Intent int

const (
	IntentUnclassified Intent = iota
	IntentFindEmployee
	IntentFindEvent
	IntentFindTask
	IntentFindActivity
	IntentGeneralInfo
	IntentGreeting
)

// IntentPriority is the fixed order used both for trigger-word short
// circuiting and for breaking exact score ties. Earlier wins.
var IntentPriority = []Intent{
	IntentFindEmployee,
	IntentFindEvent,
	IntentFindTask,
	IntentFindActivity,
	IntentGeneralInfo,
	IntentGreeting,
}

func (i Intent) String() string {
	switch i {
	case IntentUnclassified:
		return "unclassified"
	case IntentFindEmployee:
		return "find-employee"
	case IntentFindEvent:
		return "find-event"
	case IntentFindTask:
		return "find-task"
	case IntentFindActivity:
		return "find-activity"
	case IntentGeneralInfo:
		return "general-info"
	case IntentGreeting:
		return "greeting"
	default:
		return "unknown"
	}
}

// Label is the human readable, display-only name of the intent. It is also
// the text handed to the model collaborator as a candidate label.
func (i Intent) Label() string {
	switch i {
	case IntentFindEmployee:
		return "поиск сотрудника"
	case IntentFindEvent:
		return "информация о мероприятии"
	case IntentFindTask:
		return "информация о задаче"
	case IntentFindActivity:
		return "социальные активности"
	case IntentGeneralInfo:
		return "общая информация"
	case IntentGreeting:
		return "приветствие"
	default:
		return "неопределенный запрос"
	}
}

// Valid reports whether i is a member of the enumeration.
func (i Intent) Valid() bool {
	return i >= IntentUnclassified && i <= IntentGreeting
}

// ParseIntent maps either the machine name or the display label back to an
// Intent. Unknown strings are an error; callers must never invent categories.
func ParseIntent(s string) (Intent, error) {
	for i := IntentUnclassified; i <= IntentGreeting; i++ {
		if s == i.String() || s == i.Label() {
			return i, nil
		}
	}
	return IntentUnclassified, fmt.Errorf("unknown intent %q", s)
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Intent) UnmarshalText(b []byte) error {
	parsed, err := ParseIntent(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
