package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/shubhsaxena/directory-assistant/internal/models"
)

const dateLayout = "02.01.2006 15:04"

// ExampleQuestions are offered to users whose question was not understood.
var ExampleQuestions = []string{
	"Кто знает Python?",
	"Кто работает в отделе IT?",
	"Какие мероприятия на этой неделе?",
	"Какие срочные задачи?",
	"Какие активности есть сегодня?",
	"Как оформить отпуск?",
	"У кого день рождения в этом месяце?",
	"Кто свободен на этой неделе?",
}

func welcomeReply() string {
	var b strings.Builder
	b.WriteString("Здравствуйте! Я корпоративный ассистент. Я помогу найти коллег, ")
	b.WriteString("расскажу о мероприятиях, задачах, активностях и правилах компании.\n\n")
	b.WriteString("Например, спросите:\n")
	writeExamples(&b)
	return b.String()
}

func rephraseReply() string {
	var b strings.Builder
	b.WriteString("Извините, я не понял вопрос. Попробуйте переформулировать, например:\n")
	writeExamples(&b)
	return b.String()
}

func writeExamples(b *strings.Builder) {
	for _, q := range ExampleQuestions {
		b.WriteString("• ")
		b.WriteString(q)
		b.WriteString("\n")
	}
}

func notFoundReply(kind models.RecordKind) string {
	switch kind {
	case models.KindEmployee:
		return "Сотрудники по вашему запросу не найдены."
	case models.KindEvent:
		return "Мероприятия по вашему запросу не найдены."
	case models.KindTask:
		return "Задачи по вашему запросу не найдены."
	case models.KindActivity:
		return "Активности по вашему запросу не найдены."
	default:
		return "Информация по вашему запросу не найдена."
	}
}

func listHeader(kind models.RecordKind) string {
	switch kind {
	case models.KindEmployee:
		return "Найденные сотрудники:"
	case models.KindEvent:
		return "Ближайшие мероприятия:"
	case models.KindTask:
		return "Задачи:"
	case models.KindActivity:
		return "Социальные активности:"
	default:
		return "Информация:"
	}
}

func listReply[R any](kind models.RecordKind, records []R, render func(R) string) string {
	var b strings.Builder
	b.WriteString(listHeader(kind))
	b.WriteString("\n")
	writeRecords(&b, records, render)
	return b.String()
}

func suggestionsReply[R any](records []R, render func(R) string) string {
	var b strings.Builder
	b.WriteString("Точных совпадений нет. Возможно, вы имели в виду:\n")
	writeRecords(&b, records, render)
	return b.String()
}

func writeRecords[R any](b *strings.Builder, records []R, render func(R) string) {
	for _, r := range records {
		b.WriteString("• ")
		b.WriteString(render(r))
		b.WriteString("\n")
	}
}

func renderEmployee(e models.Employee) string {
	s := fmt.Sprintf("%s, %s (%s)", e.FullName(), e.Position, e.Department)
	if e.Skills != "" {
		s += ", навыки: " + e.Skills
	}
	if e.Email != "" {
		s += ", " + e.Email
	}
	return s
}

func renderEvent(e models.Event) string {
	return renderScheduled(e.Title, e.StartTime, e.Location)
}

func renderActivity(a models.Activity) string {
	return renderScheduled(a.Title, a.StartTime, a.Location)
}

func renderScheduled(title string, start time.Time, location string) string {
	s := title
	if !start.IsZero() {
		s += ", " + start.Format(dateLayout)
	}
	if location != "" {
		s += ", " + location
	}
	return s
}

func renderTask(t models.Task) string {
	s := fmt.Sprintf("%s [%s, приоритет %d]", t.Title, t.Status, t.Priority)
	if !t.DueDate.IsZero() {
		s += ", срок " + t.DueDate.Format("02.01.2006")
	}
	if t.Assignee != "" {
		s += ", " + t.Assignee
	}
	return s
}

func renderGeneralInfo(g models.GeneralInfo) string {
	return g.Title + ": " + g.Content
}

func noBirthdaysReply(nextMonth bool) string {
	if nextMonth {
		return "В следующем месяце нет дней рождения."
	}
	return "В этом месяце нет дней рождения."
}

func birthdaysReply(nextMonth bool, employees []models.Employee) string {
	var b strings.Builder
	if nextMonth {
		b.WriteString("Дни рождения в следующем месяце:\n")
	} else {
		b.WriteString("Дни рождения в этом месяце:\n")
	}
	writeRecords(&b, employees, func(e models.Employee) string {
		return fmt.Sprintf("%s, %s (%s)", e.FullName(), e.Birthday.Format("02.01"), e.Department)
	})
	return b.String()
}

func availabilityReply(employees []models.Employee, events []models.Event) string {
	var b strings.Builder
	b.WriteString("Занятость сотрудников на ближайшие 7 дней:\n")
	writeRecords(&b, employees, func(e models.Employee) string {
		s := fmt.Sprintf("%s (%s): ", e.FullName(), e.Department)
		busy := busyWith(e, events)
		if len(busy) == 0 {
			return s + "свободен"
		}
		parts := make([]string, 0, len(busy))
		for _, ev := range busy {
			parts = append(parts, fmt.Sprintf("%s (%s)", ev.Title, ev.StartTime.Format(dateLayout)))
		}
		return s + "занят: " + strings.Join(parts, ", ")
	})
	return b.String()
}
