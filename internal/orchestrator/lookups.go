package orchestrator

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
)

// birthdays lists the matching employees born in the asked month, by day.
// The month is not expressible as a predicate over a full date, so it is
// applied to the fetched employees.
func (r *Router) birthdays(ctx context.Context, normalized string, bag models.EntityBag, now time.Time) Answer {
	ctx, span := observability.StartSpan(ctx, "router.birthdays")
	defer span.End()

	month, next := r.builder.BirthdayMonth(bag, now)
	span.SetAttributes(attribute.Int("month", int(month)))
	answer := Answer{Kind: models.KindEmployee}

	employees, err := lookup(ctx, r, models.KindEmployee, r.builder.Employees(normalized, bag), r.dir.FindEmployees)
	if err != nil {
		answer.Err = err
		answer.Degraded = true
		answer.Reply = noBirthdaysReply(next)
		return answer
	}

	var born []models.Employee
	for _, e := range employees {
		if !e.Birthday.IsZero() && e.Birthday.Month() == month {
			born = append(born, e)
		}
	}
	if len(born) == 0 {
		answer.Reply = noBirthdaysReply(next)
		return answer
	}
	sort.SliceStable(born, func(i, j int) bool { return born[i].Birthday.Day() < born[j].Birthday.Day() })
	if len(born) > r.cfg.MaxResults {
		born = born[:r.cfg.MaxResults]
	}
	answer.Results = len(born)
	answer.Reply = birthdaysReply(next, born)
	return answer
}

// availability pairs every matching employee with the events they take part
// in over the coming week.
func (r *Router) availability(ctx context.Context, normalized string, bag models.EntityBag, now time.Time) Answer {
	ctx, span := observability.StartSpan(ctx, "router.availability")
	defer span.End()

	answer := Answer{Kind: models.KindEmployee}

	employees, err := lookup(ctx, r, models.KindEmployee, r.builder.Employees(normalized, bag), r.dir.FindEmployees)
	if err == nil && len(employees) > 0 {
		var events []models.Event
		events, err = lookup(ctx, r, models.KindEvent, r.builder.BusyWindow(now), r.dir.FindEvents)
		if err == nil {
			if len(employees) > r.cfg.MaxResults {
				employees = employees[:r.cfg.MaxResults]
			}
			sort.SliceStable(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
			answer.Results = len(employees)
			answer.Reply = availabilityReply(employees, events)
			return answer
		}
	}
	if err != nil {
		answer.Err = err
		answer.Degraded = true
	}
	answer.Reply = notFoundReply(models.KindEmployee)
	return answer
}

// busyWith returns the events listing the employee as a participant.
func busyWith(e models.Employee, events []models.Event) []models.Event {
	name := e.FullName()
	var out []models.Event
	for _, ev := range events {
		for _, p := range ev.Participants {
			if strings.EqualFold(strings.TrimSpace(p), name) {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
