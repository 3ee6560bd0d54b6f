package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shubhsaxena/directory-assistant/internal/models"
)

var seedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func employeeIDs(es []models.Employee) []int64 {
	ids := make([]int64, len(es))
	for i, e := range es {
		ids[i] = e.ID
	}
	return ids
}

func sameIDs(got, want []int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestMemory_FindEmployees(t *testing.T) {
	m := NewMemory(SeedData(seedNow))

	tests := []struct {
		name string
		p    models.Predicate
		want []int64
	}{
		{"all", models.All(), []int64{1, 2, 3, 4, 5, 6}},
		{"position contains cyrillic ignoring case", models.All().And(models.Contains(models.FieldPosition, "РАЗРАБОТ")), []int64{1}},
		{"position disjunction", models.All().And(
			models.Contains(models.FieldPosition, "разработ"),
			models.Contains(models.FieldPosition, "developer"),
		), []int64{1, 3}},
		{"conjunction of groups", models.All().
			And(models.Contains(models.FieldDepartment, "it")).
			And(models.Contains(models.FieldSkills, "python")), []int64{1, 6}},
		{"equals", models.All().And(models.Equals(models.FieldDepartment, "hr")), []int64{2}},
		{"not equals", models.All().And(models.NotEquals(models.FieldDepartment, "IT")), []int64{2, 4, 5}},
		{"no match", models.All().And(models.Contains(models.FieldSkills, "cobol")), []int64{}},
		{"birthday range", models.All().
			And(models.After(models.FieldBirthday, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))).
			And(models.Before(models.FieldBirthday, time.Date(1992, 1, 1, 0, 0, 0, 0, time.UTC))), []int64{1, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.FindEmployees(context.Background(), tt.p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ids := employeeIDs(got); !sameIDs(ids, tt.want) {
				t.Errorf("expected ids %v, got %v", tt.want, ids)
			}
		})
	}
}

func TestMemory_UnknownField(t *testing.T) {
	m := NewMemory(SeedData(seedNow))

	_, err := m.FindEmployees(context.Background(), models.All().And(models.Contains("salary", "1")))
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}

	_, err = m.FindTasks(context.Background(), models.All().And(models.After(models.FieldTitle, seedNow)))
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField for range on text field, got %v", err)
	}
}

func TestMemory_ZeroTimesNeverMatchRanges(t *testing.T) {
	m := NewMemory(&Dataset{Tasks: []models.Task{
		{ID: 1, Title: "no due date", Status: models.StatusTodo},
		{ID: 2, Title: "due", Status: models.StatusTodo, DueDate: seedNow.Add(time.Hour)},
	}})

	got, err := m.FindTasks(context.Background(), models.All().And(models.Before(models.FieldDueDate, seedNow.Add(24*time.Hour))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("expected only task 2, got %+v", got)
	}
}

func TestMemory_LoadSkipsExistingIDs(t *testing.T) {
	m := NewMemory(SeedData(seedNow))
	err := m.Load(context.Background(), &Dataset{Employees: []models.Employee{
		{ID: 1, Name: "Дубликат"},
		{ID: 7, Name: "Новый", Surname: "Сотрудник"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, _ := m.FindEmployees(context.Background(), models.All())
	if len(all) != 7 {
		t.Fatalf("expected 7 employees, got %d", len(all))
	}
	if all[0].Name != "Иван" {
		t.Errorf("expected original record kept, got %q", all[0].Name)
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemory(SeedData(seedNow))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.FindEvents(ctx, models.All()); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestExport(t *testing.T) {
	seed := SeedData(seedNow)
	ds, err := Export(context.Background(), NewMemory(seed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Len() != seed.Len() {
		t.Errorf("expected %d records, got %d", seed.Len(), ds.Len())
	}
}

func TestSeedData_UpcomingRelativeToNow(t *testing.T) {
	ds := SeedData(seedNow)
	for _, e := range ds.Events {
		if !e.StartTime.After(seedNow) {
			t.Errorf("event %q starts at %v, expected after %v", e.Title, e.StartTime, seedNow)
		}
	}
	for _, a := range ds.Activities {
		if !a.StartTime.After(seedNow) {
			t.Errorf("activity %q starts at %v, expected after %v", a.Title, a.StartTime, seedNow)
		}
	}
}

func TestMatch_EmptyPredicate(t *testing.T) {
	if !Match(models.GeneralInfo{}, models.GeneralInfoFields, models.All()) {
		t.Error("expected empty predicate to match")
	}
}
