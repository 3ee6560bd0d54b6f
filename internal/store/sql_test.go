package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/models"
)

func TestBuildWhere(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	p := models.All().
		And(models.Contains(models.FieldPosition, "Dev_%"), models.Equals(models.FieldDepartment, "IT")).
		And(models.After(models.FieldBirthday, at))

	tests := []struct {
		name      string
		d         dialect
		wantWhere string
	}{
		{
			"sqlite",
			sqliteDialect,
			` WHERE (ulower(position) LIKE ? ESCAPE '\' OR ulower(department) = ?) AND ((birthday <> 0 AND birthday >= ?))`,
		},
		{
			"postgres",
			postgresDialect,
			` WHERE (LOWER(position) LIKE $1 ESCAPE '\' OR LOWER(department) = $2) AND ((birthday <> 0 AND birthday >= $3))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildWhere(tt.d, p, nil)
			if where != tt.wantWhere {
				t.Errorf("where mismatch\n got: %s\nwant: %s", where, tt.wantWhere)
			}
			if len(args) != 3 {
				t.Fatalf("expected 3 args, got %d", len(args))
			}
			if args[0] != `%dev\_\%%` {
				t.Errorf("expected escaped lower-cased pattern, got %v", args[0])
			}
			if args[1] != "it" {
				t.Errorf("expected lower-cased value, got %v", args[1])
			}
			if args[2] != at.Unix() {
				t.Errorf("expected unix seconds, got %v", args[2])
			}
		})
	}
}

func TestBuildWhere_EmptyAndNumeric(t *testing.T) {
	where, args := buildWhere(sqliteDialect, models.All(), nil)
	if where != "" || args != nil {
		t.Errorf("expected no clause for empty predicate, got %q %v", where, args)
	}

	where, _ = buildWhere(sqliteDialect, models.All().And(models.Equals(models.FieldPriority, "3")), tasksTable.numeric)
	if where != " WHERE (ulower(CAST(priority AS TEXT)) = ?)" {
		t.Errorf("unexpected numeric clause: %s", where)
	}
}

func TestSplitJoinList(t *testing.T) {
	if got := splitList(joinList([]string{"a", "b c"})); len(got) != 2 || got[1] != "b c" {
		t.Errorf("unexpected round trip: %v", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("expected nil for empty list, got %v", got)
	}
}

func TestUnixZeroTime(t *testing.T) {
	if toUnix(time.Time{}) != 0 {
		t.Error("expected zero time stored as 0")
	}
	if !fromUnix(0).IsZero() {
		t.Error("expected 0 read back as zero time")
	}
}

func newSQLiteStore(t *testing.T) *SQL {
	t.Helper()
	s, err := OpenSQL(config.StoreConfig{Driver: config.DriverSQLite, DSN: ":memory:", QueryTimeout: time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("opening sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	seeded, err := s.SeedIfEmpty(ctx, SeedData(seedNow))
	if err != nil || !seeded {
		t.Fatalf("seeding: seeded=%v err=%v", seeded, err)
	}
	return s
}

func TestSQLite_FindEmployees(t *testing.T) {
	s := newSQLiteStore(t)

	tests := []struct {
		name string
		p    models.Predicate
		want []int64
	}{
		{"all", models.All(), []int64{1, 2, 3, 4, 5, 6}},
		{"cyrillic contains ignores case", models.All().And(models.Contains(models.FieldPosition, "разработ")), []int64{1}},
		{"latin contains ignores case", models.All().And(models.Contains(models.FieldPosition, "DEVELOPER")), []int64{3}},
		{"skills conjunction", models.All().
			And(models.Contains(models.FieldDepartment, "it")).
			And(models.Contains(models.FieldSkills, "python")), []int64{1, 6}},
		{"not equals", models.All().And(models.NotEquals(models.FieldDepartment, "it")), []int64{2, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindEmployees(context.Background(), tt.p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ids := employeeIDs(got); !sameIDs(ids, tt.want) {
				t.Errorf("expected ids %v, got %v", tt.want, ids)
			}
		})
	}
}

func TestSQLite_AgreesWithMemory(t *testing.T) {
	s := newSQLiteStore(t)
	m := NewMemory(SeedData(seedNow))
	ctx := context.Background()

	predicates := []models.Predicate{
		models.All(),
		models.All().And(models.After(models.FieldStartTime, seedNow)),
		models.All().And(models.After(models.FieldStartTime, seedNow)).And(models.Before(models.FieldStartTime, seedNow.Add(4*24*time.Hour))),
		models.All().And(models.Equals(models.FieldType, "meeting"), models.Equals(models.FieldType, "training")),
	}
	for _, p := range predicates {
		fromSQL, err := s.FindEvents(ctx, p)
		if err != nil {
			t.Fatalf("sql %s: %v", p, err)
		}
		fromMem, _ := m.FindEvents(ctx, p)
		if len(fromSQL) != len(fromMem) {
			t.Fatalf("%s: sql returned %d, memory %d", p, len(fromSQL), len(fromMem))
		}
		for i := range fromSQL {
			if fromSQL[i].ID != fromMem[i].ID || !fromSQL[i].StartTime.Equal(fromMem[i].StartTime) {
				t.Errorf("%s: row %d differs: %+v vs %+v", p, i, fromSQL[i], fromMem[i])
			}
		}
	}

	tasks, err := s.FindTasks(ctx, models.All().And(models.NotEquals(models.FieldStatus, models.StatusDone)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 3 {
		t.Errorf("expected 3 open tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.ID == 1 && (len(task.Tags) != 2 || task.Tags[0] != "docs") {
			t.Errorf("expected tags restored, got %v", task.Tags)
		}
	}

	high, err := s.FindTasks(ctx, models.All().And(models.Equals(models.FieldPriority, "3")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(high) != 1 || high[0].ID != 2 {
		t.Errorf("expected task 2 for priority 3, got %+v", high)
	}
}

func TestSQLite_SeedIfEmptyIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	seeded, err := s.SeedIfEmpty(context.Background(), SeedData(seedNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeded {
		t.Error("expected second seed to be skipped")
	}
	if err := s.Load(context.Background(), SeedData(seedNow)); err != nil {
		t.Fatalf("expected duplicate load to be ignored, got %v", err)
	}
	all, _ := s.FindGeneralInfo(context.Background(), models.All())
	if len(all) != 4 {
		t.Errorf("expected 4 general info records, got %d", len(all))
	}
}

func TestSQLite_UnknownField(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.FindActivities(context.Background(), models.All().And(models.Contains("budget", "x")))
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestSQLite_ClosedIsUnavailable(t *testing.T) {
	s := newSQLiteStore(t)
	s.Close()
	_, err := s.FindEmployees(context.Background(), models.All())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	if _, err := OpenSQL(config.StoreConfig{Driver: "oracle"}, zap.NewNop()); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestRegisterSQLiteFunctions_Idempotent(t *testing.T) {
	for i := 0; i < 3; i++ {
		if err := registerSQLiteFunctions(); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
}

func TestOpenSQL_RegistrationFailure(t *testing.T) {
	if err := registerSQLiteFunctions(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failed := errors.New("function ulower already registered")
	saved := registerErr
	registerErr = failed
	t.Cleanup(func() { registerErr = saved })

	s, err := OpenSQL(config.StoreConfig{Driver: config.DriverSQLite, DSN: ":memory:"}, zap.NewNop())
	if !errors.Is(err, failed) {
		t.Fatalf("expected the registration error, got %v", err)
	}
	if s != nil {
		t.Error("expected no store when registration failed")
	}
}
