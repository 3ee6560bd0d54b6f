package store

import (
	"context"
	"sync"
	"time"

	"github.com/shubhsaxena/directory-assistant/internal/models"
)

// Memory is a Directory over slices held in process. It is safe for
// concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data Dataset
}

func NewMemory(ds *Dataset) *Memory {
	m := &Memory{}
	if ds != nil {
		m.Load(context.Background(), ds)
	}
	return m
}

// Load appends records whose id is not present yet.
func (m *Memory) Load(_ context.Context, ds *Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.Employees = appendNew(m.data.Employees, ds.Employees, func(e models.Employee) int64 { return e.ID })
	m.data.Events = appendNew(m.data.Events, ds.Events, func(e models.Event) int64 { return e.ID })
	m.data.Tasks = appendNew(m.data.Tasks, ds.Tasks, func(t models.Task) int64 { return t.ID })
	m.data.Activities = appendNew(m.data.Activities, ds.Activities, func(a models.Activity) int64 { return a.ID })
	m.data.GeneralInfo = appendNew(m.data.GeneralInfo, ds.GeneralInfo, func(g models.GeneralInfo) int64 { return g.ID })
	return nil
}

func (m *Memory) FindEmployees(ctx context.Context, p models.Predicate) ([]models.Employee, error) {
	return find(ctx, m, models.KindEmployee, func(d *Dataset) []models.Employee { return d.Employees }, models.EmployeeFields, p)
}

func (m *Memory) FindEvents(ctx context.Context, p models.Predicate) ([]models.Event, error) {
	return find(ctx, m, models.KindEvent, func(d *Dataset) []models.Event { return d.Events }, models.EventFields, p)
}

func (m *Memory) FindTasks(ctx context.Context, p models.Predicate) ([]models.Task, error) {
	return find(ctx, m, models.KindTask, func(d *Dataset) []models.Task { return d.Tasks }, models.TaskFields, p)
}

func (m *Memory) FindActivities(ctx context.Context, p models.Predicate) ([]models.Activity, error) {
	return find(ctx, m, models.KindActivity, func(d *Dataset) []models.Activity { return d.Activities }, models.ActivityFields, p)
}

func (m *Memory) FindGeneralInfo(ctx context.Context, p models.Predicate) ([]models.GeneralInfo, error) {
	return find(ctx, m, models.KindGeneralInfo, func(d *Dataset) []models.GeneralInfo { return d.GeneralInfo }, models.GeneralInfoFields, p)
}

func (m *Memory) HealthCheck(context.Context) error { return nil }

func find[R any](ctx context.Context, m *Memory, kind models.RecordKind, records func(*Dataset) []R, table models.FieldTable[R], p models.Predicate) (out []R, err error) {
	start := time.Now()
	defer func() { observe("memory", kind, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := Validate(table, p); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out = make([]R, 0)
	for _, r := range records(&m.data) {
		if Match(r, table, p) {
			out = append(out, r)
		}
	}
	return out, nil
}

func appendNew[R any](dst, src []R, id func(R) int64) []R {
	seen := make(map[int64]bool, len(dst))
	for _, r := range dst {
		seen[id(r)] = true
	}
	for _, r := range src {
		if !seen[id(r)] {
			seen[id(r)] = true
			dst = append(dst, r)
		}
	}
	return dst
}
