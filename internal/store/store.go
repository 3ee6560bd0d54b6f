// Package store holds the directory persistence collaborator: the lookup
// interface the assistant reads through and its in-memory and SQL backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
)

var (
	// ErrUnavailable wraps any backend failure: connection, timeout, or a
	// tripped breaker.
	ErrUnavailable = errors.New("store: backend unavailable")

	ErrUnknownField = errors.New("store: unknown field")
)

// Directory is the read-only lookup surface over every record kind. Results
// come back in id order; an empty result is not an error.
type Directory interface {
	FindEmployees(ctx context.Context, p models.Predicate) ([]models.Employee, error)
	FindEvents(ctx context.Context, p models.Predicate) ([]models.Event, error)
	FindTasks(ctx context.Context, p models.Predicate) ([]models.Task, error)
	FindActivities(ctx context.Context, p models.Predicate) ([]models.Activity, error)
	FindGeneralInfo(ctx context.Context, p models.Predicate) ([]models.GeneralInfo, error)
}

// Loader writes a dataset into a backend. Existing ids are left untouched.
type Loader interface {
	Load(ctx context.Context, ds *Dataset) error
}

// Dataset is a full copy of the directory.
type Dataset struct {
	Employees   []models.Employee    `json:"employees"`
	Events      []models.Event       `json:"events"`
	Tasks       []models.Task        `json:"tasks"`
	Activities  []models.Activity    `json:"activities"`
	GeneralInfo []models.GeneralInfo `json:"general_info"`
}

func (ds *Dataset) Len() int {
	return len(ds.Employees) + len(ds.Events) + len(ds.Tasks) + len(ds.Activities) + len(ds.GeneralInfo)
}

// Export reads every record of every kind from d.
func Export(ctx context.Context, d Directory) (*Dataset, error) {
	var (
		ds  Dataset
		err error
	)
	all := models.All()
	if ds.Employees, err = d.FindEmployees(ctx, all); err != nil {
		return nil, fmt.Errorf("exporting employees: %w", err)
	}
	if ds.Events, err = d.FindEvents(ctx, all); err != nil {
		return nil, fmt.Errorf("exporting events: %w", err)
	}
	if ds.Tasks, err = d.FindTasks(ctx, all); err != nil {
		return nil, fmt.Errorf("exporting tasks: %w", err)
	}
	if ds.Activities, err = d.FindActivities(ctx, all); err != nil {
		return nil, fmt.Errorf("exporting activities: %w", err)
	}
	if ds.GeneralInfo, err = d.FindGeneralInfo(ctx, all); err != nil {
		return nil, fmt.Errorf("exporting general info: %w", err)
	}
	return &ds, nil
}

// Validate checks that every clause of p names a field of table and uses an
// operator suitable for that field's type.
func Validate[R any](table models.FieldTable[R], p models.Predicate) error {
	for _, group := range p.Groups {
		for _, c := range group {
			_, isText := table.Text[c.Field]
			_, isTime := table.Time[c.Field]
			switch c.Op {
			case models.OpEquals, models.OpNotEquals, models.OpContains:
				if !isText {
					return fmt.Errorf("%w: %q is not a text field", ErrUnknownField, c.Field)
				}
			case models.OpAfter, models.OpBefore:
				if !isTime {
					return fmt.Errorf("%w: %q is not a time field", ErrUnknownField, c.Field)
				}
			default:
				return fmt.Errorf("store: unsupported operator %q", c.Op)
			}
		}
	}
	return nil
}

// Match evaluates p against r. Text comparisons ignore case; range clauses
// never match a zero time. Clauses on fields missing from table are false.
func Match[R any](r R, table models.FieldTable[R], p models.Predicate) bool {
	for _, group := range p.Groups {
		matched := false
		for _, c := range group {
			if matchClause(r, table, c) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func matchClause[R any](r R, table models.FieldTable[R], c models.Clause) bool {
	switch c.Op {
	case models.OpEquals, models.OpNotEquals, models.OpContains:
		get, ok := table.Text[c.Field]
		if !ok {
			return false
		}
		v := strings.ToLower(get(r))
		want := strings.ToLower(c.Value)
		switch c.Op {
		case models.OpEquals:
			return v == want
		case models.OpNotEquals:
			return v != want
		default:
			return strings.Contains(v, want)
		}
	case models.OpAfter, models.OpBefore:
		get, ok := table.Time[c.Field]
		if !ok {
			return false
		}
		t := get(r)
		if t.IsZero() {
			return false
		}
		if c.Op == models.OpAfter {
			return !t.Before(c.Time)
		}
		return t.Before(c.Time)
	}
	return false
}

// observe records one lookup in the store latency histogram.
func observe(backend string, kind models.RecordKind, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.StoreQueryDuration.WithLabelValues(backend, string(kind), status).Observe(time.Since(start).Seconds())
}

// Observe is observe for backends living outside this package.
func Observe(backend string, kind models.RecordKind, start time.Time, err error) {
	observe(backend, kind, start, err)
}
