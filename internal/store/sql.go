package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"modernc.org/sqlite"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
)

// dialect covers the few places sqlite and postgres disagree.
type dialect struct {
	name   string
	driver string
	// lower is a Unicode-aware lower-casing function; sqlite's built-in
	// LOWER only folds ASCII.
	lower string
}

var (
	sqliteDialect   = dialect{name: config.DriverSQLite, driver: "sqlite", lower: "ulower"}
	postgresDialect = dialect{name: config.DriverPostgres, driver: "pgx", lower: "LOWER"}
)

func (d dialect) placeholder(n int) string {
	if d.name == config.DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

var (
	registerOnce sync.Once
	registerErr  error
)

// registerSQLiteFunctions installs ulower once per process. A failed
// registration is remembered and returned to every later caller.
func registerSQLiteFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("ulower", 1, ulower)
	})
	if registerErr != nil {
		return fmt.Errorf("registering sqlite functions: %w", registerErr)
	}
	return nil
}

func ulower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// SQL is a Directory over a relational database. Times are stored as unix
// seconds with 0 for "unset"; list fields are stored comma separated.
type SQL struct {
	db      *sql.DB
	dialect dialect
	timeout time.Duration
	logger  *zap.Logger
}

func OpenSQL(cfg config.StoreConfig, logger *zap.Logger) (*SQL, error) {
	var d dialect
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := registerSQLiteFunctions(); err != nil {
			return nil, err
		}
		d = sqliteDialect
	case config.DriverPostgres:
		d = postgresDialect
	default:
		return nil, fmt.Errorf("store: unsupported sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", d.name, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	// Every connection to an in-memory sqlite database is a fresh database.
	if d.name == config.DriverSQLite && strings.Contains(cfg.DSN, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s store: %w", d.name, err)
	}

	logger.Info("sql store connected", zap.String("driver", d.name))
	return &SQL{db: db, dialect: d, timeout: cfg.QueryTimeout, logger: logger}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		surname TEXT NOT NULL,
		position TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		skills TEXT NOT NULL DEFAULT '',
		interests TEXT NOT NULL DEFAULT '',
		birthday BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_time BIGINT NOT NULL DEFAULT 0,
		end_time BIGINT NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		organizer TEXT NOT NULL DEFAULT '',
		max_participants INTEGER NOT NULL DEFAULT 0,
		participants TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'todo',
		priority INTEGER NOT NULL DEFAULT 1,
		assignee TEXT NOT NULL DEFAULT '',
		due_date BIGINT NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		start_time BIGINT NOT NULL DEFAULT 0,
		end_time BIGINT NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT '',
		organizer TEXT NOT NULL DEFAULT '',
		max_participants INTEGER NOT NULL DEFAULT 0,
		participants TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS general_info (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT ''
	)`,
}

func (s *SQL) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	s.logger.Info("sql store schema ensured")
	return nil
}

// tableDef binds a record type to its table. columns lists the select and
// insert order used by scan and values.
type tableDef[R any] struct {
	name    string
	kind    models.RecordKind
	columns []string
	numeric map[string]bool
	fields  models.FieldTable[R]
	scan    func(*sql.Rows) (R, error)
	values  func(R) []any
}

var employeesTable = tableDef[models.Employee]{
	name:    "employees",
	kind:    models.KindEmployee,
	columns: []string{"id", "name", "surname", "position", "department", "email", "phone", "skills", "interests", "birthday"},
	fields:  models.EmployeeFields,
	scan: func(rows *sql.Rows) (models.Employee, error) {
		var e models.Employee
		var birthday int64
		err := rows.Scan(&e.ID, &e.Name, &e.Surname, &e.Position, &e.Department, &e.Email, &e.Phone, &e.Skills, &e.Interests, &birthday)
		e.Birthday = fromUnix(birthday)
		return e, err
	},
	values: func(e models.Employee) []any {
		return []any{e.ID, e.Name, e.Surname, e.Position, e.Department, e.Email, e.Phone, e.Skills, e.Interests, toUnix(e.Birthday)}
	},
}

var eventsTable = tableDef[models.Event]{
	name:    "events",
	kind:    models.KindEvent,
	columns: []string{"id", "title", "description", "start_time", "end_time", "location", "type", "organizer", "max_participants", "participants"},
	fields:  models.EventFields,
	scan: func(rows *sql.Rows) (models.Event, error) {
		var e models.Event
		var start, end int64
		var participants string
		err := rows.Scan(&e.ID, &e.Title, &e.Description, &start, &end, &e.Location, &e.Type, &e.Organizer, &e.MaxParticipants, &participants)
		e.StartTime, e.EndTime = fromUnix(start), fromUnix(end)
		e.Participants = splitList(participants)
		return e, err
	},
	values: func(e models.Event) []any {
		return []any{e.ID, e.Title, e.Description, toUnix(e.StartTime), toUnix(e.EndTime), e.Location, e.Type, e.Organizer, e.MaxParticipants, joinList(e.Participants)}
	},
}

var tasksTable = tableDef[models.Task]{
	name:    "tasks",
	kind:    models.KindTask,
	columns: []string{"id", "title", "description", "status", "priority", "assignee", "due_date", "tags"},
	numeric: map[string]bool{models.FieldPriority: true},
	fields:  models.TaskFields,
	scan: func(rows *sql.Rows) (models.Task, error) {
		var t models.Task
		var due int64
		var tags string
		err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Assignee, &due, &tags)
		t.DueDate = fromUnix(due)
		t.Tags = splitList(tags)
		return t, err
	},
	values: func(t models.Task) []any {
		return []any{t.ID, t.Title, t.Description, t.Status, t.Priority, t.Assignee, toUnix(t.DueDate), joinList(t.Tags)}
	},
}

var activitiesTable = tableDef[models.Activity]{
	name:    "activities",
	kind:    models.KindActivity,
	columns: []string{"id", "title", "description", "type", "start_time", "end_time", "location", "organizer", "max_participants", "participants"},
	fields:  models.ActivityFields,
	scan: func(rows *sql.Rows) (models.Activity, error) {
		var a models.Activity
		var start, end int64
		var participants string
		err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Type, &start, &end, &a.Location, &a.Organizer, &a.MaxParticipants, &participants)
		a.StartTime, a.EndTime = fromUnix(start), fromUnix(end)
		a.Participants = splitList(participants)
		return a, err
	},
	values: func(a models.Activity) []any {
		return []any{a.ID, a.Title, a.Description, a.Type, toUnix(a.StartTime), toUnix(a.EndTime), a.Location, a.Organizer, a.MaxParticipants, joinList(a.Participants)}
	},
}

var generalInfoTable = tableDef[models.GeneralInfo]{
	name:    "general_info",
	kind:    models.KindGeneralInfo,
	columns: []string{"id", "title", "content", "category"},
	fields:  models.GeneralInfoFields,
	scan: func(rows *sql.Rows) (models.GeneralInfo, error) {
		var g models.GeneralInfo
		err := rows.Scan(&g.ID, &g.Title, &g.Content, &g.Category)
		return g, err
	},
	values: func(g models.GeneralInfo) []any {
		return []any{g.ID, g.Title, g.Content, g.Category}
	},
}

func (s *SQL) FindEmployees(ctx context.Context, p models.Predicate) ([]models.Employee, error) {
	return query(ctx, s, employeesTable, p)
}

func (s *SQL) FindEvents(ctx context.Context, p models.Predicate) ([]models.Event, error) {
	return query(ctx, s, eventsTable, p)
}

func (s *SQL) FindTasks(ctx context.Context, p models.Predicate) ([]models.Task, error) {
	return query(ctx, s, tasksTable, p)
}

func (s *SQL) FindActivities(ctx context.Context, p models.Predicate) ([]models.Activity, error) {
	return query(ctx, s, activitiesTable, p)
}

func (s *SQL) FindGeneralInfo(ctx context.Context, p models.Predicate) ([]models.GeneralInfo, error) {
	return query(ctx, s, generalInfoTable, p)
}

func query[R any](ctx context.Context, s *SQL, t tableDef[R], p models.Predicate) (out []R, err error) {
	ctx, span := observability.StartSpan(ctx, "store.find",
		attribute.String("backend", s.dialect.name),
		attribute.String("kind", string(t.kind)),
	)
	defer span.End()

	start := time.Now()
	defer func() { observe(s.dialect.name, t.kind, start, err) }()

	if err := Validate(t.fields, p); err != nil {
		return nil, err
	}

	where, args := buildWhere(s.dialect, p, t.numeric)
	q := "SELECT " + strings.Join(t.columns, ", ") + " FROM " + t.name + where + " ORDER BY id"

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %w", ErrUnavailable, t.name, err)
	}
	defer rows.Close()

	out = make([]R, 0)
	for rows.Next() {
		r, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", t.name, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating %s rows: %w", ErrUnavailable, t.name, err)
	}
	return out, nil
}

// buildWhere renders p as a WHERE clause. Field names double as column names
// and have already been validated against the record's field table.
func buildWhere(d dialect, p models.Predicate, numeric map[string]bool) (string, []any) {
	if p.IsEmpty() {
		return "", nil
	}

	var args []any
	next := func(v any) string {
		args = append(args, v)
		return d.placeholder(len(args))
	}

	groups := make([]string, 0, len(p.Groups))
	for _, group := range p.Groups {
		parts := make([]string, 0, len(group))
		for _, c := range group {
			col := c.Field
			if numeric[col] {
				col = "CAST(" + col + " AS TEXT)"
			}
			switch c.Op {
			case models.OpEquals:
				parts = append(parts, d.lower+"("+col+") = "+next(strings.ToLower(c.Value)))
			case models.OpNotEquals:
				parts = append(parts, d.lower+"("+col+") <> "+next(strings.ToLower(c.Value)))
			case models.OpContains:
				pattern := "%" + escapeLike(strings.ToLower(c.Value)) + "%"
				parts = append(parts, d.lower+"("+col+") LIKE "+next(pattern)+` ESCAPE '\'`)
			case models.OpAfter:
				parts = append(parts, "("+c.Field+" <> 0 AND "+c.Field+" >= "+next(c.Time.Unix())+")")
			case models.OpBefore:
				parts = append(parts, "("+c.Field+" <> 0 AND "+c.Field+" < "+next(c.Time.Unix())+")")
			}
		}
		groups = append(groups, "("+strings.Join(parts, " OR ")+")")
	}
	return " WHERE " + strings.Join(groups, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Load inserts every record of ds in one transaction, skipping ids that
// already exist.
func (s *SQL) Load(ctx context.Context, ds *Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning load: %w", err)
	}
	defer tx.Rollback()

	if err := insertAll(ctx, tx, s.dialect, employeesTable, ds.Employees); err != nil {
		return err
	}
	if err := insertAll(ctx, tx, s.dialect, eventsTable, ds.Events); err != nil {
		return err
	}
	if err := insertAll(ctx, tx, s.dialect, tasksTable, ds.Tasks); err != nil {
		return err
	}
	if err := insertAll(ctx, tx, s.dialect, activitiesTable, ds.Activities); err != nil {
		return err
	}
	if err := insertAll(ctx, tx, s.dialect, generalInfoTable, ds.GeneralInfo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load: %w", err)
	}
	s.logger.Info("directory records loaded", zap.Int("records", ds.Len()))
	return nil
}

func insertAll[R any](ctx context.Context, tx *sql.Tx, d dialect, t tableDef[R], records []R) error {
	if len(records) == 0 {
		return nil
	}
	placeholders := make([]string, len(t.columns))
	for i := range placeholders {
		placeholders[i] = d.placeholder(i + 1)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+t.name+" ("+strings.Join(t.columns, ", ")+") VALUES ("+
		strings.Join(placeholders, ", ")+") ON CONFLICT (id) DO NOTHING")
	if err != nil {
		return fmt.Errorf("preparing %s insert: %w", t.name, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, t.values(r)...); err != nil {
			return fmt.Errorf("inserting into %s: %w", t.name, err)
		}
	}
	return nil
}

// SeedIfEmpty loads ds only when the employees table has no rows.
func (s *SQL) SeedIfEmpty(ctx context.Context, ds *Dataset) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM employees").Scan(&n); err != nil {
		return false, fmt.Errorf("counting employees: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	return true, s.Load(ctx, ds)
}

func (s *SQL) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
