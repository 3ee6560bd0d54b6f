package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
	"github.com/shubhsaxena/directory-assistant/internal/resilience"
	"github.com/shubhsaxena/directory-assistant/internal/store"
)

// maxHits bounds a single lookup; the directory is small enough that a
// lookup never pages.
const maxHits = 10000

// Client is a store.Directory over one index per record kind.
type Client struct {
	es       *elasticsearch.Client
	cb       *gobreaker.CircuitBreaker
	cfg      config.ElasticsearchConfig
	retryCfg resilience.RetryConfig
	logger   *zap.Logger
}

func NewClient(cfg config.ElasticsearchConfig, searchCfg config.SearchConfig, logger *zap.Logger) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	res, err := es.Ping()
	if err != nil {
		return nil, fmt.Errorf("pinging elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned status: %s", res.Status())
	}

	cb := resilience.NewCircuitBreaker("elasticsearch-directory", searchCfg.CircuitBreaker, logger)

	logger.Info("elasticsearch client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		es:       es,
		cb:       cb,
		cfg:      cfg,
		retryCfg: resilience.RetryConfigFrom(searchCfg.Retry),
		logger:   logger,
	}, nil
}

func (c *Client) IndexName(kind models.RecordKind) string {
	return c.cfg.IndexPrefix + "-" + strings.ReplaceAll(string(kind), "_", "-")
}

func (c *Client) FindEmployees(ctx context.Context, p models.Predicate) ([]models.Employee, error) {
	return find(ctx, c, models.KindEmployee, models.EmployeeFields, p)
}

func (c *Client) FindEvents(ctx context.Context, p models.Predicate) ([]models.Event, error) {
	return find(ctx, c, models.KindEvent, models.EventFields, p)
}

func (c *Client) FindTasks(ctx context.Context, p models.Predicate) ([]models.Task, error) {
	return find(ctx, c, models.KindTask, models.TaskFields, p)
}

func (c *Client) FindActivities(ctx context.Context, p models.Predicate) ([]models.Activity, error) {
	return find(ctx, c, models.KindActivity, models.ActivityFields, p)
}

func (c *Client) FindGeneralInfo(ctx context.Context, p models.Predicate) ([]models.GeneralInfo, error) {
	return find(ctx, c, models.KindGeneralInfo, models.GeneralInfoFields, p)
}

func find[R any](ctx context.Context, c *Client, kind models.RecordKind, table models.FieldTable[R], p models.Predicate) (out []R, err error) {
	index := c.IndexName(kind)
	ctx, span := observability.StartSpan(ctx, "es.search",
		attribute.String("es.index", index),
	)
	defer span.End()

	start := time.Now()
	defer func() { store.Observe("elasticsearch", kind, start, err) }()

	if err := store.Validate(table, p); err != nil {
		return nil, err
	}

	hits, err := resilience.Call(c.cb, func() ([]json.RawMessage, error) {
		var records []json.RawMessage
		retryErr := resilience.Retry(ctx, c.retryCfg, func() error {
			var execErr error
			records, execErr = c.executeSearch(ctx, index, BuildQuery(p))
			return execErr
		})
		return records, retryErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: es search (index=%s): %w", store.ErrUnavailable, index, err)
	}

	out = make([]R, 0, len(hits))
	for _, raw := range hits {
		var r R
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decoding %s record: %w", kind, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// executeSearch returns the stored record of every hit.
func (c *Client) executeSearch(ctx context.Context, index string, query map[string]any) ([]json.RawMessage, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshaling es query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTimeout(c.cfg.RequestTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("executing es search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		err := fmt.Errorf("es search error status=%s body=%s", res.Status(), string(bodyBytes))
		if res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
			// A rejected query fails the same way on every attempt.
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decoding es response: %w", err)
	}
	if esResp.TimedOut {
		return nil, fmt.Errorf("es search timed out after %dms", esResp.Took)
	}

	out := make([]json.RawMessage, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		out = append(out, h.Source.Record)
	}
	return out, nil
}

// BuildQuery translates p into a bool query. Each predicate group becomes a
// filter of should clauses; text fields are indexed lower-cased under
// "fields", time fields as unix seconds with 0 for unset.
func BuildQuery(p models.Predicate) map[string]any {
	filters := make([]any, 0, len(p.Groups))
	for _, group := range p.Groups {
		should := make([]any, 0, len(group))
		for _, c := range group {
			should = append(should, clauseQuery(c))
		}
		filters = append(filters, map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
			},
		})
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(filters) > 0 {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}
	return map[string]any{
		"query": query,
		"size":  maxHits,
		"sort":  []any{map[string]any{"id": "asc"}},
	}
}

func clauseQuery(c models.Clause) map[string]any {
	field := "fields." + c.Field
	value := strings.ToLower(c.Value)
	switch c.Op {
	case models.OpEquals:
		return map[string]any{"term": map[string]any{field: value}}
	case models.OpNotEquals:
		return map[string]any{"bool": map[string]any{
			"must_not": []any{map[string]any{"term": map[string]any{field: value}}},
		}}
	case models.OpContains:
		return map[string]any{"wildcard": map[string]any{field: map[string]any{
			"value": "*" + escapeWildcard(value) + "*",
		}}}
	case models.OpAfter:
		return setRange(field, "gte", c.Time.Unix())
	default:
		return setRange(field, "lt", c.Time.Unix())
	}
}

// setRange matches records whose time field is set and within bound.
func setRange(field, op string, bound int64) map[string]any {
	return map[string]any{"bool": map[string]any{
		"filter":   []any{map[string]any{"range": map[string]any{field: map[string]any{op: bound}}}},
		"must_not": []any{map[string]any{"term": map[string]any{field: 0}}},
	}}
}

func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}

// IndexAction is one line pair of a bulk request.
type IndexAction struct {
	Action string
	Index  string
	ID     string
	Body   any
}

// Document is the indexed form of a record: lower-cased text fields and
// unix-second time fields for querying, plus the record itself for decoding.
func Document[R any](id int64, r R, table models.FieldTable[R]) map[string]any {
	fields := make(map[string]any, len(table.Text)+len(table.Time))
	for name, get := range table.Text {
		fields[name] = strings.ToLower(get(r))
	}
	for name, get := range table.Time {
		var v int64
		if t := get(r); !t.IsZero() {
			v = t.Unix()
		}
		fields[name] = v
	}
	return map[string]any{
		"id":     id,
		"fields": fields,
		"record": r,
	}
}

// Actions builds index actions for every record of ds.
func (c *Client) Actions(ds *store.Dataset) []IndexAction {
	actions := make([]IndexAction, 0, ds.Len())
	add := func(kind models.RecordKind, id int64, body any) {
		actions = append(actions, IndexAction{
			Action: "index",
			Index:  c.IndexName(kind),
			ID:     strconv.FormatInt(id, 10),
			Body:   body,
		})
	}
	for _, e := range ds.Employees {
		add(models.KindEmployee, e.ID, Document(e.ID, e, models.EmployeeFields))
	}
	for _, e := range ds.Events {
		add(models.KindEvent, e.ID, Document(e.ID, e, models.EventFields))
	}
	for _, t := range ds.Tasks {
		add(models.KindTask, t.ID, Document(t.ID, t, models.TaskFields))
	}
	for _, a := range ds.Activities {
		add(models.KindActivity, a.ID, Document(a.ID, a, models.ActivityFields))
	}
	for _, g := range ds.GeneralInfo {
		add(models.KindGeneralInfo, g.ID, Document(g.ID, g, models.GeneralInfoFields))
	}
	return actions
}

// EnsureIndices creates a missing index per record kind with keyword text
// fields and long time fields.
func (c *Client) EnsureIndices(ctx context.Context) error {
	tables := map[models.RecordKind]fieldNames{
		models.KindEmployee:    namesOf(models.EmployeeFields),
		models.KindEvent:       namesOf(models.EventFields),
		models.KindTask:        namesOf(models.TaskFields),
		models.KindActivity:    namesOf(models.ActivityFields),
		models.KindGeneralInfo: namesOf(models.GeneralInfoFields),
	}
	for _, kind := range models.AllRecordKinds {
		index := c.IndexName(kind)
		exists, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("checking index %s: %w", index, err)
		}
		exists.Body.Close()
		if exists.StatusCode == 200 {
			continue
		}

		body, err := json.Marshal(c.indexSettings(tables[kind]))
		if err != nil {
			return fmt.Errorf("marshaling index settings: %w", err)
		}
		res, err := c.es.Indices.Create(index,
			c.es.Indices.Create.WithContext(ctx),
			c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		)
		if err != nil {
			return fmt.Errorf("creating index %s: %w", index, err)
		}
		if res.IsError() {
			bodyBytes, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return fmt.Errorf("creating index %s: status=%s body=%s", index, res.Status(), string(bodyBytes))
		}
		res.Body.Close()
		c.logger.Info("elasticsearch index created", zap.String("index", index))
	}
	return nil
}

type fieldNames struct {
	text []string
	time []string
}

func namesOf[R any](table models.FieldTable[R]) fieldNames {
	var n fieldNames
	for name := range table.Text {
		n.text = append(n.text, name)
	}
	for name := range table.Time {
		n.time = append(n.time, name)
	}
	return n
}

func (c *Client) indexSettings(names fieldNames) map[string]any {
	props := make(map[string]any, len(names.text)+len(names.time))
	for _, name := range names.text {
		props[name] = map[string]any{"type": "keyword", "normalizer": "lower"}
	}
	for _, name := range names.time {
		props[name] = map[string]any{"type": "long"}
	}
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   c.cfg.NumShards,
			"number_of_replicas": c.cfg.NumReplicas,
			"refresh_interval":   c.cfg.RefreshInterval,
			"analysis": map[string]any{
				"normalizer": map[string]any{
					"lower": map[string]any{"type": "custom", "filter": []string{"lowercase"}},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":     map[string]any{"type": "long"},
				"fields": map[string]any{"properties": props},
				"record": map[string]any{"type": "object", "enabled": false},
			},
		},
	}
}

func (c *Client) BulkIndex(ctx context.Context, actions []IndexAction) error {
	if len(actions) == 0 {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "es.bulk_index",
		attribute.Int("batch_size", len(actions)),
	)
	defer span.End()

	var buf bytes.Buffer
	for _, action := range actions {
		meta := map[string]any{
			action.Action: map[string]any{
				"_index": action.Index,
				"_id":    action.ID,
			},
		}

		metaLine, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshaling bulk meta: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		if action.Action != "delete" && action.Body != nil {
			bodyLine, err := json.Marshal(action.Body)
			if err != nil {
				return fmt.Errorf("marshaling bulk body: %w", err)
			}
			buf.Write(bodyLine)
			buf.WriteByte('\n')
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("executing bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk request error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			for _, result := range item {
				if result.Error != nil {
					errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s", result.ID, result.Error.Reason))
				}
			}
		}
		return fmt.Errorf("bulk indexing had errors: %s", strings.Join(errMsgs, "; "))
	}

	return nil
}

// HealthCheck returns the cluster color and mirrors it into the health gauge.
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return "red", fmt.Errorf("es health check: %w", err)
	}
	defer res.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return "red", fmt.Errorf("decoding health response: %w", err)
	}
	for _, color := range []string{"green", "yellow", "red"} {
		v := 0.0
		if color == health.Status {
			v = 1
		}
		observability.ESClusterHealth.WithLabelValues(color).Set(v)
	}
	return health.Status, nil
}

// ES response types

type esSearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

type esHit struct {
	ID     string `json:"_id"`
	Source struct {
		Record json.RawMessage `json:"record"`
	} `json:"_source"`
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}
