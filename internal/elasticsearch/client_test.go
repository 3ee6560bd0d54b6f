package elasticsearch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/store"
)

// fakeCluster answers the handful of endpoints the client uses.
type fakeCluster struct {
	mu        sync.Mutex
	searchErr bool
	hits      []any
	bodies    map[string]string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies[r.URL.Path] = string(body)
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/" && (r.Method == http.MethodHead || r.Method == http.MethodGet):
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			io.WriteString(w, `{"version":{"number":"8.13.0"},"tagline":"You Know, for Search"}`)
		}
	case strings.HasSuffix(r.URL.Path, "/_search"):
		if f.searchErr {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":"boom"}`)
			return
		}
		hits := make([]any, 0, len(f.hits))
		for _, rec := range f.hits {
			hits = append(hits, map[string]any{"_id": "1", "_source": map[string]any{"record": rec}})
		}
		json.NewEncoder(w).Encode(map[string]any{"took": 1, "timed_out": false, "hits": map[string]any{"hits": hits}})
	case r.URL.Path == "/_bulk":
		io.WriteString(w, `{"errors":false,"items":[]}`)
	case r.URL.Path == "/_cluster/health":
		io.WriteString(w, `{"status":"yellow"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{}`)
	}
}

func newTestClient(t *testing.T, f *fakeCluster) *Client {
	t.Helper()
	f.bodies = make(map[string]string)
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Elasticsearch.Addresses = []string{srv.URL}
	cfg.Search.Retry.MaxAttempts = 1
	c, err := NewClient(cfg.Elasticsearch, cfg.Search, zap.NewNop())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return c
}

func TestBuildQuery_Empty(t *testing.T) {
	q := BuildQuery(models.All())
	query, _ := q["query"].(map[string]any)
	if _, ok := query["match_all"]; !ok {
		t.Errorf("expected match_all for empty predicate, got %v", query)
	}
	if q["size"] != maxHits {
		t.Errorf("expected size %d, got %v", maxHits, q["size"])
	}
}

func TestBuildQuery_Groups(t *testing.T) {
	at := time.Unix(1700000000, 0)
	p := models.All().
		And(models.Contains(models.FieldPosition, "Dev*"), models.Equals(models.FieldDepartment, "IT")).
		And(models.Before(models.FieldBirthday, at))

	raw, err := json.Marshal(BuildQuery(p))
	if err != nil {
		t.Fatalf("marshaling query: %v", err)
	}
	got := string(raw)

	for _, want := range []string{
		`"minimum_should_match":1`,
		`"wildcard":{"fields.position":{"value":"*dev\\*`,
		`"term":{"fields.department":"it"}`,
		`"range":{"fields.birthday":{"lt":1700000000}}`,
		`"must_not":[{"term":{"fields.birthday":0}}]`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected query to contain %s\nquery: %s", want, got)
		}
	}
}

func TestDocument(t *testing.T) {
	e := models.Employee{ID: 7, Name: "Ольга", Position: "QA Engineer"}
	doc := Document(e.ID, e, models.EmployeeFields)

	fields := doc["fields"].(map[string]any)
	if fields[models.FieldPosition] != "qa engineer" {
		t.Errorf("expected lower-cased position, got %v", fields[models.FieldPosition])
	}
	if fields[models.FieldBirthday] != int64(0) {
		t.Errorf("expected unset birthday stored as 0, got %v", fields[models.FieldBirthday])
	}
	if doc["id"] != int64(7) {
		t.Errorf("expected id 7, got %v", doc["id"])
	}
}

func TestClient_FindEmployees(t *testing.T) {
	seed := store.SeedData(time.Now())
	f := &fakeCluster{hits: []any{seed.Employees[0], seed.Employees[2]}}
	c := newTestClient(t, f)

	got, err := c.FindEmployees(context.Background(), models.All().And(models.Contains(models.FieldSkills, "python")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Surname != "Иванов" || got[1].ID != 3 {
		t.Errorf("unexpected employees: %+v", got)
	}

	f.mu.Lock()
	body := f.bodies["/directory-employee/_search"]
	f.mu.Unlock()
	if !strings.Contains(body, "fields.skills") {
		t.Errorf("expected search body to filter on skills, got %s", body)
	}
}

func TestClient_SearchFailureIsUnavailable(t *testing.T) {
	c := newTestClient(t, &fakeCluster{searchErr: true})

	_, err := c.FindTasks(context.Background(), models.All())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_UnknownFieldNotSent(t *testing.T) {
	f := &fakeCluster{}
	c := newTestClient(t, f)

	_, err := c.FindEvents(context.Background(), models.All().And(models.Contains("budget", "1")))
	if !errors.Is(err, store.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, sent := f.bodies["/directory-event/_search"]; sent {
		t.Error("expected no search request for an invalid predicate")
	}
}

func TestClient_BulkIndex(t *testing.T) {
	f := &fakeCluster{}
	c := newTestClient(t, f)

	ds := store.SeedData(time.Now())
	actions := c.Actions(ds)
	if len(actions) != ds.Len() {
		t.Fatalf("expected %d actions, got %d", ds.Len(), len(actions))
	}
	if err := c.BulkIndex(context.Background(), actions); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.mu.Lock()
	body := f.bodies["/_bulk"]
	f.mu.Unlock()
	lines := 0
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		lines++
	}
	if lines != 2*len(actions) {
		t.Errorf("expected %d bulk lines, got %d", 2*len(actions), lines)
	}
	if !strings.Contains(body, `"_index":"directory-general-info"`) {
		t.Error("expected general info index name with dashes")
	}
}

func TestClient_BulkIndexEmpty(t *testing.T) {
	c := newTestClient(t, &fakeCluster{})
	if err := c.BulkIndex(context.Background(), nil); err != nil {
		t.Errorf("expected no error for empty batch, got %v", err)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	c := newTestClient(t, &fakeCluster{})
	status, err := c.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "yellow" {
		t.Errorf("expected yellow, got %s", status)
	}
}
