package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/nlu"
	"github.com/shubhsaxena/directory-assistant/internal/orchestrator"
	"github.com/shubhsaxena/directory-assistant/internal/store"
)

func newTestAssistant() *orchestrator.Orchestrator {
	resolver := nlu.NewResolver(
		nlu.NewNormalizer(nlu.DefaultNormalizerConfig()),
		nlu.DefaultLexicon(), nil, nlu.DefaultResolverConfig(), zap.NewNop(),
	)
	dir := store.NewMemory(store.SeedData(time.Now()))
	router := orchestrator.NewRouter(dir, resolver.Lexicon(), nil, orchestrator.RouterConfig{MaxResults: 5}, zap.NewNop())
	return orchestrator.New(resolver, router, nil, nil, zap.NewNop())
}

func newTestHandler() *Handler {
	return NewHandler(newTestAssistant(), nil, zap.NewNop())
}

type failingAssistant struct {
	err error
}

func (f failingAssistant) Ask(context.Context, *models.AskRequest) (*models.AskResponse, error) {
	return nil, f.err
}

func (f failingAssistant) Classify(context.Context, string) nlu.Resolution {
	return nlu.Resolution{}
}

type fakeStats struct {
	since  time.Time
	counts []models.IntentCount
	err    error
}

func (f *fakeStats) IntentBreakdown(_ context.Context, since time.Time) ([]models.IntentCount, error) {
	f.since = since
	return f.counts, f.err
}

func decodeAsk(t *testing.T, rr *httptest.ResponseRecorder) models.AskResponse {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.AskResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestAsk_POST(t *testing.T) {
	h := newTestHandler()

	body := `{"text":"Кто знает Python?","chat_id":"42"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	resp := decodeAsk(t, rr)
	if resp.Intent != models.IntentFindEmployee.String() {
		t.Errorf("expected find-employee, got %q", resp.Intent)
	}
	if !strings.Contains(resp.Reply, "Иван Иванов") {
		t.Errorf("expected Python developer in reply:\n%s", resp.Reply)
	}
	if resp.Metadata.ChatID != "42" || resp.Metadata.RequestID == "" {
		t.Errorf("unexpected metadata %+v", resp.Metadata)
	}
}

func TestAsk_GET(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ask?q=%D0%BF%D1%80%D0%B8%D0%B2%D0%B5%D1%82&chat_id=7", nil)
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	resp := decodeAsk(t, rr)
	if resp.Intent != models.IntentGreeting.String() {
		t.Errorf("expected greeting, got %q", resp.Intent)
	}
	if resp.Metadata.ChatID != "7" {
		t.Errorf("expected chat id 7, got %q", resp.Metadata.ChatID)
	}
}

func TestAsk_BadRequests(t *testing.T) {
	h := newTestHandler()

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode string
	}{
		{"GET without text", http.MethodGet, "/api/v1/ask", "", "missing_text"},
		{"POST empty text", http.MethodPost, "/api/v1/ask", `{"text":""}`, "missing_text"},
		{"POST invalid json", http.MethodPost, "/api/v1/ask", "not json", "invalid_request"},
		{"POST empty body", http.MethodPost, "/api/v1/ask", "", "invalid_request"},
		{"POST too long", http.MethodPost, "/api/v1/ask", `{"text":"` + strings.Repeat("я", maxQuestionRunes+1) + `"}`, "text_too_long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.Ask(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			var result map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if result["code"] != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, result["code"])
			}
		})
	}
}

func TestAsk_ContextErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		h := NewHandler(failingAssistant{err: tt.err}, nil, zap.NewNop())
		rr := httptest.NewRecorder()
		h.Ask(rr, httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"text":"привет"}`)))
		if rr.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, rr.Code)
		}
	}
}

func TestClassify(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/classify?q=%D0%BA%D1%82%D0%BE+%D0%B7%D0%BD%D0%B0%D0%B5%D1%82+python", nil)
	rr := httptest.NewRecorder()
	h.Classify(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out classifyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if out.Intent != models.IntentFindEmployee.String() || out.Label != models.IntentFindEmployee.Label() {
		t.Errorf("unexpected intent %q (%q)", out.Intent, out.Label)
	}
	if out.Normalized != "кто знает python" {
		t.Errorf("unexpected normalized text %q", out.Normalized)
	}
	if len(out.RuleScores) == 0 || out.UsedModel {
		t.Errorf("expected rule scores without the model, got %+v", out)
	}
	if got := out.Entities[models.EntitySkills]; len(got) != 1 || got[0] != "python" {
		t.Errorf("expected skills [python], got %v", got)
	}
}

func TestClassify_MissingQuery(t *testing.T) {
	h := newTestHandler()

	rr := httptest.NewRecorder()
	h.Classify(rr, httptest.NewRequest(http.MethodGet, "/api/v1/classify", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing query, got %d", rr.Code)
	}
}

func TestIntentStats(t *testing.T) {
	stats := &fakeStats{counts: []models.IntentCount{{Intent: "find-employee", Count: 3, AvgConfidence: 0.9}}}
	h := NewHandler(newTestAssistant(), stats, zap.NewNop())

	rr := httptest.NewRecorder()
	h.IntentStats(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stats/intents?since=1h", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if d := time.Since(stats.since); d < time.Hour || d > time.Hour+time.Minute {
		t.Errorf("expected a one hour window, got %v", d)
	}
	var out struct {
		Intents []models.IntentCount `json:"intents"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(out.Intents) != 1 || out.Intents[0].Count != 3 {
		t.Errorf("unexpected intents %+v", out.Intents)
	}
}

func TestIntentStats_Errors(t *testing.T) {
	tests := []struct {
		name   string
		stats  IntentStats
		target string
		want   int
	}{
		{"disabled", nil, "/api/v1/stats/intents", http.StatusNotImplemented},
		{"invalid since", &fakeStats{}, "/api/v1/stats/intents?since=yesterday", http.StatusBadRequest},
		{"negative since", &fakeStats{}, "/api/v1/stats/intents?since=-1h", http.StatusBadRequest},
		{"store error", &fakeStats{err: errors.New("clickhouse down")}, "/api/v1/stats/intents", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newTestAssistant(), tt.stats, zap.NewNop())
			rr := httptest.NewRecorder()
			h.IntentStats(rr, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestRouter_RequestIDReachesAnswer(t *testing.T) {
	srv := NewRouter(newTestHandler(), NewHealthHandler(zap.NewNop()), 10, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"text":"привет"}`))
	req.Header.Set("X-Request-ID", "req-99")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	resp := decodeAsk(t, rr)
	if resp.Metadata.RequestID != "req-99" {
		t.Errorf("expected request id req-99, got %q", resp.Metadata.RequestID)
	}
	if rr.Header().Get("X-Request-ID") != "req-99" {
		t.Error("expected request id echoed in header")
	}
}

func TestRouter_Probes(t *testing.T) {
	srv := NewRouter(newTestHandler(), NewHealthHandler(zap.NewNop()), 10, zap.NewNop())

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestWriteError(t *testing.T) {
	h := NewHandler(nil, nil, zap.NewNop())
	rr := httptest.NewRecorder()

	h.writeError(rr, http.StatusBadRequest, "missing_text", "Question text is required")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Error("expected application/json content type")
	}
	var result map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["error"] != "Question text is required" || result["code"] != "missing_text" {
		t.Errorf("unexpected error body %v", result)
	}
}
