package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexHealthChecker reports a search cluster status: green, yellow or red.
type IndexHealthChecker interface {
	HealthCheck(ctx context.Context) (string, error)
}

type registeredCheck struct {
	checker  HealthChecker
	critical bool
}

// HealthHandler serves liveness and readiness. A failing critical component
// (the directory store) makes the service unready. A failing optional one
// (cache, analytics, kafka) only marks it degraded, since questions are
// still answered without it.
type HealthHandler struct {
	checks     map[string]registeredCheck
	indexCheck IndexHealthChecker
	logger     *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks: make(map[string]registeredCheck),
		logger: logger,
	}
}

// Register adds a critical component.
func (h *HealthHandler) Register(name string, checker HealthChecker) {
	h.checks[name] = registeredCheck{checker: checker, critical: true}
}

func (h *HealthHandler) RegisterOptional(name string, checker HealthChecker) {
	h.checks[name] = registeredCheck{checker: checker}
}

// RegisterIndex adds the Elasticsearch directory index. Red is unready.
func (h *HealthHandler) RegisterIndex(checker IndexHealthChecker) {
	h.indexCheck = checker
}

type componentHealth struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := make(map[string]componentHealth)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, rc := range h.checks {
		wg.Add(1)
		go func(n string, rc registeredCheck) {
			defer wg.Done()
			start := time.Now()
			err := rc.checker.HealthCheck(ctx)
			ch := componentHealth{
				Status:   "healthy",
				Critical: rc.critical,
				Latency:  time.Since(start).String(),
			}
			if err != nil {
				ch.Status = "unhealthy"
				ch.Error = err.Error()
			}
			mu.Lock()
			results[n] = ch
			mu.Unlock()
		}(name, rc)
	}

	if h.indexCheck != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			status, err := h.indexCheck.HealthCheck(ctx)
			ch := componentHealth{
				Status:   status,
				Critical: true,
				Latency:  time.Since(start).String(),
			}
			if err != nil {
				ch.Error = err.Error()
				if ch.Status == "" {
					ch.Status = "unhealthy"
				}
			}
			mu.Lock()
			results["elasticsearch"] = ch
			mu.Unlock()
		}()
	}

	wg.Wait()

	overallStatus := http.StatusOK
	overall := "healthy"
	for name, ch := range results {
		if ch.Status != "unhealthy" && ch.Status != "red" {
			continue
		}
		if ch.Critical {
			overallStatus = http.StatusServiceUnavailable
			overall = "unavailable"
			break
		}
		h.logger.Warn("optional component unhealthy", zap.String("component", name), zap.String("error", ch.Error))
		overall = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(overallStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     overall,
		"components": results,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
