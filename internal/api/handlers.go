package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/nlu"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	maxQuestionRunes   = 4096
	defaultStatsWindow = 24 * time.Hour
)

// Assistant answers and classifies questions.
type Assistant interface {
	Ask(ctx context.Context, req *models.AskRequest) (*models.AskResponse, error)
	Classify(ctx context.Context, text string) nlu.Resolution
}

// IntentStats reports how often each intent was asked.
type IntentStats interface {
	IntentBreakdown(ctx context.Context, since time.Time) ([]models.IntentCount, error)
}

type Handler struct {
	assistant Assistant
	stats     IntentStats
	logger    *zap.Logger
}

// NewHandler builds the API handler. stats may be nil when no analytics
// store is configured.
func NewHandler(assistant Assistant, stats IntentStats, logger *zap.Logger) *Handler {
	return &Handler{
		assistant: assistant,
		stats:     stats,
		logger:    logger,
	}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	req, err := h.parseAskRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Text == "" {
		h.writeError(w, http.StatusBadRequest, "missing_text", "Question text is required")
		return
	}
	if utf8.RuneCountInString(req.Text) > maxQuestionRunes {
		h.writeError(w, http.StatusBadRequest, "text_too_long", "Question text is too long")
		return
	}
	if requestID != "" {
		req.RequestID = requestID
	}

	resp, err := h.assistant.Ask(ctx, req)
	if err != nil {
		h.logger.Warn("ask failed",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			h.writeError(w, http.StatusGatewayTimeout, "timeout", "The question took too long to answer")
			return
		}
		h.writeError(w, http.StatusServiceUnavailable, "cancelled", "The question was cancelled")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type scoreView struct {
	Intent string  `json:"intent"`
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
}

type classifyResponse struct {
	Normalized  string           `json:"normalized"`
	Intent      string           `json:"intent"`
	Label       string           `json:"label"`
	Confidence  float64          `json:"confidence"`
	Source      string           `json:"source"`
	Entities    models.EntityBag `json:"entities"`
	RuleScores  []scoreView      `json:"rule_scores"`
	ModelScores []scoreView      `json:"model_scores,omitempty"`
	UsedModel   bool             `json:"used_model"`
	Errors      []string         `json:"errors,omitempty"`
}

// Classify shows how a question is understood without answering it.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}
	if utf8.RuneCountInString(text) > maxQuestionRunes {
		h.writeError(w, http.StatusBadRequest, "text_too_long", "Question text is too long")
		return
	}

	res := h.assistant.Classify(r.Context(), text)
	c := res.Classification
	out := classifyResponse{
		Normalized:  res.Normalized,
		Intent:      c.Intent.String(),
		Label:       c.Intent.Label(),
		Confidence:  c.Confidence,
		Source:      string(c.Source),
		Entities:    res.Entities,
		RuleScores:  scoreViews(res.RuleScores),
		ModelScores: scoreViews(res.ModelScores),
		UsedModel:   res.UsedModel,
	}
	for _, err := range res.Errors {
		out.Errors = append(out.Errors, err.Error())
	}

	h.writeJSON(w, http.StatusOK, out)
}

func scoreViews(scores []models.ScoredIntent) []scoreView {
	if len(scores) == 0 {
		return nil
	}
	out := make([]scoreView, 0, len(scores))
	for _, s := range scores {
		out = append(out, scoreView{Intent: s.Intent.String(), Label: s.Intent.Label(), Score: s.Score})
	}
	return out
}

// IntentStats returns question counts per intent over a window, e.g.
// ?since=72h.
func (h *Handler) IntentStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeError(w, http.StatusNotImplemented, "analytics_disabled", "Analytics store is not configured")
		return
	}

	window := defaultStatsWindow
	if s := r.URL.Query().Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_since", "Parameter 'since' must be a positive duration")
			return
		}
		window = d
	}
	since := time.Now().Add(-window)

	counts, err := h.stats.IntentBreakdown(r.Context(), since)
	if err != nil {
		h.logger.Error("intent breakdown failed", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "analytics_error", "Analytics temporarily unavailable")
		return
	}
	if counts == nil {
		counts = []models.IntentCount{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"since":   since.UTC().Format(time.RFC3339),
		"intents": counts,
	})
}

func (h *Handler) parseAskRequest(r *http.Request) (*models.AskRequest, error) {
	if r.Method == http.MethodPost {
		var req models.AskRequest
		limited := io.LimitReader(r.Body, maxRequestBodySize)
		if err := json.NewDecoder(limited).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	q := r.URL.Query()
	return &models.AskRequest{
		Text:   q.Get("q"),
		ChatID: q.Get("chat_id"),
		UserID: q.Get("user_id"),
	}, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
