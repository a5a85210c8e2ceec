// Package handler exposes the classification HTTP API: POST /is_duplicate
// and the health probes.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/newsroom-io/syndication-detector/internal/detector/shard"
	apperrors "github.com/newsroom-io/syndication-detector/pkg/errors"
	"github.com/newsroom-io/syndication-detector/pkg/health"
	"github.com/newsroom-io/syndication-detector/pkg/logger"
	"github.com/newsroom-io/syndication-detector/pkg/metrics"
)

// ClassifyRequest is the JSON body accepted by /is_duplicate. All four
// fields are required.
type ClassifyRequest struct {
	Content   string `json:"content"`
	Language  string `json:"language"`
	Domain    string `json:"domain"`
	ArticleID string `json:"article_id"`
}

// ClassifyResponse carries the classification. Status is null when the
// language has no usable shard yet; callers treat that as "not yet
// processable" and may retry.
type ClassifyResponse struct {
	Status *string `json:"status"`
}

// Handler serves the detector endpoints.
type Handler struct {
	shards  *shard.Manager
	checker *health.Checker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Handler. checker and m may be nil.
func New(shards *shard.Manager, checker *health.Checker, m *metrics.Metrics) *Handler {
	return &Handler{
		shards:  shards,
		checker: checker,
		metrics: m,
		logger:  slog.Default().With("component", "detector-handler"),
	}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /is_duplicate", h.IsDuplicate)
	if h.checker != nil {
		mux.HandleFunc("GET /health_check", h.checker.LiveHandler())
		mux.HandleFunc("GET /ready", h.checker.ReadyHandler())
	}
}

// IsDuplicate classifies one document. Input errors are rejected before any
// shard mutation; an unsupported or not-yet-recovered language yields a
// null status rather than an error.
func (h *Handler) IsDuplicate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, 0, "invalid JSON body"))
		return
	}
	if missing := firstMissingField(req); missing != "" {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, 0, "%s is required", missing))
		return
	}

	sh, ok := h.shards.Get(req.Language)
	if !ok {
		log.Info("no shard for language, returning indeterminate", "language", req.Language)
		if h.metrics != nil {
			h.metrics.ClassificationsTotal.WithLabelValues("indeterminate", req.Language).Inc()
		}
		h.writeJSON(w, http.StatusOK, ClassifyResponse{Status: nil})
		return
	}

	status := sh.Classify(req.Content, req.Domain, req.ArticleID)

	if h.metrics != nil {
		h.metrics.ClassificationLatency.WithLabelValues(req.Language).Observe(time.Since(start).Seconds())
	}
	log.Debug("document classified",
		"article_id", req.ArticleID,
		"domain", req.Domain,
		"language", req.Language,
		"status", string(status),
	)

	statusStr := string(status)
	h.writeJSON(w, http.StatusOK, ClassifyResponse{Status: &statusStr})
}

func firstMissingField(req ClassifyRequest) string {
	switch {
	case req.Content == "":
		return "content"
	case req.Language == "":
		return "language"
	case req.Domain == "":
		return "domain"
	case req.ArticleID == "":
		return "article_id"
	}
	return ""
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": message})
}
