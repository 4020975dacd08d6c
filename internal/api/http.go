package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/kalambet/reviewlens/internal/analysis"
	"github.com/kalambet/reviewlens/internal/classifier"
	"github.com/kalambet/reviewlens/internal/metrics"
	"github.com/kalambet/reviewlens/internal/reviews"
	"github.com/kalambet/reviewlens/internal/storage"
)

const maxRequestBodySize = 1 << 16 // 64KB

const (
	defaultFeedbackLimit = 20
	maxFeedbackLimit     = 500
)

// Analyzer is the analysis pipeline as seen by the front ends.
type Analyzer interface {
	Analyze(ctx context.Context, asin string) (*analysis.Result, error)
	Menu() []reviews.MenuEntry
	Product(asin string) (reviews.Product, bool)
}

// FeedbackStore persists human-in-the-loop verdicts on analyses.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, f storage.Feedback) error
	ListFeedback(ctx context.Context, limit int) ([]storage.Feedback, error)
}

// ReloadFunc rebuilds the review store and reports the new one.
type ReloadFunc func(ctx context.Context) (*reviews.Store, error)

type Deps struct {
	Analyzer    Analyzer
	Feedback    FeedbackStore
	Reload      ReloadFunc // optional; admin routes are mounted only with AdminToken
	AdminToken  string
	CORSOrigins []string
	Logger      *slog.Logger
}

// FeedbackRequest is the body of POST /analyze/{asin}/feedback.
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// FeedbackEntry is one feedback record as returned by the API.
type FeedbackEntry struct {
	ID        string    `json:"id"`
	ASIN      string    `json:"asin"`
	Feedback  string    `json:"feedback"`
	CreatedAt time.Time `json:"created_at"`
}

// ReloadResponse describes the store installed by POST /admin/reload.
type ReloadResponse struct {
	Generation uint64 `json:"generation"`
	Products   int    `json:"products"`
	Reviews    int    `json:"reviews"`
}

// NewHandler returns the HTTP API: the product menu, per-product analysis,
// feedback capture and Prometheus metrics.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", handleHealth)
	r.Get("/products", handleProducts(deps))
	r.Get("/analyze/{asin}", handleAnalyze(deps))
	r.Post("/analyze/{asin}/feedback", handlePostFeedback(deps))
	r.Get("/feedback", handleListFeedback(deps))
	r.Handle("/metrics", metrics.Handler())

	if deps.AdminToken != "" && deps.Reload != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin(deps.AdminToken, deps.Logger))
			r.Post("/reload", handleReload(deps))
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleProducts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Analyzer.Menu())
	}
}

func handleAnalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asin := strings.TrimSpace(chi.URLParam(r, "asin"))
		if asin == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "asin is required")
			return
		}

		res, err := deps.Analyzer.Analyze(r.Context(), asin)
		if err != nil {
			analysisError(w, asin, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func analysisError(w http.ResponseWriter, asin string, err error) {
	switch {
	case errors.Is(err, analysis.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "no reviews found for %s", asin)
	case errors.Is(err, classifier.ErrUnavailable):
		httpError(w, http.StatusBadGateway, "classifier_error", "%v", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		httpError(w, http.StatusServiceUnavailable, "timeout_error", "analysis of %s did not finish: %v", asin, err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "analysis of %s failed: %v", asin, err)
	}
}

func handlePostFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		asin := strings.TrimSpace(chi.URLParam(r, "asin"))
		var req FeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		entry, err := recordFeedback(r.Context(), deps, asin, req.Feedback)
		if err != nil {
			var ve validationError
			switch {
			case errors.As(err, &ve):
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			case errors.Is(err, analysis.ErrNotFound):
				httpError(w, http.StatusNotFound, "not_found_error", "unknown product %s", asin)
			default:
				httpError(w, http.StatusInternalServerError, "api_error", "saving feedback: %v", err)
			}
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}

type validationError string

func (e validationError) Error() string { return string(e) }

// recordFeedback validates and stores one verdict. Shared by HTTP and MCP.
func recordFeedback(ctx context.Context, deps Deps, asin, verdict string) (FeedbackEntry, error) {
	verdict = strings.ToUpper(strings.TrimSpace(verdict))
	if verdict != "POSITIVE" && verdict != "NEGATIVE" {
		return FeedbackEntry{}, validationError(fmt.Sprintf("feedback must be POSITIVE or NEGATIVE, got %q", verdict))
	}
	if asin == "" {
		return FeedbackEntry{}, validationError("asin is required")
	}
	if _, ok := deps.Analyzer.Product(asin); !ok {
		return FeedbackEntry{}, fmt.Errorf("%w: %s", analysis.ErrNotFound, asin)
	}

	f := storage.Feedback{
		ID:         uuid.New().String(),
		ParentASIN: asin,
		Feedback:   verdict,
		CreatedAt:  time.Now().UTC(),
	}
	if err := deps.Feedback.SaveFeedback(ctx, f); err != nil {
		return FeedbackEntry{}, err
	}
	metrics.FeedbackTotal.WithLabelValues(verdict).Inc()
	deps.Logger.Info("HITL feedback", "asin", asin, "feedback", verdict, "id", f.ID)
	return toEntry(f), nil
}

func handleListFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultFeedbackLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = min(n, maxFeedbackLimit)
		}

		items, err := deps.Feedback.ListFeedback(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing feedback: %v", err)
			return
		}
		out := make([]FeedbackEntry, len(items))
		for i, f := range items {
			out[i] = toEntry(f)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleReload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := deps.Reload(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reload failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, ReloadResponse{
			Generation: store.Generation(),
			Products:   store.ProductCount(),
			Reviews:    store.ReviewCount(),
		})
	}
}

func toEntry(f storage.Feedback) FeedbackEntry {
	return FeedbackEntry{ID: f.ID, ASIN: f.ParentASIN, Feedback: f.Feedback, CreatedAt: f.CreatedAt}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
