package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/modules/market_data"
)

// defaultRunsLimit is the number of records the runs listing returns when
// called without a limit.
const defaultRunsLimit = 20

// optimizer is the slice of the service the handlers need.
type optimizer interface {
	Optimize(ctx context.Context, req Request) (*Response, error)
}

// runLister is the slice of the run repository the handlers need.
type runLister interface {
	Recent(limit int) ([]Run, error)
}

// Handler handles optimization HTTP requests.
type Handler struct {
	service optimizer
	runs    runLister
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler.
func NewHandler(service optimizer, runs runLister, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		runs:    runs,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

// RegisterRoutes registers optimization routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/optimization/run", h.HandleOptimize)
	r.Get("/api/optimization/runs", h.HandleRecentRuns)
}

// HandleOptimize executes the full hybrid optimization pipeline.
// POST /api/optimization/run
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Optimize(r.Context(), req)
	if err != nil {
		if errors.Is(err, market_data.ErrUnusableData) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error().Err(err).Strs("tickers", req.Tickers).Msg("Optimization failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleRecentRuns lists persisted runs, newest first, capped by ?limit=
// (default 20).
// GET /api/optimization/runs?limit=
func (h *Handler) HandleRecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := h.runs.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list optimization runs")
		h.writeError(w, http.StatusInternalServerError, "Failed to list optimization runs")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
