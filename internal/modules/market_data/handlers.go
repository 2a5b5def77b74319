package market_data

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// defaultHistoryLimit is the number of sessions returned when the history
// endpoint is called without a limit.
const defaultHistoryLimit = 252

// symbolValidator is the slice of the Yahoo client the handlers need.
type symbolValidator interface {
	Validate(symbols []string) (valid []string, invalid []string)
}

// Handler handles market data HTTP requests.
type Handler struct {
	validator symbolValidator
	repo      *PriceRepository
	log       zerolog.Logger
}

// NewHandler creates a new market data handler.
func NewHandler(validator symbolValidator, repo *PriceRepository, log zerolog.Logger) *Handler {
	return &Handler{
		validator: validator,
		repo:      repo,
		log:       log.With().Str("handler", "market_data").Logger(),
	}
}

// RegisterRoutes registers market data routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/market/validate", h.HandleValidate)
	r.Get("/api/market/history/{symbol}", h.HandleHistory)
}

type validateRequest struct {
	Tickers []string `json:"tickers"`
}

// HandleValidate checks which tickers Yahoo Finance recognizes.
// POST /api/market/validate
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Tickers) == 0 {
		h.writeError(w, http.StatusBadRequest, "No tickers provided")
		return
	}

	valid, invalid := h.validator.Validate(req.Tickers)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":   valid,
		"invalid": invalid,
	})
}

// HandleHistory returns stored daily candles for a symbol, most recent
// sessions first capped by ?limit= (default 252), in ascending date order.
// GET /api/market/history/{symbol}?limit=
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		h.writeError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	prices, err := h.repo.GetDailyPrices(symbol, limit)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch price history")
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch price history")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"prices": prices,
		"count":  len(prices),
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
