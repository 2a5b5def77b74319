package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/modules/market_data"
)

type stubOptimizer struct {
	resp *Response
	err  error
	got  *Request
}

func (s *stubOptimizer) Optimize(ctx context.Context, req Request) (*Response, error) {
	s.got = &req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubRunLister struct {
	runs     []Run
	err      error
	gotLimit int
}

func (s *stubRunLister) Recent(limit int) ([]Run, error) {
	s.gotLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.runs, nil
}

func setupOptimizationHandler(service optimizer, runs runLister) *chi.Mux {
	h := NewHandler(service, runs, zerolog.Nop())
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func TestHandleOptimize_ReturnsResponse(t *testing.T) {
	svc := &stubOptimizer{resp: &Response{
		RunID:           "7f9c0e7e-0000-0000-0000-000000000000",
		Tickers:         []string{"AAPL", "MSFT"},
		SelectedTickers: []string{"AAPL"},
		Backend:         BackendInfo{Name: "local-sampler", UsedSimulatorFallback: true},
	}}
	router := setupOptimizationHandler(svc, &stubRunLister{})

	body := `{"tickers":[" aapl","msft","AAPL"],"risk_tolerance":0.5}`
	req := httptest.NewRequest("POST", "/api/optimization/run", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "7f9c0e7e-0000-0000-0000-000000000000", response["run_id"])

	// The handler normalizes before dispatching.
	require.NotNil(t, svc.got)
	assert.Equal(t, []string{"AAPL", "MSFT"}, svc.got.Tickers)
	assert.Equal(t, 0.5, svc.got.RiskTolerance)
}

func TestHandleOptimize_RejectsMalformedBody(t *testing.T) {
	svc := &stubOptimizer{}
	router := setupOptimizationHandler(svc, &stubRunLister{})

	req := httptest.NewRequest("POST", "/api/optimization/run", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.got, "service should not be called")
}

func TestHandleOptimize_RejectsTooFewTickers(t *testing.T) {
	svc := &stubOptimizer{}
	router := setupOptimizationHandler(svc, &stubRunLister{})

	body := `{"tickers":["AAPL","aapl"," "],"risk_tolerance":0.5}`
	req := httptest.NewRequest("POST", "/api/optimization/run", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "at least 2 valid tickers")
	assert.Nil(t, svc.got, "service should not be called")
}

func TestHandleOptimize_MapsUnusableDataTo422(t *testing.T) {
	svc := &stubOptimizer{
		err: fmt.Errorf("failed to prepare market data: %w: invalid or unavailable tickers: FAKE", market_data.ErrUnusableData),
	}
	router := setupOptimizationHandler(svc, &stubRunLister{})

	body := `{"tickers":["FAKE","MSFT"],"risk_tolerance":0.5}`
	req := httptest.NewRequest("POST", "/api/optimization/run", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "FAKE")
}

func TestHandleOptimize_MapsInternalFailuresTo500(t *testing.T) {
	svc := &stubOptimizer{err: errors.New("quantum optimization failed: device went away")}
	router := setupOptimizationHandler(svc, &stubRunLister{})

	body := `{"tickers":["AAPL","MSFT"],"risk_tolerance":0.5}`
	req := httptest.NewRequest("POST", "/api/optimization/run", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleRecentRuns_ListsRuns(t *testing.T) {
	lister := &stubRunLister{runs: []Run{
		{ID: "run-new", CreatedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)},
		{ID: "run-old", CreatedAt: time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)},
	}}
	router := setupOptimizationHandler(&stubOptimizer{}, lister)

	req := httptest.NewRequest("GET", "/api/optimization/runs", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultRunsLimit, lister.gotLimit)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, float64(2), response["count"])

	runs, ok := response["runs"].([]interface{})
	require.True(t, ok)
	require.Len(t, runs, 2)
	first, ok := runs[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "run-new", first["id"])
}

func TestHandleRecentRuns_HonorsLimitParam(t *testing.T) {
	lister := &stubRunLister{}
	router := setupOptimizationHandler(&stubOptimizer{}, lister)

	req := httptest.NewRequest("GET", "/api/optimization/runs?limit=3", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, lister.gotLimit)
}

func TestHandleRecentRuns_RejectsBadLimit(t *testing.T) {
	router := setupOptimizationHandler(&stubOptimizer{}, &stubRunLister{})

	for _, limit := range []string{"abc", "0", "-1"} {
		req := httptest.NewRequest("GET", "/api/optimization/runs?limit="+limit, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestHandleRecentRuns_MapsStoreFailureTo500(t *testing.T) {
	router := setupOptimizationHandler(&stubOptimizer{}, &stubRunLister{err: errors.New("db closed")})

	req := httptest.NewRequest("GET", "/api/optimization/runs", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
