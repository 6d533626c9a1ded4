package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/conduit/pkg/registry"
	"mercator-hq/conduit/pkg/routing"
	"mercator-hq/conduit/pkg/usage"
	"mercator-hq/conduit/pkg/usage/storage"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// SelectRequest is the body of POST /v1/select.
type SelectRequest struct {
	ContentType     string                `json:"contentType"`
	EstimatedTokens int                   `json:"estimatedTokens"`
	Requirements    *routing.Requirements `json:"requirements,omitempty"`
}

// StrategyRequest is the body of PUT /v1/strategy.
type StrategyRequest struct {
	Strategy routing.Strategy `json:"strategy"`
}

// StrategyResponse is returned by the strategy endpoints.
type StrategyResponse struct {
	Strategy routing.Strategy `json:"strategy"`
}

// API serves the routing engine's operations.
type API struct {
	engine *routing.Engine
	store  storage.Backend
	logger *slog.Logger
}

// NewAPI creates the API handlers. store may be nil, in which case
// GET /v1/usage serves the engine's in-memory usage log.
func NewAPI(engine *routing.Engine, store storage.Backend, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{engine: engine, store: store, logger: logger}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/select", a.handleSelect)
	mux.HandleFunc("POST /v1/results", a.handleResults)

	mux.HandleFunc("GET /v1/health", a.handleAllHealth)
	mux.HandleFunc("GET /v1/health/{id}", a.handleHealth)
	mux.HandleFunc("GET /v1/circuit-breakers/{id}", a.handleCircuitBreaker)
	mux.HandleFunc("POST /v1/circuit-breakers/{id}/reset", a.handleResetCircuitBreaker)

	mux.HandleFunc("GET /v1/providers", a.handleProviders)
	mux.HandleFunc("GET /v1/providers/{id}", a.handleProvider)
	mux.HandleFunc("PATCH /v1/providers/{id}", a.handleUpdateProvider)

	mux.HandleFunc("GET /v1/performance", a.handleAllPerformance)
	mux.HandleFunc("GET /v1/performance/{id}", a.handlePerformance)

	mux.HandleFunc("GET /v1/rate-limits", a.handleAllRateLimits)
	mux.HandleFunc("GET /v1/rate-limits/{id}", a.handleRateLimit)
	mux.HandleFunc("POST /v1/rate-limits/reset", a.handleResetRateLimits)

	mux.HandleFunc("GET /v1/cost-optimization", a.handleCostOptimization)
	mux.HandleFunc("GET /v1/analytics", a.handleAnalytics)
	mux.HandleFunc("GET /v1/usage", a.handleUsage)
	mux.HandleFunc("GET /v1/stats", a.handleStats)

	mux.HandleFunc("GET /v1/strategy", a.handleGetStrategy)
	mux.HandleFunc("PUT /v1/strategy", a.handleSetStrategy)
}

// ============================================================================
// Selection
// ============================================================================

func (a *API) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ContentType == "" {
		writeErrorResponse(w, http.StatusBadRequest, errorTypeInvalidRequest, "contentType is required")
		return
	}

	decision, err := a.engine.SelectContext(r.Context(), req.ContentType, req.EstimatedTokens, req.Requirements)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (a *API) handleResults(w http.ResponseWriter, r *http.Request) {
	var outcome routing.Outcome
	if !decode(w, r, &outcome) {
		return
	}
	if err := a.engine.RecordRequestResultContext(r.Context(), outcome); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Health and circuit breakers
// ============================================================================

func (a *API) handleAllHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.GetAllHealth())
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h, ok := a.engine.GetHealth(id)
	writeFound(w, id, h, ok)
}

func (a *API) handleCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b, ok := a.engine.GetCircuitBreaker(id)
	writeFound(w, id, b, ok)
}

func (a *API) handleResetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.engine.ResetCircuitBreaker(id) {
		writeError(w, notFound(id))
		return
	}
	a.logger.InfoContext(r.Context(), "circuit breaker reset", "provider_id", id)

	b, _ := a.engine.GetCircuitBreaker(id)
	writeJSON(w, http.StatusOK, b)
}

// ============================================================================
// Providers
// ============================================================================

func (a *API) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Providers())
}

func (a *API) handleProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := a.engine.GetProvider(id)
	writeFound(w, id, p, ok)
}

func (a *API) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	var patch registry.Patch
	if !decode(w, r, &patch) {
		return
	}
	p, err := a.engine.UpdateProviderConfig(r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ============================================================================
// Performance and rate limits
// ============================================================================

func (a *API) handleAllPerformance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.GetAllPerformance())
}

func (a *API) handlePerformance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := a.engine.GetPerformance(id)
	writeFound(w, id, rec, ok)
}

func (a *API) handleAllRateLimits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.GetAllRateLimits())
}

func (a *API) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	win, ok := a.engine.GetRateLimit(id)
	writeFound(w, id, win, ok)
}

func (a *API) handleResetRateLimits(w http.ResponseWriter, r *http.Request) {
	a.engine.ResetRateLimits()
	a.logger.InfoContext(r.Context(), "rate limits reset")
	writeJSON(w, http.StatusOK, a.engine.GetAllRateLimits())
}

// ============================================================================
// Analytics
// ============================================================================

func (a *API) handleCostOptimization(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.GetCostOptimization())
}

func (a *API) handleAnalytics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.GetUsageAnalytics())
}

func (a *API) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Stats())
}

// handleUsage lists usage events, oldest first. Query parameters: provider,
// contentType, since and until (RFC 3339), limit.
func (a *API) handleUsage(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if a.store == nil {
		writeJSON(w, http.StatusOK, filterEvents(a.engine.UsageEvents(), filter))
		return
	}

	events, err := a.store.List(r.Context(), filter)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "failed to list usage events", "error", err)
		writeError(w, err)
		return
	}
	if events == nil {
		events = []usage.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ============================================================================
// Strategy
// ============================================================================

func (a *API) handleGetStrategy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StrategyResponse{Strategy: a.engine.GetOptimizationStrategy()})
}

func (a *API) handleSetStrategy(w http.ResponseWriter, r *http.Request) {
	var req StrategyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.SetOptimizationStrategy(req.Strategy); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StrategyResponse{Strategy: a.engine.GetOptimizationStrategy()})
}

// ============================================================================
// Helpers
// ============================================================================

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, errorTypeInvalidRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeFound(w http.ResponseWriter, id string, v any, ok bool) {
	if !ok {
		writeError(w, notFound(id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", routing.ErrNotFound, id)
}

func parseFilter(r *http.Request) (storage.Filter, error) {
	q := r.URL.Query()
	f := storage.Filter{
		ProviderID:  q.Get("provider"),
		ContentType: q.Get("contentType"),
	}

	var err error
	if v := q.Get("since"); v != "" {
		if f.Since, err = time.Parse(time.RFC3339, v); err != nil {
			return f, fmt.Errorf("%w: since: %v", routing.ErrInvalidRequest, err)
		}
	}
	if v := q.Get("until"); v != "" {
		if f.Until, err = time.Parse(time.RFC3339, v); err != nil {
			return f, fmt.Errorf("%w: until: %v", routing.ErrInvalidRequest, err)
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			return f, fmt.Errorf("%w: limit must be a non-negative integer", routing.ErrInvalidRequest)
		}
	}
	return f, nil
}

// filterEvents applies f to the in-memory log the way the storage backends
// do: oldest first, truncated to Limit.
func filterEvents(events []usage.Event, f storage.Filter) []usage.Event {
	out := make([]usage.Event, 0, len(events))
	for _, ev := range events {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
