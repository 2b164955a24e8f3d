package optimization

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfolio/riskapi/internal/domain"
)

// Handler exposes the optimizer over HTTP.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates an optimization handler.
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

// RegisterRoutes mounts the optimization endpoints under /optimization.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimization", func(r chi.Router) {
		r.Post("/frontier", h.HandleFrontier)
		r.Post("/benchmark", h.HandleBenchmark)
		r.Post("/inefficiencies", h.HandleInefficiencies)
		r.Post("/optimal-portfolio", h.HandleOptimalPortfolio)
		r.Get("/assets", h.HandleAssets)
	})
}

type frontierRequest struct {
	Mode         string   `json:"mode"`
	CapsTemplate string   `json:"caps_template"`
	CustomAssets []string `json:"custom_assets"`
	NPoints      int      `json:"n_points"`
}

// HandleFrontier handles POST /api/optimization/frontier.
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var req frontierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Frontier(Mode(req.Mode), CapsTemplate(req.CapsTemplate), req.CustomAssets, req.NPoints)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type benchmarkRequest struct {
	EquityType       string  `json:"equity_type"`
	FixedIncomeType  string  `json:"fixed_income_type"`
	EquityAllocation float64 `json:"equity_allocation"`
}

// HandleBenchmark handles POST /api/optimization/benchmark.
func (h *Handler) HandleBenchmark(w http.ResponseWriter, r *http.Request) {
	var req benchmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	opts := DefaultBenchmarkOptions()
	if req.EquityType != "" {
		opts.EquityType = req.EquityType
	}
	if req.FixedIncomeType != "" {
		opts.FixedIncomeType = req.FixedIncomeType
	}
	if req.EquityAllocation != 0 {
		opts.EquityAllocation = req.EquityAllocation
		opts.FixedIncomeAllocation = 1 - req.EquityAllocation
	}

	result, err := h.service.Benchmark(opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type inefficiencyRequest struct {
	Holdings             map[string]map[string]float64 `json:"holdings"`
	BenchmarkAllocations map[string]float64            `json:"benchmark_allocations"`
	Threshold            float64                       `json:"threshold"`
}

// HandleInefficiencies handles POST /api/optimization/inefficiencies.
func (h *Handler) HandleInefficiencies(w http.ResponseWriter, r *http.Request) {
	var req inefficiencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Holdings) == 0 {
		h.writeError(w, http.StatusBadRequest, "No holdings provided")
		return
	}

	// Deterministic order for the response payload.
	assets := make([]string, 0, len(req.Holdings))
	for asset := range req.Holdings {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	holdings := make([]domain.Holding, 0, len(assets))
	for _, asset := range assets {
		allocs := req.Holdings[asset]
		holdings = append(holdings, domain.Holding{
			Asset:    asset,
			Current:  allocs["current"],
			Proposed: allocs["proposed"],
		})
	}

	result, err := h.service.Inefficiencies(holdings, req.BenchmarkAllocations, req.Threshold)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type optimalPortfolioRequest struct {
	TargetReturn *float64 `json:"target_return"`
	TargetRisk   *float64 `json:"target_risk"`
	RiskFreeRate float64  `json:"risk_free_rate"`
	Mode         string   `json:"mode"`
	CapsTemplate string   `json:"caps_template"`
}

// HandleOptimalPortfolio handles POST /api/optimization/optimal-portfolio.
func (h *Handler) HandleOptimalPortfolio(w http.ResponseWriter, r *http.Request) {
	var req optimalPortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Optimal(Mode(req.Mode), CapsTemplate(req.CapsTemplate), req.TargetReturn, req.TargetRisk, req.RiskFreeRate)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

// HandleAssets handles GET /api/optimization/assets.
func (h *Handler) HandleAssets(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Assets()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

// writeServiceError maps sentinel errors to HTTP status codes. A frontier too
// small to optimize is a client problem, not a server one.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoData):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrEmptyFrontier):
		h.writeError(w, http.StatusBadRequest, "Could not compute frontier")
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"data":        data,
		"analysis_id": uuid.New().String(),
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
		"success": false,
		"error":   message,
	})
}
