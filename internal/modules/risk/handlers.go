package risk

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler exposes the risk analyses over HTTP.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a risk handler.
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// RegisterRoutes mounts the risk endpoints under /risk.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Post("/contributions", h.HandleContributions)
		r.Post("/tracking-error", h.HandleTrackingError)
		r.Post("/pcte", h.HandlePCTE)
		r.Post("/factor-decomposition", h.HandleFactorDecomposition)
		r.Post("/full-decomposition", h.HandleFullDecomposition)
		r.Post("/diversification", h.HandleDiversification)
		r.Post("/performance", h.HandlePerformance)
		r.Post("/var-cvar", h.HandleVaRCVaR)
		r.Post("/segment-tracking-error", h.HandleSegmentTrackingError)
		r.Post("/full-analysis", h.HandleFullAnalysis)
	})
}

type contributionsRequest struct {
	Portfolio map[string]float64 `json:"portfolio"`
	UseEWMA   *bool              `json:"use_ewma"`
	EWMADecay float64            `json:"ewma_decay"`
}

// HandleContributions handles POST /api/risk/contributions.
func (h *Handler) HandleContributions(w http.ResponseWriter, r *http.Request) {
	var req contributionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 {
		h.writeError(w, http.StatusBadRequest, "No portfolio weights provided")
		return
	}

	result, err := h.service.Contributions(req.Portfolio, boolOr(req.UseEWMA, true), req.EWMADecay)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type trackingErrorRequest struct {
	Portfolio map[string]float64 `json:"portfolio"`
	Benchmark map[string]float64 `json:"benchmark"`
	UseEWMA   *bool              `json:"use_ewma"`
}

// HandleTrackingError handles POST /api/risk/tracking-error.
func (h *Handler) HandleTrackingError(w http.ResponseWriter, r *http.Request) {
	var req trackingErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 || len(req.Benchmark) == 0 {
		h.writeError(w, http.StatusBadRequest, "Both portfolio and benchmark weights are required")
		return
	}

	result, err := h.service.TrackingError(req.Portfolio, req.Benchmark, boolOr(req.UseEWMA, true))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

// HandlePCTE handles POST /api/risk/pcte.
func (h *Handler) HandlePCTE(w http.ResponseWriter, r *http.Request) {
	var req trackingErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 || len(req.Benchmark) == 0 {
		h.writeError(w, http.StatusBadRequest, "Both portfolio and benchmark weights are required")
		return
	}

	result, err := h.service.PCTE(req.Portfolio, req.Benchmark, boolOr(req.UseEWMA, true))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type portfolioRequest struct {
	Portfolio map[string]float64 `json:"portfolio"`
}

// HandleFactorDecomposition handles POST /api/risk/factor-decomposition.
func (h *Handler) HandleFactorDecomposition(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 {
		h.writeError(w, http.StatusBadRequest, "No portfolio weights provided")
		return
	}

	result, err := h.service.FactorDecomposition(req.Portfolio)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type fullDecompositionRequest struct {
	Portfolio map[string]float64 `json:"portfolio"`
	Benchmark map[string]float64 `json:"benchmark"`
}

// HandleFullDecomposition handles POST /api/risk/full-decomposition.
func (h *Handler) HandleFullDecomposition(w http.ResponseWriter, r *http.Request) {
	var req fullDecompositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 || len(req.Benchmark) == 0 {
		h.writeError(w, http.StatusBadRequest, "Both portfolio and benchmark weights are required")
		return
	}

	result, err := h.service.FullDecomposition(req.Portfolio, req.Benchmark)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type diversificationRequest struct {
	Portfolio map[string]float64 `json:"portfolio"`
	UseEWMA   *bool              `json:"use_ewma"`
}

// HandleDiversification handles POST /api/risk/diversification.
func (h *Handler) HandleDiversification(w http.ResponseWriter, r *http.Request) {
	var req diversificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 {
		h.writeError(w, http.StatusBadRequest, "No portfolio weights provided")
		return
	}

	result, err := h.service.Diversification(req.Portfolio, boolOr(req.UseEWMA, true))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type performanceRequest struct {
	Portfolio map[string]float64 `json:"portfolio"`
	Benchmark map[string]float64 `json:"benchmark"`
}

// HandlePerformance handles POST /api/risk/performance.
func (h *Handler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	var req performanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 {
		h.writeError(w, http.StatusBadRequest, "No portfolio weights provided")
		return
	}

	result, err := h.service.Performance(req.Portfolio, req.Benchmark)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type varRequest struct {
	Portfolio       map[string]float64 `json:"portfolio"`
	ConfidenceLevel float64            `json:"confidence_level"`
}

// HandleVaRCVaR handles POST /api/risk/var-cvar.
func (h *Handler) HandleVaRCVaR(w http.ResponseWriter, r *http.Request) {
	var req varRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 {
		h.writeError(w, http.StatusBadRequest, "No portfolio weights provided")
		return
	}
	if req.ConfidenceLevel == 0 {
		req.ConfidenceLevel = 0.95
	}
	if req.ConfidenceLevel <= 0 || req.ConfidenceLevel >= 1 {
		h.writeError(w, http.StatusBadRequest, "confidence_level must be in (0, 1)")
		return
	}

	result, err := h.service.VaRCVaR(req.Portfolio, req.ConfidenceLevel)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

type segmentTERequest struct {
	Portfolio           map[string]float64 `json:"portfolio"`
	GrowthBenchmark     string             `json:"growth_benchmark"`
	StabilityBenchmark  string             `json:"stability_benchmark"`
	GrowthAllocation    float64            `json:"growth_allocation"`
	StabilityAllocation float64            `json:"stability_allocation"`
	TierMapping         map[string]string  `json:"tier_mapping"`
}

// HandleSegmentTrackingError handles POST /api/risk/segment-tracking-error.
func (h *Handler) HandleSegmentTrackingError(w http.ResponseWriter, r *http.Request) {
	var req segmentTERequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 {
		h.writeError(w, http.StatusBadRequest, "No portfolio weights provided")
		return
	}

	result, err := h.service.SegmentTrackingError(req.Portfolio, SegmentOptions{
		TierMapping:         req.TierMapping,
		GrowthBenchmark:     req.GrowthBenchmark,
		StabilityBenchmark:  req.StabilityBenchmark,
		GrowthAllocation:    req.GrowthAllocation,
		StabilityAllocation: req.StabilityAllocation,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

// HandleFullAnalysis handles POST /api/risk/full-analysis.
func (h *Handler) HandleFullAnalysis(w http.ResponseWriter, r *http.Request) {
	var req contributionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Portfolio) == 0 {
		h.writeError(w, http.StatusBadRequest, "No portfolio weights provided")
		return
	}

	result, err := h.service.FullAnalysis(req.Portfolio, boolOr(req.UseEWMA, true), req.EWMADecay)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, result)
}

// writeServiceError maps sentinel errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoData):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrInvalidWeights), errors.Is(err, ErrNoOverlap), errors.Is(err, ErrInsufficientData):
		h.writeError(w, http.StatusBadRequest, err.Error())
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

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
