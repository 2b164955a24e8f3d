package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/quantfolio/riskapi/internal/dataload"
)

// SystemHandlers serves process and dataset status.
type SystemHandlers struct {
	log       zerolog.Logger
	data      *dataload.Provider
	store     *dataload.ReturnStore
	startTime time.Time
}

// NewSystemHandlers creates system status handlers.
func NewSystemHandlers(log zerolog.Logger, data *dataload.Provider, store *dataload.ReturnStore) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		data:      data,
		store:     store,
		startTime: time.Now(),
	}
}

// HandleSystemStatus handles GET /api/system/status.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuUsage, ramUsage := h.getSystemStats()

	dataset := map[string]interface{}{
		"loaded": false,
	}
	if ds := h.data.Current(); ds != nil {
		dataset = map[string]interface{}{
			"loaded":         true,
			"loaded_at":      ds.LoadedAt.Format(time.RFC3339),
			"assets":         len(ds.CMA),
			"return_assets":  len(ds.Returns.Assets),
			"return_periods": ds.Returns.NumPeriods(),
			"securities":     len(ds.Betas.Securities),
			"factors":        len(ds.FactorCov.Names),
		}
	}

	status := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"cpu_percent":    cpuUsage,
		"ram_percent":    ramUsage,
		"dataset":        dataset,
	}

	if h.store != nil {
		cacheOK := true
		if err := h.store.HealthCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Return cache health check failed")
			cacheOK = false
		}
		status["returns_cache"] = map[string]interface{}{
			"path":    h.store.Path(),
			"healthy": cacheOK,
		}
	}

	h.writeJSON(w, status)
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a 100ms sampling interval to avoid blocking the API call for too long.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
