package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quantfolio/riskapi/internal/dataload"
)

// DataHandlers exposes the loaded input tables read-only, so clients can
// inspect exactly what the analyses run against.
type DataHandlers struct {
	log  zerolog.Logger
	data *dataload.Provider
}

// NewDataHandlers creates the data inspection handlers.
func NewDataHandlers(log zerolog.Logger, data *dataload.Provider) *DataHandlers {
	return &DataHandlers{
		log:  log.With().Str("handler", "data").Logger(),
		data: data,
	}
}

// RegisterRoutes mounts the data endpoints under /data.
func (h *DataHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/data", func(r chi.Router) {
		r.Get("/cma", h.HandleCMA)
		r.Get("/correlation", h.HandleCorrelation)
		r.Get("/betas", h.HandleBetas)
		r.Get("/factor-covariance", h.HandleFactorCovariance)
	})
}

func (h *DataHandlers) dataset(w http.ResponseWriter) *dataload.Dataset {
	ds := h.data.Current()
	if ds == nil {
		h.writeError(w, http.StatusServiceUnavailable, "no dataset loaded")
		return nil
	}
	return ds
}

type cmaRow struct {
	AssetClass     string  `json:"asset_class"`
	ExpectedReturn float64 `json:"expected_return"`
	ExpectedRisk   float64 `json:"expected_risk"`
	CapMax         float64 `json:"cap_max"`
	Bucket         string  `json:"bucket"`
}

// HandleCMA handles GET /api/data/cma.
func (h *DataHandlers) HandleCMA(w http.ResponseWriter, r *http.Request) {
	ds := h.dataset(w)
	if ds == nil {
		return
	}

	rows := make([]cmaRow, len(ds.CMA))
	for i, a := range ds.CMA {
		rows[i] = cmaRow{
			AssetClass:     a.Name,
			ExpectedReturn: a.Return,
			ExpectedRisk:   a.Risk,
			CapMax:         a.CapMax,
			Bucket:         a.Bucket,
		}
	}
	h.writeData(w, map[string]interface{}{
		"assets": rows,
		"count":  len(rows),
	})
}

// HandleCorrelation handles GET /api/data/correlation.
func (h *DataHandlers) HandleCorrelation(w http.ResponseWriter, r *http.Request) {
	ds := h.dataset(w)
	if ds == nil {
		return
	}

	corr := ds.Correlation
	matrix := make(map[string]map[string]float64, len(corr.Names))
	for i, a := range corr.Names {
		row := make(map[string]float64, len(corr.Names))
		for j, b := range corr.Names {
			row[b] = corr.Vals[i][j]
		}
		matrix[a] = row
	}
	h.writeData(w, map[string]interface{}{
		"assets":      corr.Names,
		"correlation": matrix,
	})
}

// HandleBetas handles GET /api/data/betas.
func (h *DataHandlers) HandleBetas(w http.ResponseWriter, r *http.Request) {
	ds := h.dataset(w)
	if ds == nil {
		return
	}

	h.writeData(w, map[string]interface{}{
		"securities": ds.Betas.Securities,
		"factors":    ds.Betas.Factors,
		"betas":      ds.Betas.Vals,
	})
}

// HandleFactorCovariance handles GET /api/data/factor-covariance.
func (h *DataHandlers) HandleFactorCovariance(w http.ResponseWriter, r *http.Request) {
	ds := h.dataset(w)
	if ds == nil {
		return
	}

	fc := ds.FactorCov
	cov := make(map[string]map[string]float64, len(fc.Names))
	for i, a := range fc.Names {
		row := make(map[string]float64, len(fc.Names))
		for j, b := range fc.Names {
			row[b] = fc.Vals[i][j]
		}
		cov[a] = row
	}
	h.writeData(w, map[string]interface{}{
		"factors":    fc.Names,
		"covariance": cov,
	})
}

func (h *DataHandlers) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func (h *DataHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *DataHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
