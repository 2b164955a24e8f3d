package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "riskapi",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleAssets lists the analyzable assets, factors and covered date range.
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	info, err := s.riskService.Assets()
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
