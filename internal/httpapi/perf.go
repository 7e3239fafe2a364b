package httpapi

import "net/http"

// handlePerfLatency reports rolling per-stage turn latency percentiles so a
// developer can check budget compliance without scraping Prometheus.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"enabled": false,
			"detail":  "metrics are not configured",
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.TurnStages())
}

func (s *Server) handlePerfLatencyReset(w http.ResponseWriter, _ *http.Request) {
	if s.metrics != nil {
		s.metrics.ResetTurnStages()
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
