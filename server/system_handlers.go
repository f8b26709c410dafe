package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/swingsense/internal/metrics"
)

type healthResponse struct {
	Status         string `json:"status"`
	SessionChecked bool   `json:"session_checked"`
	SignedIn       bool   `json:"signed_in"`
}

// HealthHandler reports liveness and whether the initial session check ran
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := s.auth.State()
		resp := healthResponse{
			Status:         "ok",
			SessionChecked: !state.Loading,
			SignedIn:       state.Authenticated(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler(s.gatherer)
}
