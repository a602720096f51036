package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/s100fed/fedroute/internal/metrics"
	"github.com/s100fed/fedroute/pkg/version"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

func registerHealthRoutes(s *Server, r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  "ok",
		Version: version.GetVersion(),
		Commit:  version.GetCommit(),
	})
}

func registerMetricsRoutes(s *Server, r *mux.Router) {
	if s.registry == nil {
		return
	}
	r.Handle("/metrics", metrics.Handler(s.registry)).Methods(http.MethodGet)
}
