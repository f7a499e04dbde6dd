package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes health, readiness, metrics and spatial lookup endpoints.
type Server struct {
	httpServer *http.Server
	locator    domain.Locator
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz and /metrics routes.
// When locator is non-nil it also serves GET /v1/resolve?lat=&lon=.
func NewServer(addr string, ready sharedobs.ReadinessChecker, locator domain.Locator, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		locator: locator,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if locator != nil {
		mux.HandleFunc("GET /v1/resolve", s.handleResolve)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type resolveResponse struct {
	Found          bool     `json:"found"`
	Country        string   `json:"country,omitempty"`
	Region         string   `json:"region,omitempty"`
	Timezone       string   `json:"timezone,omitempty"`
	NearestPlace   string   `json:"nearest_place,omitempty"`
	ResolutionUsed *int     `json:"resolution_used,omitempty"`
	Cells          []string `json:"cells,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon must be numbers"})
		return
	}
	if !domain.ValidCoordinate(lat, lon) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinate out of range"})
		return
	}

	loc, ok := s.locator.Resolve(lat, lon)
	if !ok {
		writeJSON(w, http.StatusNotFound, resolveResponse{Found: false})
		return
	}

	// Cell ids exceed 2^53; encode as strings so JSON clients keep precision.
	cells := make([]string, len(loc.Cells))
	for i, c := range loc.Cells {
		cells[i] = strconv.FormatUint(c, 10)
	}
	res := loc.ResolutionUsed
	writeJSON(w, http.StatusOK, resolveResponse{
		Found:          true,
		Country:        loc.Country,
		Region:         loc.Region,
		Timezone:       loc.Timezone,
		NearestPlace:   loc.NearestPlace,
		ResolutionUsed: &res,
		Cells:          cells,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort debug response
}
