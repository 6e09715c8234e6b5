// Package httpdebug is the node's optional debug HTTP surface: Prometheus
// exposition plus a /members JSON dump, mounted with the teacher's chi +
// promhttp wiring.
package httpdebug

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the debug endpoints. It is started only when a metrics
// address is configured, by flag or config file (§7's observability is
// entirely optional).
type Server struct {
	cache    *Cache
	registry *prometheus.Registry
}

// NewServer builds a Server. registry may be nil, in which case /metrics
// is not mounted.
func NewServer(cache *Cache, registry *prometheus.Registry) *Server {
	return &Server{cache: cache, registry: registry}
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/members", s.handleMembers)

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type memberDTO struct {
	Endpoint  string    `json:"endpoint"`
	State     string    `json:"state"`
	ChangedAt time.Time `json:"changed_at"`
}

type membersResponse struct {
	At      time.Time   `json:"at"`
	Active  int         `json:"active"`
	Suspect int         `json:"suspect"`
	Dead    int         `json:"dead"`
	MeanRTT string      `json:"mean_rtt"`
	Members []memberDTO `json:"members"`
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Load()

	resp := membersResponse{
		At:      snap.At,
		Active:  snap.Active,
		Suspect: snap.Suspect,
		Dead:    snap.Dead,
		MeanRTT: snap.MeanRTT.String(),
		Members: make([]memberDTO, 0, len(snap.Members)),
	}
	for _, m := range snap.Members {
		resp.Members = append(resp.Members, memberDTO{
			Endpoint:  m.Endpoint.String(),
			State:     m.State.String(),
			ChangedAt: m.ChangedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
