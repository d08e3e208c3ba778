package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is anything that can report backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness/readiness probes and the metrics endpoint on
// a dedicated port, away from the API listener.
type HealthHandler struct {
	registry *prometheus.Registry
	pingers  map[string]Pinger
}

// NewHealthHandler creates a health handler over the given registry.
// pingers maps a backend name to its connectivity check; nil values are
// ignored.
func NewHealthHandler(registry *prometheus.Registry, pingers map[string]Pinger) *HealthHandler {
	clean := make(map[string]Pinger, len(pingers))
	for name, p := range pingers {
		if p != nil {
			clean[name] = p
		}
	}
	return &HealthHandler{registry: registry, pingers: clean}
}

// Routes returns the health mux: /healthz, /readyz and /metrics.
func (h *HealthHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.live)
	mux.HandleFunc("/readyz", h.ready)
	mux.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	return mux
}

func (h *HealthHandler) live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(name + ": " + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
