package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deliverypulse/eventstream/internal/middleware"
)

// NewRouter constructs a ServeMux with the webhook endpoint registered.
// The ready callback reports broker connectivity for /readyz.
func NewRouter(h *Handler, ready func() bool) http.Handler {
	mux := http.NewServeMux()

	// All webhook sources share one endpoint; classification happens
	// inside the handler from the request headers.
	mux.HandleFunc("/", h.HandleWebhook)

	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
