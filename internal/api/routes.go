package api

import (
	"net/http"

	"local-cache/internal/logs"
)

// only rejects every method but method with 405.
func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func RegisterRoutes(mux *http.ServeMux, h *Handler, logger *logs.Logger) http.Handler {
	// Maintenance triggers
	mux.HandleFunc("/admin/cache/clean", only(http.MethodPost, h.CleanExpired))
	mux.HandleFunc("/admin/cache/clear", only(http.MethodPost, h.ClearAll))
	mux.HandleFunc("/admin/cache/ttl", only(http.MethodGet, h.ListTTL))
	mux.HandleFunc("/admin/catalog/refresh", only(http.MethodPost, h.RefreshCatalog))
	mux.HandleFunc("/admin/watch/", only(http.MethodGet, h.Watch))

	// Sync flags
	mux.HandleFunc("/admin/sync/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.GetFlag(w, r)
		case http.MethodPut:
			h.MarkFlag(w, r)
		case http.MethodDelete:
			h.ResetFlag(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Observability APIs
	mux.HandleFunc("/metrics", h.GetMetrics)
	mux.HandleFunc("/health", h.GetHealth)

	// Middlewares
	return Chain(
		mux,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)
}
