package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"local-cache/internal/cache"
	"local-cache/internal/entity"
	"local-cache/internal/health"
	"local-cache/internal/logs"
	"local-cache/internal/metrics"
	"local-cache/internal/syncflag"
	"local-cache/internal/ttl"
	"local-cache/internal/watch"
)

// Maintainer runs cache-wide maintenance.
type Maintainer interface {
	CleanExpired(ctx context.Context, now time.Time) cache.Result
	ClearAll(ctx context.Context) cache.Result
}

// Refresher replaces the cached catalog with the remote one.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Subscriber starts a feed of record counts for kind.
type Subscriber func(kind entity.Kind, deliver func(records int)) (*watch.Subscription, error)

// Deps are the collaborators served by the admin surface. Catalog and Watch
// are optional; their routes answer 404 when unset.
type Deps struct {
	Cache   Maintainer
	Flags   syncflag.Store
	Catalog Refresher
	Watch   Subscriber
	Metrics *metrics.Registry
	Logger  *logs.Logger
	Clock   func() time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	cache    Maintainer
	flags    syncflag.Store
	catalog  Refresher
	watch    Subscriber
	metrics  *metrics.Registry
	logger   *logs.Logger
	analyzer *health.Analyzer
	clock    func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = logs.NewLogger(0, logs.INFO)
	}
	return &Handler{
		cache:    d.Cache,
		flags:    d.Flags,
		catalog:  d.Catalog,
		watch:    d.Watch,
		metrics:  d.Metrics,
		logger:   d.Logger,
		analyzer: health.NewAnalyzer(d.Metrics, d.Logger),
		clock:    d.Clock,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

/* ---------------- POST /admin/cache/clean, /admin/cache/clear ---------------- */

type resultResponse struct {
	Counts      map[entity.Kind]int    `json:"counts"`
	Failed      map[entity.Kind]string `json:"failed,omitempty"`
	Total       int                    `json:"total"`
	Interrupted bool                   `json:"interrupted,omitempty"`
}

func toResponse(res cache.Result) resultResponse {
	resp := resultResponse{
		Counts:      res.Counts,
		Total:       res.Total,
		Interrupted: res.Interrupted,
	}
	if len(res.Failed) > 0 {
		resp.Failed = make(map[entity.Kind]string, len(res.Failed))
		for kind, err := range res.Failed {
			resp.Failed[kind] = err.Error()
		}
	}
	return resp
}

func (h *Handler) CleanExpired(w http.ResponseWriter, r *http.Request) {
	res := h.cache.CleanExpired(r.Context(), h.clock())
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	res := h.cache.ClearAll(r.Context())
	writeJSON(w, http.StatusOK, toResponse(res))
}

/* ---------------- GET /admin/cache/ttl ---------------- */

type ttlResponse struct {
	TTL   string `json:"ttl"`
	TTLms int64  `json:"ttl_ms"`
}

func (h *Handler) ListTTL(w http.ResponseWriter, r *http.Request) {
	resp := make(map[entity.Kind]ttlResponse, len(entity.Kinds()))
	for _, kind := range entity.Kinds() {
		d := ttl.MustFor(kind)
		resp[kind] = ttlResponse{TTL: d.String(), TTLms: d.Milliseconds()}
	}
	writeJSON(w, http.StatusOK, resp)
}

/* ---------------- /admin/sync/{name} ---------------- */

func (h *Handler) GetFlag(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/admin/sync/")
	if name == "" {
		http.Error(w, "missing flag name", http.StatusBadRequest)
		return
	}

	at, synced, err := h.flags.LastSyncedAt(r.Context(), name)
	if err != nil {
		h.flagError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, syncflag.Flag{Name: name, Synced: synced, SyncedAt: at})
}

func (h *Handler) MarkFlag(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/admin/sync/")
	if name == "" {
		http.Error(w, "missing flag name", http.StatusBadRequest)
		return
	}

	if err := h.flags.MarkSynced(r.Context(), name, h.clock()); err != nil {
		h.flagError(w, name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ResetFlag(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/admin/sync/")
	if name == "" {
		http.Error(w, "missing flag name", http.StatusBadRequest)
		return
	}

	if err := h.flags.Reset(r.Context(), name); err != nil {
		h.flagError(w, name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) flagError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, syncflag.ErrNameRequired) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Failure("sync flag request failed", err, zap.String("flag", name))
	http.Error(w, "sync flag store unavailable", http.StatusInternalServerError)
}

/* ---------------- POST /admin/catalog/refresh ---------------- */

func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		http.Error(w, "catalog refresh not configured", http.StatusNotFound)
		return
	}
	n, err := h.catalog.Refresh(r.Context())
	if err != nil {
		h.logger.Warn("catalog refresh failed", zap.Error(err))
		http.Error(w, "catalog refresh failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"written": n})
}

/* ---------------- GET /admin/watch/{kind} ---------------- */

type watchEvent struct {
	Kind    entity.Kind `json:"kind"`
	Records int         `json:"records"`
}

// Watch streams one JSON line per change of the given kind until the client
// goes away.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	if h.watch == nil {
		http.Error(w, "watch not configured", http.StatusNotFound)
		return
	}
	kind := entity.Kind(strings.TrimPrefix(r.URL.Path, "/admin/watch/"))
	if !kind.Valid() {
		http.Error(w, "unknown kind", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates := make(chan int)
	stop := make(chan struct{})
	sub, err := h.watch(kind, func(records int) {
		select {
		case updates <- records:
		case <-stop:
		}
	})
	if err != nil {
		h.logger.Failure("watch subscribe failed", err, zap.String("kind", string(kind)))
		http.Error(w, "watch unavailable", http.StatusInternalServerError)
		return
	}
	defer func() {
		close(stop)
		sub.Cancel()
	}()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case n := <-updates:
			if err := enc.Encode(watchEvent{Kind: kind, Records: n}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

/* ---------------- GET /health ---------------- */

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.Analyze())
}
