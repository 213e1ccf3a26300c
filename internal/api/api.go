// Package api serves aggregated resources over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/covisearch/aggregator/internal/model"
	"github.com/covisearch/aggregator/internal/store"
)

// DefaultPageSize is the number of documents per page.
const DefaultPageSize = 10

// Options configures the router.
type Options struct {
	PageSize       int
	AllowedOrigins []string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Page is the body of a /resources response.
type Page struct {
	SearchFilter string           `json:"search_filter"`
	Page         int              `json:"page"`
	PageSize     int              `json:"page_size"`
	Total        int              `json:"total"`
	Data         []model.Document `json:"data"`
}

type handler struct {
	store    store.Store
	pageSize int
	now      func() time.Time
}

// NewRouter returns the HTTP handler for the read API.
func NewRouter(st store.Store, opts Options) http.Handler {
	h := &handler{store: st, pageSize: opts.PageSize, now: opts.Now}
	if h.pageSize <= 0 {
		h.pageSize = DefaultPageSize
	}
	if h.now == nil {
		h.now = time.Now
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Get("/resources", h.resources)
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		zap.L().Error("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) resources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := model.FilterFromQuery(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
	}

	key := filter.String()
	if err := h.store.RecordQuery(r.Context(), key, h.now()); err != nil {
		zap.L().Warn("api: record query failed", zap.String("filter", key), zap.Error(err))
	}

	res, err := h.store.GetResourcesForFilter(r.Context(), key)
	if err != nil {
		zap.L().Error("api: get resources failed", zap.String("filter", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "data not aggregated yet")
		return
	}

	start := (page - 1) * h.pageSize
	if start > 0 && start >= len(res.Data) {
		writeError(w, http.StatusNotFound, "page out of range")
		return
	}
	end := min(start+h.pageSize, len(res.Data))

	writeJSON(w, http.StatusOK, Page{
		SearchFilter: key,
		Page:         page,
		PageSize:     h.pageSize,
		Total:        len(res.Data),
		Data:         append([]model.Document{}, res.Data[start:end]...),
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
