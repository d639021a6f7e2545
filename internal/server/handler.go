// Package server is the thin HTTP façade over the query engine. It turns
// URL parameters into engine calls and wraps results in a uniform envelope;
// no query semantics live here.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/openmercato/catalog-search/internal/engine"
	"github.com/openmercato/catalog-search/pkg/errors"
	"github.com/openmercato/catalog-search/pkg/logger"
)

// Handler implements the search API endpoints.
type Handler struct {
	provider     *engine.Provider
	defaultLimit int
	maxLimit     int
	suggestLimit int
	readOnly     bool
	logger       *slog.Logger
}

// New creates a Handler backed by the given provider.
func New(provider *engine.Provider, defaultLimit, maxLimit, suggestLimit int, readOnly bool) *Handler {
	return &Handler{
		provider:     provider,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		suggestLimit: suggestLimit,
		readOnly:     readOnly,
		logger:       slog.Default().With("component", "http-handler"),
	}
}

// Search handles GET /api/v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	eng, err := h.provider.Get(ctx)
	if err != nil {
		log.Error("engine unavailable", "error", err)
		h.writeError(w, errors.HTTPStatusCode(err), "search engine unavailable")
		return
	}

	q := r.URL.Query()
	req := engine.Request{
		Query:  q.Get("q"),
		SortBy: q.Get("sort"),
		Filters: engine.Filters{
			Vendor:      q.Get("vendor"),
			ProductType: q.Get("type"),
		},
	}

	req.Page = 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		req.Page = n
	}
	req.Limit = h.defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > h.maxLimit {
			n = h.maxLimit
		}
		req.Limit = n
	}
	if v := q.Get("min_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			h.writeError(w, http.StatusBadRequest, "min_price must be a non-negative number")
			return
		}
		req.Filters.MinPrice = &f
	}
	if v := q.Get("max_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			h.writeError(w, http.StatusBadRequest, "max_price must be a non-negative number")
			return
		}
		req.Filters.MaxPrice = &f
	}
	if v := q.Get("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "in_stock must be a boolean")
			return
		}
		req.Filters.InStock = b
	}

	result := eng.Search(req)
	log.Info("search completed",
		"query", req.Query,
		"total", result.Total,
		"returned", len(result.Items),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

// Suggest handles GET /api/v1/suggest.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, err := h.provider.Get(ctx)
	if err != nil {
		h.writeError(w, errors.HTTPStatusCode(err), "search engine unavailable")
		return
	}
	limit := h.suggestLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}
	suggestions := eng.Suggest(r.URL.Query().Get("q"), limit)
	h.writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	eng, err := h.provider.Get(r.Context())
	if err != nil {
		h.writeError(w, errors.HTTPStatusCode(err), "search engine unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, eng.ComputeStats())
}

// Vendors handles GET /api/v1/vendors.
func (h *Handler) Vendors(w http.ResponseWriter, r *http.Request) {
	eng, err := h.provider.Get(r.Context())
	if err != nil {
		h.writeError(w, errors.HTTPStatusCode(err), "search engine unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"vendors": eng.Vendors()})
}

// ProductTypes handles GET /api/v1/types.
func (h *Handler) ProductTypes(w http.ResponseWriter, r *http.Request) {
	eng, err := h.provider.Get(r.Context())
	if err != nil {
		h.writeError(w, errors.HTTPStatusCode(err), "search engine unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"types": eng.ProductTypes()})
}

// Reindex handles POST /api/v1/reindex. It is rejected outright in
// read-only deployments.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.readOnly {
		h.writeError(w, http.StatusForbidden, "reindex disabled in read-only mode")
		return
	}
	start := time.Now()
	if err := h.provider.Rebuild(r.Context()); err != nil {
		h.logger.Error("reindex failed", "error", err)
		h.writeError(w, errors.HTTPStatusCode(err), "reindex failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "reindexed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
