package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"geodash/internal/dashboard"
	"geodash/internal/metrics"
	"geodash/internal/record"
	"geodash/internal/sqlcgen"
	"geodash/internal/tables"
)

// Store is the relational backend behind the data API. *db.Pool and
// *db.SQLite both satisfy it.
type Store interface {
	ListTableRows(ctx context.Context, table string, limit int) ([]map[string]any, error)
	UpdateCoords(ctx context.Context, table string, u record.CoordUpdate) (int64, error)
	ListTableColumns(ctx context.Context, table string) ([]sqlcgen.Column, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	log     zerolog.Logger
	store   Store
	tables  tables.AllowList
	page    *dashboard.Page
	metrics *metrics.Metrics
}

// NewHandler wires the HTTP surface. store and page may be nil; the routes
// that need them then answer 503.
func NewHandler(log zerolog.Logger, store Store, allow tables.AllowList, page *dashboard.Page, m *metrics.Metrics) *Handler {
	if allow.Len() == 0 {
		allow = tables.New(nil)
	}
	return &Handler{log: log, store: store, tables: allow, page: page, metrics: m}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Get("/data/{table}", h.handleGetData)
		r.Post("/update-coords/{table}", h.handleUpdateCoords)
		r.Route("/tables", func(r chi.Router) {
			r.Get("/", h.handleListTables)
			r.Get("/{table}/columns", h.handleListColumns)
		})
	})

	// Dashboard
	r.Route("/dashboard", func(r chi.Router) {
		r.Post("/reload", h.handleReload)
		r.Post("/import", h.handleImport)
		r.Post("/reset", h.handleReset)
		r.Get("/filter", h.handleGetFilter)
		r.Put("/filter", h.handlePutFilter)
		r.Get("/notifications", h.handleNotifications)
		r.Get("/stats", h.handleStats)
		r.Get("/charts", h.handleCharts)
		r.Get("/analytics", h.handleAnalytics)
		r.Get("/table", h.handleTable)
		r.Get("/compare", h.handleCompare)
		r.Route("/map", func(r chi.Router) {
			r.Get("/", h.handleMap)
			r.Post("/interaction", h.handleMapInteraction)
			r.Post("/reset", h.handleMapReset)
		})
		r.Get("/export.xlsx", h.handleExportXLSX)
		r.Get("/export.csv", h.handleExportCSV)
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		elapsed := time.Since(start)
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), elapsed)

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return
	}

	if err := h.store.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
