package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"geodash/internal/dashboard"
	"geodash/internal/filter"
	"geodash/internal/mapview"
	"geodash/internal/sheet"
	"geodash/internal/stats"
)

const maxUploadBytes = 32 << 20

// filterParams are the query keys merged into the page filter when present.
var filterParams = []string{"ort", "art", "kwMin", "kwMax", "yearFrom", "yearTo", "q"}

func (h *Handler) ensurePage(w http.ResponseWriter) bool {
	if h.page == nil {
		h.writeError(w, http.StatusServiceUnavailable, "dashboard_unavailable", "dashboard not configured", nil)
		return false
	}
	return true
}

// pageErr maps dashboard errors to responses.
func (h *Handler) pageErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrClosed):
		h.writeError(w, http.StatusServiceUnavailable, "dashboard_unavailable", "dashboard closed", nil)
	case errors.Is(err, mapview.ErrUnknownInteraction):
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid interaction", map[string]any{"error": err.Error()})
	case errors.Is(err, stats.ErrTooManyItems):
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"max": stats.MaxCompareItems})
	default:
		h.log.Error().Err(err).Msg("dashboard update failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "dashboard update failed", nil)
	}
}

type errInvalidFilter struct{ error }

func hasFilterParams(q url.Values) bool {
	for _, k := range filterParams {
		if _, ok := q[k]; ok {
			return true
		}
	}
	return false
}

// listParam collects repeated and comma separated values.
func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseFloatParam(value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	if err != nil {
		return nil, errors.New("invalid number")
	}
	return &v, nil
}

func parseYearParam(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(value)
	if err != nil || y < 0 {
		return 0, errors.New("invalid year")
	}
	return y, nil
}

func parseIntParam(value string, def int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New("invalid value")
	}
	return v, nil
}

// mergeFilter overrides the fields of base named by the query. Keys that are
// absent leave the current value alone; an empty value clears it.
func mergeFilter(base filter.State, q url.Values) (filter.State, error) {
	s := base
	var err error
	if q.Has("ort") {
		s.Places = listParam(q, "ort")
	}
	if q.Has("art") {
		s.Types = listParam(q, "art")
	}
	if q.Has("q") {
		s.Search = strings.TrimSpace(q.Get("q"))
	}
	if q.Has("kwMin") {
		if s.KW.Min, err = parseFloatParam(q.Get("kwMin")); err != nil {
			return base, fmt.Errorf("kwMin: %w", err)
		}
	}
	if q.Has("kwMax") {
		if s.KW.Max, err = parseFloatParam(q.Get("kwMax")); err != nil {
			return base, fmt.Errorf("kwMax: %w", err)
		}
	}
	if q.Has("yearFrom") {
		if s.Years.From, err = parseYearParam(q.Get("yearFrom")); err != nil {
			return base, fmt.Errorf("yearFrom: %w", err)
		}
	}
	if q.Has("yearTo") {
		if s.Years.To, err = parseYearParam(q.Get("yearTo")); err != nil {
			return base, fmt.Errorf("yearTo: %w", err)
		}
	}
	return s, nil
}

// applyQuery applies filter and layer query parameters to the page. It
// reports false after writing an error response.
func (h *Handler) applyQuery(w http.ResponseWriter, r *http.Request) bool {
	if !h.ensurePage(w) {
		return false
	}
	q := r.URL.Query()
	if hasFilterParams(q) {
		err := h.page.UpdateFilter(func(cur filter.State) (filter.State, error) {
			next, err := mergeFilter(cur, q)
			if err != nil {
				return cur, errInvalidFilter{err}
			}
			return next, nil
		})
		var invalid errInvalidFilter
		if errors.As(err, &invalid) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid filter", map[string]any{"error": invalid.Error()})
			return false
		}
		if err != nil {
			h.pageErr(w, err)
			return false
		}
	}
	if raw, ok := q["layer"]; ok && len(raw) > 0 {
		kind, err := mapview.ParseKind(raw[0])
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid layer", map[string]any{"layer": raw[0]})
			return false
		}
		if err := h.page.SetLayer(kind); err != nil {
			h.pageErr(w, err)
			return false
		}
	}
	return true
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if !h.ensurePage(w) {
		return
	}
	// A dropped connection or the router timeout must not cut the load short
	// and publish a partial record set.
	res, err := h.page.Load(context.WithoutCancel(r.Context()))
	if err != nil {
		h.pageErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"result":        res,
		"notifications": h.page.Notifications(),
	})
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if !h.ensurePage(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid multipart body", map[string]any{"error": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "missing file field", nil)
		return
	}
	defer file.Close()

	recs, err := sheet.Read(file, header.Filename)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "could not read spreadsheet", map[string]any{"error": err.Error(), "file": header.Filename})
		return
	}
	if err := h.page.SetRecords(recs, header.Filename); err != nil {
		h.pageErr(w, err)
		return
	}
	h.log.Info().Str("file", header.Filename).Int("records", len(recs)).Msg("spreadsheet imported")
	h.writeJSON(w, http.StatusOK, map[string]any{
		"imported":      len(recs),
		"notifications": h.page.Notifications(),
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if !h.ensurePage(w) {
		return
	}
	if err := h.page.Reset(); err != nil {
		h.pageErr(w, err)
		return
	}
	h.writeFilter(w)
}

func (h *Handler) writeFilter(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"filter":  h.page.Filter(),
		"layer":   h.page.Layer(),
		"options": h.page.FilterOptions(),
	})
}

func (h *Handler) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	if !h.applyQuery(w, r) {
		return
	}
	h.writeFilter(w)
}

func (h *Handler) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	if !h.ensurePage(w) {
		return
	}
	var req filter.State
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if err := h.page.SetFilter(req); err != nil {
		h.pageErr(w, err)
		return
	}
	h.writeFilter(w)
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if !h.ensurePage(w) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.page.Notifications())
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if !h.applyQuery(w, r) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.page.Stats())
}

func (h *Handler) handleCharts(w http.ResponseWriter, r *http.Request) {
	if !h.applyQuery(w, r) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.page.Charts())
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if !h.applyQuery(w, r) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.page.Analytics())
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	if !h.applyQuery(w, r) {
		return
	}
	q := r.URL.Query()
	page, err := parseIntParam(q.Get("page"), 1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid page", map[string]any{"error": err.Error()})
		return
	}
	size, err := parseIntParam(q.Get("size"), dashboard.DefaultPageSize)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid size", map[string]any{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, h.page.Table(page, size))
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	if !h.applyQuery(w, r) {
		return
	}
	q := r.URL.Query()
	kind, err := stats.ParseCompareKind(q.Get("kind"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid kind", map[string]any{"kind": q.Get("kind")})
		return
	}
	view, err := h.page.Compare(kind, listParam(q, "item"))
	if err != nil {
		h.pageErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleMap(w http.ResponseWriter, r *http.Request) {
	if !h.applyQuery(w, r) {
		return
	}
	v, err := h.page.Map()
	if err != nil {
		h.pageErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleMapInteraction(w http.ResponseWriter, r *http.Request) {
	if !h.ensurePage(w) {
		return
	}
	var req mapview.Interaction
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if err := h.page.Interact(req); err != nil {
		h.pageErr(w, err)
		return
	}
	h.handleMap(w, r)
}

func (h *Handler) handleMapReset(w http.ResponseWriter, r *http.Request) {
	if !h.ensurePage(w) {
		return
	}
	if err := h.page.ResetView(); err != nil {
		h.pageErr(w, err)
		return
	}
	h.handleMap(w, r)
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	if !h.applyQuery(w, r) {
		return
	}
	var buf bytes.Buffer
	if err := sheet.WriteWorkbook(&buf, h.page.Filtered()); err != nil {
		h.log.Error().Err(err).Msg("export workbook failed")
		h.writeError(w, http.StatusInternalServerError, "export_failed", "failed to write workbook", nil)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\"geodash_export.xlsx\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !h.applyQuery(w, r) {
		return
	}
	var buf bytes.Buffer
	if err := sheet.WriteCSV(&buf, h.page.Filtered()); err != nil {
		h.log.Error().Err(err).Msg("export csv failed")
		h.writeError(w, http.StatusInternalServerError, "export_failed", "failed to write csv", nil)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"geodash_export.csv\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
