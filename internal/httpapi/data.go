package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"geodash/internal/record"
	"geodash/internal/sqlcgen"
	"geodash/internal/tables"
)

// Messages of the data API. Existing clients match on them, so they stay German.
const (
	msgMissingFields   = "Fehlende Felder"
	msgTableNotAllowed = "Tabelle nicht erlaubt"
	msgNoMatch         = "Kein passender Datensatz gefunden"
	msgNoDatabase      = "Datenbank nicht konfiguriert"
)

// writeMessage writes the flat {"error": "..."} body used by /api.
func (h *Handler) writeMessage(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func tableParam(r *http.Request) string {
	raw := chi.URLParam(r, "table")
	if t, err := url.PathUnescape(raw); err == nil {
		return t
	}
	return raw
}

func (h *Handler) handleGetData(w http.ResponseWriter, r *http.Request) {
	table := tableParam(r)
	if !h.tables.IsAllowed(table) {
		h.writeMessage(w, http.StatusBadRequest, msgTableNotAllowed)
		return
	}
	if h.store == nil {
		h.writeMessage(w, http.StatusServiceUnavailable, msgNoDatabase)
		return
	}

	rows, err := h.store.ListTableRows(r.Context(), table, sqlcgen.MaxRows)
	if err != nil {
		h.log.Error().Err(err).Str("table", table).Msg("list table rows failed")
		h.writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// looseString accepts a JSON string or number; postcodes and house numbers
// arrive as either.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

// looseFloat accepts a JSON number or a numeric string. Anything else is
// treated as absent.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*f = looseFloat(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = looseFloat(parsed)
	default:
		*f = 0
	}
	return nil
}

type coordRequest struct {
	PLZ       looseString `json:"plz"`
	Ort       looseString `json:"ort"`
	Strasse   looseString `json:"strasse"`
	HausNr    looseString `json:"hausnr"`
	Latitude  looseFloat  `json:"latitude"`
	Longitude looseFloat  `json:"longitude"`
}

// update returns the coordinate update, or false when a field is missing.
// Zero coordinates count as missing.
func (c coordRequest) update() (record.CoordUpdate, bool) {
	u := record.CoordUpdate{
		PLZ:       string(c.PLZ),
		Ort:       string(c.Ort),
		Strasse:   string(c.Strasse),
		HausNr:    string(c.HausNr),
		Latitude:  float64(c.Latitude),
		Longitude: float64(c.Longitude),
	}
	if !u.Key().Complete() || u.Latitude == 0 || u.Longitude == 0 {
		return u, false
	}
	return u, true
}

func (h *Handler) handleUpdateCoords(w http.ResponseWriter, r *http.Request) {
	table := tableParam(r)

	var req coordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.IncCoordUpdate("invalid")
		h.writeMessage(w, http.StatusBadRequest, msgMissingFields)
		return
	}
	u, ok := req.update()
	if !ok {
		h.metrics.IncCoordUpdate("invalid")
		h.writeMessage(w, http.StatusBadRequest, msgMissingFields)
		return
	}
	if !h.tables.IsAllowed(table) {
		h.metrics.IncCoordUpdate("invalid")
		h.writeMessage(w, http.StatusBadRequest, msgTableNotAllowed)
		return
	}
	if h.store == nil {
		h.writeMessage(w, http.StatusServiceUnavailable, msgNoDatabase)
		return
	}

	n, err := h.store.UpdateCoords(r.Context(), table, u)
	if err != nil {
		h.metrics.IncCoordUpdate("error")
		h.log.Error().Err(err).Str("table", table).Msg("update coords failed")
		h.writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n == 0 {
		h.metrics.IncCoordUpdate("not_found")
		h.writeMessage(w, http.StatusNotFound, msgNoMatch)
		return
	}

	h.metrics.IncCoordUpdate("updated")
	h.log.Info().Str("table", table).Int64("updated", n).Str("plz", u.PLZ).Str("ort", u.Ort).Msg("coordinates updated")
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": n})
}

type tableInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	all := h.tables.All()
	resp := make([]tableInfo, 0, len(all))
	for _, t := range all {
		resp = append(resp, tableInfo{Name: t, DisplayName: tables.DisplayName(t)})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListColumns(w http.ResponseWriter, r *http.Request) {
	table := tableParam(r)
	if !h.tables.IsAllowed(table) {
		h.writeError(w, http.StatusBadRequest, "table_not_allowed", "table is not allow-listed", map[string]any{"table": table})
		return
	}
	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return
	}

	cols, err := h.store.ListTableColumns(r.Context(), table)
	if err != nil {
		h.log.Error().Err(err).Str("table", table).Msg("list table columns failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to inspect table", nil)
		return
	}
	if len(cols) == 0 {
		h.writeError(w, http.StatusNotFound, "not_found", "table not found", map[string]any{"table": table})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"table": table, "columns": cols})
}
