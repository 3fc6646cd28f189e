package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/internal/record"
)

func TestFetchTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/data/Gefilterte_Adressen_Worth", r.URL.Path)
		_, _ = w.Write([]byte(`[{"Ort":"Worth","KW-Zahl":11,"latitude":53.5}]`))
	}))
	defer srv.Close()

	rows, err := New(srv.URL + "/api").FetchTable(context.Background(), "Gefilterte_Adressen_Worth")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rec := record.FromRow(rows[0], "x")
	assert.Equal(t, "11", rec.KW)
	require.NotNil(t, rec.Latitude)
	assert.InDelta(t, 53.5, *rec.Latitude, 1e-9)
}

func TestFetchTable_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"relation does not exist"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchTable(context.Background(), "t")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.Status)
	assert.Equal(t, "relation does not exist", se.Message)
}

func TestUpdateCoords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u record.CoordUpdate
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&u))
		switch u.PLZ {
		case "00000":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Kein Eintrag gefunden"}`))
		case "":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Fehlende Felder"}`))
		default:
			_, _ = w.Write([]byte(`{"success":true,"updated":2}`))
		}
	}))
	defer srv.Close()
	c := New(srv.URL)

	n, err := c.UpdateCoords(context.Background(), "t", record.CoordUpdate{PLZ: "21502", Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = c.UpdateCoords(context.Background(), "t", record.CoordUpdate{PLZ: "00000"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = c.UpdateCoords(context.Background(), "t", record.CoordUpdate{})
	assert.True(t, errors.Is(err, ErrBadRequest))
	assert.Contains(t, err.Error(), "Fehlende Felder")
}
