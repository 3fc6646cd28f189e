package record

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFromRow_TolerantTypes(t *testing.T) {
	r := FromRow(map[string]any{
		"Sparte":    "Strom",
		"Ort":       "Geesthacht",
		"PLZ":       json.Number("21502"),
		"Strasse":   "Bergedorfer Str.",
		"Haus-Nr":   12.0,
		"KW-Zahl":   "11,5",
		"latitude":  "53.4371",
		"longitude": 10.3712,
		"_table":    "ignored",
	}, "Gefilterte_Adressen_Geesthacht")

	if r.PLZ != "21502" {
		t.Fatalf("expected PLZ 21502, got %q", r.PLZ)
	}
	if r.HausNr != "12" {
		t.Fatalf("expected Haus-Nr 12, got %q", r.HausNr)
	}
	if r.Table != "Gefilterte_Adressen_Geesthacht" {
		t.Fatalf("expected explicit table to win, got %q", r.Table)
	}
	if r.Address != "Geesthacht, Bergedorfer Str. 12" {
		t.Fatalf("expected composed address, got %q", r.Address)
	}
	if kw, ok := r.KWValue(); !ok || kw != 11.5 {
		t.Fatalf("expected KW 11.5, got %v ok=%v", kw, ok)
	}
	if !r.HasCoords() {
		t.Fatalf("expected coordinates to be parsed")
	}
}

func TestKWValue_Malformed(t *testing.T) {
	for _, raw := range []string{"", "bad", "NaN", "Inf"} {
		r := Record{KW: raw}
		if _, ok := r.KWValue(); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
		if r.KWOrZero() != 0 {
			t.Fatalf("expected %q to count as zero", raw)
		}
	}
}

func TestYear(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		datum string
		want  int
		ok    bool
	}{
		{"2021-05-01", 2021, true},
		{"01.03.2019", 2019, true},
		{"2022-07-14T10:00:00Z", 2022, true},
		{"44197", 2021, true},
		{"", 0, false},
		{"NaN", 0, false},
		{"garbage", 0, false},
		{"2030-01-01", 0, false},
		{"1850-01-01", 0, false},
	}
	for _, tt := range tests {
		got, ok := Record{Datum: tt.datum}.Year(now)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("Year(%q) = %d,%v; want %d,%v", tt.datum, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHasCoords_ZeroCountsAsMissing(t *testing.T) {
	zero := 0.0
	lon := 10.0
	if (Record{Latitude: &zero, Longitude: &lon}).HasCoords() {
		t.Fatalf("expected zero latitude to count as missing")
	}
	if (Record{Longitude: &lon}).HasCoords() {
		t.Fatalf("expected nil latitude to count as missing")
	}
}

func TestValues_FromValuesRoundTrip(t *testing.T) {
	lat, lon := 53.5, 10.25
	in := Record{
		Sparte:    "Gas",
		Ort:       "Worth",
		PLZ:       "21502",
		Strasse:   "Dorfstraße",
		HausNr:    "3a",
		Address:   "Worth, Dorfstraße 3a",
		Datum:     "2020-01-02",
		Notiz:     "Hinweis",
		KW:        "7",
		Art:       "Installation",
		Latitude:  &lat,
		Longitude: &lon,
		Table:     "Gefilterte_Adressen_Worth",
	}
	out := FromValues(Fields, in.Values())
	if out.Table != "" {
		t.Fatalf("expected table tag to be dropped, got %q", out.Table)
	}
	out.Table = in.Table
	if out.Sparte != in.Sparte || out.Address != in.Address || out.KW != in.KW || out.Notiz != in.Notiz {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
	if *out.Latitude != lat || *out.Longitude != lon {
		t.Fatalf("coordinates mismatch: %v,%v", *out.Latitude, *out.Longitude)
	}
}

func TestGeocodeQuery(t *testing.T) {
	r := Record{Strasse: "Markt", HausNr: "1", PLZ: "21502", Ort: "Geesthacht"}
	if got := r.GeocodeQuery(); got != "Markt 1, 21502 Geesthacht, Deutschland" {
		t.Fatalf("unexpected query %q", got)
	}
}
