// Package record holds the address/connection row shared by the store, the
// loader, the spreadsheet exchange and every derived view.
package record

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column names as they appear in the database tables and spreadsheets.
const (
	ColGeaendertAm   = "Geändert am"
	ColZugriffsdatum = "Zugriffsdatum"
	ColSparte        = "Sparte"
	ColOrt           = "Ort"
	ColPLZ           = "PLZ"
	ColStrasse       = "Strasse"
	ColHausNr        = "Haus-Nr"
	ColAddress       = "Ort, Strasse Haus-Nr"
	ColDatum         = "Datum"
	ColNotiz         = "Notiz"
	ColKW            = "KW-Zahl"
	ColArt           = "Art"
	ColLatitude      = "latitude"
	ColLongitude     = "longitude"
	ColTable         = "_table"
)

// Fields is the exchange column order used for spreadsheet and CSV export.
// The table tag is internal and never exported.
var Fields = []string{
	ColGeaendertAm,
	ColZugriffsdatum,
	ColSparte,
	ColOrt,
	ColPLZ,
	ColStrasse,
	ColHausNr,
	ColAddress,
	ColDatum,
	ColNotiz,
	ColKW,
	ColArt,
	ColLatitude,
	ColLongitude,
}

// Record is one imported or stored connection row. KW keeps the raw value
// because it may arrive as a number or as free text.
type Record struct {
	GeaendertAm   string
	Zugriffsdatum string
	Sparte        string
	Ort           string
	PLZ           string
	Strasse       string
	HausNr        string
	Address       string
	Datum         string
	Notiz         string
	KW            string
	Art           string
	Latitude      *float64
	Longitude     *float64
	Table         string
}

// Key is the compound key used by the coordinate update path.
type Key struct {
	PLZ     string
	Ort     string
	Strasse string
	HausNr  string
}

func (r Record) Key() Key {
	return Key{PLZ: r.PLZ, Ort: r.Ort, Strasse: r.Strasse, HausNr: r.HausNr}
}

// Complete reports whether every part of the compound key is present.
func (k Key) Complete() bool {
	return strings.TrimSpace(k.PLZ) != "" &&
		strings.TrimSpace(k.Ort) != "" &&
		strings.TrimSpace(k.Strasse) != "" &&
		strings.TrimSpace(k.HausNr) != ""
}

// FromRow converts a loosely typed row (database, JSON or spreadsheet) into a
// Record. Unknown columns are ignored. table overrides any _table column when
// non-empty.
func FromRow(row map[string]any, table string) Record {
	r := Record{
		GeaendertAm:   toString(row[ColGeaendertAm]),
		Zugriffsdatum: toString(row[ColZugriffsdatum]),
		Sparte:        toString(row[ColSparte]),
		Ort:           toString(row[ColOrt]),
		PLZ:           toString(row[ColPLZ]),
		Strasse:       toString(row[ColStrasse]),
		HausNr:        toString(row[ColHausNr]),
		Address:       toString(row[ColAddress]),
		Datum:         toString(row[ColDatum]),
		Notiz:         toString(row[ColNotiz]),
		KW:            toString(row[ColKW]),
		Art:           toString(row[ColArt]),
		Table:         toString(row[ColTable]),
	}
	if v, ok := toFloat(row[ColLatitude]); ok {
		r.Latitude = &v
	}
	if v, ok := toFloat(row[ColLongitude]); ok {
		r.Longitude = &v
	}
	if table != "" {
		r.Table = table
	}
	if r.Address == "" {
		r.Address = composeAddress(r.Ort, r.Strasse, r.HausNr)
	}
	return r
}

func composeAddress(ort, strasse, hausnr string) string {
	street := strings.TrimSpace(strings.TrimSpace(strasse) + " " + strings.TrimSpace(hausnr))
	ort = strings.TrimSpace(ort)
	switch {
	case ort == "":
		return street
	case street == "":
		return ort
	default:
		return ort + ", " + street
	}
}

// ToRow renders the record with its original column names, including the
// table tag. Absent coordinates are nil.
func (r Record) ToRow() map[string]any {
	row := map[string]any{
		ColSparte:  r.Sparte,
		ColOrt:     r.Ort,
		ColPLZ:     r.PLZ,
		ColStrasse: r.Strasse,
		ColHausNr:  r.HausNr,
		ColAddress: r.Address,
		ColArt:     r.Art,
		ColTable:   r.Table,
	}
	optional := map[string]string{
		ColGeaendertAm:   r.GeaendertAm,
		ColZugriffsdatum: r.Zugriffsdatum,
		ColDatum:         r.Datum,
		ColNotiz:         r.Notiz,
	}
	for k, v := range optional {
		if v != "" {
			row[k] = v
		}
	}
	if kw, ok := r.KWValue(); ok {
		row[ColKW] = kw
	} else if r.KW != "" {
		row[ColKW] = r.KW
	}
	if r.Latitude != nil {
		row[ColLatitude] = *r.Latitude
	} else {
		row[ColLatitude] = nil
	}
	if r.Longitude != nil {
		row[ColLongitude] = *r.Longitude
	} else {
		row[ColLongitude] = nil
	}
	return row
}

// Values returns the exchange representation in Fields order.
func (r Record) Values() []string {
	return []string{
		r.GeaendertAm,
		r.Zugriffsdatum,
		r.Sparte,
		r.Ort,
		r.PLZ,
		r.Strasse,
		r.HausNr,
		r.Address,
		r.Datum,
		r.Notiz,
		r.KW,
		r.Art,
		formatCoord(r.Latitude),
		formatCoord(r.Longitude),
	}
}

// FromValues is the inverse of Values for an arbitrary header order. Columns
// that are not part of the exchange format are ignored.
func FromValues(header, values []string) Record {
	row := make(map[string]any, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if col == "" || col == ColTable {
			continue
		}
		if i < len(values) {
			row[col] = values[i]
		}
	}
	return FromRow(row, "")
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// KWValue parses the capacity value. Malformed or empty values report false
// and count as zero in aggregations.
func (r Record) KWValue() (float64, bool) {
	return parseNumber(r.KW)
}

// KWOrZero is KWValue collapsed for sums.
func (r Record) KWOrZero() float64 {
	v, ok := r.KWValue()
	if !ok {
		return 0
	}
	return v
}

// HasCoords reports whether the record can be placed on a map. A zero
// latitude or longitude counts as missing.
func (r Record) HasCoords() bool {
	return r.Latitude != nil && r.Longitude != nil && *r.Latitude != 0 && *r.Longitude != 0
}

// GeocodeQuery builds the free-text address sent to the geocoder.
func (r Record) GeocodeQuery() string {
	return fmt.Sprintf("%s %s, %s %s, Deutschland",
		strings.TrimSpace(r.Strasse),
		strings.TrimSpace(r.HausNr),
		strings.TrimSpace(r.PLZ),
		strings.TrimSpace(r.Ort),
	)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"2.1.2006",
	"02.01.2006 15:04",
	"01/02/2006",
	"1/2/06",
}

// excelEpoch is day zero of the 1900 date system as used by spreadsheets
// (shifted by the Lotus leap-year bug).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Date parses Datum. Spreadsheet serial numbers are accepted.
func (r Record) Date() (time.Time, bool) {
	s := strings.TrimSpace(r.Datum)
	if s == "" || strings.EqualFold(s, "nan") {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		days := math.Floor(serial)
		frac := serial - days
		return excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour))), true
	}
	return time.Time{}, false
}

// Year returns the year of Datum when it falls inside [1900, now.Year()].
func (r Record) Year(now time.Time) (int, bool) {
	t, ok := r.Date()
	if !ok {
		return 0, false
	}
	y := t.Year()
	if y < 1900 || y > now.Year() {
		return 0, false
	}
	return y, true
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case float64:
		if math.IsNaN(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return ""
		}
		return toString(dv)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case float32:
		return toFloat(float64(t))
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		return parseNumber(t.String())
	case string:
		return parseNumber(t)
	case []byte:
		return parseNumber(string(t))
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return 0, false
		}
		return toFloat(dv)
	default:
		return 0, false
	}
}
