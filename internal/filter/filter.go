// Package filter derives filtered record subsets from independent predicates.
package filter

import (
	"math"
	"sort"
	"strings"
	"time"

	"geodash/internal/record"
)

// Range is an inclusive numeric range. A nil bound is open.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r Range) Active() bool {
	return r.Min != nil || r.Max != nil
}

func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// YearRange is an inclusive year window. Zero means open.
type YearRange struct {
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`
}

func (y YearRange) Active() bool {
	return y.From != 0 || y.To != 0
}

func (y YearRange) Contains(year int) bool {
	if y.From != 0 && year < y.From {
		return false
	}
	if y.To != 0 && year > y.To {
		return false
	}
	return true
}

// Substring holds the free-text column filters of the spreadsheet view.
type Substring struct {
	Sparte string `json:"sparte,omitempty"`
	Ort    string `json:"ort,omitempty"`
	Art    string `json:"art,omitempty"`
	PLZ    string `json:"plz,omitempty"`
}

func (s Substring) Active() bool {
	return s.Sparte != "" || s.Ort != "" || s.Art != "" || s.PLZ != ""
}

// State is the complete filter input. All active predicates are combined with
// AND; an empty allow-list does not restrict.
type State struct {
	Places    []string  `json:"places,omitempty"`
	Types     []string  `json:"types,omitempty"`
	KW        Range     `json:"kw"`
	Years     YearRange `json:"years"`
	Search    string    `json:"search,omitempty"`
	Substring Substring `json:"substring"`
}

// Default is the unrestricted state.
func Default() State {
	return State{}
}

func (s State) IsDefault() bool {
	return len(s.Places) == 0 &&
		len(s.Types) == 0 &&
		!s.KW.Active() &&
		!s.Years.Active() &&
		strings.TrimSpace(s.Search) == "" &&
		!s.Substring.Active()
}

type matcher struct {
	places map[string]struct{}
	types  map[string]struct{}
	kw     Range
	years  YearRange
	search string
	sub    Substring
	now    time.Time
}

func compile(s State, now time.Time) matcher {
	m := matcher{
		kw:     s.KW,
		years:  s.Years,
		search: strings.ToLower(strings.TrimSpace(s.Search)),
		sub: Substring{
			Sparte: strings.ToLower(strings.TrimSpace(s.Substring.Sparte)),
			Ort:    strings.ToLower(strings.TrimSpace(s.Substring.Ort)),
			Art:    strings.ToLower(strings.TrimSpace(s.Substring.Art)),
			PLZ:    strings.TrimSpace(s.Substring.PLZ),
		},
		now: now,
	}
	if len(s.Places) > 0 {
		m.places = toSet(s.Places)
	}
	if len(s.Types) > 0 {
		m.types = toSet(s.Types)
	}
	return m
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func (m matcher) match(r record.Record) bool {
	if m.places != nil {
		if _, ok := m.places[r.Ort]; !ok {
			return false
		}
	}
	if m.types != nil {
		if _, ok := m.types[r.Art]; !ok {
			return false
		}
	}
	if m.kw.Active() && !m.kw.Contains(r.KWOrZero()) {
		return false
	}
	if m.years.Active() {
		y, ok := r.Year(m.now)
		if !ok || !m.years.Contains(y) {
			return false
		}
	}
	if m.search != "" && !matchesSearch(r, m.search) {
		return false
	}
	if m.sub.Sparte != "" && !strings.Contains(strings.ToLower(r.Sparte), m.sub.Sparte) {
		return false
	}
	if m.sub.Ort != "" && !strings.Contains(strings.ToLower(r.Ort), m.sub.Ort) {
		return false
	}
	if m.sub.Art != "" && !strings.Contains(strings.ToLower(r.Art), m.sub.Art) {
		return false
	}
	if m.sub.PLZ != "" && !strings.Contains(r.PLZ, m.sub.PLZ) {
		return false
	}
	return true
}

func matchesSearch(r record.Record, needle string) bool {
	for _, hay := range []string{r.Address, r.Ort, r.Strasse, r.PLZ} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// Apply returns the records satisfying every active predicate, in input order.
// The result never aliases the input slice.
func Apply(records []record.Record, s State, now time.Time) []record.Record {
	out := make([]record.Record, 0, len(records))
	if s.IsDefault() {
		return append(out, records...)
	}
	m := compile(s, now)
	for _, r := range records {
		if m.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Match reports whether a single record passes the filter.
func Match(r record.Record, s State, now time.Time) bool {
	return compile(s, now).match(r)
}

// Options describes the selectable values of the filter panel.
type Options struct {
	Places  []string `json:"places"`
	Types   []string `json:"types"`
	YearMin int      `json:"year_min"`
	YearMax int      `json:"year_max"`
	KWMin   float64  `json:"kw_min"`
	KWMax   float64  `json:"kw_max"`
}

// IsMissingType reports values that should never appear as a type option.
func IsMissingType(art string) bool {
	a := strings.TrimSpace(art)
	return a == "" || strings.EqualFold(a, "nan")
}

// OptionsFor collects sorted distinct places and types plus year and KW bounds.
// Without any dated record both year bounds are the current year.
func OptionsFor(records []record.Record, now time.Time) Options {
	places := map[string]struct{}{}
	types := map[string]struct{}{}
	yearMin, yearMax := 0, 0
	kwMin, kwMax := math.Inf(1), math.Inf(-1)

	for _, r := range records {
		if r.Ort != "" {
			places[r.Ort] = struct{}{}
		}
		if !IsMissingType(r.Art) {
			types[r.Art] = struct{}{}
		}
		if y, ok := r.Year(now); ok {
			if yearMin == 0 || y < yearMin {
				yearMin = y
			}
			if y > yearMax {
				yearMax = y
			}
		}
		if kw, ok := r.KWValue(); ok {
			kwMin = math.Min(kwMin, kw)
			kwMax = math.Max(kwMax, kw)
		}
	}

	if yearMin == 0 {
		yearMin, yearMax = now.Year(), now.Year()
	}
	if math.IsInf(kwMin, 1) {
		kwMin, kwMax = 0, 0
	}

	return Options{
		Places:  sortedKeys(places),
		Types:   sortedKeys(types),
		YearMin: yearMin,
		YearMax: yearMax,
		KWMin:   kwMin,
		KWMax:   kwMax,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
