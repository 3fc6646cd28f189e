// Package stats computes the derived statistics shown by the dashboard pages.
// Everything here is a pure function of the record slice it is given.
package stats

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"geodash/internal/filter"
	"geodash/internal/record"
)

const (
	typeLabelMax = 20
	notAvailable = "N/A"
)

type Summary struct {
	Total              int     `json:"total"`
	UniquePlaces       int     `json:"unique_places"`
	Geocoded           int     `json:"geocoded"`
	AvgPerPlace        int     `json:"avg_per_place"`
	TotalKW            float64 `json:"total_kw"`
	AvgKW              float64 `json:"avg_kw"`
	TopSparte          string  `json:"top_sparte"`
	TopSparteCount     int     `json:"top_sparte_count"`
	TopArt             string  `json:"top_art"`
	TopArtCount        int     `json:"top_art_count"`
	CurrentYear        int     `json:"current_year"`
	CurrentYearEntries int     `json:"current_year_entries"`
	SpartenCount       int     `json:"sparten_count"`
}

type Count struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

type TypeCount struct {
	Art     string `json:"art"`
	FullArt string `json:"full_art"`
	Count   int    `json:"count"`
}

type PlaceKW struct {
	Name string `json:"name"`
	KW   int    `json:"kw"`
}

// Key selects the categorical column a distribution is computed over.
type Key func(record.Record) string

var (
	ByOrt    Key = func(r record.Record) string { return r.Ort }
	BySparte Key = func(r record.Record) string { return r.Sparte }
	ByArt    Key = func(r record.Record) string { return r.Art }
	ByTable  Key = func(r record.Record) string { return r.Table }
)

// Summarize computes the headline figures for a record set.
func Summarize(records []record.Record, now time.Time) Summary {
	s := Summary{Total: len(records), CurrentYear: now.Year()}

	places := map[string]struct{}{}
	for _, r := range records {
		places[r.Ort] = struct{}{}
		if r.HasCoords() {
			s.Geocoded++
		}
		s.TotalKW += r.KWOrZero()
		if y, ok := r.Year(now); ok && y == now.Year() {
			s.CurrentYearEntries++
		}
	}
	if len(records) > 0 {
		s.UniquePlaces = len(places)
		s.AvgPerPlace = int(math.Round(float64(len(records)) / float64(len(places))))
	}
	s.AvgKW = s.TotalKW / float64(max(len(records), 1))

	s.TopSparte, s.TopSparteCount = Mode(records, BySparte)
	s.TopArt, s.TopArtCount = Mode(records, ByArt)
	s.SpartenCount = len(Distribution(records, BySparte))
	return s
}

// Mode returns the most frequent non-blank value and its count. Ties resolve
// to the lexically smallest value. An empty input yields "N/A".
func Mode(records []record.Record, key Key) (string, int) {
	dist := Distribution(records, key)
	if len(dist) == 0 {
		return notAvailable, 0
	}
	return dist[0].Name, dist[0].Value
}

// Distribution counts records per non-blank value, sorted by count desc then
// name asc.
func Distribution(records []record.Record, key Key) []Count {
	counts := map[string]int{}
	for _, r := range records {
		v := key(r)
		if v == "" {
			continue
		}
		counts[v]++
	}
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Value: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopN truncates a sorted distribution.
func TopN(counts []Count, n int) []Count {
	if n <= 0 || len(counts) <= n {
		return counts
	}
	return counts[:n]
}

// ByYear counts records per valid year, ascending. Records without a usable
// date are skipped.
func ByYear(records []record.Record, now time.Time) []YearCount {
	counts := map[int]int{}
	for _, r := range records {
		if y, ok := r.Year(now); ok {
			counts[y]++
		}
	}
	return sortedYears(counts)
}

// Timeline is ByYear restricted to [from, to].
func Timeline(records []record.Record, from, to int, now time.Time) []YearCount {
	counts := map[int]int{}
	for _, r := range records {
		y, ok := r.Year(now)
		if !ok || y < from || y > to {
			continue
		}
		counts[y]++
	}
	return sortedYears(counts)
}

func sortedYears(counts map[int]int) []YearCount {
	out := make([]YearCount, 0, len(counts))
	for y, n := range counts {
		out = append(out, YearCount{Year: y, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// ByType counts connection types, skipping blank and NaN, most frequent first.
// Long names are shortened for chart labels; FullArt keeps the original.
func ByType(records []record.Record) []TypeCount {
	dist := Distribution(records, func(r record.Record) string {
		if filter.IsMissingType(r.Art) {
			return ""
		}
		return r.Art
	})
	out := make([]TypeCount, 0, len(dist))
	for _, c := range dist {
		out = append(out, TypeCount{Art: truncateLabel(c.Name), FullArt: c.Name, Count: c.Value})
	}
	return out
}

func truncateLabel(s string) string {
	if utf8.RuneCountInString(s) <= typeLabelMax {
		return s
	}
	runes := []rune(s)
	return string(runes[:typeLabelMax]) + "..."
}

// KWByPlace sums KW per place and returns the n largest, rounded.
func KWByPlace(records []record.Record, n int) []PlaceKW {
	sums := map[string]float64{}
	for _, r := range records {
		sums[r.Ort] += r.KWOrZero()
	}
	out := make([]PlaceKW, 0, len(sums))
	for name, kw := range sums {
		out = append(out, PlaceKW{Name: name, KW: int(math.Round(kw))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].KW != out[j].KW {
			return out[i].KW > out[j].KW
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TotalKW sums KW over all records; malformed values count as zero.
func TotalKW(records []record.Record) float64 {
	var sum float64
	for _, r := range records {
		sum += r.KWOrZero()
	}
	return sum
}
