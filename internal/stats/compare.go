package stats

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"geodash/internal/record"
	"geodash/internal/tables"
)

// MaxCompareItems bounds how many items can be compared side by side.
const MaxCompareItems = 5

var ErrTooManyItems = fmt.Errorf("at most %d items can be compared", MaxCompareItems)

type CompareKind string

const (
	CompareOrte     CompareKind = "orte"
	CompareSparten  CompareKind = "sparten"
	CompareTabellen CompareKind = "tabellen"
)

func ParseCompareKind(s string) (CompareKind, error) {
	switch k := CompareKind(strings.ToLower(strings.TrimSpace(s))); k {
	case CompareOrte, CompareSparten, CompareTabellen:
		return k, nil
	case "":
		return CompareOrte, nil
	default:
		return "", errors.New("unknown compare kind: " + s)
	}
}

type CompareStat struct {
	Name          string `json:"name"`
	Anzahl        int    `json:"anzahl"`
	UniqueArten   int    `json:"unique_arten"`
	UniqueSparten int    `json:"unique_sparten"`
}

// RadarRow holds one normalised metric (0..100) for every compared item.
type RadarRow struct {
	Subject string             `json:"subject"`
	Values  map[string]float64 `json:"values"`
}

type Comparison struct {
	Kind  CompareKind   `json:"kind"`
	Stats []CompareStat `json:"stats"`
	Radar []RadarRow    `json:"radar"`
}

// CompareItems lists the values that can be selected for a comparison kind.
// Table items use display names.
func CompareItems(records []record.Record, kind CompareKind, allow tables.AllowList) []string {
	switch kind {
	case CompareTabellen:
		out := make([]string, 0, allow.Len())
		for _, t := range allow.All() {
			out = append(out, tables.DisplayName(t))
		}
		return out
	case CompareSparten:
		return distinctSorted(records, BySparte)
	default:
		return distinctSorted(records, ByOrt)
	}
}

func distinctSorted(records []record.Record, key Key) []string {
	seen := map[string]struct{}{}
	for _, r := range records {
		if v := key(r); v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Compare computes per-item statistics and a normalised radar view. An empty
// selection yields a nil comparison.
func Compare(records []record.Record, kind CompareKind, items []string) (*Comparison, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > MaxCompareItems {
		return nil, ErrTooManyItems
	}

	selector := func(item string) func(record.Record) bool {
		switch kind {
		case CompareSparten:
			return func(r record.Record) bool { return r.Sparte == item }
		case CompareTabellen:
			table := tables.FromDisplayName(item)
			return func(r record.Record) bool { return r.Table == table }
		default:
			return func(r record.Record) bool { return r.Ort == item }
		}
	}

	out := &Comparison{Kind: kind, Stats: make([]CompareStat, 0, len(items))}
	for _, item := range items {
		match := selector(item)
		arten := map[string]struct{}{}
		sparten := map[string]struct{}{}
		n := 0
		for _, r := range records {
			if !match(r) {
				continue
			}
			n++
			if !strings.EqualFold(r.Art, "nan") {
				arten[r.Art] = struct{}{}
			}
			sparten[r.Sparte] = struct{}{}
		}
		st := CompareStat{Name: item, Anzahl: n, UniqueArten: len(arten), UniqueSparten: len(sparten)}
		if kind == CompareSparten {
			st.UniqueSparten = 1
		}
		out.Stats = append(out.Stats, st)
	}

	out.Radar = radar(out.Stats)
	return out, nil
}

func radar(stats []CompareStat) []RadarRow {
	metrics := []struct {
		subject string
		value   func(CompareStat) int
	}{
		{"Anzahl", func(s CompareStat) int { return s.Anzahl }},
		{"Arten", func(s CompareStat) int { return s.UniqueArten }},
		{"Sparten", func(s CompareStat) int { return s.UniqueSparten }},
	}

	rows := make([]RadarRow, 0, len(metrics))
	for _, m := range metrics {
		peak := 0
		for _, s := range stats {
			peak = max(peak, m.value(s))
		}
		row := RadarRow{Subject: m.subject, Values: make(map[string]float64, len(stats))}
		for _, s := range stats {
			if peak == 0 {
				row.Values[s.Name] = 0
				continue
			}
			row.Values[s.Name] = float64(m.value(s)) / float64(peak) * 100
		}
		rows = append(rows, row)
	}
	return rows
}

// ToggleSelection adds item when absent and removes it when present. Adding
// beyond MaxCompareItems returns ErrTooManyItems and the unchanged selection.
func ToggleSelection(selected []string, item string) ([]string, error) {
	out := make([]string, 0, len(selected)+1)
	removed := false
	for _, s := range selected {
		if s == item {
			removed = true
			continue
		}
		out = append(out, s)
	}
	if removed {
		return out, nil
	}
	if len(selected) >= MaxCompareItems {
		return selected, ErrTooManyItems
	}
	return append(out, item), nil
}
