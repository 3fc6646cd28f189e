package filter

import (
	"testing"
	"time"

	"geodash/internal/record"
)

var now = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func fixture() []record.Record {
	return []record.Record{
		{Ort: "A", Art: "X", KW: "10", Datum: "2021-05-01", Address: "A, Hauptstr. 1", Sparte: "Strom", PLZ: "21502"},
		{Ort: "B", Art: "Y", KW: "bad", Datum: "", Address: "B, Nebenweg 2", Sparte: "Gas", PLZ: "21493"},
	}
}

func ptr(v float64) *float64 { return &v }

func TestApply_PlaceAllowList(t *testing.T) {
	got := Apply(fixture(), State{Places: []string{"A"}}, now)
	if len(got) != 1 || got[0].Ort != "A" {
		t.Fatalf("expected exactly the first record, got %+v", got)
	}
}

func TestApply_DefaultReturnsCopy(t *testing.T) {
	in := fixture()
	got := Apply(in, Default(), now)
	if len(got) != len(in) {
		t.Fatalf("expected all records, got %d", len(got))
	}
	got[0].Ort = "mutated"
	if in[0].Ort != "A" {
		t.Fatalf("expected result not to alias input")
	}
}

func TestApply_KWRangeTreatsMalformedAsZero(t *testing.T) {
	got := Apply(fixture(), State{KW: Range{Max: ptr(5)}}, now)
	if len(got) != 1 || got[0].Ort != "B" {
		t.Fatalf("expected malformed KW to count as 0, got %+v", got)
	}
}

func TestApply_YearRangeExcludesUndated(t *testing.T) {
	got := Apply(fixture(), State{Years: YearRange{From: 2000, To: 2025}}, now)
	if len(got) != 1 || got[0].Ort != "A" {
		t.Fatalf("expected undated record to be excluded, got %+v", got)
	}
}

func TestApply_SearchIsCaseInsensitive(t *testing.T) {
	got := Apply(fixture(), State{Search: "nebenWEG"}, now)
	if len(got) != 1 || got[0].Ort != "B" {
		t.Fatalf("expected search hit on B, got %+v", got)
	}
}

func TestApply_SubstringColumns(t *testing.T) {
	got := Apply(fixture(), State{Substring: Substring{Sparte: "stro", PLZ: "215"}}, now)
	if len(got) != 1 || got[0].Ort != "A" {
		t.Fatalf("expected substring hit on A, got %+v", got)
	}
}

func TestApply_SubsetAndEmptiness(t *testing.T) {
	states := []State{
		{},
		{Places: []string{"A", "B"}},
		{Types: []string{"Z"}},
		{Places: []string{"A"}, Types: []string{"Y"}},
		{KW: Range{Min: ptr(1), Max: ptr(100)}},
		{Years: YearRange{From: 2022}},
		{Search: "haupt"},
	}
	all := fixture()
	for i, s := range states {
		got := Apply(all, s, now)
		expected := 0
		for _, r := range all {
			if Match(r, s, now) {
				expected++
			}
		}
		if len(got) != expected {
			t.Fatalf("state %d: expected %d matches, got %d", i, expected, len(got))
		}
		for _, r := range got {
			found := false
			for _, src := range all {
				if src == r {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("state %d: result %+v is not part of the loaded set", i, r)
			}
		}
	}
}

func TestOptionsFor(t *testing.T) {
	in := append(fixture(), record.Record{Ort: "A", Art: "NaN", KW: "30", Datum: "2019-01-01"})
	opts := OptionsFor(in, now)
	if len(opts.Places) != 2 || opts.Places[0] != "A" {
		t.Fatalf("unexpected places: %v", opts.Places)
	}
	if len(opts.Types) != 2 {
		t.Fatalf("expected NaN to be skipped, got %v", opts.Types)
	}
	if opts.YearMin != 2019 || opts.YearMax != 2021 {
		t.Fatalf("unexpected year bounds %d..%d", opts.YearMin, opts.YearMax)
	}
	if opts.KWMin != 10 || opts.KWMax != 30 {
		t.Fatalf("unexpected kw bounds %v..%v", opts.KWMin, opts.KWMax)
	}
}

func TestOptionsFor_EmptyDefaultsToCurrentYear(t *testing.T) {
	opts := OptionsFor(nil, now)
	if opts.YearMin != 2025 || opts.YearMax != 2025 {
		t.Fatalf("expected current year bounds, got %d..%d", opts.YearMin, opts.YearMax)
	}
}
