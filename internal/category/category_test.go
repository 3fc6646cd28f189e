package category

import (
	"testing"

	"geodash/internal/record"
)

func TestSparte(t *testing.T) {
	cases := map[string]string{
		"Energie":            SparteEnergie,
		"  STROM Netz ":      SparteStrom,
		"Gasversorgung":      SparteGas,
		"Wasser / Abwasser":  SparteWasser,
		"Telekommunikation":  SparteTelekom,
		"Fernwärme":          Other,
		"":                   Other,
		"Energie und Wasser": SparteEnergie,
	}
	for in, want := range cases {
		if got := Sparte(in).Category; got != want {
			t.Fatalf("Sparte(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestArt(t *testing.T) {
	if got := Art("Neuinstallation").Category; got != ArtInstallation {
		t.Fatalf("expected installation, got %s", got)
	}
	if b := Art("Reparatur Hausanschluss"); b.Category != ArtReparatur || b.Colour != "red" {
		t.Fatalf("unexpected badge: %+v", b)
	}
	if b := Art("NaN"); b.Category != Other || b.Colour != "gray" {
		t.Fatalf("unexpected badge for NaN: %+v", b)
	}
}

func TestForRecord(t *testing.T) {
	tags := ForRecord(record.Record{Sparte: "Gas", Art: "Wartung"})
	if tags.Sparte.Colour != "orange" || tags.Art.Category != ArtWartung {
		t.Fatalf("unexpected tags: %+v", tags)
	}
}

func TestCategoriesEndWithOther(t *testing.T) {
	s := SparteCategories()
	if len(s) != 6 || s[len(s)-1] != Other {
		t.Fatalf("unexpected sparte categories: %v", s)
	}
	if a := ArtCategories(); len(a) != 5 {
		t.Fatalf("unexpected art categories: %v", a)
	}
}
