package tables

import (
	"errors"
	"testing"
)

func TestNew_DefaultsWhenEmpty(t *testing.T) {
	a := New(nil)
	if a.Len() != 6 {
		t.Fatalf("expected 6 default tables, got %d", a.Len())
	}
	if !a.IsAllowed(Guelzow) {
		t.Fatalf("expected %q to be allowed", Guelzow)
	}
	if a.IsAllowed("users") {
		t.Fatalf("expected arbitrary table to be rejected")
	}
}

func TestNew_DropsBlanksAndDuplicates(t *testing.T) {
	a := New([]string{" A ", "", "B", "A"})
	got := a.All()
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("unexpected allow-list: %v", got)
	}
}

func TestDisplayName_RoundTrip(t *testing.T) {
	if got := DisplayName(Worth); got != "Worth" {
		t.Fatalf("expected Worth, got %q", got)
	}
	if got := FromDisplayName("Worth"); got != Worth {
		t.Fatalf("expected %q, got %q", Worth, got)
	}
	if got := FromDisplayName(Worth); got != Worth {
		t.Fatalf("expected prefixed name to stay unchanged, got %q", got)
	}
}

func TestCheck(t *testing.T) {
	a := New(nil)
	if err := a.Check(Worth); err != nil {
		t.Fatalf("expected %q to pass, got %v", Worth, err)
	}
	if err := a.Check("pg_user"); !errors.Is(err, ErrTableNotAllowed) {
		t.Fatalf("expected ErrTableNotAllowed, got %v", err)
	}
}
