package tables

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrTableNotAllowed = errors.New("table not allow-listed")

const Prefix = "Gefilterte_Adressen_"

const (
	Geesthacht = Prefix + "Geesthacht"
	Guelzow    = Prefix + "Gülzow"
	Hamwarde   = Prefix + "Hamwarde"
	Kollow     = Prefix + "Kollow"
	Wiershop   = Prefix + "Wiershop"
	Worth      = Prefix + "Worth"
)

var defaultTables = []string{
	Geesthacht,
	Guelzow,
	Hamwarde,
	Kollow,
	Wiershop,
	Worth,
}

// Defaults returns the built-in allow-list in load order.
func Defaults() []string {
	out := make([]string, len(defaultTables))
	copy(out, defaultTables)
	return out
}

// AllowList is an immutable set of table names that may be read or updated.
type AllowList struct {
	names []string
	set   map[string]struct{}
}

// New builds an allow-list from names, dropping blanks and duplicates while
// keeping the first-seen order. An empty input yields the defaults.
func New(names []string) AllowList {
	if len(names) == 0 {
		names = defaultTables
	}
	a := AllowList{set: make(map[string]struct{}, len(names))}
	for _, raw := range names {
		n := strings.TrimSpace(raw)
		if n == "" {
			continue
		}
		if _, ok := a.set[n]; ok {
			continue
		}
		a.set[n] = struct{}{}
		a.names = append(a.names, n)
	}
	return a
}

func (a AllowList) All() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

func (a AllowList) IsAllowed(table string) bool {
	_, ok := a.set[table]
	return ok
}

// Check returns an error wrapping ErrTableNotAllowed for tables outside the list.
func (a AllowList) Check(table string) error {
	if a.IsAllowed(table) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrTableNotAllowed, table)
}

func (a AllowList) Len() int {
	return len(a.names)
}

// DisplayNames returns the short names, sorted.
func (a AllowList) DisplayNames() []string {
	out := make([]string, 0, len(a.names))
	for _, n := range a.names {
		out = append(out, DisplayName(n))
	}
	sort.Strings(out)
	return out
}

// DisplayName strips the shared table prefix ("Gefilterte_Adressen_Worth" -> "Worth").
func DisplayName(table string) string {
	return strings.TrimPrefix(table, Prefix)
}

// FromDisplayName is the inverse of DisplayName. Names that already carry the
// prefix are returned unchanged.
func FromDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, Prefix) {
		return name
	}
	return Prefix + name
}
