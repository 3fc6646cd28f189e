// Package category assigns badge categories to the free-text Sparte and Art
// columns by keyword.
package category

import (
	"strings"

	"geodash/internal/record"
)

type Badge struct {
	Category string `json:"category"`
	Colour   string `json:"colour"`
}

// Tags is the pair of badges shown next to a table row.
type Tags struct {
	Sparte Badge `json:"sparte"`
	Art    Badge `json:"art"`
}

func Sparte(value string) Badge { return classify(sparteRules, value) }

func Art(value string) Badge { return classify(artRules, value) }

func ForRecord(r record.Record) Tags {
	return Tags{Sparte: Sparte(r.Sparte), Art: Art(r.Art)}
}

func classify(rules []rule, value string) Badge {
	v := normalize(value)
	if v != "" {
		for _, r := range rules {
			if strings.Contains(v, r.category) {
				return Badge{Category: r.category, Colour: r.colour}
			}
		}
	}
	return Badge{Category: Other, Colour: otherColour}
}
