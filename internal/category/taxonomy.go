package category

import "strings"

const (
	SparteEnergie = "energie"
	SparteWasser  = "wasser"
	SparteGas     = "gas"
	SparteStrom   = "strom"
	SparteTelekom = "telekom"

	ArtInstallation = "installation"
	ArtWartung      = "wartung"
	ArtReparatur    = "reparatur"
	ArtKontrolle    = "kontrolle"

	Other = "other"
)

// rule pairs a category with the badge colour clients render it in.
// Order matters: the first keyword contained in the value wins.
type rule struct {
	category string
	colour   string
}

var sparteRules = []rule{
	{SparteEnergie, "blue"},
	{SparteWasser, "cyan"},
	{SparteGas, "orange"},
	{SparteStrom, "yellow"},
	{SparteTelekom, "purple"},
}

var artRules = []rule{
	{ArtInstallation, "green"},
	{ArtWartung, "blue"},
	{ArtReparatur, "red"},
	{ArtKontrolle, "purple"},
}

const otherColour = "gray"

func SparteCategories() []string { return categories(sparteRules) }

func ArtCategories() []string { return categories(artRules) }

func categories(rules []rule) []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}
	return append(out, Other)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
