package dashboard

import (
	"fmt"

	"geodash/internal/category"
	"geodash/internal/filter"
	"geodash/internal/mapview"
	"geodash/internal/record"
	"geodash/internal/stats"
)

const (
	chartTopN      = 10
	analyticsTypes = 8
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

type Charts struct {
	TopPlaces []stats.Count     `json:"top_places"`
	Sparten   []stats.Count     `json:"sparten"`
	Arten     []stats.Count     `json:"arten"`
	KWByPlace []stats.PlaceKW   `json:"kw_by_place"`
	Timeline  []stats.YearCount `json:"timeline"`
}

type Analytics struct {
	Summary stats.Summary     `json:"summary"`
	ByYear  []stats.YearCount `json:"by_year"`
	ByType  []stats.TypeCount `json:"by_type"`
}

// TableRow is a record as shown in the data table, numbered from 1.
type TableRow struct {
	ID        int           `json:"id"`
	Table     string        `json:"table"`
	Sparte    string        `json:"sparte"`
	Ort       string        `json:"ort"`
	PLZ       string        `json:"plz"`
	Address   string        `json:"address"`
	Art       string        `json:"art"`
	KW        string        `json:"kw"`
	Datum     string        `json:"datum"`
	Notiz     string        `json:"notiz"`
	Latitude  *float64      `json:"latitude,omitempty"`
	Longitude *float64      `json:"longitude,omitempty"`
	Tags      category.Tags `json:"tags"`
}

type TablePage struct {
	Rows     []TableRow `json:"rows"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Pages    int        `json:"pages"`
}

type CompareView struct {
	Kind       stats.CompareKind `json:"kind"`
	Available  []string          `json:"available"`
	Selected   []string          `json:"selected"`
	Comparison *stats.Comparison `json:"comparison,omitempty"`
}

func (p *Page) Stats() stats.Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return stats.Summarize(p.filteredLocked(), p.now())
}

func (p *Page) FilterOptions() filter.Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return filter.OptionsFor(p.records, p.now())
}

func (p *Page) Charts() Charts {
	p.mu.Lock()
	defer p.mu.Unlock()
	recs := p.filteredLocked()
	return Charts{
		TopPlaces: stats.TopN(stats.Distribution(recs, stats.ByOrt), chartTopN),
		Sparten:   stats.Distribution(recs, stats.BySparte),
		Arten:     stats.Distribution(recs, stats.ByArt),
		KWByPlace: stats.KWByPlace(recs, chartTopN),
		Timeline:  stats.Timeline(recs, p.opts.TimelineFrom, p.opts.TimelineTo, p.now()),
	}
}

func (p *Page) Analytics() Analytics {
	p.mu.Lock()
	defer p.mu.Unlock()
	recs := p.filteredLocked()
	now := p.now()
	byType := stats.ByType(recs)
	if len(byType) > analyticsTypes {
		byType = byType[:analyticsTypes]
	}
	return Analytics{
		Summary: stats.Summarize(recs, now),
		ByYear:  stats.ByYear(recs, now),
		ByType:  byType,
	}
}

// Table returns one page of the filtered records. page is 1-based and is
// clamped to the available range.
func (p *Page) Table(page, size int) TablePage {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	p.mu.Lock()
	recs := p.filteredLocked()
	p.mu.Unlock()

	pages := (len(recs) + size - 1) / size
	if page < 1 {
		page = 1
	}
	if pages > 0 && page > pages {
		page = pages
	}
	start := (page - 1) * size
	end := min(start+size, len(recs))

	out := TablePage{Rows: []TableRow{}, Total: len(recs), Page: page, PageSize: size, Pages: pages}
	for i := start; i < end; i++ {
		out.Rows = append(out.Rows, tableRow(i+1, recs[i]))
	}
	return out
}

func tableRow(id int, r record.Record) TableRow {
	return TableRow{
		ID:        id,
		Table:     r.Table,
		Sparte:    r.Sparte,
		Ort:       r.Ort,
		PLZ:       r.PLZ,
		Address:   r.Address,
		Art:       r.Art,
		KW:        r.KW,
		Datum:     r.Datum,
		Notiz:     r.Notiz,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Tags:      category.ForRecord(r),
	}
}

func (p *Page) Map() (mapview.View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, err := p.m.Snapshot()
	return v, mapErr(err)
}

// Compare compares the selected items over the filtered records. Table items
// are given by display name.
func (p *Page) Compare(kind stats.CompareKind, items []string) (CompareView, error) {
	p.mu.Lock()
	recs := p.filteredLocked()
	p.mu.Unlock()

	view := CompareView{
		Kind:      kind,
		Available: stats.CompareItems(recs, kind, p.opts.Tables),
		Selected:  items,
	}
	if view.Selected == nil {
		view.Selected = []string{}
	}

	cmp, err := stats.Compare(recs, kind, items)
	if err != nil {
		return view, err
	}
	view.Comparison = cmp
	return view, nil
}

func importDescription(total, geocoded int) string {
	return fmt.Sprintf("%d Einträge, davon %d mit Koordinaten", total, geocoded)
}
