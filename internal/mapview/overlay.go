package mapview

import (
	"sort"

	geohash "github.com/TomiHiltunen/geohash-golang"
	geojson "github.com/paulmach/go.geojson"

	"geodash/internal/record"
	"geodash/internal/tables"
)

// Overlay is a renderable layer built from the records that have coordinates.
type Overlay interface {
	Kind() Kind
	// Bounds covers every point of the overlay; ok is false when it is empty.
	Bounds() (b Bounds, ok bool)
	FeatureCollection() *geojson.FeatureCollection
}

type point struct {
	lat, lon float64
	rec      record.Record
}

func pointsOf(records []record.Record) ([]point, Bounds, bool) {
	b := emptyBounds()
	out := make([]point, 0, len(records))
	for _, r := range records {
		if !r.HasCoords() {
			continue
		}
		p := point{lat: *r.Latitude, lon: *r.Longitude, rec: r}
		b.extend(p.lat, p.lon)
		out = append(out, p)
	}
	return out, b, len(out) > 0
}

type baseOverlay struct {
	kind   Kind
	bounds Bounds
	ok     bool
	fc     *geojson.FeatureCollection
}

func (o *baseOverlay) Kind() Kind                                    { return o.kind }
func (o *baseOverlay) Bounds() (Bounds, bool)                        { return o.bounds, o.ok }
func (o *baseOverlay) FeatureCollection() *geojson.FeatureCollection { return o.fc }

// HeatOverlay holds one weighted point per record.
type HeatOverlay struct {
	baseOverlay
	Options HeatOptions
}

func NewHeatOverlay(records []record.Record, policy WeightPolicy, opts HeatOptions) *HeatOverlay {
	pts, b, ok := pointsOf(records)
	fc := geojson.NewFeatureCollection()
	peak := 0.0
	for _, p := range pts {
		w := heatWeight(p.rec, policy)
		peak = max(peak, w)
		f := geojson.NewPointFeature([]float64{p.lon, p.lat})
		f.SetProperty("weight", w)
		fc.AddFeature(f)
	}
	opts.Max = peak
	return &HeatOverlay{
		baseOverlay: baseOverlay{kind: KindHeatmap, bounds: b, ok: ok, fc: fc},
		Options:     opts,
	}
}

func heatWeight(r record.Record, policy WeightPolicy) float64 {
	if policy != WeightKW {
		return 1
	}
	if kw, ok := r.KWValue(); ok && kw > 0 {
		return kw
	}
	return 1
}

// MarkerOverlay holds one feature per record carrying the popup fields.
type MarkerOverlay struct {
	baseOverlay
}

func NewMarkerOverlay(records []record.Record) *MarkerOverlay {
	pts, b, ok := pointsOf(records)
	fc := geojson.NewFeatureCollection()
	for _, p := range pts {
		f := geojson.NewPointFeature([]float64{p.lon, p.lat})
		setPopup(f, p.rec)
		fc.AddFeature(f)
	}
	return &MarkerOverlay{baseOverlay{kind: KindMarker, bounds: b, ok: ok, fc: fc}}
}

func setPopup(f *geojson.Feature, r record.Record) {
	f.SetProperty("sparte", r.Sparte)
	f.SetProperty("address", r.Address)
	f.SetProperty("plz", r.PLZ)
	f.SetProperty("art", r.Art)
	if r.KW != "" {
		f.SetProperty("kw", r.KW)
	}
	if r.Notiz != "" {
		f.SetProperty("notiz", r.Notiz)
	}
	if r.Datum != "" {
		f.SetProperty("datum", r.Datum)
	}
	if r.Table != "" {
		f.SetProperty("table", tables.DisplayName(r.Table))
	}
}

// ClusterOverlay groups records sharing a geohash cell. The cell size shrinks
// as the zoom grows.
type ClusterOverlay struct {
	baseOverlay
	Zoom      int
	Precision int
}

type cluster struct {
	hash           string
	sumLat, sumLon float64
	kw             float64
	n              int
	first          record.Record
}

func NewClusterOverlay(records []record.Record, zoom int) *ClusterOverlay {
	pts, b, ok := pointsOf(records)
	precision := precisionForZoom(zoom)

	cells := map[string]*cluster{}
	for _, p := range pts {
		h := geohash.Encode(p.lat, p.lon)
		if len(h) > precision {
			h = h[:precision]
		}
		c := cells[h]
		if c == nil {
			c = &cluster{hash: h, first: p.rec}
			cells[h] = c
		}
		c.sumLat += p.lat
		c.sumLon += p.lon
		c.kw += p.rec.KWOrZero()
		c.n++
	}

	ordered := make([]*cluster, 0, len(cells))
	for _, c := range cells {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].n != ordered[j].n {
			return ordered[i].n > ordered[j].n
		}
		return ordered[i].hash < ordered[j].hash
	})

	fc := geojson.NewFeatureCollection()
	for _, c := range ordered {
		n := float64(c.n)
		f := geojson.NewPointFeature([]float64{c.sumLon / n, c.sumLat / n})
		f.SetProperty("geohash", c.hash)
		f.SetProperty("count", c.n)
		f.SetProperty("kw_total", c.kw)
		if c.n == 1 {
			setPopup(f, c.first)
		} else {
			f.SetProperty("cluster", true)
		}
		fc.AddFeature(f)
	}

	return &ClusterOverlay{
		baseOverlay: baseOverlay{kind: KindCluster, bounds: b, ok: ok, fc: fc},
		Zoom:        zoom,
		Precision:   precision,
	}
}

// precisionForZoom maps a map zoom to a geohash length. A length-4 cell is
// roughly 39km wide, length 7 roughly 150m.
func precisionForZoom(zoom int) int {
	switch {
	case zoom <= 3:
		return 2
	case zoom <= 5:
		return 3
	case zoom <= 8:
		return 4
	case zoom <= 11:
		return 5
	case zoom <= 14:
		return 6
	case zoom <= 16:
		return 7
	default:
		return 8
	}
}

func build(records []record.Record, kind Kind, zoom int, opts Options) Overlay {
	switch kind {
	case KindCluster:
		return NewClusterOverlay(records, zoom)
	case KindMarker:
		return NewMarkerOverlay(records)
	default:
		return NewHeatOverlay(records, opts.Weight, opts.Heat)
	}
}
