package geocode

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"geodash/internal/apiclient"
	"geodash/internal/metrics"
	"geodash/internal/record"
)

// CoordWriter persists coordinates for every row of a table matching a key.
// *apiclient.Client and the stores satisfy this.
type CoordWriter interface {
	UpdateCoords(ctx context.Context, table string, u record.CoordUpdate) (int64, error)
}

type FillStats struct {
	Missing  int `json:"missing"`
	Geocoded int `json:"geocoded"`
	Updated  int `json:"updated"`
	NotFound int `json:"not_found"`
	NoResult int `json:"no_result"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Filler geocodes records without coordinates and, when a writer is set,
// stores the result through the coordinate update path.
type Filler struct {
	log     zerolog.Logger
	geo     Geocoder
	writer  CoordWriter
	metrics *metrics.Metrics
}

// NewFiller returns a filler. w may be nil, in which case coordinates are only
// set on the returned records.
func NewFiller(log zerolog.Logger, g Geocoder, w CoordWriter, m *metrics.Metrics) *Filler {
	return &Filler{log: log, geo: g, writer: w, metrics: m}
}

type fillKey struct {
	table string
	key   record.Key
}

// Fill returns a copy of records with coordinates filled in where the
// geocoder found them. Records sharing a table and key are resolved and
// written once. A missing row on update is counted, not returned as an error.
func (f *Filler) Fill(ctx context.Context, records []record.Record) ([]record.Record, FillStats, error) {
	return f.fill(ctx, records, nil)
}

// fill is Fill with a callback for keys a retry would not change: the
// geocoder found nothing, or no stored row matched the update.
func (f *Filler) fill(ctx context.Context, records []record.Record, settled func(fillKey)) ([]record.Record, FillStats, error) {
	out := make([]record.Record, len(records))
	copy(out, records)

	var st FillStats
	done := map[fillKey]*Result{}
	for i := range out {
		r := out[i]
		if r.HasCoords() {
			continue
		}
		st.Missing++
		if !r.Key().Complete() {
			st.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, st, err
		}

		k := fillKey{table: r.Table, key: r.Key()}
		res, seen := done[k]
		if !seen {
			before := st.NoResult + st.NotFound
			res = f.resolve(ctx, r, &st)
			done[k] = res
			if settled != nil && st.NoResult+st.NotFound > before {
				settled(k)
			}
		}
		if res == nil {
			continue
		}
		lat, lon := res.Lat, res.Lon
		out[i].Latitude = &lat
		out[i].Longitude = &lon
		st.Geocoded++
	}
	return out, st, ctx.Err()
}

func (f *Filler) resolve(ctx context.Context, r record.Record, st *FillStats) *Result {
	log := f.log.With().Str("table", r.Table).Str("address", r.Address).Logger()

	res, err := f.geo.Geocode(ctx, r.GeocodeQuery())
	if errors.Is(err, ErrNoResult) {
		st.NoResult++
		return nil
	}
	if err != nil {
		st.Failed++
		log.Warn().Err(err).Msg("geocoding failed")
		return nil
	}
	if f.writer == nil || r.Table == "" {
		return &res
	}

	n, err := f.writer.UpdateCoords(ctx, r.Table, record.CoordUpdateFor(r, res.Lat, res.Lon))
	switch {
	case errors.Is(err, apiclient.ErrNotFound), err == nil && n == 0:
		st.NotFound++
		f.metrics.IncCoordUpdate("not_found")
		log.Warn().Msg("no row matched coordinate update")
	case err != nil:
		st.Failed++
		f.metrics.IncCoordUpdate("error")
		log.Error().Err(err).Msg("coordinate update failed")
		return nil
	default:
		st.Updated += int(n)
		f.metrics.IncCoordUpdate("updated")
	}
	return &res
}
