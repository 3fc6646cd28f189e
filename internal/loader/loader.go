// Package loader aggregates the rows of every allow-listed table into one
// record set.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"geodash/internal/metrics"
	"geodash/internal/record"
)

// Fetcher returns the raw rows of a single table.
//
// *apiclient.Client and the store adapters satisfy this.
type Fetcher interface {
	FetchTable(ctx context.Context, table string) ([]map[string]any, error)
}

type TableResult struct {
	Table string `json:"table"`
	Count int    `json:"count"`
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

type Result struct {
	RunID    string          `json:"run_id"`
	Records  []record.Record `json:"-"`
	Tables   []TableResult   `json:"tables"`
	Total    int             `json:"total"`
	Geocoded int             `json:"geocoded"`
	Duration time.Duration   `json:"duration"`
}

// Failed reports the tables whose fetch did not succeed.
func (r Result) Failed() []TableResult {
	var out []TableResult
	for _, t := range r.Tables {
		if t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

type Loader struct {
	log     zerolog.Logger
	fetch   Fetcher
	tables  []string
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(log zerolog.Logger, fetch Fetcher, tables []string, m *metrics.Metrics) *Loader {
	t := make([]string, len(tables))
	copy(t, tables)
	return &Loader{
		log:     log,
		fetch:   fetch,
		tables:  t,
		metrics: m,
		now:     time.Now,
	}
}

func (l *Loader) Tables() []string {
	out := make([]string, len(l.tables))
	copy(out, l.tables)
	return out
}

// Load fetches every table in order. A failing table yields a destructive
// notification and is skipped; the rows of all other tables are kept. A
// summary notification follows once every table has been attempted.
//
// Once ctx is done the remaining tables are reported as failed, each with its
// own notification, without being fetched. Callers that must not be cut short
// pass a context without cancellation.
func (l *Loader) Load(ctx context.Context, n Notifier) Result {
	if n == nil {
		n = LogNotifier{Log: l.log}
	}
	start := l.now()
	res := Result{RunID: uuid.NewString(), Tables: make([]TableResult, 0, len(l.tables))}
	log := l.log.With().Str("run_id", res.RunID).Logger()

	fail := func(tr TableResult, err error) TableResult {
		tr.Err = err
		tr.Error = err.Error()
		l.metrics.IncTableFetch(tr.Table, "error")
		log.Warn().Err(err).Str("table", tr.Table).Msg("table fetch failed")
		n.Notify(Notification{
			Title:       "Fehler bei " + tr.Table,
			Description: "Konnte keine Daten laden",
			Variant:     VariantDestructive,
		})
		return tr
	}

	for _, table := range l.tables {
		tr := TableResult{Table: table}
		if err := ctx.Err(); err != nil {
			res.Tables = append(res.Tables, fail(tr, err))
			continue
		}

		rows, err := l.fetch.FetchTable(ctx, table)
		if err != nil {
			res.Tables = append(res.Tables, fail(tr, fmt.Errorf("fetch %s: %w", table, err)))
			continue
		}

		for _, row := range rows {
			res.Records = append(res.Records, record.FromRow(row, table))
		}
		tr.Count = len(rows)
		res.Tables = append(res.Tables, tr)
		l.metrics.IncTableFetch(table, "ok")
		log.Debug().Str("table", table).Int("rows", len(rows)).Msg("table fetched")
	}

	for _, r := range res.Records {
		if r.HasCoords() {
			res.Geocoded++
		}
	}
	res.Total = len(res.Records)
	res.Duration = l.now().Sub(start)
	l.metrics.ObserveLoad(res.Duration, res.Total)

	n.Notify(Notification{
		Title:       "Daten geladen",
		Description: fmt.Sprintf("%d Anschlüsse analysiert, %d mit Koordinaten", res.Total, res.Geocoded),
		Variant:     VariantDefault,
	})
	log.Info().
		Int("records", res.Total).
		Int("geocoded", res.Geocoded).
		Int("failed_tables", len(res.Failed())).
		Dur("duration", res.Duration).
		Msg("load finished")
	return res
}
