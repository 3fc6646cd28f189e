package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"geodash/internal/loader"
	"geodash/internal/record"
)

var errNoProgress = errors.New("geocode pass failed without updating any row")

// Worker periodically fills in missing coordinates for every table.
type Worker struct {
	log          zerolog.Logger
	src          loader.Fetcher
	filler       *Filler
	tables       []string
	pollInterval time.Duration
	batchSize    int
	skipTTL      time.Duration
	now          func() time.Time

	// skip holds keys that came back without a usable result, until the
	// stored time. Only the Run goroutine touches it.
	skip map[fillKey]time.Time
}

type Options struct {
	PollInterval time.Duration
	// BatchSize bounds how many records without coordinates are handled per pass.
	BatchSize int
	// SkipTTL is how long an address without a result is left out of later
	// batches. Defaults to the Nominatim cache TTL.
	SkipTTL time.Duration
	Tables  []string
}

func NewWorker(log zerolog.Logger, src loader.Fetcher, filler *Filler, opts Options) *Worker {
	pi := opts.PollInterval
	if pi <= 0 {
		pi = time.Minute
	}
	bs := opts.BatchSize
	if bs <= 0 {
		bs = 50
	}
	ttl := opts.SkipTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	tables := make([]string, len(opts.Tables))
	copy(tables, opts.Tables)
	return &Worker{
		log:          log,
		src:          src,
		filler:       filler,
		tables:       tables,
		pollInterval: pi,
		batchSize:    bs,
		skipTTL:      ttl,
		now:          time.Now,
		skip:         map[fillKey]time.Time{},
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.src == nil || w.filler == nil {
		return
	}

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		for {
			processed, err := w.runOnce(ctx)
			if err != nil {
				consecutiveFailures++
				break
			}
			consecutiveFailures = 0
			if !processed {
				break
			}
		}

		timer.Reset(backoffDuration(w.pollInterval, consecutiveFailures))
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = time.Minute
	}
	if failures <= 0 {
		return base
	}

	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > 30*time.Minute {
		return 30 * time.Minute
	}
	return d
}

// runOnce geocodes up to one batch. processed reports whether any row was
// updated or newly set aside, in which case the caller drains the next batch
// right away.
func (w *Worker) runOnce(ctx context.Context) (bool, error) {
	now := w.now()
	for k, until := range w.skip {
		if !now.Before(until) {
			delete(w.skip, k)
		}
	}

	batch := make([]record.Record, 0, w.batchSize)
	var fetchErr error
	for _, table := range w.tables {
		if len(batch) >= w.batchSize {
			break
		}
		rows, err := w.src.FetchTable(ctx, table)
		if err != nil {
			w.log.Warn().Err(err).Str("table", table).Msg("geocode worker failed to fetch table")
			fetchErr = err
			continue
		}
		for _, row := range rows {
			r := record.FromRow(row, table)
			if r.HasCoords() || !r.Key().Complete() {
				continue
			}
			if _, ok := w.skip[fillKey{table: table, key: r.Key()}]; ok {
				continue
			}
			batch = append(batch, r)
			if len(batch) >= w.batchSize {
				break
			}
		}
	}
	if len(batch) == 0 {
		return false, fetchErr
	}

	start := time.Now()
	settled := 0
	_, st, err := w.filler.fill(ctx, batch, func(k fillKey) {
		w.skip[k] = now.Add(w.skipTTL)
		settled++
	})
	w.log.Info().
		Int("batch", len(batch)).
		Int("geocoded", st.Geocoded).
		Int("updated", st.Updated).
		Int("not_found", st.NotFound).
		Int("no_result", st.NoResult).
		Int("failed", st.Failed).
		Int("set_aside", settled).
		Dur("duration", time.Since(start)).
		Msg("geocode pass finished")
	if err != nil {
		return false, err
	}
	if st.Failed > 0 && st.Updated == 0 && settled == 0 {
		return false, errNoProgress
	}
	return st.Updated > 0 || settled > 0, nil
}
