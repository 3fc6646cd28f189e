package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"geodash/internal/apiclient"
	"geodash/internal/config"
	"geodash/internal/db"
	"geodash/internal/geocode"
	"geodash/internal/httpapi"
	"geodash/internal/loader"
	"geodash/internal/metrics"
	"geodash/internal/record"
)

// dataStore is what the commands need from either backend.
type dataStore interface {
	httpapi.Store
	loader.Fetcher
	InsertRecord(ctx context.Context, table string, r record.Record) error
}

// app bundles the per-command configuration, logger and metrics.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := configFrom(cmd.Context())
	if err != nil {
		return nil, err
	}
	log := httpapi.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel)
	if cfg.FileUsed != "" {
		log.Debug().Str("file", cfg.FileUsed).Msg("using config file")
	}
	return &app{cfg: cfg, log: log}, nil
}

// openStore connects to the configured backend. The returned func releases it.
func (a *app) openStore(ctx context.Context) (dataStore, func(), error) {
	switch a.cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := db.OpenSQLite(ctx, a.cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", a.cfg.Store.SQLitePath, err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		p, err := db.Open(ctx, a.cfg.Store.Postgres.ConnString())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return p, p.Close, nil
	}
}

// remote returns an API client when api.url is configured.
func (a *app) remote() *apiclient.Client {
	if a.cfg.API.URL == "" {
		return nil
	}
	c := apiclient.New(a.cfg.API.URL)
	if a.cfg.API.Timeout > 0 {
		c.HTTP.Timeout = a.cfg.API.Timeout
	}
	return c
}

// source is the fetcher and coordinate writer used for loading: the remote API
// when configured, otherwise the store.
type source interface {
	loader.Fetcher
	geocode.CoordWriter
}

func (a *app) openSource(ctx context.Context) (source, func(), error) {
	if c := a.remote(); c != nil {
		a.log.Debug().Str("url", c.BaseURL).Msg("loading from remote api")
		return c, func() {}, nil
	}
	s, closeFn, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, closeFn, nil
}

func (a *app) newLoader(src loader.Fetcher) *loader.Loader {
	return loader.New(a.log, src, a.cfg.AllowList().All(), a.metrics)
}

func (a *app) newFiller(w geocode.CoordWriter) *geocode.Filler {
	g := geocode.NewNominatim(geocode.NominatimOptions{
		BaseURL:     a.cfg.Geocode.URL,
		UserAgent:   a.cfg.Geocode.UserAgent,
		MinInterval: a.cfg.Geocode.MinInterval,
		CacheTTL:    a.cfg.Geocode.CacheTTL,
	}, a.metrics)
	return geocode.NewFiller(a.log, g, w, a.metrics)
}
