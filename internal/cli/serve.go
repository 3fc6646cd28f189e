package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"geodash/internal/dashboard"
	"geodash/internal/geocode"
	"geodash/internal/httpapi"
	"geodash/internal/loader"
	"geodash/internal/metrics"
)

func newServeCommand() *cobra.Command {
	var noPreload bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and the dashboard",
		Long: `Serve the data API (/api/data/{table}, /api/update-coords/{table}), the
dashboard views under /dashboard, health probes and Prometheus metrics.

The dashboard is loaded once at startup; POST /dashboard/reload loads again.`,
		Example: `  # Serve against Postgres using PG* variables
  geodash serve

  # Serve a local SQLite database on port 8080
  geodash serve --store sqlite --sqlite-path geodash.db --port 8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			a.metrics = metrics.New()
			return runServe(cmd.Context(), a, !noPreload)
		},
	}
	cmd.Flags().BoolVar(&noPreload, "no-preload", false, "Do not load the dashboard at startup")
	return cmd
}

func runServe(ctx context.Context, a *app, preload bool) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var src loader.Fetcher = store
	var writer geocode.CoordWriter = store
	if c := a.remote(); c != nil {
		src, writer = c, c
	}

	page := dashboard.New(a.log, a.newLoader(src), dashboard.Options{
		Tables:       a.cfg.AllowList(),
		Map:          a.cfg.MapOptions(),
		TimelineFrom: a.cfg.Stats.TimelineFrom,
		TimelineTo:   a.cfg.Stats.TimelineTo,
	})
	defer page.Close()

	h := httpapi.NewHandler(a.log, store, a.cfg.AllowList(), page, a.metrics)

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
	}

	eg.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Strs("tables", a.cfg.AllowList().All()).Msg("geodash listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		a.log.Info().Msg("shutdown complete")
		return err
	})

	if preload {
		eg.Go(func() error {
			res, err := page.Load(egctx)
			if err != nil {
				a.log.Warn().Err(err).Msg("initial dashboard load failed")
				return nil
			}
			a.log.Info().Int("records", res.Total).Int("failed_tables", len(res.Failed())).Msg("dashboard loaded")
			return nil
		})
	}

	if a.cfg.Geocode.Enabled {
		w := geocode.NewWorker(a.log, src, a.newFiller(writer), geocode.Options{
			PollInterval: a.cfg.Geocode.PollInterval,
			BatchSize:    a.cfg.Geocode.BatchSize,
			SkipTTL:      a.cfg.Geocode.CacheTTL,
			Tables:       a.cfg.AllowList().All(),
		})
		eg.Go(func() error {
			w.Run(egctx)
			return nil
		})
	}

	return eg.Wait()
}
