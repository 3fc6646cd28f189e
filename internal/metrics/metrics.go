package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	tableFetches        *prometheus.CounterVec
	loadDuration        prometheus.Histogram
	loadedRecords       prometheus.Gauge
	geocodeLookups      *prometheus.CounterVec
	coordUpdates        *prometheus.CounterVec
}

// New creates a fresh Metrics registry with HTTP, loader and geocoding metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geodash",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by geodash",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geodash",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by geodash",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	tableFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geodash",
		Name:      "table_fetches_total",
		Help:      "Table fetches performed by the loader, by table and outcome",
	}, []string{"table", "outcome"})

	loadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geodash",
		Name:      "load_duration_seconds",
		Help:      "Duration of a full multi-table load",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	loadedRecords := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "geodash",
		Name:      "loaded_records",
		Help:      "Number of records published by the last load",
	})

	geocodeLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geodash",
		Name:      "geocode_lookups_total",
		Help:      "Geocoding lookups, by outcome (hit, miss, cached, error)",
	}, []string{"outcome"})

	coordUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geodash",
		Name:      "coord_updates_total",
		Help:      "Coordinate updates, by outcome (updated, not_found, invalid, error)",
	}, []string{"outcome"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		tableFetches,
		loadDuration,
		loadedRecords,
		geocodeLookups,
		coordUpdates,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		tableFetches:        tableFetches,
		loadDuration:        loadDuration,
		loadedRecords:       loadedRecords,
		geocodeLookups:      geocodeLookups,
		coordUpdates:        coordUpdates,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncTableFetch counts one table fetch. outcome is "ok" or "error".
func (m *Metrics) IncTableFetch(table, outcome string) {
	if m == nil {
		return
	}
	m.tableFetches.With(prometheus.Labels{"table": table, "outcome": outcome}).Inc()
}

// ObserveLoad records a finished load and the number of records it published.
func (m *Metrics) ObserveLoad(duration time.Duration, records int) {
	if m == nil {
		return
	}
	m.loadDuration.Observe(duration.Seconds())
	m.loadedRecords.Set(float64(records))
}

func (m *Metrics) IncGeocodeLookup(outcome string) {
	if m == nil {
		return
	}
	m.geocodeLookups.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func (m *Metrics) IncCoordUpdate(outcome string) {
	if m == nil {
		return
	}
	m.coordUpdates.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
