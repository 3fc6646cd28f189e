// Package geocode resolves addresses to coordinates and fills in records that
// lack them.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"geodash/internal/metrics"
)

// ErrNoResult means the geocoder answered but found nothing for the query.
var ErrNoResult = errors.New("no geocoding result")

type Result struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
}

type Geocoder interface {
	Geocode(ctx context.Context, query string) (Result, error)
}

const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

type NominatimOptions struct {
	BaseURL   string
	UserAgent string
	// MinInterval is the smallest gap between two upstream requests.
	MinInterval time.Duration
	CacheTTL    time.Duration
	Timeout     time.Duration
	HTTP        *http.Client
}

// Nominatim queries an OSM Nominatim instance. Answers, including empty ones,
// are cached per query.
type Nominatim struct {
	baseURL     string
	userAgent   string
	http        *http.Client
	cache       *cache.Cache
	minInterval time.Duration
	metrics     *metrics.Metrics

	mu   sync.Mutex
	next time.Time
}

func NewNominatim(opts NominatimOptions, m *metrics.Metrics) *Nominatim {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultNominatimURL
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "geodash/1.0"
	}
	mi := opts.MinInterval
	if mi < 0 {
		mi = 0
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := opts.HTTP
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Nominatim{
		baseURL:     base,
		userAgent:   ua,
		http:        client,
		cache:       cache.New(ttl, 2*ttl),
		minInterval: mi,
		metrics:     m,
	}
}

type cached struct {
	res Result
	ok  bool
}

func cacheKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (n *Nominatim) Geocode(ctx context.Context, query string) (Result, error) {
	key := cacheKey(query)
	if key == "" {
		return Result{}, ErrNoResult
	}
	if v, ok := n.cache.Get(key); ok {
		n.metrics.IncGeocodeLookup("cached")
		c := v.(cached)
		if !c.ok {
			return Result{}, ErrNoResult
		}
		return c.res, nil
	}

	if err := n.wait(ctx); err != nil {
		return Result{}, err
	}

	res, err := n.lookup(ctx, query)
	switch {
	case errors.Is(err, ErrNoResult):
		n.metrics.IncGeocodeLookup("miss")
		n.cache.Set(key, cached{}, cache.DefaultExpiration)
		return Result{}, err
	case err != nil:
		n.metrics.IncGeocodeLookup("error")
		return Result{}, err
	}
	n.metrics.IncGeocodeLookup("hit")
	n.cache.Set(key, cached{res: res, ok: true}, cache.DefaultExpiration)
	return res, nil
}

// wait blocks until the next request slot, honouring ctx.
func (n *Nominatim) wait(ctx context.Context) error {
	n.mu.Lock()
	now := time.Now()
	slot := n.next
	if slot.Before(now) {
		slot = now
	}
	n.next = slot.Add(n.minInterval)
	n.mu.Unlock()

	d := time.Until(slot)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (n *Nominatim) lookup(ctx context.Context, query string) (Result, error) {
	v := url.Values{}
	v.Set("format", "json")
	v.Set("q", query)
	v.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+v.Encode(), nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var out []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(out) == 0 {
		return Result{}, ErrNoResult
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lat %q: %w", out[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lon %q: %w", out[0].Lon, err)
	}
	return Result{Lat: lat, Lon: lon, DisplayName: out[0].DisplayName}, nil
}
