// Package dashboard holds the state of one dashboard page: the loaded
// records, the active filter, the chosen overlay and the map it is drawn on.
// Derived views are recomputed from that state on every call and never
// stored.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"geodash/internal/filter"
	"geodash/internal/loader"
	"geodash/internal/mapview"
	"geodash/internal/record"
	"geodash/internal/tables"
)

var ErrClosed = errors.New("dashboard closed")

// Source produces the combined record set of all configured tables.
type Source interface {
	Load(ctx context.Context, n loader.Notifier) loader.Result
}

type Options struct {
	Tables       tables.AllowList
	Map          mapview.Options
	TimelineFrom int
	TimelineTo   int
}

func (o Options) withDefaults() Options {
	if o.Tables.Len() == 0 {
		o.Tables = tables.New(nil)
	}
	if o.TimelineFrom == 0 && o.TimelineTo == 0 {
		o.TimelineFrom, o.TimelineTo = 2020, 2024
	}
	return o
}

// Page is safe for concurrent use. Every mutation re-renders the map from the
// filtered records so the overlay never shows stale data.
type Page struct {
	log  zerolog.Logger
	src  Source
	opts Options
	now  func() time.Time

	mu            sync.Mutex
	records       []record.Record
	filter        filter.State
	layer         mapview.Kind
	m             *mapview.Map
	lastLoad      *loader.Result
	notifications []loader.Notification
}

func New(log zerolog.Logger, src Source, opts Options) *Page {
	opts = opts.withDefaults()
	return &Page{
		log:    log,
		src:    src,
		opts:   opts,
		now:    time.Now,
		filter: filter.Default(),
		layer:  mapview.DefaultKind,
		m:      mapview.New(opts.Map),
	}
}

// Close destroys the map. Later calls that need the map return ErrClosed.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m.Destroy()
}

// Load replaces the records with a fresh load of every table. Notifications
// of the run replace those of the previous one.
func (p *Page) Load(ctx context.Context) (loader.Result, error) {
	if p.src == nil {
		return loader.Result{}, errors.New("no data source configured")
	}
	collect := &loader.Collector{}
	res := p.src.Load(ctx, loader.Multi{collect, loader.LogNotifier{Log: p.log}})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = res.Records
	p.lastLoad = &res
	p.notifications = collect.Notifications()
	return res, p.renderLocked()
}

// SetRecords replaces the records with an imported set. The table tag of each
// record is set to source when it is empty.
func (p *Page) SetRecords(records []record.Record, source string) error {
	out := make([]record.Record, len(records))
	copy(out, records)
	geocoded := 0
	for i := range out {
		if out[i].Table == "" {
			out[i].Table = source
		}
		if out[i].HasCoords() {
			geocoded++
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = out
	p.lastLoad = nil
	p.notifications = []loader.Notification{{
		Title:       "Daten importiert",
		Description: importDescription(len(out), geocoded),
		Variant:     loader.VariantDefault,
	}}
	return p.renderLocked()
}

func (p *Page) SetFilter(s filter.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = s
	return p.renderLocked()
}

// UpdateFilter replaces the filter with the result of fn applied to the
// current one. On error the filter is left unchanged.
func (p *Page) UpdateFilter(fn func(filter.State) (filter.State, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, err := fn(p.filter)
	if err != nil {
		return err
	}
	p.filter = next
	return p.renderLocked()
}

func (p *Page) SetLayer(kind mapview.Kind) error {
	if _, err := mapview.ParseKind(string(kind)); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.layer = kind
	return p.renderLocked()
}

// Reset restores the default filter and overlay. The records stay loaded.
func (p *Page) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = filter.Default()
	p.layer = mapview.DefaultKind
	return p.renderLocked()
}

func (p *Page) Interact(i mapview.Interaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return mapErr(p.m.Interact(i))
}

func (p *Page) ResetView() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return mapErr(p.m.ResetView())
}

func (p *Page) Filter() filter.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter
}

func (p *Page) Layer() mapview.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.layer
}

func (p *Page) Tables() tables.AllowList {
	return p.opts.Tables
}

// Records returns a copy of every loaded record.
func (p *Page) Records() []record.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]record.Record, len(p.records))
	copy(out, p.records)
	return out
}

// Filtered returns the loaded records that pass the active filter.
func (p *Page) Filtered() []record.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filteredLocked()
}

func (p *Page) Notifications() []loader.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]loader.Notification, len(p.notifications))
	copy(out, p.notifications)
	return out
}

// LastLoad returns the result of the latest table load, if the current
// records came from one.
func (p *Page) LastLoad() (loader.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastLoad == nil {
		return loader.Result{}, false
	}
	return *p.lastLoad, true
}

func (p *Page) filteredLocked() []record.Record {
	return filter.Apply(p.records, p.filter, p.now())
}

func (p *Page) renderLocked() error {
	_, err := p.m.Render(p.filteredLocked(), p.layer)
	return mapErr(err)
}

func mapErr(err error) error {
	if errors.Is(err, mapview.ErrDestroyed) {
		return ErrClosed
	}
	return err
}
