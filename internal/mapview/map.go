// Package mapview renders records as map overlays and tracks the viewport.
//
// A Map holds at most one attached overlay. Render swaps overlays
// synchronously, so a reader never sees two layers at once.
package mapview

import (
	"errors"
	"fmt"
	"sync"

	geojson "github.com/paulmach/go.geojson"

	"geodash/internal/record"
)

var (
	ErrDestroyed          = errors.New("map destroyed")
	ErrOverlayAttached    = errors.New("an overlay is already attached")
	ErrUnknownInteraction = errors.New("unknown interaction")
)

type Map struct {
	mu        sync.Mutex
	opts      Options
	destroyed bool
	overlay   Overlay
	state     ViewState
	view      Viewport
}

func New(opts Options) *Map {
	opts = opts.withDefaults()
	return &Map{
		opts:  opts,
		state: StateInitial,
		view:  opts.Initial,
	}
}

// Scope creates a map, hands it to fn and destroys it afterwards, whatever fn
// returns.
func Scope(opts Options, fn func(*Map) error) error {
	m := New(opts)
	defer m.Destroy()
	return fn(m)
}

// Attach adds o to the map. Only one overlay may be attached at a time.
func (m *Map) Attach(o Overlay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return ErrDestroyed
	}
	if m.overlay != nil {
		return ErrOverlayAttached
	}
	m.overlay = o
	return nil
}

// Detach removes the attached overlay, if any.
func (m *Map) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return ErrDestroyed
	}
	m.overlay = nil
	return nil
}

// Destroy releases the map. It is safe to call more than once.
func (m *Map) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	m.overlay = nil
}

func (m *Map) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

// Overlays returns the attached overlays (zero or one).
func (m *Map) Overlays() []Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay == nil {
		return nil
	}
	return []Overlay{m.overlay}
}

func (m *Map) State() ViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Map) Viewport() Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Render replaces the attached overlay with one of the given kind built from
// records. Unless the user has taken control of the viewport, the view is
// fitted to the new points.
func (m *Map) Render(records []record.Record, kind Kind) (Overlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return nil, ErrDestroyed
	}
	m.overlay = nil

	zoom := m.view.Zoom
	if m.state != StateUserControlled {
		if _, b, ok := pointsOf(records); ok {
			m.view = fit(b, m.opts)
			m.state = StateAutoFit
			zoom = m.view.Zoom
		}
	}

	o := build(records, kind, zoom, m.opts)
	m.overlay = o
	return o, nil
}

// Interact applies a user pan, zoom or drag. Any interaction hands the
// viewport to the user until ResetView is called.
func (m *Map) Interact(i Interaction) error {
	if !i.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownInteraction, i.Kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return ErrDestroyed
	}
	if i.Center != nil {
		m.view.Center = *i.Center
	}
	if i.Zoom != nil {
		z := *i.Zoom
		if z < 0 {
			z = 0
		}
		if z > m.opts.MaxZoom {
			z = m.opts.MaxZoom
		}
		m.view.Zoom = z
	}
	m.view.Bounds = nil
	m.state = StateUserControlled
	return nil
}

// ResetView re-enables auto-fit and fits the attached overlay. Without any
// points the map returns to its initial viewport.
func (m *Map) ResetView() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return ErrDestroyed
	}
	if m.overlay != nil {
		if b, ok := m.overlay.Bounds(); ok {
			m.view = fit(b, m.opts)
			m.state = StateAutoFit
			return nil
		}
	}
	m.view = m.opts.Initial
	m.state = StateInitial
	return nil
}

// View is the serialisable state of a map.
type View struct {
	Kind      Kind                       `json:"kind,omitempty"`
	State     ViewState                  `json:"state"`
	Viewport  Viewport                   `json:"viewport"`
	Heat      *HeatOptions               `json:"heat,omitempty"`
	Precision int                        `json:"precision,omitempty"`
	Features  *geojson.FeatureCollection `json:"features,omitempty"`
}

func (m *Map) Snapshot() (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return View{}, ErrDestroyed
	}
	v := View{State: m.state, Viewport: m.view}
	if m.overlay == nil {
		return v, nil
	}
	v.Kind = m.overlay.Kind()
	v.Features = m.overlay.FeatureCollection()
	switch o := m.overlay.(type) {
	case *HeatOverlay:
		heat := o.Options
		v.Heat = &heat
	case *ClusterOverlay:
		v.Precision = o.Precision
	}
	return v, nil
}
