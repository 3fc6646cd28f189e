package mapview

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"geodash/internal/record"
)

func ptr(v float64) *float64 { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func sample() []record.Record {
	return []record.Record{
		{Ort: "Geesthacht", KW: "10", Latitude: ptr(53.43), Longitude: ptr(10.37)},
		{Ort: "Geesthacht", KW: "bad", Latitude: ptr(53.4301), Longitude: ptr(10.3701)},
		{Ort: "Worth", KW: "4", Latitude: ptr(53.52), Longitude: ptr(10.31)},
		{Ort: "Ohne", KW: "7"},
	}
}

func TestRender_SwitchKeepsSingleOverlay(t *testing.T) {
	m := New(Options{})
	defer m.Destroy()

	if _, err := m.Render(sample(), KindHeatmap); err != nil {
		t.Fatalf("render heatmap: %v", err)
	}
	if got := len(m.Overlays()); got != 1 {
		t.Fatalf("expected one overlay, got %d", got)
	}

	o, err := m.Render(sample(), KindCluster)
	if err != nil {
		t.Fatalf("render cluster: %v", err)
	}
	overlays := m.Overlays()
	if len(overlays) != 1 || overlays[0] != o || overlays[0].Kind() != KindCluster {
		t.Fatalf("expected only the cluster overlay attached, got %+v", overlays)
	}
}

func TestAttach_RejectsSecondOverlay(t *testing.T) {
	m := New(Options{})
	if err := m.Attach(NewMarkerOverlay(sample())); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := m.Attach(NewMarkerOverlay(sample())); !errors.Is(err, ErrOverlayAttached) {
		t.Fatalf("expected ErrOverlayAttached, got %v", err)
	}
	if err := m.Detach(); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if len(m.Overlays()) != 0 {
		t.Fatalf("expected no overlays after detach")
	}
}

func TestDestroy(t *testing.T) {
	var kept *Map
	err := Scope(Options{}, func(m *Map) error {
		kept = m
		_, err := m.Render(sample(), KindMarker)
		return err
	})
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if !kept.Destroyed() {
		t.Fatalf("expected map destroyed after scope")
	}
	if _, err := kept.Render(sample(), KindMarker); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed, got %v", err)
	}
	if err := kept.Attach(NewMarkerOverlay(nil)); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed from attach, got %v", err)
	}
	if err := kept.ResetView(); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed from reset, got %v", err)
	}
}

func TestViewportStateMachine(t *testing.T) {
	m := New(Options{})
	if m.State() != StateInitial || m.Viewport().Zoom != 6 {
		t.Fatalf("unexpected initial state %s / %+v", m.State(), m.Viewport())
	}

	if _, err := m.Render(nil, KindHeatmap); err != nil {
		t.Fatalf("render: %v", err)
	}
	if m.State() != StateInitial {
		t.Fatalf("empty render must not leave initial state, got %s", m.State())
	}

	if _, err := m.Render(sample(), KindHeatmap); err != nil {
		t.Fatalf("render: %v", err)
	}
	if m.State() != StateAutoFit {
		t.Fatalf("expected auto-fit after first data render, got %s", m.State())
	}
	fitted := m.Viewport()
	if fitted.Bounds == nil || fitted.Zoom <= 6 {
		t.Fatalf("expected fitted viewport, got %+v", fitted)
	}

	zoom := 9
	if err := m.Interact(Interaction{Kind: InteractZoom, Zoom: &zoom}); err != nil {
		t.Fatalf("interact: %v", err)
	}
	if m.State() != StateUserControlled {
		t.Fatalf("expected user-controlled, got %s", m.State())
	}

	if _, err := m.Render(sample()[:1], KindMarker); err != nil {
		t.Fatalf("render: %v", err)
	}
	if m.State() != StateUserControlled || m.Viewport().Zoom != 9 {
		t.Fatalf("render must not move a user-controlled view, got %s / %+v", m.State(), m.Viewport())
	}

	if err := m.ResetView(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if m.State() != StateAutoFit || m.Viewport().Bounds == nil {
		t.Fatalf("expected auto-fit after reset, got %s", m.State())
	}
}

func TestInteract_Unknown(t *testing.T) {
	m := New(Options{})
	if err := m.Interact(Interaction{Kind: "spin"}); !errors.Is(err, ErrUnknownInteraction) {
		t.Fatalf("expected ErrUnknownInteraction, got %v", err)
	}
	if m.State() != StateInitial {
		t.Fatalf("invalid interaction must not change state")
	}
}

func TestFit_PadsBounds(t *testing.T) {
	b := Bounds{MinLat: 53, MinLon: 10, MaxLat: 54, MaxLon: 12}
	v := fit(b, Options{}.withDefaults())
	if !near(v.Bounds.MinLat, 52.9) || !near(v.Bounds.MaxLon, 12.2) {
		t.Fatalf("expected 10%% padding, got %+v", *v.Bounds)
	}
	if !near(v.Center.Lat, 53.5) || !near(v.Center.Lng, 11) {
		t.Fatalf("unexpected center %+v", v.Center)
	}
	if v.Zoom < 7 || v.Zoom > 9 {
		t.Fatalf("unexpected zoom %d", v.Zoom)
	}
}

func TestFitZoom_SinglePointUsesMaxZoom(t *testing.T) {
	b := Bounds{MinLat: 53, MinLon: 10, MaxLat: 53, MaxLon: 10}
	if got := fitZoom(b, Size{Width: 800, Height: 600}, 18); got != 18 {
		t.Fatalf("expected max zoom, got %d", got)
	}
}

func TestHeatWeightPolicy(t *testing.T) {
	count := NewHeatOverlay(sample(), WeightCount, DefaultHeatOptions())
	if n := len(count.FeatureCollection().Features); n != 3 {
		t.Fatalf("expected 3 heat points, got %d", n)
	}
	if count.Options.Max != 1 {
		t.Fatalf("expected uniform weights, got max %v", count.Options.Max)
	}

	kw := NewHeatOverlay(sample(), WeightKW, DefaultHeatOptions())
	weights := []float64{}
	for _, f := range kw.FeatureCollection().Features {
		weights = append(weights, f.Properties["weight"].(float64))
	}
	if weights[0] != 10 || weights[1] != 1 || weights[2] != 4 || kw.Options.Max != 10 {
		t.Fatalf("unexpected kw weights %v (max %v)", weights, kw.Options.Max)
	}
}

func TestClusterOverlay_GroupsByCell(t *testing.T) {
	o := NewClusterOverlay(sample(), 12)
	features := o.FeatureCollection().Features
	if len(features) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(features))
	}
	if features[0].Properties["count"] != 2 || features[0].Properties["cluster"] != true {
		t.Fatalf("unexpected first cluster %+v", features[0].Properties)
	}
	if features[1].Properties["cluster"] != nil || features[1].Properties["kw"] != "4" {
		t.Fatalf("expected single-record cluster to carry popup fields, got %+v", features[1].Properties)
	}

	coarse := NewClusterOverlay(sample(), 2)
	if len(coarse.FeatureCollection().Features) != 1 {
		t.Fatalf("expected one cluster at low zoom")
	}
}

func TestSnapshot_JSON(t *testing.T) {
	m := New(Options{})
	if _, err := m.Render(sample(), KindHeatmap); err != nil {
		t.Fatalf("render: %v", err)
	}
	v, err := m.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Kind     string `json:"kind"`
		State    string `json:"state"`
		Features struct {
			Type     string `json:"type"`
			Features []any  `json:"features"`
		} `json:"features"`
		Heat struct {
			Radius int `json:"radius"`
		} `json:"heat"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Kind != "heatmap" || decoded.State != "auto-fit-active" || decoded.Heat.Radius != 25 {
		t.Fatalf("unexpected snapshot %s", raw)
	}
	if decoded.Features.Type != "FeatureCollection" || len(decoded.Features.Features) != 3 {
		t.Fatalf("unexpected features %s", raw)
	}
}

func TestParseKind(t *testing.T) {
	if k, _ := ParseKind(""); k != KindHeatmap {
		t.Fatalf("expected default heatmap, got %s", k)
	}
	if k, _ := ParseKind("Cluster"); k != KindCluster {
		t.Fatalf("expected cluster, got %s", k)
	}
	if _, err := ParseKind("hexbin"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
