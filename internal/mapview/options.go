package mapview

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindHeatmap Kind = "heatmap"
	KindCluster Kind = "cluster"
	KindMarker  Kind = "marker"
)

// DefaultKind is the overlay shown before the user picks one and after a reset.
const DefaultKind = KindHeatmap

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return DefaultKind, nil
	case KindHeatmap, KindCluster, KindMarker:
		return k, nil
	case "markers", "punkte":
		return KindMarker, nil
	default:
		return "", fmt.Errorf("unknown overlay kind %q", s)
	}
}

// WeightPolicy decides the intensity of a heatmap point.
type WeightPolicy string

const (
	// WeightCount gives every record the same weight.
	WeightCount WeightPolicy = "count"
	// WeightKW uses the KW value, falling back to 1 when it is missing or not positive.
	WeightKW WeightPolicy = "kw"
)

func ParseWeightPolicy(s string) (WeightPolicy, error) {
	switch p := WeightPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return WeightCount, nil
	case WeightCount, WeightKW:
		return p, nil
	default:
		return "", fmt.Errorf("unknown heat weight policy %q", s)
	}
}

type HeatOptions struct {
	Radius   int               `json:"radius"`
	Blur     int               `json:"blur"`
	MaxZoom  int               `json:"max_zoom"`
	Max      float64           `json:"max"`
	Gradient map[string]string `json:"gradient"`
}

func DefaultHeatOptions() HeatOptions {
	return HeatOptions{
		Radius:  25,
		Blur:    15,
		MaxZoom: 17,
		Gradient: map[string]string{
			"0.0": "#0066ff",
			"0.2": "#00ccff",
			"0.4": "#00ff99",
			"0.6": "#66ff00",
			"0.8": "#ffcc00",
			"1.0": "#ff3300",
		},
	}
}

// Size is the pixel size of the client viewport used when fitting bounds.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Options struct {
	Weight  WeightPolicy
	Heat    HeatOptions
	Size    Size
	Initial Viewport
	// Padding is the fraction each side of the data bounds is grown by before fitting.
	Padding float64
	MaxZoom int
}

func (o Options) withDefaults() Options {
	if o.Weight == "" {
		o.Weight = WeightCount
	}
	if o.Heat.Radius <= 0 {
		o.Heat = DefaultHeatOptions()
	}
	if o.Size.Width <= 0 || o.Size.Height <= 0 {
		o.Size = Size{Width: 1024, Height: 768}
	}
	if o.Initial.Zoom <= 0 {
		o.Initial = InitialViewport()
	}
	if o.Padding <= 0 {
		o.Padding = 0.1
	}
	if o.MaxZoom <= 0 {
		o.MaxZoom = 18
	}
	return o
}
