package mapview

import "math"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

func emptyBounds() Bounds {
	return Bounds{MinLat: 90, MinLon: 180, MaxLat: -90, MaxLon: -180}
}

func (b Bounds) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

func (b *Bounds) extend(lat, lon float64) {
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLon = math.Max(b.MaxLon, lon)
}

// Pad grows the bounds by ratio of their height and width on every side.
func (b Bounds) Pad(ratio float64) Bounds {
	h := (b.MaxLat - b.MinLat) * ratio
	w := (b.MaxLon - b.MinLon) * ratio
	return Bounds{
		MinLat: b.MinLat - h,
		MinLon: b.MinLon - w,
		MaxLat: b.MaxLat + h,
		MaxLon: b.MaxLon + w,
	}
}

func (b Bounds) Center() LatLng {
	return LatLng{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLon + b.MaxLon) / 2}
}

type Viewport struct {
	Center LatLng  `json:"center"`
	Zoom   int     `json:"zoom"`
	Bounds *Bounds `json:"bounds,omitempty"`
}

// InitialViewport shows the whole of Germany.
func InitialViewport() Viewport {
	return Viewport{Center: LatLng{Lat: 51.1657, Lng: 10.4515}, Zoom: 6}
}

type ViewState string

const (
	StateInitial        ViewState = "initial"
	StateAutoFit        ViewState = "auto-fit-active"
	StateUserControlled ViewState = "user-controlled"
)

type InteractionKind string

const (
	InteractPan  InteractionKind = "pan"
	InteractZoom InteractionKind = "zoom"
	InteractDrag InteractionKind = "drag"
)

// Interaction is a viewport change made by the user.
type Interaction struct {
	Kind   InteractionKind `json:"kind"`
	Center *LatLng         `json:"center,omitempty"`
	Zoom   *int            `json:"zoom,omitempty"`
}

func (i Interaction) valid() bool {
	switch i.Kind {
	case InteractPan, InteractZoom, InteractDrag:
		return true
	}
	return false
}

const tileSize = 256.0

// fitZoom returns the largest zoom at which b fits into size, clamped to
// [0, maxZoom].
func fitZoom(b Bounds, size Size, maxZoom int) int {
	lonFrac := (b.MaxLon - b.MinLon) / 360
	latFrac := math.Abs(mercatorY(b.MaxLat)-mercatorY(b.MinLat)) / (2 * math.Pi)

	zoom := float64(maxZoom)
	if lonFrac > 0 {
		zoom = math.Min(zoom, math.Log2(float64(size.Width)/tileSize/lonFrac))
	}
	if latFrac > 0 {
		zoom = math.Min(zoom, math.Log2(float64(size.Height)/tileSize/latFrac))
	}
	z := int(math.Floor(zoom))
	if z < 0 {
		return 0
	}
	return z
}

func mercatorY(lat float64) float64 {
	lat = math.Max(math.Min(lat, 85.0511), -85.0511)
	rad := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + rad/2))
}

func fit(b Bounds, opts Options) Viewport {
	padded := b.Pad(opts.Padding)
	return Viewport{
		Center: padded.Center(),
		Zoom:   fitZoom(padded, opts.Size, opts.MaxZoom),
		Bounds: &padded,
	}
}
