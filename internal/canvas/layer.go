package canvas

import "time"

// Layer groups elements. Every room has at least one; deleting the last
// layer is refused by State.DeleteLayer.
type Layer struct {
	ID      string `json:"id" validate:"required,max=128"`
	Name    string `json:"name" validate:"max=100"`
	Visible bool   `json:"visible"`
	Locked  bool   `json:"locked"`
}

func (l *Layer) Clone() *Layer {
	c := *l
	return &c
}

// LayerPatch is a partial layer update keyed by ID.
type LayerPatch struct {
	ID      string  `json:"id"`
	Name    *string `json:"name,omitempty"`
	Visible *bool   `json:"visible,omitempty"`
	Locked  *bool   `json:"locked,omitempty"`
}

func (p *LayerPatch) apply(l *Layer) {
	if p.Name != nil {
		l.Name = *p.Name
	}
	if p.Visible != nil {
		l.Visible = *p.Visible
	}
	if p.Locked != nil {
		l.Locked = *p.Locked
	}
}

// Camera is the shared viewport. Zoom is clamped to [MinZoom, MaxZoom]
// whenever it enters room state.
type Camera struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

const (
	MinZoom = 0.1
	MaxZoom = 5.0
)

// Normalize clamps the camera to sane bounds.
func (c *Camera) Normalize() {
	c.X = clampCoordinate(c.X)
	c.Y = clampCoordinate(c.Y)
	if c.Zoom < MinZoom {
		c.Zoom = MinZoom
	}
	if c.Zoom > MaxZoom {
		c.Zoom = MaxZoom
	}
}

// DefaultCamera is the viewport a fresh room starts with.
func DefaultCamera() Camera {
	return Camera{X: 0, Y: 0, Zoom: 1}
}

// Holder records a transient per-element claim (drag, resize, text edit).
// Holds are advisory and never persisted.
type Holder struct {
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Action     string    `json:"action,omitempty"`
	AcquiredAt time.Time `json:"-"`
}
