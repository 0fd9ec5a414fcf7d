package canvas

// Shape tags accepted for elements. Kept as a whitelist so unknown shapes
// are rejected before they enter room state.
var AllowedShapes = map[string]bool{
	"square":    true,
	"rectangle": true,
	"circle":    true,
	"triangle":  true,
	"star":      true,
	"image":     true,
	"text":      true,
}

// Validation limit constants
const (
	MaxIDLength     = 128
	MaxTextLength   = 1000
	MaxColorLength  = 50
	MaxFontSize     = 500
	MaxFontLength   = 100
	MaxCoordinate   = 1000000
	MinCoordinate   = -1000000
	MaxLayerName    = 100
	MaxFilenameSize = 255
)

// Element is a single drawable item in a room. Field order matters: the
// snapshot file is marshaled in declaration order and round-trips must be
// byte-stable.
type Element struct {
	ID             string  `json:"id" validate:"required,max=128"`
	Shape          string  `json:"shape" validate:"required,oneof=square rectangle circle triangle star image text"`
	X              float64 `json:"x" validate:"min=-1000000,max=1000000"`
	Y              float64 `json:"y" validate:"min=-1000000,max=1000000"`
	Width          float64 `json:"width" validate:"gt=0,max=1000000"`
	Height         float64 `json:"height" validate:"gt=0,max=1000000"`
	Rotation       float64 `json:"rotation"`
	Color          string  `json:"color" validate:"max=50"`
	Text           string  `json:"text" validate:"max=1000"`
	FontSize       float64 `json:"fontSize,omitempty" validate:"omitempty,min=1,max=500"`
	FontFamily     string  `json:"fontFamily,omitempty" validate:"omitempty,max=100"`
	FontWeight     string  `json:"fontWeight,omitempty" validate:"omitempty,max=50"`
	FontStyle      string  `json:"fontStyle,omitempty" validate:"omitempty,max=50"`
	TextDecoration string  `json:"textDecoration,omitempty" validate:"omitempty,max=50"`
	Filename       string  `json:"filename,omitempty" validate:"omitempty,max=255"`
	OriginalName   string  `json:"originalName,omitempty" validate:"omitempty,max=255"`
	LayerID        string  `json:"layerId" validate:"max=128"`
	ZIndex         int     `json:"zIndex,omitempty"`
	GroupID        string  `json:"groupId,omitempty" validate:"omitempty,max=128"`
}

// Clone returns a copy of the element.
func (e *Element) Clone() *Element {
	c := *e
	return &c
}

// ElementPatch is a partial element update. Nil pointers mean "leave the
// field alone"; the zero value patches nothing.
type ElementPatch struct {
	ID             string   `json:"id"`
	Shape          *string  `json:"shape,omitempty"`
	X              *float64 `json:"x,omitempty"`
	Y              *float64 `json:"y,omitempty"`
	Width          *float64 `json:"width,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	Rotation       *float64 `json:"rotation,omitempty"`
	Color          *string  `json:"color,omitempty"`
	Text           *string  `json:"text,omitempty"`
	FontSize       *float64 `json:"fontSize,omitempty"`
	FontFamily     *string  `json:"fontFamily,omitempty"`
	FontWeight     *string  `json:"fontWeight,omitempty"`
	FontStyle      *string  `json:"fontStyle,omitempty"`
	TextDecoration *string  `json:"textDecoration,omitempty"`
	Filename       *string  `json:"filename,omitempty"`
	OriginalName   *string  `json:"originalName,omitempty"`
	LayerID        *string  `json:"layerId,omitempty"`
	ZIndex         *int     `json:"zIndex,omitempty"`
	GroupID        *string  `json:"groupId,omitempty"`
}

// apply merges the present patch fields into the element. Width, height
// and shape keep their previous values when the patch would make them
// invalid. Returns true when the patch changed the element's layer, which
// forces an index rebuild in the caller.
func (p *ElementPatch) apply(e *Element) (layerChanged bool) {
	if p.Shape != nil && AllowedShapes[*p.Shape] {
		e.Shape = *p.Shape
	}
	if p.X != nil {
		e.X = clampCoordinate(*p.X)
	}
	if p.Y != nil {
		e.Y = clampCoordinate(*p.Y)
	}
	if p.Width != nil && *p.Width > 0 {
		e.Width = *p.Width
	}
	if p.Height != nil && *p.Height > 0 {
		e.Height = *p.Height
	}
	if p.Rotation != nil {
		e.Rotation = *p.Rotation
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Text != nil {
		e.Text = *p.Text
	}
	if p.FontSize != nil && *p.FontSize > 0 {
		e.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		e.FontFamily = *p.FontFamily
	}
	if p.FontWeight != nil {
		e.FontWeight = *p.FontWeight
	}
	if p.FontStyle != nil {
		e.FontStyle = *p.FontStyle
	}
	if p.TextDecoration != nil {
		e.TextDecoration = *p.TextDecoration
	}
	if p.Filename != nil {
		e.Filename = *p.Filename
	}
	if p.OriginalName != nil {
		e.OriginalName = *p.OriginalName
	}
	if p.LayerID != nil && *p.LayerID != e.LayerID {
		e.LayerID = *p.LayerID
		layerChanged = true
	}
	if p.ZIndex != nil {
		e.ZIndex = *p.ZIndex
	}
	if p.GroupID != nil {
		e.GroupID = *p.GroupID
	}
	return layerChanged
}

func clampCoordinate(v float64) float64 {
	if v > MaxCoordinate {
		return MaxCoordinate
	}
	if v < MinCoordinate {
		return MinCoordinate
	}
	return v
}
