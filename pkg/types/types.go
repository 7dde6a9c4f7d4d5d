package types

import "image"

// CropInsets describes a crop as pixel distances from each edge of the native
// video frame inward. It is the only crop representation that gets persisted.
type CropInsets struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// NonNegative returns a copy with every negative inset replaced by zero.
func (c CropInsets) NonNegative() CropInsets {
	return CropInsets{
		Top:    max(0, c.Top),
		Right:  max(0, c.Right),
		Bottom: max(0, c.Bottom),
		Left:   max(0, c.Left),
	}
}

// Region returns the cropped rectangle inside a width x height frame. The
// boolean is false when the insets leave no pixels on either axis.
func (c CropInsets) Region(width, height int) (image.Rectangle, bool) {
	c = c.NonNegative()
	w := width - c.Left - c.Right
	h := height - c.Top - c.Bottom
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(c.Left, c.Top, c.Left+w, c.Top+h), true
}

// IsZero reports whether no edge is trimmed.
func (c CropInsets) IsZero() bool {
	return c == CropInsets{}
}

// DisplayRect is a rectangle in the coordinate space of the on-screen editing
// container. It only exists while an editor is open.
type DisplayRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (r DisplayRect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r DisplayRect) Bottom() float64 { return r.Y + r.Height }

// Size is a width/height pair. It is used both for the intrinsic video size
// (native pixels) and for the container size (display units).
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SizeOf builds a Size from integer pixel dimensions.
func SizeOf(width, height int) Size {
	return Size{Width: float64(width), Height: float64(height)}
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool {
	return s.Width > 0 && s.Height > 0
}

// AspectMode constrains interactive resizing of the crop box.
type AspectMode string

const (
	AspectFree   AspectMode = "free"
	AspectSquare AspectMode = "square"
)

// Valid reports whether m is one of the known aspect modes.
func (m AspectMode) Valid() bool {
	return m == AspectFree || m == AspectSquare
}

// CompressedImage is an encoded raster image (webp, jpeg or png).
type CompressedImage struct {
	Data   []byte `json:"-"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Len returns the encoded size in bytes.
func (c CompressedImage) Len() int { return len(c.Data) }

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Primary represents the primary content region reported by a vision model
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary `json:"primary"`
	Description string  `json:"description"`
}
