// Package suggest proposes crop insets for a captured frame. Suggestions are
// advisory: nothing here persists them.
package suggest

import (
	"context"
	"image"
	"math"

	"github.com/menta2k/framecrop/pkg/types"
)

// Suggestion is a proposed crop for one frame.
type Suggestion struct {
	Insets types.CropInsets `json:"insets"`
	// Box is Insets as a normalized region of the frame, set by WithBox.
	Box        types.Box `json:"box"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Label      string    `json:"label,omitempty"`
}

// Found reports whether the suggestion trims anything.
func (s Suggestion) Found() bool {
	return s.Confidence > 0 && !s.Insets.IsZero()
}

// WithBox returns s with Box derived from its insets on a width x height
// frame.
func (s Suggestion) WithBox(width, height int) Suggestion {
	s.Box = InsetsToBox(s.Insets, width, height)
	return s
}

// Suggester proposes crop insets for an image.
type Suggester interface {
	Suggest(ctx context.Context, img image.Image) (Suggestion, error)
}

// BoxToInsets converts a normalized [0,1] box inside a width x height frame
// to pixel insets. Boxes that leave no pixels produce zero insets.
func BoxToInsets(b types.Box, width, height int) types.CropInsets {
	b = normalizeBox(b)
	w, h := float64(width), float64(height)

	left := round(b.X * w)
	top := round(b.Y * h)
	right := width - round((b.X+b.W)*w)
	bottom := height - round((b.Y+b.H)*h)

	in := types.CropInsets{Top: top, Right: right, Bottom: bottom, Left: left}.NonNegative()
	if _, ok := in.Region(width, height); !ok {
		return types.CropInsets{}
	}
	return in
}

// InsetsToBox converts pixel insets back to a normalized box.
func InsetsToBox(in types.CropInsets, width, height int) types.Box {
	if width <= 0 || height <= 0 {
		return types.Box{}
	}
	r, ok := in.Region(width, height)
	if !ok {
		return types.Box{W: 1, H: 1}
	}
	w, h := float64(width), float64(height)
	return types.Box{
		X: float64(r.Min.X) / w,
		Y: float64(r.Min.Y) / h,
		W: float64(r.Dx()) / w,
		H: float64(r.Dy()) / h,
	}
}

// normalizeBox ensures box coordinates are within [0,1] bounds
func normalizeBox(b types.Box) types.Box {
	b.X = clamp(b.X, 0, 1)
	b.Y = clamp(b.Y, 0, 1)
	b.W = clamp(b.W, 0, 1-b.X)
	b.H = clamp(b.H, 0, 1-b.Y)
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
