package suggest

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/framecrop/pkg/types"
)

// BorderConfig holds configuration for border detection
type BorderConfig struct {
	// Tolerance is the largest per-channel difference from the edge color
	// a pixel may have and still count as border.
	Tolerance uint8
	// MaxRatio caps each inset at this share of the frame dimension.
	MaxRatio float64
}

// DefaultBorderConfig returns the border detection defaults.
func DefaultBorderConfig() BorderConfig {
	return BorderConfig{Tolerance: 12, MaxRatio: 0.45}
}

// BorderSuggester trims uniform bars from the frame edges: letterboxing,
// pillarboxing or single-color window chrome.
type BorderSuggester struct {
	config BorderConfig
}

// NewBorderSuggester creates a suggester with default configuration.
func NewBorderSuggester() *BorderSuggester {
	return NewBorderSuggesterWithConfig(DefaultBorderConfig())
}

// NewBorderSuggesterWithConfig creates a suggester with custom configuration.
func NewBorderSuggesterWithConfig(config BorderConfig) *BorderSuggester {
	if config.MaxRatio <= 0 || config.MaxRatio >= 0.5 {
		config.MaxRatio = DefaultBorderConfig().MaxRatio
	}
	return &BorderSuggester{config: config}
}

// Suggest scans inward from each edge while rows or columns stay uniform.
// Top and bottom bars are found first; left and right bars only need to be
// uniform across the rows that remain.
func (b *BorderSuggester) Suggest(ctx context.Context, img image.Image) (Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return Suggestion{}, err
	}

	px := imaging.Clone(img)
	w, h := px.Bounds().Dx(), px.Bounds().Dy()
	out := Suggestion{Source: "border"}
	if w == 0 || h == 0 {
		return out, nil
	}

	maxX := int(float64(w) * b.config.MaxRatio)
	maxY := int(float64(h) * b.config.MaxRatio)
	s := &scanner{img: px, tol: b.config.Tolerance}

	var in types.CropInsets
	for in.Top < maxY && s.rowUniform(in.Top, 0, w, s.at(0, 0)) {
		in.Top++
	}
	for in.Bottom < maxY && s.rowUniform(h-1-in.Bottom, 0, w, s.at(0, h-1)) {
		in.Bottom++
	}

	y0, y1 := in.Top, h-in.Bottom
	for in.Left < maxX && s.colUniform(in.Left, y0, y1, s.at(0, y0)) {
		in.Left++
	}
	for in.Right < maxX && s.colUniform(w-1-in.Right, y0, y1, s.at(w-1, y0)) {
		in.Right++
	}

	// a blank frame is uniform everywhere; there is nothing to crop to
	if in.Top == maxY && in.Bottom == maxY && in.Left == maxX && in.Right == maxX {
		return out, nil
	}
	if _, ok := in.Region(w, h); !ok || in.IsZero() {
		return out, nil
	}

	out.Insets = in
	out.Confidence = 1
	out.Label = "uniform border"
	return out, nil
}

type scanner struct {
	img *image.NRGBA
	tol uint8
}

func (s *scanner) at(x, y int) [3]uint8 {
	i := y*s.img.Stride + x*4
	return [3]uint8{s.img.Pix[i], s.img.Pix[i+1], s.img.Pix[i+2]}
}

func (s *scanner) near(c, ref [3]uint8) bool {
	for i := range c {
		d := int(c[i]) - int(ref[i])
		if d < -int(s.tol) || d > int(s.tol) {
			return false
		}
	}
	return true
}

func (s *scanner) rowUniform(y, x0, x1 int, ref [3]uint8) bool {
	for x := x0; x < x1; x++ {
		if !s.near(s.at(x, y), ref) {
			return false
		}
	}
	return true
}

func (s *scanner) colUniform(x, y0, y1 int, ref [3]uint8) bool {
	for y := y0; y < y1; y++ {
		if !s.near(s.at(x, y), ref) {
			return false
		}
	}
	return true
}
