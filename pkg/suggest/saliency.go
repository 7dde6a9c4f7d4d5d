package suggest

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/framecrop/pkg/types"
)

// SaliencyConfig holds configuration for saliency-based suggestions
type SaliencyConfig struct {
	// EdgeThreshold is the edge strength in [0,1] below which a pixel counts
	// as background. It keeps gradients and compression noise out of the map.
	EdgeThreshold float64
	// Coverage is the share of the frame's edge energy the crop must keep.
	Coverage float64
	// MinSubjectRatio rejects crops smaller than this share of the frame.
	MinSubjectRatio float64
	// AnalysisSize is the long side the frame is reduced to before analysis.
	AnalysisSize int
}

// DefaultSaliencyConfig returns the saliency suggester defaults.
func DefaultSaliencyConfig() SaliencyConfig {
	return SaliencyConfig{
		EdgeThreshold:   0.02,
		Coverage:        0.98,
		MinSubjectRatio: 0.05,
		AnalysisSize:    256,
	}
}

// SaliencySuggester keeps the part of the frame holding most of its edge
// energy. It trims low-detail margins that are not a single flat color, such
// as gradients or lightly textured backgrounds.
type SaliencySuggester struct {
	config SaliencyConfig
}

// NewSaliencySuggester creates a suggester with default configuration.
func NewSaliencySuggester() *SaliencySuggester {
	return NewSaliencySuggesterWithConfig(DefaultSaliencyConfig())
}

// NewSaliencySuggesterWithConfig creates a suggester with custom configuration.
func NewSaliencySuggesterWithConfig(config SaliencyConfig) *SaliencySuggester {
	def := DefaultSaliencyConfig()
	if config.Coverage <= 0 || config.Coverage > 1 {
		config.Coverage = def.Coverage
	}
	if config.MinSubjectRatio < 0 || config.MinSubjectRatio >= 1 {
		config.MinSubjectRatio = def.MinSubjectRatio
	}
	if config.EdgeThreshold < 0 || config.EdgeThreshold >= 1 {
		config.EdgeThreshold = def.EdgeThreshold
	}
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = def.AnalysisSize
	}
	return &SaliencySuggester{config: config}
}

// Suggest builds an edge map of a reduced copy of img, projects it onto rows
// and columns, and trims each side while the energy cut away stays within
// the allowed tail.
func (s *SaliencySuggester) Suggest(ctx context.Context, img image.Image) (Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return Suggestion{}, err
	}
	out := Suggestion{Source: "saliency"}
	b := img.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return out, nil
	}

	var small *image.NRGBA
	if b.Dx() > s.config.AnalysisSize || b.Dy() > s.config.AnalysisSize {
		small = imaging.Fit(img, s.config.AnalysisSize, s.config.AnalysisSize, imaging.Box)
	} else {
		small = imaging.Clone(img)
	}

	rows, cols, total := edgeProjections(small, s.config.EdgeThreshold)
	if total == 0 {
		return out, nil
	}

	tail := (1 - s.config.Coverage) / 2 * total
	top, bottom := trim(rows, tail)
	left, right := trim(cols, tail)

	w, h := float64(len(cols)), float64(len(rows))
	box := types.Box{
		X: float64(left) / w,
		Y: float64(top) / h,
		W: float64(len(cols)-left-right) / w,
		H: float64(len(rows)-top-bottom) / h,
	}
	if box.W*box.H < s.config.MinSubjectRatio {
		return out, nil
	}

	out.Insets = BoxToInsets(box, b.Dx(), b.Dy())
	if out.Insets.IsZero() {
		return out, nil
	}

	var kept float64
	for y := top; y < len(rows)-bottom; y++ {
		kept += rows[y]
	}
	out.Confidence = clamp(kept/total, 0, 1)
	out.Label = "salient region"
	return out, nil
}

// edgeProjections sums the edge strength of every pixel per row and per
// column. Edge strength is the mean color distance to the 8 neighbors;
// strengths below threshold are dropped.
func edgeProjections(img *image.NRGBA, threshold float64) (rows, cols []float64, total float64) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	rows = make([]float64, h)
	cols = make([]float64, w)

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	const norm = 8 * 441.673 // 8 neighbors, max RGB distance 255*sqrt(3)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*img.Stride + x*4
			r1, g1, b1 := float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])

			var e float64
			for _, o := range neighbors {
				j := (y+o[1])*img.Stride + (x+o[0])*4
				dr := r1 - float64(img.Pix[j])
				dg := g1 - float64(img.Pix[j+1])
				db := b1 - float64(img.Pix[j+2])
				e += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			e /= norm
			if e < threshold {
				continue
			}

			rows[y] += e
			cols[x] += e
			total += e
		}
	}
	return rows, cols, total
}

// trim returns how many entries can be dropped from the start and from the
// end of p while each dropped run sums to at most tail.
func trim(p []float64, tail float64) (start, end int) {
	var acc float64
	for start < len(p) && acc+p[start] <= tail {
		acc += p[start]
		start++
	}
	acc = 0
	for end < len(p)-start && acc+p[len(p)-1-end] <= tail {
		acc += p[len(p)-1-end]
		end++
	}
	return start, end
}
