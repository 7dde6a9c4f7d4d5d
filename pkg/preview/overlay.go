package preview

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/framecrop/pkg/types"
)

// CreateOverlay returns a copy of frame with the area outside the crop shaded
// and the crop rectangle outlined. A non-nil suggested region is outlined as
// well. Degenerate insets outline the whole frame.
func CreateOverlay(frame image.Image, crop types.CropInsets, suggested *types.CropInsets) *image.NRGBA {
	nrgba := imaging.Clone(frame)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	if w == 0 || h == 0 {
		return nrgba
	}

	// Colors
	sky := color.NRGBA{14, 165, 233, 255} // crop box
	gold := color.NRGBA{255, 204, 0, 255} // suggestion
	blue := color.NRGBA{0, 170, 255, 255} // crop center
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))
	cross := int(math.Max(4, 0.01*float64(min(w, h))))

	region, ok := crop.Region(w, h)
	if !ok {
		region = nrgba.Bounds()
	}
	shadeOutside(nrgba, region, 0.6)
	drawRect(nrgba, region, sky, stroke)

	if suggested != nil {
		if r, ok := suggested.Region(w, h); ok {
			drawRect(nrgba, r, gold, stroke)
		}
	}

	cx := (region.Min.X + region.Max.X) / 2
	cy := (region.Min.Y + region.Max.Y) / 2
	drawHLine(nrgba, cy, cx-cross, cx+cross, blue)
	drawVLine(nrgba, cx, cy-cross, cy+cross, blue)

	return nrgba
}

// shadeOutside darkens every pixel outside keep by factor.
func shadeOutside(img *image.NRGBA, keep image.Rectangle, factor float64) {
	b := img.Bounds()
	scale := 1 - factor
	for y := 0; y < b.Dy(); y++ {
		i := y * img.Stride
		for x := 0; x < b.Dx(); x++ {
			if !(image.Point{x, y}).In(keep) {
				img.Pix[i+0] = uint8(float64(img.Pix[i+0]) * scale)
				img.Pix[i+1] = uint8(float64(img.Pix[i+1]) * scale)
				img.Pix[i+2] = uint8(float64(img.Pix[i+2]) * scale)
			}
			i += 4
		}
	}
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	if x1 <= x0 {
		return
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		copy(img.Pix[i:i+4], []uint8{c.R, c.G, c.B, c.A})
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	if y1 <= y0 {
		return
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		copy(img.Pix[i:i+4], []uint8{c.R, c.G, c.B, c.A})
		i += img.Stride
	}
}
