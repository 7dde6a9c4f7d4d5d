package capture

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
)

// Offscreen surfaces are pooled so repeated captures at the same resolution
// reuse one backing slice instead of allocating width*height*4 bytes per call.
// A surface is owned by exactly one Frame until that frame is released.
var surfacePool sync.Pool // stores *image.RGBA

// acquireSurface returns an RGBA surface sized to rect. Pix length is exactly
// rect area * 4 and Stride is width*4. Contents are undefined.
func acquireSurface(rect image.Rectangle) *image.RGBA {
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: rect}
	}
	needed := w * h * 4
	var img *image.RGBA
	if v := surfacePool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		return &image.RGBA{Pix: make([]byte, needed), Stride: w * 4, Rect: rect}
	}
	img.Stride = w * 4
	img.Rect = rect
	img.Pix = img.Pix[:needed]
	return img
}

func recycleSurface(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	surfacePool.Put(img)
}

// drawFrame paints src over the whole surface, scaling when sizes differ.
func drawFrame(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	if sb.Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
}

// Frame is a single captured raster frame at the track's configured
// resolution. Its pixels live in a pooled surface: call Release once done and
// do not touch Image afterwards.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
	// VideoWidth and VideoHeight are the native dimensions the sink reported.
	VideoWidth  int
	VideoHeight int

	released atomic.Bool
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.Image.Bounds().Dx() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.Image.Bounds().Dy() }

// Release returns the surface to the pool. It is safe to call more than once.
func (f *Frame) Release() {
	if f == nil || !f.released.CompareAndSwap(false, true) {
		return
	}
	recycleSurface(f.Image)
}
