// Package geometry converts crop insets between the native pixel grid of a
// video and the display space of the container the video is shown in.
//
// The video is assumed to be drawn with "contain" semantics: scaled to the
// largest size that fits the container while keeping its aspect ratio, and
// centered on whichever axis has slack (letterbox or pillarbox).
package geometry

import (
	"math"

	"github.com/menta2k/framecrop/pkg/types"
)

// Fit describes where a video lands inside its container.
type Fit struct {
	Width   float64 // displayed video width
	Height  float64 // displayed video height
	OffsetX float64 // pillarbox offset
	OffsetY float64 // letterbox offset
	ScaleX  float64 // display units per native pixel
	ScaleY  float64
}

// Valid reports whether the fit can be used for mapping.
func (f Fit) Valid() bool {
	return f.Width > 0 && f.Height > 0 && f.ScaleX > 0 && f.ScaleY > 0
}

// ContainFit computes the contain fit of video inside container. It returns
// the zero Fit when either size is unknown.
func ContainFit(video, container types.Size) Fit {
	if !video.Known() || !container.Known() {
		return Fit{}
	}

	videoRatio := video.Width / video.Height
	containerRatio := container.Width / container.Height

	var f Fit
	if videoRatio > containerRatio {
		f.Width = container.Width
		f.Height = container.Width / videoRatio
		f.OffsetY = (container.Height - f.Height) / 2
	} else {
		f.Height = container.Height
		f.Width = container.Height * videoRatio
		f.OffsetX = (container.Width - f.Width) / 2
	}
	f.ScaleX = f.Width / video.Width
	f.ScaleY = f.Height / video.Height
	return f
}

// InsetsToDisplayRect maps native-pixel insets to the rectangle they cover in
// display space. Callers must not map before the video size is known; the
// zero rect is returned in that case.
func InsetsToDisplayRect(insets types.CropInsets, video, container types.Size) types.DisplayRect {
	f := ContainFit(video, container)
	if !f.Valid() {
		return types.DisplayRect{}
	}

	return types.DisplayRect{
		X:      f.OffsetX + float64(insets.Left)*f.ScaleX,
		Y:      f.OffsetY + float64(insets.Top)*f.ScaleY,
		Width:  (video.Width - float64(insets.Left) - float64(insets.Right)) * f.ScaleX,
		Height: (video.Height - float64(insets.Top) - float64(insets.Bottom)) * f.ScaleY,
	}
}

// DisplayRectToInsets maps a display-space rectangle back to native-pixel
// insets. Every inset is rounded to the nearest pixel and clamped to >= 0.
func DisplayRectToInsets(rect types.DisplayRect, video, container types.Size) types.CropInsets {
	f := ContainFit(video, container)
	if !f.Valid() {
		return types.CropInsets{}
	}

	rx := video.Width / f.Width
	ry := video.Height / f.Height

	adjX := rect.X - f.OffsetX
	adjY := rect.Y - f.OffsetY

	return types.CropInsets{
		Top:    roundInset(adjY * ry),
		Right:  roundInset(video.Width - (adjX+rect.Width)*rx),
		Bottom: roundInset(video.Height - (adjY+rect.Height)*ry),
		Left:   roundInset(adjX * rx),
	}
}

// VideoBounds returns the area the video occupies in display space.
func VideoBounds(video, container types.Size) types.DisplayRect {
	f := ContainFit(video, container)
	return types.DisplayRect{X: f.OffsetX, Y: f.OffsetY, Width: f.Width, Height: f.Height}
}

// roundInset rounds half up and clamps negatives to zero.
func roundInset(v float64) int {
	r := int(math.Floor(v + 0.5))
	if r < 0 {
		return 0
	}
	return r
}
