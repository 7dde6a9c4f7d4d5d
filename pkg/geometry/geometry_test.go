package geometry

import (
	"math"
	"testing"

	"github.com/menta2k/framecrop/pkg/types"
)

const eps = 1e-6

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestContainFitLetterbox(t *testing.T) {
	f := ContainFit(types.SizeOf(1600, 900), types.Size{Width: 1000, Height: 1000})

	if !approx(f.Width, 1000) || !approx(f.Height, 562.5) {
		t.Fatalf("expected 1000x562.5, got %fx%f", f.Width, f.Height)
	}
	if !approx(f.OffsetX, 0) || !approx(f.OffsetY, 218.75) {
		t.Errorf("expected offset (0, 218.75), got (%f, %f)", f.OffsetX, f.OffsetY)
	}
}

func TestContainFitPillarbox(t *testing.T) {
	f := ContainFit(types.SizeOf(1000, 1000), types.Size{Width: 1600, Height: 900})

	if !approx(f.Width, 900) || !approx(f.Height, 900) {
		t.Fatalf("expected 900x900, got %fx%f", f.Width, f.Height)
	}
	if !approx(f.OffsetX, 350) || !approx(f.OffsetY, 0) {
		t.Errorf("expected offset (350, 0), got (%f, %f)", f.OffsetX, f.OffsetY)
	}
}

func TestContainFitUnknownSize(t *testing.T) {
	tests := []struct {
		name      string
		video     types.Size
		container types.Size
	}{
		{"zero video width", types.SizeOf(0, 1080), types.SizeOf(960, 540)},
		{"zero video height", types.SizeOf(1920, 0), types.SizeOf(960, 540)},
		{"zero container", types.SizeOf(1920, 1080), types.SizeOf(0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f := ContainFit(tt.video, tt.container); f.Valid() {
				t.Errorf("expected invalid fit, got %+v", f)
			}
			r := InsetsToDisplayRect(types.CropInsets{Top: 10, Left: 10}, tt.video, tt.container)
			if r != (types.DisplayRect{}) {
				t.Errorf("expected zero rect, got %+v", r)
			}
			in := DisplayRectToInsets(types.DisplayRect{X: 5, Y: 5, Width: 10, Height: 10}, tt.video, tt.container)
			if in != (types.CropInsets{}) {
				t.Errorf("expected zero insets, got %+v", in)
			}
		})
	}
}

func TestExactHalfScaleScenario(t *testing.T) {
	video := types.SizeOf(1920, 1080)
	container := types.SizeOf(960, 540)
	insets := types.CropInsets{Top: 100, Right: 50, Bottom: 80, Left: 200}

	r := InsetsToDisplayRect(insets, video, container)
	if !approx(r.X, 100) || !approx(r.Y, 50) || !approx(r.Width, 835) || !approx(r.Height, 450) {
		t.Fatalf("expected {100 50 835 450}, got %+v", r)
	}

	back := DisplayRectToInsets(types.DisplayRect{X: 100, Y: 50, Width: 835, Height: 450}, video, container)
	if back != insets {
		t.Errorf("expected %+v, got %+v", insets, back)
	}
}

func TestLetterboxedZeroInsets(t *testing.T) {
	r := InsetsToDisplayRect(types.CropInsets{}, types.SizeOf(1600, 900), types.SizeOf(1000, 1000))

	if !approx(r.X, 0) || !approx(r.Y, 218.75) || !approx(r.Width, 1000) || !approx(r.Height, 562.5) {
		t.Errorf("expected {0 218.75 1000 562.5}, got %+v", r)
	}
}

func TestRoundTrip(t *testing.T) {
	videos := []types.Size{
		types.SizeOf(1920, 1080),
		types.SizeOf(1600, 900),
		types.SizeOf(2560, 1440),
		types.SizeOf(1280, 1024),
		types.SizeOf(3440, 1440),
		types.SizeOf(1080, 1920),
		types.SizeOf(801, 599),
	}
	containers := []types.Size{
		types.SizeOf(960, 540),
		types.SizeOf(1000, 1000),
		{Width: 1366.5, Height: 683.25},
		types.SizeOf(375, 812),
		types.SizeOf(1920, 1080),
	}

	for _, v := range videos {
		w, h := int(v.Width), int(v.Height)
		insetSets := []types.CropInsets{
			{},
			{Top: 1, Right: 1, Bottom: 1, Left: 1},
			{Top: h / 4, Right: w / 5, Bottom: h / 7, Left: w / 3},
			{Top: 320 % h, Right: 25, Bottom: 227 % h, Left: 1257 % w},
			{Top: h/2 - 1, Right: 0, Bottom: h/2 - 1, Left: w - 2},
			{Top: 0, Right: w/2 + 3, Bottom: 17, Left: 11},
		}
		for _, c := range containers {
			for _, in := range insetSets {
				got := DisplayRectToInsets(InsetsToDisplayRect(in, v, c), v, c)
				if !within(got.Top, in.Top) || !within(got.Right, in.Right) ||
					!within(got.Bottom, in.Bottom) || !within(got.Left, in.Left) {
					t.Errorf("video %v container %v: round trip %+v -> %+v", v, c, in, got)
				}
			}
		}
	}
}

func TestDisplayRectToInsetsClampsNegative(t *testing.T) {
	video := types.SizeOf(1920, 1080)
	container := types.SizeOf(960, 540)

	// box extends past the video on every side
	got := DisplayRectToInsets(types.DisplayRect{X: -10, Y: -10, Width: 1000, Height: 600}, video, container)
	if got != (types.CropInsets{}) {
		t.Errorf("expected all-zero insets, got %+v", got)
	}
}

func TestDisplayRectToInsetsIgnoresLetterbox(t *testing.T) {
	video := types.SizeOf(1600, 900)
	container := types.SizeOf(1000, 1000)

	// box covering exactly the visible video
	got := DisplayRectToInsets(VideoBounds(video, container), video, container)
	if got != (types.CropInsets{}) {
		t.Errorf("expected zero insets for full video bounds, got %+v", got)
	}
}

func within(a, b int) bool {
	d := a - b
	return d >= -1 && d <= 1
}

func BenchmarkRoundTrip(b *testing.B) {
	video := types.SizeOf(1920, 1080)
	container := types.Size{Width: 1366, Height: 768}
	insets := types.CropInsets{Top: 320, Right: 25, Bottom: 227, Left: 1257}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DisplayRectToInsets(InsetsToDisplayRect(insets, video, container), video, container)
	}
}
