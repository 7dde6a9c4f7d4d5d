package screen

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/menta2k/framecrop/pkg/capture"
)

func fakeScreen(t *testing.T, w, h int) *[]image.Rectangle {
	t.Helper()
	origRect, origCapture := screenRect, captureRect
	t.Cleanup(func() { screenRect, captureRect = origRect, origCapture })

	var grabbed []image.Rectangle
	screenRect = func() (image.Rectangle, error) { return image.Rect(0, 0, w, h), nil }
	captureRect = func(r image.Rectangle) (*image.RGBA, error) {
		grabbed = append(grabbed, r)
		return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
	}
	return &grabbed
}

func TestFullScreen(t *testing.T) {
	fakeScreen(t, 1920, 1080)
	tr := New()

	s := tr.Settings()
	if s.Width != 1920 || s.Height != 1080 {
		t.Errorf("Expected 1920x1080, got %dx%d", s.Width, s.Height)
	}

	sink, err := tr.Attach(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	img, err := sink.CurrentFrame()
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 1920 {
		t.Errorf("Expected full-width frame, got %v", img.Bounds())
	}
	sink.Close()
	sink.Close()
	if tr.Active() != 0 {
		t.Errorf("Expected no active sinks, got %d", tr.Active())
	}
}

func TestRegionClippedToScreen(t *testing.T) {
	grabbed := fakeScreen(t, 1000, 800)
	tr := NewRegion(image.Rect(900, 700, 1100, 900))

	sink, err := tr.Attach(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	if w, h := sink.VideoSize(); w != 100 || h != 100 {
		t.Errorf("Expected clipped 100x100, got %dx%d", w, h)
	}
	sink.CurrentFrame()
	if len(*grabbed) != 1 || (*grabbed)[0] != image.Rect(900, 700, 1000, 800) {
		t.Errorf("unexpected capture rect %v", *grabbed)
	}
}

func TestRegionOutsideScreen(t *testing.T) {
	fakeScreen(t, 100, 100)
	tr := NewRegion(image.Rect(200, 200, 300, 300))
	if _, err := tr.Attach(context.Background()); err == nil {
		t.Error("Expected error for off-screen region")
	}
}

func TestStoppedTrack(t *testing.T) {
	fakeScreen(t, 100, 100)
	tr := New()
	tr.Stop()
	tr.Stop()
	if _, err := tr.Attach(context.Background()); !errors.Is(err, capture.ErrNoTrack) {
		t.Errorf("Expected ErrNoTrack, got %v", err)
	}
}

func TestScreenUnavailable(t *testing.T) {
	fakeScreen(t, 1, 1)
	screenRect = func() (image.Rectangle, error) { return image.Rectangle{}, errors.New("no display") }

	tr := New()
	if s := tr.Settings(); s.Width != 0 {
		t.Errorf("Expected zero settings, got %+v", s)
	}
	if _, err := tr.Attach(context.Background()); err == nil {
		t.Error("Expected error without a display")
	}
}
