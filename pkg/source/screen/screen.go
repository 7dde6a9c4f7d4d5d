// Package screen provides a capture.Track backed by the live desktop.
package screen

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/vova616/screenshot"

	"github.com/menta2k/framecrop/pkg/capture"
)

// replaced in tests
var (
	screenRect  = screenshot.ScreenRect
	captureRect = screenshot.CaptureRect
)

// Track shares the screen, or a fixed region of it, as a live video track.
// The owner ends it with Stop.
type Track struct {
	region image.Rectangle
	label  string

	done     chan struct{}
	stopOnce sync.Once
	active   atomic.Int32
}

// New shares the whole screen.
func New() *Track {
	return NewRegion(image.Rectangle{})
}

// NewRegion shares only region of the screen. An empty region means the
// whole screen.
func NewRegion(region image.Rectangle) *Track {
	label := "screen"
	if !region.Empty() {
		label = fmt.Sprintf("screen %v", region)
	}
	return &Track{region: region.Canon(), label: label, done: make(chan struct{})}
}

// Settings reports the shared region's size. Zero dimensions mean the screen
// size could not be determined.
func (t *Track) Settings() capture.TrackSettings {
	r, err := t.bounds()
	if err != nil {
		return capture.TrackSettings{Label: t.label}
	}
	return capture.TrackSettings{Width: r.Dx(), Height: r.Dy(), Label: t.label}
}

// Done is closed by Stop.
func (t *Track) Done() <-chan struct{} { return t.done }

// Stop ends screen sharing.
func (t *Track) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// Active returns the number of attached sinks.
func (t *Track) Active() int { return int(t.active.Load()) }

// Attach opens a sink grabbing the shared region on every CurrentFrame call.
func (t *Track) Attach(ctx context.Context) (capture.Sink, error) {
	if capture.Ended(t) {
		return nil, capture.ErrNoTrack
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := t.bounds()
	if err != nil {
		return nil, err
	}

	t.active.Add(1)
	ready := make(chan struct{})
	close(ready)
	return &sink{track: t, rect: r, ready: ready}, nil
}

func (t *Track) bounds() (image.Rectangle, error) {
	full, err := screenRect()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("screen size: %w", err)
	}
	if t.region.Empty() {
		return full, nil
	}
	r := t.region.Intersect(full)
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("region %v is outside the screen %v", t.region, full)
	}
	return r, nil
}

type sink struct {
	track  *Track
	rect   image.Rectangle
	ready  chan struct{}
	closed atomic.Bool
}

func (s *sink) Ready() <-chan struct{} { return s.ready }

func (s *sink) VideoSize() (int, int) { return s.rect.Dx(), s.rect.Dy() }

func (s *sink) CurrentFrame() (image.Image, error) {
	if s.closed.Load() {
		return nil, capture.ErrFrameUnavailable
	}
	img, err := captureRect(s.rect)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	return img, nil
}

func (s *sink) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.track.active.Add(-1)
	}
	return nil
}
