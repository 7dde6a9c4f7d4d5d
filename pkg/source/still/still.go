// Package still provides a capture.Track that plays a fixed image, such as a
// screenshot loaded from disk. The frame can be swapped while sinks are
// attached to simulate a resolution change.
package still

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/menta2k/framecrop/pkg/capture"
)

// Options configures a still Track
type Options struct {
	// Label is reported in the track settings.
	Label string
	// Width and Height override the configured capture resolution. Zero means
	// the image size.
	Width  int
	Height int
	// ReadyDelay postpones metadata on new sinks. A negative delay means
	// sinks never become ready.
	ReadyDelay time.Duration
}

// Track plays one image into every attached sink.
type Track struct {
	opts Options

	mu    sync.RWMutex
	frame image.Image

	done     chan struct{}
	stopOnce sync.Once

	attaches atomic.Int32
	detaches atomic.Int32
}

// New creates a track playing img.
func New(img image.Image) *Track {
	return NewWithOptions(img, Options{Label: "still"})
}

// NewWithOptions creates a track playing img with custom options.
func NewWithOptions(img image.Image, opts Options) *Track {
	return &Track{opts: opts, frame: img, done: make(chan struct{})}
}

// Settings reports the configured resolution.
func (t *Track) Settings() capture.TrackSettings {
	w, h := t.opts.Width, t.opts.Height
	if w <= 0 || h <= 0 {
		w, h = t.size()
	}
	return capture.TrackSettings{Width: w, Height: h, Label: t.opts.Label}
}

// Done is closed by Stop.
func (t *Track) Done() <-chan struct{} { return t.done }

// Stop ends the track. Attached sinks keep their last frame.
func (t *Track) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// SetFrame replaces the image served to sinks.
func (t *Track) SetFrame(img image.Image) {
	t.mu.Lock()
	t.frame = img
	t.mu.Unlock()
}

// Attaches returns how many sinks were attached so far.
func (t *Track) Attaches() int { return int(t.attaches.Load()) }

// Active returns how many attached sinks have not been closed yet.
func (t *Track) Active() int { return int(t.attaches.Load() - t.detaches.Load()) }

// Attach creates a sink playing the track.
func (t *Track) Attach(ctx context.Context) (capture.Sink, error) {
	if capture.Ended(t) {
		return nil, capture.ErrNoTrack
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.attaches.Add(1)

	s := &sink{track: t, ready: make(chan struct{})}
	switch d := t.opts.ReadyDelay; {
	case d == 0:
		close(s.ready)
	case d > 0:
		s.timer = time.AfterFunc(d, func() { close(s.ready) })
	}
	return s, nil
}

func (t *Track) current() image.Image {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame
}

func (t *Track) size() (int, int) {
	img := t.current()
	if img == nil {
		return 0, 0
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

type sink struct {
	track  *Track
	ready  chan struct{}
	timer  *time.Timer
	closed atomic.Bool
}

func (s *sink) Ready() <-chan struct{} { return s.ready }

func (s *sink) VideoSize() (int, int) {
	select {
	case <-s.ready:
		return s.track.size()
	default:
		return 0, 0
	}
}

func (s *sink) CurrentFrame() (image.Image, error) {
	if s.closed.Load() {
		return nil, capture.ErrFrameUnavailable
	}
	img := s.track.current()
	if img == nil {
		return nil, capture.ErrFrameUnavailable
	}
	return img, nil
}

func (s *sink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.track.detaches.Add(1)
	return nil
}
