// Package preview renders the cropped region of a live track continuously and
// draws crop overlays on captured frames.
package preview

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/menta2k/framecrop/pkg/capture"
	"github.com/menta2k/framecrop/pkg/types"
)

// ErrSurfaceClosed is returned by a Surface that can no longer present
// frames. The renderer stops when it sees it.
var ErrSurfaceClosed = errors.New("preview surface closed")

// Surface receives rendered preview frames. The image passed to Present is
// reused by the next tick and must not be retained.
type Surface interface {
	Present(img image.Image) error
}

// Config holds configuration for the preview renderer
type Config struct {
	// Interval between redraws, one per display refresh by default.
	Interval time.Duration
	// StatsInterval controls how often frame counters are logged.
	StatsInterval time.Duration
}

// DefaultConfig returns a ~60 Hz renderer logging stats every 5s.
func DefaultConfig() Config {
	return Config{
		Interval:      16 * time.Millisecond,
		StatsInterval: 5 * time.Second,
	}
}

// Stats summarises renderer activity.
type Stats struct {
	Frames  uint64
	Skipped uint64
	Width   int
	Height  int
}

// Renderer draws the cropped region of the current video frame onto a
// Surface on every tick.
type Renderer struct {
	config  Config
	track   capture.Track
	surface Surface
	logger  *slog.Logger

	insets  atomic.Pointer[types.CropInsets]
	frames  atomic.Uint64
	skipped atomic.Uint64
	width   atomic.Int64
	height  atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	canvas *image.RGBA // owned by the loop goroutine
}

// New creates a renderer with default configuration.
func New(track capture.Track, surface Surface, insets types.CropInsets) *Renderer {
	return NewWithConfig(DefaultConfig(), track, surface, insets, nil)
}

// NewWithConfig creates a renderer with custom configuration.
func NewWithConfig(config Config, track capture.Track, surface Surface, insets types.CropInsets, logger *slog.Logger) *Renderer {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = def.StatsInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Renderer{
		config:  config,
		track:   track,
		surface: surface,
		logger:  logger,
	}
	r.SetInsets(insets)
	return r
}

// SetInsets changes the insets used from the next tick on. It may be called
// from any goroutine while the renderer runs.
func (r *Renderer) SetInsets(in types.CropInsets) {
	in = in.NonNegative()
	r.insets.Store(&in)
}

// Insets returns the insets currently rendered.
func (r *Renderer) Insets() types.CropInsets {
	return *r.insets.Load()
}

// Stats returns frame counters and the current preview size.
func (r *Renderer) Stats() Stats {
	return Stats{
		Frames:  r.frames.Load(),
		Skipped: r.skipped.Load(),
		Width:   int(r.width.Load()),
		Height:  int(r.height.Load()),
	}
}

// Running reports whether the render loop is active.
func (r *Renderer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running()
}

func (r *Renderer) running() bool {
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Start attaches a sink to the track and starts the render loop. Starting a
// running renderer is a no-op.
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running() {
		return nil
	}
	if r.track == nil || capture.Ended(r.track) {
		return capture.ErrNoTrack
	}
	if r.surface == nil {
		return ErrSurfaceClosed
	}

	sink, err := r.track.Attach(ctx)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	go r.loop(loopCtx, sink, done)
	return nil
}

// Stop ends the render loop and waits for the sink to be detached. It is
// idempotent and safe to call on a renderer that never started.
func (r *Renderer) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed once the render loop has exited. It returns nil before the
// first Start.
func (r *Renderer) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Renderer) loop(ctx context.Context, sink capture.Sink, done chan struct{}) {
	ticker := time.NewTicker(r.config.Interval)
	statsTicker := time.NewTicker(r.config.StatsInterval)
	defer func() {
		ticker.Stop()
		statsTicker.Stop()
		if err := sink.Close(); err != nil {
			r.logger.Warn("preview detach sink", "error", err)
		}
		r.logStats()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.track.Done():
			r.logger.Debug("preview.stop", "reason", "track ended")
			return
		case <-statsTicker.C:
			r.logStats()
		case <-ticker.C:
			if err := r.renderFrame(sink); err != nil {
				if errors.Is(err, ErrSurfaceClosed) {
					r.logger.Debug("preview.stop", "reason", "surface closed")
					return
				}
				r.skipped.Add(1)
				r.logger.Debug("preview frame", "error", err)
			}
		}
	}
}

func (r *Renderer) renderFrame(sink capture.Sink) error {
	vw, vh := sink.VideoSize()
	if vw <= 0 || vh <= 0 {
		r.skipped.Add(1)
		return nil
	}
	frame, err := sink.CurrentFrame()
	if err != nil {
		return err
	}
	if frame == nil {
		r.skipped.Add(1)
		return nil
	}

	in := r.Insets()
	w := max(1, vw-in.Left-in.Right)
	h := max(1, vh-in.Top-in.Bottom)
	canvas := r.resize(w, h)

	src := image.Rect(in.Left, in.Top, in.Left+w, in.Top+h).Add(frame.Bounds().Min)
	if !src.In(frame.Bounds()) {
		clear(canvas.Pix)
	}
	draw.Draw(canvas, canvas.Bounds(), frame, src.Min, draw.Src)

	if err := r.surface.Present(canvas); err != nil {
		return err
	}
	r.frames.Add(1)
	return nil
}

// resize returns a canvas of exactly w x h, reusing the previous one when the
// size is unchanged.
func (r *Renderer) resize(w, h int) *image.RGBA {
	if r.canvas != nil && r.canvas.Bounds().Dx() == w && r.canvas.Bounds().Dy() == h {
		return r.canvas
	}
	r.canvas = image.NewRGBA(image.Rect(0, 0, w, h))
	r.width.Store(int64(w))
	r.height.Store(int64(h))
	return r.canvas
}

func (r *Renderer) logStats() {
	stats := r.Stats()
	r.logger.Debug("preview.stats",
		"frames", stats.Frames,
		"skipped", stats.Skipped,
		"width", stats.Width,
		"height", stats.Height,
	)
}
