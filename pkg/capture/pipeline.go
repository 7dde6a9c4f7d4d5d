// Package capture grabs single frames from a live video track and encodes
// them. Every call attaches its own hidden sink and releases it before
// returning, whether the capture succeeded or not.
package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/menta2k/framecrop/pkg/codec"
	"github.com/menta2k/framecrop/pkg/types"
)

// Config holds configuration for the capture pipeline
type Config struct {
	// MetadataTimeout bounds the wait for the sink to report its dimensions.
	MetadataTimeout time.Duration
	// SettleDelay lets the sink present a real frame after metadata arrives.
	SettleDelay time.Duration
	// DefaultWidth and DefaultHeight size the surface when the track reports zero.
	DefaultWidth  int
	DefaultHeight int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		MetadataTimeout: 2 * time.Second,
		SettleDelay:     100 * time.Millisecond,
		DefaultWidth:    1280,
		DefaultHeight:   720,
	}
}

// Stats summarises pipeline activity.
type Stats struct {
	Captures    uint64
	Failures    uint64
	LastCapture time.Duration
}

// Pipeline captures one frame per call. Calls on one pipeline must not
// overlap; an overlapping call fails with ErrCaptureBusy.
type Pipeline struct {
	config  Config
	encoder Encoder
	logger  *slog.Logger

	busy      atomic.Bool
	captures  atomic.Uint64
	failures  atomic.Uint64
	lastNanos atomic.Int64
}

// New creates a pipeline with default configuration and a WebP encoder.
func New() *Pipeline {
	return NewWithConfig(DefaultConfig(), codec.New(), nil)
}

// NewWithConfig creates a pipeline with custom configuration. A nil encoder
// selects the default WebP encoder; a nil logger discards log output.
func NewWithConfig(config Config, encoder Encoder, logger *slog.Logger) *Pipeline {
	def := DefaultConfig()
	if config.MetadataTimeout <= 0 {
		config.MetadataTimeout = def.MetadataTimeout
	}
	if config.SettleDelay < 0 {
		config.SettleDelay = 0
	}
	if config.DefaultWidth <= 0 || config.DefaultHeight <= 0 {
		config.DefaultWidth, config.DefaultHeight = def.DefaultWidth, def.DefaultHeight
	}
	if encoder == nil {
		encoder = codec.New()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{config: config, encoder: encoder, logger: logger}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.config }

// Encoder returns the encoder used for captured frames.
func (p *Pipeline) Encoder() Encoder { return p.encoder }

// Stats returns capture counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Captures:    p.captures.Load(),
		Failures:    p.failures.Load(),
		LastCapture: time.Duration(p.lastNanos.Load()),
	}
}

// CaptureFrame grabs one frame from track and encodes it.
func (p *Pipeline) CaptureFrame(ctx context.Context, track Track) (types.CompressedImage, error) {
	frame, err := p.Grab(ctx, track)
	if err != nil {
		return types.CompressedImage{}, err
	}
	defer frame.Release()

	return p.Encode(frame.Image)
}

// Encode encodes a raster with the pipeline's encoder, reporting failures as
// ErrEncodeFailure.
func (p *Pipeline) Encode(img image.Image) (types.CompressedImage, error) {
	out, err := p.encoder.Encode(img)
	if err != nil {
		p.failures.Add(1)
		return types.CompressedImage{}, fmt.Errorf("%w: %w", ErrEncodeFailure, err)
	}
	return out, nil
}

// Grab captures one raster frame from track. The sink attached for the
// capture is closed before Grab returns. The caller must Release the frame.
func (p *Pipeline) Grab(ctx context.Context, track Track) (*Frame, error) {
	if track == nil {
		return nil, ErrNoTrack
	}
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrCaptureBusy
	}
	defer p.busy.Store(false)

	start := time.Now()
	frame, err := p.grab(ctx, track)
	if err != nil {
		p.failures.Add(1)
		p.logger.Warn("capture failed", "track", track.Settings().Label, "error", err)
		return nil, err
	}

	elapsed := time.Since(start)
	p.captures.Add(1)
	p.lastNanos.Store(int64(elapsed))
	p.logger.Debug("capture.frame",
		"width", frame.Width(),
		"height", frame.Height(),
		"video_width", frame.VideoWidth,
		"video_height", frame.VideoHeight,
		"elapsed", elapsed,
	)
	return frame, nil
}

func (p *Pipeline) grab(ctx context.Context, track Track) (*Frame, error) {
	if Ended(track) {
		return nil, fmt.Errorf("%w: track ended", ErrNoTrack)
	}

	sink, err := track.Attach(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: attach sink: %w", ErrNoTrack, err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			p.logger.Warn("detach sink", "error", cerr)
		}
	}()

	if err := WaitReady(ctx, sink, p.config.MetadataTimeout); err != nil {
		return nil, err
	}
	if err := sleep(ctx, p.config.SettleDelay); err != nil {
		return nil, err
	}

	src, err := sink.CurrentFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameUnavailable, err)
	}
	if src == nil || src.Bounds().Empty() {
		return nil, ErrFrameUnavailable
	}

	w, h := p.surfaceSize(track.Settings())
	surface := acquireSurface(image.Rect(0, 0, w, h))
	drawFrame(surface, src)

	vw, vh := sink.VideoSize()
	return &Frame{
		Image:       surface,
		CapturedAt:  time.Now(),
		VideoWidth:  vw,
		VideoHeight: vh,
	}, nil
}

// surfaceSize follows the track's configured resolution, falling back to the
// default size when the track reports zero.
func (p *Pipeline) surfaceSize(s TrackSettings) (int, int) {
	if s.Width <= 0 || s.Height <= 0 {
		return p.config.DefaultWidth, p.config.DefaultHeight
	}
	return s.Width, s.Height
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
