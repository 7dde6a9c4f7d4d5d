package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/menta2k/framecrop/pkg/types"
)

var (
	// ErrNoTrack means no live track is available: screen sharing was never
	// granted, or the track has ended.
	ErrNoTrack = errors.New("no live video track available")
	// ErrCaptureTimeout means the sink never reported its video metadata.
	ErrCaptureTimeout = errors.New("timed out waiting for video metadata")
	// ErrFrameUnavailable means the sink was ready but could not produce a frame.
	ErrFrameUnavailable = errors.New("video frame unavailable")
	// ErrEncodeFailure means the captured surface could not be encoded.
	ErrEncodeFailure = errors.New("failed to encode captured frame")
	// ErrCaptureBusy means another capture on the same pipeline is in flight.
	ErrCaptureBusy = errors.New("capture already in progress")
)

// TrackSettings are the settings a live video track reports. Width and Height
// are the configured capture resolution and may be zero when unknown.
type TrackSettings struct {
	Width     int
	Height    int
	FrameRate float64
	Label     string
}

// Track is a live video track owned by an external provider. The capture core
// only reads from it: it attaches sinks but never stops the track.
type Track interface {
	Settings() TrackSettings
	// Attach plays the track into a new hidden sink. The caller owns the sink
	// and must Close it.
	Attach(ctx context.Context) (Sink, error)
	// Done is closed when the track has ended.
	Done() <-chan struct{}
}

// Sink is a hidden video element playing a track.
type Sink interface {
	// Ready is closed once the sink knows the native video dimensions.
	Ready() <-chan struct{}
	// VideoSize returns the native video dimensions, or zeros before Ready.
	VideoSize() (width, height int)
	// CurrentFrame returns the frame currently shown by the sink.
	CurrentFrame() (image.Image, error)
	// Close detaches the sink from the track.
	Close() error
}

// FailingSink is implemented by sinks that can fail before becoming ready,
// such as ones fed by an external process.
type FailingSink interface {
	Sink
	// Failed is closed when the sink gave up without becoming ready.
	Failed() <-chan struct{}
	// Err returns the cause once Failed is closed.
	Err() error
}

// WaitReady blocks until sink is ready, has failed, timeout elapses or ctx is
// done. A failed sink yields ErrFrameUnavailable wrapping its cause.
func WaitReady(ctx context.Context, sink Sink, timeout time.Duration) error {
	var failed <-chan struct{}
	fs, canFail := sink.(FailingSink)
	if canFail {
		failed = fs.Failed()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sink.Ready():
		return nil
	case <-failed:
		return fmt.Errorf("%w: %w", ErrFrameUnavailable, fs.Err())
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrCaptureTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Encoder turns a raster image into a compressed buffer.
type Encoder interface {
	Encode(img image.Image) (types.CompressedImage, error)
}

// Ended reports whether the track has ended, without blocking.
func Ended(t Track) bool {
	if t == nil {
		return true
	}
	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}
