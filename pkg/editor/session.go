package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/menta2k/framecrop/pkg/capture"
	"github.com/menta2k/framecrop/pkg/geometry"
	"github.com/menta2k/framecrop/pkg/preview"
	"github.com/menta2k/framecrop/pkg/types"
)

// ErrSessionClosed is returned when a saved or cancelled session is used.
var ErrSessionClosed = errors.New("editor session closed")

// SettingsSaver persists crop insets.
type SettingsSaver interface {
	Save(insets types.CropInsets) error
}

// Outcome is how an editor session ended.
type Outcome struct {
	Saved  bool
	Insets types.CropInsets
}

// SessionConfig holds configuration for an editor session
type SessionConfig struct {
	Controller      ControllerConfig
	MetadataTimeout time.Duration
	Logger          *slog.Logger
}

// DefaultSessionConfig returns the session defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Controller:      DefaultControllerConfig(),
		MetadataTimeout: 2 * time.Second,
	}
}

// Session is one open crop editor. It holds a sink on the track for as long
// as it is open and converts the edited box back into insets on Save.
type Session struct {
	sink      capture.Sink
	saver     SettingsSaver
	logger    *slog.Logger
	ctrl      *Controller
	initial   types.CropInsets
	video     types.Size
	container types.Size

	done   chan Outcome
	closed bool
}

// Open attaches an editor to track. It waits up to the metadata timeout for
// the video size; if none arrives the session still opens, the box stays
// empty and Save persists the initial insets unchanged.
func Open(ctx context.Context, track capture.Track, initial types.CropInsets, container types.Size, saver SettingsSaver, config SessionConfig) (*Session, error) {
	if track == nil || capture.Ended(track) {
		return nil, capture.ErrNoTrack
	}
	if saver == nil {
		return nil, fmt.Errorf("editor: nil settings saver")
	}
	if config.MetadataTimeout <= 0 {
		config.MetadataTimeout = DefaultSessionConfig().MetadataTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sink, err := track.Attach(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: attach sink: %w", capture.ErrNoTrack, err)
	}

	s := &Session{
		sink:      sink,
		saver:     saver,
		logger:    logger,
		ctrl:      NewControllerWithConfig(config.Controller, container, types.DisplayRect{}),
		initial:   initial.NonNegative(),
		container: container,
		done:      make(chan Outcome, 1),
	}

	switch err := capture.WaitReady(ctx, sink, config.MetadataTimeout); {
	case err == nil:
		s.SyncVideoSize()
	case ctx.Err() != nil:
		if cerr := sink.Close(); cerr != nil {
			logger.Warn("editor detach sink", "error", cerr)
		}
		return nil, ctx.Err()
	default:
		logger.Warn("editor opened without video metadata", "error", err)
	}

	return s, nil
}

// Controller returns the box controller driven by pointer events.
func (s *Session) Controller() *Controller { return s.ctrl }

// Initial returns the insets the session was opened with.
func (s *Session) Initial() types.CropInsets { return s.initial }

// VideoSize returns the native video size, or a zero Size if unknown.
func (s *Session) VideoSize() types.Size { return s.video }

// Done delivers the outcome once the session is saved or cancelled.
func (s *Session) Done() <-chan Outcome { return s.done }

// Closed reports whether the session has ended.
func (s *Session) Closed() bool { return s.closed }

// Resize updates the container size and re-derives the box from the initial
// insets.
func (s *Session) Resize(container types.Size) {
	s.container = container
	s.ctrl.SetContainer(container)
	s.reset()
}

// SyncVideoSize re-reads the native video size from the sink. When it
// changed, the box is re-derived from the initial insets and true is returned.
func (s *Session) SyncVideoSize() bool {
	if s.closed {
		return false
	}
	w, h := s.sink.VideoSize()
	size := types.SizeOf(w, h)
	if !size.Known() || size == s.video {
		return false
	}
	s.video = size
	s.reset()
	s.logger.Debug("editor.video", "width", w, "height", h)
	return true
}

func (s *Session) reset() {
	if !s.video.Known() || !s.container.Known() {
		return
	}
	s.ctrl.SetBox(geometry.InsetsToDisplayRect(s.initial, s.video, s.container))
}

// Insets converts the current box into native-pixel insets. With an unknown
// video size the initial insets are returned.
func (s *Session) Insets() types.CropInsets {
	if !s.video.Known() || !s.container.Known() {
		return s.initial
	}
	return geometry.DisplayRectToInsets(s.ctrl.Box(), s.video, s.container)
}

// Save persists the current insets and closes the session. A failed save
// leaves the session open so it can be retried or cancelled.
func (s *Session) Save(ctx context.Context) (types.CropInsets, error) {
	if s.closed {
		return types.CropInsets{}, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return types.CropInsets{}, err
	}

	s.ctrl.EndDrag()
	insets := s.Insets()
	if err := s.saver.Save(insets); err != nil {
		return types.CropInsets{}, fmt.Errorf("failed to save crop settings: %w", err)
	}

	s.logger.Info("crop settings saved",
		"top", insets.Top, "right", insets.Right, "bottom", insets.Bottom, "left", insets.Left)
	s.close(Outcome{Saved: true, Insets: insets})
	return insets, nil
}

// Cancel closes the session without saving. It is a no-op on a closed session.
func (s *Session) Cancel() {
	if s.closed {
		return
	}
	s.close(Outcome{Insets: s.initial})
}

func (s *Session) close(o Outcome) {
	s.closed = true
	if err := s.sink.Close(); err != nil {
		s.logger.Warn("editor detach sink", "error", err)
	}
	s.done <- o
	close(s.done)
}

// Overlay renders the current native frame with the edited crop outlined.
func (s *Session) Overlay() (image.Image, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	frame, err := s.sink.CurrentFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", capture.ErrFrameUnavailable, err)
	}
	return preview.CreateOverlay(frame, s.Insets(), nil), nil
}
