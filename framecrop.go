// Package framecrop captures single frames from a live screen-sharing track,
// crops them by persisted edge insets and stores the result.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/menta2k/framecrop"
//		"github.com/menta2k/framecrop/pkg/source/screen"
//	)
//
//	func main() {
//		engine := framecrop.New()
//		track := screen.New()
//		defer track.Stop()
//
//		id, err := engine.RefreshScreenshot(context.Background(), track, "")
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("stored screenshot %s", id)
//	}
//
// The package ties together the main components:
//
//  1. Capture (pkg/capture): grabs one frame from a track onto an offscreen surface
//  2. Cropper (pkg/cropper): applies CropInsets and encodes the result
//  3. Editor (pkg/editor): the drag/resize box that edits the insets
//  4. Preview (pkg/preview): live rendering of the cropped region
//  5. Store (pkg/store): persisted insets and stored screenshots
//  6. Suggest (pkg/suggest): proposes insets from a captured frame
//
// Tracks come from pkg/source: the live desktop (screen), anything ffmpeg can
// read (ffmpeg), or a fixed image (still).
package framecrop

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/menta2k/framecrop/pkg/capture"
	"github.com/menta2k/framecrop/pkg/codec"
	"github.com/menta2k/framecrop/pkg/cropper"
	"github.com/menta2k/framecrop/pkg/editor"
	"github.com/menta2k/framecrop/pkg/preview"
	"github.com/menta2k/framecrop/pkg/store"
	"github.com/menta2k/framecrop/pkg/suggest"
	"github.com/menta2k/framecrop/pkg/types"
)

// Version of the framecrop library
const Version = "1.0.0"

// Config holds configuration for every engine component
type Config struct {
	Capture capture.Config
	Codec   codec.Config
	Session editor.SessionConfig
	Preview preview.Config
}

// DefaultConfig returns the default component configuration.
func DefaultConfig() Config {
	return Config{
		Capture: capture.DefaultConfig(),
		Codec:   codec.DefaultConfig(),
		Session: editor.DefaultSessionConfig(),
		Preview: preview.DefaultConfig(),
	}
}

// Options supplies the engine's collaborators. Nil fields get in-memory or
// default implementations.
type Options struct {
	Settings  store.SettingsStore
	Artifacts store.ArtifactStore
	Suggester suggest.Suggester
	Logger    *slog.Logger
}

// Engine provides a high-level interface for capturing and cropping frames
type Engine struct {
	config    Config
	pipeline  *capture.Pipeline
	cropper   *cropper.Applier
	settings  store.SettingsStore
	artifacts store.ArtifactStore
	suggester suggest.Suggester
	logger    *slog.Logger
}

// New creates an Engine with default configuration and in-memory stores
func New() *Engine {
	return NewWithConfig(DefaultConfig(), Options{})
}

// NewWithConfig creates an Engine with custom configuration
func NewWithConfig(config Config, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Settings == nil {
		opts.Settings = store.NewMemorySettingsStore(store.DefaultInsets())
	}
	if opts.Artifacts == nil {
		opts.Artifacts = store.NewMemoryArtifactStore()
	}
	if opts.Suggester == nil {
		opts.Suggester = suggest.NewBorderSuggester()
	}
	if config.Session.Logger == nil {
		config.Session.Logger = logger
	}

	encoder := codec.NewWithConfig(config.Codec)
	return &Engine{
		config:    config,
		pipeline:  capture.NewWithConfig(config.Capture, encoder, logger),
		cropper:   cropper.NewWithConfig(encoder),
		settings:  opts.Settings,
		artifacts: opts.Artifacts,
		suggester: opts.Suggester,
		logger:    logger,
	}
}

// Pipeline returns the capture pipeline.
func (e *Engine) Pipeline() *capture.Pipeline { return e.pipeline }

// Settings returns the settings store.
func (e *Engine) Settings() store.SettingsStore { return e.settings }

// Artifacts returns the artifact store.
func (e *Engine) Artifacts() store.ArtifactStore { return e.artifacts }

// CaptureFrame captures one uncropped frame from track.
func (e *Engine) CaptureFrame(ctx context.Context, track capture.Track) (types.CompressedImage, error) {
	return e.pipeline.CaptureFrame(ctx, track)
}

// CaptureAndCrop captures one frame from track and crops it by insets.
// Insets that leave no pixels produce the full uncropped frame. Encoding
// failures wrap capture.ErrEncodeFailure.
func (e *Engine) CaptureAndCrop(ctx context.Context, track capture.Track, insets types.CropInsets) (types.CompressedImage, error) {
	frame, err := e.pipeline.Grab(ctx, track)
	if err != nil {
		return types.CompressedImage{}, err
	}
	defer frame.Release()

	res, err := e.cropper.Crop(frame.Image, insets)
	if err != nil {
		return types.CompressedImage{}, err
	}
	out, err := e.pipeline.Encode(res.Image)
	if err != nil {
		return types.CompressedImage{}, err
	}
	e.logger.Debug("Captured and cropped frame",
		"insets", insets,
		"degenerate", res.Degenerate,
		"width", out.Width,
		"height", out.Height,
		"bytes", len(out.Data))
	return out, nil
}

// CaptureWithSettings crops a fresh capture by the persisted insets.
func (e *Engine) CaptureWithSettings(ctx context.Context, track capture.Track) (types.CompressedImage, error) {
	insets, err := e.settings.Load()
	if err != nil {
		return types.CompressedImage{}, fmt.Errorf("failed to load crop settings: %w", err)
	}
	return e.CaptureAndCrop(ctx, track, insets)
}

// RefreshScreenshot captures, crops by the persisted insets and stores the
// result under id, replacing what was stored there. An empty id stores a new
// screenshot. The id used is returned. A failed capture leaves the stored
// artifact untouched.
func (e *Engine) RefreshScreenshot(ctx context.Context, track capture.Track, id string) (string, error) {
	img, err := e.CaptureWithSettings(ctx, track)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = store.NewArtifactID()
	}
	if err := e.artifacts.Put(id, img); err != nil {
		return "", fmt.Errorf("failed to store screenshot: %w", err)
	}
	e.logger.Info("Stored screenshot", "id", id, "width", img.Width, "height", img.Height)
	return id, nil
}

// OpenEditor opens an editor session on track, starting from the persisted
// insets. Saving the session persists the edited insets.
func (e *Engine) OpenEditor(ctx context.Context, track capture.Track, container types.Size) (*editor.Session, error) {
	insets, err := e.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load crop settings: %w", err)
	}
	return editor.Open(ctx, track, insets, container, e.settings, e.config.Session)
}

// NewPreview creates a live preview of track cropped by the persisted insets.
// The caller starts and stops the renderer.
func (e *Engine) NewPreview(track capture.Track, surface preview.Surface) (*preview.Renderer, error) {
	insets, err := e.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load crop settings: %w", err)
	}
	return preview.NewWithConfig(e.config.Preview, track, surface, insets, e.logger), nil
}

// Suggest captures one frame from track and proposes insets for it. The
// suggestion is not persisted.
func (e *Engine) Suggest(ctx context.Context, track capture.Track) (suggest.Suggestion, error) {
	frame, err := e.pipeline.Grab(ctx, track)
	if err != nil {
		return suggest.Suggestion{}, err
	}
	defer frame.Release()
	return e.SuggestImage(ctx, frame.Image)
}

// SuggestImage proposes insets for an already captured image. The result's
// Box is the kept region normalized to the image size.
func (e *Engine) SuggestImage(ctx context.Context, img image.Image) (suggest.Suggestion, error) {
	s, err := e.suggester.Suggest(ctx, img)
	if err != nil {
		return suggest.Suggestion{}, fmt.Errorf("crop suggestion failed: %w", err)
	}
	b := img.Bounds()
	return s.WithBox(b.Dx(), b.Dy()), nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
