// Package ffmpeg provides a capture.Track that reads frames from any input
// ffmpeg understands: video files, capture devices or network streams.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/menta2k/framecrop/pkg/capture"
	"github.com/menta2k/framecrop/pkg/codec"
)

// replaced in tests
var probe = func(source string, kw ffmpeg.KwArgs) (string, error) {
	return ffmpeg.Probe(source, kw)
}

// Options configures how the input is opened.
type Options struct {
	// Format forces the input format (e.g. "x11grab", "v4l2", "avfoundation").
	Format string
	// Input holds extra input arguments passed to ffmpeg as-is.
	Input ffmpeg.KwArgs
	// Position is the timestamp in seconds a frame is read from.
	Position float64
	// Width and Height override the probed size, for inputs that can't be probed.
	Width  int
	Height int
	Logger *slog.Logger
}

// ProbeInfo is the subset of ffprobe output the track needs.
type ProbeInfo struct {
	Width     int
	Height    int
	FrameRate float64
	Duration  float64
	Codec     string
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		FrameRate string `json:"r_frame_rate"`
		AvgRate   string `json:"avg_frame_rate"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ParseProbe extracts the first video stream from ffprobe JSON output.
func ParseProbe(data string) (ProbeInfo, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return ProbeInfo{}, errors.WithStack(err)
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info := ProbeInfo{Width: s.Width, Height: s.Height, Codec: s.CodecName}
		info.FrameRate = parseFrameRate(s.AvgRate)
		if info.FrameRate == 0 {
			info.FrameRate = parseFrameRate(s.FrameRate)
		}
		info.Duration = parseSeconds(s.Duration)
		if info.Duration == 0 {
			info.Duration = parseSeconds(out.Format.Duration)
		}
		return info, nil
	}
	return ProbeInfo{}, errors.New("no video stream found")
}

// parseFrameRate parses ffprobe's "num/den" notation.
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseSeconds(s)
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// Track is a video track read through ffmpeg.
type Track struct {
	source string
	opts   Options
	info   ProbeInfo
	logger *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
	active   atomic.Int32
}

// Open probes source and returns a track for it. When probing fails but
// Options carries an explicit size, the track opens with that size.
func Open(ctx context.Context, source string, opts Options) (*Track, error) {
	if source == "" {
		return nil, errors.New("empty source")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	t := &Track{source: source, opts: opts, logger: logger, done: make(chan struct{})}

	kw := ffmpeg.KwArgs{}
	if opts.Format != "" {
		kw["f"] = opts.Format
	}
	raw, err := probe(source, kw)
	if err == nil {
		t.info, err = ParseProbe(raw)
	}
	if err != nil {
		if opts.Width <= 0 || opts.Height <= 0 {
			return nil, errors.Wrapf(err, "probe %s", source)
		}
		logger.Debug("Probe failed, using configured size", "source", source, "error", err)
	}
	if opts.Width > 0 && opts.Height > 0 {
		t.info.Width, t.info.Height = opts.Width, opts.Height
	}

	logger.Debug("Opened ffmpeg source",
		"source", source,
		"width", t.info.Width,
		"height", t.info.Height,
		"fps", t.info.FrameRate,
		"duration", t.info.Duration)
	return t, nil
}

// Info returns the probed stream information.
func (t *Track) Info() ProbeInfo { return t.info }

// Settings reports the stream's size.
func (t *Track) Settings() capture.TrackSettings {
	return capture.TrackSettings{
		Width:     t.info.Width,
		Height:    t.info.Height,
		FrameRate: t.info.FrameRate,
		Label:     t.source,
	}
}

// Done is closed by Stop.
func (t *Track) Done() <-chan struct{} { return t.done }

// Stop ends the track.
func (t *Track) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// Active returns the number of attached sinks.
func (t *Track) Active() int { return int(t.active.Load()) }

// Attach starts ffmpeg in the background to decode one frame at the
// configured position. The sink becomes ready once the frame is decoded.
func (t *Track) Attach(ctx context.Context) (capture.Sink, error) {
	if capture.Ended(t) {
		return nil, capture.ErrNoTrack
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &sink{
		track:  t,
		ready:  make(chan struct{}),
		failed: make(chan struct{}),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.active.Add(1)

	go func() {
		defer close(s.done)
		img, err := grabFrame(runCtx, t.source, t.inputArgs())
		if err != nil {
			t.logger.Debug("Frame grab failed", "source", t.source, "error", err)
			s.err = err
			close(s.failed)
			return
		}
		s.frame = img
		close(s.ready)
	}()
	return s, nil
}

func (t *Track) inputArgs() ffmpeg.KwArgs {
	kw := ffmpeg.KwArgs{}
	for k, v := range t.opts.Input {
		kw[k] = v
	}
	if t.opts.Format != "" {
		kw["f"] = t.opts.Format
	}
	if t.opts.Position > 0 {
		kw["ss"] = strconv.FormatFloat(t.opts.Position, 'f', 3, 64)
	}
	return kw
}

// replaced in tests
var grabFrame = func(ctx context.Context, source string, input ffmpeg.KwArgs) (image.Image, error) {
	var stdout, stderr bytes.Buffer
	cmd := ffmpeg.Input(source, input).
		Output("pipe:", ffmpeg.KwArgs{"vframes": 1, "format": "image2", "vcodec": "png"}).
		WithOutput(&stdout).
		WithErrorOutput(&stderr).
		Compile()

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start ffmpeg")
	}
	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, errors.Wrapf(err, "ffmpeg failed: %s", lastLine(stderr.String()))
		}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	}

	img, _, err := codec.Decode(stdout.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode ffmpeg output")
	}
	return img, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

type sink struct {
	track  *Track
	ready  chan struct{}
	failed chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool

	// written before ready or failed are closed
	frame image.Image
	err   error
}

func (s *sink) Ready() <-chan struct{} { return s.ready }

// Failed is closed when the grab ended without a frame.
func (s *sink) Failed() <-chan struct{} { return s.failed }

// Err returns why the grab failed, or nil.
func (s *sink) Err() error {
	select {
	case <-s.failed:
		return s.err
	default:
		return nil
	}
}

func (s *sink) VideoSize() (int, int) {
	select {
	case <-s.ready:
		b := s.frame.Bounds()
		return b.Dx(), b.Dy()
	default:
		return 0, 0
	}
}

func (s *sink) CurrentFrame() (image.Image, error) {
	if s.closed.Load() {
		return nil, capture.ErrFrameUnavailable
	}
	select {
	case <-s.ready:
		return s.frame, nil
	default:
	}
	select {
	case <-s.failed:
		return nil, fmt.Errorf("%w: %w", capture.ErrFrameUnavailable, s.err)
	default:
		return nil, capture.ErrFrameUnavailable
	}
}

func (s *sink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	<-s.done
	s.track.active.Add(-1)
	return nil
}
