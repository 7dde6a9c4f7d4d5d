package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/menta2k/framecrop/pkg/types"
)

// stubTrack is a Track whose sinks serve a fixed frame.
type stubTrack struct {
	settings TrackSettings
	frame    image.Image
	frameErr error
	never    bool  // sinks never become ready
	failWith error // sinks fail instead of becoming ready
	hold     chan struct{}
	done     chan struct{}

	attached atomic.Int32
	closed   atomic.Int32
}

func newStubTrack(w, h int) *stubTrack {
	return &stubTrack{
		settings: TrackSettings{Width: w, Height: h, Label: "stub"},
		frame:    createTestImage(w, h),
		done:     make(chan struct{}),
	}
}

func (t *stubTrack) Settings() TrackSettings { return t.settings }
func (t *stubTrack) Done() <-chan struct{}   { return t.done }

func (t *stubTrack) Attach(ctx context.Context) (Sink, error) {
	t.attached.Add(1)
	ready := make(chan struct{})
	if t.failWith != nil {
		failed := make(chan struct{})
		close(failed)
		return &failedSink{stubSink: &stubSink{track: t, ready: ready}, failed: failed, err: t.failWith}, nil
	}
	if !t.never {
		close(ready)
	}
	return &stubSink{track: t, ready: ready}, nil
}

// failedSink gave up before becoming ready.
type failedSink struct {
	*stubSink
	failed chan struct{}
	err    error
}

func (s *failedSink) Failed() <-chan struct{} { return s.failed }
func (s *failedSink) Err() error              { return s.err }

type stubSink struct {
	track *stubTrack
	ready chan struct{}
}

func (s *stubSink) Ready() <-chan struct{} { return s.ready }

func (s *stubSink) VideoSize() (int, int) {
	if s.track.frame == nil {
		return 0, 0
	}
	b := s.track.frame.Bounds()
	return b.Dx(), b.Dy()
}

func (s *stubSink) CurrentFrame() (image.Image, error) {
	if s.track.hold != nil {
		<-s.track.hold
	}
	return s.track.frame, s.track.frameErr
}

func (s *stubSink) Close() error {
	s.track.closed.Add(1)
	return nil
}

type failingEncoder struct{}

func (failingEncoder) Encode(image.Image) (types.CompressedImage, error) {
	return types.CompressedImage{}, errors.New("boom")
}

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 200, 255})
		}
	}
	return img
}

func testConfig() Config {
	return Config{
		MetadataTimeout: 50 * time.Millisecond,
		SettleDelay:     time.Millisecond,
		DefaultWidth:    64,
		DefaultHeight:   36,
	}
}

func assertReleased(t *testing.T, track *stubTrack) {
	t.Helper()
	if a, c := track.attached.Load(), track.closed.Load(); a != c {
		t.Errorf("Expected every sink closed, attached %d closed %d", a, c)
	}
}

func TestCaptureFrame(t *testing.T) {
	p := NewWithConfig(testConfig(), nil, nil)
	track := newStubTrack(80, 60)

	out, err := p.CaptureFrame(context.Background(), track)
	if err != nil {
		t.Fatalf("CaptureFrame failed: %v", err)
	}
	if out.Width != 80 || out.Height != 60 {
		t.Errorf("Expected 80x60, got %dx%d", out.Width, out.Height)
	}
	if out.Format != "webp" || out.Len() == 0 {
		t.Errorf("Expected non-empty webp, got %s (%d bytes)", out.Format, out.Len())
	}
	assertReleased(t, track)

	if s := p.Stats(); s.Captures != 1 || s.Failures != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestGrabUsesDefaultSize(t *testing.T) {
	p := NewWithConfig(testConfig(), nil, nil)
	track := newStubTrack(20, 10)
	track.settings.Width, track.settings.Height = 0, 0

	frame, err := p.Grab(context.Background(), track)
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}
	defer frame.Release()

	if frame.Width() != 64 || frame.Height() != 36 {
		t.Errorf("Expected default 64x36, got %dx%d", frame.Width(), frame.Height())
	}
	if frame.VideoWidth != 20 || frame.VideoHeight != 10 {
		t.Errorf("Expected video size 20x10, got %dx%d", frame.VideoWidth, frame.VideoHeight)
	}
}

func TestGrabCopiesPixels(t *testing.T) {
	p := NewWithConfig(testConfig(), nil, nil)
	track := newStubTrack(16, 16)

	frame, err := p.Grab(context.Background(), track)
	if err != nil {
		t.Fatal(err)
	}
	defer frame.Release()

	got := frame.Image.RGBAAt(5, 7)
	want := color.RGBA{5, 7, 200, 255}
	if got != want {
		t.Errorf("Expected %v at (5,7), got %v", want, got)
	}
}

func TestCaptureTimeout(t *testing.T) {
	p := NewWithConfig(testConfig(), nil, nil)
	track := newStubTrack(32, 32)
	track.never = true

	_, err := p.CaptureFrame(context.Background(), track)
	if !errors.Is(err, ErrCaptureTimeout) {
		t.Fatalf("Expected ErrCaptureTimeout, got %v", err)
	}
	assertReleased(t, track)
}

func TestCaptureContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.MetadataTimeout = time.Minute
	p := NewWithConfig(cfg, nil, nil)
	track := newStubTrack(32, 32)
	track.never = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.CaptureFrame(ctx, track)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context deadline, got %v", err)
	}
	assertReleased(t, track)
}

func TestCaptureSinkFailed(t *testing.T) {
	cfg := testConfig()
	cfg.MetadataTimeout = time.Minute
	p := NewWithConfig(cfg, nil, nil)
	track := newStubTrack(32, 32)
	cause := errors.New("decoder exited")
	track.failWith = cause

	start := time.Now()
	_, err := p.CaptureFrame(context.Background(), track)
	if !errors.Is(err, ErrFrameUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("Expected ErrFrameUnavailable wrapping the cause, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected the failure without waiting for the metadata timeout")
	}
	if p.Stats().Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", p.Stats().Failures)
	}
	assertReleased(t, track)
}

func TestCaptureFrameUnavailable(t *testing.T) {
	p := NewWithConfig(testConfig(), nil, nil)
	track := newStubTrack(32, 32)
	track.frameErr = errors.New("no frame yet")

	_, err := p.CaptureFrame(context.Background(), track)
	if !errors.Is(err, ErrFrameUnavailable) {
		t.Fatalf("Expected ErrFrameUnavailable, got %v", err)
	}
	assertReleased(t, track)
}

func TestCaptureEncodeFailure(t *testing.T) {
	p := NewWithConfig(testConfig(), failingEncoder{}, nil)
	track := newStubTrack(32, 32)

	_, err := p.CaptureFrame(context.Background(), track)
	if !errors.Is(err, ErrEncodeFailure) {
		t.Fatalf("Expected ErrEncodeFailure, got %v", err)
	}
	assertReleased(t, track)

	if p.Stats().Failures != 1 {
		t.Errorf("Expected one failure, got %d", p.Stats().Failures)
	}
}

func TestCaptureNoTrack(t *testing.T) {
	p := NewWithConfig(testConfig(), nil, nil)

	if _, err := p.CaptureFrame(context.Background(), nil); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Expected ErrNoTrack for nil track, got %v", err)
	}

	track := newStubTrack(32, 32)
	close(track.done)
	if _, err := p.CaptureFrame(context.Background(), track); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Expected ErrNoTrack for ended track, got %v", err)
	}
	if track.attached.Load() != 0 {
		t.Error("Expected no sink attached to an ended track")
	}
}

func TestCaptureBusy(t *testing.T) {
	p := NewWithConfig(testConfig(), nil, nil)
	track := newStubTrack(32, 32)
	track.hold = make(chan struct{})

	errc := make(chan error, 1)
	go func() {
		_, err := p.CaptureFrame(context.Background(), track)
		errc <- err
	}()

	// wait for the first capture to reach CurrentFrame
	deadline := time.Now().Add(time.Second)
	for track.attached.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if _, err := p.CaptureFrame(context.Background(), track); !errors.Is(err, ErrCaptureBusy) {
		t.Errorf("Expected ErrCaptureBusy, got %v", err)
	}

	close(track.hold)
	if err := <-errc; err != nil {
		t.Fatalf("first capture failed: %v", err)
	}
	assertReleased(t, track)
}

func TestFrameReleaseTwice(t *testing.T) {
	f := &Frame{Image: acquireSurface(image.Rect(0, 0, 4, 4))}
	f.Release()
	f.Release()
}

func TestAcquireSurfaceReuse(t *testing.T) {
	a := acquireSurface(image.Rect(0, 0, 10, 10))
	recycleSurface(a)
	b := acquireSurface(image.Rect(0, 0, 5, 5))
	if len(b.Pix) != 5*5*4 || b.Stride != 20 {
		t.Errorf("Expected 100 bytes stride 20, got %d stride %d", len(b.Pix), b.Stride)
	}
}

func BenchmarkGrab(b *testing.B) {
	cfg := testConfig()
	cfg.SettleDelay = 0
	p := NewWithConfig(cfg, nil, nil)
	track := newStubTrack(1280, 720)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f, err := p.Grab(ctx, track)
		if err != nil {
			b.Fatal(err)
		}
		f.Release()
	}
}
