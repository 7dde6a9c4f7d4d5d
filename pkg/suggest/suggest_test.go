package suggest

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/framecrop/pkg/codec"
	"github.com/menta2k/framecrop/pkg/types"
)

// createBorderedImage draws a noisy content area inside solid bars.
func createBorderedImage(width, height int, in types.CropInsets, bar color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < in.Left || x >= width-in.Right || y < in.Top || y >= height-in.Bottom {
				img.Set(x, y, bar)
				continue
			}
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 13), uint8(x ^ y), 255})
		}
	}
	return img
}

type stubClient struct {
	result *types.AnalysisResult
	err    error
	model  string
	width  int
}

func (s *stubClient) Ping(context.Context) error { return nil }

func (s *stubClient) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	s.model = model
	raw, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, err
	}
	img, _, err := codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	s.width = img.Bounds().Dx()
	return s.result, s.err
}

func TestBorderSuggesterLetterbox(t *testing.T) {
	want := types.CropInsets{Top: 12, Bottom: 12}
	img := createBorderedImage(160, 90, want, color.RGBA{0, 0, 0, 255})

	got, err := NewBorderSuggester().Suggest(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if got.Insets != want {
		t.Errorf("Expected %+v, got %+v", want, got.Insets)
	}
	if !got.Found() || got.Source != "border" {
		t.Errorf("unexpected suggestion %+v", got)
	}
}

func TestBorderSuggesterChromeAndPillarbox(t *testing.T) {
	// grey title bar on top, black side bars below it
	img := createBorderedImage(200, 100, types.CropInsets{Top: 20, Left: 30, Right: 10}, color.RGBA{0, 0, 0, 255})
	rgba := img.(*image.RGBA)
	for y := 0; y < 20; y++ {
		for x := 0; x < 200; x++ {
			rgba.Set(x, y, color.RGBA{90, 90, 90, 255})
		}
	}

	got, err := NewBorderSuggester().Suggest(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	want := types.CropInsets{Top: 20, Left: 30, Right: 10}
	if got.Insets != want {
		t.Errorf("Expected %+v, got %+v", want, got.Insets)
	}
}

func TestBorderSuggesterNoBorder(t *testing.T) {
	img := createBorderedImage(64, 64, types.CropInsets{}, color.RGBA{})
	got, err := NewBorderSuggester().Suggest(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if got.Found() {
		t.Errorf("Expected no suggestion, got %+v", got)
	}
}

func TestBorderSuggesterBlankFrame(t *testing.T) {
	img := image.NewUniform(color.RGBA{0, 0, 0, 255})
	blank := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			blank.Set(x, y, img.C)
		}
	}
	got, err := NewBorderSuggester().Suggest(context.Background(), blank)
	if err != nil {
		t.Fatal(err)
	}
	if got.Found() || !got.Insets.IsZero() {
		t.Errorf("Expected blank frame to produce no crop, got %+v", got)
	}
}

func TestBorderSuggesterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewBorderSuggester().Suggest(ctx, image.NewRGBA(image.Rect(0, 0, 4, 4))); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestVisionSuggester(t *testing.T) {
	c := &stubClient{result: &types.AnalysisResult{
		Primary: types.Primary{Label: "video", Confidence: 0.8, Box: types.Box{X: 0.25, Y: 0.1, W: 0.5, H: 0.8}},
	}}
	v := NewVisionSuggester(c, VisionConfig{Model: "llava", SendSize: 100})
	img := createBorderedImage(400, 200, types.CropInsets{}, color.RGBA{})

	got, err := v.Suggest(context.Background(), img)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	want := types.CropInsets{Top: 20, Right: 100, Bottom: 20, Left: 100}
	if got.Insets != want {
		t.Errorf("Expected %+v, got %+v", want, got.Insets)
	}
	if c.model != "llava" {
		t.Errorf("Expected model llava, got %s", c.model)
	}
	if c.width != 100 {
		t.Errorf("Expected image downscaled to 100px, got %d", c.width)
	}
}

func TestVisionSuggesterIgnoresNone(t *testing.T) {
	c := &stubClient{result: &types.AnalysisResult{
		Primary: types.Primary{Label: "none", Confidence: 0.9, Box: types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}},
	}}
	got, err := NewVisionSuggester(c, VisionConfig{}).Suggest(context.Background(), createBorderedImage(40, 40, types.CropInsets{}, color.RGBA{}))
	if err != nil {
		t.Fatal(err)
	}
	if got.Found() {
		t.Errorf("Expected no suggestion, got %+v", got)
	}
}

func TestVisionSuggesterError(t *testing.T) {
	c := &stubClient{err: errors.New("offline")}
	_, err := NewVisionSuggester(c, VisionConfig{}).Suggest(context.Background(), createBorderedImage(40, 40, types.CropInsets{}, color.RGBA{}))
	if err == nil {
		t.Error("Expected error from client")
	}
}

func TestBoxToInsets(t *testing.T) {
	tests := []struct {
		box  types.Box
		want types.CropInsets
	}{
		{types.Box{X: 0, Y: 0, W: 1, H: 1}, types.CropInsets{}},
		{types.Box{X: 0.1, Y: 0.2, W: 0.5, H: 0.5}, types.CropInsets{Top: 20, Right: 40, Bottom: 30, Left: 10}},
		{types.Box{X: -0.5, Y: 0, W: 2, H: 1}, types.CropInsets{}},
		{types.Box{X: 0.5, Y: 0.5, W: 0, H: 0}, types.CropInsets{}},
	}
	for _, tt := range tests {
		if got := BoxToInsets(tt.box, 100, 100); got != tt.want {
			t.Errorf("BoxToInsets(%+v) = %+v, want %+v", tt.box, got, tt.want)
		}
	}
}

func TestInsetsToBox(t *testing.T) {
	in := types.CropInsets{Top: 20, Right: 40, Bottom: 30, Left: 10}
	b := InsetsToBox(in, 100, 100)
	if got := BoxToInsets(b, 100, 100); got != in {
		t.Errorf("Expected round trip %+v, got %+v", in, got)
	}
	if b := InsetsToBox(types.CropInsets{Left: 200}, 100, 100); b.W != 1 {
		t.Errorf("Expected full box for degenerate insets, got %+v", b)
	}
}

// createSalientImage draws high-contrast noise inside content and a soft
// horizontal gradient everywhere else.
func createSalientImage(width, height int, content image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	seed := uint32(1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if image.Pt(x, y).In(content) {
				seed = seed*1664525 + 1013904223
				v := uint8(seed >> 24)
				img.Set(x, y, color.RGBA{v, 255 - v, v / 2, 255})
				continue
			}
			g := uint8(60 + x/4)
			img.Set(x, y, color.RGBA{g, g, g, 255})
		}
	}
	return img
}

func within(a, b, tol int) bool {
	d := a - b
	return d >= -tol && d <= tol
}

func TestSaliencySuggester(t *testing.T) {
	img := createSalientImage(160, 90, image.Rect(40, 20, 120, 70))

	got, err := NewSaliencySuggester().Suggest(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	in := got.Insets
	if !within(in.Left, 40, 2) || !within(in.Right, 40, 2) || !within(in.Top, 20, 2) || !within(in.Bottom, 20, 2) {
		t.Errorf("Expected insets near {20 40 20 40}, got %+v", in)
	}
	if !got.Found() || got.Source != "saliency" {
		t.Errorf("unexpected suggestion %+v", got)
	}
}

func TestSaliencySuggesterDownscales(t *testing.T) {
	img := createSalientImage(1280, 720, image.Rect(320, 180, 960, 540))

	got, err := NewSaliencySuggester().Suggest(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	in := got.Insets
	if !within(in.Left, 320, 12) || !within(in.Top, 180, 12) {
		t.Errorf("Expected insets near {180 320 180 320}, got %+v", in)
	}
}

func TestSaliencySuggesterFlat(t *testing.T) {
	flat := image.NewRGBA(image.Rect(0, 0, 40, 40))
	got, err := NewSaliencySuggester().Suggest(context.Background(), flat)
	if err != nil {
		t.Fatal(err)
	}
	if got.Found() {
		t.Errorf("Expected no suggestion for a flat frame, got %+v", got)
	}
}

func TestSaliencySuggesterTinySubject(t *testing.T) {
	img := createSalientImage(200, 200, image.Rect(100, 100, 110, 110))
	got, err := NewSaliencySuggester().Suggest(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if got.Found() {
		t.Errorf("Expected subject below MinSubjectRatio to be ignored, got %+v", got)
	}
}

func TestTrim(t *testing.T) {
	p := []float64{0, 0.5, 10, 10, 10, 1, 0}
	start, end := trim(p, 1)
	if start != 2 || end != 2 {
		t.Errorf("Expected trim (2,2), got (%d,%d)", start, end)
	}
	if s, e := trim([]float64{0, 0, 0}, 0); s+e > 3 {
		t.Errorf("trim overlapped: %d+%d", s, e)
	}
}

func TestSuggestionWithBox(t *testing.T) {
	s := Suggestion{Insets: types.CropInsets{Top: 10, Right: 20, Bottom: 30, Left: 40}, Confidence: 0.9}.WithBox(200, 100)
	want := types.Box{X: 0.2, Y: 0.1, W: 0.7, H: 0.6}
	if s.Box != want {
		t.Errorf("Expected box %+v, got %+v", want, s.Box)
	}
	if back := BoxToInsets(s.Box, 200, 100); back != s.Insets {
		t.Errorf("Expected insets %+v back from box, got %+v", s.Insets, back)
	}
}
