package suggest

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/menta2k/framecrop/pkg/client"
	"github.com/menta2k/framecrop/pkg/codec"
)

// DefaultPrompt asks the model for the main content region of a screen capture
const DefaultPrompt = `You are looking at a screenshot of a shared screen or window.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
  },
  "description": "short neutral sentence (≤ 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- The box must tightly include the main content area a user would want to keep
  (the video, game view, document or chart). Exclude toolbars, taskbars,
  browser chrome, sidebars and black bars.
- If the whole image is content, return the full box {"x":0,"y":0,"w":1,"h":1}.
- If nothing can be identified, use label "none" and confidence 0.0.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// VisionConfig holds configuration for the vision suggester
type VisionConfig struct {
	Model       string
	Prompt      string
	SendSize    int // long side of the image sent to the model
	SendQuality int
	// MinConfidence below which the model's answer is ignored.
	MinConfidence float64
}

// DefaultVisionConfig returns the vision suggester defaults.
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		Model:         "qwen2.5vl:7b",
		Prompt:        DefaultPrompt,
		SendSize:      1024,
		SendQuality:   85,
		MinConfidence: 0.2,
	}
}

// VisionSuggester asks a vision model where the content is.
type VisionSuggester struct {
	client client.VisionClient
	config VisionConfig
}

// NewVisionSuggester creates a suggester backed by c.
func NewVisionSuggester(c client.VisionClient, config VisionConfig) *VisionSuggester {
	def := DefaultVisionConfig()
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Prompt == "" {
		config.Prompt = def.Prompt
	}
	if config.SendSize <= 0 {
		config.SendSize = def.SendSize
	}
	if config.SendQuality < 1 || config.SendQuality > 100 {
		config.SendQuality = def.SendQuality
	}
	return &VisionSuggester{client: c, config: config}
}

// Suggest sends a downscaled copy of img to the model and maps the returned
// box back onto img's pixel grid.
func (v *VisionSuggester) Suggest(ctx context.Context, img image.Image) (Suggestion, error) {
	b := img.Bounds()
	if b.Empty() {
		return Suggestion{}, fmt.Errorf("invalid image dimensions")
	}

	imgB64, err := codec.PrepareForModel(img, codec.FormatJPEG, v.config.SendSize, v.config.SendQuality)
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := v.client.AnalyzeImage(ctx, v.config.Model, v.config.Prompt, imgB64)
	if err != nil {
		return Suggestion{}, fmt.Errorf("vision analysis failed: %w", err)
	}

	out := Suggestion{Source: "vision", Label: result.Primary.Label}
	if strings.EqualFold(result.Primary.Label, "none") || result.Primary.Confidence < v.config.MinConfidence {
		return out, nil
	}

	out.Insets = BoxToInsets(result.Primary.Box, b.Dx(), b.Dy())
	out.Confidence = clamp(result.Primary.Confidence, 0, 1)
	return out, nil
}
