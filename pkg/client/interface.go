package client

import (
	"context"

	"github.com/menta2k/framecrop/pkg/types"
)

// VisionClient is a vision model backend able to locate the primary content
// region of an image.
type VisionClient interface {
	Ping(ctx context.Context) error
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
