// Package cropper trims captured frames by native-pixel insets and encodes
// the result.
package cropper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/framecrop/pkg/codec"
	"github.com/menta2k/framecrop/pkg/types"
)

// Encoder turns a raster image into a compressed buffer.
type Encoder interface {
	Encode(img image.Image) (types.CompressedImage, error)
}

// Applier crops images by CropInsets
type Applier struct {
	encoder Encoder
}

// CropResult contains the result of a crop operation
type CropResult struct {
	Image  image.Image
	Region image.Rectangle
	// Degenerate is set when the insets left nothing to keep and the source
	// was returned uncropped.
	Degenerate bool
}

// New creates a new Applier encoding lossy WebP
func New() *Applier {
	return &Applier{encoder: codec.New()}
}

// NewWithConfig creates a new Applier with a custom encoder
func NewWithConfig(encoder Encoder) *Applier {
	if encoder == nil {
		encoder = codec.New()
	}
	return &Applier{encoder: encoder}
}

// Crop cuts the inset region out of img onto a new surface of exactly that
// size. Degenerate insets return img itself.
func (a *Applier) Crop(img image.Image, insets types.CropInsets) (CropResult, error) {
	if img == nil {
		return CropResult{}, fmt.Errorf("nil image")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return CropResult{}, fmt.Errorf("invalid image dimensions")
	}

	region, ok := insets.Region(bounds.Dx(), bounds.Dy())
	if !ok {
		return CropResult{Image: img, Region: bounds, Degenerate: true}, nil
	}

	region = region.Add(bounds.Min)
	return CropResult{
		Image:  imaging.Crop(img, region),
		Region: region,
	}, nil
}

// ApplyCrop crops img and encodes the result. When the insets leave an empty
// region the uncropped image is encoded instead, so the output is identical to
// encoding img directly.
func (a *Applier) ApplyCrop(img image.Image, insets types.CropInsets) (types.CompressedImage, error) {
	res, err := a.Crop(img, insets)
	if err != nil {
		return types.CompressedImage{}, err
	}
	out, err := a.encoder.Encode(res.Image)
	if err != nil {
		return types.CompressedImage{}, fmt.Errorf("failed to encode cropped image: %w", err)
	}
	return out, nil
}

// ApplyCropToBuffer crops an already encoded image. Degenerate insets return
// buf unchanged, without a decode/encode round trip.
func (a *Applier) ApplyCropToBuffer(buf types.CompressedImage, insets types.CropInsets) (types.CompressedImage, error) {
	if buf.Width > 0 && buf.Height > 0 {
		if _, ok := insets.Region(buf.Width, buf.Height); !ok {
			return buf, nil
		}
	}

	img, err := codec.DecodeCompressed(buf)
	if err != nil {
		return types.CompressedImage{}, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	if _, ok := insets.Region(b.Dx(), b.Dy()); !ok {
		return buf, nil
	}
	return a.ApplyCrop(img, insets)
}

// CroppedSize returns the dimensions left after applying insets to a
// width x height image, and whether they are positive.
func CroppedSize(width, height int, insets types.CropInsets) (int, int, bool) {
	in := insets.NonNegative()
	w := width - in.Left - in.Right
	h := height - in.Top - in.Bottom
	return w, h, w > 0 && h > 0
}
