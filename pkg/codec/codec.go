// Package codec encodes captured frames into compressed buffers and decodes
// them back. WebP is the default output format; JPEG and PNG are supported for
// interoperability.
package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/framecrop/pkg/types"
)

// Supported output formats
const (
	FormatWebP = "webp"
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// Config holds configuration for the encoder
type Config struct {
	Format   string
	Quality  int
	Lossless bool
}

// DefaultConfig returns lossy WebP at quality 80.
func DefaultConfig() Config {
	return Config{
		Format:   FormatWebP,
		Quality:  80,
		Lossless: false,
	}
}

// Encoder encodes raster images with a fixed configuration
type Encoder struct {
	config Config
}

// New creates a new Encoder with default configuration
func New() *Encoder {
	return &Encoder{config: DefaultConfig()}
}

// NewWithConfig creates a new Encoder with custom configuration
func NewWithConfig(config Config) *Encoder {
	config.Format = NormalizeFormat(config.Format)
	if config.Quality < 1 || config.Quality > 100 {
		config.Quality = DefaultConfig().Quality
	}
	return &Encoder{config: config}
}

// Config returns the encoder configuration.
func (e *Encoder) Config() Config { return e.config }

// Encode encodes img into a compressed buffer.
func (e *Encoder) Encode(img image.Image) (types.CompressedImage, error) {
	if img == nil {
		return types.CompressedImage{}, fmt.Errorf("nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return types.CompressedImage{}, fmt.Errorf("empty image bounds %v", b)
	}

	var buf bytes.Buffer
	if err := e.EncodeTo(&buf, img); err != nil {
		return types.CompressedImage{}, err
	}
	return types.CompressedImage{
		Data:   buf.Bytes(),
		Format: e.config.Format,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// EncodeTo writes the encoded image to w.
func (e *Encoder) EncodeTo(w io.Writer, img image.Image) error {
	switch e.config.Format {
	case FormatWebP:
		opts := &webp.Options{Lossless: e.config.Lossless, Quality: float32(e.config.Quality)}
		if err := webp.Encode(w, img, opts); err != nil {
			return fmt.Errorf("webp encode: %w", err)
		}
	case FormatPNG:
		if err := imaging.Encode(w, img, imaging.PNG); err != nil {
			return fmt.Errorf("png encode: %w", err)
		}
	case FormatJPEG:
		if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(e.config.Quality)); err != nil {
			return fmt.Errorf("jpeg encode: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", e.config.Format)
	}
	return nil
}

// SaveImage encodes img and writes it to path.
func (e *Encoder) SaveImage(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := e.EncodeTo(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Decode decodes any registered image format, including WebP.
func Decode(data []byte) (image.Image, string, error) {
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}

	// libwebp handles a few bitstreams the pure Go decoder rejects
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, FormatWebP, nil
	}

	return nil, "", fmt.Errorf("image: unknown or unsupported format")
}

// DecodeCompressed decodes a compressed buffer back into a raster image.
func DecodeCompressed(c types.CompressedImage) (image.Image, error) {
	img, _, err := Decode(c.Data)
	return img, err
}

// LoadImage loads an image from a file path with WebP support
func LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadCompressed reads an encoded image file without re-encoding it.
func LoadCompressed(path string) (types.CompressedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.CompressedImage{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return types.CompressedImage{}, fmt.Errorf("%s: %w", path, err)
	}
	return types.CompressedImage{
		Data:   data,
		Format: NormalizeFormat(format),
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// PrepareForModel converts an image to base64 for sending to vision models.
// Images larger than maxDim on their long side are downscaled first.
func PrepareForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	format = NormalizeFormat(format)
	if format == FormatWebP {
		// vision backends expect jpeg or png
		format = FormatJPEG
	}
	var buf bytes.Buffer
	enc := NewWithConfig(Config{Format: format, Quality: quality})
	if err := enc.EncodeTo(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// NormalizeFormat maps format names and file extensions onto the supported
// format constants. Unknown values fall back to WebP.
func NormalizeFormat(format string) string {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "jpg", "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	default:
		return FormatWebP
	}
}

// Extension returns the file extension (without dot) for a format.
func Extension(format string) string {
	switch NormalizeFormat(format) {
	case FormatJPEG:
		return "jpg"
	case FormatPNG:
		return "png"
	default:
		return "webp"
	}
}

// FormatFromPath derives the output format from a file name.
func FormatFromPath(path string) string {
	return NormalizeFormat(filepath.Ext(path))
}
