package still

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/framecrop/pkg/codec"
)

// MaxDownloadSize caps images fetched over HTTP.
const MaxDownloadSize = 64 << 20

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Load creates a track playing the image at source, a file path or an
// http(s) URL.
func Load(ctx context.Context, source string) (*Track, error) {
	if isURL(source) {
		img, err := fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		return NewWithOptions(img, Options{Label: source}), nil
	}

	img, err := codec.LoadImage(source)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(img, Options{Label: source}), nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// fetch downloads and decodes an image
func fetch(ctx context.Context, imageURL string) (image.Image, error) {
	if _, err := url.Parse(imageURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "framecrop/1.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("image larger than %d bytes", MaxDownloadSize)
	}

	img, _, err := codec.Decode(data)
	return img, err
}
