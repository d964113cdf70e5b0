// Package imageio decodes source card and background images and encodes
// generated samples.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// LoadImage loads an image from a file path with WebP support.
// The result always carries an alpha channel; sources without one decode as fully opaque.
func LoadImage(path string) (*image.NRGBA, error) {
	if img, err := imaging.Open(path); err == nil {
		return imaging.Clone(img), nil
	}

	// Fallback: explicit WebP decode
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes an image from byte data with WebP support
func DecodeImage(data []byte) (*image.NRGBA, error) {
	if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
		return imaging.Clone(img), nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return imaging.Clone(img), nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// SaveImage saves an image to a file with the specified format and quality.
// quality applies to jpg only; webp output is lossless.
func SaveImage(img image.Image, path, format string, quality int) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		if err := webp.Encode(f, img, &webp.Options{Lossless: true}); err != nil {
			return fmt.Errorf("failed to encode webp %s: %w", path, err)
		}
		return nil
	case "png":
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
		return nil
	case "jpg", "jpeg":
		if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (%s)", format, filepath.Base(path))
	}
}
