package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"strings"

	"github.com/corona10/goimagehash"

	_ "image/gif"
	_ "image/jpeg"
)

// IsValidImageType checks if the content type is a valid image type
func IsValidImageType(contentType string) bool {
	validTypes := []string{
		"image/jpeg",
		"image/jpg",
		"image/png",
		"image/gif",
	}

	for _, validType := range validTypes {
		if strings.EqualFold(contentType, validType) {
			return true
		}
	}

	return false
}

// ImageInfo holds the lightweight visual features extracted from a decoded
// image: pixel dimensions and a hex-encoded perceptual average hash.
type ImageInfo struct {
	Width          int
	Height         int
	PerceptualHash string
}

// InspectImage decodes image bytes and computes features. The perceptual
// hash lets later reingestions detect that a figure is unchanged without
// comparing pixels.
func InspectImage(data []byte) (*ImageInfo, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	info := &ImageInfo{
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}

	hash, err := goimagehash.AverageHash(img)
	if err == nil {
		info.PerceptualHash = hash.ToString()
	}

	return info, nil
}

// ColorVariance returns the standard deviation of grayscale intensity over
// a downsampled grid of the image. Near-blank crops (margins, page
// background) score close to zero.
func ColorVariance(img image.Image) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	// Sample at most 64x64 points
	stepX := w / 64
	if stepX < 1 {
		stepX = 1
	}
	stepY := h / 64
	if stepY < 1 {
		stepY = 1
	}

	var sum, sumSq float64
	var n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			gray := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
			sum += gray
			sumSq += gray * gray
			n++
		}
	}
	if n == 0 {
		return 0
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// CropImage extracts the given rectangle from an image, clamped to the
// image bounds. Returns an error for degenerate (empty) crops.
func CropImage(img image.Image, rect image.Rectangle) (image.Image, error) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop rectangle outside image bounds")
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst, nil
}

// EncodePNG serializes an image to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes PNG/JPEG/GIF bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
