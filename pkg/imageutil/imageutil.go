// Package imageutil decodes uploaded images into the JPEG form the face
// engine reads, and draws detection boxes for preview.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/MrCodeEU/faceadmin/pkg/recognition"
)

// MaxDimension bounds the longest side of an image passed to the engine.
const MaxDimension = 1280

// MaxPixels bounds the decoded size of an upload.
const MaxPixels = 40_000_000

const jpegQuality = 90

// ErrInvalidImage is returned for payloads that are not a decodable image.
var ErrInvalidImage = errors.New("invalid image data")

// BoxColor is the outline color used by Annotate.
var BoxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// DecodeBase64 decodes a base64 image, stripping a data URL prefix such as
// "data:image/png;base64," when present.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return data, nil
}

// IsJPEG reports whether data starts with a JPEG SOI marker.
func IsJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}

// NormalizeJPEG returns data as a JPEG whose longest side is at most
// MaxDimension. JPEGs already within bounds are returned unchanged. Images
// whose header claims more than MaxPixels are rejected before decoding.
func NormalizeJPEG(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrInvalidImage, cfg.Width, cfg.Height, MaxPixels)
	}
	if IsJPEG(data) && cfg.Width <= MaxDimension && cfg.Height <= MaxDimension {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return encodeJPEG(fit(img, MaxDimension))
}

// fit scales img down so neither side exceeds max, keeping aspect ratio.
func fit(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return img
	}

	var nw, nh int
	if w > h {
		nw = max
		nh = int(float64(h) * float64(max) / float64(w))
	} else {
		nh = max
		nw = int(float64(w) * float64(max) / float64(h))
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Annotate draws an outline around region and returns the result as JPEG.
func Annotate(data []byte, region recognition.Region) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)

	rect := region.Rect().Intersect(canvas.Bounds())
	if !rect.Empty() {
		drawOutline(canvas, rect, 2, BoxColor)
	}

	return encodeJPEG(canvas)
}

func drawOutline(dst *image.RGBA, r image.Rectangle, thickness int, c color.Color) {
	fill := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), fill, image.Point{}, draw.Src)
	}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL wraps JPEG bytes in a data URL.
func DataURL(jpegData []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
}
