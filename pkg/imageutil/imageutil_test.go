package imageutil

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/MrCodeEU/faceadmin/pkg/recognition"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeBase64(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	enc := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name  string
		input string
	}{
		{"plain", enc},
		{"data url", "data:image/jpeg;base64," + enc},
		{"padded whitespace", "  " + enc + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBase64(tt.input)
			if err != nil {
				t.Fatalf("DecodeBase64 failed: %v", err)
			}
			if !bytes.Equal(got, raw) {
				t.Errorf("expected %v, got %v", raw, got)
			}
		})
	}

	for _, bad := range []string{"", "!!!not base64!!!"} {
		if _, err := DecodeBase64(bad); !errors.Is(err, ErrInvalidImage) {
			t.Errorf("DecodeBase64(%q): expected ErrInvalidImage, got %v", bad, err)
		}
	}
}

func TestNormalizeJPEG_KeepsSmallJPEG(t *testing.T) {
	data := jpegBytes(t, solid(64, 48, color.White))

	out, err := NormalizeJPEG(data)
	if err != nil {
		t.Fatalf("NormalizeJPEG failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("small JPEG should pass through unchanged")
	}
}

func TestNormalizeJPEG_ConvertsAndScales(t *testing.T) {
	data := pngBytes(t, solid(2000, 1000, color.Gray{Y: 128}))

	out, err := NormalizeJPEG(data)
	if err != nil {
		t.Fatalf("NormalizeJPEG failed: %v", err)
	}
	if !IsJPEG(out) {
		t.Fatal("expected JPEG output")
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Width != MaxDimension || cfg.Height != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, cfg.Width, cfg.Height)
	}

	if _, err := NormalizeJPEG([]byte("garbage")); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

// withPNGSize rewrites the IHDR dimensions of a PNG and fixes its CRC, so
// the header claims a size the pixel data does not have.
func withPNGSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	if string(out[12:16]) != "IHDR" {
		t.Fatal("expected IHDR as the first chunk")
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestNormalizeJPEG_RejectsOversizedHeader(t *testing.T) {
	data := withPNGSize(t, pngBytes(t, solid(2, 2, color.White)), 60000, 60000)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width != 60000 {
		t.Fatalf("crafted header not readable: %v %+v", err, cfg)
	}

	_, err = NormalizeJPEG(data)
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if !strings.Contains(err.Error(), "pixel limit") {
		t.Errorf("expected a size rejection, got %v", err)
	}
}

func TestAnnotate(t *testing.T) {
	data := pngBytes(t, solid(200, 200, color.Black))
	region := recognition.Region{X: 40, Y: 40, Width: 100, Height: 100}

	out, err := Annotate(data, region)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode annotated: %v", err)
	}

	_, edgeG, _, _ := img.At(90, 40).RGBA()
	_, insideG, _, _ := img.At(90, 90).RGBA()
	if edgeG>>8 < insideG>>8+50 {
		t.Errorf("expected a green outline: edge G=%d inside G=%d", edgeG>>8, insideG>>8)
	}
}

func TestAnnotate_RegionOutsideImage(t *testing.T) {
	data := jpegBytes(t, solid(50, 50, color.Black))

	if _, err := Annotate(data, recognition.Region{X: 500, Y: 500, Width: 10, Height: 10}); err != nil {
		t.Errorf("out of bounds region should be ignored, got %v", err)
	}
}

func TestDataURL(t *testing.T) {
	url := DataURL([]byte{0xFF, 0xD8})
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("unexpected prefix: %s", url)
	}
	back, err := DecodeBase64(url)
	if err != nil || !bytes.Equal(back, []byte{0xFF, 0xD8}) {
		t.Errorf("round trip failed: %v %v", back, err)
	}
}
