package live

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestEncodeFrameGeometry(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}

	data, err := EncodeFrame(src)
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("EncodeFrame produced no data")
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid JPEG: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 320 || bounds.Dy() != 240 {
		t.Errorf("frame is %dx%d, want 320x240", bounds.Dx(), bounds.Dy())
	}
}

func TestEncodeFrameUpscalesSmallSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 160, 120))

	data, err := EncodeFrame(src)
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 320 {
		t.Errorf("width = %d, want 320", decoded.Bounds().Dx())
	}
}

func TestEncodeFrameRejectsEmptyImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, err := EncodeFrame(src); err == nil {
		t.Error("EncodeFrame accepted an empty frame")
	}
}
