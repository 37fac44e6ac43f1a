package live

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// Video heartbeat geometry: frames are downscaled to a fixed low
// resolution and compressed hard, trading fidelity for bandwidth.
const (
	frameWidth      = 320
	frameHeight     = 240
	frameQuality    = 50
	defaultInterval = 2 // seconds between sampled frames
)

// EncodeFrame scales a captured camera frame down to 320x240 and
// compresses it to JPEG for the outbound image chunk.
func EncodeFrame(src image.Image) ([]byte, error) {
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("empty frame %v", bounds)
	}

	dst := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: frameQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
