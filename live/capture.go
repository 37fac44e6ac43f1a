package live

import (
	"context"
	"image"
)

// CaptureConstraints describes the combined microphone/camera request
// issued at session start. Audio is always mono.
type CaptureConstraints struct {
	SampleRate       int  `json:"sample_rate"`
	EchoCancellation bool `json:"echo_cancellation"`
	NoiseSuppression bool `json:"noise_suppression"`
	AutoGainControl  bool `json:"auto_gain_control"`
	VideoWidth       int  `json:"video_width"`
	VideoHeight      int  `json:"video_height"`
	FrameRate        int  `json:"frame_rate"`
}

// DefaultCaptureConstraints returns the constraints the companion
// session uses: 16 kHz processed mono audio and low-rate 640x480 video.
func DefaultCaptureConstraints() CaptureConstraints {
	return CaptureConstraints{
		SampleRate:       16000,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		VideoWidth:       640,
		VideoHeight:      480,
		FrameRate:        10,
	}
}

// CaptureStream is a live microphone/camera feed. AudioFrames delivers
// fixed-size frames of float32 mono samples in capture order; the
// channel closes when the stream stops. LatestFrame returns the most
// recent camera image, if any has arrived yet.
type CaptureStream interface {
	AudioFrames() <-chan []float32
	LatestFrame() (image.Image, bool)
	Stop()
}

// CaptureSource acquires media devices. Acquisition failure (permission
// denied, no device) must be reported as an error before any stream
// exists; no partially-acquired stream is ever returned.
type CaptureSource interface {
	Acquire(ctx context.Context, constraints CaptureConstraints) (CaptureStream, error)
}
