package websocket

import (
	"encoding/base64"
	"fmt"
	"image"
	"sync"
)

// audioFrameBuffer bounds how far the mic can run ahead of the
// outbound pump before frames are dropped.
const audioFrameBuffer = 64

// relayStream adapts the dashboard's relayed microphone and camera
// feeds to the capture stream interface the session consumes. Binary
// WebSocket frames become audio frames; video_frame messages replace
// the latest camera image.
type relayStream struct {
	frames chan []float32

	mu       sync.Mutex
	latest   image.Image
	stopped  bool
	stopFunc func()
}

func newRelayStream(stopFunc func()) *relayStream {
	return &relayStream{
		frames:   make(chan []float32, audioFrameBuffer),
		stopFunc: stopFunc,
	}
}

func (s *relayStream) AudioFrames() <-chan []float32 {
	return s.frames
}

func (s *relayStream) LatestFrame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, false
	}
	return s.latest, true
}

// Stop closes the audio channel and tells the dashboard to release its
// devices. Safe to call more than once.
func (s *relayStream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.frames)
	if s.stopFunc != nil {
		s.stopFunc()
	}
}

// pushAudio queues one frame of float32 samples, dropping it when the
// buffer is full or the stream already stopped.
func (s *relayStream) pushAudio(samples []float32) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	defer s.mu.Unlock()

	select {
	case s.frames <- samples:
		return true
	default:
		return false
	}
}

// setFrame replaces the latest camera image.
func (s *relayStream) setFrame(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.latest = img
}

// decodeVideoFrame turns a relayed RGBA pixel payload into an image.
func decodeVideoFrame(msg *VideoFrameMessage) (image.Image, error) {
	pixels, err := base64.StdEncoding.DecodeString(msg.Pixels)
	if err != nil {
		return nil, err
	}
	if want := msg.Width * msg.Height * 4; len(pixels) != want {
		return nil, fmt.Errorf("video frame payload is %d bytes, want %d", len(pixels), want)
	}
	img := image.NewRGBA(image.Rect(0, 0, msg.Width, msg.Height))
	copy(img.Pix, pixels)
	return img, nil
}
