package live

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hearthside/companion/domain/repositories"
)

type fakeStream struct {
	frames chan []float32

	mu       sync.Mutex
	latest   image.Image
	stopped  bool
	stopOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan []float32, 16)}
}

func (s *fakeStream) AudioFrames() <-chan []float32 { return s.frames }

func (s *fakeStream) LatestFrame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, false
	}
	return s.latest, true
}

func (s *fakeStream) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.frames)
	})
}

func (s *fakeStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeSource struct {
	stream *fakeStream
	err    error
}

func (f *fakeSource) Acquire(ctx context.Context, constraints CaptureConstraints) (CaptureStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type fakeConn struct {
	mu     sync.Mutex
	chunks []repositories.MediaChunk
	closed int
}

func (c *fakeConn) SendMedia(ctx context.Context, chunk repositories.MediaChunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, chunk)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) sent() []repositories.MediaChunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]repositories.MediaChunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeEndpoint struct {
	mu        sync.Mutex
	conn      *fakeConn
	err       error
	callbacks repositories.LiveCallbacks
	config    repositories.LiveConfig
}

// Connect fires OnOpen synchronously before returning, like the real
// endpoint adapter does.
func (e *fakeEndpoint) Connect(
	ctx context.Context,
	config repositories.LiveConfig,
	callbacks repositories.LiveCallbacks,
) (repositories.LiveConn, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.mu.Lock()
	e.callbacks = callbacks
	e.config = config
	e.mu.Unlock()
	if callbacks.OnOpen != nil {
		callbacks.OnOpen()
	}
	return e.conn, nil
}

func (e *fakeEndpoint) remote() repositories.LiveCallbacks {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callbacks
}

type fakeSink struct {
	chunks chan ScheduledChunk
}

func newFakeSink() *fakeSink {
	return &fakeSink{chunks: make(chan ScheduledChunk, 16)}
}

func (s *fakeSink) Play(chunk ScheduledChunk) {
	s.chunks <- chunk
}

type harness struct {
	session  *Session
	source   *fakeSource
	endpoint *fakeEndpoint
	sink     *fakeSink
	clock    *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source:   &fakeSource{stream: newFakeStream()},
		endpoint: &fakeEndpoint{conn: &fakeConn{}},
		sink:     newFakeSink(),
		clock:    &fakeClock{},
	}
	h.session = NewSession(
		Config{Model: "test-model", Voice: "Aoede", FrameInterval: time.Hour},
		h.source,
		h.endpoint,
		h.sink,
		zap.NewNop(),
	)
	h.session.clock = h.clock.Now
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSessionStartWhileActiveIsRejected(t *testing.T) {
	h := newHarness(t)

	if err := h.session.Start(context.Background(), "hello"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "connected state", func() bool { return h.session.State() == StateConnected })

	if err := h.session.Start(context.Background(), "hello"); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Start = %v, want ErrSessionActive", err)
	}
	if h.session.State() != StateConnected {
		t.Errorf("state = %v after rejected Start, want connected", h.session.State())
	}

	h.session.Stop()
}

func TestSessionStartPassesInstruction(t *testing.T) {
	h := newHarness(t)

	if err := h.session.Start(context.Background(), "be gentle"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.session.Stop()

	h.endpoint.mu.Lock()
	config := h.endpoint.config
	h.endpoint.mu.Unlock()
	if config.SystemInstruction != "be gentle" {
		t.Errorf("instruction = %q, want %q", config.SystemInstruction, "be gentle")
	}
	if config.Model != "test-model" {
		t.Errorf("model = %q, want test-model", config.Model)
	}
}

func TestSessionStopIsIdempotent(t *testing.T) {
	h := newHarness(t)

	if err := h.session.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "connected state", func() bool { return h.session.State() == StateConnected })

	h.session.Stop()
	h.session.Stop()
	h.session.Stop()

	if h.session.State() != StateIdle {
		t.Errorf("state = %v after Stop, want idle", h.session.State())
	}
	if got := h.endpoint.conn.closeCount(); got != 1 {
		t.Errorf("connection closed %d times, want 1", got)
	}
	if !h.source.stream.isStopped() {
		t.Error("capture stream not stopped")
	}
}

func TestSessionStopWithNothingRunning(t *testing.T) {
	h := newHarness(t)
	h.session.Stop()
	if h.session.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.session.State())
	}
}

func TestSessionAcquisitionFailureRevertsToIdle(t *testing.T) {
	h := newHarness(t)
	h.source.err = errors.New("permission denied")

	err := h.session.Start(context.Background(), "")
	if err == nil {
		t.Fatal("Start succeeded despite acquisition failure")
	}
	if h.session.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.session.State())
	}

	// The slot is free for a retry.
	h.source.err = nil
	if err := h.session.Start(context.Background(), ""); err != nil {
		t.Fatalf("retry Start failed: %v", err)
	}
	h.session.Stop()
}

func TestSessionConnectFailureStopsCapture(t *testing.T) {
	h := newHarness(t)
	h.endpoint.err = errors.New("endpoint unavailable")

	err := h.session.Start(context.Background(), "")
	if err == nil {
		t.Fatal("Start succeeded despite connect failure")
	}
	if h.session.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.session.State())
	}
	if !h.source.stream.isStopped() {
		t.Error("capture stream left running after connect failure")
	}
}

func TestSessionAudioPumpConvertsAndForwards(t *testing.T) {
	h := newHarness(t)

	if err := h.session.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.session.Stop()
	waitFor(t, "connected state", func() bool { return h.session.State() == StateConnected })

	h.source.stream.frames <- []float32{1.0, -1.0}

	waitFor(t, "outbound chunk", func() bool { return len(h.endpoint.conn.sent()) > 0 })
	chunk := h.endpoint.conn.sent()[0]
	if chunk.MIMEType != repositories.MIMEAudioPCM16k {
		t.Errorf("MIME type = %q, want %q", chunk.MIMEType, repositories.MIMEAudioPCM16k)
	}
	want := pcmBytes(32767, -32768)
	if string(chunk.Data) != string(want) {
		t.Errorf("PCM payload = %v, want %v", chunk.Data, want)
	}
}

func TestSessionSchedulesInboundAudio(t *testing.T) {
	h := newHarness(t)

	if err := h.session.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.session.Stop()
	waitFor(t, "connected state", func() bool { return h.session.State() == StateConnected })

	// 24000 bytes of 16-bit PCM at 24 kHz is half a second.
	pcm := make([]byte, 24000)
	h.endpoint.remote().OnMessage(repositories.ServerMessage{Audio: pcm})

	var first ScheduledChunk
	select {
	case first = <-h.sink.chunks:
	case <-time.After(2 * time.Second):
		t.Fatal("no chunk reached the sink")
	}
	if first.Start != 0 {
		t.Errorf("first chunk start = %v, want 0", first.Start)
	}
	if first.Duration != 500*time.Millisecond {
		t.Errorf("first chunk duration = %v, want 500ms", first.Duration)
	}
	if first.ActiveUntil != 600*time.Millisecond {
		t.Errorf("first chunk active until = %v, want 600ms", first.ActiveUntil)
	}

	// A second chunk queues after the first.
	h.endpoint.remote().OnMessage(repositories.ServerMessage{Audio: pcm})
	second := <-h.sink.chunks
	if second.Start != 500*time.Millisecond {
		t.Errorf("second chunk start = %v, want 500ms", second.Start)
	}
}

func TestSessionIgnoresLateCallbacksAfterStop(t *testing.T) {
	h := newHarness(t)

	if err := h.session.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "connected state", func() bool { return h.session.State() == StateConnected })

	remote := h.endpoint.remote()
	h.session.Stop()

	// Late arrivals from the dead connection must be dropped.
	remote.OnMessage(repositories.ServerMessage{Audio: make([]byte, 4800)})
	remote.OnError(errors.New("stale failure"))
	remote.OnClose()

	select {
	case chunk := <-h.sink.chunks:
		t.Errorf("sink received chunk after stop: %+v", chunk)
	case <-time.After(50 * time.Millisecond):
	}
	if got := h.endpoint.conn.closeCount(); got != 1 {
		t.Errorf("connection closed %d times, want 1", got)
	}
}

func TestSessionRemoteErrorTearsDownWithoutReconnect(t *testing.T) {
	h := newHarness(t)

	if err := h.session.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "connected state", func() bool { return h.session.State() == StateConnected })

	h.endpoint.remote().OnError(errors.New("stream reset"))

	waitFor(t, "idle state", func() bool { return h.session.State() == StateIdle })
	if !h.source.stream.isStopped() {
		t.Error("capture stream left running after remote error")
	}

	// No reconnect happens on its own; the session stays idle.
	time.Sleep(50 * time.Millisecond)
	if h.session.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.session.State())
	}
}

func TestSessionStateNotifications(t *testing.T) {
	var mu sync.Mutex
	var states []State

	source := &fakeSource{stream: newFakeStream()}
	endpoint := &fakeEndpoint{conn: &fakeConn{}}
	sink := newFakeSink()
	clock := &fakeClock{}

	session := NewSession(
		Config{
			FrameInterval: time.Hour,
			OnState: func(s State) {
				mu.Lock()
				states = append(states, s)
				mu.Unlock()
			},
		},
		source,
		endpoint,
		sink,
		zap.NewNop(),
	)
	session.clock = clock.Now

	if err := session.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "connected state", func() bool { return session.State() == StateConnected })
	session.Stop()

	mu.Lock()
	got := append([]State(nil), states...)
	mu.Unlock()
	want := []State{StateConnecting, StateConnected, StateIdle}
	if len(got) != len(want) {
		t.Fatalf("state sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSessionOutputActive(t *testing.T) {
	h := newHarness(t)

	if h.session.OutputActive() {
		t.Error("output active with no session")
	}

	if err := h.session.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.session.Stop()
	waitFor(t, "connected state", func() bool { return h.session.State() == StateConnected })

	h.endpoint.remote().OnMessage(repositories.ServerMessage{Audio: make([]byte, 24000)})
	<-h.sink.chunks

	if !h.session.OutputActive() {
		t.Error("output inactive while a chunk is scheduled")
	}

	h.clock.now = time.Second
	if h.session.OutputActive() {
		t.Error("output still active past the scheduled window")
	}
}
