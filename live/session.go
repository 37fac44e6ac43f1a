package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hearthside/companion/domain/repositories"
)

// State is the UI-visible session state. Exactly one holds at a time.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
)

// ErrSessionActive is returned by Start while a session is connecting
// or connected; the call is a no-op and the existing session keeps
// running.
var ErrSessionActive = errors.New("companion session already active")

// ScheduledChunk is one inbound audio chunk with its assigned playback
// slot, all offsets measured from the session epoch.
type ScheduledChunk struct {
	PCM         []byte
	Start       time.Duration
	Duration    time.Duration
	ActiveUntil time.Duration
}

// PlaybackSink consumes scheduled inbound audio. Play is called in
// arrival order with non-decreasing start times.
type PlaybackSink interface {
	Play(chunk ScheduledChunk)
}

// Stats receives session throughput events. All methods must be safe
// for concurrent use.
type Stats interface {
	SessionStarted()
	SessionEnded()
	SessionFailed()
	AudioChunkOut()
	AudioChunkIn()
	VideoFrameOut()
}

type nopStats struct{}

func (nopStats) SessionStarted() {}
func (nopStats) SessionEnded()   {}
func (nopStats) SessionFailed()  {}
func (nopStats) AudioChunkOut()  {}
func (nopStats) AudioChunkIn()   {}
func (nopStats) VideoFrameOut()  {}

// Config carries the session parameters that are fixed at construction.
type Config struct {
	Model            string
	Voice            string
	InputSampleRate  int           // outbound PCM rate, 16000
	OutputSampleRate int           // inbound PCM rate, 24000
	FrameInterval    time.Duration // video sampling period
	Stats            Stats
	// OnState is invoked after every state transition, outside the
	// session lock. Optional.
	OnState func(State)
}

func (c *Config) applyDefaults() {
	if c.InputSampleRate == 0 {
		c.InputSampleRate = 16000
	}
	if c.OutputSampleRate == 0 {
		c.OutputSampleRate = 24000
	}
	if c.FrameInterval == 0 {
		c.FrameInterval = defaultInterval * time.Second
	}
	if c.Stats == nil {
		c.Stats = nopStats{}
	}
}

// Session owns one end-to-end live conversation with the remote
// conversational endpoint: device capture, the outbound audio/video
// pipelines, the inbound playback scheduler, and teardown under any
// termination cause. At most one underlying connection exists at a
// time; Start while active is a guarded no-op.
type Session struct {
	cfg      Config
	source   CaptureSource
	endpoint repositories.LiveEndpoint
	sink     PlaybackSink
	logger   *zap.Logger

	mu     sync.Mutex
	state  State
	gen    uint64
	conn   repositories.LiveConn
	stream CaptureStream
	sched  *PlaybackScheduler
	cancel context.CancelFunc

	// pendingOpen records an OnOpen that fired before Start finished
	// storing the connection; Start replays it once wiring is done.
	pendingOpen bool

	// clock returns the output time relative to the session epoch.
	// Overridable in tests.
	clock func() time.Duration
}

// NewSession creates an idle session.
func NewSession(
	cfg Config,
	source CaptureSource,
	endpoint repositories.LiveEndpoint,
	sink PlaybackSink,
	logger *zap.Logger,
) *Session {
	cfg.applyDefaults()
	return &Session{
		cfg:      cfg,
		source:   source,
		endpoint: endpoint,
		sink:     sink,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OutputActive reports whether inbound audio is currently scheduled to
// be audible. Visual indicator only.
func (s *Session) OutputActive() bool {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	return sched != nil && sched.OutputActive()
}

// Start brings up a live session seeded with the given persona
// instruction. It acquires capture devices first, then opens the
// remote connection; failure at either step reverts cleanly to idle
// with nothing left running.
func (s *Session) Start(ctx context.Context, instruction string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.gen++
	gen := s.gen
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()
	s.notifyState(StateConnecting)

	stream, err := s.source.Acquire(ctx, DefaultCaptureConstraints())
	if err != nil {
		s.revertToIdle(gen)
		s.cfg.Stats.SessionFailed()
		return fmt.Errorf("media acquisition failed: %w", err)
	}

	epoch := time.Now()
	clock := s.clock
	if clock == nil {
		clock = func() time.Duration { return time.Since(epoch) }
	}
	sched := NewPlaybackScheduler(clock)

	conn, err := s.endpoint.Connect(ctx, repositories.LiveConfig{
		Model:             s.cfg.Model,
		Voice:             s.cfg.Voice,
		SystemInstruction: instruction,
	}, repositories.LiveCallbacks{
		OnOpen:    func() { s.onOpen(gen) },
		OnMessage: func(msg repositories.ServerMessage) { s.onMessage(gen, msg) },
		OnError:   func(err error) { s.onError(gen, err) },
		OnClose:   func() { s.onClose(gen) },
	})
	if err != nil {
		stream.Stop()
		s.revertToIdle(gen)
		s.cfg.Stats.SessionFailed()
		return fmt.Errorf("failed to connect companion endpoint: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		// Stopped while the handshake was in flight; tear down what
		// this attempt created and leave the session alone.
		s.mu.Unlock()
		stream.Stop()
		_ = conn.Close()
		return nil
	}
	s.conn = conn
	s.stream = stream
	s.sched = sched
	pending := s.pendingOpen
	s.pendingOpen = false
	s.mu.Unlock()

	s.cfg.Stats.SessionStarted()
	if pending {
		s.onOpen(gen)
	}
	return nil
}

// Stop tears the session down completely: capture tracks, the video
// sampler, the audio pump, and the remote connection. Idempotent and
// safe from any state; calling it with nothing running does nothing.
func (s *Session) Stop() {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.stop(gen)
}

// stop tears down the session identified by gen. Late callbacks from a
// superseded session carry a stale gen and are ignored here.
func (s *Session) stop(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	wasRunning := s.state != StateIdle
	conn, stream, cancel := s.conn, s.stream, s.cancel
	s.conn, s.stream, s.sched, s.cancel = nil, nil, nil, nil
	s.pendingOpen = false
	changed := s.setStateLocked(StateIdle)
	s.mu.Unlock()
	if changed {
		s.notifyState(StateIdle)
	}

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		stream.Stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if wasRunning {
		s.cfg.Stats.SessionEnded()
	}
}

// revertToIdle undoes the Connecting transition after a failed start.
func (s *Session) revertToIdle(gen uint64) {
	s.mu.Lock()
	changed := false
	if s.gen == gen {
		s.gen++
		s.pendingOpen = false
		changed = s.setStateLocked(StateIdle)
	}
	s.mu.Unlock()
	if changed {
		s.notifyState(StateIdle)
	}
}

// onOpen marks the session connected and launches the two outbound
// pipelines. They run independently; neither blocks the other.
func (s *Session) onOpen(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	if s.stream == nil {
		s.pendingOpen = true
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	conn, stream := s.conn, s.stream
	s.setStateLocked(StateConnected)
	s.mu.Unlock()
	s.notifyState(StateConnected)

	s.logger.Info("companion session connected")
	go s.audioPump(ctx, stream, conn)
	go s.videoPump(ctx, stream, conn)
}

// audioPump forwards every captured frame as one PCM chunk, in capture
// order, with no batching. Send failures are logged and dropped.
func (s *Session) audioPump(ctx context.Context, stream CaptureStream, conn repositories.LiveConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-stream.AudioFrames():
			if !ok {
				return
			}
			pcm := FloatTo16BitPCM(frame)
			err := conn.SendMedia(ctx, repositories.MediaChunk{
				MIMEType: repositories.MIMEAudioPCM16k,
				Data:     pcm,
			})
			if err != nil {
				s.logger.Debug("dropping outbound audio frame", zap.Error(err))
				continue
			}
			s.cfg.Stats.AudioChunkOut()
		}
	}
}

// videoPump samples the latest camera frame every FrameInterval and
// sends it as a JPEG chunk. Missing frames are skipped silently; this
// is a best-effort heartbeat, not a guaranteed stream.
func (s *Session) videoPump(ctx context.Context, stream CaptureStream, conn repositories.LiveConn) {
	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img, ok := stream.LatestFrame()
			if !ok {
				continue
			}
			data, err := EncodeFrame(img)
			if err != nil {
				s.logger.Debug("skipping video frame", zap.Error(err))
				continue
			}
			err = conn.SendMedia(ctx, repositories.MediaChunk{
				MIMEType: repositories.MIMEImageJPEG,
				Data:     data,
			})
			if err != nil {
				s.logger.Debug("dropping video frame", zap.Error(err))
				continue
			}
			s.cfg.Stats.VideoFrameOut()
		}
	}
}

// onMessage schedules an inbound audio payload for playback. Messages
// without audio are ignored; a malformed payload was already dropped by
// the endpoint adapter and never reaches here.
func (s *Session) onMessage(gen uint64, msg repositories.ServerMessage) {
	if len(msg.Audio) == 0 {
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.sched == nil {
		s.mu.Unlock()
		return
	}
	sched := s.sched
	s.mu.Unlock()

	d := PCMDuration(len(msg.Audio), s.cfg.OutputSampleRate)
	start := sched.Schedule(d)
	s.cfg.Stats.AudioChunkIn()

	s.sink.Play(ScheduledChunk{
		PCM:         msg.Audio,
		Start:       start,
		Duration:    d,
		ActiveUntil: start + d + outputActiveMargin,
	})
}

// onError logs the remote failure and runs the full stop procedure.
// There is no automatic reconnect; the user re-initiates explicitly.
func (s *Session) onError(gen uint64, err error) {
	s.logger.Error("companion session error", zap.Error(err))
	s.stop(gen)
}

func (s *Session) onClose(gen uint64) {
	s.logger.Info("companion session closed by remote")
	s.stop(gen)
}

// setStateLocked updates the state and reports whether it changed.
// Callers fire notifyState after releasing the lock so listeners see
// transitions in order.
func (s *Session) setStateLocked(state State) bool {
	if s.state == state {
		return false
	}
	s.state = state
	return true
}

func (s *Session) notifyState(state State) {
	if s.cfg.OnState != nil {
		s.cfg.OnState(state)
	}
}
