package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the companion server. It
// implements the session Stats interface.
type Metrics struct {
	registry            *prometheus.Registry
	sessionsStarted     prometheus.Counter
	sessionsEnded       prometheus.Counter
	sessionsFailed      prometheus.Counter
	audioChunksOutTotal prometheus.Counter
	audioChunksInTotal  prometheus.Counter
	videoFramesOutTotal prometheus.Counter
	activeSessions      prometheus.Gauge
}

// New creates and registers the companion server metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	sessionsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "companion_sessions_started_total",
		Help: "Total number of companion sessions started",
	})
	sessionsEnded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "companion_sessions_ended_total",
		Help: "Total number of companion sessions ended",
	})
	sessionsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "companion_sessions_failed_total",
		Help: "Total number of companion sessions that failed to start",
	})
	audioChunksOutTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "companion_audio_chunks_out_total",
		Help: "Total number of outbound audio chunks sent",
	})
	audioChunksInTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "companion_audio_chunks_in_total",
		Help: "Total number of inbound audio chunks scheduled for playback",
	})
	videoFramesOutTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "companion_video_frames_out_total",
		Help: "Total number of sampled video frames sent",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "companion_active_sessions",
		Help: "Number of companion sessions currently running",
	})

	registry.MustRegister(
		sessionsStarted,
		sessionsEnded,
		sessionsFailed,
		audioChunksOutTotal,
		audioChunksInTotal,
		videoFramesOutTotal,
		activeSessions,
	)

	return &Metrics{
		registry:            registry,
		sessionsStarted:     sessionsStarted,
		sessionsEnded:       sessionsEnded,
		sessionsFailed:      sessionsFailed,
		audioChunksOutTotal: audioChunksOutTotal,
		audioChunksInTotal:  audioChunksInTotal,
		videoFramesOutTotal: videoFramesOutTotal,
		activeSessions:      activeSessions,
	}
}

// SessionStarted records a successful session start.
func (m *Metrics) SessionStarted() {
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

// SessionEnded records a session teardown.
func (m *Metrics) SessionEnded() {
	m.sessionsEnded.Inc()
	m.activeSessions.Dec()
}

// SessionFailed records a session that never came up.
func (m *Metrics) SessionFailed() {
	m.sessionsFailed.Inc()
}

// AudioChunkOut records one outbound PCM chunk.
func (m *Metrics) AudioChunkOut() {
	m.audioChunksOutTotal.Inc()
}

// AudioChunkIn records one inbound audio chunk.
func (m *Metrics) AudioChunkIn() {
	m.audioChunksInTotal.Inc()
}

// VideoFrameOut records one sampled video frame.
func (m *Metrics) VideoFrameOut() {
	m.videoFramesOutTotal.Inc()
}

// Handler returns an http.Handler that serves the Prometheus scrape
// endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
