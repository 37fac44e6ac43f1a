package live

import (
	"sync"
	"time"
)

// outputActiveMargin keeps the speaking indicator lit briefly past each
// chunk so back-to-back chunks do not flicker it.
const outputActiveMargin = 100 * time.Millisecond

// PlaybackScheduler assigns start times to inbound audio chunks. It
// keeps a single cursor, the next start time, measured on the same
// clock as the output device. Chunks arriving faster than real time
// are packed back to back; a chunk arriving after the cursor has
// already passed snaps forward to "now" instead of being scheduled in
// the past. The scheduler never reorders, only re-times.
type PlaybackScheduler struct {
	mu          sync.Mutex
	now         func() time.Duration
	next        time.Duration
	activeUntil time.Duration
}

// NewPlaybackScheduler creates a scheduler whose cursor starts at the
// clock's current time.
func NewPlaybackScheduler(now func() time.Duration) *PlaybackScheduler {
	s := &PlaybackScheduler{now: now}
	s.next = now()
	return s
}

// Schedule reserves playback time for a chunk of duration d and returns
// its start offset. The cursor advances by d; the output-active window
// extends to the chunk's end plus the indicator margin.
func (s *PlaybackScheduler) Schedule(d time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.next
	if current := s.now(); start < current {
		start = current
	}
	s.next = start + d

	if until := start + d + outputActiveMargin; until > s.activeUntil {
		s.activeUntil = until
	}
	return start
}

// NextStart returns the cursor position: the earliest time the next
// chunk may begin.
func (s *PlaybackScheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// ActiveUntil returns the end of the output-active indicator window.
func (s *PlaybackScheduler) ActiveUntil() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeUntil
}

// OutputActive reports whether scheduled audio (plus the indicator
// margin) still covers the current clock time.
func (s *PlaybackScheduler) OutputActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now() < s.activeUntil
}
