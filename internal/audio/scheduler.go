package audio

import (
	"sync"
	"time"
)

// Clock reports the current position of a playback timeline.
type Clock func() time.Duration

// WallClock returns a Clock that starts at zero now and follows wall time.
func WallClock() Clock {
	start := time.Now()
	return func() time.Duration { return time.Since(start) }
}

// Scheduler assigns start offsets so chunks play back to back without gaps
// or overlap, however fast they arrive.
type Scheduler struct {
	clock Clock
	next  time.Duration

	scheduled int

	mu sync.Mutex
}

// ScheduledChunk is a chunk placed on the playback timeline.
type ScheduledChunk struct {
	Index    int           `json:"index"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}

// NewScheduler creates a scheduler whose timeline starts at the clock's current value.
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = WallClock()
	}
	return &Scheduler{clock: clock, next: clock()}
}

// Schedule places a chunk of the given duration at max(next, now) and advances
// the next start by its duration.
func (s *Scheduler) Schedule(d time.Duration) ScheduledChunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := s.clock(); now > s.next {
		s.next = now
	}

	chunk := ScheduledChunk{Index: s.scheduled, Start: s.next, Duration: d}
	s.next += d
	s.scheduled++
	return chunk
}

// NextStart returns the earliest start offset for the next chunk
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
