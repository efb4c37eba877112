package audio

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced playback clock.
type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Clock() Clock {
	return func() time.Duration { return c.now }
}

func TestSchedulerBackToBack(t *testing.T) {
	clock := &fakeClock{}
	s := NewScheduler(clock.Clock())

	// Chunks arrive faster than they play: each starts where the previous ends.
	first := s.Schedule(2 * time.Second)
	clock.now = 500 * time.Millisecond
	second := s.Schedule(3 * time.Second)

	if first.Start != 0 {
		t.Errorf("Expected first chunk at 0, got %v", first.Start)
	}
	if second.Start != 2*time.Second {
		t.Errorf("Expected second chunk at 2s, got %v", second.Start)
	}
	if s.NextStart() != 5*time.Second {
		t.Errorf("Expected next start 5s, got %v", s.NextStart())
	}
	if second.Index != 1 {
		t.Errorf("Expected index 1, got %d", second.Index)
	}
}

func TestSchedulerLateChunk(t *testing.T) {
	clock := &fakeClock{}
	s := NewScheduler(clock.Clock())

	s.Schedule(time.Second)

	// The next chunk arrives after playback drained; it starts now, not in the past.
	clock.now = 4 * time.Second
	late := s.Schedule(time.Second)

	if late.Start != 4*time.Second {
		t.Errorf("Expected late chunk at 4s, got %v", late.Start)
	}
	if s.NextStart() != 5*time.Second {
		t.Errorf("Expected next start 5s, got %v", s.NextStart())
	}
}

func TestSchedulerNoOverlap(t *testing.T) {
	clock := &fakeClock{}
	s := NewScheduler(clock.Clock())

	var prevEnd time.Duration
	for i, arrival := range []time.Duration{0, 100 * time.Millisecond, 3 * time.Second, 3100 * time.Millisecond} {
		clock.now = arrival
		c := s.Schedule(time.Second)
		if c.Start < prevEnd {
			t.Errorf("Chunk %d overlaps previous: start %v < end %v", i, c.Start, prevEnd)
		}
		if c.Start < arrival {
			t.Errorf("Chunk %d scheduled in the past: %v < %v", i, c.Start, arrival)
		}
		prevEnd = c.Start + c.Duration
	}
}
